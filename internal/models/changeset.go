package models

import (
	"encoding/json"
	"fmt"
)

// Changeset is the declared set of added/changed/deleted files for a
// proposed edit. Immutable once parsed; built once per scope check.
type Changeset struct {
	FilesChanged []string `json:"filesChanged"`
	FilesAdded   []string `json:"filesAdded"`
	FilesDeleted []string `json:"filesDeleted"`
}

// AllFiles returns the union of the three file lists, in declaration order.
// A file named in more than one list counts once.
func (c *Changeset) AllFiles() []string {
	seen := make(map[string]bool, len(c.FilesChanged)+len(c.FilesAdded)+len(c.FilesDeleted))
	var files []string
	for _, list := range [][]string{c.FilesChanged, c.FilesAdded, c.FilesDeleted} {
		for _, f := range list {
			if seen[f] {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}
	return files
}

// changesetWire mirrors Changeset with pointer slices so a missing key is
// distinguishable from an empty array.
type changesetWire struct {
	FilesChanged *[]string `json:"filesChanged"`
	FilesAdded   *[]string `json:"filesAdded"`
	FilesDeleted *[]string `json:"filesDeleted"`
}

// ParseChangeset decodes and validates a changeset manifest. All three
// fields are required and must be arrays; anything else is an input error,
// never a scope verdict.
func ParseChangeset(raw []byte) (*Changeset, error) {
	var wire changesetWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("invalid changeset manifest: %w", err)
	}
	if wire.FilesChanged == nil {
		return nil, fmt.Errorf("invalid changeset manifest: filesChanged must be an array")
	}
	if wire.FilesAdded == nil {
		return nil, fmt.Errorf("invalid changeset manifest: filesAdded must be an array")
	}
	if wire.FilesDeleted == nil {
		return nil, fmt.Errorf("invalid changeset manifest: filesDeleted must be an array")
	}
	return &Changeset{
		FilesChanged: *wire.FilesChanged,
		FilesAdded:   *wire.FilesAdded,
		FilesDeleted: *wire.FilesDeleted,
	}, nil
}
