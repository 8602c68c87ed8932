package models

import (
	"strings"
	"testing"
)

func TestParseChangeset_Valid(t *testing.T) {
	raw := []byte(`{
		"filesChanged": ["src/a.go"],
		"filesAdded": ["src/b.go"],
		"filesDeleted": []
	}`)

	cs, err := ParseChangeset(raw)
	if err != nil {
		t.Fatalf("ParseChangeset failed: %v", err)
	}

	files := cs.AllFiles()
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(files))
	}
	if files[0] != "src/a.go" || files[1] != "src/b.go" {
		t.Errorf("Unexpected file order: %v", files)
	}
}

func TestParseChangeset_MissingKey(t *testing.T) {
	cases := []struct {
		raw     string
		missing string
	}{
		{`{"filesAdded": [], "filesDeleted": []}`, "filesChanged"},
		{`{"filesChanged": [], "filesDeleted": []}`, "filesAdded"},
		{`{"filesChanged": [], "filesAdded": []}`, "filesDeleted"},
	}

	for _, c := range cases {
		_, err := ParseChangeset([]byte(c.raw))
		if err == nil {
			t.Errorf("Expected missing %s to be rejected", c.missing)
			continue
		}
		if !strings.Contains(err.Error(), c.missing) {
			t.Errorf("Expected error to name %s, got %q", c.missing, err)
		}
	}
}

func TestParseChangeset_BadJSON(t *testing.T) {
	if _, err := ParseChangeset([]byte(`not json`)); err == nil {
		t.Error("Expected malformed JSON to be rejected")
	}
	if _, err := ParseChangeset([]byte(`{"filesChanged": "a.go"}`)); err == nil {
		t.Error("Expected non-array field to be rejected")
	}
}

func TestAllFiles_Deduplicated(t *testing.T) {
	cs := &Changeset{
		FilesChanged: []string{"src/a.go", "src/b.go"},
		FilesAdded:   []string{"src/c.go"},
		FilesDeleted: []string{"src/a.go"},
	}

	files := cs.AllFiles()
	if len(files) != 3 {
		t.Fatalf("Expected a file in two lists to count once, got %v", files)
	}
	if files[0] != "src/a.go" || files[1] != "src/b.go" || files[2] != "src/c.go" {
		t.Errorf("Expected declaration order preserved, got %v", files)
	}
}

func TestParseChangeset_EmptyManifestAllowed(t *testing.T) {
	raw := []byte(`{"filesChanged": [], "filesAdded": [], "filesDeleted": []}`)
	cs, err := ParseChangeset(raw)
	if err != nil {
		t.Fatalf("Expected an empty manifest to parse: %v", err)
	}
	if len(cs.AllFiles()) != 0 {
		t.Error("Expected no files")
	}
}
