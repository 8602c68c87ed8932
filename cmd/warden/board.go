package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/tui"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Launch the interactive task board",
	RunE:  runBoard,
}

func runBoard(cmd *cobra.Command, args []string) error {
	if health, err := CheckHealth(); err != nil || !health.OK {
		return fmt.Errorf("daemon not reachable at %s; start it with 'warden daemon'", apiAddr)
	}

	app := tui.New(apiAddr, resolveToken())
	if err := app.Run(); err != nil {
		return fmt.Errorf("board error: %w", err)
	}
	return nil
}
