package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/auth"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - task governance for coding agents",
	Long:  `Warden is a project and task tracker for coding agents: scoped tasks, completion gates, project constraints and recallable memory, coordinated through one governed lifecycle.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr  string
	apiToken string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7521", "API server address")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API bearer token (defaults to saved credentials)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(boardCmd)
}

// resolveToken falls back to the saved credentials when --token is unset.
func resolveToken() string {
	if apiToken != "" {
		return apiToken
	}
	mgr, err := auth.NewManager()
	if err != nil {
		return ""
	}
	return mgr.Token()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
