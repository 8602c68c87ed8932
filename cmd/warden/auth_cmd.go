package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
}

var authSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Save an API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := mgr.SetToken(args[0]); err != nil {
			return err
		}
		fmt.Println("Token saved")
		return nil
	},
}

var authGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and save a fresh API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := auth.NewManager()
		if err != nil {
			return err
		}
		token, err := mgr.GenerateToken()
		if err != nil {
			return err
		}
		fmt.Printf("Generated token: %s\n", token)
		fmt.Println("Set api_token in the daemon config to match.")
		return nil
	},
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the saved API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := mgr.Clear(); err != nil {
			return err
		}
		fmt.Println("Credentials cleared")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a token is saved",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := auth.NewManager()
		if err != nil {
			return err
		}
		if mgr.Token() == "" {
			fmt.Println("No token saved")
			return nil
		}
		fmt.Println("Token saved")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authSetCmd, authGenerateCmd, authClearCmd, authStatusCmd)
}
