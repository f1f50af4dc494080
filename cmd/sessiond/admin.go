package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print session statistics from a fresh store scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := buildManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		snap, err := mgr.SessionStats(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete all expired session records",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := buildManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		cleaned, err := mgr.CleanupExpiredSessions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("cleaned %d expired sessions\n", cleaned)
		return nil
	},
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <user-id>",
	Short: "Delete every session owned by a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := buildManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		userID := args[0]
		if err := mgr.InvalidateUserSessions(cmd.Context(), userID); err != nil {
			return err
		}
		fmt.Printf("invalidated sessions for user %s\n", userID)
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count <user-id>",
	Short: "Count a user's live sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := buildManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Close()

		count, err := mgr.UserSessionCount(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, cleanupCmd, invalidateCmd, countCmd)
}
