package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewSessionCmd creates the session command
func NewSessionCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect user sessions",
	}
	cmd.AddCommand(newSessionShowCmd(env))
	return cmd
}

func newSessionShowCmd(env Env) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user's session counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = strings.TrimSpace(userID)
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			ctx := context.Background()
			store, closeStore, err := env.store(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			sess, err := store.GetSession(ctx, userID)
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}
			if sess == nil {
				return fmt.Errorf("no session for user %s", userID)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session: %s\n", sess.ID)
			fmt.Fprintf(out, "  Created:     %s\n", sess.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "  Last active: %s\n", sess.LastActive.Format(time.RFC3339))
			fmt.Fprintf(out, "  Analyses:    %d\n", sess.AnalysisCount)
			fmt.Fprintf(out, "  Feedback:    %d\n", sess.FeedbackGiven)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	return cmd
}
