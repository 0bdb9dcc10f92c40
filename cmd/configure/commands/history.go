package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored analyses",
	}
	cmd.AddCommand(newHistoryListCmd(env))
	return cmd
}

func newHistoryListCmd(env Env) *cobra.Command {
	var userID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's analyses, most recent first",
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

			analyses, err := store.GetUserHistory(ctx, userID, limit)
			if err != nil {
				return fmt.Errorf("get history: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(analyses) == 0 {
				fmt.Fprintf(out, "No analyses for user %s\n", userID)
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIMESTAMP\tCLASSIFICATION\tRISK\tFEEDBACK")
			for _, a := range analyses {
				feedback := "-"
				if a.Feedback != nil {
					feedback = string(*a.Feedback)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", a.ID, a.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
					a.Result.Classification, a.Result.RiskScore, feedback)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of analyses to show")
	return cmd
}
