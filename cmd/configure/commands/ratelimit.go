package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// NewRatelimitCmd creates the ratelimit command
func NewRatelimitCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect rate limit configuration",
	}
	cmd.AddCommand(newRatelimitListCmd(env))
	return cmd
}

func newRatelimitListCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the effective limit of every namespace",
		Long:  "List the effective per-namespace limits after environment and CONFIG_FILE overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()

			namespaces := make([]string, 0, len(cfg.RateLimits))
			for ns := range cfg.RateLimits {
				namespaces = append(namespaces, ns)
			}
			slices.Sort(namespaces)

			fmt.Fprintln(out, "Rate limits:")
			for _, ns := range namespaces {
				rl := cfg.RateLimits[ns]
				fmt.Fprintf(out, "  %-10s %d requests per %s\n", ns, rl.MaxRequests, rl.Window)
			}
			fmt.Fprintf(out, "Burst: %s\n", cfg.BurstRate)
			fmt.Fprintf(out, "Cleanup interval: %s\n", cfg.CleanupInterval)
			if cfg.RedisURL == "" {
				fmt.Fprintln(out, "Counters: in-memory (REDIS_URL not set)")
			} else {
				fmt.Fprintln(out, "Counters: redis")
			}
			return nil
		},
	}
}
