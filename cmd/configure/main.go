package main

import (
	"fmt"
	"os"

	"github.com/benvon/scam-hunter/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "scam-hunter-configure",
		Short: "Operations tool for the Scam Hunter API",
		Long:  "CLI tool for inspecting rate limits, stored analyses and sessions, and checking backend connectivity",
	}

	env := commands.DefaultEnv()
	rootCmd.AddCommand(commands.NewRatelimitCmd(env))
	rootCmd.AddCommand(commands.NewHistoryCmd(env))
	rootCmd.AddCommand(commands.NewSessionCmd(env))
	rootCmd.AddCommand(commands.NewTestCmd(env))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
