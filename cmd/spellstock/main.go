// Package main provides the entry point for the spellstock CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version          = "0.1.0-dev"
	globalRestaurant string
	globalEphemeral  bool
	globalVerbose    bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "spellstock",
		Short:         "Turns perishable-inventory risk predictions into audited operational actions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalRestaurant, "restaurant", "r", "", "Restaurant to operate on")
	rootCmd.PersistentFlags().BoolVar(&globalEphemeral, "ephemeral", false, "Keep state in memory only")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "Log debug output")

	rootCmd.AddCommand(
		newInitCmd(),
		newRestaurantsCmd(),
		newIngestCmd(),
		newActionsCmd(),
		newAuditCmd(),
		newAlertsCmd(),
		newAutopilotCmd(),
		newAgentCmd(),
		newScheduleCmd(),
		newServeCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
