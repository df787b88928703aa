package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/spellstock-core/internal/application/handlers"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize spellstock in the current directory",
		Long:  "Creates a .spellstock directory with default configuration. Add restaurants with 'spellstock restaurants add'.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	// Collections are per restaurant, so none is created here.
	result, err := handlers.NewInitHandler(nil, 0).Handle(cmd.Context(), cwd)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)
	fmt.Println("SpellStock initialized successfully!")
	return nil
}
