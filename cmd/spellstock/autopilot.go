package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/spellstock-core/internal/domain/services"
)

func newAutopilotCmd() *cobra.Command {
	var (
		mode   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "autopilot",
		Short: "Approve and execute proposed actions allowed by the autopilot mode",
		Long: `Runs one autopilot pass over proposed actions.
  off      hold everything
  guarded  act on low and medium risk actions that do not require approval
  full     act on everything`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				res, err := d.AutopilotHandler.Handle(ctx, mode)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(res)
				}
				displayAutopilot(res)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "off, guarded or full (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func displayAutopilot(res *services.AutopilotResult) {
	fmt.Printf("Autopilot (%s): %d executed, %d held for approval, %d failed\n",
		res.Mode, len(res.AutoExecuted), len(res.HeldForApproval), len(res.Failed))
	for _, id := range res.AutoExecuted {
		fmt.Printf("  executed  %s\n", shortID(id))
	}
	for _, id := range res.HeldForApproval {
		fmt.Printf("  held      %s\n", shortID(id))
	}
	for _, f := range res.Failed {
		fmt.Printf("  failed    %s: %s\n", shortID(f.ID), f.Error)
	}
}
