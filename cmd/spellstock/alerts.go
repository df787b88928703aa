package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAlertsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List active alerts",
		Long:  "Lists alerts inside the dedup window that no later alert has superseded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				alerts, err := d.AlertsHandler.Active(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(alerts)
				}
				displayAlerts(alerts)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.AddCommand(newAlertsShowCmd(), newAlertsSimilarCmd())
	return cmd
}

func newAlertsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				alert, err := d.AlertsHandler.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(alert)
			})
		},
	}
}

func newAlertsSimilarCmd() *cobra.Command {
	var (
		limit    int
		anywhere bool
	)

	cmd := &cobra.Command{
		Use:   "similar QUERY",
		Short: "Find past alerts resembling a description",
		Long:  "Searches the alert index. Requires qdrant.host and an embedder key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				restaurantID := d.RestaurantID
				if anywhere {
					restaurantID = 0
				}
				matches, err := d.AlertsHandler.Similar(ctx, args[0], restaurantID, limit)
				if err != nil {
					return err
				}
				if len(matches) == 0 {
					fmt.Println("No similar alerts.")
					return nil
				}
				for _, m := range matches {
					fmt.Printf("%.3f  %-9s %-9s %s\n", m.Score, shortID(m.AlertID), m.Severity, m.Message)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultSimilarLimit, "Maximum number of matches")
	cmd.Flags().BoolVar(&anywhere, "all-restaurants", false, "Search every restaurant in the collection")
	return cmd
}
