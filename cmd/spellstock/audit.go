package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

func newAuditCmd() *cobra.Command {
	var (
		actionID string
		status   string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the action audit log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				entries, err := d.QueryHandler.Audit(ctx, entities.AuditQuery{
					ActionID:  actionID,
					NewStatus: entities.ActionStatus(strings.ToLower(status)),
					Limit:     limit,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(entries)
				}
				displayAudit(entries)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&actionID, "action", "a", "", "Only entries of this action (id or prefix)")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only entries moving to this status")
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultAuditLimit, "Maximum number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.AddCommand(newAuditVerifyCmd())
	return cmd
}

func newAuditVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the audit hash chain for tampering",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				v, err := d.QueryHandler.Verify(ctx)
				if err != nil {
					return err
				}
				if !v.Intact {
					return fmt.Errorf("audit chain broken at entry %d (of %d)", v.BrokenAt, v.Entries)
				}
				fmt.Printf("Audit chain intact (%d entries)\n", v.Entries)
				return nil
			})
		},
	}
}
