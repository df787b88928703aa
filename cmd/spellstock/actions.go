package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

type filterFlags struct {
	status     string
	owner      string
	risk       string
	actionType string
	ingredient string
	reason     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.status, "status", "s", "", "Filter by status")
	cmd.Flags().StringVarP(&f.owner, "owner", "o", "", "Filter by owner role (Purchasing, Kitchen, VendorOps)")
	cmd.Flags().StringVar(&f.risk, "risk", "", "Filter by risk level")
	cmd.Flags().StringVarP(&f.actionType, "type", "t", "", "Filter by action type")
	cmd.Flags().StringVarP(&f.ingredient, "ingredient", "i", "", "Filter by ingredient (substring)")
	cmd.Flags().StringVar(&f.reason, "reason", "", "Filter by reason text (substring)")
}

func (f *filterFlags) filter() entities.ActionFilter {
	return entities.ActionFilter{
		Status:         entities.ActionStatus(strings.ToLower(f.status)),
		OwnerRole:      entities.OwnerRole(f.owner),
		RiskLevel:      entities.RiskLevel(strings.ToLower(f.risk)),
		ActionType:     entities.ActionType(strings.ToLower(f.actionType)),
		Ingredient:     f.ingredient,
		ReasonContains: f.reason,
	}
}

func newActionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "actions",
		Aliases: []string{"action"},
		Short:   "List, approve, execute and roll back actions",
	}

	cmd.AddCommand(
		newActionsListCmd(),
		newActionsShowCmd(),
		newActionsAddCmd(),
		newTransitionCmd("approve", "Approve proposed actions", false),
		newTransitionCmd("reject", "Reject proposed or approved actions", true),
		newTransitionCmd("execute", "Execute approved actions", false),
		newActionsRollbackCmd(),
		newActionsReconcileCmd(),
	)

	return cmd
}

func newActionsListCmd() *cobra.Command {
	var (
		filters filterFlags
		sortBy  string
		desc    bool
		limit   int
		offset  int
		byOwner bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actions",
		Long:  "Lists actions, highest risk first unless --sort is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				if byOwner {
					groups, err := d.QueryHandler.Grouped(ctx, filters.filter())
					if err != nil {
						return err
					}
					if asJSON {
						return printJSON(groups)
					}
					for _, role := range []entities.OwnerRole{entities.RolePurchasing, entities.RoleKitchen, entities.RoleVendorOps} {
						if len(groups[role]) == 0 {
							continue
						}
						fmt.Printf("== %s (%d)\n", role, len(groups[role]))
						displayActions(groups[role])
						fmt.Println()
					}
					return nil
				}

				q := services.ActionQuery{Filter: filters.filter(), SortBy: sortBy, Descending: desc, Limit: limit, Offset: offset}
				if sortBy == "" {
					q.SortBy, q.Descending = "risk_level", true
				}
				actions, err := d.QueryHandler.List(ctx, q)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(actions)
				}
				displayActions(actions)
				return nil
			})
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort field: "+strings.Join(services.SortFields, ", "))
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultListLimit, "Maximum number of actions to display")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of actions to skip")
	cmd.Flags().BoolVar(&byOwner, "by-owner", false, "Group by owner role")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

func newActionsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show an action and its audit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				detail, err := d.QueryHandler.Show(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(detail)
				}
				displayAction(detail.Action)
				fmt.Println("\nHistory:")
				displayAudit(detail.History)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newActionsAddCmd() *cobra.Command {
	var (
		draft entities.ActionDraft
		risk  string
	)

	cmd := &cobra.Command{
		Use:   "add TYPE INGREDIENT",
		Short: "Propose an action by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actionType, err := entities.ParseActionType(args[0])
			if err != nil {
				return err
			}
			draft.Type = actionType
			draft.Payload.Ingredient = args[1]
			draft.RiskLevel = entities.RiskLevel(strings.ToLower(risk))

			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				action, err := d.ActionsHandler.Add(ctx, draft, entities.ActorHuman)
				if err != nil {
					return err
				}
				fmt.Printf("Proposed action %s\n", action.ID)
				displayAction(action)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&draft.Payload.Quantity, "quantity", 0, "Quantity")
	cmd.Flags().StringVar(&draft.Payload.Unit, "unit", "", "Unit of the quantity")
	cmd.Flags().StringVar(&draft.Payload.Vendor, "vendor", "", "Vendor")
	cmd.Flags().StringVar(&draft.Payload.DueTime, "due", "", "Due time")
	cmd.Flags().Float64Var(&draft.Payload.ParChangePct, "par-change", 0, "Par level change in percent (adjust_par)")
	cmd.Flags().StringVar(&draft.Payload.Notes, "notes", "", "Notes")
	cmd.Flags().StringVar(&draft.Reason, "why", "", "Reason for the action")
	cmd.Flags().StringVar(&risk, "risk", "low", "Risk level")

	return cmd
}

// newTransitionCmd builds approve, reject and execute. One id runs the
// single-action path; several ids or a filter go through bulk.
func newTransitionCmd(op, short string, withReason bool) *cobra.Command {
	var (
		filters filterFlags
		reason  string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   op + " [ID...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				if len(args) == 1 && filters.filter().IsEmpty() {
					var (
						action *entities.Action
						err    error
					)
					switch entities.Operation(op) {
					case entities.OpApprove:
						action, err = d.ActionsHandler.Approve(ctx, args[0], entities.ActorHuman)
					case entities.OpReject:
						action, err = d.ActionsHandler.Reject(ctx, args[0], entities.ActorHuman, reason)
					default:
						action, err = d.ActionsHandler.Execute(ctx, args[0], entities.ActorHuman)
					}
					if err != nil {
						return err
					}
					fmt.Printf("Action %s is now %s\n", shortID(action.ID), action.Status)
					return nil
				}

				ids := args
				if len(ids) == 0 {
					f := filters.filter()
					if f.IsEmpty() {
						return fmt.Errorf("give action ids or a filter")
					}
					matched, err := d.QueryHandler.List(ctx, services.ActionQuery{Filter: f})
					if err != nil {
						return err
					}
					for _, a := range matched {
						ids = append(ids, a.ID)
					}
				}

				res, err := d.ActionsHandler.Bulk(ctx, services.BulkRequest{
					Operation: entities.Operation(op),
					ActionIDs: ids,
					Reason:    reason,
				}, entities.ActorHuman)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(res)
				}
				displayBulk(res)
				return nil
			})
		},
	}

	filters.register(cmd)
	if withReason {
		cmd.Flags().StringVar(&reason, "why", "", "Reason recorded in the audit log")
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print bulk results as JSON")
	return cmd
}

func newActionsRollbackCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "rollback ID",
		Short: "Undo an executed action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				action, err := d.ActionsHandler.Rollback(ctx, args[0], entities.ActorHuman, reason)
				if err != nil {
					return err
				}
				fmt.Printf("Action %s rolled back\n", shortID(action.ID))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "why", "", "Reason recorded in the audit log")
	return cmd
}

func newActionsReconcileCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "reconcile [ID]",
		Short: "Resolve actions left executing or rolling back by a crash",
		Long:  "Without an id, reconciles every action found in a transient status.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				if len(args) == 1 {
					action, err := d.ActionsHandler.Reconcile(ctx, args[0], entities.ActorHuman, notes)
					if err != nil {
						return err
					}
					fmt.Printf("Action %s reconciled to %s\n", shortID(action.ID), action.Status)
					return nil
				}

				fixed, err := d.ActionsHandler.ReconcileAll(ctx, entities.ActorHuman)
				for _, a := range fixed {
					fmt.Printf("Action %s reconciled to %s\n", shortID(a.ID), a.Status)
				}
				if err != nil {
					return err
				}
				if len(fixed) == 0 {
					fmt.Println("Nothing to reconcile.")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Notes recorded in the audit log")
	return cmd
}
