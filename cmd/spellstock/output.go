package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

// shortIDLen is how much of an id the tables show. Any unique prefix of at
// least four characters is accepted back.
const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func displayActions(actions []*entities.Action) {
	if len(actions) == 0 {
		fmt.Println("No actions found.")
		return
	}
	fmt.Printf("%-9s %-20s %-12s %-9s %-11s %-18s %s\n", "ID", "TYPE", "STATUS", "RISK", "OWNER", "INGREDIENT", "REASON")
	for _, a := range actions {
		fmt.Printf("%-9s %-20s %-12s %-9s %-11s %-18s %s\n",
			shortID(a.ID), a.Type, a.Status, a.RiskLevel, a.OwnerRole, a.Payload.Ingredient, truncate(a.Reason, 60))
	}
}

func displayAction(a *entities.Action) {
	fmt.Printf("ID: %s\n", a.ID)
	fmt.Printf("  Type: %s (%s)\n", a.Type, a.OwnerRole)
	fmt.Printf("  Status: %s  Risk: %s  Requires approval: %t\n", a.Status, a.RiskLevel, a.RequiresApproval)
	fmt.Printf("  Ingredient: %s", a.Payload.Ingredient)
	if a.Payload.Quantity > 0 {
		fmt.Printf("  Quantity: %g %s", a.Payload.Quantity, a.Payload.Unit)
	}
	fmt.Println()
	fmt.Printf("  Reason: %s\n", a.Reason)
	if a.ExpectedImpact != "" {
		fmt.Printf("  Expected impact: %s\n", a.ExpectedImpact)
	}
	if a.ExecutionResult != nil {
		fmt.Printf("  Result: %s %s\n", a.ExecutionResult.Reference, a.ExecutionResult.Message)
	}
	if a.ExecutionError != "" {
		fmt.Printf("  Last execution error: %s\n", a.ExecutionError)
	}
}

func displayAudit(entries []entities.AuditEntry) {
	if len(entries) == 0 {
		fmt.Println("No audit entries found.")
		return
	}
	for _, e := range entries {
		prior := string(e.PriorStatus)
		if prior == "" {
			prior = "-"
		}
		fmt.Printf("%-5d %s %-9s %-17s %-10s -> %-11s %-9s %s\n",
			e.ID, e.Timestamp.Format("2006-01-02 15:04:05"), shortID(e.ActionID), e.Event, prior, e.NewStatus, e.Actor, e.Notes)
	}
}

func displayBulk(res *services.BulkResult) {
	fmt.Printf("Processed %d, failed %d\n", len(res.Processed), len(res.Failed))
	for _, id := range res.Processed {
		fmt.Printf("  ok    %s\n", shortID(id))
	}
	for _, f := range res.Failed {
		fmt.Printf("  fail  %s: %s\n", shortID(f.ID), f.Error)
	}
}

func displayAlerts(alerts []*entities.Alert) {
	if len(alerts) == 0 {
		fmt.Println("No active alerts.")
		return
	}
	for _, a := range alerts {
		fmt.Printf("%-9s %-9s %s  %s\n", shortID(a.ID), a.Severity, a.CreatedAt.Format("2006-01-02 15:04"), a.Message)
	}
}

func displaySummary(s *services.PipelineSummary) {
	fmt.Printf("Loaded %d records (%d skipped, %d below confidence), %d classified\n", s.Loaded, s.Skipped, s.BelowConfidence, s.Classified)
	fmt.Printf("Alerts: %d admitted, %d escalated, %d suppressed\n", s.Admitted, s.Escalated, s.Suppressed)
	fmt.Printf("Actions proposed: %d\n", s.ActionsProposed)
	for _, e := range s.Errors {
		fmt.Printf("  skipped: %s\n", e)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-3]) + "..."
}
