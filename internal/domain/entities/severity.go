package entities

import "fmt"

// Severity is the band the rule engine assigns to a risk event.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities: none < medium < high < critical.
func (s Severity) Rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Escalates reports whether s is strictly worse than prior.
func (s Severity) Escalates(prior Severity) bool {
	return s.Rank() > prior.Rank()
}

// ParseSeverity converts a string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityNone, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("invalid severity: %s (valid: none, medium, high, critical)", s)
	}
}

// RiskLevel is the risk attached to an action. It shares the severity
// vocabulary and adds "low" for operator-created, low-impact actions.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels: low < medium < high < critical.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// IsValid reports whether r is a known risk level.
func (r RiskLevel) IsValid() bool {
	return r.Rank() > 0
}

// RiskLevelFromSeverity maps an alert severity onto an action risk level.
func RiskLevelFromSeverity(s Severity) RiskLevel {
	switch s {
	case SeverityCritical:
		return RiskCritical
	case SeverityHigh:
		return RiskHigh
	case SeverityMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}
