package entities

import "time"

// HistoricalContext is the usage summary the history service returns for an
// ingredient. Zero values mean the service had no data.
type HistoricalContext struct {
	AvgDailyUse        float64 `json:"avg_daily_use"`
	AvgDailyWaste      float64 `json:"avg_daily_waste"`
	Trend              string  `json:"trend"`
	LastWeekCovers     int     `json:"last_week_covers"`
	LatestDaysOfSupply float64 `json:"latest_days_of_supply_est,omitempty"`
	MaxSafeOrderQty    float64 `json:"max_safe_order_qty,omitempty"`
}

// Trend values reported by the history service.
const (
	TrendIncreasing = "usage increasing"
	TrendDeclining  = "usage declining"
	TrendStable     = "usage stable"
	TrendNoData     = "no data"
)

// Alert is an admitted, deduplicated notification. Only SupersededBy may
// change after creation.
type Alert struct {
	ID                string            `json:"id"`
	Key               DedupKey          `json:"dedup_key"`
	Severity          Severity          `json:"severity"`
	Message           string            `json:"message"`
	Event             RiskEvent         `json:"risk_event"`
	HistoricalContext HistoricalContext `json:"historical_context"`
	CreatedAt         time.Time         `json:"created_at"`
	SupersededBy      string            `json:"superseded_by,omitempty"`
}

// IsActive reports whether no later alert has superseded this one.
func (a *Alert) IsActive() bool {
	return a.SupersededBy == ""
}

// AlertMatch is an alert returned from a similarity search.
type AlertMatch struct {
	AlertID      string   `json:"alert_id"`
	Key          DedupKey `json:"dedup_key"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	Score        float32  `json:"score"`
	CreatedAtRFC string   `json:"created_at"`
}
