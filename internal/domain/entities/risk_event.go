// Package entities contains core domain data structures.
package entities

import (
	"fmt"
	"time"
)

// EventType represents the kind of risk a prediction describes.
type EventType string

const (
	EventStockoutRisk EventType = "stockout_risk"
	EventSurplusRisk  EventType = "surplus_risk"
)

// IsValid reports whether the event type is one of the known kinds.
func (t EventType) IsValid() bool {
	return t == EventStockoutRisk || t == EventSurplusRisk
}

// RiskEvent is a normalized prediction about a future stockout or surplus
// for one ingredient at one restaurant. It is never modified after creation.
type RiskEvent struct {
	ItemID       string    `json:"item_id"`
	EventType    EventType `json:"event_type"`
	Confidence   float64   `json:"confidence"`
	Magnitude    float64   `json:"magnitude"` // Expected units for surplus events
	DaysUntil    int       `json:"days_until"`
	RestaurantID int       `json:"restaurant_id"`
	IngredientID string    `json:"ingredient_id"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Key returns the deduplication key for the event.
func (e RiskEvent) Key() DedupKey {
	return DedupKey{
		RestaurantID: e.RestaurantID,
		IngredientID: e.IngredientID,
		EventType:    e.EventType,
	}
}

// DedupKey identifies alerts that describe the same situation.
type DedupKey struct {
	RestaurantID int       `json:"restaurant_id"`
	IngredientID string    `json:"ingredient_id"`
	EventType    EventType `json:"event_type"`
}

// String returns a stable textual form of the key, used for locking and logs.
func (k DedupKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.RestaurantID, k.IngredientID, k.EventType)
}
