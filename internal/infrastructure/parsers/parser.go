// Package parsers reads classifier prediction feeds in various formats.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawPrediction is one classifier output record before validation.
// Pointer fields distinguish 0 from unset.
type RawPrediction struct {
	ItemID              string   `json:"item_id"`
	IngredientID        string   `json:"ingredient_id,omitempty"`
	RestaurantID        *int     `json:"restaurant_id,omitempty"`
	StockoutProbability *float64 `json:"stockout_probability,omitempty"`
	SurplusProbability  *float64 `json:"surplus_probability,omitempty"`
	DaysUntilEvent      *int     `json:"days_until_event,omitempty"`
	ExpectedUnits       *float64 `json:"expected_units,omitempty"`
	Timestamp           string   `json:"timestamp,omitempty"`

	LineNum int `json:"-"` // Line number in source file (set by parser)
	// Err is set when the record could not be decoded; the record is kept so
	// the caller can report and skip it.
	Err error `json:"-"`
}

// Parser defines the interface for parsing prediction feeds.
type Parser interface {
	Parse(r io.Reader) ([]RawPrediction, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "jsonl", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "jsonl", "ndjson":
		return &JSONLParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension. Plain .txt
// feeds are JSON Lines, the classifier's native output.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".jsonl", ".ndjson", ".txt":
		return &JSONLParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
