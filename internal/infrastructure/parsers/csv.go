package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses predictions from CSV with a header row.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed predictions.
// Expected columns: item_id, stockout_probability, surplus_probability,
// days_until_event, expected_units, restaurant_id, ingredient_id, timestamp.
// Only item_id is required.
func (p *CSVParser) Parse(r io.Reader) ([]RawPrediction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	if _, ok := colIndex["item_id"]; !ok {
		return nil, fmt.Errorf("missing required column: item_id")
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawPredictions.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawPrediction, error) {
	var preds []RawPrediction
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		pred := p.parseRecord(record, colIndex)
		pred.LineNum = lineNum
		preds = append(preds, pred)
	}

	return preds, nil
}

// parseRecord converts a CSV record to a RawPrediction. A bad number marks
// the record with Err.
func (p *CSVParser) parseRecord(record []string, colIndex map[string]int) RawPrediction {
	pred := RawPrediction{
		ItemID:       getColumn(record, colIndex, "item_id"),
		IngredientID: getColumn(record, colIndex, "ingredient_id"),
		Timestamp:    getColumn(record, colIndex, "timestamp"),
	}

	var err error
	if pred.StockoutProbability, err = floatColumn(record, colIndex, "stockout_probability"); err != nil {
		pred.Err = err
		return pred
	}
	if pred.SurplusProbability, err = floatColumn(record, colIndex, "surplus_probability"); err != nil {
		pred.Err = err
		return pred
	}
	if pred.ExpectedUnits, err = floatColumn(record, colIndex, "expected_units"); err != nil {
		pred.Err = err
		return pred
	}
	if pred.DaysUntilEvent, err = intColumn(record, colIndex, "days_until_event"); err != nil {
		pred.Err = err
		return pred
	}
	if pred.RestaurantID, err = intColumn(record, colIndex, "restaurant_id"); err != nil {
		pred.Err = err
		return pred
	}
	return pred
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

func floatColumn(record []string, colIndex map[string]int, col string) (*float64, error) {
	s := getColumn(record, colIndex, col)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", col, s, err)
	}
	return &v, nil
}

func intColumn(record []string, colIndex map[string]int, col string) (*int, error) {
	s := getColumn(record, colIndex, col)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", col, s, err)
	}
	return &v, nil
}
