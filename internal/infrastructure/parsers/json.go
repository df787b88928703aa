package parsers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses predictions from a JSON array.
type JSONParser struct{}

// Parse reads a JSON array from the reader. A malformed document fails as a whole.
func (p *JSONParser) Parse(r io.Reader) ([]RawPrediction, error) {
	var preds []RawPrediction

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&preds); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Set line numbers (array index + 1, 1-indexed)
	for i := range preds {
		preds[i].LineNum = i + 1
	}

	return preds, nil
}

// JSONLParser parses predictions with one JSON object per line.
type JSONLParser struct{}

// maxLineSize bounds a single JSONL record.
const maxLineSize = 1 << 20

// Parse reads one record per non-blank line. Lines that fail to decode are
// returned with Err set rather than aborting the feed.
func (p *JSONLParser) Parse(r io.Reader) ([]RawPrediction, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var preds []RawPrediction
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var pred RawPrediction
		if err := json.Unmarshal(line, &pred); err != nil {
			pred = RawPrediction{Err: fmt.Errorf("parsing JSON: %w", err)}
		}
		pred.LineNum = lineNum
		preds = append(preds, pred)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", lineNum+1, err)
	}

	return preds, nil
}
