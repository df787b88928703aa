package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func TestJSONParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawPrediction
	}{
		{
			name:  "single prediction",
			input: `[{"item_id": "chicken_breast", "stockout_probability": 0.82, "surplus_probability": 0.1, "days_until_event": 2}]`,
			expected: []RawPrediction{
				{ItemID: "chicken_breast", StockoutProbability: ptrF(0.82), SurplusProbability: ptrF(0.1), DaysUntilEvent: ptrI(2), LineNum: 1},
			},
		},
		{
			name:     "empty array",
			input:    "[]",
			expected: []RawPrediction{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &JSONParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestJSONParser_Parse_InvalidInput(t *testing.T) {
	parser := &JSONParser{}
	_, err := parser.Parse(strings.NewReader("not json"))
	require.Error(t, err)
}

func TestJSONLParser_Parse(t *testing.T) {
	input := `{"item_id": "salmon", "stockout_probability": 0.9, "days_until_event": 1}

{"item_id": "romaine", "surplus_probability": 0.7, "expected_units": 3.5, "restaurant_id": 2}
{broken
`
	parser := &JSONLParser{}
	result, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, "salmon", result[0].ItemID)
	assert.Equal(t, 1, result[0].LineNum)
	assert.NoError(t, result[0].Err)

	assert.Equal(t, "romaine", result[1].ItemID)
	assert.Equal(t, 3, result[1].LineNum, "blank lines still count")
	assert.Equal(t, 3.5, *result[1].ExpectedUnits)
	assert.Equal(t, 2, *result[1].RestaurantID)

	assert.Equal(t, 4, result[2].LineNum)
	assert.Error(t, result[2].Err)
}

func TestCSVParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawPrediction
	}{
		{
			name:  "item id only",
			input: "item_id\nbasil\n",
			expected: []RawPrediction{
				{ItemID: "basil", LineNum: 2},
			},
		},
		{
			name:     "empty CSV (header only)",
			input:    "item_id,stockout_probability\n",
			expected: nil,
		},
		{
			name:  "columns in any order",
			input: "days_until_event,stockout_probability,item_id\n3,0.75,salmon\n",
			expected: []RawPrediction{
				{ItemID: "salmon", StockoutProbability: ptrF(0.75), DaysUntilEvent: ptrI(3), LineNum: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCSVParser_Parse_BadRowsAreMarked(t *testing.T) {
	input := "item_id,stockout_probability,days_until_event\n" +
		"salmon,high,2\n" +
		"basil,0.6,soon\n" +
		"romaine,0.7,1\n"

	parser := &CSVParser{}
	result, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result, 3)

	require.Error(t, result[0].Err)
	assert.Contains(t, result[0].Err.Error(), "invalid stockout_probability value")
	require.Error(t, result[1].Err)
	assert.Contains(t, result[1].Err.Error(), "invalid days_until_event value")
	assert.NoError(t, result[2].Err)
	assert.Equal(t, 4, result[2].LineNum)
}

func TestCSVParser_Parse_MissingItemColumn(t *testing.T) {
	parser := &CSVParser{}
	_, err := parser.Parse(strings.NewReader("stockout_probability\n0.9\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column: item_id")
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFormat("json"))
	assert.IsType(t, &JSONLParser{}, ForFormat("JSONL"))
	assert.IsType(t, &CSVParser{}, ForFormat("csv"))
	assert.Nil(t, ForFormat("unknown"))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("feed.json"))
	assert.IsType(t, &JSONLParser{}, ForFile("classifier_output.txt"))
	assert.IsType(t, &JSONLParser{}, ForFile("feed.ndjson"))
	assert.IsType(t, &CSVParser{}, ForFile("data.csv"))
	assert.Nil(t, ForFile("noextension"))
}
