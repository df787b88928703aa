package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
)

func TestNewTranslator(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			cfg: config.LLMConfig{
				APIKey: "test-key",
			},
			wantErr: false,
		},
		{
			name: "valid config with model",
			cfg: config.LLMConfig{
				APIKey: "test-key",
				Model:  "gpt-4o",
			},
			wantErr: false,
		},
		{
			name:    "missing API key",
			cfg:     config.LLMConfig{},
			wantErr: true,
			errMsg:  "API key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTranslator(tt.cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, tr)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, tr)
			}
		})
	}
}

// chatServer answers every chat completion with content and records the
// last request body.
func chatServer(t *testing.T, content string, last *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if last != nil {
			_ = json.NewDecoder(r.Body).Decode(last)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTranslator_Translate(t *testing.T) {
	var last map[string]any
	srv := chatServer(t, `{"intent":"filter","filter":{"ingredient":"chicken_breast","risk_level":"HIGH"}}`, &last)
	tr, err := NewTranslator(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	cmd, err := tr.Translate(t.Context(), "only the risky chicken stuff", entities.ActionFilter{Status: entities.StatusProposed})

	require.NoError(t, err)
	assert.Equal(t, entities.IntentFilter, cmd.Intent)
	assert.Equal(t, "chicken_breast", cmd.Filter.Ingredient)
	assert.Equal(t, entities.RiskHigh, cmd.Filter.RiskLevel)

	format, ok := last["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
	messages, ok := last["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].(map[string]any)["content"], "status=proposed")
}

func TestTranslator_Translate_EmptyText(t *testing.T) {
	tr, err := NewTranslator(config.LLMConfig{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = tr.Translate(t.Context(), "   ", entities.ActionFilter{})
	assert.True(t, entities.IsValidation(err))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cmd *entities.Command)
		wantErr bool
	}{
		{
			name:    "modify with ids",
			content: `{"intent":"MODIFY","operation":"Approve","action_ids":["3f2a9c1d"," "],"reason":"looks right"}`,
			check: func(t *testing.T, cmd *entities.Command) {
				assert.Equal(t, entities.OpApprove, cmd.Operation)
				assert.Equal(t, []string{"3f2a9c1d"}, cmd.ActionIDs)
				assert.Equal(t, "looks right", cmd.Reason)
			},
		},
		{
			name:    "add with draft",
			content: `{"intent":"ADD","draft":{"action_type":"transfer_stock","risk_level":"medium","payload":{"ingredient":"salmon","quantity":4,"from_location":"walk-in","to_location":"line"}}}`,
			check: func(t *testing.T, cmd *entities.Command) {
				require.NotNil(t, cmd.Draft)
				assert.Equal(t, entities.ActionTransferStock, cmd.Draft.Type)
				assert.Equal(t, entities.RiskMedium, cmd.Draft.RiskLevel)
				assert.Equal(t, 4.0, cmd.Draft.Payload.Quantity)
				assert.Equal(t, "line", cmd.Draft.Payload.ToLocation)
			},
		},
		{name: "unknown intent", content: `{"intent":"DELETE_EVERYTHING"}`, wantErr: true},
		{name: "unknown status", content: `{"intent":"VIEW","filter":{"status":"pending"}}`, wantErr: true},
		{name: "modify cannot execute", content: `{"intent":"MODIFY","operation":"execute"}`, wantErr: true},
		{name: "add without draft", content: `{"intent":"ADD"}`, wantErr: true},
		{name: "add unknown type", content: `{"intent":"ADD","draft":{"action_type":"fire_chef","payload":{"ingredient":"x"}}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := parseCommand(tt.content)
			if tt.wantErr {
				assert.True(t, entities.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cmd)
		})
	}
}

func TestParseCommand_InvalidJSON(t *testing.T) {
	_, err := parseCommand("not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing command JSON")
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"intent": "VIEW"}`,
			expected: `{"intent": "VIEW"}`,
		},
		{
			name:     "JSON with json code block",
			input:    "```json\n{\"intent\": \"VIEW\"}\n```",
			expected: `{"intent": "VIEW"}`,
		},
		{
			name:     "JSON with plain code block",
			input:    "```\n{\"intent\": \"VIEW\"}\n```",
			expected: `{"intent": "VIEW"}`,
		},
		{
			name:     "JSON with whitespace",
			input:    "  \n{\"intent\": \"VIEW\"}\n  ",
			expected: `{"intent": "VIEW"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanJSONResponse(tt.input))
		})
	}
}
