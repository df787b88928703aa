package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
)

func TestNewClient(t *testing.T) {
	_, err := NewClient(config.ExecutorConfig{})
	require.Error(t, err)

	c, err := NewClient(config.ExecutorConfig{BaseURL: "http://localhost:9000"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClient_Perform(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/actions/draft_po", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body performRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "chicken_breast", body.Payload.Ingredient)
		assert.Equal(t, 20.0, body.Payload.Quantity)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entities.ExecutionResult{Reference: "PO-1042", Message: "draft created"})
	}))
	defer srv.Close()

	c, err := NewClient(config.ExecutorConfig{BaseURL: srv.URL, Token: "secret"})
	require.NoError(t, err)

	res, err := c.Perform(t.Context(), entities.ActionDraftPO, entities.Payload{Ingredient: "chicken_breast", Quantity: 20})

	require.NoError(t, err)
	assert.Equal(t, "PO-1042", res.Reference)
	assert.Equal(t, "draft created", res.Message)
}

func TestClient_Perform_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"vendor portal unavailable"}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.ExecutorConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Perform(t.Context(), entities.ActionDraftPO, entities.Payload{Ingredient: "salmon"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "vendor portal unavailable")
}

func TestClient_Compensate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/actions/draft_po/compensate":
			var body compensateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "PO-1042", body.Result.Reference)
			w.WriteHeader(http.StatusNoContent)
		case "/actions/acknowledge_alert/compensate":
			w.WriteHeader(http.StatusNotImplemented)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewClient(config.ExecutorConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	err = c.Compensate(t.Context(), entities.ActionDraftPO, entities.Payload{Ingredient: "salmon"}, &entities.ExecutionResult{Reference: "PO-1042"})
	require.NoError(t, err)

	err = c.Compensate(t.Context(), entities.ActionAcknowledgeAlert, entities.Payload{Ingredient: "salmon"}, nil)
	assert.True(t, errors.Is(err, entities.ErrNoCompensator))

	err = c.Compensate(t.Context(), entities.ActionTransferStock, entities.Payload{Ingredient: "salmon"}, nil)
	assert.ErrorContains(t, err, "404")
}
