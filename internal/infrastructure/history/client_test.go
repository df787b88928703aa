package history

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
)

func TestClient_Context(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/restaurants/1/ingredients/chicken_breast/history":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"avg_daily_use":4.2,"avg_daily_waste":0.3,"trend":"usage increasing","last_week_covers":812,"max_safe_order_qty":40}`))
		case "/restaurants/1/ingredients/truffle/history":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c, err := NewClient(config.HistoryConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	hc, err := c.Context(t.Context(), 1, "chicken_breast")
	require.NoError(t, err)
	assert.Equal(t, 4.2, hc.AvgDailyUse)
	assert.Equal(t, entities.TrendIncreasing, hc.Trend)
	assert.Equal(t, 812, hc.LastWeekCovers)
	assert.Equal(t, 40.0, hc.MaxSafeOrderQty)

	hc, err = c.Context(t.Context(), 1, "truffle")
	require.NoError(t, err)
	assert.Equal(t, entities.TrendNoData, hc.Trend)

	_, err = c.Context(t.Context(), 2, "salmon")
	assert.ErrorContains(t, err, "500")
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(config.HistoryConfig{})
	assert.Error(t, err)
}

func TestNone(t *testing.T) {
	hc, err := None{}.Context(t.Context(), 1, "salmon")
	require.NoError(t, err)
	assert.Equal(t, entities.TrendNoData, hc.Trend)
}
