// Package history provides HistoryProvider implementations.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
)

const defaultTimeout = 5 * time.Second

// Client fetches historical context from the analytics service:
//
//	GET {base}/restaurants/{restaurant_id}/ingredients/{ingredient_id}/history
type Client struct {
	http *resty.Client
}

// NewClient creates a new history client.
func NewClient(cfg config.HistoryConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("history base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}, nil
}

// Context returns the usage summary for one ingredient. An ingredient the
// service has never seen yields a "no data" context, not an error.
func (c *Client) Context(ctx context.Context, restaurantID int, ingredientID string) (entities.HistoricalContext, error) {
	var hc entities.HistoricalContext

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"restaurant": strconv.Itoa(restaurantID),
			"ingredient": ingredientID,
		}).
		SetResult(&hc).
		Get("/restaurants/{restaurant}/ingredients/{ingredient}/history")
	if err != nil {
		return entities.HistoricalContext{}, fmt.Errorf("calling history service: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return entities.HistoricalContext{Trend: entities.TrendNoData}, nil
	}
	if resp.IsError() {
		return entities.HistoricalContext{}, fmt.Errorf("history service returned %d: %s", resp.StatusCode(), resp.String())
	}

	if hc.Trend == "" {
		hc.Trend = entities.TrendNoData
	}
	return hc, nil
}

// None is the provider used when no history service is configured.
type None struct{}

// Context always reports no data.
func (None) Context(ctx context.Context, restaurantID int, ingredientID string) (entities.HistoricalContext, error) {
	return entities.HistoricalContext{Trend: entities.TrendNoData}, nil
}
