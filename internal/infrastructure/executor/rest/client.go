// Package rest provides an Executor that calls the restaurant operations API.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
)

const defaultTimeout = 10 * time.Second

// Client implements ports.Executor over HTTP.
//
//	POST {base}/actions/{type}             -> 2xx ExecutionResult
//	POST {base}/actions/{type}/compensate  -> 2xx, 501 when no compensator exists
type Client struct {
	http *resty.Client
}

// NewClient creates a new executor client.
func NewClient(cfg config.ExecutorConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("executor base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}

	return &Client{http: c}, nil
}

type performRequest struct {
	Payload entities.Payload `json:"payload"`
}

type compensateRequest struct {
	Payload entities.Payload          `json:"payload"`
	Result  *entities.ExecutionResult `json:"execution_result,omitempty"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Perform runs the side effect of an action.
func (c *Client) Perform(ctx context.Context, actionType entities.ActionType, payload entities.Payload) (*entities.ExecutionResult, error) {
	var result entities.ExecutionResult
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("type", string(actionType)).
		SetBody(performRequest{Payload: payload}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/actions/{type}")
	if err != nil {
		return nil, fmt.Errorf("calling executor: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp, &apiErr)
	}
	if result.Reference == "" {
		return nil, fmt.Errorf("executor returned no reference for %s", actionType)
	}

	return &result, nil
}

// Compensate reverses a performed action.
func (c *Client) Compensate(ctx context.Context, actionType entities.ActionType, payload entities.Payload, result *entities.ExecutionResult) error {
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("type", string(actionType)).
		SetBody(compensateRequest{Payload: payload, Result: result}).
		SetError(&apiErr).
		Post("/actions/{type}/compensate")
	if err != nil {
		return fmt.Errorf("calling executor: %w", err)
	}
	if resp.StatusCode() == http.StatusNotImplemented {
		return fmt.Errorf("%s: %w", actionType, entities.ErrNoCompensator)
	}
	if resp.IsError() {
		return statusError(resp, &apiErr)
	}

	return nil
}

func statusError(resp *resty.Response, apiErr *apiError) error {
	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Error
	}
	if msg == "" {
		msg = resp.String()
	}
	return fmt.Errorf("executor returned %d: %s", resp.StatusCode(), msg)
}
