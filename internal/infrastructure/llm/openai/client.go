// Package openai provides an IntentTranslator implementation using OpenAI.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
)

const translatePrompt = `You translate a restaurant operator's request about inventory actions into one JSON command.

Return ONLY a JSON object with these fields:
- intent: one of VIEW, FILTER, ADD, MODIFY, EXECUTE, REMOVE, RESET
- filter: object with optional status (proposed, approved, executed, rejected, rolled_back),
  owner_role (Purchasing, Kitchen, VendorOps), risk_level (low, medium, high, critical),
  action_type, ingredient, reason_contains
- action_ids: list of action ids or id prefixes the operator named, if any
- operation: for MODIFY only, "approve" or "reject"
- reason: free-text reason the operator gave, if any
- draft: for ADD only, an object with action_type, risk_level, reason and payload
  {ingredient, quantity, unit, vendor, due_time, par_change_pct, from_location, to_location, notes}

Action types: draft_po, create_task, adjust_par, update_delivery_eta, transfer_stock, acknowledge_alert.
Ingredient ids use snake_case, e.g. "chicken_breast".
Use FILTER when the operator narrows what they are looking at, VIEW when they only ask to see.
Never invent action ids.

The operator's current filter is: %s`

// Translator implements ports.IntentTranslator using an OpenAI chat model in
// JSON mode. It only produces commands; it never touches action state.
type Translator struct {
	client *openai.Client
	model  string
}

// NewTranslator creates a new OpenAI intent translator.
func NewTranslator(cfg config.LLMConfig) (*Translator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Translator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Translate turns text into a validated command.
func (t *Translator) Translate(ctx context.Context, text string, current entities.ActionFilter) (*entities.Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &entities.ValidationError{Field: "text", Message: "is required"}
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(translatePrompt, current.String()),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := cleanJSONResponse(resp.Choices[0].Message.Content)
	return parseCommand(content)
}

// rawCommand is the JSON structure the model returns.
type rawCommand struct {
	Intent    string          `json:"intent"`
	Filter    rawFilter       `json:"filter"`
	ActionIDs []string        `json:"action_ids"`
	Operation string          `json:"operation"`
	Reason    string          `json:"reason"`
	Draft     *rawActionDraft `json:"draft"`
}

type rawFilter struct {
	Status         string `json:"status"`
	OwnerRole      string `json:"owner_role"`
	RiskLevel      string `json:"risk_level"`
	ActionType     string `json:"action_type"`
	Ingredient     string `json:"ingredient"`
	ReasonContains string `json:"reason_contains"`
}

type rawActionDraft struct {
	ActionType string           `json:"action_type"`
	RiskLevel  string           `json:"risk_level"`
	Reason     string           `json:"reason"`
	Payload    entities.Payload `json:"payload"`
}

// parseCommand decodes and validates model output. Anything outside the
// closed vocabulary is a ValidationError.
func parseCommand(content string) (*entities.Command, error) {
	var raw rawCommand
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing command JSON: %w (response: %s)", err, content)
	}

	intent, err := entities.ParseIntent(raw.Intent)
	if err != nil {
		return nil, err
	}

	cmd := &entities.Command{
		Intent: intent,
		Filter: entities.ActionFilter{
			Status:         entities.ActionStatus(strings.ToLower(raw.Filter.Status)),
			OwnerRole:      entities.OwnerRole(raw.Filter.OwnerRole),
			RiskLevel:      entities.RiskLevel(strings.ToLower(raw.Filter.RiskLevel)),
			ActionType:     entities.ActionType(strings.ToLower(raw.Filter.ActionType)),
			Ingredient:     raw.Filter.Ingredient,
			ReasonContains: raw.Filter.ReasonContains,
		},
		Reason: raw.Reason,
	}
	if err := cmd.Filter.Validate(); err != nil {
		return nil, err
	}

	for _, id := range raw.ActionIDs {
		if id = strings.TrimSpace(id); id != "" {
			cmd.ActionIDs = append(cmd.ActionIDs, id)
		}
	}

	if intent == entities.IntentModify {
		op, err := entities.ParseOperation(raw.Operation)
		if err != nil {
			return nil, err
		}
		if op == entities.OpExecute {
			return nil, &entities.ValidationError{Field: "operation", Value: raw.Operation, Message: "MODIFY supports approve or reject"}
		}
		cmd.Operation = op
	}

	if intent == entities.IntentAdd {
		if raw.Draft == nil {
			return nil, &entities.ValidationError{Field: "draft", Message: "is required for ADD"}
		}
		actionType, err := entities.ParseActionType(strings.ToLower(raw.Draft.ActionType))
		if err != nil {
			return nil, &entities.ValidationError{Field: "draft.action_type", Value: raw.Draft.ActionType, Message: "unknown action type"}
		}
		risk := entities.RiskLevel(strings.ToLower(raw.Draft.RiskLevel))
		if risk != "" && !risk.IsValid() {
			return nil, &entities.ValidationError{Field: "draft.risk_level", Value: raw.Draft.RiskLevel, Message: "unknown risk level"}
		}
		cmd.Draft = &entities.ActionDraft{
			Type:      actionType,
			Payload:   raw.Draft.Payload,
			RiskLevel: risk,
			Reason:    raw.Draft.Reason,
		}
	}

	return cmd, nil
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
