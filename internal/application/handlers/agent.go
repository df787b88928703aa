package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

// AgentHandler turns operator text into commands and dispatches them. The
// translator only proposes a command; every state change goes through the
// dispatcher and the lifecycle manager.
type AgentHandler struct {
	translator ports.IntentTranslator
	dispatcher *services.CommandDispatcher
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(translator ports.IntentTranslator, dispatcher *services.CommandDispatcher) *AgentHandler {
	return &AgentHandler{
		translator: translator,
		dispatcher: dispatcher,
	}
}

// AgentResult pairs the translated command with its outcome.
type AgentResult struct {
	Command *entities.Command       `json:"command"`
	Result  *services.CommandResult `json:"result"`
}

// Handle translates and dispatches one message within session.
func (h *AgentHandler) Handle(ctx context.Context, session *services.Session, text string) (*AgentResult, error) {
	cmd, err := h.translator.Translate(ctx, text, session.CurrentFilter())
	if err != nil {
		return nil, fmt.Errorf("translating request: %w", err)
	}
	return h.Dispatch(ctx, session, cmd)
}

// Dispatch runs an already typed command.
func (h *AgentHandler) Dispatch(ctx context.Context, session *services.Session, cmd *entities.Command) (*AgentResult, error) {
	res, err := h.dispatcher.Dispatch(ctx, session, cmd, entities.ActorHuman)
	if err != nil {
		return nil, err
	}
	return &AgentResult{Command: cmd, Result: res}, nil
}
