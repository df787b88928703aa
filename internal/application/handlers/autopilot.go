package handlers

import (
	"context"

	"github.com/ersonp/spellstock-core/internal/domain/services"
)

// AutopilotHandler runs the autopilot with a configured default mode.
type AutopilotHandler struct {
	autopilot   *services.Autopilot
	defaultMode services.Mode
}

// NewAutopilotHandler creates a new autopilot handler.
func NewAutopilotHandler(autopilot *services.Autopilot, defaultMode services.Mode) *AutopilotHandler {
	return &AutopilotHandler{
		autopilot:   autopilot,
		defaultMode: defaultMode,
	}
}

// Handle runs one autopilot pass. An empty mode uses the default.
func (h *AutopilotHandler) Handle(ctx context.Context, mode string) (*services.AutopilotResult, error) {
	m := h.defaultMode
	if mode != "" {
		parsed, err := services.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		m = parsed
	}
	return h.autopilot.Run(ctx, m)
}
