// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/spellstock-core/internal/domain/ports"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
)

// InitHandler handles workspace initialization.
type InitHandler struct {
	collectionManager ports.CollectionManager
	vectorSize        uint64
}

// NewInitHandler creates a new init handler. collectionManager may be nil
// when no alert index is configured.
func NewInitHandler(collectionManager ports.CollectionManager, vectorSize uint64) *InitHandler {
	return &InitHandler{
		collectionManager: collectionManager,
		vectorSize:        vectorSize,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath        string
	CollectionCreated bool
}

// Handle writes the default configuration and prepares the alert index.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("spellstock already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	if _, err := config.Load(basePath); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	result := &InitResult{ConfigPath: config.ConfigFilePath(basePath)}
	if h.collectionManager != nil {
		if err := h.collectionManager.EnsureCollection(ctx, h.vectorSize); err != nil {
			return nil, fmt.Errorf("creating collection: %w", err)
		}
		result.CollectionCreated = true
	}

	return result, nil
}
