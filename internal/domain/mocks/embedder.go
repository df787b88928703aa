// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"
)

// Embedder is a mock implementation of ports.Embedder.
type Embedder struct {
	Vector []float32
	Err    error

	mu    sync.Mutex
	texts []string
}

// Embed records the text and returns the configured vector or error.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

// EmbedBatch embeds each text in turn.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Texts returns every text embedded so far.
func (m *Embedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}
