package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// Executor is a mock implementation of ports.Executor. It is safe for
// concurrent use.
type Executor struct {
	PerformErr    error
	CompensateErr error
	// FailFor makes Perform fail only for the listed ingredients.
	FailFor map[string]error
	// Gate, when set, holds every Perform call until it is closed. Started
	// receives one value per call before the wait.
	Gate    chan struct{}
	Started chan struct{}

	mu              sync.Mutex
	performCalls    []entities.Payload
	compensateCalls []entities.Payload
}

// Perform records the call and returns the configured error or a result.
func (m *Executor) Perform(ctx context.Context, actionType entities.ActionType, payload entities.Payload) (*entities.ExecutionResult, error) {
	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.performCalls = append(m.performCalls, payload)
	if err, ok := m.FailFor[payload.Ingredient]; ok {
		return nil, err
	}
	if m.PerformErr != nil {
		return nil, m.PerformErr
	}
	return &entities.ExecutionResult{
		Reference: fmt.Sprintf("mock-%s-%d", actionType, len(m.performCalls)),
		Message:   "ok",
	}, nil
}

// Compensate records the call and returns the configured error.
func (m *Executor) Compensate(ctx context.Context, actionType entities.ActionType, payload entities.Payload, result *entities.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compensateCalls = append(m.compensateCalls, payload)
	return m.CompensateErr
}

// PerformCallCount returns how many times Perform was called.
func (m *Executor) PerformCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.performCalls)
}

// CompensateCallCount returns how many times Compensate was called.
func (m *Executor) CompensateCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.compensateCalls)
}
