package mocks

import (
	"context"
	"sync/atomic"
)

// CollectionManager is a mock implementation of ports.CollectionManager.
type CollectionManager struct {
	EnsureErr error
	DeleteErr error

	// LastVectorSize is the size passed to the most recent EnsureCollection.
	LastVectorSize uint64

	ensureCalls atomic.Int32
	deleteCalls atomic.Int32
}

// EnsureCollection records the vector size and returns the configured error.
func (m *CollectionManager) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	m.ensureCalls.Add(1)
	m.LastVectorSize = vectorSize
	return m.EnsureErr
}

// DeleteCollection returns the configured error.
func (m *CollectionManager) DeleteCollection(ctx context.Context) error {
	m.deleteCalls.Add(1)
	return m.DeleteErr
}

// EnsureCalls returns how many times EnsureCollection was called.
func (m *CollectionManager) EnsureCalls() int { return int(m.ensureCalls.Load()) }

// DeleteCalls returns how many times DeleteCollection was called.
func (m *CollectionManager) DeleteCalls() int { return int(m.deleteCalls.Load()) }
