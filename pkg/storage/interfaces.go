// Package storage provides the ephemeral and durable storage boundaries.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradekit/stratrunner/pkg/models"
)

// Errors returned by storage backends
var (
	// ErrKeyNotFound is returned by Get when a key has no value
	ErrKeyNotFound = errors.New("key not found")
)

// EphemeralStore is a minimal key/value abstraction over transient state:
// live execution logs and wallet execution markers. Values are opaque bytes;
// callers do their own encoding.
type EphemeralStore interface {
	// Get retrieves the value for a key, or ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores the value for a key, overwriting any previous value
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close cleans up resources
	Close() error
}

// ActionStore is the durable batch-write boundary for action records.
type ActionStore interface {
	// SaveActions persists a batch of action records
	SaveActions(ctx context.Context, actions []models.ActionRecord) error

	// ListActions returns all persisted actions for a subscription
	ListActions(ctx context.Context, subscriptionID string) ([]models.ActionRecord, error)

	// Close cleans up resources
	Close() error
}

// EventLogKey returns the ephemeral key holding an execution's live log.
func EventLogKey(executionID string) string {
	return fmt.Sprintf("events:%s", executionID)
}

// ExecutionMarkerKey returns the single-flight lock key for a wallet.
func ExecutionMarkerKey(walletAddress string) string {
	return fmt.Sprintf("execution:%s", walletAddress)
}
