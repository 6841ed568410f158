// Package runtime executes trading strategies and drives the event log.
package runtime

import (
	"context"

	"github.com/tradekit/stratrunner/pkg/models"
)

// Emitter is the side channel a running strategy uses to report progress.
// Events appear in the execution's live log as they are emitted.
type Emitter interface {
	// Emit appends an event to the execution's live log
	Emit(ctx context.Context, event models.Event) error
}

// StrategyRunner is the wrapped-logic boundary: it executes a strategy
// definition, emitting events as it goes, and returns an error on failure.
// The controller does not control its emission cadence.
type StrategyRunner interface {
	// Run executes the strategy
	Run(ctx context.Context, def models.StrategyDefinition, priorActions []models.ActionRecord, emitter Emitter) error
}

// ToolInvoker executes a named tool on behalf of a strategy. Implementations
// wrap the external protocol SDK calls.
type ToolInvoker interface {
	// Invoke runs the tool and returns its outcome
	Invoke(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error)
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	// Result is the free-text outcome
	Result string `json:"result"`

	// TxHash is the transaction hash, if the tool touched the chain
	TxHash string `json:"tx_hash,omitempty"`

	// BlockNumber is the block the transaction landed in, if any
	BlockNumber int64 `json:"block_number,omitempty"`
}

// ExecutionRequest describes one strategy run.
type ExecutionRequest struct {
	// ExecutionID is the execution/subscription id
	ExecutionID string `json:"execution_id"`

	// WalletAddress is the wallet the run holds the single-flight lock for
	WalletAddress string `json:"wallet_address"`

	// DelegationWalletID identifies the delegation wallet in action records
	DelegationWalletID string `json:"delegation_wallet_id"`

	// Strategy is the definition to execute
	Strategy models.StrategyDefinition `json:"strategy"`

	// PriorActions give the strategy context about earlier runs
	PriorActions []models.ActionRecord `json:"prior_actions,omitempty"`
}
