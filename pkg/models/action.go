package models

import "time"

// ActionRecord is the durable representation of one noteworthy execution
// step. Records are derived from tool_result and error events at flush time;
// all other event types exist only to animate the live feed and are dropped.
type ActionRecord struct {
	// SubscriptionID is the execution/subscription this action belongs to
	SubscriptionID string `json:"subscription_id"`

	// DelegationWalletID is the wallet the strategy acted on behalf of
	DelegationWalletID string `json:"delegation_wallet_id"`

	// ActionType categorizes the action
	ActionType string `json:"action_type"`

	// Description is the human-readable outcome
	Description string `json:"description"`

	// Note is an optional annotation carried over from the event
	Note string `json:"note,omitempty"`

	// TxHash is the transaction hash, if any
	TxHash string `json:"tx_hash,omitempty"`

	// BlockNumber is the block the transaction landed in, if any
	BlockNumber int64 `json:"block_number,omitempty"`

	// Status of the action ("completed" or "failed")
	Status string `json:"status"`

	// CreatedAt is copied from the source event's timestamp
	CreatedAt time.Time `json:"created_at"`
}
