// Package feed maintains a stable, merged view of live execution logs for a
// polling consumer. Documents vanish from the backend when an execution is
// flushed; the reconciler keeps their entries rendered through a grace
// period so the feed never flickers.
package feed

import (
	"context"

	"github.com/tradekit/stratrunner/pkg/models"
)

// SnapshotClient fetches the current live logs for a set of execution ids.
// Ids with no live document are omitted from the result.
type SnapshotClient interface {
	FetchSnapshots(ctx context.Context, executionIDs []string) ([]models.ExecutionSnapshot, error)
}

// Entry is one rendered feed item: an event tagged with its owning
// execution and its lifecycle state.
type Entry struct {
	// ExecutionID owns the event
	ExecutionID string `json:"execution_id"`

	// Event is the underlying log event
	Event models.Event `json:"event"`

	// Exiting is true once the event has vanished from the backend and is
	// riding out its grace period before removal
	Exiting bool `json:"exiting"`
}
