// Package eventlog maintains the ephemeral per-execution event log and its
// flush-to-durable reconciliation.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tradekit/stratrunner/pkg/models"
	"github.com/tradekit/stratrunner/pkg/storage"
)

// Notifier receives a callback whenever an execution's live log changes.
// Used to push updates to websocket subscribers; may be nil.
type Notifier interface {
	ExecutionUpdated(executionID string, log models.ExecutionLog)
}

// Logger appends structured events to an execution's ephemeral document,
// updates its status, and flushes persistable events to durable storage.
//
// Emit and SetStatus are read-modify-write with no compare-and-swap. Steps
// within one execution run sequentially, so a single run never races with
// itself; two writers on the same execution id can lose updates (see the
// race test).
type Logger struct {
	store    storage.EphemeralStore
	actions  storage.ActionStore
	notifier Notifier
}

// NewLogger creates an event logger over the given stores. notifier may be nil.
func NewLogger(store storage.EphemeralStore, actions storage.ActionStore, notifier Notifier) *Logger {
	return &Logger{
		store:    store,
		actions:  actions,
		notifier: notifier,
	}
}

// SetNotifier installs the update notifier. Call during wiring, before the
// logger sees traffic.
func (l *Logger) SetNotifier(notifier Notifier) {
	l.notifier = notifier
}

// Emit appends an event to the execution's live log. If no document exists
// one is created with status running. The event's id and timestamp are
// assigned here; timestamps are non-decreasing within one document.
func (l *Logger) Emit(ctx context.Context, executionID string, event models.Event) error {
	if !event.Type.Valid() {
		return fmt.Errorf("invalid event type: %q", event.Type)
	}

	doc, err := l.readOrDefault(ctx, executionID, models.ExecutionRunning)
	if err != nil {
		return err
	}

	event.ID = uuid.New().String()
	event.Timestamp = time.Now().UTC()

	// Clamp against clock regressions so timestamps never go backwards
	// within a document.
	if n := len(doc.Events); n > 0 && event.Timestamp.Before(doc.Events[n-1].Timestamp) {
		event.Timestamp = doc.Events[n-1].Timestamp
	}

	doc.Events = append(doc.Events, event)

	if err := l.write(ctx, executionID, doc); err != nil {
		return err
	}

	l.notify(executionID, doc)
	return nil
}

// SetStatus overwrites the execution's status, leaving events untouched. If
// no document exists one is created with status idle before the overwrite.
func (l *Logger) SetStatus(ctx context.Context, executionID string, status models.ExecutionStatus) error {
	doc, err := l.readOrDefault(ctx, executionID, models.ExecutionIdle)
	if err != nil {
		return err
	}

	doc.Status = status

	if err := l.write(ctx, executionID, doc); err != nil {
		return err
	}

	l.notify(executionID, doc)
	return nil
}

// Snapshot returns the execution's live log. Absence is reported as
// storage.ErrKeyNotFound, distinct from an empty log.
func (l *Logger) Snapshot(ctx context.Context, executionID string) (models.ExecutionLog, error) {
	data, err := l.store.Get(ctx, storage.EventLogKey(executionID))
	if err != nil {
		return models.ExecutionLog{}, err
	}

	var doc models.ExecutionLog
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.ExecutionLog{}, fmt.Errorf("failed to decode execution log %s: %w", executionID, err)
	}

	return doc, nil
}

// Flush drains the execution's persistable events to durable storage and
// deletes the live document. Persistence runs detached: the durable write is
// issued in the background and never awaited, and its failure is logged and
// otherwise ignored. The document is deleted unconditionally, so a failed
// durable write loses that run's detail. Cleanup wins over persistence here.
func (l *Logger) Flush(ctx context.Context, executionID, delegationWalletID string) error {
	key := storage.EventLogKey(executionID)

	data, err := l.store.Get(ctx, key)
	if err == storage.ErrKeyNotFound {
		// Nothing to flush; deleting an absent key keeps this idempotent.
		return l.store.Delete(ctx, key)
	}
	if err != nil {
		return err
	}

	var doc models.ExecutionLog
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode execution log %s: %w", executionID, err)
	}

	if records := deriveActions(executionID, delegationWalletID, doc.Events); len(records) > 0 {
		go func() {
			// Detached from the caller's context on purpose: flush returns
			// before this write finishes.
			if err := l.actions.SaveActions(context.Background(), records); err != nil {
				log.Printf("Failed to persist %d action(s) for execution %s: %v", len(records), executionID, err)
			}
		}()
	}

	return l.store.Delete(ctx, key)
}

// readOrDefault loads the execution's document, substituting an empty one
// with the given status when the key is absent.
func (l *Logger) readOrDefault(ctx context.Context, executionID string, defaultStatus models.ExecutionStatus) (models.ExecutionLog, error) {
	doc, err := l.Snapshot(ctx, executionID)
	if err == storage.ErrKeyNotFound {
		return models.ExecutionLog{Status: defaultStatus, Events: []models.Event{}}, nil
	}
	if err != nil {
		return models.ExecutionLog{}, err
	}

	return doc, nil
}

func (l *Logger) write(ctx context.Context, executionID string, doc models.ExecutionLog) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode execution log %s: %w", executionID, err)
	}

	return l.store.Put(ctx, storage.EventLogKey(executionID), data)
}

func (l *Logger) notify(executionID string, doc models.ExecutionLog) {
	if l.notifier != nil {
		l.notifier.ExecutionUpdated(executionID, doc)
	}
}

// deriveActions maps the persistable subset of events (tool_result, error)
// to action records. All other event types are dropped.
func deriveActions(subscriptionID, delegationWalletID string, events []models.Event) []models.ActionRecord {
	records := make([]models.ActionRecord, 0)
	for _, event := range events {
		switch event.Type {
		case models.EventToolResult:
			records = append(records, models.ActionRecord{
				SubscriptionID:     subscriptionID,
				DelegationWalletID: delegationWalletID,
				ActionType:         "execution",
				Status:             "completed",
				Description:        event.Payload.Result,
				Note:               event.Payload.Note,
				TxHash:             event.Payload.TxHash,
				BlockNumber:        event.Payload.BlockNumber,
				CreatedAt:          event.Timestamp,
			})
		case models.EventError:
			records = append(records, models.ActionRecord{
				SubscriptionID:     subscriptionID,
				DelegationWalletID: delegationWalletID,
				ActionType:         "execution",
				Status:             "failed",
				Description:        event.Payload.Error,
				Note:               event.Payload.Note,
				CreatedAt:          event.Timestamp,
			})
		}
	}

	return records
}
