// Package trigger schedules strategy executions.
package trigger

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tradekit/stratrunner/pkg/models"
	"github.com/tradekit/stratrunner/pkg/runtime"
	"github.com/tradekit/stratrunner/pkg/storage"
)

// Subscription binds a strategy to a wallet on a schedule.
type Subscription struct {
	// ID is the subscription/execution id
	ID string `json:"id"`

	// WalletAddress holds the single-flight lock for triggered runs
	WalletAddress string `json:"wallet_address"`

	// DelegationWalletID identifies the delegation wallet in action records
	DelegationWalletID string `json:"delegation_wallet_id"`

	// Strategy to execute; its Schedule field is the cron expression
	Strategy models.StrategyDefinition `json:"strategy"`
}

// Scheduler fires strategy executions on their cron schedules. Before each
// triggered run it sets the wallet execution marker so a wallet never has
// two concurrent triggered runs; the execution controller deletes the
// marker on every exit path.
type Scheduler struct {
	cron       *cron.Cron
	controller *runtime.Controller
	store      storage.EphemeralStore

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a trigger scheduler. Cron expressions use the
// seconds field.
func NewScheduler(controller *runtime.Controller, store storage.EphemeralStore) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		controller: controller,
		store:      store,
		entries:    make(map[string]cron.EntryID),
	}
}

// Start begins firing scheduled subscriptions
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for in-flight triggered runs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Add registers a subscription. A subscription already registered under the
// same id is replaced.
func (s *Scheduler) Add(sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[sub.ID]; ok {
		s.cron.Remove(existing)
		delete(s.entries, sub.ID)
	}

	entryID, err := s.cron.AddFunc(sub.Strategy.Schedule, func() {
		s.runOnce(sub)
	})
	if err != nil {
		return err
	}

	s.entries[sub.ID] = entryID
	return nil
}

// Remove deregisters a subscription
func (s *Scheduler) Remove(subscriptionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[subscriptionID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, subscriptionID)
	}
}

// runOnce executes one triggered run, honoring the wallet's single-flight
// lock: if the marker is already present the tick is skipped.
//
// The check-then-set below is not atomic. It assumes a single scheduler
// process per backend; two schedulers sharing one Redis could both pass the
// check and run concurrently for the same wallet.
func (s *Scheduler) runOnce(sub Subscription) {
	ctx := context.Background()
	markerKey := storage.ExecutionMarkerKey(sub.WalletAddress)

	if _, err := s.store.Get(ctx, markerKey); err == nil {
		log.Printf("Skipping triggered run for wallet %s: execution already in flight", sub.WalletAddress)
		return
	} else if err != storage.ErrKeyNotFound {
		log.Printf("Failed to check execution marker for wallet %s: %v", sub.WalletAddress, err)
		return
	}

	if err := s.store.Put(ctx, markerKey, []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
		log.Printf("Failed to set execution marker for wallet %s: %v", sub.WalletAddress, err)
		return
	}

	result := s.controller.Execute(ctx, runtime.ExecutionRequest{
		ExecutionID:        sub.ID,
		WalletAddress:      sub.WalletAddress,
		DelegationWalletID: sub.DelegationWalletID,
		Strategy:           sub.Strategy,
	})

	if !result.Success {
		log.Printf("Triggered run for subscription %s failed: %s", sub.ID, result.Message)
	}
}
