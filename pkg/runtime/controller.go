package runtime

import (
	"context"
	"fmt"
	"log"

	"github.com/tradekit/stratrunner/pkg/eventlog"
	"github.com/tradekit/stratrunner/pkg/models"
	"github.com/tradekit/stratrunner/pkg/storage"
)

// Controller runs one strategy execution through its state machine:
// idle -> running -> {completed, error}. Terminal states are final; a new
// run is a new execution, never a resume.
type Controller struct {
	log    *eventlog.Logger
	store  storage.EphemeralStore
	runner StrategyRunner
}

// NewController creates an execution controller
func NewController(log *eventlog.Logger, store storage.EphemeralStore, runner StrategyRunner) *Controller {
	return &Controller{
		log:    log,
		store:  store,
		runner: runner,
	}
}

// Execute runs the strategy and returns a summary. Errors from the wrapped
// strategy logic never escape as raw errors: they are converted into an
// error event plus terminal status and surface only in the result message.
//
// On every exit path, success or failure, Execute flushes the live log and
// deletes the wallet execution marker. Flush is the last log operation for
// this execution; nothing may emit for it afterwards.
func (c *Controller) Execute(ctx context.Context, req ExecutionRequest) models.ExecutionResult {
	emitter := &logEmitter{log: c.log, executionID: req.ExecutionID}

	// Everything after the strategy run must still happen when the caller's
	// context is cancelled mid-run (an HTTP client disconnecting must not
	// leave the wallet marker behind), so the wrap-up uses a context detached
	// from the caller's cancellation.
	cleanupCtx := context.WithoutCancel(ctx)

	if err := c.log.SetStatus(ctx, req.ExecutionID, models.ExecutionRunning); err != nil {
		c.finish(cleanupCtx, req)
		return models.ExecutionResult{Success: false, Message: fmt.Sprintf("Failed to start execution: %v", err)}
	}

	runErr := c.runStrategy(ctx, req, emitter)

	if runErr != nil {
		// The log must never be silently empty on failure.
		if err := c.log.Emit(cleanupCtx, req.ExecutionID, models.NewErrorEvent(runErr.Error(), "Strategy execution failed")); err != nil {
			log.Printf("Failed to emit error event for execution %s: %v", req.ExecutionID, err)
		}
		if err := c.log.SetStatus(cleanupCtx, req.ExecutionID, models.ExecutionError); err != nil {
			log.Printf("Failed to set error status for execution %s: %v", req.ExecutionID, err)
		}
		c.finish(cleanupCtx, req)
		return models.ExecutionResult{Success: false, Message: runErr.Error()}
	}

	if err := c.log.SetStatus(cleanupCtx, req.ExecutionID, models.ExecutionCompleted); err != nil {
		log.Printf("Failed to set completed status for execution %s: %v", req.ExecutionID, err)
	}
	c.finish(cleanupCtx, req)
	return models.ExecutionResult{Success: true, Message: "Strategy executed successfully"}
}

// runStrategy invokes the wrapped logic, converting panics into errors so a
// misbehaving strategy cannot skip cleanup.
func (c *Controller) runStrategy(ctx context.Context, req ExecutionRequest, emitter Emitter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()

	return c.runner.Run(ctx, req.Strategy, req.PriorActions, emitter)
}

// finish flushes the live log and releases the wallet's single-flight lock.
// A missed marker deletion would wedge the wallet permanently, so it happens
// on every exit path.
func (c *Controller) finish(ctx context.Context, req ExecutionRequest) {
	if err := c.log.Flush(ctx, req.ExecutionID, req.DelegationWalletID); err != nil {
		log.Printf("Failed to flush execution %s: %v", req.ExecutionID, err)
	}

	if req.WalletAddress != "" {
		if err := c.store.Delete(ctx, storage.ExecutionMarkerKey(req.WalletAddress)); err != nil {
			log.Printf("Failed to delete execution marker for wallet %s: %v", req.WalletAddress, err)
		}
	}
}

// logEmitter binds the Emitter side channel to one execution id.
type logEmitter struct {
	log         *eventlog.Logger
	executionID string
}

func (e *logEmitter) Emit(ctx context.Context, event models.Event) error {
	return e.log.Emit(ctx, e.executionID, event)
}
