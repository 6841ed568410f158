package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/dop251/goja"

	"github.com/tradekit/stratrunner/pkg/models"
)

// ScriptRunner executes JavaScript strategy code in a goja VM. The script
// gets three host bindings:
//
//	emit(type, payload)  - append an event to the live log
//	tool(name, args)     - invoke a tool; emits tool_call/tool_result around
//	                       the invocation and returns {result, txHash, blockNumber}
//	console.log(...)     - operational logging
//
// Tool failures and invalid emits are thrown into the script; an uncaught
// throw fails the run.
type ScriptRunner struct {
	tools ToolInvoker
}

// NewScriptRunner creates a script runner over the given tool invoker
func NewScriptRunner(tools ToolInvoker) *ScriptRunner {
	return &ScriptRunner{tools: tools}
}

// Run executes the strategy code
func (r *ScriptRunner) Run(ctx context.Context, def models.StrategyDefinition, priorActions []models.ActionRecord, emitter Emitter) error {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	// Stop the script if the caller's context is cancelled
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-watchdogDone:
		}
	}()

	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]interface{}, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			parts = append(parts, a.Export())
		}
		log.Println(append([]interface{}{"[Strategy]"}, parts...)...)
		return goja.Undefined()
	})
	vm.Set("console", console)

	vm.Set("params", def.Params)
	vm.Set("priorActions", priorActions)

	vm.Set("emit", func(call goja.FunctionCall) goja.Value {
		event, err := eventFromScript(call)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		if err := emitter.Emit(ctx, event); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})

	vm.Set("tool", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(vm.NewGoError(fmt.Errorf("tool requires a name")))
		}
		name := call.Argument(0).String()

		var args map[string]interface{}
		if len(call.Arguments) > 1 {
			args, _ = call.Argument(1).Export().(map[string]interface{})
		}

		if err := emitter.Emit(ctx, models.NewToolCallEvent(name, args)); err != nil {
			panic(vm.NewGoError(err))
		}

		result, err := r.tools.Invoke(ctx, name, args)
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("tool %s failed: %w", name, err)))
		}

		if err := emitter.Emit(ctx, models.NewToolResultEvent(name, result.Result, result.TxHash, result.BlockNumber)); err != nil {
			panic(vm.NewGoError(err))
		}

		return vm.ToValue(result)
	})

	if _, err := vm.RunString(def.Code); err != nil {
		return fmt.Errorf("strategy %s failed: %w", def.Name, err)
	}

	return nil
}

// eventFromScript converts an emit(type, payload) call into an event.
func eventFromScript(call goja.FunctionCall) (models.Event, error) {
	if len(call.Arguments) < 1 {
		return models.Event{}, fmt.Errorf("emit requires an event type")
	}

	eventType := models.EventType(call.Argument(0).String())
	if !eventType.Valid() {
		return models.Event{}, fmt.Errorf("invalid event type: %q", eventType)
	}

	var payload models.EventPayload
	if len(call.Arguments) > 1 {
		raw, err := json.Marshal(call.Argument(1).Export())
		if err != nil {
			return models.Event{}, fmt.Errorf("invalid event payload: %w", err)
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return models.Event{}, fmt.Errorf("invalid event payload: %w", err)
		}
	}

	return models.Event{Type: eventType, Payload: payload}, nil
}
