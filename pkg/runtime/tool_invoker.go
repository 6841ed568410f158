package runtime

import (
	"context"
	"fmt"
	"sync"
)

// StaticToolInvoker resolves tool invocations from fixed tables. It backs
// dry runs from the CLI and the runtime tests; production deployments plug
// in an invoker wrapping the real protocol SDKs.
type StaticToolInvoker struct {
	// Results maps tool name to the result returned for it
	Results map[string]ToolResult

	// Errors maps tool name to the error returned for it
	Errors map[string]error

	mu    sync.Mutex
	calls []string
}

// Invoke runs the tool and returns its outcome
func (t *StaticToolInvoker) Invoke(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error) {
	t.mu.Lock()
	t.calls = append(t.calls, name)
	t.mu.Unlock()

	if err, ok := t.Errors[name]; ok {
		return ToolResult{}, err
	}
	if result, ok := t.Results[name]; ok {
		return result, nil
	}

	return ToolResult{}, fmt.Errorf("unknown tool: %s", name)
}

// Calls returns the tool names invoked so far, in order
func (t *StaticToolInvoker) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.calls))
	copy(out, t.calls)
	return out
}
