package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// Executor represents a compiled graph ready for execution.
// It holds no per-run state and may be shared by concurrent runs,
// each of which owns its own State.
type Executor struct {
	entry  string
	nodes  map[string]node
	next   map[string]string
	path   []string
	schema *jsonschema.Resolved
	logger *slog.Logger
}

// Entry returns the name of the entry node.
func (e *Executor) Entry() string {
	return e.entry
}

// Path returns the node names in execution order.
func (e *Executor) Path() []string {
	return slices.Clone(e.path)
}

// NewRun creates a run record in the NotStarted status.
func (e *Executor) NewRun() *Run {
	return newRun(e)
}

// Invoke runs the graph from its entry point over state and returns the
// final state. On failure it returns the state as last mutated and a *NodeError.
func (e *Executor) Invoke(ctx context.Context, state State) (State, error) {
	return e.NewRun().Invoke(ctx, state)
}

// validateState checks the initial state against the compiled schema.
// The state is normalized through JSON so typed records validate the same
// way as generic maps.
func (e *Executor) validateState(state State) error {
	if e.schema == nil {
		return nil
	}
	b, err := json.Marshal(state)
	if err != nil {
		return &SchemaError{Err: err}
	}
	var instance map[string]any
	if err := json.Unmarshal(b, &instance); err != nil {
		return &SchemaError{Err: err}
	}
	if instance == nil {
		instance = map[string]any{}
	}
	if err := e.schema.Validate(instance); err != nil {
		return &SchemaError{Err: err}
	}
	return nil
}
