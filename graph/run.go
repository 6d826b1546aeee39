package graph

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Run.
type Status int

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Run records a single execution of an Executor.
//
//	NotStarted -> Running(entry)      on Invoke
//	Running(s) -> Running(next)       s succeeded and has an outgoing edge
//	Running(s) -> Completed           s succeeded and has no outgoing edge
//	Running(s) -> Failed(s, cause)    s failed
type Run struct {
	id       string
	executor *Executor

	mu     sync.RWMutex
	status Status
	node   string
	path   []string
	err    error
}

func newRun(e *Executor) *Run {
	return &Run{id: uuid.NewString(), executor: e}
}

// ID returns the unique run identifier.
func (r *Run) ID() string {
	return r.id
}

// Status returns the current lifecycle status.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Node returns the node currently running, the last node of a completed run,
// or the node that failed.
func (r *Run) Node() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.node
}

// Path returns the nodes entered so far, in order.
func (r *Run) Path() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.path)
}

// Err returns the failure of a failed run.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *Run) enter(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusRunning
	r.node = node
	r.path = append(r.path, node)
}

func (r *Run) finish(status Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.err = err
}

// Invoke executes the nodes one after another starting at the entry point.
// Each handler blocks the run until it returns; no node starts before the
// previous one has finished. Invoke does not retry and does not enforce
// timeouts. A Run can be invoked only once.
func (r *Run) Invoke(ctx context.Context, state State) (State, error) {
	r.mu.Lock()
	if r.status != StatusNotStarted {
		r.mu.Unlock()
		return nil, ErrRunConsumed
	}
	r.status = StatusRunning
	r.mu.Unlock()

	e := r.executor
	logger := e.logger.With(slog.String("run_id", r.id))
	if state == nil {
		state = State{}
	}

	current := e.entry
	r.enter(current)
	if err := e.validateState(state); err != nil {
		return state, r.fail(ctx, logger, current, err)
	}
	for index := 0; ; index++ {
		n := e.nodes[current]
		if err := state.Require(n.requires...); err != nil {
			return state, r.fail(ctx, logger, current, err)
		}
		nodeCtx := NewNodeContext(ctx, &NodeContext{Name: current, RunID: r.id, Index: index})
		next, err := n.handler(nodeCtx, state)
		if err != nil {
			return state, r.fail(ctx, logger, current, err)
		}
		if next != nil {
			state = next
		}
		following, ok := e.next[current]
		if !ok {
			break
		}
		current = following
		r.enter(current)
	}
	r.finish(StatusCompleted, nil)
	logger.DebugContext(ctx, "graph: run completed", slog.Any("path", r.Path()))
	return state, nil
}

func (r *Run) fail(ctx context.Context, logger *slog.Logger, node string, cause error) error {
	err := &NodeError{Node: node, RunID: r.id, Err: cause}
	r.finish(StatusFailed, err)
	logger.DebugContext(ctx, "graph: run failed", slog.String("node", node), slog.Any("error", cause))
	return err
}
