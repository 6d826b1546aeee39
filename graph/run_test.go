package graph

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/jsonschema-go/jsonschema"
)

func TestRunStatusTransitions(t *testing.T) {
	var seen []Status
	var run *Run
	g := New()
	observe := func(name string) Handler {
		return func(ctx context.Context, state State) (State, error) {
			seen = append(seen, run.Status())
			if got := run.Node(); got != name {
				t.Errorf("expected current node %s, got %s", name, got)
			}
			return stepHandler(name)(ctx, state)
		}
	}
	mustAddNode(t, g, "A", observe("A"))
	mustAddNode(t, g, "B", observe("B"))
	mustAddEdge(t, g, "A", "B")
	if err := g.SetEntryPoint("A"); err != nil {
		t.Fatalf("SetEntryPoint error: %v", err)
	}
	executor, err := g.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	run = executor.NewRun()
	if run.Status() != StatusNotStarted {
		t.Fatalf("expected not_started, got %s", run.Status())
	}
	if run.ID() == "" {
		t.Fatalf("expected run id")
	}
	if _, err := run.Invoke(context.Background(), nil); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if diff := cmp.Diff([]Status{StatusRunning, StatusRunning}, seen); diff != "" {
		t.Fatalf("unexpected statuses during run (-want +got):\n%s", diff)
	}
	if run.Status() != StatusCompleted || run.Node() != "B" || run.Err() != nil {
		t.Fatalf("expected completed at B, got %s at %s (%v)", run.Status(), run.Node(), run.Err())
	}
	if diff := cmp.Diff([]string{"A", "B"}, run.Path()); diff != "" {
		t.Fatalf("unexpected path (-want +got):\n%s", diff)
	}

	again, err := run.Invoke(context.Background(), State{"reused": true})
	if !errors.Is(err, ErrRunConsumed) {
		t.Fatalf("expected run consumed error, got %v", err)
	}
	if again != nil {
		t.Fatalf("expected no state from a consumed run, got %v", again)
	}
}

func TestRunErrorPropagation(t *testing.T) {
	boom := errors.New("boom")
	cCalled := false
	g := New()
	mustAddNode(t, g, "A", func(ctx context.Context, state State) (State, error) {
		state["a"] = 1
		return state, nil
	})
	mustAddNode(t, g, "B", func(ctx context.Context, state State) (State, error) {
		state["b"] = "partial"
		return nil, boom
	})
	mustAddNode(t, g, "C", func(ctx context.Context, state State) (State, error) {
		cCalled = true
		return state, nil
	})
	mustAddEdge(t, g, "A", "B")
	mustAddEdge(t, g, "B", "C")
	if err := g.SetEntryPoint("A"); err != nil {
		t.Fatalf("SetEntryPoint error: %v", err)
	}
	executor, err := g.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	run := executor.NewRun()
	state, err := run.Invoke(context.Background(), State{})
	if err == nil || !strings.Contains(err.Error(), "node B") {
		t.Fatalf("expected error from node B, got %v", err)
	}
	if !errors.Is(err, ErrNodeFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected node error wrapping cause, got %v", err)
	}
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) || nodeErr.Node != "B" || nodeErr.RunID != run.ID() {
		t.Fatalf("expected NodeError for B in run %s, got %+v", run.ID(), nodeErr)
	}
	if cCalled {
		t.Fatalf("run must halt at the failing node")
	}
	if run.Status() != StatusFailed || run.Node() != "B" || !errors.Is(run.Err(), boom) {
		t.Fatalf("expected failed at B, got %s at %s (%v)", run.Status(), run.Node(), run.Err())
	}
	// prior mutations are kept, no rollback
	if diff := cmp.Diff(State{"a": 1, "b": "partial"}, state); diff != "" {
		t.Fatalf("unexpected state after failure (-want +got):\n%s", diff)
	}
}

func TestRunNilStateKeepsCurrent(t *testing.T) {
	g := New()
	mustAddNode(t, g, "set", func(ctx context.Context, state State) (State, error) {
		state[valueKey] = 42
		return nil, nil
	})
	mustAddNode(t, g, "read", func(ctx context.Context, state State) (State, error) {
		v, err := Get[int](state, valueKey)
		if err != nil {
			return nil, err
		}
		state["double"] = v * 2
		return state, nil
	})
	mustAddEdge(t, g, "set", "read")
	if err := g.SetEntryPoint("set"); err != nil {
		t.Fatalf("SetEntryPoint error: %v", err)
	}
	executor, err := g.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	result, err := executor.Invoke(context.Background(), nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if result["double"] != 84 {
		t.Fatalf("expected 84, got %v", result["double"])
	}
}

func TestRunRequires(t *testing.T) {
	called := false
	g := New()
	mustAddNode(t, g, "A", func(ctx context.Context, state State) (State, error) {
		called = true
		return state, nil
	}, Requires("plan"))
	if err := g.SetEntryPoint("A"); err != nil {
		t.Fatalf("SetEntryPoint error: %v", err)
	}
	executor, err := g.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	_, err = executor.Invoke(context.Background(), State{})
	if !errors.Is(err, ErrMissingField) || !errors.Is(err, ErrNodeFailed) {
		t.Fatalf("expected missing field node error, got %v", err)
	}
	if called {
		t.Fatalf("handler must not run when required fields are missing")
	}

	if _, err := executor.Invoke(context.Background(), State{"plan": "x"}); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !called {
		t.Fatalf("expected handler to run")
	}
}

func TestRunNodeContext(t *testing.T) {
	var got []NodeContext
	record := func(ctx context.Context, state State) (State, error) {
		nc, ok := FromNodeContext(ctx)
		if !ok {
			t.Fatalf("expected node context")
		}
		got = append(got, *nc)
		return state, nil
	}
	g := New()
	mustAddNode(t, g, "A", record)
	mustAddNode(t, g, "B", record)
	mustAddEdge(t, g, "A", "B")
	if err := g.SetEntryPoint("A"); err != nil {
		t.Fatalf("SetEntryPoint error: %v", err)
	}
	executor, err := g.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	run := executor.NewRun()
	if _, err := run.Invoke(context.Background(), nil); err != nil {
		t.Fatalf("run error: %v", err)
	}
	want := []NodeContext{
		{Name: "A", RunID: run.ID(), Index: 0},
		{Name: "B", RunID: run.ID(), Index: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected node contexts (-want +got):\n%s", diff)
	}
}

type recordState struct {
	Plan  *recordPlan `json:"plan,omitempty"`
	Count int         `json:"count,omitempty"`
}

type recordPlan struct {
	Date string `json:"date"`
}

func TestRunSchemaValidation(t *testing.T) {
	schema, err := jsonschema.For[recordState](nil)
	if err != nil {
		t.Fatalf("schema error: %v", err)
	}
	called := false
	g := New(WithSchema(schema))
	mustAddNode(t, g, "A", func(ctx context.Context, state State) (State, error) {
		called = true
		return state, nil
	})
	if err := g.SetEntryPoint("A"); err != nil {
		t.Fatalf("SetEntryPoint error: %v", err)
	}
	executor, err := g.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	t.Run("valid", func(t *testing.T) {
		if _, err := executor.Invoke(context.Background(), State{"plan": recordPlan{Date: "2025-06-01"}, "count": 3}); err != nil {
			t.Fatalf("run error: %v", err)
		}
		if !called {
			t.Fatalf("expected handler to run")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		called = false
		run := executor.NewRun()
		_, err := run.Invoke(context.Background(), State{"count": "three"})
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("expected schema error, got %v", err)
		}
		if called {
			t.Fatalf("handler must not run for invalid state")
		}
		if run.Status() != StatusFailed || run.Node() != "A" {
			t.Fatalf("expected failed at entry, got %s at %s", run.Status(), run.Node())
		}
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g := New(WithMiddleware(Logging(logger)), WithLogger(logger))
	mustAddNode(t, g, "ok", stepHandler("ok"))
	mustAddNode(t, g, "bad", func(ctx context.Context, state State) (State, error) {
		return nil, errors.New("bad input")
	})
	mustAddEdge(t, g, "ok", "bad")
	if err := g.SetEntryPoint("ok"); err != nil {
		t.Fatalf("SetEntryPoint error: %v", err)
	}
	executor, err := g.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, err := executor.Invoke(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
	out := buf.String()
	for _, want := range []string{`"msg":"node finished"`, `"node":"ok"`, `"msg":"node failed"`, `"node":"bad"`, "bad input"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected log output to contain %s, got:\n%s", want, out)
		}
	}
}
