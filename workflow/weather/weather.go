// Package weather implements a three step weather simulation workflow:
// a planner fixes the date, place and expected condition, the forecast node
// asks a model for a short forecast and the summarize node renders the result.
package weather

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/go-kratos/stepflow"
	"github.com/go-kratos/stepflow/graph"
)

// Node names.
const (
	NodePlanner   = "planner"
	NodeForecast  = "forecast"
	NodeSummarize = "summarize"
)

// State keys.
const (
	KeyPlan     = "plan"
	KeyForecast = "forecast"
	KeySummary  = "summary"
)

const (
	systemPrompt = "You are a weather simulator. Answer with a short forecast of a few words, without any explanation."
	userPrompt   = "Forecast the weather on {{.date}} in {{.location}}. Expected condition: {{.condition}}."
)

// Plan describes what to simulate.
type Plan struct {
	Date      string `json:"date"`
	Location  string `json:"location"`
	Condition string `json:"condition"`
}

// DefaultPlan is used when a Workflow has no Defaults.
var DefaultPlan = Plan{
	Date:      "2025-06-01",
	Location:  "Scotland",
	Condition: "wind drop 10%",
}

// State is the typed view of the workflow state.
type State struct {
	Plan     *Plan  `json:"plan,omitempty"`
	Forecast string `json:"forecast,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Schema returns the JSON schema of State, to be passed to graph.WithSchema.
func Schema() (*jsonschema.Schema, error) {
	return jsonschema.For[State](nil)
}

// Workflow holds the collaborators of the weather nodes.
type Workflow struct {
	// Invoker produces the forecast text.
	Invoker stepflow.ModelInvoker
	// Defaults is the plan written by the planner. The zero value selects DefaultPlan.
	Defaults Plan
	// Options are passed to every model invocation.
	Options []stepflow.ModelOption
}

// Validate reports the first empty field of the plan.
func (p Plan) Validate() error {
	switch {
	case p.Date == "":
		return &graph.MissingFieldError{Key: KeyPlan + ".date"}
	case p.Location == "":
		return &graph.MissingFieldError{Key: KeyPlan + ".location"}
	}
	return nil
}

// getPlan reads and validates the plan from state.
func getPlan(state graph.State) (Plan, error) {
	plan, err := graph.Get[Plan](state, KeyPlan)
	if err != nil {
		return plan, err
	}
	return plan, plan.Validate()
}

// Plan writes the default plan, unless the state already carries one.
// A nil or empty plan counts as absent; a partially filled one is rejected.
func (w *Workflow) Plan(ctx context.Context, state graph.State) (graph.State, error) {
	existing, err := graph.Get[Plan](state, KeyPlan)
	switch {
	case errors.Is(err, graph.ErrMissingField):
	case err != nil:
		return nil, err
	case existing != (Plan{}):
		if err := existing.Validate(); err != nil {
			return nil, err
		}
		return state, nil
	}
	plan := w.Defaults
	if plan == (Plan{}) {
		plan = DefaultPlan
	}
	state[KeyPlan] = plan
	return state, nil
}

// Forecast asks the model for a forecast of the planned day.
func (w *Workflow) Forecast(ctx context.Context, state graph.State) (graph.State, error) {
	plan, err := getPlan(state)
	if err != nil {
		return nil, err
	}
	if w.Invoker == nil {
		return nil, fmt.Errorf("weather: no model invoker configured")
	}
	messages, err := stepflow.NewPromptTemplate().
		System(systemPrompt).
		User(userPrompt, map[string]any{
			"date":      plan.Date,
			"location":  plan.Location,
			"condition": plan.Condition,
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("weather: building prompt: %w", err)
	}
	forecast, err := stepflow.Generate(ctx, w.Invoker, messages, w.Options...)
	if err != nil {
		return nil, fmt.Errorf("weather: forecasting with %s: %w", w.Invoker.Name(), err)
	}
	state[KeyForecast] = forecast
	return state, nil
}

// Summarize renders the plan and forecast into a single line.
func (w *Workflow) Summarize(ctx context.Context, state graph.State) (graph.State, error) {
	plan, err := getPlan(state)
	if err != nil {
		return nil, err
	}
	forecast, err := graph.Get[string](state, KeyForecast)
	if err != nil {
		return nil, err
	}
	state[KeySummary] = Summary(plan, forecast)
	return state, nil
}

// Summary formats the final summary line.
func Summary(plan Plan, forecast string) string {
	return fmt.Sprintf("Simulation on %s for %s: %s", plan.Date, plan.Location, forecast)
}

// Graph registers the weather nodes wired planner -> forecast -> summarize
// with planner as entry point.
func (w *Workflow) Graph(opts ...graph.Option) (*graph.Graph, error) {
	g := graph.New(opts...)
	if err := g.AddNode(NodePlanner, w.Plan); err != nil {
		return nil, err
	}
	if err := g.AddNode(NodeForecast, w.Forecast, graph.Requires(KeyPlan)); err != nil {
		return nil, err
	}
	if err := g.AddNode(NodeSummarize, w.Summarize, graph.Requires(KeyPlan, KeyForecast)); err != nil {
		return nil, err
	}
	if err := g.AddEdge(NodePlanner, NodeForecast); err != nil {
		return nil, err
	}
	if err := g.AddEdge(NodeForecast, NodeSummarize); err != nil {
		return nil, err
	}
	if err := g.SetEntryPoint(NodePlanner); err != nil {
		return nil, err
	}
	return g, nil
}

// Build compiles the weather graph.
func (w *Workflow) Build(opts ...graph.Option) (*graph.Executor, error) {
	g, err := w.Graph(opts...)
	if err != nil {
		return nil, err
	}
	return g.Compile()
}

// Result decodes the final state into its typed view.
func Result(state graph.State) (State, error) {
	var result State
	if _, ok := state[KeyPlan]; ok {
		plan, err := graph.Get[Plan](state, KeyPlan)
		if err != nil {
			return result, err
		}
		result.Plan = &plan
	}
	if _, ok := state[KeyForecast]; ok {
		forecast, err := graph.Get[string](state, KeyForecast)
		if err != nil {
			return result, err
		}
		result.Forecast = forecast
	}
	if _, ok := state[KeySummary]; ok {
		summary, err := graph.Get[string](state, KeySummary)
		if err != nil {
			return result, err
		}
		result.Summary = summary
	}
	return result, nil
}
