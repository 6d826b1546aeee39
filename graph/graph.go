package graph

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Option configures the Graph behavior.
type Option func(*Graph)

// WithMiddleware sets a global middleware applied to all node handlers.
func WithMiddleware(ms ...Middleware) Option {
	return func(g *Graph) {
		g.middlewares = append(g.middlewares, ms...)
	}
}

// WithSchema validates the initial state of every run against schema.
// The schema is resolved once by Compile.
func WithSchema(schema *jsonschema.Schema) Option {
	return func(g *Graph) {
		g.schema = schema
	}
}

// WithLogger sets the logger used by Compile and the executor.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// NodeOption configures a node when it is added to the graph.
type NodeOption func(*node)

// Requires declares state keys that must be present before the node runs.
// A missing key fails the node with a *MissingFieldError before its handler is called.
func Requires(keys ...string) NodeOption {
	return func(n *node) {
		n.requires = append(n.requires, keys...)
	}
}

type node struct {
	name     string
	handler  Handler
	requires []string
}

// Graph registers named nodes and the directed edges between them.
// Execution follows a strictly linear chain starting at the entry point.
type Graph struct {
	nodes       map[string]*node
	order       []string
	edges       map[string][]string
	entryPoint  string
	middlewares []Middleware
	schema      *jsonschema.Schema
	logger      *slog.Logger
}

// New creates a new empty Graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes:  make(map[string]*node),
		edges:  make(map[string][]string),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// AddNode registers a named node with its handler.
// A name can be registered only once; the first registration is kept.
func (g *Graph) AddNode(name string, handler Handler, opts ...NodeOption) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidNode)
	}
	if handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidNode, name)
	}
	if _, ok := g.nodes[name]; ok {
		return &DuplicateNodeError{Name: name}
	}
	n := &node{name: name, handler: handler}
	for _, opt := range opts {
		opt(n)
	}
	g.nodes[name] = n
	g.order = append(g.order, name)
	return nil
}

// AddEdge adds a directed edge from one registered node to another.
// Adding the same edge twice is a no-op.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return &UnknownNodeError{Op: "add edge", Name: from}
	}
	if _, ok := g.nodes[to]; !ok {
		return &UnknownNodeError{Op: "add edge", Name: to}
	}
	if slices.Contains(g.edges[from], to) {
		return nil
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// SetEntryPoint marks a registered node as the entry point.
func (g *Graph) SetEntryPoint(name string) error {
	if _, ok := g.nodes[name]; !ok {
		return &UnknownNodeError{Op: "set entry point", Name: name}
	}
	g.entryPoint = name
	return nil
}

// validate ensures the graph configuration is correct before compiling.
func (g *Graph) validate() error {
	if g.entryPoint == "" {
		return &ValidationError{Reason: ReasonEntryMissing, Detail: "entry point not set"}
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return &ValidationError{Reason: ReasonEntryMissing, Detail: "entry node not found: " + g.entryPoint}
	}
	for _, from := range slices.Sorted(maps.Keys(g.edges)) {
		if _, ok := g.nodes[from]; !ok {
			return &ValidationError{Reason: ReasonDanglingEdge, Detail: "edge from unknown node " + from}
		}
		for _, to := range g.edges[from] {
			if _, ok := g.nodes[to]; !ok {
				return &ValidationError{Reason: ReasonDanglingEdge, Detail: fmt.Sprintf("edge %s -> %s references unknown node", from, to)}
			}
		}
	}
	for _, name := range g.order {
		if edges := g.edges[name]; len(edges) > 1 {
			return &ValidationError{
				Reason: ReasonBranching,
				Detail: fmt.Sprintf("node %s has %d outgoing edges (%s)", name, len(edges), strings.Join(edges, ", ")),
			}
		}
	}
	return nil
}

// ensureAcyclic verifies that the graph does not contain directed cycles.
func (g *Graph) ensureAcyclic() error {
	const (
		stateUnvisited = iota
		stateVisiting
		stateVisited
	)
	states := make(map[string]int, len(g.nodes))
	stack := make([]string, 0, len(g.nodes))

	var visit func(string) error
	visit = func(node string) error {
		states[node] = stateVisiting
		stack = append(stack, node)

		for _, next := range g.edges[node] {
			switch states[next] {
			case stateVisiting:
				cycleStart := slices.Index(stack, next)
				cycle := append(slices.Clone(stack[cycleStart:]), next)
				return &ValidationError{Reason: ReasonCycle, Detail: strings.Join(cycle, " -> ")}
			case stateUnvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		states[node] = stateVisited
		return nil
	}

	for _, name := range g.order {
		if states[name] == stateUnvisited {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// path walks the chain from the entry point. It relies on validate and
// ensureAcyclic having succeeded.
func (g *Graph) path() []string {
	path := []string{g.entryPoint}
	for current := g.entryPoint; len(g.edges[current]) == 1; {
		current = g.edges[current][0]
		path = append(path, current)
	}
	return path
}

// Compile validates the graph and freezes it into an Executor.
// Compile is all-or-nothing: on any violation no Executor is returned.
// Later changes to the Graph do not affect an Executor already compiled.
func (g *Graph) Compile() (*Executor, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if err := g.ensureAcyclic(); err != nil {
		return nil, err
	}
	var resolved *jsonschema.Resolved
	if g.schema != nil {
		var err error
		if resolved, err = g.schema.Resolve(&jsonschema.ResolveOptions{}); err != nil {
			return nil, &ValidationError{Reason: ReasonSchema, Detail: "resolve state schema", Err: err}
		}
	}
	path := g.path()
	if len(path) < len(g.nodes) {
		for _, name := range g.order {
			if !slices.Contains(path, name) {
				g.logger.Debug("graph: node unreachable from entry point", slog.String("node", name), slog.String("entry", g.entryPoint))
			}
		}
	}
	nodes := make(map[string]node, len(g.nodes))
	for name, n := range g.nodes {
		handler := n.handler
		if len(g.middlewares) > 0 {
			handler = ChainMiddlewares(g.middlewares...)(handler)
		}
		nodes[name] = node{name: name, handler: handler, requires: slices.Clone(n.requires)}
	}
	next := make(map[string]string, len(g.edges))
	for from, edges := range g.edges {
		if len(edges) == 1 {
			next[from] = edges[0]
		}
	}
	return &Executor{
		entry:  g.entryPoint,
		nodes:  nodes,
		next:   next,
		path:   path,
		schema: resolved,
		logger: g.logger,
	}, nil
}
