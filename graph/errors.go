package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateNode is returned when a node name is registered twice.
	ErrDuplicateNode = errors.New("graph: duplicate node")
	// ErrUnknownNode is returned when a node name is referenced before it is registered.
	ErrUnknownNode = errors.New("graph: unknown node")
	// ErrInvalidNode is returned for an empty node name or a nil handler.
	ErrInvalidNode = errors.New("graph: invalid node")
	// ErrInvalidGraph is returned when Compile rejects the graph.
	ErrInvalidGraph = errors.New("graph: invalid graph")
	// ErrNodeFailed is returned when a node handler fails during a run.
	ErrNodeFailed = errors.New("graph: node failed")
	// ErrMissingField is returned when an expected state key is absent.
	ErrMissingField = errors.New("graph: missing state field")
	// ErrRunConsumed is returned when a Run is invoked more than once.
	ErrRunConsumed = errors.New("graph: run already invoked")
)

// DuplicateNodeError reports a second registration of the same node name.
type DuplicateNodeError struct {
	Name string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("graph: node %s already exists", e.Name)
}

func (e *DuplicateNodeError) Is(target error) bool {
	return target == ErrDuplicateNode
}

// UnknownNodeError reports a reference to a node that was never registered.
type UnknownNodeError struct {
	Op   string
	Name string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("graph: %s: unknown node %s", e.Op, e.Name)
}

func (e *UnknownNodeError) Is(target error) bool {
	return target == ErrUnknownNode
}

// Reason classifies a compile failure.
type Reason string

const (
	ReasonEntryMissing Reason = "entry_missing"
	ReasonDanglingEdge Reason = "dangling_edge"
	ReasonBranching    Reason = "branching"
	ReasonCycle        Reason = "cycle"
	ReasonSchema       Reason = "schema"
)

// ValidationError describes the first violation found by Compile.
type ValidationError struct {
	Reason Reason
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph: %s: %s: %v", e.Reason, e.Detail, e.Err)
	}
	return fmt.Sprintf("graph: %s: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidGraph
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NodeError wraps the failure of a single node during a run.
type NodeError struct {
	Node  string
	RunID string
	Err   error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("graph: node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Is(target error) bool {
	return target == ErrNodeFailed
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// MissingFieldError reports a state key that a node expected to be present.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("graph: missing state field %q", e.Key)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// FieldTypeError reports a state value that cannot be converted to the requested type.
type FieldTypeError struct {
	Key   string
	Value any
	Err   error
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("graph: state field %q has unexpected type %T: %v", e.Key, e.Value, e.Err)
}

func (e *FieldTypeError) Unwrap() error {
	return e.Err
}

// SchemaError reports an initial state rejected by the graph schema.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("graph: state does not match schema: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
