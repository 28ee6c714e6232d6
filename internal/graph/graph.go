// Package graph holds the workflow definition model and the execution engine.
// A Graph is built up from named nodes, edges and conditional branches, then
// compiled against a checkpoint store into an immutable CompiledGraph that
// runs threads to completion or to the next interrupt point.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/weftlabs/weft/internal/state"
)

// Constants for special nodes
const (
	START = "START"
	END   = "END"
)

// NodeFunc computes a partial state update from the current state.
type NodeFunc[T state.GraphState[T]] func(context.Context, T, Config[T]) (T, error)

// NodeSpec represents a node's specification
type NodeSpec[T state.GraphState[T]] struct {
	Name        string
	Function    NodeFunc[T]
	Metadata    map[string]any
	RetryPolicy *RetryPolicy
}

// RetryPolicy defines how a node should handle failures. Retries declared
// here are the node author's policy; the engine itself never retries.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Edge represents a connection between nodes
type Edge struct {
	From     string
	To       string
	Metadata map[string]any
}

// Branch represents a conditional branch in the graph. Path returns the name
// of the next node, or "" when the branch does not apply.
type Branch[T state.GraphState[T]] struct {
	Path     func(context.Context, T, Config[T]) string
	Metadata map[string]any
}

// Graph represents the base graph structure
type Graph[T state.GraphState[T]] struct {
	name        string
	nodes       map[string]NodeSpec[T]
	edges       []Edge
	branches    map[string][]Branch[T]
	condTargets map[string][]string
	interrupts  map[string]json.RawMessage

	entryPoint string
	compiled   bool
}

// NewGraph creates a new graph instance
func NewGraph[T state.GraphState[T]](name string) *Graph[T] {
	return &Graph[T]{
		name:        name,
		nodes:       make(map[string]NodeSpec[T]),
		branches:    make(map[string][]Branch[T]),
		condTargets: make(map[string][]string),
		interrupts:  make(map[string]json.RawMessage),
	}
}

// Name returns the workflow name the graph was created with.
func (g *Graph[T]) Name() string {
	return g.name
}

// AddNode adds a new node to the graph
func (g *Graph[T]) AddNode(name string, fn NodeFunc[T], metadata map[string]any) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if name == START || name == END {
		return fmt.Errorf("node name %s is reserved", name)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("node %s already exists", name)
	}

	g.nodes[name] = NodeSpec[T]{
		Name:     name,
		Function: fn,
		Metadata: metadata,
	}
	return nil
}

// SetRetryPolicy attaches a retry policy to an existing node.
func (g *Graph[T]) SetRetryPolicy(name string, policy RetryPolicy) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	node, exists := g.nodes[name]
	if !exists {
		return fmt.Errorf("node %s does not exist", name)
	}
	node.RetryPolicy = &policy
	g.nodes[name] = node
	return nil
}

// AddEdge adds an unconditional edge between nodes
func (g *Graph[T]) AddEdge(from, to string, metadata map[string]any) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if err := g.validateEdgeNodes(from, []string{to}); err != nil {
		return err
	}

	g.edges = append(g.edges, Edge{
		From:     from,
		To:       to,
		Metadata: metadata,
	})
	return nil
}

// AddBranch adds a conditional branch from a node. When a node has branches
// they are evaluated in declared order and the first non-empty target wins;
// plain edges act as the default when no branch matches.
func (g *Graph[T]) AddBranch(
	from string,
	path func(context.Context, T, Config[T]) string,
	metadata map[string]any,
) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("source node %s does not exist", from)
	}

	g.branches[from] = append(g.branches[from], Branch[T]{
		Path:     path,
		Metadata: metadata,
	})
	return nil
}

// AddConditionalEdge adds a branch constrained to a declared set of targets.
// The declared targets take part in reachability validation; they do not act
// as default edges, so a non-matching condition with no plain edge out of
// `from` makes a run fail rather than fall through silently.
func (g *Graph[T]) AddConditionalEdge(
	from string,
	possibleTargets []string,
	condition func(context.Context, T, Config[T]) string,
	metadata map[string]any,
) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if err := g.validateEdgeNodes(from, possibleTargets); err != nil {
		return err
	}
	g.condTargets[from] = append(g.condTargets[from], possibleTargets...)

	return g.AddBranch(from,
		func(ctx context.Context, st T, cfg Config[T]) string {
			next := condition(ctx, st, cfg)
			for _, target := range possibleTargets {
				if target == next {
					return next
				}
			}
			return ""
		},
		metadata,
	)
}

// AddInterrupt marks a node as an interrupt point: execution suspends when it
// reaches the node and resumes through it once a resume signal arrives. The
// payload describes what is being awaited and is surfaced to the caller.
func (g *Graph[T]) AddInterrupt(node string, payload json.RawMessage) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if _, exists := g.nodes[node]; !exists {
		return fmt.Errorf("interrupt node %s does not exist", node)
	}
	if _, exists := g.interrupts[node]; exists {
		return fmt.Errorf("interrupt already declared for node %s", node)
	}
	g.interrupts[node] = payload
	return nil
}

// SetEntryPoint sets the entry point of the graph
func (g *Graph[T]) SetEntryPoint(name string) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if name == END {
		return errors.New("cannot set END as entry point")
	}
	if _, exists := g.nodes[name]; !exists {
		return fmt.Errorf("node %s does not exist", name)
	}
	g.entryPoint = name
	return nil
}

// HasNode reports whether the graph contains a node with the given name.
func (g *Graph[T]) HasNode(name string) bool {
	_, exists := g.nodes[name]
	return exists
}

// validateEdgeNodes validates source and target nodes
func (g *Graph[T]) validateEdgeNodes(from string, targets []string) error {
	if from == END {
		return errors.New("cannot add edge from END node")
	}
	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("source node %s does not exist", from)
	}
	for _, target := range targets {
		if target == START {
			return errors.New("cannot add edge to START node")
		}
		if target != END {
			if _, exists := g.nodes[target]; !exists {
				return fmt.Errorf("target node %s does not exist", target)
			}
		}
	}
	return nil
}

// Validate checks that the graph is runnable: the entry point is set, every
// node can leave (an edge, a branch, or END), END is reachable, and no node
// is unreachable from the entry point.
func (g *Graph[T]) Validate() error {
	if g.entryPoint == "" {
		return errors.New("entry point not set")
	}
	if _, exists := g.nodes[g.entryPoint]; !exists {
		return fmt.Errorf("entry point node %s does not exist", g.entryPoint)
	}

	for name := range g.nodes {
		if !g.hasOutgoing(name) {
			return fmt.Errorf("node %s has no outgoing edge or branch", name)
		}
	}

	visited := make(map[string]bool)
	g.dfs(g.entryPoint, visited)

	for node := range g.nodes {
		if !visited[node] {
			return fmt.Errorf("node %s is unreachable from entry point", node)
		}
	}
	if !visited[END] {
		return errors.New("no path to END from entry point")
	}
	return nil
}

func (g *Graph[T]) hasOutgoing(name string) bool {
	if len(g.branches[name]) > 0 {
		return true
	}
	for _, edge := range g.edges {
		if edge.From == name {
			return true
		}
	}
	return false
}

func (g *Graph[T]) dfs(node string, visited map[string]bool) {
	if visited[node] {
		return
	}
	visited[node] = true

	for _, edge := range g.edges {
		if edge.From == node {
			g.dfs(edge.To, visited)
		}
	}
	for _, target := range g.condTargets[node] {
		g.dfs(target, visited)
	}
}
