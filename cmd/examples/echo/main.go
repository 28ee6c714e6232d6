package main

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/checkpoint"
	"github.com/weftlabs/weft/internal/graph"
	"github.com/weftlabs/weft/pkg/workflow"
)

type echoState struct {
	Name     string `json:"name,omitempty"`
	Greeting string `json:"greeting,omitempty"`
}

func (s echoState) Validate() error { return nil }

func (s echoState) Merge(other echoState) echoState {
	if other.Name != "" {
		s.Name = other.Name
	}
	if other.Greeting != "" {
		s.Greeting = other.Greeting
	}
	return s
}

func buildEcho(store checkpoint.Store, logger *zap.Logger) (*workflow.Handle[echoState], error) {
	g := graph.NewGraph[echoState]("echo")

	if err := g.AddNode("collect", func(_ context.Context, _ echoState, _ graph.Config[echoState]) (echoState, error) {
		return echoState{}, nil
	}, nil); err != nil {
		return nil, err
	}
	if err := g.AddNode("greet", func(_ context.Context, s echoState, _ graph.Config[echoState]) (echoState, error) {
		return echoState{Greeting: "Hello, " + s.Name}, nil
	}, nil); err != nil {
		return nil, err
	}

	if err := g.AddEdge("collect", "greet", nil); err != nil {
		return nil, err
	}
	if err := g.AddEdge("greet", graph.END, nil); err != nil {
		return nil, err
	}
	if err := g.SetEntryPoint("collect"); err != nil {
		return nil, err
	}
	if err := g.AddInterrupt("greet", json.RawMessage(`{"awaiting":"name"}`)); err != nil {
		return nil, err
	}

	compiled, err := g.Compile(store, graph.WithLogger[echoState](logger))
	if err != nil {
		return nil, err
	}
	return workflow.NewHandle(compiled), nil
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	store := checkpoint.NewMemoryStore()
	echo, err := buildEcho(store, logger)
	if err != nil {
		panic(err)
	}

	registry := workflow.NewRegistry()
	if err := registry.Register(echo); err != nil {
		panic(err)
	}
	orchestrator := workflow.NewOrchestrator(registry, store, workflow.WithLogger(logger))

	ctx := context.Background()

	started, err := orchestrator.Start(ctx, "echo", json.RawMessage(`{}`))
	if err != nil {
		panic(err)
	}
	fmt.Printf("started thread %s, status=%s, awaiting=%s\n",
		started.ThreadID, started.Status, started.Interrupt)

	finished, err := orchestrator.Continue(ctx, "echo", started.ThreadID, json.RawMessage(`{"name":"Ada"}`))
	if err != nil {
		panic(err)
	}
	fmt.Printf("finished thread %s, status=%s, state=%s\n",
		finished.ThreadID, finished.Status, finished.State)
}
