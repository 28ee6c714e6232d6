// A durable chat workflow: checkpoints live in a SQLite file, so an
// interrupted conversation survives restarting the process. Resume it by
// passing the thread id printed on the first run.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/weftlabs/weft/internal/checkpoint"
	"github.com/weftlabs/weft/internal/graph"
	"github.com/weftlabs/weft/internal/state"
	"github.com/weftlabs/weft/pkg/workflow"
)

// echoModel stands in for a real langchaingo provider so the example runs
// without credentials; swap in openai.New() or similar for real completions.
type echoModel struct{}

func (echoModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	last := ""
	if len(messages) > 0 {
		for _, part := range messages[len(messages)-1].Parts {
			if tc, ok := part.(llms.TextContent); ok {
				last = tc.Text
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "You said: " + last}},
	}, nil
}

func (m echoModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func buildChat(store checkpoint.Store, model llms.Model, logger *zap.Logger) (*workflow.Handle[state.MessagesState], error) {
	g := graph.NewGraph[state.MessagesState]("chat")

	err := g.AddNode("process_input", func(_ context.Context, s state.MessagesState, _ graph.Config[state.MessagesState]) (state.MessagesState, error) {
		update := state.AIMessage("Got it. What should I answer?")
		update.Data = map[string]any{"processed_prompt": s.LastText()}
		return update, nil
	}, nil)
	if err != nil {
		return nil, err
	}

	err = g.AddNode("respond", func(ctx context.Context, s state.MessagesState, _ graph.Config[state.MessagesState]) (state.MessagesState, error) {
		resp, err := model.GenerateContent(ctx, s.Messages)
		if err != nil {
			return state.MessagesState{}, err
		}
		update := state.AIMessage(resp.Choices[0].Content)
		update.Data = map[string]any{"current_step": "llm_completed"}
		return update, nil
	}, nil)
	if err != nil {
		return nil, err
	}

	if err := g.AddEdge("process_input", "respond", nil); err != nil {
		return nil, err
	}
	if err := g.AddEdge("respond", graph.END, nil); err != nil {
		return nil, err
	}
	if err := g.SetEntryPoint("process_input"); err != nil {
		return nil, err
	}
	// Suspend before the model call and wait for the user's follow-up.
	if err := g.AddInterrupt("respond", json.RawMessage(`{"awaiting":"user_message"}`)); err != nil {
		return nil, err
	}

	compiled, err := g.Compile(store, graph.WithLogger[state.MessagesState](logger))
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

	db, err := sql.Open("sqlite", "file:weft_chat.db?_journal=WAL")
	if err != nil {
		panic(err)
	}
	defer func() { _ = db.Close() }()

	store, err := checkpoint.NewSQLiteStore(db)
	if err != nil {
		panic(err)
	}

	chat, err := buildChat(store, echoModel{}, logger)
	if err != nil {
		panic(err)
	}

	registry := workflow.NewRegistry()
	if err := registry.Register(chat); err != nil {
		panic(err)
	}
	orchestrator := workflow.NewOrchestrator(registry, store, workflow.WithLogger(logger))

	ctx := context.Background()

	if len(os.Args) > 1 {
		// Resume a previously interrupted thread.
		threadID := os.Args[1]
		signal, err := json.Marshal(state.HumanMessage("Tell me about weft"))
		if err != nil {
			panic(err)
		}
		resumed, err := orchestrator.Continue(ctx, "chat", threadID, signal)
		if err != nil {
			panic(err)
		}
		fmt.Printf("thread %s status=%s\nstate=%s\n", resumed.ThreadID, resumed.Status, resumed.State)
		return
	}

	input, err := json.Marshal(state.HumanMessage("Hello there"))
	if err != nil {
		panic(err)
	}
	started, err := orchestrator.Start(ctx, "chat", input)
	if err != nil {
		panic(err)
	}
	fmt.Printf("thread %s status=%s awaiting=%s\n", started.ThreadID, started.Status, started.Interrupt)
	fmt.Printf("resume with: go run ./cmd/examples/chat %s\n", started.ThreadID)
}
