package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestMessagesStateMergeAppendsMessages(t *testing.T) {
	t.Parallel()

	a := HumanMessage("hello")
	b := AIMessage("hi there")

	merged := a.Merge(b)
	require.Len(t, merged.Messages, 2)
	assert.Equal(t, llms.ChatMessageTypeHuman, merged.Messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, merged.Messages[1].Role)

	// Merge must not alias the receiver's backing array.
	require.Len(t, a.Messages, 1)
}

func TestMessagesStateMergeDataLastWriterWins(t *testing.T) {
	t.Parallel()

	a := MessagesState{Data: map[string]any{"step": "collect", "count": 1}}
	b := MessagesState{Data: map[string]any{"step": "greet"}}

	merged := a.Merge(b)
	assert.Equal(t, "greet", merged.Data["step"])
	assert.Equal(t, 1, merged.Data["count"])
	// Originals untouched.
	assert.Equal(t, "collect", a.Data["step"])
}

func TestMessagesStateJSONRoundTrip(t *testing.T) {
	t.Parallel()

	original := HumanMessage("hello").Merge(AIMessage("world"))
	original.Data = map[string]any{"greeting": "Hello, Ada"}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded MessagesState
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "hello", decoded.Messages[0].Parts[0].(llms.TextContent).Text)
	assert.Equal(t, "world", decoded.LastText())
	assert.Equal(t, "Hello, Ada", decoded.Data["greeting"])
}

func TestLastTextEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, MessagesState{}.LastText())
}
