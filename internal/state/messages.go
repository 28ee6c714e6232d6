package state

import (
	"github.com/tmc/langchaingo/llms"
)

// MessagesState is a conversation-style workflow state. The message log is
// append-only; Data entries are merged per key with last writer wins.
type MessagesState struct {
	Messages []llms.MessageContent `json:"messages"`
	Data     map[string]any        `json:"data,omitempty"`
}

func (m MessagesState) Validate() error {
	// TODO add proper llms.MessageContent sequence validation
	return nil
}

func (m MessagesState) Merge(other MessagesState) MessagesState {
	merged := MessagesState{
		Messages: append(append([]llms.MessageContent{}, m.Messages...), other.Messages...),
	}
	if len(m.Data)+len(other.Data) > 0 {
		merged.Data = make(map[string]any, len(m.Data)+len(other.Data))
		for k, v := range m.Data {
			merged.Data[k] = v
		}
		for k, v := range other.Data {
			merged.Data[k] = v
		}
	}
	return merged
}

// HumanMessage is a shorthand for a single human text message.
func HumanMessage(text string) MessagesState {
	return MessagesState{
		Messages: []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, text)},
	}
}

// AIMessage is a shorthand for a single assistant text message.
func AIMessage(text string) MessagesState {
	return MessagesState{
		Messages: []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeAI, text)},
	}
}

// LastText returns the text of the most recent message, or "" if none.
func (m MessagesState) LastText() string {
	if len(m.Messages) == 0 {
		return ""
	}
	last := m.Messages[len(m.Messages)-1]
	for _, part := range last.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
