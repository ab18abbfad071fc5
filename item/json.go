package item

import (
	"encoding/json"
	"fmt"
)

// Type tags used by the JSON envelope. Session stores and callers that
// persist transcripts round-trip items through Marshal/Unmarshal.
const (
	typeMessage       = "message"
	typeToolCall      = "tool_call"
	typeToolOutput    = "tool_call_output"
	typeHandoffCall   = "handoff_call"
	typeHandoffOutput = "handoff_output"
)

// envelope wraps a concrete item with its type tag for persistence.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal serializes an item into a tagged JSON envelope.
func Marshal(it Item) ([]byte, error) {
	var typ string
	switch it.(type) {
	case MessageItem:
		typ = typeMessage
	case ToolCallItem:
		typ = typeToolCall
	case ToolCallOutputItem:
		typ = typeToolOutput
	case HandoffCallItem:
		typ = typeHandoffCall
	case HandoffOutputItem:
		typ = typeHandoffOutput
	default:
		return nil, fmt.Errorf("item: cannot marshal unknown item type %T", it)
	}

	payload, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("item: marshal payload: %w", err)
	}

	return json.Marshal(envelope{Type: typ, Payload: payload})
}

// Unmarshal deserializes a tagged JSON envelope back into an item.
func Unmarshal(data []byte) (Item, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("item: unmarshal envelope: %w", err)
	}

	switch env.Type {
	case typeMessage:
		var it MessageItem
		if err := json.Unmarshal(env.Payload, &it); err != nil {
			return nil, fmt.Errorf("item: unmarshal %s: %w", env.Type, err)
		}
		return it, nil
	case typeToolCall:
		var it ToolCallItem
		if err := json.Unmarshal(env.Payload, &it); err != nil {
			return nil, fmt.Errorf("item: unmarshal %s: %w", env.Type, err)
		}
		return it, nil
	case typeToolOutput:
		var it ToolCallOutputItem
		if err := json.Unmarshal(env.Payload, &it); err != nil {
			return nil, fmt.Errorf("item: unmarshal %s: %w", env.Type, err)
		}
		return it, nil
	case typeHandoffCall:
		var it HandoffCallItem
		if err := json.Unmarshal(env.Payload, &it); err != nil {
			return nil, fmt.Errorf("item: unmarshal %s: %w", env.Type, err)
		}
		return it, nil
	case typeHandoffOutput:
		var it HandoffOutputItem
		if err := json.Unmarshal(env.Payload, &it); err != nil {
			return nil, fmt.Errorf("item: unmarshal %s: %w", env.Type, err)
		}
		return it, nil
	default:
		return nil, fmt.Errorf("item: unknown item type %q", env.Type)
	}
}
