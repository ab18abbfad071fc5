// Package item defines the typed conversation-history elements produced and
// consumed by a run: messages, tool calls and their outputs, and handoff
// records. Items are immutable once produced and are appended, never
// mutated, to a run's output sequence; ordering equals production order.
package item

import "strings"

// Conversation roles used by MessageItem.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Item is the closed set of run history elements. Concrete item types
// implement the unexported isItem marker so the set cannot grow outside
// this package.
type Item interface {
	isItem()

	// AgentName returns the name of the agent that produced the item.
	// For user-authored messages the agent name is empty.
	AgentName() string
}

// MessageItem is natural-language content, tagged with the producing agent
// (empty for caller-supplied user messages).
type MessageItem struct {
	Agent string `json:"agent,omitempty"`
	Role  string `json:"role"`
	Text  string `json:"text"`
}

func (MessageItem) isItem() {}

// AgentName implements Item.
func (m MessageItem) AgentName() string { return m.Agent }

// ToolCallItem records a model request to invoke a named tool.
type ToolCallItem struct {
	Agent     string `json:"agent"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // Serialized JSON argument payload
}

func (ToolCallItem) isItem() {}

// AgentName implements Item.
func (t ToolCallItem) AgentName() string { return t.Agent }

// ToolCallOutputItem records the outcome of a previously requested tool
// call. IsError marks outputs that describe a validation or execution
// failure surfaced back to the model for self-correction.
type ToolCallOutputItem struct {
	Agent   string `json:"agent"`
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

func (ToolCallOutputItem) isItem() {}

// AgentName implements Item.
func (t ToolCallOutputItem) AgentName() string { return t.Agent }

// HandoffCallItem records a model request to transfer control to another
// agent. The request is exposed to the model as a pseudo-tool, so the
// shape mirrors ToolCallItem.
type HandoffCallItem struct {
	Agent     string `json:"agent"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"` // Pseudo-tool name, e.g. transfer_to_spanish_agent
	Arguments string `json:"arguments,omitempty"`
}

func (HandoffCallItem) isItem() {}

// AgentName implements Item.
func (h HandoffCallItem) AgentName() string { return h.Agent }

// HandoffOutputItem records a completed control transfer between agents.
type HandoffOutputItem struct {
	Agent       string `json:"agent"` // Source agent, kept for tagging symmetry
	CallID      string `json:"call_id,omitempty"`
	SourceAgent string `json:"source_agent"`
	TargetAgent string `json:"target_agent"`
}

func (HandoffOutputItem) isItem() {}

// AgentName implements Item.
func (h HandoffOutputItem) AgentName() string { return h.Agent }

// Input is the union of the two accepted run input shapes: a single raw
// user message, or a structured item list (typically a prior run's
// ToInputList). The variant is preserved so handoff input filters can
// distinguish raw text from structured history.
type Input struct {
	text    string
	items   []Item
	hasText bool
}

// NewInputFromText creates an Input from a single free-text user message.
func NewInputFromText(text string) Input { return Input{text: text, hasText: true} }

// NewInputFromItems creates an Input from a structured item list.
func NewInputFromItems(items []Item) Input {
	copied := make([]Item, len(items))
	copy(copied, items)
	return Input{items: copied}
}

// IsText reports whether the input is the raw-string variant.
func (in Input) IsText() bool { return in.hasText }

// Text returns the raw message and true for the raw-string variant.
func (in Input) Text() (string, bool) { return in.text, in.hasText }

// AsItems normalizes the input into an item sequence: the raw-string
// variant becomes a single user MessageItem. The returned slice is a copy.
func (in Input) AsItems() []Item {
	if in.hasText {
		return []Item{MessageItem{Role: RoleUser, Text: in.text}}
	}
	copied := make([]Item, len(in.items))
	copy(copied, in.items)
	return copied
}

// Len returns the number of items the input normalizes to.
func (in Input) Len() int {
	if in.hasText {
		return 1
	}
	return len(in.items)
}

// MessageText returns the text of a MessageItem, or "" for any other item.
func MessageText(it Item) string {
	if m, ok := it.(MessageItem); ok {
		return m.Text
	}
	return ""
}

// OutputText concatenates the text of all assistant messages in items,
// separated by newlines. Useful for projecting a run's message items into
// a displayable transcript.
func OutputText(items []Item) string {
	var parts []string
	for _, it := range items {
		if m, ok := it.(MessageItem); ok && m.Role == RoleAssistant && m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "\n")
}
