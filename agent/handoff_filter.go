package agent

import "github.com/hupe1980/agentrun/item"

// Stock input filters for common handoff transcript shaping.

// RemoveAllTools is an InputFilter that drops tool call/output pairs from
// the structured portions of the transcript, so tool-call noise from one
// specialist does not reach the next.
func RemoveAllTools(data HandoffInputData) (HandoffInputData, error) {
	filtered := HandoffInputData{
		InputHistory:    data.InputHistory,
		PreHandoffItems: removeToolItems(data.PreHandoffItems),
		NewItems:        removeToolItems(data.NewItems),
	}

	if !data.InputHistory.IsText() {
		filtered.InputHistory = item.NewInputFromItems(removeToolItems(data.InputHistory.AsItems()))
	}

	return filtered, nil
}

// KeepLastN returns an InputFilter that truncates the structured input
// history to its last n items. The raw-string variant is left untouched.
func KeepLastN(n int) InputFilter {
	return func(data HandoffInputData) (HandoffInputData, error) {
		if data.InputHistory.IsText() {
			return data, nil
		}

		items := data.InputHistory.AsItems()
		if len(items) > n {
			items = items[len(items)-n:]
		}

		return HandoffInputData{
			InputHistory:    item.NewInputFromItems(items),
			PreHandoffItems: data.PreHandoffItems,
			NewItems:        data.NewItems,
		}, nil
	}
}

func removeToolItems(items []item.Item) []item.Item {
	kept := make([]item.Item, 0, len(items))
	for _, it := range items {
		switch it.(type) {
		case item.ToolCallItem, item.ToolCallOutputItem:
			continue
		default:
			kept = append(kept, it)
		}
	}
	return kept
}
