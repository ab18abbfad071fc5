package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/item"
)

func TestRemoveAllTools(t *testing.T) {
	data := HandoffInputData{
		InputHistory: item.NewInputFromItems([]item.Item{
			item.MessageItem{Role: item.RoleUser, Text: "m1"},
			item.ToolCallItem{Agent: "A", CallID: "c0", Name: "lookup"},
			item.ToolCallOutputItem{Agent: "A", CallID: "c0", Name: "lookup", Output: "x"},
		}),
		PreHandoffItems: []item.Item{
			item.MessageItem{Agent: "A", Role: item.RoleAssistant, Text: "m2"},
			item.ToolCallItem{Agent: "A", CallID: "c1", Name: "lookup"},
		},
		NewItems: []item.Item{
			item.ToolCallOutputItem{Agent: "A", CallID: "c1", Name: "lookup", Output: "y"},
			item.HandoffCallItem{Agent: "A", CallID: "c2", Name: "transfer_to_b"},
		},
	}

	filtered, err := RemoveAllTools(data)
	require.NoError(t, err)

	assert.Equal(t, 1, filtered.InputHistory.Len())
	require.Len(t, filtered.PreHandoffItems, 1)
	assert.Equal(t, "m2", filtered.PreHandoffItems[0].(item.MessageItem).Text)
	require.Len(t, filtered.NewItems, 1)
	assert.IsType(t, item.HandoffCallItem{}, filtered.NewItems[0])
}

func TestRemoveAllToolsKeepsRawText(t *testing.T) {
	data := HandoffInputData{
		InputHistory: item.NewInputFromText("raw input"),
		NewItems: []item.Item{
			item.ToolCallItem{Agent: "A", CallID: "c1", Name: "lookup"},
		},
	}

	filtered, err := RemoveAllTools(data)
	require.NoError(t, err)

	assert.True(t, filtered.InputHistory.IsText())
	assert.Empty(t, filtered.NewItems)
}

func TestKeepLastN(t *testing.T) {
	data := HandoffInputData{
		InputHistory: item.NewInputFromItems([]item.Item{
			item.MessageItem{Role: item.RoleUser, Text: "one"},
			item.MessageItem{Role: item.RoleUser, Text: "two"},
			item.MessageItem{Role: item.RoleUser, Text: "three"},
		}),
	}

	filtered, err := KeepLastN(2)(data)
	require.NoError(t, err)

	items := filtered.InputHistory.AsItems()
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[0].(item.MessageItem).Text)
	assert.Equal(t, "three", items[1].(item.MessageItem).Text)
}

func TestAllItemsConcatenation(t *testing.T) {
	data := HandoffInputData{
		InputHistory: item.NewInputFromItems([]item.Item{
			item.MessageItem{Role: item.RoleUser, Text: "m1"},
			item.MessageItem{Role: item.RoleUser, Text: "m2"},
		}),
		PreHandoffItems: []item.Item{
			item.MessageItem{Agent: "A", Role: item.RoleAssistant, Text: "m3"},
		},
		NewItems: []item.Item{
			item.HandoffCallItem{Agent: "A", CallID: "c1", Name: "transfer_to_b"},
		},
	}

	all := data.AllItems()
	require.Len(t, all, 4)
	assert.Equal(t, "m1", all[0].(item.MessageItem).Text)
	assert.IsType(t, item.HandoffCallItem{}, all[3])
}
