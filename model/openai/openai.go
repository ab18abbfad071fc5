// Package openai implements model.Model on top of the OpenAI Chat
// Completions API, including streaming and function/tool calling. It maps
// the normalized item-based conversation into the SDK's message format
// and back.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentrun/item"
	"github.com/hupe1980/agentrun/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name,
// arguments) so complete calls can be reconstructed when the finish
// reason arrives.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter. Fields mirror a minimal
// subset of Chat Completion parameters; extend via functional options
// without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic
// model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates an OpenAI model using the official client, configured
// from the environment.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates an OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Provider resolves model names to OpenAI models sharing one client.
type Provider struct {
	client *openai.Client
}

// NewProvider creates a Provider with a client configured from the
// environment.
func NewProvider() *Provider {
	client := openai.NewClient()
	return NewProviderFromClient(&client)
}

// NewProviderFromClient creates a Provider around an existing client.
func NewProviderFromClient(client *openai.Client) *Provider {
	return &Provider{client: client}
}

// GetModel implements the model.Provider interface. An empty name yields
// the adapter default.
func (p *Provider) GetModel(name string) (model.Model, error) {
	return NewModelFromClient(p.client, func(o *Options) {
		if name != "" {
			o.Model = name
		}
	}), nil
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req, buildMessages(req))

		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}

		m.handleNonStreaming(ctx, params, out, errCh)
	}()

	return out, errCh
}

// buildMessages converts the item conversation into OpenAI chat messages.
// Consecutive call items collapse into one assistant tool-calls message;
// outputs follow as tool messages keyed by call ID. A handoff record
// answers its own call so the transcript stays well formed.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	var pendingCalls []openai.ChatCompletionMessageToolCallParam

	flushCalls := func() {
		if len(pendingCalls) == 0 {
			return
		}

		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: pendingCalls,
			},
		})
		pendingCalls = nil
	}

	appendCall := func(id, name, arguments string) {
		if arguments == "" {
			arguments = "{}"
		}

		pendingCalls = append(pendingCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   id,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      name,
				Arguments: arguments,
			},
		})
	}

	for _, it := range req.Items {
		switch v := it.(type) {
		case item.MessageItem:
			flushCalls()

			switch v.Role {
			case item.RoleSystem:
				messages = append(messages, openai.SystemMessage(v.Text))
			case item.RoleAssistant:
				messages = append(messages, openai.AssistantMessage(v.Text))
			default:
				messages = append(messages, openai.UserMessage(v.Text))
			}
		case item.ToolCallItem:
			appendCall(v.CallID, v.Name, v.Arguments)
		case item.HandoffCallItem:
			appendCall(v.CallID, v.Name, v.Arguments)
		case item.ToolCallOutputItem:
			flushCalls()
			messages = append(messages, openai.ToolMessage(v.Output, v.CallID))
		case item.HandoffOutputItem:
			flushCalls()

			payload, _ := json.Marshal(map[string]string{"assistant": v.TargetAgent})
			messages = append(messages, openai.ToolMessage(string(payload), v.CallID))
		}
	}

	flushCalls()

	return messages
}

// buildParams assembles the request parameters including tool definitions.
func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	temperature := m.opts.Temperature
	if req.Settings.Temperature != nil {
		temperature = *req.Settings.Temperature
	}

	maxTokens := m.opts.MaxCompletionTokens
	if req.Settings.MaxTokens > 0 {
		maxTokens = req.Settings.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	if len(req.Tools) == 0 {
		return params
	}

	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.Parameters,
			},
		}
	}
	params.Tools = tools

	return params
}

// handleStreaming forwards partial deltas and assembles the final response.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)

	var textBuilder strings.Builder

	toolAgg := map[int64]*aggCall{}
	order := []int64{}

	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)
				out <- model.Response{
					ID:      ck.ID,
					Partial: true,
					Delta:   ch.Delta.Content,
				}
			}

			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					ac.args += tc.Function.Arguments
				}
			}

			if ch.FinishReason != "" {
				var toolCalls []model.ToolCall
				for _, idx := range order {
					ac := toolAgg[idx]
					toolCalls = append(toolCalls, model.ToolCall{
						ID:        ac.id,
						Name:      ac.name,
						Arguments: ac.args,
					})
				}

				out <- model.Response{
					ID:           ck.ID,
					Text:         textBuilder.String(),
					ToolCalls:    toolCalls,
					FinishReason: ch.FinishReason,
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

// handleNonStreaming performs a blocking completion.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}

	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}

	ch0 := resp.Choices[0]

	var toolCalls []model.ToolCall
	for _, tc := range ch0.Message.ToolCalls {
		toolCalls = append(toolCalls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	out <- model.Response{
		ID:           resp.ID,
		Text:         ch0.Message.Content,
		ToolCalls:    toolCalls,
		FinishReason: ch0.FinishReason,
		Usage: &model.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
