package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/tidwall/gjson"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// OpenAI talks to the OpenAI Responses API or any service exposing the same
// endpoint.
type OpenAI struct {
	client *openai.Client
	name   string
	model  string
	log    *logging.Logger
}

// NewOpenAI creates an OpenAI-compatible provider. Retries inside the SDK are
// disabled; the caller's Retrier owns that policy.
func NewOpenAI(b Backend, log *logging.Logger) (*OpenAI, error) {
	if b.Name == "" {
		b.Name = "openai"
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if b.APIKey != "" {
		opts = append(opts, option.WithAPIKey(b.APIKey))
	}
	if b.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(b.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAI{
		client: &client,
		name:   b.Name,
		model:  b.Model,
		log:    log.Sub("provider." + b.Name),
	}, nil
}

func (o *OpenAI) Name() string         { return o.name }
func (o *OpenAI) DefaultModel() string { return o.model }

func (o *OpenAI) Chat(ctx context.Context, req domain.ConversationRequest) (*domain.ConversationResponse, error) {
	model := modelFor(o, req)
	params := responses.ResponseNewParams{
		Model: model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: convertOpenAIMessages(req.Messages),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}
	params.Temperature = openai.Float(req.Temperature)

	tools, err := convertOpenAITools(req.Capabilities)
	if err != nil {
		return nil, err
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return nil, o.wrapError(err)
	}

	out := parseOpenAIResponse(resp.RawJSON())
	if out.Model == "" {
		out.Model = model
	}
	o.log.Debug().
		Str("model", out.Model).
		Int("toolCalls", len(out.ToolCalls)).
		Int("inputTokens", out.Usage.PromptTokens).
		Int("outputTokens", out.Usage.CompletionTokens).
		Msg("response received")
	return out, nil
}

func (o *OpenAI) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: o.name, Code: apiErr.StatusCode, Message: apiErr.Error()}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s request failed: %w", o.name, err)
}

func convertOpenAIMessages(msgs []domain.Message) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleSystem))
		case domain.RoleUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(withMediaNote(m), responses.EasyInputMessageRoleUser))
		case domain.RoleAssistant:
			if m.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range m.ToolCalls {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(argumentsOrEmpty(tc.Arguments), tc.ID, tc.Name))
			}
		case domain.RoleTool:
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.ToolCallID, m.Content))
		}
	}
	return items
}

func convertOpenAITools(descs []domain.CapabilityDescriptor) ([]responses.ToolUnionParam, error) {
	tools := make([]responses.ToolUnionParam, 0, len(descs))
	for _, d := range descs {
		params, err := capability.SchemaMap(d.ParameterSchema)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", d.Name, err)
		}
		tools = append(tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  params,
			},
		})
	}
	return tools, nil
}

// parseOpenAIResponse reads the output items of a Responses API payload.
func parseOpenAIResponse(raw string) *domain.ConversationResponse {
	out := &domain.ConversationResponse{
		Model: gjson.Get(raw, "model").String(),
		Usage: domain.Usage{
			PromptTokens:     int(gjson.Get(raw, "usage.input_tokens").Int()),
			CompletionTokens: int(gjson.Get(raw, "usage.output_tokens").Int()),
			TotalTokens:      int(gjson.Get(raw, "usage.total_tokens").Int()),
		},
	}

	var text strings.Builder
	gjson.Get(raw, "output").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "message":
			item.Get("content").ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "output_text" {
					text.WriteString(part.Get("text").String())
				}
				return true
			})
		case "function_call":
			id := item.Get("call_id").String()
			if id == "" {
				id = item.Get("id").String()
			}
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, domain.ToolInvocationRequest{
				ID:        id,
				Name:      item.Get("name").String(),
				Arguments: item.Get("arguments").String(),
			})
		}
		return true
	})
	out.Content = text.String()

	switch {
	case len(out.ToolCalls) > 0:
		out.FinishReason = "tool_calls"
	case gjson.Get(raw, "status").String() == "incomplete":
		out.FinishReason = gjson.Get(raw, "incomplete_details.reason").String()
		if out.FinishReason == "" {
			out.FinishReason = "length"
		}
	default:
		out.FinishReason = "stop"
	}
	if out.Usage.TotalTokens == 0 {
		out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	}
	return out
}

// withMediaNote lists media references after the text so text-only models
// still know they were attached.
func withMediaNote(m domain.Message) string {
	if len(m.Media) == 0 {
		return m.Content
	}
	return m.Content + "\n\n[Attached media: " + strings.Join(m.Media, ", ") + "]"
}

func argumentsOrEmpty(args string) string {
	if strings.TrimSpace(args) == "" {
		return "{}"
	}
	return args
}
