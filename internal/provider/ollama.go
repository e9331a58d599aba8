package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const ollamaDefaultURL = "http://localhost:11434"

// Ollama talks to a local Ollama server through its native chat API.
type Ollama struct {
	client *api.Client
	model  string
	log    *logging.Logger
}

// NewOllama creates an Ollama provider. An empty BaseURL means localhost.
func NewOllama(b Backend, log *logging.Logger) (*Ollama, error) {
	base := b.BaseURL
	if base == "" {
		base = ollamaDefaultURL
	}
	// The openai-compatible path is served by the openai adapter instead.
	base = strings.TrimSuffix(strings.TrimSuffix(base, "/"), "/v1")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}
	httpClient := &http.Client{Timeout: 10 * time.Minute}

	return &Ollama{
		client: api.NewClient(u, httpClient),
		model:  b.Model,
		log:    log.Sub("provider.ollama"),
	}, nil
}

func (o *Ollama) Name() string         { return "ollama" }
func (o *Ollama) DefaultModel() string { return o.model }

func (o *Ollama) Chat(ctx context.Context, req domain.ConversationRequest) (*domain.ConversationResponse, error) {
	tools, err := convertOllamaTools(req.Capabilities)
	if err != nil {
		return nil, err
	}

	stream := false
	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	chatReq := &api.ChatRequest{
		Model:    modelFor(o, req),
		Messages: o.convertMessages(req.Messages),
		Tools:    tools,
		Stream:   &stream,
		Options:  options,
	}

	out := &domain.ConversationResponse{Model: chatReq.Model}
	var text strings.Builder
	err = o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		for _, tc := range resp.Message.ToolCalls {
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil {
				o.log.Warn().Err(err).Str("tool", tc.Function.Name).Msg("failed to encode tool arguments")
				args = []byte("{}")
			}
			id := tc.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, domain.ToolInvocationRequest{
				ID:        id,
				Name:      tc.Function.Name,
				Arguments: string(args),
			})
		}
		if resp.Done {
			if resp.Model != "" {
				out.Model = resp.Model
			}
			out.FinishReason = resp.DoneReason
			out.Usage = domain.Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapOllamaError(err)
	}

	out.Content = text.String()
	if len(out.ToolCalls) > 0 {
		out.FinishReason = "tool_calls"
	}
	o.log.Debug().
		Str("model", out.Model).
		Int("toolCalls", len(out.ToolCalls)).
		Int("evalCount", out.Usage.CompletionTokens).
		Msg("response received")
	return out, nil
}

func (o *Ollama) convertMessages(msgs []domain.Message) []api.Message {
	out := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		msg := api.Message{Role: string(m.Role), Content: m.Content}

		for _, tc := range m.ToolCalls {
			var args api.ToolCallFunctionArguments
			if err := json.Unmarshal([]byte(argumentsOrEmpty(tc.Arguments)), &args); err != nil {
				o.log.Warn().Err(err).Str("tool", tc.Name).Msg("failed to decode tool arguments for history")
			}
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				ID: tc.ID,
				Function: api.ToolCallFunction{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		if m.Role == domain.RoleTool {
			msg.ToolCallID = m.ToolCallID
		}

		for _, ref := range m.Media {
			data, err := os.ReadFile(ref)
			if err != nil {
				o.log.Debug().Str("media", ref).Err(err).Msg("skipping unreadable media")
				continue
			}
			msg.Images = append(msg.Images, api.ImageData(data))
		}
		out = append(out, msg)
	}
	return out
}

// convertOllamaTools goes through JSON so the SDK's own decoding builds its
// property and argument types.
func convertOllamaTools(descs []domain.CapabilityDescriptor) ([]api.Tool, error) {
	if len(descs) == 0 {
		return nil, nil
	}
	raw := make([]map[string]any, 0, len(descs))
	for _, d := range descs {
		params, err := capability.SchemaMap(d.ParameterSchema)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", d.Name, err)
		}
		raw = append(raw, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  params,
			},
		})
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding tools: %w", err)
	}
	var tools []api.Tool
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("decoding tools: %w", err)
	}
	return tools, nil
}

func wrapOllamaError(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		msg := se.ErrorMessage
		if msg == "" {
			msg = se.Status
		}
		return &ProviderError{Provider: "ollama", Code: se.StatusCode, Message: msg}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("ollama request failed: %w", err)
}
