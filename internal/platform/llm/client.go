package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrInvalidResponse means the model answered without calling the requested tool.
var ErrInvalidResponse = errors.New("invalid response from LLM")

type Request struct {
	Model  Model
	System string
	User   string
	Tool   Tool
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	ToolName  string
	Arguments json.RawMessage
	Usage     Usage
}

// Decode unmarshals the tool arguments into v.
func (r *Result) Decode(v any) error {
	if err := json.Unmarshal(r.Arguments, v); err != nil {
		return fmt.Errorf("%w: decode %s arguments: %v", ErrInvalidResponse, r.ToolName, err)
	}
	return nil
}

// Client calls a chat model with exactly one forced tool.
type Client interface {
	CallTool(ctx context.Context, req Request) (*Result, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// LangChainClient adapts any langchaingo chat model to Client.
type LangChainClient struct {
	model llms.Model
}

func NewLangChainClient(model llms.Model) *LangChainClient {
	return &LangChainClient{model: model}
}

// keylessToken is sent to compatible endpoints that do not check a key;
// the openai provider refuses to start without one.
const keylessToken = "unused"

// NewOpenAI builds a client for the OpenAI chat completions API, or any
// compatible endpoint when BaseURL is set. A key is optional only with BaseURL.
func NewOpenAI(cfg Config) (*LangChainClient, error) {
	token := cfg.APIKey
	if token == "" && cfg.BaseURL != "" {
		token = keylessToken
	}
	opts := []openai.Option{openai.WithToken(token)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return NewLangChainClient(m), nil
}

func (c *LangChainClient) CallTool(ctx context.Context, req Request) (*Result, error) {
	params, err := toolParameters(req.Tool)
	if err != nil {
		return nil, err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}

	opts := []llms.CallOption{
		llms.WithModel(req.Model.Name),
		llms.WithTools([]llms.Tool{{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  params,
			},
		}}),
		llms.WithToolChoice(llms.ToolChoice{
			Type:     "function",
			Function: &llms.FunctionReference{Name: req.Tool.Name},
		}),
		llms.WithTemperature(req.Model.Temperature),
	}
	if req.Model.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.Model.MaxTokens))
	}

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", req.Model.Name, err)
	}
	return toolResult(resp, req.Tool.Name)
}

func toolParameters(t Tool) (map[string]any, error) {
	if t.Parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	raw, err := json.Marshal(t.Parameters)
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", t.Name, err)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("unmarshal %s schema: %w", t.Name, err)
	}
	return params, nil
}

func toolResult(resp *llms.ContentResponse, want string) (*Result, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}
	choice := resp.Choices[0]

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name != want {
			continue
		}
		return &Result{
			ToolName:  tc.FunctionCall.Name,
			Arguments: json.RawMessage(tc.FunctionCall.Arguments),
			Usage:     usageFrom(choice.GenerationInfo),
		}, nil
	}

	if len(choice.ToolCalls) > 0 && choice.ToolCalls[0].FunctionCall != nil {
		return nil, fmt.Errorf("%w: expected tool %s, got %s",
			ErrInvalidResponse, want, choice.ToolCalls[0].FunctionCall.Name)
	}
	return nil, fmt.Errorf("%w: no tool call for %s", ErrInvalidResponse, want)
}

func usageFrom(info map[string]any) Usage {
	u := Usage{
		InputTokens:  intFrom(info["PromptTokens"]),
		OutputTokens: intFrom(info["CompletionTokens"]),
		TotalTokens:  intFrom(info["TotalTokens"]),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

func intFrom(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
