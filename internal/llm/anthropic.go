package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	anthropicVersion      = "2023-06-01"
)

// AnthropicProvider implements Provider over the Messages API. Anthropic
// has no embedding endpoint, so it is not an Embedder.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	defaults
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float32           `json:"temperature,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Role       string           `json:"role"`
	Content    []anthropicBlock `json:"content"`
	Model      string           `json:"model"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(cfg model.LLMConfig, httpClient *http.Client) (*AnthropicProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	p := &AnthropicProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      cfg.Model,
		httpClient: httpClient,
		defaults:   defaults{temperature: cfg.Temperature, maxTokens: cfg.MaxOutputTokens},
	}
	if p.model == "" {
		p.model = defaultAnthropicModel
	}
	return p, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Model returns the model
func (p *AnthropicProvider) Model() string { return p.model }

// Generate runs one prompt through the Messages API
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\nRespond with a single JSON object and nothing else.")
	}

	temp := p.temp(req.Temperature)
	resp, err := p.makeRequest(ctx, anthropicRequest{
		Model:       p.model,
		MaxTokens:   p.tokens(req.MaxTokens),
		System:      system,
		Temperature: &temp,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicBlock{{Type: "text", Text: req.Prompt}},
		}},
	})
	if err != nil {
		return nil, err
	}

	text, _ := anthropicTurn(resp)
	return &Response{
		Text:       text,
		Model:      resp.Model,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// Converse runs one turn with tool use
func (p *AnthropicProvider) Converse(ctx context.Context, conv Conversation) (*Turn, error) {
	messages, err := anthropicMessages(conv.Messages)
	if err != nil {
		return nil, err
	}

	temp := p.temp(conv.Temperature)
	apiReq := anthropicRequest{
		Model:       p.model,
		MaxTokens:   p.tokens(conv.MaxTokens),
		System:      conv.System,
		Temperature: &temp,
		Messages:    messages,
	}
	for _, t := range conv.Tools {
		apiReq.Tools = append(apiReq.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters.JSONSchema(),
		})
	}

	resp, err := p.makeRequest(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	text, calls := anthropicTurn(resp)
	return &Turn{
		Text:       text,
		ToolCalls:  calls,
		Model:      resp.Model,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

func anthropicMessages(messages []Message) ([]anthropicMessage, error) {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		var blocks []anthropicBlock
		for _, tr := range m.ToolResults {
			content, err := json.Marshal(tr.Content)
			if err != nil {
				return nil, fmt.Errorf("marshal tool result for %s: %w", tr.Name, err)
			}
			blocks = append(blocks, anthropicBlock{
				Type:      "tool_result",
				ToolUseID: tr.CallID,
				Content:   string(content),
				IsError:   tr.IsError,
			})
		}
		if m.Text != "" {
			blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Text})
		}
		for _, tc := range m.ToolCalls {
			args := tc.Args
			if args == nil {
				args = map[string]any{}
			}
			input, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("marshal tool arguments for %s: %w", tc.Name, err)
			}
			blocks = append(blocks, anthropicBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
		}
		if len(blocks) == 0 {
			continue
		}

		role := "user"
		if m.Role == RoleModel {
			role = "assistant"
		}
		out = append(out, anthropicMessage{Role: role, Content: blocks})
	}
	return out, nil
}

func anthropicTurn(resp *anthropicResponse) (string, []ToolCall) {
	var text strings.Builder
	var calls []ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &args)
			}
			calls = append(calls, ToolCall{ID: block.ID, Name: block.Name, Args: args})
		}
	}
	return strings.TrimSpace(text.String()), calls
}

// makeRequest posts to /v1/messages
func (p *AnthropicProvider) makeRequest(ctx context.Context, apiReq anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Type != "" {
			return nil, &APIStatusError{StatusCode: httpResp.StatusCode, Type: apiErr.Error.Type, Message: apiErr.Error.Message}
		}
		return nil, &APIStatusError{StatusCode: httpResp.StatusCode, Message: string(respBody)}
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}
