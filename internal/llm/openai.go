package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/donortrace/internal/model"
	"github.com/ppiankov/donortrace/internal/repair"
)

const defaultOpenAIEmbedding = "text-embedding-3-small"

// OpenAIProvider implements Provider and Embedder for OpenAI and
// OpenAI-compatible servers (llm.base_url)
type OpenAIProvider struct {
	client         *openai.Client
	model          string
	embeddingModel string
	defaults
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg model.LLMConfig, httpClient *http.Client) (*OpenAIProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	// Local compatible servers usually accept any key
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	p := &OpenAIProvider{
		client:         openai.NewClientWithConfig(clientConfig),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		defaults:       defaults{temperature: cfg.Temperature, maxTokens: cfg.MaxOutputTokens},
	}
	if p.model == "" {
		p.model = openai.GPT4oMini
	}
	if p.embeddingModel == "" {
		p.embeddingModel = defaultOpenAIEmbedding
	}
	return p, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string { return "openai" }

// Model returns the chat model
func (p *OpenAIProvider) Model() string { return p.model }

// Generate runs one prompt through Chat Completions
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   p.tokens(req.MaxTokens),
		Temperature: p.temp(req.Temperature),
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// Converse runs one turn with function tools
func (p *OpenAIProvider) Converse(ctx context.Context, conv Conversation) (*Turn, error) {
	messages, err := openAIMessages(conv)
	if err != nil {
		return nil, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   p.tokens(conv.MaxTokens),
		Temperature: p.temp(conv.Temperature),
	}
	for _, t := range conv.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters.JSONSchema(),
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	turn := &Turn{
		Text:       strings.TrimSpace(msg.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}
	for _, tc := range msg.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: toolArgs(tc.Function.Arguments),
		})
	}
	return turn, nil
}

// Embed returns one vector per text, in input order
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func openAIMessages(conv Conversation) ([]openai.ChatCompletionMessage, error) {
	var messages []openai.ChatCompletionMessage
	if conv.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: conv.System})
	}

	for _, m := range conv.Messages {
		if m.Role == RoleModel {
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text}
			for _, tc := range m.ToolCalls {
				args, err := json.Marshal(tc.Args)
				if err != nil {
					return nil, fmt.Errorf("marshal tool arguments for %s: %w", tc.Name, err)
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:       tc.ID,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: tc.Name, Arguments: string(args)},
				})
			}
			messages = append(messages, msg)
			continue
		}

		for _, tr := range m.ToolResults {
			content, err := json.Marshal(tr.Content)
			if err != nil {
				return nil, fmt.Errorf("marshal tool result for %s: %w", tr.Name, err)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(content),
				Name:       tr.Name,
				ToolCallID: tr.CallID,
			})
		}
		if m.Text != "" {
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text})
		}
	}
	return messages, nil
}

// toolArgs decodes model-written arguments, tolerating near-JSON
func toolArgs(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	if obj, ok := repair.Parse(raw).Object(); ok {
		return obj
	}
	return map[string]any{}
}
