package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"google.golang.org/genai"

	"github.com/ppiankov/donortrace/internal/model"
)

const (
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultGeminiEmbedding = "text-embedding-004"

	// Query vectors are compared against stored bill-text vectors
	embeddingTaskType = "RETRIEVAL_QUERY"
)

// GeminiProvider implements Provider and Embedder over google.golang.org/genai
type GeminiProvider struct {
	client         *genai.Client
	model          string
	embeddingModel string
	defaults
}

// NewGeminiProvider creates a Gemini API client
func NewGeminiProvider(ctx context.Context, cfg model.LLMConfig, httpClient *http.Client) (*GeminiProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	p := &GeminiProvider{
		client:         client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		defaults:       defaults{temperature: cfg.Temperature, maxTokens: cfg.MaxOutputTokens},
	}
	if p.model == "" {
		p.model = defaultGeminiModel
	}
	if p.embeddingModel == "" {
		p.embeddingModel = defaultGeminiEmbedding
	}
	return p, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string { return "gemini" }

// Model returns the generation model
func (p *GeminiProvider) Model() string { return p.model }

func (p *GeminiProvider) config(system string, temp *float32, maxTokens int) *genai.GenerateContentConfig {
	t := p.temp(temp)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &t,
		MaxOutputTokens: int32(p.tokens(maxTokens)),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

// Generate runs one prompt
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	cfg := p.config(req.System, req.Temperature, req.MaxTokens)
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		cfg,
	)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	return &Response{
		Text:       resp.Text(),
		Model:      p.model,
		TokensUsed: geminiTokens(resp),
	}, nil
}

// Converse runs one turn of a function-calling conversation
func (p *GeminiProvider) Converse(ctx context.Context, conv Conversation) (*Turn, error) {
	cfg := p.config(conv.System, conv.Temperature, conv.MaxTokens)
	if len(conv.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(conv.Tools))
		for i, t := range conv.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters.GenAI(),
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, geminiContents(conv.Messages), cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	turn := &Turn{
		Model:      p.model,
		TokensUsed: geminiTokens(resp),
	}
	calls := resp.FunctionCalls()
	for i, fc := range calls {
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		turn.ToolCalls = append(turn.ToolCalls, ToolCall{ID: id, Name: fc.Name, Args: fc.Args})
	}
	if len(calls) == 0 {
		turn.Text = resp.Text()
	}
	return turn, nil
}

// Embed returns one query vector per text
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := p.client.Models.EmbedContent(ctx, p.embeddingModel, contents,
		&genai.EmbedContentConfig{TaskType: embeddingTaskType})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func geminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var parts []*genai.Part
		if m.Text != "" {
			parts = append(parts, genai.NewPartFromText(m.Text))
		}
		for _, tc := range m.ToolCalls {
			part := genai.NewPartFromFunctionCall(tc.Name, tc.Args)
			part.FunctionCall.ID = tc.ID
			parts = append(parts, part)
		}
		for _, tr := range m.ToolResults {
			part := genai.NewPartFromFunctionResponse(tr.Name, tr.Content)
			part.FunctionResponse.ID = tr.CallID
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			continue
		}

		var role genai.Role = genai.RoleUser
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

func geminiTokens(resp *genai.GenerateContentResponse) int {
	if resp == nil || resp.UsageMetadata == nil {
		return 0
	}
	return int(resp.UsageMetadata.TotalTokenCount)
}
