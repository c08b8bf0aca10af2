package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/donortrace/internal/model"
)

func newOpenAITestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenAIProvider(model.LLMConfig{
		APIKey:          "test-key",
		BaseURL:         server.URL,
		Model:           "gpt-4o-mini",
		Temperature:     0.2,
		MaxOutputTokens: 500,
	}, nil)
	require.NoError(t, err)
	return p
}

func TestOpenAIProvider_Generate(t *testing.T) {
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Equal(t, "find groups", req.Messages[1].Content)
		assert.Equal(t, 500, req.MaxTokens)
		require.NotNil(t, req.ResponseFormat)

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: ` {"groups": []} `},
			}},
			Usage: openai.Usage{TotalTokens: 42},
		})
	})

	resp, err := p.Generate(context.Background(), Request{System: "be strict", Prompt: "find groups", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"groups": []}`, resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
}

func TestOpenAIProvider_ConverseToolCalls(t *testing.T) {
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "list_votes", req.Tools[0].Function.Name)

		// assistant turn with the call, then the tool result
		require.Len(t, req.Messages, 3)
		assert.Equal(t, openai.ChatMessageRoleAssistant, req.Messages[1].Role)
		require.Len(t, req.Messages[1].ToolCalls, 1)
		assert.Equal(t, openai.ChatMessageRoleTool, req.Messages[2].Role)
		assert.Equal(t, "call_1", req.Messages[2].ToolCallID)

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: "assistant",
					ToolCalls: []openai.ToolCall{{
						ID:       "call_2",
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: "get_bill_detail", Arguments: `{bill_id: 500,}`},
					}},
				},
			}},
		})
	})

	turn, err := p.Converse(context.Background(), Conversation{
		Messages: []Message{
			UserText("analyse person 7"),
			{Role: RoleModel, ToolCalls: []ToolCall{{ID: "call_1", Name: "list_votes", Args: map[string]any{"person_id": 7}}}},
			{Role: RoleUser, ToolResults: []ToolResult{{CallID: "call_1", Name: "list_votes", Content: map[string]any{"rows": []any{}}}}},
		},
		Tools: []ToolDeclaration{{
			Name:       "list_votes",
			Parameters: Schema{Type: TypeObject, Properties: map[string]Schema{"person_id": {Type: TypeInteger}}},
		}},
	})
	require.NoError(t, err)
	require.True(t, turn.HasToolCalls())
	assert.Equal(t, "get_bill_detail", turn.ToolCalls[0].Name)
	assert.Equal(t, 500.0, turn.ToolCalls[0].Args["bill_id"])
}

func TestOpenAIProvider_Embed(t *testing.T) {
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
		})
	})

	vectors, err := p.Embed(context.Background(), []string{"solar tax credit", "utility rates"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])
}

func TestOpenAIProvider_QuotaError(t *testing.T) {
	p := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`))
	})

	_, err := p.Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)

	me := Classify("openai", "phase1", err)
	assert.Equal(t, KindQuota, me.Kind)
	assert.Equal(t, err, me.Err)
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIProvider(model.LLMConfig{}, nil)
	assert.Error(t, err)

	// compatible local servers need no key
	_, err = NewOpenAIProvider(model.LLMConfig{BaseURL: "http://localhost:11434/v1"}, nil)
	assert.NoError(t, err)
}
