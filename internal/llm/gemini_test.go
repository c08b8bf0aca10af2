package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/donortrace/internal/model"
)

func newGeminiTestProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewGeminiProvider(context.Background(), model.LLMConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gemini-2.5-flash",
	}, server.Client())
	require.NoError(t, err)
	return p
}

func TestGeminiProvider_Generate(t *testing.T) {
	p := newGeminiTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gen := body["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", gen["responseMimeType"])

		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"groups\": []}"}]}}],
			"usageMetadata": {"totalTokenCount": 12}
		}`))
	})

	resp, err := p.Generate(context.Background(), Request{Prompt: "groups", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"groups": []}`, resp.Text)
	assert.Equal(t, 12, resp.TokensUsed)
}

func TestGeminiProvider_ConverseFunctionCall(t *testing.T) {
	p := newGeminiTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tools := body["tools"].([]any)
		require.Len(t, tools, 1)

		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [
				{"functionCall": {"name": "list_votes", "args": {"person_id": 7}}}
			]}}]
		}`))
	})

	turn, err := p.Converse(context.Background(), Conversation{
		Messages: []Message{UserText("analyse")},
		Tools: []ToolDeclaration{{
			Name:       "list_votes",
			Parameters: Schema{Type: TypeObject, Properties: map[string]Schema{"person_id": {Type: TypeInteger}}, Required: []string{"person_id"}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, turn.ToolCalls, 1)
	assert.Equal(t, "list_votes", turn.ToolCalls[0].Name)
	assert.Equal(t, "call_0", turn.ToolCalls[0].ID)
	assert.Equal(t, 7.0, turn.ToolCalls[0].Args["person_id"])
	assert.Empty(t, turn.Text)
}

func TestGeminiContents(t *testing.T) {
	contents := geminiContents([]Message{
		UserText("start"),
		{Role: RoleModel, ToolCalls: []ToolCall{{ID: "c1", Name: "list_sessions", Args: map[string]any{}}}},
		{Role: RoleUser, ToolResults: []ToolResult{{CallID: "c1", Name: "list_sessions", Content: map[string]any{"rows": 1}}}},
		{Role: RoleUser},
	})

	require.Len(t, contents, 3, "empty messages are skipped")
	assert.Equal(t, "model", contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "c1", contents[1].Parts[0].FunctionCall.ID)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "list_sessions", contents[2].Parts[0].FunctionResponse.Name)
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	_, err := NewGeminiProvider(context.Background(), model.LLMConfig{}, nil)
	assert.Error(t, err)
}
