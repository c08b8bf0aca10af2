// Package llm wraps the generative model providers behind one interface:
// plain generation, tool-calling conversations and phrase embeddings.
package llm

import (
	"context"
)

// Role identifies the author of a conversation message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Provider is a generative model endpoint
type Provider interface {
	// Name returns the provider name, e.g. "gemini"
	Name() string

	// Model returns the generation model in use
	Model() string

	// Generate runs one prompt and returns the text
	Generate(ctx context.Context, req Request) (*Response, error)

	// Converse sends a conversation with tool declarations and returns
	// either text or requested tool calls
	Converse(ctx context.Context, conv Conversation) (*Turn, error)
}

// Embedder turns phrases into query vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Request is a single-prompt generation call
type Request struct {
	// Phase labels the call for logs, metrics and errors
	Phase string

	// System is an optional system instruction
	System string

	Prompt string

	// Temperature overrides the configured default when set
	Temperature *float32

	// MaxTokens overrides the configured default when positive
	MaxTokens int

	// JSON asks the provider for a JSON response where supported
	JSON bool
}

// Response is the result of Generate
type Response struct {
	Text       string
	Model      string
	TokensUsed int
}

// Message is one conversation entry. A model message may carry tool
// calls; the following user message carries their results.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolCall is a model request to run a named tool
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult answers one ToolCall
type ToolResult struct {
	CallID  string
	Name    string
	Content map[string]any
	IsError bool
}

// ToolDeclaration describes a callable tool
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  Schema
}

// Conversation is a multi-turn tool-calling exchange
type Conversation struct {
	Phase       string
	System      string
	Messages    []Message
	Tools       []ToolDeclaration
	Temperature *float32
	MaxTokens   int
}

// Turn is one model reply within a conversation
type Turn struct {
	Text       string
	ToolCalls  []ToolCall
	Model      string
	TokensUsed int
}

// HasToolCalls reports whether the model asked for tools
func (t *Turn) HasToolCalls() bool {
	return t != nil && len(t.ToolCalls) > 0
}

// UserText builds a user message
func UserText(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// Float32 returns a pointer to f, for Request.Temperature
func Float32(f float32) *float32 {
	return &f
}

type defaults struct {
	temperature float32
	maxTokens   int
}

func (d defaults) temp(override *float32) float32 {
	if override != nil {
		return *override
	}
	return d.temperature
}

func (d defaults) tokens(override int) int {
	if override > 0 {
		return override
	}
	if d.maxTokens > 0 {
		return d.maxTokens
	}
	return 8192
}

// ErrorResult answers a tool call with an error the model can read and
// correct
func ErrorResult(call ToolCall, msg string) ToolResult {
	return ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: map[string]any{"error": msg},
		IsError: true,
	}
}
