// Package llmtest provides a scripted model provider for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/ppiankov/donortrace/internal/llm"
)

// ErrNoReply is returned when the script is exhausted
var ErrNoReply = errors.New("llmtest: no scripted reply")

type reply struct {
	text string
	err  error
}

type turnReply struct {
	turn *llm.Turn
	err  error
}

// Fake is a scripted llm.Provider and llm.Embedder. Queued replies are
// consumed in order; when a queue is empty the matching func is used.
type Fake struct {
	mu sync.Mutex

	replies []reply
	turns   []turnReply

	// GenerateFunc answers Generate calls once the queue is empty
	GenerateFunc func(req llm.Request) (string, error)

	// EmbedFunc answers Embed per text; nil returns a 2-d vector
	EmbedFunc func(text string) ([]float32, error)

	requests      []llm.Request
	conversations []llm.Conversation
	embedded      []string
}

// New creates an empty fake
func New() *Fake {
	return &Fake{}
}

// Reply queues a Generate response
func (f *Fake) Reply(text string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{text: text})
	return f
}

// ReplyError queues a Generate failure
func (f *Fake) ReplyError(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{err: err})
	return f
}

// Turn queues a Converse response
func (f *Fake) Turn(turn *llm.Turn) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turnReply{turn: turn})
	return f
}

// TurnError queues a Converse failure
func (f *Fake) TurnError(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turnReply{err: err})
	return f
}

// Name returns "fake"
func (f *Fake) Name() string { return "fake" }

// Model returns "fake-model"
func (f *Fake) Model() string { return "fake-model" }

// Generate pops the next scripted reply
func (f *Fake) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	var next *reply
	if len(f.replies) > 0 {
		next = &f.replies[0]
		f.replies = f.replies[1:]
	}
	fn := f.GenerateFunc
	f.mu.Unlock()

	switch {
	case next != nil:
		if next.err != nil {
			return nil, next.err
		}
		return &llm.Response{Text: next.text, Model: f.Model()}, nil
	case fn != nil:
		text, err := fn(req)
		if err != nil {
			return nil, err
		}
		return &llm.Response{Text: text, Model: f.Model()}, nil
	}
	return nil, ErrNoReply
}

// Converse pops the next scripted turn
func (f *Fake) Converse(ctx context.Context, conv llm.Conversation) (*llm.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := conv
	snapshot.Messages = append([]llm.Message(nil), conv.Messages...)
	f.conversations = append(f.conversations, snapshot)

	if len(f.turns) == 0 {
		return nil, ErrNoReply
	}
	next := f.turns[0]
	f.turns = f.turns[1:]
	return next.turn, next.err
}

// Embed returns one vector per text
func (f *Fake) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.embedded = append(f.embedded, texts...)
	fn := f.EmbedFunc
	f.mu.Unlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if fn == nil {
			vectors[i] = []float32{float32(len(text)), 1}
			continue
		}
		v, err := fn(text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Requests returns the Generate requests seen so far
func (f *Fake) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

// Conversations returns the Converse inputs seen so far
func (f *Fake) Conversations() []llm.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Conversation(nil), f.conversations...)
}

// Embedded returns every text passed to Embed
func (f *Fake) Embedded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.embedded...)
}
