// Package backendtest provides a scripted backend for tests.
package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ppiankov/donortrace/internal/backend"
)

// Call records one invocation
type Call struct {
	Procedure string
	Params    map[string]any
}

// Responder computes a response for a call
type Responder func(params map[string]any) (any, error)

// Fake is a Caller whose responses are registered per procedure. Unknown
// procedures fail with the PostgREST not-found code.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Responder
	calls     []Call
}

// New creates an empty fake
func New() *Fake {
	return &Fake{responses: make(map[string]Responder)}
}

// On registers a fixed response, marshalled to JSON on each call
func (f *Fake) On(procedure string, response any) *Fake {
	return f.OnFunc(procedure, func(map[string]any) (any, error) { return response, nil })
}

// OnError makes procedure fail with err
func (f *Fake) OnError(procedure string, err error) *Fake {
	return f.OnFunc(procedure, func(map[string]any) (any, error) { return nil, err })
}

// OnFunc registers a computed response
func (f *Fake) OnFunc(procedure string, fn Responder) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[procedure] = fn
	return f
}

// Call implements backend.Caller
func (f *Fake) Call(ctx context.Context, procedure string, params map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Procedure: procedure, Params: params})
	fn, ok := f.responses[procedure]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &backend.FetchError{Procedure: procedure, Err: err}
	}
	if !ok {
		return nil, &backend.FetchError{
			Procedure: procedure,
			Code:      backend.CodePostgRESTNotFound,
			Message:   fmt.Sprintf("Could not find the function public.%s", procedure),
		}
	}

	resp, err := fn(params)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal fake response: %w", err)
	}
	return raw, nil
}

// Calls returns every recorded call
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls to one procedure
func (f *Fake) CallsTo(procedure string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Procedure == procedure {
			out = append(out, c)
		}
	}
	return out
}
