package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// SupabaseCaller calls procedures through PostgREST
type SupabaseCaller struct {
	client *supabase.Client
	logger *zap.Logger
}

// NewSupabaseCaller creates a caller for a Supabase project
func NewSupabaseCaller(url, key, schema string, logger *zap.Logger) (*SupabaseCaller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{Schema: schema})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseCaller{client: client, logger: logger}, nil
}

var errEmptyResponse = errors.New("empty response (transport error or no body)")

// Call invokes procedure via POST /rest/v1/rpc/<procedure>. The client has
// no context support, so cancellation abandons the in-flight request.
func (c *SupabaseCaller) Call(ctx context.Context, procedure string, params map[string]any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Procedure: procedure, Err: err}
	}

	done := make(chan string, 1)
	go func() {
		done <- c.client.Rpc(procedure, "", params)
	}()

	var body string
	select {
	case <-ctx.Done():
		return nil, &FetchError{Procedure: procedure, Err: ctx.Err()}
	case body = <-done:
	}

	if body == "" {
		// void functions answer with no body; the client reports transport
		// failures the same way, so only persistence hooks may be empty
		if isVoidProcedure(procedure) {
			return json.RawMessage("null"), nil
		}
		return nil, &FetchError{Procedure: procedure, Err: errEmptyResponse}
	}
	if err := errorPayload(procedure, []byte(body)); err != nil {
		return nil, err
	}

	c.logger.Debug("rpc complete", zap.String("procedure", procedure), zap.Int("bytes", len(body)))
	return json.RawMessage(body), nil
}

func isVoidProcedure(procedure string) bool {
	return strings.HasPrefix(procedure, "save_")
}
