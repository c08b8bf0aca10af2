package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresCaller calls the same procedures directly over a pgx pool
type PostgresCaller struct {
	pool   *pgxpool.Pool
	schema string
	logger *zap.Logger
}

// NewPostgresCaller connects a pool to databaseURL
func NewPostgresCaller(ctx context.Context, databaseURL, schema string, logger *zap.Logger) (*PostgresCaller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if schema == "" {
		schema = "public"
	}
	return &PostgresCaller{pool: pool, schema: schema, logger: logger}, nil
}

// Close releases the pool
func (c *PostgresCaller) Close() {
	c.pool.Close()
}

// Call runs SELECT over the function with named arguments and aggregates
// the rows into one JSON array
func (c *PostgresCaller) Call(ctx context.Context, procedure string, params map[string]any) (json.RawMessage, error) {
	query, args := BuildCallQuery(c.schema, procedure, params)

	var raw []byte
	if err := c.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, &FetchError{Procedure: procedure, Code: pgErr.Code, Message: pgErr.Message, Err: err}
		}
		return nil, &FetchError{Procedure: procedure, Err: err}
	}

	c.logger.Debug("rpc complete", zap.String("procedure", procedure), zap.Int("bytes", len(raw)))
	return json.RawMessage(raw), nil
}

// BuildCallQuery renders the SQL for a named-argument function call.
// Parameters are bound in name order.
func BuildCallQuery(schema, procedure string, params map[string]any) (string, []any) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s => $%d", pgx.Identifier{name}.Sanitize(), i+1)
		args[i] = params[name]
	}

	fn := pgx.Identifier{schema, procedure}.Sanitize()
	query := fmt.Sprintf(
		"SELECT coalesce(jsonb_agg(r), '[]'::jsonb) FROM %s(%s) AS r",
		fn, strings.Join(parts, ", "),
	)
	return query, args
}
