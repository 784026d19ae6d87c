// Package procedures calls PostgreSQL functions by name with named JSON
// arguments, the way PostgREST exposes them under /rest/v1/rpc.
//
// The caller's credential is made available to the function as the
// transaction-local setting request.header.authorization.
package procedures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is used for names without a schema qualifier.
const DefaultSchema = "public"

// ErrInvalidName is returned for an empty procedure or schema name.
var ErrInvalidName = errors.New("invalid procedure name")

// Error is a failure reported by the database. Its text is the database
// message, which is what callers show to clients.
type Error struct {
	Code    string
	Message string
	Detail  string
	Hint    string
}

func (e *Error) Error() string {
	return e.Message
}

// Caller invokes database functions through a pgx pool.
type Caller struct {
	pool *pgxpool.Pool
}

// New returns a Caller using pool.
func New(pool *pgxpool.Pool) *Caller {
	return &Caller{pool: pool}
}

// Connect opens a pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string) (*Caller, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect procedures: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping procedures: %w", err)
	}
	return &Caller{pool: pool}, nil
}

// Ping verifies the database connection is alive.
func (c *Caller) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close closes the pool.
func (c *Caller) Close() {
	c.pool.Close()
}

// Call invokes name ("schema.function" or "function") with params, a JSON
// object whose keys are argument names. Set-returning functions yield a JSON
// array, void functions yield nil.
func (c *Caller) Call(ctx context.Context, authorization, name string, params json.RawMessage) (json.RawMessage, error) {
	schema, function, err := splitName(name)
	if err != nil {
		return nil, err
	}

	args, keys, err := decodeParams(params)
	if err != nil {
		return nil, err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("call %s: begin: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT set_config('request.header.authorization', $1, true)", authorization); err != nil {
		return nil, dbError(err)
	}

	sigs, err := lookup(ctx, tx, schema, function)
	if err != nil {
		return nil, dbError(err)
	}

	sig, err := choose(sigs, schema, function, keys)
	if err != nil {
		return nil, err
	}

	query := sig.query(keys)
	slog.DebugContext(ctx, "calling function", "function", name, "set", sig.returnSet, "void", sig.void)

	var result []byte
	if sig.void {
		_, err = tx.Exec(ctx, query, args)
	} else {
		err = tx.QueryRow(ctx, query, args).Scan(&result)
	}
	if err != nil {
		return nil, dbError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dbError(err)
	}

	if result == nil {
		return nil, nil
	}
	return json.RawMessage(result), nil
}

func splitName(name string) (string, string, error) {
	schema, function, found := strings.Cut(name, ".")
	if !found {
		schema, function = DefaultSchema, name
	}
	if schema == "" || function == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return schema, function, nil
}

// decodeParams checks that params is a JSON object and returns it as the
// text passed to jsonb_to_record along with its keys. Absent params call the
// function without arguments.
func decodeParams(params json.RawMessage) (string, []string, error) {
	trimmed := strings.TrimSpace(string(params))
	if trimmed == "" || trimmed == "null" {
		return "{}", nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(params, &fields); err != nil {
		return "", nil, &Error{Code: "PGRST102", Message: "parameters must be a JSON object"}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return trimmed, keys, nil
}

func dbError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{Code: pgErr.Code, Message: pgErr.Message, Detail: pgErr.Detail, Hint: pgErr.Hint}
	}
	return err
}
