// Package store is the transactional object/journal store: it persists
// verified SignedObjects and their JournalEntry siblings atomically, and
// serves the read paths clients use to resync. Ported from db.rs, with
// pool setup and its begin/rollback/commit transaction shape following
// this repo's established Postgres conventions.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// acquireTimeout bounds each store operation as a whole: acquiring a pooled
// connection plus every query the operation then runs. Exceeding it fails
// with ResourceExhaustedError.
const acquireTimeout = 3 * time.Second

// maxConns is the pool's connection cap.
const maxConns = 5

// querier is the narrow slice of pgxpool.Pool this package needs for
// non-transactional reads. Depending on it instead of *pgxpool.Pool
// directly lets tests substitute a hand-rolled fake without a real
// Postgres instance.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// tx is the narrow slice of pgx.Tx this package needs inside a
// transaction.
type tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// beginner starts a transaction satisfying tx. Kept separate from querier
// (rather than folding Begin into it) so that a fake standing in for
// Begin never has to implement the full pgx.Tx interface — only the four
// methods tx names.
type beginner interface {
	Begin(ctx context.Context) (tx, error)
}

// poolBeginner adapts *pgxpool.Pool's Begin (which returns the full
// pgx.Tx interface) down to beginner's narrower tx return type. A real
// pgx.Tx value satisfies tx structurally, so no further wrapping of its
// methods is needed.
type poolBeginner struct {
	pool *pgxpool.Pool
}

func (b poolBeginner) Begin(ctx context.Context) (tx, error) {
	t, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Store is the transactional object/journal store.
type Store struct {
	pool  *pgxpool.Pool
	db    querier
	begin beginner
}

// Connect opens a pooled connection to the database at databaseURL.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	return &Store{pool: pool, db: pool, begin: poolBeginner{pool: pool}}, nil
}

// Close gracefully closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql, reading the DDL file and
// running it as one Exec.
func (s *Store) InitSchema(ctx context.Context) error {
	schemaBytes, err := os.ReadFile("internal/store/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := s.db.Exec(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// withAcquireTimeout bounds ctx to acquireTimeout. Every operation in this
// package calls it once, so the deadline covers the connection acquire and
// all of that operation's queries, not the acquire alone.
func withAcquireTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, acquireTimeout)
}

// classifyErr turns a driver error into one of this package's error
// types: a deadline exceeded from withAcquireTimeout (whether it expired
// during the acquire or during a query) becomes ResourceExhaustedError,
// anything else becomes DatabaseError. nil passes
// through unchanged.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ResourceExhaustedError{Err: err}
	}
	return &DatabaseError{Err: err}
}
