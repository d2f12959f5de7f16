// Package storage is the metadata store of the coordinator: a transactional
// SQL database holding polls, their rosters, the mirrored votes, users and
// the chain tail cursor. Every mutation runs inside a single transaction;
// status transitions are guarded updates so concurrent tail applies are
// naturally idempotent.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Sentinel errors returned by store operations. The API layer maps them to
// its HTTP taxonomy; the tail logs and drops most of them.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrAlreadyExists    = fmt.Errorf("already exists")
	ErrWrongStatus      = fmt.Errorf("wrong poll status")
	ErrRosterAlreadySet = fmt.Errorf("roster already set")
	ErrRosterEmpty      = fmt.Errorf("roster is empty")
	ErrBadOption        = fmt.Errorf("option index out of range")
	ErrNotCreator       = fmt.Errorf("actor is not the poll creator")
)

// ActivationOutcome is the discriminated result of ApplyActivation.
type ActivationOutcome int

const (
	ActivationApplied ActivationOutcome = iota
	ActivationAlreadyActive
	ActivationMissingRoster
	ActivationNotFound
)

func (o ActivationOutcome) String() string {
	switch o {
	case ActivationApplied:
		return "applied"
	case ActivationAlreadyActive:
		return "alreadyActive"
	case ActivationMissingRoster:
		return "missingRoster"
	case ActivationNotFound:
		return "notFound"
	}
	return "unknown"
}

// VoteOutcome is the discriminated result of UpsertVote.
type VoteOutcome int

const (
	VoteInserted VoteOutcome = iota
	VoteDuplicate
)

// querier abstracts *sql.DB and *sql.Tx so the same statement helpers can
// run standalone or inside a tail batch.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Storage wraps the SQL database. All exported operations are safe for
// concurrent use.
type Storage struct {
	db *sql.DB
}

// New opens (and creates, if needed) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store in tests.
func New(path string) (*Storage, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot create schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT INTO tail_cursor (id, last_block) VALUES (1, 0) ON CONFLICT(id) DO NOTHING`,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot seed tail cursor: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Batch groups store writes into one transaction. It is how the chain tail
// applies an event window and advances the cursor atomically: either the
// whole window commits, or none of it does.
type Batch struct {
	ctx context.Context
	tx  *sql.Tx
}

// RunBatch executes fn inside a single transaction. If fn returns an error
// the transaction is rolled back and the error returned.
func (s *Storage) RunBatch(ctx context.Context, fn func(*Batch) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cannot begin batch: %w", err)
	}
	if err := fn(&Batch{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cannot commit batch: %w", err)
	}
	return nil
}
