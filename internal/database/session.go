package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionClosed       = errors.New("session is closed")
	ErrOptimisticLock      = errors.New("optimistic lock error: the record has been modified by another transaction")
	ErrTransactionBegin    = errors.New("failed to begin transaction")
	ErrTransactionCommit   = errors.New("failed to commit transaction")
	ErrTransactionRollback = errors.New("failed to rollback transaction")
)

// Mutation is a write staged against a Session
type Mutation struct {
	Query string
	Args  []any

	// Dest receives the RETURNING columns of the statement, when set.
	Dest []any

	// RequireRows aborts the whole commit with ErrOptimisticLock when the
	// statement matches no row.
	RequireRows bool
}

// Session is a request-scoped handle over the shared pool. Writes are staged
// in memory and only reach the database, atomically and in call order, on
// Commit. Reads go straight to the pool and therefore never observe staged
// writes. A Session must not be shared between concurrent requests.
type Session struct {
	id      uuid.UUID
	db      *sql.DB
	logger  *zap.Logger
	pending []Mutation
	commits int
	closed  bool
}

// NewSession creates a session over db
func NewSession(db *sql.DB, logger *zap.Logger) *Session {
	id := uuid.New()
	return &Session{
		id:     id,
		db:     db,
		logger: logger.With(zap.String("session_id", id.String())),
	}
}

// ID identifies the session in logs
func (s *Session) ID() uuid.UUID {
	return s.id
}

// QueryContext runs a read query against the pool
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row read query against the pool
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// Stage buffers a mutation until the next Commit
func (s *Session) Stage(m Mutation) {
	s.pending = append(s.pending, m)
}

// Pending returns the number of staged mutations
func (s *Session) Pending() int {
	return len(s.pending)
}

// Commits returns how many times Commit has been called on this session
func (s *Session) Commits() int {
	return s.commits
}

// Commit applies all staged mutations in a single transaction and returns the
// number of affected rows. Staged mutations are consumed whether or not the
// commit succeeds. With nothing staged it returns 0 without touching the
// database.
func (s *Session) Commit(ctx context.Context) (int64, error) {
	if s.closed {
		return -1, ErrSessionClosed
	}
	s.commits++

	if len(s.pending) == 0 {
		return 0, nil
	}

	pending := s.pending
	s.pending = nil

	var affected int64
	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		for i, m := range pending {
			n, err := apply(ctx, tx, m)
			if err != nil {
				return fmt.Errorf("mutation %d of %d: %w", i+1, len(pending), err)
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Commit failed",
			zap.Int("mutations", len(pending)),
			zap.Error(err),
		)
		return -1, err
	}

	s.logger.Debug("Commit succeeded",
		zap.Int("mutations", len(pending)),
		zap.Int64("rows_affected", affected),
	)
	return affected, nil
}

// Discard drops any staged mutations and closes the session for writing. It
// is safe to call more than once.
func (s *Session) Discard() {
	if s.closed {
		return
	}
	if n := len(s.pending); n > 0 {
		s.logger.Debug("Discarding uncommitted mutations", zap.Int("mutations", n))
	}
	s.pending = nil
	s.closed = true
}

func (s *Session) withTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionBegin, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("%w: %v", ErrTransactionRollback, rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionCommit, err)
	}
	return nil
}

func apply(ctx context.Context, tx *sql.Tx, m Mutation) (int64, error) {
	if m.Dest != nil {
		err := tx.QueryRowContext(ctx, m.Query, m.Args...).Scan(m.Dest...)
		switch {
		case errors.Is(err, sql.ErrNoRows) && m.RequireRows:
			return 0, ErrOptimisticLock
		case errors.Is(err, sql.ErrNoRows):
			return 0, nil
		case err != nil:
			return 0, err
		}
		return 1, nil
	}

	result, err := tx.ExecContext(ctx, m.Query, m.Args...)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 && m.RequireRows {
		return 0, ErrOptimisticLock
	}
	return n, nil
}
