// Package database owns the PostgreSQL connection, schema migrations and the
// request-scoped Session that buffers mutations until commit.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"product-catalog/internal/config"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// PostgreSQL SQLSTATE codes the catalog cares about
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Service wraps the shared connection pool
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens a connection pool using the pgx driver and verifies it with a ping
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Service, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Connected to database",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already opened pool
func NewWithDB(db *sql.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// DB returns the underlying pool
func (s *Service) DB() *sql.DB {
	return s.db
}

// NewSession opens a request-scoped session over the shared pool
func (s *Service) NewSession() *Session {
	return NewSession(s.db, s.logger)
}

// Health returns a map of health status information
func (s *Service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("Database health check failed", zap.Error(err))
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}

	return stats
}

// Close closes the pool
func (s *Service) Close() error {
	s.logger.Info("Disconnected from database")
	return s.db.Close()
}

// IsForeignKeyViolation reports whether err carries SQLSTATE 23503
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsCheckViolation reports whether err carries SQLSTATE 23514
func IsCheckViolation(err error) bool {
	return hasCode(err, codeCheckViolation)
}

// ConstraintFields describes a constraint violation for structured logs.
// It returns nil when err is not a PostgreSQL error.
func ConstraintFields(err error) []zap.Field {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	return []zap.Field{
		zap.String("sqlstate", pgErr.Code),
		zap.String("constraint", pgErr.ConstraintName),
		zap.String("table", pgErr.TableName),
	}
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
