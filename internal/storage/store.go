package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"chatroom-auth-service/internal/apperr"
	"chatroom-auth-service/internal/storage/zapadapter"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrUnavailable      = fmt.Errorf("database: %w", apperr.ErrStorageUnavailable)
	ErrAccountExists    = errors.New("account already exists")
	ErrAccountNotExist  = errors.New("account does not exist")
	ErrChatroomExists   = errors.New("chatroom human id already taken")
	ErrChatroomNotExist = errors.New("chatroom does not exist")
)

//go:embed schema.sql
var schema string

// querier is satisfied by both pooled connections and transactions
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	MaxConns(cfg.MaxConns).apply(config)
	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Migrate creates tables and constraints when they are missing
func (s *Store) Migrate(ctx context.Context) error {
	s.logger.Debug("Applying schema")

	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, schema); err != nil {
		return classify(err)
	}
	return nil
}

// Ping checks that a connection can be acquired and used
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := conn.Conn().Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes all pool connections
func (s *Store) Close() {
	s.db.Close()
}

// acquire takes a connection from the pool; failure here means the pool is
// exhausted, closed or the server cannot be reached
func (s *Store) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return conn, nil
}

// inTx runs fn inside a transaction on a freshly acquired connection
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// error handling can be omitted for rollback according docs
	defer tx.Rollback(context.Background())

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// classify keeps statement errors reported by the server as they are and marks
// everything else (dropped connection, canceled context) as ErrUnavailable
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func pgErrorCode(err error) (string, string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}
