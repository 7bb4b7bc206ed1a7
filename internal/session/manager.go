// Package session issues, rotates, validates and revokes opaque session tokens.
// Every account holds at most one live token: issuing a new one replaces the old.
package session

import (
	"context"
	"errors"
	"io"

	"chatroom-auth-service/internal/apperr"
	"chatroom-auth-service/internal/metrics"
	"chatroom-auth-service/internal/storage"

	"go.uber.org/zap"
)

// Store is the part of storage.Store the manager needs
type Store interface {
	UpsertSession(ctx context.Context, accountID int64, token []byte) (storage.Session, error)
	CountSessionsByAccountAndToken(ctx context.Context, accountID int64, token []byte) (int64, error)
	DeleteSessionsByToken(ctx context.Context, token []byte) (int64, error)
}

// Session identifies a caller: the account and the token it presented
type Session struct {
	AccountID int64 `json:"user_id"`
	Token     Token `json:"session_token"`
}

type Manager struct {
	logger *zap.SugaredLogger
	store  Store
	random io.Reader
}

// Option configures a Manager
type Option func(*Manager)

// WithRandom replaces crypto/rand as token source
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		m.random = r
	}
}

func NewManager(logger *zap.SugaredLogger, store Store, opts ...Option) *Manager {
	m := &Manager{
		logger: logger,
		store:  store,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IssueOrRotate generates a fresh token and stores it as the single session of
// the account, invalidating whatever token the account held before
func (m *Manager) IssueOrRotate(ctx context.Context, accountID int64) (Token, error) {
	token, err := NewToken(m.random)
	if err != nil {
		m.logger.Errorw("Cannot generate session token", "account_id", accountID, "error", err)
		return Token{}, apperr.Wrap(apperr.ErrInternalWrite, err)
	}

	if _, err := m.store.UpsertSession(ctx, accountID, token.Bytes()); err != nil {
		m.logger.Errorw("Cannot store session token", "account_id", accountID, "error", err)
		if errors.Is(err, storage.ErrAccountNotExist) {
			return Token{}, apperr.Wrap(apperr.ErrNotFound, err)
		}
		return Token{}, apperr.Internal(err)
	}

	m.logger.Debugw("Issued session token", "account_id", accountID)

	return token, nil
}

// Validate reports whether exactly one stored session matches account and token.
// Any other count is treated as invalid.
func (m *Manager) Validate(ctx context.Context, accountID int64, token Token) (bool, error) {
	n, err := m.store.CountSessionsByAccountAndToken(ctx, accountID, token.Bytes())
	if err != nil {
		m.logger.Errorw("Cannot verify session token", "account_id", accountID, "error", err)
		metrics.ObserveSession(false, err)
		return false, apperr.Internal(err)
	}

	if n > 1 {
		m.logger.Warnw("Duplicate session rows", "account_id", accountID, "count", n)
	}

	metrics.ObserveSession(n == 1, nil)

	return n == 1, nil
}

// Require is Validate turning a mismatch into apperr.ErrInvalidSession
func (m *Manager) Require(ctx context.Context, s Session) error {
	ok, err := m.Validate(ctx, s.AccountID, s.Token)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrInvalidSession
	}
	return nil
}

// Revoke deletes every session holding token. Nothing to delete is not an error.
func (m *Manager) Revoke(ctx context.Context, token Token) error {
	n, err := m.store.DeleteSessionsByToken(ctx, token.Bytes())
	if err != nil {
		m.logger.Errorw("Cannot delete session token", "error", err)
		return apperr.Internal(err)
	}

	m.logger.Debugw("Revoked session token", "rows", n)

	return nil
}
