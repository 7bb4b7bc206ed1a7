// Package auth implements account registration, login, logout and session
// continuation on top of the session manager.
package auth

import (
	"context"
	"errors"
	"time"

	"chatroom-auth-service/internal/apperr"
	"chatroom-auth-service/internal/metrics"
	"chatroom-auth-service/internal/session"
	"chatroom-auth-service/internal/storage"
	"chatroom-auth-service/internal/validation"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Store interface {
	CreateAccount(ctx context.Context, username, passwordHash, email string) (storage.Account, error)
	AccountByUsername(ctx context.Context, username string) (storage.Account, error)
	AccountByID(ctx context.Context, id int64) (storage.Account, error)
}

// Sessions is the part of session.Manager the facade needs
type Sessions interface {
	IssueOrRotate(ctx context.Context, accountID int64) (session.Token, error)
	Validate(ctx context.Context, accountID int64, token session.Token) (bool, error)
	Revoke(ctx context.Context, token session.Token) error
}

type RegisterInput struct {
	Username string `validate:"required,max=64,printascii"`
	Password string `validate:"required,maxbytes=72"`
	Email    string `validate:"required,email,max=254"`
}

type loginInput struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,maxbytes=72"`
}

// Result is returned by Register and Login
type Result struct {
	AccountID       int64         `json:"user_id"`
	Token           session.Token `json:"session_token"`
	ChatroomsJoined []int64       `json:"chatrooms_joined"`
}

// UserInfo describes the account behind a live session
type UserInfo struct {
	ID              int64     `json:"user_id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	ChatroomsJoined []int64   `json:"chatrooms_joined"`
	CreatedAt       time.Time `json:"created_at"`
}

type Facade struct {
	logger   *zap.SugaredLogger
	store    Store
	sessions Sessions
	validate *validation.Validator
	hashCost int
	// compared against when the username is unknown so both failures cost a bcrypt round
	dummyHash []byte
}

type Option func(*Facade)

// WithHashCost sets the bcrypt cost of new password hashes
func WithHashCost(cost int) Option {
	return func(f *Facade) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			f.hashCost = cost
		}
	}
}

func NewFacade(logger *zap.SugaredLogger, store Store, sessions Sessions, opts ...Option) (*Facade, error) {
	f := &Facade{
		logger:   logger,
		store:    store,
		sessions: sessions,
		validate: validation.New(),
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(f)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy password"), f.hashCost)
	if err != nil {
		return nil, err
	}
	f.dummyHash = dummy

	return f, nil
}

// Register creates an account and logs it in. If issuing the session fails the
// account stays registered and the caller can log in later.
func (f *Facade) Register(ctx context.Context, in RegisterInput) (res Result, err error) {
	defer func() { metrics.ObserveAuth("register", err) }()

	if err := f.validate.Struct(in); err != nil {
		return Result{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), f.hashCost)
	if err != nil {
		f.logger.Errorw("Cannot hash password", "error", err)
		return Result{}, apperr.Wrap(apperr.ErrInternalWrite, err)
	}

	account, err := f.store.CreateAccount(ctx, in.Username, string(hash), in.Email)
	if err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			f.logger.Infow("Username taken", "username", in.Username)
			return Result{}, apperr.Wrap(apperr.ErrConflict, err)
		}
		f.logger.Errorw("Cannot create account", "username", in.Username, "error", err)
		return Result{}, apperr.Internal(err)
	}

	f.logger.Infow("Account registered", "account_id", account.ID)

	token, err := f.sessions.IssueOrRotate(ctx, account.ID)
	if err != nil {
		f.logger.Warnw("Account registered without session", "account_id", account.ID, "error", err)
		return Result{}, err
	}

	return Result{
		AccountID:       account.ID,
		Token:           token,
		ChatroomsJoined: joined(account.ChatroomsJoined),
	}, nil
}

// Login checks the credentials and rotates the account's session token. An
// unknown username and a wrong password both yield ErrNotFound.
func (f *Facade) Login(ctx context.Context, username, password string) (res Result, err error) {
	defer func() { metrics.ObserveAuth("login", err) }()

	if err := f.validate.Struct(loginInput{Username: username, Password: password}); err != nil {
		return Result{}, err
	}

	account, err := f.store.AccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotExist) {
			_ = bcrypt.CompareHashAndPassword(f.dummyHash, []byte(password))
			return Result{}, apperr.ErrNotFound
		}
		f.logger.Errorw("Cannot load account", "username", username, "error", err)
		return Result{}, apperr.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		f.logger.Infow("Wrong password", "account_id", account.ID)
		return Result{}, apperr.ErrNotFound
	}

	token, err := f.sessions.IssueOrRotate(ctx, account.ID)
	if err != nil {
		return Result{}, err
	}

	f.logger.Infow("Account logged in", "account_id", account.ID)

	return Result{
		AccountID:       account.ID,
		Token:           token,
		ChatroomsJoined: joined(account.ChatroomsJoined),
	}, nil
}

// Logout revokes token. Unknown tokens are accepted.
func (f *Facade) Logout(ctx context.Context, token session.Token) (err error) {
	defer func() { metrics.ObserveAuth("logout", err) }()

	return f.sessions.Revoke(ctx, token)
}

// ContinueSession returns the account behind a live session
func (f *Facade) ContinueSession(ctx context.Context, accountID int64, token session.Token) (info UserInfo, err error) {
	defer func() { metrics.ObserveAuth("continue_session", err) }()

	ok, err := f.sessions.Validate(ctx, accountID, token)
	if err != nil {
		return UserInfo{}, err
	}
	if !ok {
		return UserInfo{}, apperr.ErrInvalidSession
	}

	account, err := f.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotExist) {
			return UserInfo{}, apperr.Wrap(apperr.ErrInvalidSession, err)
		}
		f.logger.Errorw("Cannot load account", "account_id", accountID, "error", err)
		return UserInfo{}, apperr.Internal(err)
	}

	return UserInfo{
		ID:              account.ID,
		Username:        account.Username,
		Email:           account.Email,
		ChatroomsJoined: joined(account.ChatroomsJoined),
		CreatedAt:       account.CreatedAt,
	}, nil
}

func joined(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
