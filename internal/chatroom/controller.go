// Package chatroom creates chatrooms and decides which of them a caller may see.
// A room is disclosed by id only to a caller holding a valid session who is
// also listed among its participants.
package chatroom

import (
	"context"
	"crypto/rand"
	"errors"
	"io"

	"chatroom-auth-service/internal/apperr"
	"chatroom-auth-service/internal/metrics"
	"chatroom-auth-service/internal/session"
	"chatroom-auth-service/internal/storage"
	"chatroom-auth-service/internal/validation"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// maxHumanIDAttempts bounds regeneration after a human id collision
const maxHumanIDAttempts = 5

type Store interface {
	CreateChatroom(ctx context.Context, nc storage.NewChatroom) (storage.Chatroom, error)
	JoinChatroom(ctx context.Context, chatroomID, accountID int64) (storage.Chatroom, error)
	ChatroomByHumanID(ctx context.Context, humanID string) (storage.Chatroom, error)
	ChatroomsByIDs(ctx context.Context, ids []int64) ([]storage.Chatroom, error)
}

// Sessions checks the caller's session, session.Manager satisfies it
type Sessions interface {
	Require(ctx context.Context, s session.Session) error
}

// Chatroom is the public view of a room. The password hash is never exposed.
type Chatroom struct {
	UID             int64   `json:"chatroom_uid"`
	HumanID         string  `json:"chatroom_id"`
	Name            string  `json:"chatroom_name"`
	Participants    []int64 `json:"participants"`
	IsDirectMessage bool    `json:"is_direct_message"`
	LastMessageID   *int64  `json:"last_message_id"`
}

func fromStorage(c storage.Chatroom) Chatroom {
	participants := c.Participants
	if participants == nil {
		participants = []int64{}
	}
	return Chatroom{
		UID:             c.ID,
		HumanID:         c.HumanID,
		Name:            c.Name,
		Participants:    participants,
		IsDirectMessage: c.IsDirectMessage,
		LastMessageID:   c.LastMessageID,
	}
}

type createInput struct {
	Name     string  `validate:"required,max=128"`
	Password *string `validate:"omitempty,min=1,maxbytes=72"`
}

type Controller struct {
	logger   *zap.SugaredLogger
	store    Store
	sessions Sessions
	validate *validation.Validator
	random   io.Reader
	hashCost int
}

type Option func(*Controller)

// WithRandom replaces crypto/rand as human id source
func WithRandom(r io.Reader) Option {
	return func(c *Controller) {
		c.random = r
	}
}

// WithHashCost sets the bcrypt cost used for chatroom passwords
func WithHashCost(cost int) Option {
	return func(c *Controller) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			c.hashCost = cost
		}
	}
}

func NewController(logger *zap.SugaredLogger, store Store, sessions Sessions, opts ...Option) *Controller {
	c := &Controller{
		logger:   logger,
		store:    store,
		sessions: sessions,
		validate: validation.New(),
		random:   rand.Reader,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create makes a new room holding the caller as its only participant and adds
// the room to the caller's joined list
func (c *Controller) Create(ctx context.Context, s session.Session, name string, password *string) (room Chatroom, err error) {
	defer func() { metrics.ObserveChatroom("create", err) }()

	if err := c.validate.Struct(createInput{Name: name, Password: password}); err != nil {
		return Chatroom{}, err
	}
	if err := c.sessions.Require(ctx, s); err != nil {
		return Chatroom{}, err
	}

	var hash *string
	if password != nil {
		b, err := bcrypt.GenerateFromPassword([]byte(*password), c.hashCost)
		if err != nil {
			c.logger.Errorw("Cannot hash chatroom password", "error", err)
			return Chatroom{}, apperr.Wrap(apperr.ErrInternalWrite, err)
		}
		h := string(b)
		hash = &h
	}

	for attempt := 1; attempt <= maxHumanIDAttempts; attempt++ {
		humanID, err := NewHumanID(c.random)
		if err != nil {
			c.logger.Errorw("Cannot generate human id", "error", err)
			return Chatroom{}, apperr.Wrap(apperr.ErrInternalWrite, err)
		}

		created, err := c.store.CreateChatroom(ctx, storage.NewChatroom{
			HumanID:      humanID,
			Name:         name,
			PasswordHash: hash,
			CreatorID:    s.AccountID,
		})
		switch {
		case err == nil:
			c.logger.Infow("Chatroom created", "chatroom_id", created.ID, "account_id", s.AccountID)
			return fromStorage(created), nil
		case errors.Is(err, storage.ErrChatroomExists):
			c.logger.Warnw("Human id collision", "attempt", attempt)
			continue
		case errors.Is(err, storage.ErrAccountNotExist):
			return Chatroom{}, apperr.Wrap(apperr.ErrNotFound, err)
		default:
			c.logger.Errorw("Cannot create chatroom", "account_id", s.AccountID, "error", err)
			return Chatroom{}, apperr.Internal(err)
		}
	}

	c.logger.Errorw("Human id space exhausted", "attempts", maxHumanIDAttempts)
	return Chatroom{}, apperr.Wrap(apperr.ErrConflict, storage.ErrChatroomExists)
}

// resolve finds a room by human id. A supplied password acts as an extra
// filter: a wrong password and a password for an open room yield the same
// ErrNotFound as a missing room. Without a password the room is returned.
func (c *Controller) resolve(ctx context.Context, humanID string, password *string) (storage.Chatroom, error) {
	room, err := c.store.ChatroomByHumanID(ctx, humanID)
	if err != nil {
		if errors.Is(err, storage.ErrChatroomNotExist) {
			return storage.Chatroom{}, apperr.Wrap(apperr.ErrNotFound, err)
		}
		c.logger.Errorw("Cannot load chatroom", "human_id", humanID, "error", err)
		return storage.Chatroom{}, apperr.Internal(err)
	}

	if password == nil {
		return room, nil
	}
	if room.PasswordHash == nil {
		return storage.Chatroom{}, apperr.ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*room.PasswordHash), []byte(*password)); err != nil {
		return storage.Chatroom{}, apperr.ErrNotFound
	}
	return room, nil
}

// FetchByHumanID looks a room up by its public id. The caller must hold a
// valid session.
func (c *Controller) FetchByHumanID(ctx context.Context, s session.Session, humanID string, password *string) (room Chatroom, err error) {
	defer func() { metrics.ObserveChatroom("fetch", err) }()

	if err := c.sessions.Require(ctx, s); err != nil {
		return Chatroom{}, err
	}

	found, err := c.resolve(ctx, humanID, password)
	if err != nil {
		return Chatroom{}, err
	}
	return fromStorage(found), nil
}

// FetchKnown returns the rooms with the given internal ids in request order.
// Every room must exist and list the caller, otherwise the whole batch fails
// with ErrForbidden.
func (c *Controller) FetchKnown(ctx context.Context, s session.Session, ids []int64) (rooms []Chatroom, err error) {
	defer func() { metrics.ObserveChatroom("fetch_known", err) }()

	if err := c.sessions.Require(ctx, s); err != nil {
		return nil, err
	}

	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	found, err := c.store.ChatroomsByIDs(ctx, unique)
	if err != nil {
		c.logger.Errorw("Cannot load chatrooms", "account_id", s.AccountID, "error", err)
		return nil, apperr.Internal(err)
	}

	byID := make(map[int64]storage.Chatroom, len(found))
	for _, room := range found {
		byID[room.ID] = room
	}

	rooms = make([]Chatroom, 0, len(unique))
	for _, id := range unique {
		room, ok := byID[id]
		if !ok || !room.HasParticipant(s.AccountID) {
			c.logger.Warnw("Chatroom access denied", "account_id", s.AccountID, "chatroom_id", id, "exists", ok)
			return nil, apperr.ErrForbidden
		}
		rooms = append(rooms, fromStorage(room))
	}

	return rooms, nil
}

// Join adds the caller to a room resolved like FetchByHumanID, except that a
// protected room always requires its password. Joining a room twice is not an
// error.
func (c *Controller) Join(ctx context.Context, s session.Session, humanID string, password *string) (room Chatroom, err error) {
	defer func() { metrics.ObserveChatroom("join", err) }()

	if err := c.sessions.Require(ctx, s); err != nil {
		return Chatroom{}, err
	}

	found, err := c.resolve(ctx, humanID, password)
	if err != nil {
		return Chatroom{}, err
	}
	if found.PasswordHash != nil && password == nil {
		return Chatroom{}, apperr.ErrNotFound
	}
	if found.HasParticipant(s.AccountID) {
		return fromStorage(found), nil
	}

	joined, err := c.store.JoinChatroom(ctx, found.ID, s.AccountID)
	if err != nil {
		c.logger.Errorw("Cannot join chatroom", "account_id", s.AccountID, "chatroom_id", found.ID, "error", err)
		switch {
		case errors.Is(err, storage.ErrChatroomNotExist), errors.Is(err, storage.ErrAccountNotExist):
			return Chatroom{}, apperr.Wrap(apperr.ErrNotFound, err)
		default:
			return Chatroom{}, apperr.Internal(err)
		}
	}

	c.logger.Infow("Chatroom joined", "chatroom_id", found.ID, "account_id", s.AccountID)

	return fromStorage(joined), nil
}
