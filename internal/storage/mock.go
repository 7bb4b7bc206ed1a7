package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify double satisfying the store interfaces consumed by
// the session, chatroom and auth packages
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateAccount(ctx context.Context, username, passwordHash, email string) (Account, error) {
	args := m.Called(ctx, username, passwordHash, email)
	return args.Get(0).(Account), args.Error(1)
}

func (m *MockStore) AccountByUsername(ctx context.Context, username string) (Account, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(Account), args.Error(1)
}

func (m *MockStore) AccountByID(ctx context.Context, id int64) (Account, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Account), args.Error(1)
}

func (m *MockStore) UpsertSession(ctx context.Context, accountID int64, token []byte) (Session, error) {
	args := m.Called(ctx, accountID, token)
	return args.Get(0).(Session), args.Error(1)
}

func (m *MockStore) CountSessionsByAccountAndToken(ctx context.Context, accountID int64, token []byte) (int64, error) {
	args := m.Called(ctx, accountID, token)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) DeleteSessionsByToken(ctx context.Context, token []byte) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) CreateChatroom(ctx context.Context, nc NewChatroom) (Chatroom, error) {
	args := m.Called(ctx, nc)
	return args.Get(0).(Chatroom), args.Error(1)
}

func (m *MockStore) JoinChatroom(ctx context.Context, chatroomID, accountID int64) (Chatroom, error) {
	args := m.Called(ctx, chatroomID, accountID)
	return args.Get(0).(Chatroom), args.Error(1)
}

func (m *MockStore) ChatroomByHumanID(ctx context.Context, humanID string) (Chatroom, error) {
	args := m.Called(ctx, humanID)
	return args.Get(0).(Chatroom), args.Error(1)
}

func (m *MockStore) ChatroomsByIDs(ctx context.Context, ids []int64) ([]Chatroom, error) {
	args := m.Called(ctx, ids)
	if chatrooms, ok := args.Get(0).([]Chatroom); ok {
		return chatrooms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
