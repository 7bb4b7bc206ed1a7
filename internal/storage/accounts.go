package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

const accountColumns = "id, username, password_hash, email, chatrooms_joined, created_at"

// CreateAccount inserts account with empty chatroom list; a taken username is
// reported by the unique constraint as ErrAccountExists
func (s *Store) CreateAccount(ctx context.Context, username, passwordHash, email string) (Account, error) {
	s.logger.Debugf("Creating account (%s)", username)

	conn, err := s.acquire(ctx)
	if err != nil {
		return Account{}, err
	}
	defer conn.Release()

	a := Account{
		Username:        username,
		PasswordHash:    passwordHash,
		Email:           email,
		ChatroomsJoined: []int64{},
	}

	sql := `insert into accounts (username, password_hash, email, chatrooms_joined, created_at)
			values ($1, $2, $3, '{}', $4)
			returning id, created_at`
	err = conn.QueryRow(ctx, sql, username, passwordHash, email, time.Now().UTC()).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if code, _, ok := pgErrorCode(err); ok && code == pgerrcode.UniqueViolation {
			return Account{}, ErrAccountExists
		}
		return Account{}, classify(err)
	}

	s.logger.Debugf("Created account (%s) with id %d", username, a.ID)

	return a, nil
}

// AccountByUsername returns account with provided username or ErrAccountNotExist
func (s *Store) AccountByUsername(ctx context.Context, username string) (Account, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return Account{}, err
	}
	defer conn.Release()

	sql := "select " + accountColumns + " from accounts where username = $1"
	return scanAccount(conn.QueryRow(ctx, sql, username))
}

// AccountByID returns account with provided id or ErrAccountNotExist
func (s *Store) AccountByID(ctx context.Context, id int64) (Account, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return Account{}, err
	}
	defer conn.Release()

	sql := "select " + accountColumns + " from accounts where id = $1"
	return scanAccount(conn.QueryRow(ctx, sql, id))
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a      Account
		joined pgtype.Int8Array
	)
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Email, &joined, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotExist
		}
		return Account{}, classify(err)
	}
	a.ChatroomsJoined = denseIDs(joined)

	return a, nil
}

// appendAccountChatroom adds chatroom to the account joined list unless it is already there
func appendAccountChatroom(ctx context.Context, q querier, accountID, chatroomID int64) error {
	sql := `update accounts
			   set chatrooms_joined = case
					when $2::bigint = any(chatrooms_joined) then chatrooms_joined
					else array_append(chatrooms_joined, $2::bigint)
				end
			 where id = $1`
	tag, err := q.Exec(ctx, sql, accountID, chatroomID)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotExist
	}
	return nil
}
