package storage

import (
	"context"

	"github.com/jackc/pgerrcode"
)

// UpsertSession stores token as the only session of the account. The statement
// is atomic, so concurrent logins of one account never leave two rows behind
func (s *Store) UpsertSession(ctx context.Context, accountID int64, token []byte) (Session, error) {
	s.logger.Debugf("Upserting session for account (id: %d)", accountID)

	conn, err := s.acquire(ctx)
	if err != nil {
		return Session{}, err
	}
	defer conn.Release()

	var sess Session
	sql := `insert into sessions (account_id, token) values ($1, $2)
			on conflict (account_id) do update set token = excluded.token
			returning id, account_id, token`
	err = conn.QueryRow(ctx, sql, accountID, token).Scan(&sess.ID, &sess.AccountID, &sess.Token)
	if err != nil {
		if code, _, ok := pgErrorCode(err); ok && code == pgerrcode.ForeignKeyViolation {
			return Session{}, ErrAccountNotExist
		}
		return Session{}, classify(err)
	}

	return sess, nil
}

// CountSessionsByAccountAndToken returns number of session rows matching both fields
func (s *Store) CountSessionsByAccountAndToken(ctx context.Context, accountID int64, token []byte) (int64, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var n int64
	sql := "select count(*) from sessions where account_id = $1 and token = $2"
	if err := conn.QueryRow(ctx, sql, accountID, token).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// DeleteSessionsByToken removes every session row holding token and returns how many were removed
func (s *Store) DeleteSessionsByToken(ctx context.Context, token []byte) (int64, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, "delete from sessions where token = $1", token)
	if err != nil {
		return 0, classify(err)
	}

	s.logger.Debugf("Deleted %d sessions", tag.RowsAffected())

	return tag.RowsAffected(), nil
}
