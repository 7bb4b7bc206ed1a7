package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

const chatroomColumns = "id, human_id, name, password_hash, participant_ids, is_direct_message, last_message_id"

// CreateChatroom performs two-step transaction to create chatroom
// (1. insert chatroom record with creator as sole participant; 2. append chatroom id to creator account)
// and returns the stored chatroom
func (s *Store) CreateChatroom(ctx context.Context, nc NewChatroom) (Chatroom, error) {
	s.logger.Debugf("Creating chatroom (%s) for account (id: %d)", nc.Name, nc.CreatorID)

	var c Chatroom
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		sql := `insert into chatrooms (human_id, name, password_hash, participant_ids, is_direct_message, last_message_id)
				values ($1, $2, $3, $4, false, null)
				returning ` + chatroomColumns
		var err error
		c, err = scanChatroom(tx.QueryRow(ctx, sql, nc.HumanID, nc.Name, nc.PasswordHash, []int64{nc.CreatorID}))
		if err != nil {
			if code, _, ok := pgErrorCode(err); ok && code == pgerrcode.UniqueViolation {
				return ErrChatroomExists
			}
			return err
		}

		return appendAccountChatroom(ctx, tx, nc.CreatorID, c.ID)
	})
	if err != nil {
		return Chatroom{}, err
	}

	s.logger.Debugf("Created chatroom (%s) with id %d", nc.Name, c.ID)

	return c, nil
}

// JoinChatroom adds account to chatroom participants and chatroom to account joined list
// in one transaction; joining twice changes nothing
func (s *Store) JoinChatroom(ctx context.Context, chatroomID, accountID int64) (Chatroom, error) {
	s.logger.Debugf("Adding account (id: %d) to chatroom (id: %d)", accountID, chatroomID)

	var c Chatroom
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		sql := `update chatrooms
				   set participant_ids = case
						when $2::bigint = any(participant_ids) then participant_ids
						else array_append(participant_ids, $2::bigint)
					end
				 where id = $1
				returning ` + chatroomColumns
		var err error
		c, err = scanChatroom(tx.QueryRow(ctx, sql, chatroomID, accountID))
		if err != nil {
			return err
		}

		return appendAccountChatroom(ctx, tx, accountID, chatroomID)
	})
	if err != nil {
		return Chatroom{}, err
	}

	return c, nil
}

// ChatroomByHumanID returns chatroom with provided public id or ErrChatroomNotExist
func (s *Store) ChatroomByHumanID(ctx context.Context, humanID string) (Chatroom, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return Chatroom{}, err
	}
	defer conn.Release()

	sql := "select " + chatroomColumns + " from chatrooms where human_id = $1"
	return scanChatroom(conn.QueryRow(ctx, sql, humanID))
}

// ChatroomsByIDs returns the existing chatrooms among ids, ordered by id;
// missing ids are simply absent from the result
func (s *Store) ChatroomsByIDs(ctx context.Context, ids []int64) ([]Chatroom, error) {
	s.logger.Debugf("Retrieving chatrooms (%v)", ids)

	if len(ids) == 0 {
		return []Chatroom{}, nil
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	sql := "select " + chatroomColumns + " from chatrooms where id = any($1) order by id"
	rows, err := conn.Query(ctx, sql, ids)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	chatrooms := make([]Chatroom, 0, len(ids))
	for rows.Next() {
		c, err := scanChatroom(rows)
		if err != nil {
			return nil, err
		}
		chatrooms = append(chatrooms, c)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	s.logger.Debugf("Retrieved %d chatrooms", len(chatrooms))

	return chatrooms, nil
}

func scanChatroom(row pgx.Row) (Chatroom, error) {
	var (
		c            Chatroom
		participants pgtype.Int8Array
	)
	err := row.Scan(&c.ID, &c.HumanID, &c.Name, &c.PasswordHash, &participants, &c.IsDirectMessage, &c.LastMessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Chatroom{}, ErrChatroomNotExist
		}
		return Chatroom{}, classify(err)
	}
	c.Participants = denseIDs(participants)

	return c, nil
}
