package storage

import "time"

type Account struct {
	ID              int64
	Username        string
	PasswordHash    string
	Email           string
	ChatroomsJoined []int64
	CreatedAt       time.Time
}

type Session struct {
	ID        int64
	AccountID int64
	Token     []byte
}

type Chatroom struct {
	ID              int64
	HumanID         string
	Name            string
	PasswordHash    *string
	Participants    []int64
	IsDirectMessage bool
	LastMessageID   *int64
}

// HasParticipant reports whether accountID is listed in the chatroom participants
func (c Chatroom) HasParticipant(accountID int64) bool {
	for _, id := range c.Participants {
		if id == accountID {
			return true
		}
	}
	return false
}

// NewChatroom holds the fields required to insert a chatroom row
type NewChatroom struct {
	HumanID      string
	Name         string
	PasswordHash *string
	CreatorID    int64
}
