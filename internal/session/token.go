package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// TokenSize is the length in bytes of every session token
const TokenSize = 32

var ErrMalformedToken = errors.New("malformed session token")

// Token is an opaque bearer credential. It is encoded as standard base64 in JSON.
type Token [TokenSize]byte

// NewToken reads a fresh token from r, crypto/rand.Reader when r is nil
func NewToken(r io.Reader) (Token, error) {
	if r == nil {
		r = rand.Reader
	}

	var t Token
	if _, err := io.ReadFull(r, t[:]); err != nil {
		return Token{}, fmt.Errorf("read random bytes: %w", err)
	}
	return t, nil
}

// ParseToken decodes a base64 token and checks its length
func ParseToken(s string) (Token, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(b) != TokenSize {
		return Token{}, fmt.Errorf("%w: got %d bytes", ErrMalformedToken, len(b))
	}

	var t Token
	copy(t[:], b)
	return t, nil
}

func (t Token) String() string {
	return base64.StdEncoding.EncodeToString(t[:])
}

func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Token) UnmarshalText(text []byte) error {
	parsed, err := ParseToken(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Bytes returns the token as a slice for storage queries
func (t Token) Bytes() []byte {
	b := make([]byte, TokenSize)
	copy(b, t[:])
	return b
}
