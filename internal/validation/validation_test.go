package validation

import (
	"errors"
	"strings"
	"testing"

	"chatroom-auth-service/internal/apperr"

	"github.com/stretchr/testify/require"
)

type input struct {
	Username string  `validate:"required,max=8"`
	Email    string  `validate:"required,email"`
	Password *string `validate:"omitempty,min=3"`
}

func TestStructValid(t *testing.T) {
	pw := "secret"
	require.NoError(t, New().Struct(input{Username: "alice", Email: "a@x.com", Password: &pw}))
	require.NoError(t, New().Struct(input{Username: "alice", Email: "a@x.com"}))
}

func TestStructInvalid(t *testing.T) {
	pw := "no"
	err := New().Struct(input{Username: "", Email: "nope", Password: &pw})
	require.True(t, errors.Is(err, apperr.ErrInvalidInput))
	require.Equal(t,
		"invalid input: username is required; email must be a valid email; password must be at least 3 characters",
		err.Error())
}

func TestStructTooLong(t *testing.T) {
	err := New().Struct(input{Username: "abcdefghij", Email: "a@x.com"})
	require.EqualError(t, err, "invalid input: username must be at most 8 characters")
}

func TestStructNotAStruct(t *testing.T) {
	err := New().Struct(42)
	require.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

type secret struct {
	Password *string `validate:"omitempty,maxbytes=72"`
}

func TestStructMaxBytesCountsBytes(t *testing.T) {
	ascii := strings.Repeat("a", 72)
	require.NoError(t, New().Struct(secret{Password: &ascii}))

	// 72 runes, 144 bytes
	accented := strings.Repeat("é", 72)
	err := New().Struct(secret{Password: &accented})
	require.True(t, errors.Is(err, apperr.ErrInvalidInput))
	require.EqualError(t, err, "invalid input: password must be at most 72 bytes")

	require.NoError(t, New().Struct(secret{}))
}
