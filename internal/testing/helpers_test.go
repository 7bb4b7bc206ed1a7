package testing

import (
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"
)

func TestRandString(t *testing.T) {
	s := RandString()
	require.Len(t, s, 10)
	for _, r := range s {
		require.True(t, unicode.IsLetter(r))
	}
	require.NotEqual(t, s, RandString())
}

func TestRandToken(t *testing.T) {
	require.Len(t, RandToken(), 32)
}

func TestReverseIDs(t *testing.T) {
	ids := []int64{0, 1, 2, 3, 4, 5}
	require.Equal(t, []int64{5, 4, 3, 2, 1, 0}, ReverseIDs(ids))
	require.Equal(t, []int64{0, 1, 2, 3, 4, 5}, ids)
	require.Empty(t, ReverseIDs(nil))
}
