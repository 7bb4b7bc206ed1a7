// Package testing holds helpers shared by the package tests of this module.
package testing

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	mu  sync.Mutex
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandString generates random string with 10 symbols length from lower- and uppercase alphabet.
// Suitable for unique usernames and chatroom human ids in tests.
func RandString() string {
	return RandStringN(10)
}

// RandStringN generates random letter string of length n
func RandStringN(n int) string {
	mu.Lock()
	defer mu.Unlock()

	var out strings.Builder
	out.Grow(n)
	for i := 0; i < n; i++ {
		out.WriteByte(letters[rnd.Intn(len(letters))])
	}
	return out.String()
}

// RandToken returns 32 random bytes shaped like a session token
func RandToken() []byte {
	return []byte(RandStringN(32))
}
