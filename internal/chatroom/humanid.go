package chatroom

import (
	"fmt"
	"io"
)

const (
	// HumanIDLength is the number of characters of a generated human id
	HumanIDLength = 10

	firstPrintable = 32
	printableCount = 126 - firstPrintable + 1
	// largest multiple of printableCount below 256, bytes above it are rejected
	acceptBelow = 256 / printableCount * printableCount
)

// NewHumanID draws HumanIDLength characters uniformly from ASCII 32..126
func NewHumanID(r io.Reader) (string, error) {
	out := make([]byte, 0, HumanIDLength)
	buf := make([]byte, HumanIDLength*2)

	for len(out) < HumanIDLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= acceptBelow {
				continue
			}
			out = append(out, byte(firstPrintable+int(b)%printableCount))
			if len(out) == HumanIDLength {
				break
			}
		}
	}

	return string(out), nil
}
