package booking

import (
	"crypto/rand"
	"fmt"
	"time"
)

const numberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewBookingNumber builds a human-facing identifier: "B-20250106-X7K2".
// The suffix is 4 random base36 characters, so collisions within a day are
// rare but possible; creation retries on a unique-constraint hit.
func NewBookingNumber(now time.Time) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for this process
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = numberAlphabet[int(b)%len(numberAlphabet)]
	}
	return fmt.Sprintf("B-%s-%s", now.Format("20060102"), buf)
}
