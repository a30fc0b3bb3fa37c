package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBookingReference returns a human readable booking code such as
// BK-2025-K7QX2M.  Uniqueness is enforced by the store; callers retry on
// collision.
func NewBookingReference(now time.Time) (string, error) {
	const n = 6
	b := make([]byte, n)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = referenceAlphabet[idx.Int64()]
	}
	return fmt.Sprintf("BK-%d-%s", now.UTC().Year(), b), nil
}

// NewValidationCode returns the opaque code printed on a ticket.
func NewValidationCode() string {
	return uuid.NewString()
}

// NewHolderToken identifies a single reservation attempt as a lock holder.
func NewHolderToken() string {
	return uuid.NewString()
}
