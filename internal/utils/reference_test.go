package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingReferenceFormat(t *testing.T) {
	now := time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)
	re := regexp.MustCompile(`^BK-2025-[A-Z2-9]{6}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref, err := NewBookingReference(now)
		require.NoError(t, err)
		assert.Regexp(t, re, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestValidationCodesAreUnique(t *testing.T) {
	assert.NotEqual(t, NewValidationCode(), NewValidationCode())
	assert.NotEqual(t, NewHolderToken(), NewHolderToken())
}
