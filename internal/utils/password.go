package utils

import "golang.org/x/crypto/bcrypt"

// MinPasswordLength is the minimum accepted length of a password.
const MinPasswordLength = 8

// dummyHash is compared against when an account does not exist so that
// unknown emails cost the same as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.  An empty
// hash is checked against a dummy so the call still burns a bcrypt round.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// StrongEnough reports whether plain satisfies the password policy.
func StrongEnough(plain string) bool {
	return len(plain) >= MinPasswordLength
}
