package model

import "time"

// Roles carried in the access token's role claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// User represents an account row as stored in the `users` table.
// The auth core only reads it and touches LastLoginAt.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hash of the password; the secret itself is never stored.
//  FullName     – display name supplied at registration.
//  Phone        – optional phone number.
//  Role         – CUSTOMER or ADMIN.
//  IsActive     – inactive accounts cannot log in or refresh.
//  LastLoginAt  – time of the last successful login (nil if never).
type User struct {
	ID           uint64     // users.id
	Email        string     // users.email
	PasswordHash string     // users.password_hash
	FullName     string     // users.full_name
	Phone        *string    // users.phone (nullable)
	Role         string     // users.role
	IsActive     bool       // users.is_active
	LastLoginAt  *time.Time // users.last_login_at (nullable)
	CreatedAt    time.Time  // users.created_at
}

// Profile holds the optional account details captured at registration.
type Profile struct {
	FullName string
	Phone    string
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 digest of the opaque value is persisted.  Records are never
// deleted; revocation only flips the Active predicate.
type RefreshToken struct {
	ID            uint64     // refresh_tokens.id
	UserID        uint64     // refresh_tokens.user_id
	TokenHash     string     // refresh_tokens.token_hash
	DeviceLabel   *string    // refresh_tokens.device_label (nullable)
	OriginAddress *string    // refresh_tokens.origin_address (nullable)
	CreatedAt     time.Time  // refresh_tokens.created_at
	ExpiresAt     time.Time  // refresh_tokens.expires_at
	RevokedAt     *time.Time // refresh_tokens.revoked_at (nullable)
	ReplacedBy    *uint64    // refresh_tokens.replaced_by (set when rotated)
}

// Active reports whether the token is neither revoked nor expired at now.
func (t RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Rotated reports whether the token was retired by a refresh rotation.
func (t RefreshToken) Rotated() bool {
	return t.RevokedAt != nil && t.ReplacedBy != nil
}

// Principal is the authenticated caller attached to a request.  It is
// passed explicitly into service operations.
type Principal struct {
	UserID uint64
	Role   string
}

// IsAdmin reports whether the principal carries the ADMIN role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
