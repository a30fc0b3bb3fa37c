package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/iliyamo/ticket-booking-core/internal/repository"
	"github.com/iliyamo/ticket-booking-core/internal/utils"
	"go.uber.org/zap"
)

// AuthConfig carries the token authority's settings.
type AuthConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	MaxDevices int
	Timeout    time.Duration
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService issues, rotates and revokes credentials and caps the number
// of active sessions per user.  Refresh rotation relies on the store's
// conditional revoke, not on locking.
type AuthService struct {
	users  UserStore
	tokens TokenStore
	cfg    AuthConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthService(users UserStore, tokens TokenStore, cfg AuthConfig, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxDevices <= 0 {
		cfg.MaxDevices = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		log:    log.Named("auth"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// MaxDevices is the per-user active session cap.
func (s *AuthService) MaxDevices() int { return s.cfg.MaxDevices }

// Register creates a CUSTOMER account.
func (s *AuthService) Register(ctx context.Context, email, password string, profile model.Profile) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", ErrInvalidRequest)
	}
	if !utils.StrongEnough(password) {
		return nil, ErrWeakCredential
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(profile.FullName),
		Role:         model.RoleCustomer,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if phone := strings.TrimSpace(profile.Phone); phone != "" {
		u.Phone = &phone
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if _, err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, s.storeErr("create user", err)
	}
	s.log.Info("user registered", zap.Uint64("user_id", u.ID))
	return u, nil
}

// Login verifies the credentials and opens a new session, then revokes
// the oldest active sessions so the user stays within MaxDevices.  A
// failed token insert never costs an existing session.
// Every credential failure yields the same ErrInvalidCredential.
func (s *AuthService) Login(ctx context.Context, email, password, deviceLabel, originAddress string) (*TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		// Burn a bcrypt round so unknown emails cost the same.
		utils.VerifyPassword("", password)
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, s.storeErr("user lookup", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		return nil, ErrInvalidCredential
	}

	now := s.now()
	refresh, err := utils.NewRefreshToken(now, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	rec := &model.RefreshToken{
		UserID:        u.ID,
		TokenHash:     utils.HashRefreshRaw(refresh.Raw),
		DeviceLabel:   optional(deviceLabel),
		OriginAddress: optional(originAddress),
		CreatedAt:     now,
		ExpiresAt:     refresh.Exp,
	}
	id, err := s.tokens.InsertToken(ctx, rec)
	if err != nil {
		return nil, s.storeErr("insert token", err)
	}
	// The new session is the newest, so eviction never picks it.
	if err := s.enforceCap(ctx, u.ID, s.cfg.MaxDevices, now); err != nil {
		if _, rerr := s.tokens.RevokeToken(context.WithoutCancel(ctx), id, now); rerr != nil {
			s.log.Warn("orphaned session not revoked", zap.Uint64("token_id", id), zap.Error(rerr))
		}
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.log.Warn("last login update failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}

	access, err := utils.NewAccessToken(s.cfg.Secret, u.ID, u.Role, now, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

// enforceCap revokes the user's oldest active sessions until at most
// limit remain.
func (s *AuthService) enforceCap(ctx context.Context, userID uint64, limit int, now time.Time) error {
	active, err := s.activeSessions(ctx, userID, now)
	if err != nil {
		return err
	}
	for len(active) > limit {
		oldest := active[0]
		if _, err := s.tokens.RevokeToken(ctx, oldest.ID, now); err != nil {
			return s.storeErr("revoke oldest session", err)
		}
		s.log.Info("session evicted by device cap",
			zap.Uint64("user_id", userID), zap.Uint64("token_id", oldest.ID))
		active = active[1:]
	}
	return nil
}

// activeSessions lists unrevoked, unexpired sessions, oldest first.
func (s *AuthService) activeSessions(ctx context.Context, userID uint64, now time.Time) ([]model.RefreshToken, error) {
	all, err := s.tokens.ActiveTokens(ctx, userID)
	if err != nil {
		return nil, s.storeErr("list sessions", err)
	}
	active := all[:0]
	for _, t := range all {
		if t.Active(now) {
			active = append(active, t)
		}
	}
	return active, nil
}

// Refresh exchanges a refresh token for a new pair.  The presented token
// is single-use: it is retired by a conditional revoke in the same
// transaction that stores its replacement.  Presenting a token that was
// already rotated is treated as theft and ends every session of the user.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	now := s.now()

	old, err := s.tokens.TokenByHash(ctx, utils.HashRefreshRaw(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, s.storeErr("token lookup", err)
	}
	if old.Rotated() {
		n, err := s.tokens.RevokeAllTokens(ctx, old.UserID, now)
		if err != nil {
			return nil, s.storeErr("revoke all", err)
		}
		s.log.Warn("refresh token reuse detected; all sessions revoked",
			zap.Uint64("user_id", old.UserID), zap.Int64("revoked", n))
		return nil, ErrInvalidToken
	}
	if !old.Active(now) {
		return nil, ErrInvalidToken
	}

	u, err := s.users.UserByID(ctx, old.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, s.storeErr("user lookup", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidToken
	}

	refresh, err := utils.NewRefreshToken(now, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	next := &model.RefreshToken{
		UserID:        old.UserID,
		TokenHash:     utils.HashRefreshRaw(refresh.Raw),
		DeviceLabel:   old.DeviceLabel,
		OriginAddress: old.OriginAddress,
		CreatedAt:     now,
		ExpiresAt:     refresh.Exp,
	}
	if _, err := s.tokens.RotateToken(ctx, old.ID, next, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost the race to a concurrent refresh or logout.
			return nil, ErrInvalidToken
		}
		return nil, s.storeErr("rotate token", err)
	}

	access, err := utils.NewAccessToken(s.cfg.Secret, u.ID, u.Role, now, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

// Revoke ends the session of a refresh token.  Unknown or already revoked
// tokens are not an error.
func (s *AuthService) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	t, err := s.tokens.TokenByHash(ctx, utils.HashRefreshRaw(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return s.storeErr("token lookup", err)
	}
	if _, err := s.tokens.RevokeToken(ctx, t.ID, s.now()); err != nil {
		return s.storeErr("revoke token", err)
	}
	return nil
}

// RevokeAll ends every session of a user and returns how many were open.
func (s *AuthService) RevokeAll(ctx context.Context, userID uint64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	n, err := s.tokens.RevokeAllTokens(ctx, userID, s.now())
	if err != nil {
		return 0, s.storeErr("revoke all", err)
	}
	return n, nil
}

// ActiveSessionCount counts the user's unrevoked, unexpired sessions.
func (s *AuthService) ActiveSessionCount(ctx context.Context, userID uint64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	active, err := s.activeSessions(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

// VerifyAccess checks an access token by signature and expiry only.
func (s *AuthService) VerifyAccess(raw string) (model.Principal, error) {
	claims, err := utils.ParseAccessToken(s.cfg.Secret, raw, s.now())
	if err != nil {
		return model.Principal{}, ErrInvalidToken
	}
	id, _ := claims.UserID()
	return model.Principal{UserID: id, Role: claims.Role}, nil
}

func (s *AuthService) storeErr(op string, err error) error {
	s.log.Error("durable store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
