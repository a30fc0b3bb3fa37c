package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/model"
)

// TokenRepo persists refresh-token records.  Only the SHA-256 digest of
// the opaque value is stored (token_hash).  Rows are never deleted;
// every revocation goes through a conditional update on revoked_at.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const tokenColumns = "id,user_id,token_hash,device_label,origin_address,created_at,expires_at,revoked_at,replaced_by"

// InsertToken stores a new refresh-token record and returns its ID.
func (r *TokenRepo) InsertToken(ctx context.Context, t *model.RefreshToken) (uint64, error) {
	id, err := insertToken(ctx, r.DB, t)
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

// TokenByHash looks a record up by its digest, whatever its state.
func (r *TokenRepo) TokenByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash=? LIMIT 1", hash)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ActiveTokens returns the user's unrevoked records, oldest first with a
// stable tie-break on id.  Expiry is left to the caller's clock.
func (r *TokenRepo) ActiveTokens(ctx context.Context, userID uint64) ([]model.RefreshToken, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE user_id=? AND revoked_at IS NULL ORDER BY created_at, id",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// RevokeToken marks one record revoked if it is still unrevoked.  It
// reports whether this call performed the revocation.
func (r *TokenRepo) RevokeToken(ctx context.Context, id uint64, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE id=? AND revoked_at IS NULL", at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RevokeAllTokens revokes every unrevoked record of the user.
func (r *TokenRepo) RevokeAllTokens(ctx context.Context, userID uint64, at time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL", at, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RotateToken retires oldID and stores next in one transaction.  The old
// record is revoked with a compare-and-set on revoked_at, so of two
// concurrent rotations of the same record only one commits; the loser
// gets ErrConflict and nothing is written.
func (r *TokenRepo) RotateToken(ctx context.Context, oldID uint64, next *model.RefreshToken, at time.Time) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE id=? AND revoked_at IS NULL", at, oldID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, ErrConflict
	}

	newID, err := insertToken(ctx, tx, next)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET replaced_by=? WHERE id=?", newID, oldID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	next.ID = newID
	return newID, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, db execer, t *model.RefreshToken) (uint64, error) {
	res, err := db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, device_label, origin_address, created_at, expires_at) VALUES (?,?,?,?,?,?)",
		t.UserID, t.TokenHash, t.DeviceLabel, t.OriginAddress, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(s rowScanner) (*model.RefreshToken, error) {
	var (
		t          model.RefreshToken
		device     sql.NullString
		origin     sql.NullString
		revokedAt  sql.NullTime
		replacedBy sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.TokenHash, &device, &origin,
		&t.CreatedAt, &t.ExpiresAt, &revokedAt, &replacedBy); err != nil {
		return nil, err
	}
	if device.Valid {
		t.DeviceLabel = &device.String
	}
	if origin.Valid {
		t.OriginAddress = &origin.String
	}
	if revokedAt.Valid {
		ts := revokedAt.Time
		t.RevokedAt = &ts
	}
	if replacedBy.Valid {
		id := uint64(replacedBy.Int64)
		t.ReplacedBy = &id
	}
	return &t, nil
}
