package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository"
	"github.com/KavyaGunapati/TypeFromProject/pkg/database"
	apperrors "github.com/KavyaGunapati/TypeFromProject/pkg/errors"
)

const (
	insertRefreshTokenQuery = `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at, is_revoked)
		VALUES ($1, $2, $3, $4, false)
		RETURNING id`

	// casRevokeQuery flips exactly one active row. Concurrent callers
	// presenting the same digest serialise on the row lock; the loser sees
	// is_revoked = true after the winner commits and matches zero rows.
	casRevokeQuery = `
		UPDATE refresh_tokens
		SET is_revoked = true
		WHERE token_hash = $1 AND is_revoked = false AND expires_at > $2
		RETURNING id, user_id, token_hash, expires_at, created_at`
)

// RefreshTokenRepository implements repository.RefreshTokenRepository using PostgreSQL.
type RefreshTokenRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(db database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Save stores a new active refresh token digest and returns the record id.
func (r *RefreshTokenRepository) Save(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (id int64, err error) {
	ctx, end := database.TraceQuery(ctx, "SaveRefreshToken", insertRefreshTokenQuery)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, insertRefreshTokenQuery, userID, tokenHash, expiresAt, r.now()).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert refresh token: %w", repository.ErrTokenCollision)
		}
		return 0, fmt.Errorf("insert refresh token: %w", err)
	}

	return id, nil
}

// FindActive retrieves the refresh token record for tokenHash if it is still
// active at now.
func (r *RefreshTokenRepository) FindActive(ctx context.Context, tokenHash string, now time.Time) (rt *domain.RefreshToken, err error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, is_revoked
		FROM refresh_tokens
		WHERE token_hash = $1 AND is_revoked = false AND expires_at > $2`

	ctx, end := database.TraceQuery(ctx, "FindActiveRefreshToken", query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var t domain.RefreshToken
	err = r.db.QueryRow(ctx, query, tokenHash, now).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.IsRevoked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &t, nil
}

// Revoke marks a refresh token revoked. Already revoked or missing records
// are left as they are.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id int64) (err error) {
	query := `UPDATE refresh_tokens SET is_revoked = true WHERE id = $1 AND is_revoked = false`

	ctx, end := database.TraceQuery(ctx, "RevokeRefreshToken", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

// Rotate revokes the active record for presentedHash and inserts its
// successor in a single transaction.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, presentedHash, nextHash string, nextExpiresAt, now time.Time) (rot *repository.Rotation, err error) {
	ctx, end := database.TraceQuery(ctx, "RotateRefreshToken", casRevokeQuery)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var out repository.Rotation
	err = database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		old := &out.Revoked
		err := tx.QueryRow(ctx, casRevokeQuery, presentedHash, now).Scan(
			&old.ID,
			&old.UserID,
			&old.TokenHash,
			&old.ExpiresAt,
			&old.CreatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("revoke presented token: %w", err)
		}
		old.IsRevoked = true

		createdAt := r.now()
		next := &out.Successor
		if err := tx.QueryRow(ctx, insertRefreshTokenQuery, old.UserID, nextHash, nextExpiresAt, createdAt).Scan(&next.ID); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert successor token: %w", repository.ErrTokenCollision)
			}
			return fmt.Errorf("insert successor token: %w", err)
		}
		next.UserID = old.UserID
		next.TokenHash = nextHash
		next.ExpiresAt = nextExpiresAt
		next.CreatedAt = createdAt

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}
