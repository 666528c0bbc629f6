package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/goSession/pepper"
)

// PostgresStore persists families in a sessions table. Rotate locks the
// row with SELECT ... FOR UPDATE so the compare-and-rotate is serialized
// per family by the database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pgx pool. Run Migrate against the
// database first.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `family_id, tenant_id, subject, role, account_version,
	refresh_token_id, device_hash, revoked, created_at, last_used_at, expires_at,
	ip, user_agent, device_label, location`

func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	var deviceHash []byte
	if sess.DeviceBound {
		deviceHash = sess.DeviceHash[:]
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		sess.FamilyID, sess.TenantID, sess.Subject, sess.Role, int64(sess.AccountVersion),
		sess.RefreshTokenID, deviceHash, sess.Revoked, sess.CreatedAt, sess.LastUsedAt,
		sess.ExpiresAt, sess.Created.IP, sess.Created.UserAgent, sess.Created.DeviceLabel,
		sess.Created.Location,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, familyID string) (*Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE family_id = $1`, familyID)
	return scanSession(row)
}

func (s *PostgresStore) Rotate(ctx context.Context, req RotateRequest) (RotateOutcome, *Session, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return RotateNotFound, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	sess, err := s.getForUpdate(ctx, tx, req.FamilyID)
	if errors.Is(err, ErrNotFound) {
		return RotateNotFound, nil, nil
	}
	if err != nil {
		return RotateNotFound, nil, err
	}

	if sess.Expired(req.Now) {
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE family_id = $1`, req.FamilyID); err != nil {
			return RotateNotFound, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return RotateNotFound, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return RotateExpired, nil, nil
	}

	if sess.Revoked {
		return RotateRevoked, nil, nil
	}

	if sess.DeviceBound {
		if !req.HaveDevice || subtle.ConstantTimeCompare(sess.DeviceHash[:], req.DeviceDigest[:]) != 1 {
			return RotateDeviceMismatch, nil, nil
		}
	}

	if sess.RefreshTokenID != req.PresentedTokenID {
		if _, err := tx.Exec(ctx, `UPDATE sessions SET revoked = TRUE WHERE family_id = $1`, req.FamilyID); err != nil {
			return RotateNotFound, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return RotateNotFound, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return RotateReused, nil, nil
	}

	bind := req.HaveDevice && !sess.DeviceBound
	var deviceHash []byte
	if bind {
		deviceHash = req.DeviceDigest[:]
	} else if sess.DeviceBound {
		deviceHash = sess.DeviceHash[:]
	}
	_, err = tx.Exec(ctx, `
		UPDATE sessions
		SET refresh_token_id = $2, last_used_at = $3, device_hash = $4
		WHERE family_id = $1`,
		req.FamilyID, req.NextTokenID, req.Now, deviceHash,
	)
	if err != nil {
		return RotateNotFound, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return RotateNotFound, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess.RefreshTokenID = req.NextTokenID
	sess.LastUsedAt = req.Now
	if bind {
		sess.DeviceHash = req.DeviceDigest
		sess.DeviceBound = true
	}
	return RotateOK, sess, nil
}

func (s *PostgresStore) Reissue(ctx context.Context, req ReissueRequest) (*Session, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	sess, err := s.getForUpdate(ctx, tx, req.FamilyID)
	if err != nil {
		return nil, err
	}
	if !sess.Usable(req.Now) {
		return nil, ErrNotFound
	}
	if sess.DeviceBound {
		if !req.HaveDevice || subtle.ConstantTimeCompare(sess.DeviceHash[:], req.DeviceDigest[:]) != 1 {
			return nil, ErrNotFound
		}
	}

	bind := req.HaveDevice && !sess.DeviceBound
	var deviceHash []byte
	if bind {
		deviceHash = req.DeviceDigest[:]
	} else if sess.DeviceBound {
		deviceHash = sess.DeviceHash[:]
	}
	_, err = tx.Exec(ctx, `
		UPDATE sessions
		SET refresh_token_id = $2, last_used_at = $3, device_hash = $4
		WHERE family_id = $1`,
		req.FamilyID, req.NextTokenID, req.Now, deviceHash,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess.RefreshTokenID = req.NextTokenID
	sess.LastUsedAt = req.Now
	if bind {
		sess.DeviceHash = req.DeviceDigest
		sess.DeviceBound = true
	}
	return sess, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, familyID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET revoked = TRUE WHERE family_id = $1`, familyID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) RevokeAllForTenant(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE sessions SET revoked = TRUE
		WHERE tenant_id = $1 AND NOT revoked
		RETURNING family_id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var familyIDs []string
	for rows.Next() {
		var familyID string
		if err := rows.Scan(&familyID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		familyIDs = append(familyIDs, familyID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return familyIDs, nil
}

func (s *PostgresStore) CountActive(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE tenant_id = $1 AND NOT revoked AND expires_at > NOW()`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

func (s *PostgresStore) OldestActive(ctx context.Context, tenantID string, n int) ([]*Session, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE tenant_id = $1 AND NOT revoked AND expires_at > NOW()
		ORDER BY last_used_at ASC
		LIMIT $2`, tenantID, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sessions, nil
}

func (s *PostgresStore) Touch(ctx context.Context, familyID string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET last_used_at = $2 WHERE family_id = $1`, familyID, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) getForUpdate(ctx context.Context, tx pgx.Tx, familyID string) (*Session, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE family_id = $1 FOR UPDATE`, familyID)
	return scanSession(row)
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		sess           Session
		accountVersion int64
		deviceHash     []byte
	)
	err := row.Scan(
		&sess.FamilyID, &sess.TenantID, &sess.Subject, &sess.Role, &accountVersion,
		&sess.RefreshTokenID, &deviceHash, &sess.Revoked, &sess.CreatedAt, &sess.LastUsedAt,
		&sess.ExpiresAt, &sess.Created.IP, &sess.Created.UserAgent, &sess.Created.DeviceLabel,
		&sess.Created.Location,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess.AccountVersion = uint32(accountVersion)
	if len(deviceHash) > 0 {
		if len(deviceHash) != pepper.DigestSize {
			return nil, fmt.Errorf("%w: device hash", ErrCorrupt)
		}
		copy(sess.DeviceHash[:], deviceHash)
		sess.DeviceBound = true
	}
	return &sess, nil
}
