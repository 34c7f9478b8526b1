// Package postgres implements the store interfaces on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bizware/authcore/store"
)

// DB is the subset of pgxpool.Pool the stores use. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountStore persists accounts in the accounts table.
type AccountStore struct {
	db DB
}

// NewAccountStore returns a postgres-backed account store.
func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, identifier, name, password_hash, status,
	failed_attempts, lock_until, risk_score,
	active_device_id, session_created_at, session_count,
	last_login_ip, last_login_ua, last_login_at,
	created_at, updated_at`

func scanAccount(row pgx.Row) (*store.Account, error) {
	var (
		a                              store.Account
		lockUntil, sessionCreated      *time.Time
		lastLoginAt                    *time.Time
		activeDevice, loginIP, loginUA *string
	)

	err := row.Scan(&a.ID, &a.Identifier, &a.Name, &a.PasswordHash, &a.Status,
		&a.FailedAttempts, &lockUntil, &a.RiskScore,
		&activeDevice, &sessionCreated, &a.SessionCount,
		&loginIP, &loginUA, &lastLoginAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	if lockUntil != nil {
		a.LockUntil = *lockUntil
	}
	if sessionCreated != nil {
		a.SessionCreatedAt = *sessionCreated
	}
	if lastLoginAt != nil {
		a.LastLoginAt = *lastLoginAt
	}
	if activeDevice != nil {
		a.ActiveDeviceID = *activeDevice
	}
	if loginIP != nil {
		a.LastLoginIP = *loginIP
	}
	if loginUA != nil {
		a.LastLoginUA = *loginUA
	}

	return &a, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *AccountStore) GetByIdentifier(ctx context.Context, identifier string) (*store.Account, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE identifier = lower($1) LIMIT 1`,
		identifier)
	return scanAccount(row)
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (*store.Account, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 LIMIT 1`, id)
	return scanAccount(row)
}

func (s *AccountStore) Create(ctx context.Context, a *store.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, identifier, name, password_hash, status,
			failed_attempts, lock_until, risk_score,
			active_device_id, session_created_at, session_count,
			last_login_ip, last_login_ua, last_login_at,
			created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, a.Identifier, a.Name, a.PasswordHash, a.Status,
		a.FailedAttempts, nullableTime(a.LockUntil), a.RiskScore,
		nullableString(a.ActiveDeviceID), nullableTime(a.SessionCreatedAt), a.SessionCount,
		nullableString(a.LastLoginIP), nullableString(a.LastLoginUA), nullableTime(a.LastLoginAt),
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

func (s *AccountStore) Update(ctx context.Context, a *store.Account) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET
			name = $2, password_hash = $3, status = $4,
			failed_attempts = $5, lock_until = $6, risk_score = $7,
			active_device_id = $8, session_created_at = $9, session_count = $10,
			last_login_ip = $11, last_login_ua = $12, last_login_at = $13,
			updated_at = $14
		WHERE id = $1`,
		a.ID, a.Name, a.PasswordHash, a.Status,
		a.FailedAttempts, nullableTime(a.LockUntil), a.RiskScore,
		nullableString(a.ActiveDeviceID), nullableTime(a.SessionCreatedAt), a.SessionCount,
		nullableString(a.LastLoginIP), nullableString(a.LastLoginUA), nullableTime(a.LastLoginAt),
		a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

// RefreshStore persists refresh tokens in the refresh_tokens table.
type RefreshStore struct {
	db DB
}

// NewRefreshStore returns a postgres-backed refresh token store.
func NewRefreshStore(db DB) *RefreshStore {
	return &RefreshStore{db: db}
}

const tokenColumns = `id, account_id, token, device_id, expires_at,
	revoked, revoked_at, replaced_by, created_by_ip, user_agent,
	created_at, last_used_at`

func scanToken(row pgx.Row) (*store.RefreshToken, error) {
	var (
		t                   store.RefreshToken
		revokedAt, lastUsed *time.Time
		replacedBy          *string
	)

	err := row.Scan(&t.ID, &t.AccountID, &t.Token, &t.DeviceID, &t.ExpiresAt,
		&t.Revoked, &revokedAt, &replacedBy, &t.CreatedByIP, &t.UserAgent,
		&t.CreatedAt, &lastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	if revokedAt != nil {
		t.RevokedAt = *revokedAt
	}
	if lastUsed != nil {
		t.LastUsedAt = *lastUsed
	}
	if replacedBy != nil {
		t.ReplacedBy = *replacedBy
	}

	return &t, nil
}

func (s *RefreshStore) Get(ctx context.Context, token string) (*store.RefreshToken, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token = $1 LIMIT 1`, token)
	return scanToken(row)
}

func (s *RefreshStore) GetForAccount(ctx context.Context, token, accountID string) (*store.RefreshToken, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token = $1 AND account_id = $2 LIMIT 1`,
		token, accountID)
	return scanToken(row)
}

func (s *RefreshStore) Create(ctx context.Context, t *store.RefreshToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, account_id, token, device_id, expires_at,
			revoked, revoked_at, replaced_by, created_by_ip, user_agent,
			created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.AccountID, t.Token, t.DeviceID, t.ExpiresAt,
		t.Revoked, nullableTime(t.RevokedAt), nullableString(t.ReplacedBy),
		t.CreatedByIP, t.UserAgent, t.CreatedAt, nullableTime(t.LastUsedAt))
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

func (s *RefreshStore) Revoke(ctx context.Context, token, replacedBy string, at time.Time) error {
	// revoked = false in the predicate is the CAS gate: of two concurrent
	// rotations only one UPDATE matches a row.
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked = true, revoked_at = $2, replaced_by = $3
		WHERE token = $1 AND revoked = false`,
		token, at, nullableString(replacedBy))
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		row := s.db.QueryRow(ctx, `SELECT revoked FROM refresh_tokens WHERE token = $1`, token)
		var revoked bool
		if scanErr := row.Scan(&revoked); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return store.ErrNotFound
			}
			return fmt.Errorf("revoke refresh token: %w", scanErr)
		}
		return store.ErrAlreadyRevoked
	}

	return nil
}

func (s *RefreshStore) RevokeAllFor(ctx context.Context, accountID string, at time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked = true, revoked_at = $2
		WHERE account_id = $1 AND revoked = false`,
		accountID, at)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (s *RefreshStore) TouchLastUsed(ctx context.Context, token string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE refresh_tokens SET last_used_at = $2 WHERE token = $1`, token, at)
	return err
}

func (s *RefreshStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ActivityStore appends to the activity_log table. The interface exposes no
// update, and neither does the SQL here; retention is DeleteBefore only.
type ActivityStore struct {
	db DB
}

// NewActivityStore returns a postgres-backed activity log.
func NewActivityStore(db DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) Append(ctx context.Context, e *store.ActivityEntry) error {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO activity_log (id, account_id, event, ts, ip, user_agent, device_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, e.AccountID, e.Event, e.Timestamp, e.IP, e.UserAgent,
		nullableString(e.DeviceID), e.Metadata)
	if err != nil {
		return fmt.Errorf("append activity entry: %w", err)
	}

	return nil
}

func (s *ActivityStore) ListForAccount(ctx context.Context, accountID string, limit int) ([]*store.ActivityEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, event, ts, ip, user_agent, device_id, metadata
		FROM activity_log
		WHERE account_id = $1
		ORDER BY ts DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity entries: %w", err)
	}
	defer rows.Close()

	var out []*store.ActivityEntry
	for rows.Next() {
		var (
			e        store.ActivityEntry
			deviceID *string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Event, &e.Timestamp,
			&e.IP, &e.UserAgent, &deviceID, &e.Metadata); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		if deviceID != nil {
			e.DeviceID = *deviceID
		}
		out = append(out, &e)
	}

	return out, rows.Err()
}

func (s *ActivityStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM activity_log WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired activity entries: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
