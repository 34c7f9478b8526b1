package store

import "time"

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

const (
	// AccountActive allows logins.
	AccountActive AccountStatus = "active"
	// AccountInactive has been deactivated by its owner.
	AccountInactive AccountStatus = "inactive"
	// AccountSuspended has been disabled administratively.
	AccountSuspended AccountStatus = "suspended"
)

// Account is the tenant identity record (a shop owner in the host
// application). The authentication core reads and writes only the fields
// below; everything else about an account belongs to the business layer.
//
// Invariant: at most one non-expired ActiveDeviceID at any time. Binding a
// new device overwrites the previous one; the displaced session discovers
// this lazily on its next request.
type Account struct {
	ID           string
	Identifier   string // login identifier, a lowercased email
	Name         string
	PasswordHash string
	Status       AccountStatus

	FailedAttempts int
	LockUntil      time.Time // zero when unlocked
	RiskScore      int

	ActiveDeviceID   string
	SessionCreatedAt time.Time
	SessionCount     int

	// Audit metadata only. Never used for device identification.
	LastLoginIP string
	LastLoginUA string
	LastLoginAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the account lockout is still in force at t.
func (a *Account) Locked(t time.Time) bool {
	return !a.LockUntil.IsZero() && a.LockUntil.After(t)
}

// RefreshToken is one link in a rotation chain. Revoked and superseded are
// permanent terminal states; ReplacedBy points forward to the successor so
// the full chain stays auditable.
type RefreshToken struct {
	ID        string
	AccountID string
	Token     string // opaque random secret, never a structured token
	DeviceID  string

	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  time.Time
	ReplacedBy string // token value of the successor, set on rotation

	// Audit metadata only.
	CreatedByIP string
	UserAgent   string

	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Expired reports whether the token has passed its expiry at t.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active reports whether the token can still be redeemed at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}

// EventType enumerates the activity events the recorder accepts.
type EventType string

const (
	EventRegistration         EventType = "REGISTRATION"
	EventLogin                EventType = "LOGIN"
	EventLogout               EventType = "LOGOUT"
	EventLogoutAll            EventType = "LOGOUT_ALL"
	EventTokenRefresh         EventType = "TOKEN_REFRESH"
	EventFailedLogin          EventType = "FAILED_LOGIN"
	EventPasswordChange       EventType = "PASSWORD_CHANGE"
	EventPasswordResetRequest EventType = "PASSWORD_RESET_REQUEST"
	EventAccountLocked        EventType = "ACCOUNT_LOCKED"
	EventAccountUnlocked      EventType = "ACCOUNT_UNLOCKED"
	EventSuspiciousActivity   EventType = "SUSPICIOUS_ACTIVITY"
)

// ActivityEntry is one append-only activity record. Entries are immutable by
// contract: [ActivityStore] exposes no update operation, and implementations
// must not grow one. Stores expire entries after the configured retention
// window (90 days by default).
type ActivityEntry struct {
	ID        string
	AccountID string
	Event     EventType
	Timestamp time.Time

	IP        string
	UserAgent string
	DeviceID  string

	Metadata map[string]string
}
