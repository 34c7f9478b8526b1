// Package jwt mints and verifies the short-lived signed access tokens.
// Refresh tokens deliberately never pass through here: they are opaque
// database rows, so revoking one is a flag flip instead of a blocklist.
package jwt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid covers malformed, mis-signed, and expired tokens.
	ErrTokenInvalid = errors.New("invalid access token")
)

// Config holds the signing parameters.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
}

// SessionContext is the advisory request context baked into each access
// token. Mismatches on later requests are anomaly evidence, logged but
// never blocking; the user agent is stored as a hash prefix, not verbatim.
type SessionContext struct {
	IP     string `json:"ip,omitempty"`
	UAHash string `json:"ua,omitempty"`
}

// Claims is the access-token payload. Carries only the account id plus a
// per-token jti for replay tracing.
type Claims struct {
	AccountID string         `json:"uid"`
	Context   SessionContext `json:"ctx,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and parses access tokens with HS256.
type Manager struct {
	config Config
}

// NewManager validates the config and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("access token secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL")
	}
	return &Manager{config: cfg}, nil
}

// HashUserAgent returns the 16-hex-char sha256 prefix stored in token
// context claims.
func HashUserAgent(ua string) string {
	if ua == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ua))
	return hex.EncodeToString(sum[:])[:16]
}

// Create mints an access token for the account. ip and userAgent are
// advisory session context; either may be empty.
func (m *Manager) Create(accountID, ip, userAgent string) (string, error) {
	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		Context: SessionContext{
			IP:     ip,
			UAHash: HashUserAgent(userAgent),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        hex.EncodeToString(jti),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.config.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Anomalies compares the token's session context with the current request
// and names each mismatch. Empty result means nothing to report.
func (c *Claims) Anomalies(ip, userAgent string) []string {
	var out []string
	if c.Context.IP != "" && ip != "" && c.Context.IP != ip {
		out = append(out, "ip_mismatch")
	}
	if ua := HashUserAgent(userAgent); c.Context.UAHash != "" && ua != "" && c.Context.UAHash != ua {
		out = append(out, "user_agent_mismatch")
	}
	return out
}
