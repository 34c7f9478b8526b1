package authcore

import (
	"errors"
	"time"

	"github.com/bizware/authcore/internal/rate"
)

// Config holds every engine tunable. Zero values are filled from
// DefaultConfig by [Builder.Build]; the two secrets have no default.
//
// The Enabled flags on RateLimit, Audit and Metrics are taken as-is: false
// is an explicit off, not an absent value, so a hand-assembled struct
// literal silently ships without the abuse defenses. Callers setting
// individual fields should start from [DefaultConfig] and override.
type Config struct {
	Token     TokenConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	Cookie    CookieConfig
	CSRF      CSRFConfig
	Audit     AuditConfig
	Metrics   MetricsConfig

	// PasswordCost is the bcrypt work factor.
	PasswordCost int

	// SweepInterval is how often the background janitor expunges expired
	// refresh tokens and activity entries past Audit.Retention. Zero takes
	// the default; negative disables the sweep.
	SweepInterval time.Duration
}

// TokenConfig covers both halves of the token pair.
type TokenConfig struct {
	// AccessSecret signs the short-lived access tokens. Required.
	AccessSecret []byte
	AccessTTL    time.Duration
	// RefreshTTL bounds the opaque refresh tokens.
	RefreshTTL time.Duration
	Issuer     string
}

// LockoutConfig controls the per-account failure lockout.
type LockoutConfig struct {
	MaxFailures int
	Duration    time.Duration
}

// RateLimitConfig controls the four limiter dimensions and the derived
// attack signals. Disabled turns the entire gate off (development only).
type RateLimitConfig struct {
	Enabled bool

	GlobalMax    int
	GlobalWindow time.Duration

	DeviceMax    int
	DeviceWindow time.Duration

	IPMax    int
	IPWindow time.Duration

	AccountMax    int
	AccountWindow time.Duration

	DistinctIPThreshold int
	DistinctIPWindow    time.Duration

	VelocityThreshold int
	VelocityWindow    time.Duration

	// ForceLogout bounds the public force-logout surface.
	ForceLogoutMax    int
	ForceLogoutWindow time.Duration

	// ResetRequest bounds the password-reset request surface.
	ResetRequestMax    int
	ResetRequestWindow time.Duration

	// FailoverCooldown is how long the shared store is skipped after an
	// error before being probed again.
	FailoverCooldown time.Duration
}

// CookieConfig shapes the signed deviceId cookie. The transport layer reads
// it; the engine only needs the secret absent/present check.
type CookieConfig struct {
	// SigningSecret authenticates the cookie value. Required.
	SigningSecret []byte
	Name          string
	MaxAge        time.Duration
	// Secure should be on in production.
	Secure bool
	// SameSite is "strict", "lax", or "none". Strict suits development;
	// cross-domain production deployments relax it.
	SameSite string
}

// CSRFConfig controls the anti-forgery guard.
type CSRFConfig struct {
	TTL time.Duration
}

// MetricsConfig controls the in-process counters. Latency histograms cost an
// extra atomic per authenticate call and are off unless asked for.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// AuditConfig controls the activity recorder dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the login path when the
	// buffer is saturated.
	DropIfFull bool
	// Retention is advisory for stores that prune by age.
	Retention time.Duration
}

// DefaultConfig returns the production ceilings: IP and account 5 failures
// per 15 minutes, device 3 per 5 minutes, global 100 attempts per minute,
// lockout 5 failures for 15 minutes, 15-minute access tokens, 7-day refresh
// tokens and cookies, 1-hour CSRF tokens, 90-day activity retention.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authcore",
		},
		Lockout: LockoutConfig{
			MaxFailures: 5,
			Duration:    15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:             true,
			GlobalMax:           100,
			GlobalWindow:        time.Minute,
			DeviceMax:           3,
			DeviceWindow:        5 * time.Minute,
			IPMax:               5,
			IPWindow:            15 * time.Minute,
			AccountMax:          5,
			AccountWindow:       15 * time.Minute,
			DistinctIPThreshold: 5,
			DistinctIPWindow:    time.Hour,
			VelocityThreshold:   10,
			VelocityWindow:      time.Minute,
			ForceLogoutMax:      5,
			ForceLogoutWindow:   time.Hour,
			ResetRequestMax:     3,
			ResetRequestWindow:  time.Hour,
			FailoverCooldown:    30 * time.Second,
		},
		Cookie: CookieConfig{
			Name:     "deviceId",
			MaxAge:   7 * 24 * time.Hour,
			SameSite: "strict",
		},
		CSRF: CSRFConfig{
			TTL: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
			Retention:  90 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		PasswordCost:  10,
		SweepInterval: time.Hour,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Token.AccessSecret) < 32 {
		return errors.New("token access secret must be at least 32 bytes")
	}
	if len(c.Cookie.SigningSecret) < 32 {
		return errors.New("cookie signing secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Lockout.MaxFailures <= 0 || c.Lockout.Duration <= 0 {
		return errors.New("lockout thresholds must be positive")
	}
	switch c.Cookie.SameSite {
	case "strict", "lax", "none":
	default:
		return errors.New(`cookie same-site must be "strict", "lax", or "none"`)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.IPMax <= 0 || c.RateLimit.AccountMax <= 0 ||
			c.RateLimit.DeviceMax <= 0 || c.RateLimit.GlobalMax <= 0 {
			return errors.New("rate limit ceilings must be positive")
		}
	}
	return nil
}

// fillDefaults replaces zero values with the defaults so partially filled
// configs behave. The Enabled booleans are left alone; false cannot be told
// apart from unset, so it always means off.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Token.AccessTTL == 0 {
		c.Token.AccessTTL = def.Token.AccessTTL
	}
	if c.Token.RefreshTTL == 0 {
		c.Token.RefreshTTL = def.Token.RefreshTTL
	}
	if c.Token.Issuer == "" {
		c.Token.Issuer = def.Token.Issuer
	}
	if c.Lockout.MaxFailures == 0 {
		c.Lockout.MaxFailures = def.Lockout.MaxFailures
	}
	if c.Lockout.Duration == 0 {
		c.Lockout.Duration = def.Lockout.Duration
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = def.Cookie.Name
	}
	if c.Cookie.MaxAge == 0 {
		c.Cookie.MaxAge = def.Cookie.MaxAge
	}
	if c.Cookie.SameSite == "" {
		c.Cookie.SameSite = def.Cookie.SameSite
	}
	if c.CSRF.TTL == 0 {
		c.CSRF.TTL = def.CSRF.TTL
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
	if c.Audit.Retention == 0 {
		c.Audit.Retention = def.Audit.Retention
	}
	if c.PasswordCost == 0 {
		c.PasswordCost = def.PasswordCost
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = def.SweepInterval
	}

	rl, drl := &c.RateLimit, def.RateLimit
	if rl.GlobalMax == 0 {
		rl.GlobalMax = drl.GlobalMax
	}
	if rl.GlobalWindow == 0 {
		rl.GlobalWindow = drl.GlobalWindow
	}
	if rl.DeviceMax == 0 {
		rl.DeviceMax = drl.DeviceMax
	}
	if rl.DeviceWindow == 0 {
		rl.DeviceWindow = drl.DeviceWindow
	}
	if rl.IPMax == 0 {
		rl.IPMax = drl.IPMax
	}
	if rl.IPWindow == 0 {
		rl.IPWindow = drl.IPWindow
	}
	if rl.AccountMax == 0 {
		rl.AccountMax = drl.AccountMax
	}
	if rl.AccountWindow == 0 {
		rl.AccountWindow = drl.AccountWindow
	}
	if rl.DistinctIPThreshold == 0 {
		rl.DistinctIPThreshold = drl.DistinctIPThreshold
	}
	if rl.DistinctIPWindow == 0 {
		rl.DistinctIPWindow = drl.DistinctIPWindow
	}
	if rl.VelocityThreshold == 0 {
		rl.VelocityThreshold = drl.VelocityThreshold
	}
	if rl.VelocityWindow == 0 {
		rl.VelocityWindow = drl.VelocityWindow
	}
	if rl.ForceLogoutMax == 0 {
		rl.ForceLogoutMax = drl.ForceLogoutMax
	}
	if rl.ForceLogoutWindow == 0 {
		rl.ForceLogoutWindow = drl.ForceLogoutWindow
	}
	if rl.ResetRequestMax == 0 {
		rl.ResetRequestMax = drl.ResetRequestMax
	}
	if rl.ResetRequestWindow == 0 {
		rl.ResetRequestWindow = drl.ResetRequestWindow
	}
	if rl.FailoverCooldown == 0 {
		rl.FailoverCooldown = drl.FailoverCooldown
	}
}

func (c *Config) rateConfig() rate.Config {
	return rate.Config{
		GlobalMax:           c.RateLimit.GlobalMax,
		GlobalWindow:        c.RateLimit.GlobalWindow,
		DeviceMax:           c.RateLimit.DeviceMax,
		DeviceWindow:        c.RateLimit.DeviceWindow,
		IPMax:               c.RateLimit.IPMax,
		IPWindow:            c.RateLimit.IPWindow,
		AccountMax:          c.RateLimit.AccountMax,
		AccountWindow:       c.RateLimit.AccountWindow,
		DistinctIPThreshold: c.RateLimit.DistinctIPThreshold,
		DistinctIPWindow:    c.RateLimit.DistinctIPWindow,
		VelocityThreshold:   c.RateLimit.VelocityThreshold,
		VelocityWindow:      c.RateLimit.VelocityWindow,
	}
}
