package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfigThresholds(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RateLimit.IPMax != 5 || cfg.RateLimit.IPWindow != 15*time.Minute {
		t.Fatalf("unexpected IP limit: %d/%s", cfg.RateLimit.IPMax, cfg.RateLimit.IPWindow)
	}
	if cfg.RateLimit.AccountMax != 5 || cfg.RateLimit.AccountWindow != 15*time.Minute {
		t.Fatalf("unexpected account limit: %d/%s", cfg.RateLimit.AccountMax, cfg.RateLimit.AccountWindow)
	}
	if cfg.RateLimit.DeviceMax != 3 || cfg.RateLimit.DeviceWindow != 5*time.Minute {
		t.Fatalf("unexpected device limit: %d/%s", cfg.RateLimit.DeviceMax, cfg.RateLimit.DeviceWindow)
	}
	if cfg.RateLimit.GlobalMax != 100 || cfg.RateLimit.GlobalWindow != time.Minute {
		t.Fatalf("unexpected global limit: %d/%s", cfg.RateLimit.GlobalMax, cfg.RateLimit.GlobalWindow)
	}
	if cfg.Lockout.MaxFailures != 5 || cfg.Lockout.Duration != 15*time.Minute {
		t.Fatalf("unexpected lockout: %d/%s", cfg.Lockout.MaxFailures, cfg.Lockout.Duration)
	}
	if cfg.Token.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected access TTL: %s", cfg.Token.AccessTTL)
	}
	if cfg.Token.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh TTL: %s", cfg.Token.RefreshTTL)
	}
	if cfg.CSRF.TTL != time.Hour {
		t.Fatalf("unexpected CSRF TTL: %s", cfg.CSRF.TTL)
	}
	if cfg.Audit.Retention != 90*24*time.Hour {
		t.Fatalf("unexpected retention: %s", cfg.Audit.Retention)
	}
}

func TestValidateRejectsShortSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("short")
	cfg.Cookie.SigningSecret = []byte("0123456789abcdef0123456789abcdef")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short access secret")
	}

	cfg = DefaultConfig()
	cfg.Token.AccessSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Cookie.SigningSecret = []byte("short")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short cookie secret")
	}
}

func TestValidateRejectsBadSameSite(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Cookie.SameSite = "weird"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown same-site mode")
	}
}

func TestFillDefaultsCompletesPartialConfig(t *testing.T) {
	cfg := Config{}
	cfg.Token.AccessSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Cookie.SigningSecret = []byte("fedcba9876543210fedcba9876543210")

	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("filled config should validate, got %v", err)
	}
	if cfg.Lockout.MaxFailures != 5 {
		t.Fatalf("lockout default not applied: %d", cfg.Lockout.MaxFailures)
	}
	if cfg.RateLimit.FailoverCooldown != 30*time.Second {
		t.Fatalf("failover cooldown default not applied: %s", cfg.RateLimit.FailoverCooldown)
	}
	if cfg.PasswordCost != 10 {
		t.Fatalf("password cost default not applied: %d", cfg.PasswordCost)
	}
	if cfg.SweepInterval != time.Hour {
		t.Fatalf("sweep interval default not applied: %s", cfg.SweepInterval)
	}

	// The Enabled flags are taken as-is: false stays false, so a
	// hand-assembled literal runs without the abuse defenses unless it
	// starts from DefaultConfig.
	if cfg.RateLimit.Enabled || cfg.Audit.Enabled || cfg.Metrics.Enabled {
		t.Fatal("fillDefaults must not flip Enabled flags")
	}
}
