package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 60*time.Second {
					t.Errorf("expected WSReadTimeout 60s, got %v", cfg.WSReadTimeout)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":             "9000",
				"LOG_LEVEL":        "debug",
				"WS_READ_TIMEOUT":  "30",
				"WS_WRITE_TIMEOUT": "5",
				"ALLOWED_ORIGINS":  "http://example.com,http://test.com",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("expected log level debug, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 30*time.Second {
					t.Errorf("expected WSReadTimeout 30s, got %v", cfg.WSReadTimeout)
				}
				if cfg.WSWriteTimeout != 5*time.Second {
					t.Errorf("expected WSWriteTimeout 5s, got %v", cfg.WSWriteTimeout)
				}
				if len(cfg.AllowedOrigins) != 2 {
					t.Errorf("expected 2 allowed origins, got %d", len(cfg.AllowedOrigins))
				}
			},
		},
		{
			name: "invalid WS_READ_TIMEOUT",
			env: map[string]string{
				"WS_READ_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid WS_WRITE_TIMEOUT",
			env: map[string]string{
				"WS_WRITE_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
		{
			name: "dashboard defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.FeedBuffer != 1024 {
					t.Errorf("expected FeedBuffer 1024, got %d", cfg.FeedBuffer)
				}
				if cfg.RolloverSchedule != "0 * * * *" {
					t.Errorf("expected hourly rollover, got %q", cfg.RolloverSchedule)
				}
				if cfg.Timezone != time.Local {
					t.Errorf("expected local timezone, got %v", cfg.Timezone)
				}
				if cfg.SkipAuth || cfg.VerifySignature {
					t.Errorf("expected auth defaults off, got skip=%v verify=%v", cfg.SkipAuth, cfg.VerifySignature)
				}
			},
		},
		{
			name: "dashboard overrides",
			env: map[string]string{
				"TIMEZONE":          "Europe/Berlin",
				"FEED_BUFFER":       "64",
				"ROLLOVER_SCHEDULE": "@hourly",
				"SKIP_AUTH":         "true",
				"OIDC_ISSUER":       "https://sso.example.com/realms/support",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Timezone.String() != "Europe/Berlin" {
					t.Errorf("expected Europe/Berlin, got %v", cfg.Timezone)
				}
				if cfg.FeedBuffer != 64 {
					t.Errorf("expected FeedBuffer 64, got %d", cfg.FeedBuffer)
				}
				if cfg.RolloverSchedule != "@hourly" {
					t.Errorf("expected @hourly, got %q", cfg.RolloverSchedule)
				}
				if !cfg.SkipAuth {
					t.Error("expected SkipAuth")
				}
				if cfg.OIDCIssuer != "https://sso.example.com/realms/support" {
					t.Errorf("unexpected issuer %q", cfg.OIDCIssuer)
				}
			},
		},
		{
			name: "production verifies signatures",
			env:  map[string]string{"ENV": "production"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.VerifySignature {
					t.Error("expected VerifySignature outside development")
				}
			},
		},
		{
			name: "development with explicit verification",
			env:  map[string]string{"ENV": "development", "VERIFY_JWT_SIGNATURE": "true"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.VerifySignature {
					t.Error("expected VerifySignature when requested")
				}
			},
		},
		{
			name:    "invalid TIMEZONE",
			env:     map[string]string{"TIMEZONE": "Mars/Olympus"},
			wantErr: true,
		},
		{
			name:    "invalid FEED_BUFFER",
			env:     map[string]string{"FEED_BUFFER": "lots"},
			wantErr: true,
		},
		{
			name:    "non-positive FEED_BUFFER",
			env:     map[string]string{"FEED_BUFFER": "0"},
			wantErr: true,
		},
		{
			name:    "invalid ROLLOVER_SCHEDULE",
			env:     map[string]string{"ROLLOVER_SCHEDULE": "every hour"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Load config
			cfg, err := Load()

			// Check error
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Run custom checks
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestWebSocketConstants(t *testing.T) {
	// Clear environment and set clean defaults
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// PongWait should equal WSReadTimeout
	if cfg.PongWait != cfg.WSReadTimeout {
		t.Errorf("PongWait (%v) should equal WSReadTimeout (%v)", cfg.PongWait, cfg.WSReadTimeout)
	}

	// PingPeriod should be less than PongWait
	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("PingPeriod (%v) should be less than PongWait (%v)", cfg.PingPeriod, cfg.PongWait)
	}

	// WriteWait should equal WSWriteTimeout
	if cfg.WriteWait != cfg.WSWriteTimeout {
		t.Errorf("WriteWait (%v) should equal WSWriteTimeout (%v)", cfg.WriteWait, cfg.WSWriteTimeout)
	}

	// MaxMessageSize should be set
	if cfg.MaxMessageSize <= 0 {
		t.Errorf("MaxMessageSize should be positive, got %d", cfg.MaxMessageSize)
	}
}
