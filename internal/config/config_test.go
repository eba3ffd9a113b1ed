package config

import (
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/starchart/internal/model"
)

func validConfig() Config {
	return Config{
		Port:        "8080",
		DBDriver:    "sqlite",
		DBPath:      "starchart.db",
		Children:    model.Roster{"ASHA", "EKAA"},
		SessionTTL:  720 * time.Hour,
		ViewTimeout: 8 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid sqlite config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "postgres without url",
			mutate:      func(c *Config) { c.DBDriver = "postgres" },
			wantErr:     true,
			errorString: "DATABASE_URL is required when using postgres",
		},
		{
			name:        "unknown driver",
			mutate:      func(c *Config) { c.DBDriver = "mysql" },
			wantErr:     true,
			errorString: "invalid database driver 'mysql'",
		},
		{
			name:        "no children",
			mutate:      func(c *Config) { c.Children = nil },
			wantErr:     true,
			errorString: "at least one child name is required",
		},
		{
			name:        "bad amqp scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost"; c.AMQPExchange = "starchart" },
			wantErr:     true,
			errorString: "must be 'amqp' or 'amqps'",
		},
		{
			name:        "scheduled backups without target",
			mutate:      func(c *Config) { c.BackupInterval = time.Hour },
			wantErr:     true,
			errorString: "scheduled backups need S3_BUCKET or BACKUP_DIR",
		},
		{
			name:        "negative backup keep",
			mutate:      func(c *Config) { c.BackupKeep = -1 },
			wantErr:     true,
			errorString: "invalid backup keep -1",
		},
		{
			name:        "vapid public key alone",
			mutate:      func(c *Config) { c.VAPIDPublicKey = "pub" },
			wantErr:     true,
			errorString: "must be set together",
		},
		{
			name:        "bad vapid subject",
			mutate:      func(c *Config) { c.VAPIDSubject = "parent@example.com" },
			wantErr:     true,
			errorString: "must be a mailto: or https:// URL",
		},
		{
			name: "s3 without credentials",
			mutate: func(c *Config) {
				c.S3Bucket = "backups"
			},
			wantErr:     true,
			errorString: "S3_ACCESS_KEY and S3_SECRET_KEY are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.errorString)
			}
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"
	cfg.Children = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"invalid port", "at least one child"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STARCHART_PORT", "")
	t.Setenv("STARCHART_CHILDREN", "")
	t.Setenv("STARCHART_VIEW_TIMEOUT", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if len(cfg.Children) != 2 || cfg.Children[0] != "ASHA" || cfg.Children[1] != "EKAA" {
		t.Errorf("Children = %v, want [ASHA EKAA]", cfg.Children)
	}
	if cfg.ViewTimeout != 8*time.Second {
		t.Errorf("ViewTimeout = %v, want 8s", cfg.ViewTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STARCHART_PORT", "9090")
	t.Setenv("STARCHART_CHILDREN", "mila, theo ,mila")
	t.Setenv("STARCHART_SESSION_TTL", "2h")
	t.Setenv("STARCHART_BACKFILL_ON_START", "true")
	t.Setenv("STARCHART_DB_DRIVER", "postgres")
	t.Setenv("STARCHART_DATABASE_URL", "postgres://localhost/starchart")
	t.Setenv("STARCHART_BACKUP_KEEP", "3")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if len(cfg.Children) != 2 || cfg.Children[0] != "MILA" || cfg.Children[1] != "THEO" {
		t.Errorf("Children = %v, want [MILA THEO]", cfg.Children)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v, want 2h", cfg.SessionTTL)
	}
	if !cfg.BackfillOnStart {
		t.Error("BackfillOnStart = false, want true")
	}
	if cfg.BackupKeep != 3 {
		t.Errorf("BackupKeep = %d, want 3", cfg.BackupKeep)
	}
	if cfg.DSN() != "postgres://localhost/starchart" {
		t.Errorf("DSN() = %q, want postgres url", cfg.DSN())
	}
}
