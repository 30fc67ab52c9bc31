package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "PORT", "DATABASE", "DATABASE_URL", "DB_HOST", "SECRET_KEY", "CSRF_TIME_LIMIT", "DEMO_USERNAME"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Env != "dev" {
		t.Errorf("Load() Env = %v, want dev", cfg.Env)
	}
	if cfg.Port != ":5000" {
		t.Errorf("Load() Port = %v, want :5000", cfg.Port)
	}
	if cfg.DatabasePath != "warbler.db" {
		t.Errorf("Load() DatabasePath = %v, want warbler.db", cfg.DatabasePath)
	}
	if cfg.CSRFTimeLimit != time.Hour {
		t.Errorf("Load() CSRFTimeLimit = %v, want 1h", cfg.CSRFTimeLimit)
	}
	if cfg.DemoUsername != "demo" || cfg.DemoPassword != "123123" {
		t.Errorf("Load() demo credentials = %q/%q", cfg.DemoUsername, cfg.DemoPassword)
	}
	if cfg.UsesPostgres() {
		t.Error("UsesPostgres() = true with no postgres settings")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/warbler")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("CSRF_TIME_LIMIT", "60")
	t.Setenv("LOGIN_RATE_PER_MINUTE", "bogus")

	cfg := Load()

	if cfg.Port != ":8080" {
		t.Errorf("Load() Port = %v, want :8080", cfg.Port)
	}
	if !cfg.UsesPostgres() {
		t.Error("UsesPostgres() = false with DATABASE_URL set")
	}
	if got := cfg.PostgresDSN(); got != "postgresql://u:p@db/warbler" {
		t.Errorf("PostgresDSN() = %v", got)
	}
	if cfg.CSRFTimeLimit != time.Minute {
		t.Errorf("Load() CSRFTimeLimit = %v, want 1m", cfg.CSRFTimeLimit)
	}
	if cfg.LoginRatePerMin != 30 {
		t.Errorf("Load() LoginRatePerMin = %v, want 30 (default)", cfg.LoginRatePerMin)
	}
}

func TestPostgresDSN_FromParts(t *testing.T) {
	cfg := Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "w", DBSSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=w sslmode=disable"
	if got := cfg.PostgresDSN(); got != want {
		t.Errorf("PostgresDSN() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid dev config", Config{Env: "dev", Port: ":5000", DatabasePath: "w.db", SecretKey: defaultSecret}, false},
		{"valid prod config", Config{Env: "prod", Port: ":5000", DatabaseURL: "postgres://x", SecretKey: "real"}, false},
		{"empty port", Config{Env: "dev", DatabasePath: "w.db", SecretKey: "x"}, true},
		{"no database", Config{Env: "dev", Port: ":5000", SecretKey: "x"}, true},
		{"default secret in prod", Config{Env: "prod", Port: ":5000", DatabasePath: "w.db", SecretKey: defaultSecret}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
