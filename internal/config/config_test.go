package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerPort != "8080" {
		t.Fatalf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.SubmitGrace != 30*time.Second {
		t.Fatalf("SubmitGrace = %v, want 30s", cfg.SubmitGrace)
	}
	if cfg.ImportPasswordLength != 10 {
		t.Fatalf("ImportPasswordLength = %d, want 10", cfg.ImportPasswordLength)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("AllowedOrigins = %v, want nil (allow all)", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SUBMIT_GRACE_SECONDS", "60")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg := Load()

	if cfg.ServerPort != "9000" {
		t.Fatalf("ServerPort = %q, want 9000", cfg.ServerPort)
	}
	if cfg.SubmitGrace != time.Minute {
		t.Fatalf("SubmitGrace = %v, want 1m", cfg.SubmitGrace)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("AllowedOrigins = %v, want two trimmed origins", cfg.AllowedOrigins)
	}
}

func TestParseOrigins(t *testing.T) {
	if got := parseOrigins(""); got != nil {
		t.Fatalf("parseOrigins(\"\") = %v, want nil", got)
	}
	got := parseOrigins(" https://x.example.com ,, https://y.example.com")
	if len(got) != 2 {
		t.Fatalf("parseOrigins dropped or kept wrong entries: %v", got)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.StudentLoginKey(42); got != "login:42" {
		t.Fatalf("StudentLoginKey = %q", got)
	}
	if got := CacheKey.SessionAnswersKey("abc"); got != "session:abc:answers" {
		t.Fatalf("SessionAnswersKey = %q", got)
	}
}
