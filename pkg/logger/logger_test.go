package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithVendorID(ctx, "vendor-9")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"request_id\"")) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"vendor_id\":\"vendor-9\"")) {
		t.Fatalf("expected vendor_id; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected no stack when warn stack disabled")
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestWithFieldsRedactsPasswords(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithFields(context.Background(), map[string]any{
		"phone":    "9999999999",
		"password": "hunter2",
		"body": map[string]any{
			"newPassword":   "hunter3",
			"refresh_token": "abc",
			"city":          "Pune",
		},
	})
	log.Info(ctx, "login.attempt")

	out := buf.String()
	for _, secret := range []string{"hunter2", "hunter3", "\"abc\""} {
		if strings.Contains(out, secret) {
			t.Fatalf("expected %s to be redacted; entry=%s", secret, out)
		}
	}
	if !strings.Contains(out, "9999999999") || !strings.Contains(out, "Pune") {
		t.Fatalf("expected non-sensitive fields to survive; entry=%s", out)
	}
}

func TestRedactLeavesInputUntouched(t *testing.T) {
	in := map[string]any{"password": "x", "name": "y"}
	out := Redact(in)
	if in["password"] != "x" {
		t.Fatalf("input mutated")
	}
	if out["password"] != redactedValue || out["name"] != "y" {
		t.Fatalf("unexpected redaction %v", out)
	}
	if Redact(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}
