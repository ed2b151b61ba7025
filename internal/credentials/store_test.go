package credentials

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"seatwatch/internal/portal"
	"seatwatch/internal/shared/constants"
	"seatwatch/pkg/cache"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}

func TestCredentialsAreSealedAtRest(t *testing.T) {
	kv := cache.NewMemoryStoreWithClock(fixedClock)
	store, err := NewStore(kv, "secret", time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if creds, err := store.LoadCredentials(ctx, "42"); err != nil || creds != nil {
		t.Fatalf("expected no credentials, got %v %v", creds, err)
	}

	if err := store.SaveCredentials(ctx, "42", Credentials{User: "alice", Password: "hunter2"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := kv.Get(ctx, constants.LoginCredsKey("42"))
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if bytes.Contains(raw, []byte("hunter2")) || bytes.Contains(raw, []byte("alice")) {
		t.Fatalf("credentials persisted in cleartext")
	}
	if kv.TTL(constants.LoginCredsKey("42")) != 0 {
		t.Fatalf("credentials must not expire")
	}

	creds, err := store.LoadCredentials(ctx, "42")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.User != "alice" || creds.Password != "hunter2" {
		t.Fatalf("unexpected credentials %+v", creds)
	}

	other, _ := NewStore(kv, "another secret", time.Hour, time.Minute)
	if _, err := other.LoadCredentials(ctx, "42"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt with wrong key, got %v", err)
	}

	if err := store.DeleteCredentials(ctx, "42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if creds, _ := store.LoadCredentials(ctx, "42"); creds != nil {
		t.Fatalf("expected credentials to be gone")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	kv := cache.NewMemoryStoreWithClock(fixedClock)
	store, _ := NewStore(kv, "secret", 48*time.Hour, 5*time.Minute)
	ctx := context.Background()

	session := &portal.Session{UserID: "7", Cookies: portal.Cookies{{Name: "MRBS_SESSID", Value: "abc"}}}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := kv.TTL(constants.LoginCookiesKey("7")); ttl != 48*time.Hour {
		t.Fatalf("expected session ttl 48h, got %s", ttl)
	}

	loaded, err := store.LoadSession(ctx, "7")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.UserID != "7" {
		t.Fatalf("unexpected user %q", loaded.UserID)
	}
	if v, _ := loaded.Cookies.Get("MRBS_SESSID"); v != "abc" {
		t.Fatalf("unexpected cookies %v", loaded.Cookies)
	}

	if err := store.DeleteSession(ctx, "7"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if loaded, _ := store.LoadSession(ctx, "7"); loaded != nil {
		t.Fatalf("expected session to be gone")
	}
}

func TestCaptchaSessionIsTakenOnce(t *testing.T) {
	kv := cache.NewMemoryStoreWithClock(fixedClock)
	store, _ := NewStore(kv, "secret", time.Hour, 5*time.Minute)
	ctx := context.Background()

	pending := &portal.Session{UserID: "9", Cookies: portal.Cookies{{Name: "captcha", Value: "c1"}}}
	if err := store.SaveCaptchaSession(ctx, pending); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := kv.TTL(constants.CaptchaCookiesKey("9")); ttl != 5*time.Minute {
		t.Fatalf("expected captcha ttl 5m, got %s", ttl)
	}

	taken, err := store.TakeCaptchaSession(ctx, "9")
	if err != nil || taken == nil {
		t.Fatalf("take: %v %v", taken, err)
	}
	if v, _ := taken.Cookies.Get("captcha"); v != "c1" {
		t.Fatalf("unexpected cookies %v", taken.Cookies)
	}

	again, err := store.TakeCaptchaSession(ctx, "9")
	if err != nil || again != nil {
		t.Fatalf("expected captcha session to be consumed, got %v %v", again, err)
	}
}
