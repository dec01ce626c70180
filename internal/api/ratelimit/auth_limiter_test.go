package ratelimit

import (
	"testing"
	"time"
)

func TestAuthLimiter_Lockout(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewAuthLimiter()
	l.now = func() time.Time { return now }

	for i := 0; i < DefaultMaxFailedAttempts-1; i++ {
		l.RecordFailure("1.2.3.4")
	}
	if l.IsLocked("1.2.3.4") {
		t.Fatal("locked before reaching max attempts")
	}

	l.RecordFailure("1.2.3.4")
	if !l.IsLocked("1.2.3.4") {
		t.Fatal("not locked after max attempts")
	}
	if l.IsLocked("5.6.7.8") {
		t.Error("lockout leaked to another key")
	}

	now = now.Add(DefaultLockoutDuration + time.Second)
	if l.IsLocked("1.2.3.4") {
		t.Error("still locked after lockout expired")
	}

	l.RecordSuccess("1.2.3.4")
	l.Cleanup()
	if len(l.lockouts) != 0 {
		t.Errorf("lockouts = %d, want 0", len(l.lockouts))
	}
}

func TestAuthLimiter_IPWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewAuthLimiter()
	l.now = func() time.Time { return now }

	for i := 0; i < DefaultIPRequestsPerMinute; i++ {
		if !l.allowIP("ip") {
			t.Fatalf("request %d rejected", i)
		}
	}
	if l.allowIP("ip") {
		t.Error("request over the limit allowed")
	}

	now = now.Add(DefaultIPWindowDuration + time.Second)
	if !l.allowIP("ip") {
		t.Error("request rejected after window reset")
	}
}
