// Package ratelimit throttles login attempts.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	DefaultIPRequestsPerMinute = 10
	DefaultIPWindowDuration    = time.Minute
	DefaultMaxFailedAttempts   = 5
	DefaultLockoutDuration     = 15 * time.Minute
	MaxLockoutDuration         = time.Hour
)

type ipBucket struct {
	count     int64
	resetTime time.Time
}

type lockout struct {
	failedAttempts int
	lockedUntil    time.Time
	lockoutCount   int
}

// AuthLimiter caps login requests per IP and locks out an IP after
// repeated failures, doubling the lockout each time up to an hour.
type AuthLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*ipBucket
	lockouts map[string]*lockout
	now      func() time.Time

	ipLimit             int64
	ipWindow            time.Duration
	maxFailedAttempts   int
	baseLockoutDuration time.Duration
}

func NewAuthLimiter() *AuthLimiter {
	return &AuthLimiter{
		buckets:             make(map[string]*ipBucket),
		lockouts:            make(map[string]*lockout),
		now:                 time.Now,
		ipLimit:             DefaultIPRequestsPerMinute,
		ipWindow:            DefaultIPWindowDuration,
		maxFailedAttempts:   DefaultMaxFailedAttempts,
		baseLockoutDuration: DefaultLockoutDuration,
	}
}

func (l *AuthLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.allowIP(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(c)
		}
	}
}

func (l *AuthLimiter) allowIP(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	bucket, exists := l.buckets[ip]
	if !exists || now.After(bucket.resetTime) {
		l.buckets[ip] = &ipBucket{count: 1, resetTime: now.Add(l.ipWindow)}
		return true
	}

	if bucket.count >= l.ipLimit {
		return false
	}

	bucket.count++
	return true
}

// IsLocked reports whether key is currently locked out.
func (l *AuthLimiter) IsLocked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lo, exists := l.lockouts[key]
	return exists && l.now().Before(lo.lockedUntil)
}

// RecordFailure counts a failed login for key.
func (l *AuthLimiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	lo, exists := l.lockouts[key]
	if !exists {
		lo = &lockout{}
		l.lockouts[key] = lo
	}

	if now.After(lo.lockedUntil) && lo.failedAttempts >= l.maxFailedAttempts {
		lo.failedAttempts = 0
	}

	lo.failedAttempts++

	if lo.failedAttempts >= l.maxFailedAttempts {
		lo.lockoutCount++
		duration := l.baseLockoutDuration * time.Duration(lo.lockoutCount)
		if duration > MaxLockoutDuration {
			duration = MaxLockoutDuration
		}
		lo.lockedUntil = now.Add(duration)
	}
}

// RecordSuccess clears the failure history of key.
func (l *AuthLimiter) RecordSuccess(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lockouts, key)
}

// Cleanup drops expired buckets and lockouts.
func (l *AuthLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	for ip, bucket := range l.buckets {
		if now.After(bucket.resetTime) {
			delete(l.buckets, ip)
		}
	}

	for key, lo := range l.lockouts {
		if now.After(lo.lockedUntil) && lo.failedAttempts < l.maxFailedAttempts {
			delete(l.lockouts, key)
		}
	}
}
