// Package auth guards the admin API with a single password and JWTs.
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL    = 24 * time.Hour
	tokenIssuer = "driveindex"

	minPasswordLength = 6
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoPasswordSet      = errors.New("no password has been set")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrWrongOldPassword   = errors.New("old password is incorrect")
	ErrPasswordMismatch   = errors.New("password confirmation does not match")
	ErrInvalidToken       = errors.New("invalid token")
)

// Service handles authentication operations.
type Service struct {
	db        *sql.DB
	jwtSecret []byte
	now       func() time.Time
}

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
}

// NewService creates a new auth service. An empty secret gets a random one,
// which invalidates tokens on every restart.
func NewService(db *sql.DB, jwtSecret string) (*Service, error) {
	secret := []byte(jwtSecret)

	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
	}

	return &Service{
		db:        db,
		jwtSecret: secret,
		now:       time.Now,
	}, nil
}

// EnsureAdmin seeds the admin password when none is stored yet. It reports
// whether a password was written.
func (s *Service) EnsureAdmin(ctx context.Context, password string) (bool, error) {
	if password == "" || s.IsPasswordSet(ctx) {
		return false, nil
	}
	if err := s.SetPassword(ctx, password); err != nil {
		return false, err
	}
	return true, nil
}

// SetPassword sets or updates the admin password.
func (s *Service) SetPassword(ctx context.Context, password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO auth (id, password_hash, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			password_hash = excluded.password_hash,
			updated_at = CURRENT_TIMESTAMP
	`, string(hash))
	if err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}

	return nil
}

// ValidatePassword checks if the provided password is correct.
func (s *Service) ValidatePassword(ctx context.Context, password string) error {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT password_hash FROM auth WHERE id = 1").Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoPasswordSet
		}
		return fmt.Errorf("failed to get password: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

// ChangePassword replaces the password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := s.ValidatePassword(ctx, oldPassword); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return ErrWrongOldPassword
		}
		return err
	}
	return s.SetPassword(ctx, password)
}

// IsPasswordSet returns true if a password has been configured.
func (s *Service) IsPasswordSet(ctx context.Context) bool {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM auth WHERE id = 1").Scan(&count)
	return err == nil && count > 0
}

// GenerateToken creates a new admin JWT.
func (s *Service) GenerateToken() (string, time.Time, error) {
	now := s.now()
	expires := now.Add(tokenTTL)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   "admin",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	return signed, expires, err
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
