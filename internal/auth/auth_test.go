package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveindex/driveindex/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	svc, err := NewService(tdb.Conn, "test-secret")
	require.NoError(t, err)
	return svc
}

func TestEnsureAdmin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.False(t, svc.IsPasswordSet(ctx))

	created, err := svc.EnsureAdmin(ctx, "initial-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "other-pass")
	require.NoError(t, err)
	assert.False(t, created, "existing password must not be replaced")

	assert.NoError(t, svc.ValidatePassword(ctx, "initial-pass"))
	assert.ErrorIs(t, svc.ValidatePassword(ctx, "other-pass"), ErrInvalidCredentials)
}

func TestValidatePassword_NoneSet(t *testing.T) {
	svc := newTestService(t)
	assert.ErrorIs(t, svc.ValidatePassword(context.Background(), "x"), ErrNoPasswordSet)
}

func TestChangePassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SetPassword(ctx, "old-password"))

	tests := []struct {
		name    string
		old     string
		new     string
		confirm string
		wantErr error
	}{
		{"mismatch", "old-password", "new-password", "new-passw0rd", ErrPasswordMismatch},
		{"wrong old", "nope", "new-password", "new-password", ErrWrongOldPassword},
		{"too short", "old-password", "abc", "abc", ErrPasswordTooShort},
		{"ok", "old-password", "new-password", "new-password", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ChangePassword(ctx, tt.old, tt.new, tt.confirm)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.NoError(t, svc.ValidatePassword(ctx, "new-password"))
}

func TestTokens(t *testing.T) {
	svc := newTestService(t)

	token, expires, err := svc.GenerateToken()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expires, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	_, err = svc.ValidateToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewService(nil, "another-secret")
	require.NoError(t, err)
	_, err = other.ValidateToken(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired token")
}
