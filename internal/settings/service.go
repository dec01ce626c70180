// Package settings stores site settings as key/value pairs.
package settings

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/driveindex/driveindex/internal/aria2"
	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/crypto"
)

const allCacheKey = "settings:all"

var ErrNotFound = errors.New("setting not found")

// ValidationError reports a rejected setting.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Key + ": " + e.Message
}

// DaemonListener is notified with the new daemon config after the daemon
// settings change.
type DaemonListener func(cfg aria2.Config)

type Service struct {
	db       *sql.DB
	defaults aria2.Config
	logger   zerolog.Logger

	mu        sync.RWMutex
	secrets   *crypto.SecretStore
	cache     *cache.Cache
	listeners []DaemonListener
}

// NewService creates the settings service. defaults supply the daemon
// connection until the rpc_* settings are saved.
func NewService(db *sql.DB, defaults aria2.Config, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		defaults: defaults,
		logger:   logger.With().Str("component", "settings").Logger(),
	}
}

// EnableEncryption encrypts secret settings with a key derived from
// passphrase. The salt is generated on first use and kept in the table.
func (s *Service) EnableEncryption(ctx context.Context, passphrase string) error {
	if passphrase == "" {
		return nil
	}

	salt, err := s.salt(ctx)
	if err != nil {
		return err
	}

	store, err := crypto.NewSecretStore(passphrase, salt)
	if err != nil {
		return fmt.Errorf("failed to create secret store: %w", err)
	}

	s.mu.Lock()
	s.secrets = store
	s.mu.Unlock()

	if c := s.cached(); c != nil {
		c.Delete(allCacheKey)
	}
	return nil
}

func (s *Service) salt(ctx context.Context) ([]byte, error) {
	raw, err := s.raw(ctx, keySecretSalt)
	if err == nil {
		return hex.DecodeString(raw)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if err := upsert(ctx, s.db, keySecretSalt, hex.EncodeToString(salt)); err != nil {
		return nil, err
	}
	return salt, nil
}

// SetCache makes All serve from c until the next update or clear.
func (s *Service) SetCache(c *cache.Cache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = c
}

func (s *Service) cached() *cache.Cache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

// OnDaemonChange registers fn to run after any rpc_* setting changes.
func (s *Service) OnDaemonChange(fn DaemonListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Get returns the decrypted value of key.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	value, err := s.raw(ctx, key)
	if err != nil {
		return "", err
	}
	return s.decrypt(key, value)
}

// GetOr returns the value of key, or fallback when unset or unreadable.
func (s *Service) GetOr(ctx context.Context, key, fallback string) string {
	value, err := s.Get(ctx, key)
	if err != nil || value == "" {
		return fallback
	}
	return value
}

// Bool reads key as a boolean. "1", "true" and "on" are true.
func (s *Service) Bool(ctx context.Context, key string) bool {
	return parseBool(s.GetOr(ctx, key, ""))
}

// All returns every public setting, decrypted.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	c := s.cached()
	if c != nil {
		if v, ok := c.Get(allCacheKey); ok {
			return copyMap(v.(map[string]string)), nil
		}
	}

	out, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if c != nil {
		c.Set(allCacheKey, copyMap(out))
	}
	return out, nil
}

func (s *Service) load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE key NOT LIKE '\_%' ESCAPE '\'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if out[key], err = s.decrypt(key, value); err != nil {
			return nil, err
		}
	}
	return out, rows.Err()
}

// Form returns the values of the keys in form. Unset keys are empty.
func (s *Service) Form(ctx context.Context, form Form) (map[string]string, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(form.Keys()))
	for _, key := range form.Keys() {
		out[key] = all[key]
	}
	return out, nil
}

// BatchUpdate writes all values in one transaction. The form token field is
// ignored. Daemon listeners run after commit when an rpc_* key changed.
func (s *Service) BatchUpdate(ctx context.Context, values map[string]string) error {
	delete(values, formToken)
	if len(values) == 0 {
		return nil
	}

	for key, value := range values {
		if strings.HasPrefix(key, "_") || key == "" {
			return &ValidationError{Key: key, Message: "reserved key"}
		}
		if key == KeyRPCPort && value != "" {
			if port, err := strconv.Atoi(value); err != nil || port <= 0 || port > 65535 {
				return &ValidationError{Key: key, Message: "must be a port number"}
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	daemonChanged := false
	for key, value := range values {
		stored, err := s.encrypt(key, value)
		if err != nil {
			return err
		}
		if err := upsert(ctx, tx, key, stored); err != nil {
			return err
		}
		if daemonKeys[key] {
			daemonChanged = true
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	if c := s.cached(); c != nil {
		c.Delete(allCacheKey)
	}

	s.logger.Info().Int("count", len(values)).Msg("settings updated")

	if daemonChanged {
		s.notifyDaemon(ctx)
	}
	return nil
}

// Daemon builds the daemon connection config from the rpc_* settings,
// falling back to the static defaults per field.
func (s *Service) Daemon(ctx context.Context) (aria2.Config, error) {
	cfg := s.defaults

	all, err := s.All(ctx)
	if err != nil {
		return cfg, err
	}

	if v := all[KeyRPCURL]; v != "" {
		cfg.Host = v
	}
	if v := all[KeyRPCPort]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, &ValidationError{Key: KeyRPCPort, Message: "must be a port number"}
		}
		cfg.Port = port
	}
	if v, ok := all[KeyRPCToken]; ok {
		cfg.Token = v
	}
	if v, ok := all[KeyRPCSecure]; ok {
		cfg.UseSSL = parseBool(v)
	}
	return cfg, nil
}

func (s *Service) notifyDaemon(ctx context.Context) {
	cfg, err := s.Daemon(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load daemon settings")
		return
	}

	s.mu.RLock()
	listeners := append([]DaemonListener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

func (s *Service) raw(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

func (s *Service) encrypt(key, value string) (string, error) {
	s.mu.RLock()
	secrets := s.secrets
	s.mu.RUnlock()

	if secrets == nil || !secretKeys[key] {
		return value, nil
	}
	enc, err := secrets.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return enc, nil
}

func (s *Service) decrypt(key, value string) (string, error) {
	if !crypto.IsEncrypted(value) {
		return value, nil
	}

	s.mu.RLock()
	secrets := s.secrets
	s.mu.RUnlock()

	if secrets == nil {
		return "", fmt.Errorf("setting %s is encrypted but no secret key is configured", key)
	}
	plain, err := secrets.Decrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
