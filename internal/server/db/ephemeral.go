package db

import (
	"database/sql"
	"fmt"
	"time"
)

// The ephemeral table backs every transient protocol artifact: pending SSO
// handshakes, pending consents, authorization codes, and the userinfo cache.
// Expired rows read as absent, indistinguishable from rows that never
// existed. Callers never see whether a key expired or was never written.

// PutEphemeral stores value under key with the given TTL, replacing any
// previous entry. It also purges already-expired rows so the table does not
// grow unbounded.
func (s *Store) PutEphemeral(key string, value []byte, ttl time.Duration) error {
	now := time.Now().UnixNano()
	if _, err := s.db.Exec(`DELETE FROM ephemeral WHERE expires_at <= ?`, now); err != nil {
		return fmt.Errorf("purge expired: %w", err)
	}
	_, err := s.db.Exec(
		`INSERT INTO ephemeral (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, time.Now().Add(ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put ephemeral: %w", err)
	}
	return nil
}

// GetEphemeral reads value under key without consuming it.
// Returns (nil, nil) when the key is absent or expired.
func (s *Store) GetEphemeral(key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRow(
		`SELECT value, expires_at FROM ephemeral WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ephemeral: %w", err)
	}
	if expiresAt <= time.Now().UnixNano() {
		return nil, nil
	}
	return value, nil
}

// ConsumeEphemeral atomically deletes key and returns its value. The delete
// and the read are a single statement, so two concurrent consumers of the
// same key get exactly one winner. Returns (nil, nil) when the key is absent
// or expired.
func (s *Store) ConsumeEphemeral(key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRow(
		`DELETE FROM ephemeral WHERE key = ? RETURNING value, expires_at`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume ephemeral: %w", err)
	}
	if expiresAt <= time.Now().UnixNano() {
		return nil, nil
	}
	return value, nil
}

// DeleteEphemeral removes key if present.
func (s *Store) DeleteEphemeral(key string) error {
	if _, err := s.db.Exec(`DELETE FROM ephemeral WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete ephemeral: %w", err)
	}
	return nil
}
