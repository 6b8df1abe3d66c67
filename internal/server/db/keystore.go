package db

import "fmt"

// signingKeyName is the fixed key under which the server's RSA signing key
// is persisted.
const signingKeyName = "rsa_private_key_pem"

// LoadOrStoreSigningKey persists candidate under the fixed signing-key name
// unless a key is already stored, and returns whatever is stored afterwards.
// INSERT OR IGNORE makes the first writer win, so concurrently starting
// processes all end up with the same key.
func (s *Store) LoadOrStoreSigningKey(candidate []byte) ([]byte, error) {
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO key_store (name, value) VALUES (?, ?)`,
		signingKeyName, candidate,
	); err != nil {
		return nil, fmt.Errorf("store signing key: %w", err)
	}

	var stored []byte
	if err := s.db.QueryRow(
		`SELECT value FROM key_store WHERE name = ?`, signingKeyName,
	).Scan(&stored); err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	return stored, nil
}

// SigningKeyExists reports whether a signing key has been persisted.
func (s *Store) SigningKeyExists() (bool, error) {
	var n int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM key_store WHERE name = ?`, signingKeyName,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("check signing key: %w", err)
	}
	return n > 0, nil
}
