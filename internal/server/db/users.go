package db

import (
	"database/sql"
	"fmt"
)

// UpsertUser inserts or updates a local forum user.
func (s *Store) UpsertUser(u *LocalUser) error {
	_, err := s.db.Exec(
		`INSERT INTO users (username, name, trust_level)
		 VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
		   name = excluded.name,
		   trust_level = excluded.trust_level`,
		u.Username, u.Name, u.TrustLevel,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// ResolveLocalUser retrieves a local user by username.
// Returns (nil, nil) when the user is unknown; callers treat an unknown user
// as trust level 0.
func (s *Store) ResolveLocalUser(username string) (*LocalUser, error) {
	u := &LocalUser{}
	err := s.db.QueryRow(
		`SELECT username, name, trust_level, created_at
		 FROM users WHERE username = ?`, username,
	).Scan(&u.Username, &u.Name, &u.TrustLevel, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve local user: %w", err)
	}
	return u, nil
}
