package db

import (
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrClientDuplicate is returned when inserting a client_id that already exists.
var ErrClientDuplicate = errors.New("client already exists")

// CreateClient inserts a client application record. There is no HTTP surface
// for this; it exists for seeding and tests. Client records are otherwise
// read-only to this server.
func (s *Store) CreateClient(c *OAuthClient) error {
	_, err := s.db.Exec(
		`INSERT INTO oauth_clients (client_id, client_secret, name, redirect_uris, owner_id)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ClientID, c.ClientSecret, c.Name, c.RedirectURIs, c.OwnerID,
	)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return ErrClientDuplicate
		}
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

// GetClient retrieves a client application by client_id.
// Returns (nil, nil) when no such client exists.
func (s *Store) GetClient(clientID string) (*OAuthClient, error) {
	c := &OAuthClient{}
	err := s.db.QueryRow(
		`SELECT client_id, client_secret, name, redirect_uris, owner_id, created_at
		 FROM oauth_clients WHERE client_id = ?`, clientID,
	).Scan(&c.ClientID, &c.ClientSecret, &c.Name, &c.RedirectURIs, &c.OwnerID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}
