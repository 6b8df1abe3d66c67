package db

import "fmt"

// RecordAuthorization appends a consent audit entry.
func (s *Store) RecordAuthorization(userID int64, clientID, appName, scope, status string) error {
	if scope == "" {
		scope = "openid"
	}
	_, err := s.db.Exec(
		`INSERT INTO authorizations (user_id, client_id, app_name, scope, status)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, clientID, appName, scope, status,
	)
	if err != nil {
		return fmt.Errorf("record authorization: %w", err)
	}
	return nil
}

// ListAuthorizations returns the audit entries for a user, most recent first.
func (s *Store) ListAuthorizations(userID int64) ([]Authorization, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, client_id, app_name, scope, status, created_at
		 FROM authorizations WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list authorizations: %w", err)
	}
	defer rows.Close()

	var out []Authorization
	for rows.Next() {
		var a Authorization
		if err := rows.Scan(&a.ID, &a.UserID, &a.ClientID, &a.AppName, &a.Scope, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan authorization: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
