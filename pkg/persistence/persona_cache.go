package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CachedPersona is one resolved directory entry.
type CachedPersona struct {
	FirstName  string
	Department string
	Team       string
	ResolvedAt time.Time
}

// GetCachedPersona returns the cached directory entry for an email if one
// exists and is younger than ttl.
func GetCachedPersona(email string, ttl time.Duration) (*CachedPersona, bool, error) {
	var p CachedPersona
	var resolvedAt string
	err := GetDB().QueryRow(
		`SELECT first_name, department, team, resolved_at FROM persona_cache WHERE email = ?`, email,
	).Scan(&p.FirstName, &p.Department, &p.Team, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read persona cache: %w", err)
	}

	p.ResolvedAt, err = time.Parse(time.RFC3339, resolvedAt)
	if err != nil || time.Since(p.ResolvedAt) > ttl {
		return nil, false, nil // stale or unparseable, treat as miss
	}
	return &p, true, nil
}

// PutCachedPersona stores or refreshes a directory entry.
func PutCachedPersona(email string, p CachedPersona) error {
	resolvedAt := p.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}
	_, err := GetDB().Exec(
		`INSERT INTO persona_cache (email, first_name, department, team, resolved_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   first_name = excluded.first_name,
		   department = excluded.department,
		   team = excluded.team,
		   resolved_at = excluded.resolved_at`,
		email, p.FirstName, p.Department, p.Team, resolvedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to write persona cache: %w", err)
	}
	return nil
}
