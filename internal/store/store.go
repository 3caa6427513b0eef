package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// HostRecord is one persisted host registration.
type HostRecord struct {
	URL     string
	AddedAt time.Time
}

// ModuleRecord is one persisted module registration.
type ModuleRecord struct {
	ID      string
	Handler string
	Params  map[string]any
	Enabled bool
}

// Store persists host and module registrations using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a Store on top of an open database connection.
// The schema is managed by the database package's migrations.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveHost records a host registration. Re-registering an existing URL
// keeps the original added_at timestamp.
func (s *Store) SaveHost(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hosts (url, added_at) VALUES (?, ?)
		ON CONFLICT(url) DO NOTHING`,
		url,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving host %s: %w", url, err)
	}
	return nil
}

// DeleteHost removes a host registration. Deleting an unknown URL is not
// an error.
func (s *Store) DeleteHost(ctx context.Context, url string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM hosts WHERE url = ?", url); err != nil {
		return fmt.Errorf("deleting host %s: %w", url, err)
	}
	return nil
}

// ListHosts returns all host registrations, oldest first.
func (s *Store) ListHosts(ctx context.Context) ([]HostRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT url, added_at FROM hosts ORDER BY added_at, url",
	)
	if err != nil {
		return nil, fmt.Errorf("listing hosts: %w", err)
	}
	defer rows.Close()

	var records []HostRecord
	for rows.Next() {
		var r HostRecord
		var addedAt string
		if err := rows.Scan(&r.URL, &addedAt); err != nil {
			return nil, fmt.Errorf("scanning host row: %w", err)
		}
		r.AddedAt, _ = time.Parse(time.RFC3339, addedAt) //nolint:errcheck // Format is controlled
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hosts: %w", err)
	}
	return records, nil
}

// SaveModule records a module registration, replacing any previous
// registration with the same id.
func (s *Store) SaveModule(ctx context.Context, id, handler string, params map[string]any, enabled bool) error {
	paramsJSON, err := marshalParams(params)
	if err != nil {
		return fmt.Errorf("encoding params for module %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO modules (id, handler, params_json, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			handler = excluded.handler,
			params_json = excluded.params_json,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		id,
		handler,
		paramsJSON,
		boolToInt(enabled),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving module %s: %w", id, err)
	}
	return nil
}

// SetModuleEnabled updates the enabled flag of a stored module.
// Updating an unknown id is not an error; the module may have been
// registered before persistence was configured.
func (s *Store) SetModuleEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE modules SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating module %s: %w", id, err)
	}
	return nil
}

// DeleteModule removes a module registration. Deleting an unknown id is
// not an error.
func (s *Store) DeleteModule(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM modules WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting module %s: %w", id, err)
	}
	return nil
}

// ListModules returns all module registrations ordered by id.
func (s *Store) ListModules(ctx context.Context) ([]ModuleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, handler, params_json, enabled FROM modules ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	defer rows.Close()

	var records []ModuleRecord
	for rows.Next() {
		var r ModuleRecord
		var paramsJSON string
		var enabled int
		if err := rows.Scan(&r.ID, &r.Handler, &paramsJSON, &enabled); err != nil {
			return nil, fmt.Errorf("scanning module row: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
			return nil, fmt.Errorf("decoding params for module %s: %w", r.ID, err)
		}
		r.Enabled = enabled != 0
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating modules: %w", err)
	}
	return records, nil
}

// marshalParams encodes handler parameters as JSON. A nil map is stored
// as an empty object so ListModules always returns a usable map.
func marshalParams(params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
