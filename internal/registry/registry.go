// Package registry persists provider capability records. The raw provider
// secret is never stored; registration derives its selector once and keeps
// only that.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/castlab/enginerelay/internal/engine"
)

// ErrNotFound is returned when no engine matches the given id.
var ErrNotFound = errors.New("engine not found")

// ErrInvalidRegistration marks a registration rejected before it touched
// storage.
var ErrInvalidRegistration = errors.New("invalid registration")

const minProviderSecretLen = 16

// Store is the sqlite-backed engine registry.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRequest carries a registration. The provider secret is consumed to
// derive the selector and then discarded.
type CreateRequest struct {
	Name           string                `json:"name"`
	MaxThreads     int                   `json:"maxThreads"`
	MaxHash        int                   `json:"maxHash"`
	Variants       []engine.Variant      `json:"variants"`
	ProviderSecret engine.ProviderSecret `json:"providerSecret"`
}

func (r CreateRequest) validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidRegistration)
	}
	if r.MaxThreads < 1 {
		return fmt.Errorf("%w: maxThreads must be at least 1", ErrInvalidRegistration)
	}
	if r.MaxHash < 1 {
		return fmt.Errorf("%w: maxHash must be at least 1", ErrInvalidRegistration)
	}
	if len(r.Variants) == 0 {
		return fmt.Errorf("%w: variants is empty", ErrInvalidRegistration)
	}
	if len(r.ProviderSecret) < minProviderSecretLen {
		return fmt.Errorf("%w: providerSecret must be at least %d characters", ErrInvalidRegistration, minProviderSecretLen)
	}
	return nil
}

// Create registers a new engine, generating its id and client secret.
func (s *Store) Create(ctx context.Context, req CreateRequest) (engine.Engine, error) {
	if err := req.validate(); err != nil {
		return engine.Engine{}, err
	}

	eng := engine.Engine{
		ID:               uuid.NewString(),
		Name:             req.Name,
		ClientSecret:     engine.NewClientSecret(),
		ProviderSelector: req.ProviderSecret.Selector(),
		MaxThreads:       req.MaxThreads,
		MaxHash:          req.MaxHash,
		Variants:         req.Variants,
		CreatedAt:        time.Now().UTC(),
	}

	variants, err := json.Marshal(eng.Variants)
	if err != nil {
		return engine.Engine{}, fmt.Errorf("marshal variants: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO engines(id, name, client_secret, provider_selector, max_threads, max_hash, variants, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, eng.ID, eng.Name, string(eng.ClientSecret), string(eng.ProviderSelector),
		eng.MaxThreads, eng.MaxHash, string(variants),
		eng.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return engine.Engine{}, fmt.Errorf("insert engine: %w", err)
	}
	return eng, nil
}

// Get loads an engine by id.
func (s *Store) Get(ctx context.Context, id string) (engine.Engine, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, client_secret, provider_selector, max_threads, max_hash, variants, created_at
FROM engines
WHERE id = ?;
`, id)
	return scanEngine(row)
}

// Delete removes an engine registration.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM engines WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete engine: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete engine: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of registered engines.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM engines;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count engines: %w", err)
	}
	return n, nil
}

func scanEngine(row *sql.Row) (engine.Engine, error) {
	var (
		eng        engine.Engine
		secret     string
		selector   string
		variants   string
		createdAtS string
	)
	err := row.Scan(&eng.ID, &eng.Name, &secret, &selector, &eng.MaxThreads, &eng.MaxHash, &variants, &createdAtS)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Engine{}, ErrNotFound
	}
	if err != nil {
		return engine.Engine{}, fmt.Errorf("scan engine: %w", err)
	}
	eng.ClientSecret = engine.ClientSecret(secret)
	eng.ProviderSelector = engine.ProviderSelector(selector)
	if err := json.Unmarshal([]byte(variants), &eng.Variants); err != nil {
		return engine.Engine{}, fmt.Errorf("unmarshal variants: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		eng.CreatedAt = t
	}
	return eng, nil
}
