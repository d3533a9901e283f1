package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sejink/gatehouse/internal/gatehouse/store"
	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

type PrincipalStore struct {
	db *sql.DB
}

func NewPrincipalStore(db *sql.DB) *PrincipalStore {
	return &PrincipalStore{db: db}
}

func (s *PrincipalStore) LookupByAPIKey(ctx context.Context, apiKey string) (types.Principal, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return types.Principal{}, store.ErrNotFound
	}
	return s.lookup(ctx, "api_key", apiKey)
}

func (s *PrincipalStore) LookupByID(ctx context.Context, id string) (types.Principal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Principal{}, store.ErrNotFound
	}
	return s.lookup(ctx, "principal_id", id)
}

func (s *PrincipalStore) lookup(ctx context.Context, column, value string) (types.Principal, error) {
	var p types.Principal

	// column is one of two compile-time constants, never caller input.
	q := fmt.Sprintf(`
SELECT principal_id, display_name, api_key, date_from, date_to, hour_from, hour_to, flag
FROM principals
WHERE %s = ?;
`, column)

	err := s.db.QueryRowContext(ctx, q, value).Scan(
		&p.ID, &p.Name, &p.APIKey,
		&p.Window.DateFrom, &p.Window.DateTo,
		&p.Window.HourFrom, &p.Window.HourTo,
		&p.Flag,
	)
	if err == sql.ErrNoRows {
		return types.Principal{}, store.ErrNotFound
	}
	if err != nil {
		return types.Principal{}, fmt.Errorf("principal lookup by %s: %w", column, err)
	}
	return p, nil
}
