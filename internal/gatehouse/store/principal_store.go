package store

import (
	"context"

	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

// PrincipalStore resolves bearer credentials to principals.  The gate flow
// only reads; principal lifecycle is owned by the user-management surface.
type PrincipalStore interface {
	// LookupByAPIKey returns the principal holding the given credential,
	// or ErrNotFound.
	LookupByAPIKey(ctx context.Context, apiKey string) (types.Principal, error)

	// LookupByID returns the principal with the given identifier, or
	// ErrNotFound.
	LookupByID(ctx context.Context, id string) (types.Principal, error)
}
