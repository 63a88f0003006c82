package inventory

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a host listing. Tags and DisplayName are mutually
// exclusive per request; when both are set the query engine keeps the tag
// filter and drops the name filter.
type ListFilter struct {
	// Tags a host must own all of to match.
	Tags []string
	// DisplayName is matched as a case-insensitive substring.
	DisplayName string
}

// Page is a validated pagination window. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int { return (p.Number - 1) * p.Size }

// Store is the narrow persistence contract the engine runs against. Every
// operation is scoped to one account; no call ever crosses account
// boundaries. Implementations: PGStore (gorm/postgres) and MemStore.
type Store interface {
	// FindByCanonicalFact returns every host in the account whose stored
	// value for the given canonical field equals value. More than one
	// result indicates a violated uniqueness invariant; the resolver turns
	// that into an AmbiguousMatchError rather than picking one.
	FindByCanonicalFact(ctx context.Context, account, field, value string) ([]Host, error)

	// FindByID returns the host or ErrHostNotFound.
	FindByID(ctx context.Context, account string, id uuid.UUID) (*Host, error)

	// FindByIDs returns the subset of ids that exist in the account,
	// silently omitting the rest.
	FindByIDs(ctx context.Context, account string, ids []uuid.UUID) ([]Host, error)

	// List returns one page of hosts matching the filter, ordered by
	// ascending id, plus the total filtered count before pagination.
	List(ctx context.Context, account string, filter ListFilter, page Page) ([]Host, int64, error)

	// Create inserts a new host. A uniqueness-constraint race on a
	// canonical fact surfaces as ErrConflict.
	Create(ctx context.Context, h *Host) error

	// Update persists the full host record.
	Update(ctx context.Context, h *Host) error

	// MutateHost applies fn to the host under a per-host write lock so
	// concurrent read-modify-write cycles cannot lose updates. Returns the
	// mutated host, or ErrHostNotFound.
	MutateHost(ctx context.Context, account string, id uuid.UUID, fn func(*Host) error) (*Host, error)

	// Transaction runs fn against a transactional view of the store. The
	// upsert coordinator wraps resolve-then-write in it so two concurrent
	// submissions with the same unseen canonical fact cannot both create.
	Transaction(ctx context.Context, fn func(Store) error) error
}
