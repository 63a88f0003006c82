package inventory

import (
	"context"

	"github.com/google/uuid"
)

const (
	// DefaultPerPage is used when the caller omits per_page.
	DefaultPerPage = 50
	// MaxPerPage caps per_page.
	MaxPerPage = 100
)

// PageRequest is an unvalidated pagination request as it arrives from a
// caller. Zero values take the defaults.
type PageRequest struct {
	Page    int
	PerPage int
}

func (p PageRequest) normalize() (Page, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PerPage == 0 {
		p.PerPage = DefaultPerPage
	}
	if p.Page < 1 {
		return Page{}, &ValidationError{Field: "page", Reason: "must be >= 1"}
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		return Page{}, &ValidationError{Field: "per_page", Reason: "must be between 1 and 100"}
	}
	return Page{Number: p.Page, Size: p.PerPage}, nil
}

// ListResult is one page of hosts plus the pagination envelope fields.
// Count is the number of results on this page, Total the full filtered
// count before pagination.
type ListResult struct {
	Results []Host
	Count   int
	Page    int
	PerPage int
	Total   int64
}

// Queries assembles deterministic, paginated host listings.
type Queries struct {
	store Store
}

// NewQueries builds a query engine over the given store.
func NewQueries(store Store) *Queries {
	return &Queries{store: store}
}

// List returns hosts in the account matching the filter, ordered by
// ascending id. When both a tag filter and a display-name filter are
// supplied the tag filter wins and the name filter is dropped. Requesting
// a page past the last non-empty one fails with ErrPageOutOfRange.
func (q *Queries) List(ctx context.Context, account string, filter ListFilter, req PageRequest) (*ListResult, error) {
	page, err := req.normalize()
	if err != nil {
		return nil, err
	}
	if len(filter.Tags) > 0 {
		filter.DisplayName = ""
	}

	hosts, total, err := q.store.List(ctx, account, filter, page)
	if err != nil {
		return nil, err
	}
	if err := checkPageRange(page, total); err != nil {
		return nil, err
	}
	return &ListResult{
		Results: hosts,
		Count:   len(hosts),
		Page:    page.Number,
		PerPage: page.Size,
		Total:   total,
	}, nil
}

// ByIDs returns exactly the requested hosts that exist in the account,
// silently omitting ids that don't resolve, paginated and ordered like
// List.
func (q *Queries) ByIDs(ctx context.Context, account string, ids []uuid.UUID, req PageRequest) (*ListResult, error) {
	page, err := req.normalize()
	if err != nil {
		return nil, err
	}

	hosts, err := q.store.FindByIDs(ctx, account, ids)
	if err != nil {
		return nil, err
	}
	SortHostsByID(hosts)

	total := int64(len(hosts))
	if err := checkPageRange(page, total); err != nil {
		return nil, err
	}

	start := page.offset()
	if start > len(hosts) {
		start = len(hosts)
	}
	end := start + page.Size
	if end > len(hosts) {
		end = len(hosts)
	}
	results := hosts[start:end]
	return &ListResult{
		Results: results,
		Count:   len(results),
		Page:    page.Number,
		PerPage: page.Size,
		Total:   total,
	}, nil
}

// checkPageRange rejects pages past the data. Page 1 of an empty result
// set is fine; page 2 of it is not.
func checkPageRange(page Page, total int64) error {
	if page.Number == 1 {
		return nil
	}
	lastPage := (total + int64(page.Size) - 1) / int64(page.Size)
	if int64(page.Number) > lastPage {
		return ErrPageOutOfRange
	}
	return nil
}
