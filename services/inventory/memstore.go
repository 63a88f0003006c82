package inventory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemStore is a mutex-guarded in-memory Store. It backs the engine's tests
// and local development runs; production uses PGStore.
type MemStore struct {
	mu    sync.Mutex
	hosts map[uuid.UUID]*Host
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{hosts: make(map[uuid.UUID]*Host)}
}

func (m *MemStore) FindByCanonicalFact(ctx context.Context, account, field, value string) ([]Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().FindByCanonicalFact(ctx, account, field, value)
}

func (m *MemStore) FindByID(ctx context.Context, account string, id uuid.UUID) (*Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().FindByID(ctx, account, id)
}

func (m *MemStore) FindByIDs(ctx context.Context, account string, ids []uuid.UUID) ([]Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().FindByIDs(ctx, account, ids)
}

func (m *MemStore) List(ctx context.Context, account string, filter ListFilter, page Page) ([]Host, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().List(ctx, account, filter, page)
}

func (m *MemStore) Create(ctx context.Context, h *Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Create(ctx, h)
}

func (m *MemStore) Update(ctx context.Context, h *Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Update(ctx, h)
}

func (m *MemStore) MutateHost(ctx context.Context, account string, id uuid.UUID, fn func(*Host) error) (*Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().MutateHost(ctx, account, id, fn)
}

// Transaction holds the store lock for the whole of fn, giving the
// serializability the coordinator needs. On error the pre-transaction
// state is restored.
func (m *MemStore) Transaction(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[uuid.UUID]*Host, len(m.hosts))
	for id, h := range m.hosts {
		snapshot[id] = h.Clone()
	}

	if err := fn(m.view()); err != nil {
		m.hosts = snapshot
		return err
	}
	return nil
}

func (m *MemStore) view() *memView { return &memView{hosts: m.hosts} }

// memView implements Store directly over the host map with no locking; the
// owning MemStore serializes access.
type memView struct {
	hosts map[uuid.UUID]*Host
}

func (v *memView) FindByCanonicalFact(_ context.Context, account, field, value string) ([]Host, error) {
	var out []Host
	for _, h := range v.hosts {
		if h.Account != account {
			continue
		}
		if stored := h.CanonicalValue(field); stored != nil && *stored == value {
			out = append(out, *h.Clone())
		}
	}
	SortHostsByID(out)
	return out, nil
}

func (v *memView) FindByID(_ context.Context, account string, id uuid.UUID) (*Host, error) {
	h, ok := v.hosts[id]
	if !ok || h.Account != account {
		return nil, ErrHostNotFound
	}
	return h.Clone(), nil
}

func (v *memView) FindByIDs(_ context.Context, account string, ids []uuid.UUID) ([]Host, error) {
	var out []Host
	for _, id := range ids {
		if h, ok := v.hosts[id]; ok && h.Account == account {
			out = append(out, *h.Clone())
		}
	}
	return out, nil
}

func (v *memView) List(_ context.Context, account string, filter ListFilter, page Page) ([]Host, int64, error) {
	var matched []Host
	for _, h := range v.hosts {
		if h.Account != account {
			continue
		}
		if len(filter.Tags) > 0 {
			if !h.HasAllTags(filter.Tags) {
				continue
			}
		} else if filter.DisplayName != "" {
			if h.DisplayName == nil {
				continue
			}
			if !strings.Contains(strings.ToLower(*h.DisplayName), strings.ToLower(filter.DisplayName)) {
				continue
			}
		}
		matched = append(matched, *h.Clone())
	}
	SortHostsByID(matched)

	total := int64(len(matched))
	start := page.offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (v *memView) Create(_ context.Context, h *Host) error {
	if _, exists := v.hosts[h.ID]; exists {
		return ErrConflict
	}
	for _, field := range CanonicalFieldOrder {
		val := h.CanonicalValue(field)
		if val == nil || *val == "" {
			continue
		}
		for _, other := range v.hosts {
			if other.Account != h.Account {
				continue
			}
			if stored := other.CanonicalValue(field); stored != nil && *stored == *val {
				return ErrConflict
			}
		}
	}
	v.hosts[h.ID] = h.Clone()
	return nil
}

func (v *memView) Update(_ context.Context, h *Host) error {
	existing, ok := v.hosts[h.ID]
	if !ok || existing.Account != h.Account {
		return ErrHostNotFound
	}
	v.hosts[h.ID] = h.Clone()
	return nil
}

func (v *memView) MutateHost(_ context.Context, account string, id uuid.UUID, fn func(*Host) error) (*Host, error) {
	existing, ok := v.hosts[id]
	if !ok || existing.Account != account {
		return nil, ErrHostNotFound
	}
	work := existing.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	v.hosts[id] = work.Clone()
	return work, nil
}

func (v *memView) Transaction(_ context.Context, fn func(Store) error) error {
	return fn(v)
}
