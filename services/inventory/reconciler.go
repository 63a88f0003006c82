package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FactOp selects the reconciliation verb for a namespace.
type FactOp int

const (
	// OpMerge unions incoming keys into the namespace, last write wins per
	// key; keys absent from the incoming set are preserved.
	OpMerge FactOp = iota
	// OpReplace overwrites the namespace with exactly the incoming set.
	OpReplace
)

// MergeNamespace applies merge semantics to one namespace of one host.
// Merging into an absent namespace creates it.
func MergeNamespace(h *Host, namespace string, incoming map[string]string) {
	fs := h.FactSetFor(namespace)
	if fs == nil {
		facts := make(map[string]string, len(incoming))
		for k, v := range incoming {
			facts[k] = v
		}
		h.Facts = append(h.Facts, FactSet{Namespace: namespace, Facts: facts})
		return
	}
	if fs.Facts == nil {
		fs.Facts = make(map[string]string, len(incoming))
	}
	for k, v := range incoming {
		fs.Facts[k] = v
	}
}

// ReplaceNamespace discards any prior keys in the namespace and sets it to
// exactly the incoming set, creating the namespace if absent.
func ReplaceNamespace(h *Host, namespace string, incoming map[string]string) {
	facts := make(map[string]string, len(incoming))
	for k, v := range incoming {
		facts[k] = v
	}
	if fs := h.FactSetFor(namespace); fs != nil {
		fs.Facts = facts
		return
	}
	h.Facts = append(h.Facts, FactSet{Namespace: namespace, Facts: facts})
}

// FactResult reports the outcome of a reconciliation for one target host.
type FactResult struct {
	HostID uuid.UUID
	Err    error
}

// Reconciler applies merge/replace operations to namespaced fact sets.
type Reconciler struct {
	store Store
	clock func() time.Time
}

// NewReconciler builds a Reconciler over the given store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store, clock: func() time.Time { return time.Now().UTC() }}
}

// Apply runs one fact operation against each target host independently.
// Each host's read-modify-write happens under the store's per-host lock; a
// failure on one host (typically ErrHostNotFound) never rolls back sibling
// mutations. The returned slice has one entry per id, in input order. A
// non-nil error reports request-level validation problems and means no
// host was touched.
func (r *Reconciler) Apply(ctx context.Context, account string, ids []uuid.UUID, op FactOp, namespace string, incoming map[string]string) ([]FactResult, error) {
	if namespace == "" {
		return nil, &ValidationError{Field: "namespace", Reason: "is required"}
	}
	if incoming == nil {
		return nil, &ValidationError{Field: "facts", Reason: "mapping is required"}
	}
	// A merge that carries no keys is always a caller bug; an empty replace
	// legitimately empties the namespace.
	if op == OpMerge && len(incoming) == 0 {
		return nil, &ValidationError{Field: "facts", Reason: "merge requires at least one fact"}
	}
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "host_id_list", Reason: "is required"}
	}

	now := r.clock()
	results := make([]FactResult, 0, len(ids))
	for _, id := range ids {
		_, err := r.store.MutateHost(ctx, account, id, func(h *Host) error {
			switch op {
			case OpReplace:
				ReplaceNamespace(h, namespace, incoming)
			default:
				MergeNamespace(h, namespace, incoming)
			}
			touch(h, now)
			return nil
		})
		if err == nil {
			if op == OpReplace {
				factsReplaced.Inc()
			} else {
				factsMerged.Inc()
			}
		}
		results = append(results, FactResult{HostID: id, Err: err})
	}
	return results, nil
}

// touch refreshes Updated while keeping it monotonic non-decreasing.
func touch(h *Host, now time.Time) {
	if now.After(h.Updated) {
		h.Updated = now
	}
}
