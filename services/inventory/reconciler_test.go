package inventory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestMergeNamespace(t *testing.T) {
	tests := []struct {
		name     string
		existing []FactSet
		incoming map[string]string
		want     map[string]string
	}{
		{
			name:     "creates absent namespace",
			existing: nil,
			incoming: map[string]string{"a": "1"},
			want:     map[string]string{"a": "1"},
		},
		{
			name:     "unions disjoint keys",
			existing: []FactSet{{Namespace: "ns1", Facts: map[string]string{"a": "1"}}},
			incoming: map[string]string{"b": "2"},
			want:     map[string]string{"a": "1", "b": "2"},
		},
		{
			name:     "incoming key wins",
			existing: []FactSet{{Namespace: "ns1", Facts: map[string]string{"a": "1", "b": "2"}}},
			incoming: map[string]string{"a": "9"},
			want:     map[string]string{"a": "9", "b": "2"},
		},
		{
			name:     "idempotent for identical payloads",
			existing: []FactSet{{Namespace: "ns1", Facts: map[string]string{"a": "1"}}},
			incoming: map[string]string{"a": "1"},
			want:     map[string]string{"a": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Host{Facts: tt.existing}
			MergeNamespace(h, "ns1", tt.incoming)
			fs := h.FactSetFor("ns1")
			if fs == nil {
				t.Fatal("namespace ns1 missing after merge")
			}
			if !reflect.DeepEqual(fs.Facts, tt.want) {
				t.Fatalf("merge result = %v, want %v", fs.Facts, tt.want)
			}
		})
	}
}

func TestMergeCommutativeAcrossDisjointKeys(t *testing.T) {
	a := map[string]string{"a": "1"}
	b := map[string]string{"b": "2"}

	h1 := &Host{}
	MergeNamespace(h1, "ns1", a)
	MergeNamespace(h1, "ns1", b)

	h2 := &Host{}
	MergeNamespace(h2, "ns1", b)
	MergeNamespace(h2, "ns1", a)

	want := map[string]string{"a": "1", "b": "2"}
	if !reflect.DeepEqual(h1.FactSetFor("ns1").Facts, want) {
		t.Fatalf("a then b = %v, want %v", h1.FactSetFor("ns1").Facts, want)
	}
	if !reflect.DeepEqual(h2.FactSetFor("ns1").Facts, want) {
		t.Fatalf("b then a = %v, want %v", h2.FactSetFor("ns1").Facts, want)
	}
}

func TestReplaceNamespace(t *testing.T) {
	h := &Host{Facts: []FactSet{{Namespace: "ns1", Facts: map[string]string{"a": "1", "b": "2"}}}}
	ReplaceNamespace(h, "ns1", map[string]string{"c": "3"})

	want := map[string]string{"c": "3"}
	if !reflect.DeepEqual(h.FactSetFor("ns1").Facts, want) {
		t.Fatalf("replace result = %v, want %v", h.FactSetFor("ns1").Facts, want)
	}

	// Replacing with an empty set empties the namespace but keeps it.
	ReplaceNamespace(h, "ns1", map[string]string{})
	if got := h.FactSetFor("ns1"); got == nil || len(got.Facts) != 0 {
		t.Fatalf("empty replace result = %v, want empty set", got)
	}

	// An absent namespace is created.
	ReplaceNamespace(h, "ns2", map[string]string{"x": "y"})
	if got := h.FactSetFor("ns2"); got == nil || got.Facts["x"] != "y" {
		t.Fatalf("replace into new namespace = %v", got)
	}
	if len(h.Facts) != 2 {
		t.Fatalf("namespaces = %d, want 2", len(h.Facts))
	}
}

func TestReconcilerBatchIndependence(t *testing.T) {
	store := NewMemStore()
	h1 := newStoredHost(t, store, func(h *Host) {
		h.Facts = []FactSet{{Namespace: "ns1", Facts: map[string]string{"key1": "value1"}}}
	})
	missing := uuid.New()

	rec := NewReconciler(store)
	results, err := rec.Apply(context.Background(), testAccount,
		[]uuid.UUID{h1.ID, missing}, OpMerge, "ns1",
		map[string]string{"newkey1": "newvalue1"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].HostID != h1.ID || results[0].Err != nil {
		t.Fatalf("first result = %+v, want success for %s", results[0], h1.ID)
	}
	if results[1].HostID != missing || !errors.Is(results[1].Err, ErrHostNotFound) {
		t.Fatalf("second result = %+v, want ErrHostNotFound for %s", results[1], missing)
	}

	// The missing sibling must not have rolled back the first mutation.
	stored, err := store.FindByID(context.Background(), testAccount, h1.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	want := map[string]string{"key1": "value1", "newkey1": "newvalue1"}
	if !reflect.DeepEqual(stored.FactSetFor("ns1").Facts, want) {
		t.Fatalf("stored facts = %v, want %v", stored.FactSetFor("ns1").Facts, want)
	}
	if !stored.Updated.After(h1.Updated) {
		t.Fatalf("updated not refreshed: %v <= %v", stored.Updated, h1.Updated)
	}
}

func TestReconcilerValidation(t *testing.T) {
	store := NewMemStore()
	h1 := newStoredHost(t, store, nil)
	rec := NewReconciler(store)
	ids := []uuid.UUID{h1.ID}

	tests := []struct {
		name      string
		ids       []uuid.UUID
		op        FactOp
		namespace string
		incoming  map[string]string
	}{
		{name: "empty namespace", ids: ids, op: OpMerge, namespace: "", incoming: map[string]string{"a": "1"}},
		{name: "nil facts", ids: ids, op: OpReplace, namespace: "ns1", incoming: nil},
		{name: "empty merge", ids: ids, op: OpMerge, namespace: "ns1", incoming: map[string]string{}},
		{name: "no hosts", ids: nil, op: OpMerge, namespace: "ns1", incoming: map[string]string{"a": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rec.Apply(context.Background(), testAccount, tt.ids, tt.op, tt.namespace, tt.incoming)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Apply() error = %v, want ValidationError", err)
			}
		})
	}

	// An empty replace is legal.
	results, err := rec.Apply(context.Background(), testAccount, ids, OpReplace, "ns1", map[string]string{})
	if err != nil {
		t.Fatalf("Apply() empty replace error = %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("empty replace result = %+v", results[0])
	}
}
