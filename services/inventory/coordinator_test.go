package inventory

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUpsertCreatesThenUpdates(t *testing.T) {
	store := NewMemStore()
	coord := NewCoordinator(store)
	insights := "11111111-1111-1111-1111-111111111111"

	sub := Submission{
		Account:     testAccount,
		DisplayName: strptr("first-name"),
		InsightsID:  strptr(insights),
		Tags:        []string{"env=prod"},
	}

	created, err := coord.Upsert(context.Background(), sub)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !created.Created {
		t.Fatal("first submission did not create")
	}
	if created.Host.Created.IsZero() || !created.Host.Created.Equal(created.Host.Updated) {
		t.Fatalf("timestamps on create = %v / %v", created.Host.Created, created.Host.Updated)
	}

	sub.DisplayName = strptr("second-name")
	sub.FQDN = strptr("host.example.com")
	updated, err := coord.Upsert(context.Background(), sub)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if updated.Created {
		t.Fatal("second submission created instead of updating")
	}
	if updated.Host.ID != created.Host.ID {
		t.Fatalf("second submission landed on %s, want %s", updated.Host.ID, created.Host.ID)
	}
	if got := updated.Host.DisplayName; got == nil || *got != "second-name" {
		t.Fatalf("display name = %v, want second-name", got)
	}
	if got := updated.Host.FQDN; got == nil || *got != "host.example.com" {
		t.Fatalf("fqdn = %v, want host.example.com", got)
	}
	if got := updated.Host.InsightsID; got == nil || *got != insights {
		t.Fatalf("insights id not preserved: %v", got)
	}
	if !updated.Host.Updated.After(created.Host.Updated) {
		t.Fatalf("updated not refreshed: %v <= %v", updated.Host.Updated, created.Host.Updated)
	}
	if !updated.Host.Created.Equal(created.Host.Created) {
		t.Fatalf("created drifted: %v != %v", updated.Host.Created, created.Host.Created)
	}
}

func TestUpsertCanonicalAbsentKeepsStored(t *testing.T) {
	store := NewMemStore()
	coord := NewCoordinator(store)
	insights := "11111111-1111-1111-1111-111111111111"
	bios := "22222222-2222-2222-2222-222222222222"

	first := Submission{Account: testAccount, InsightsID: strptr(insights), BIOSUUID: strptr(bios)}
	if _, err := coord.Upsert(context.Background(), first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// The second submission omits bios_uuid; the stored value survives.
	second := Submission{Account: testAccount, InsightsID: strptr(insights)}
	res, err := coord.Upsert(context.Background(), second)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if res.Created {
		t.Fatal("expected update")
	}
	if got := res.Host.BIOSUUID; got == nil || *got != bios {
		t.Fatalf("bios_uuid = %v, want %s", got, bios)
	}
}

func TestUpsertReplacesDescriptiveWholeField(t *testing.T) {
	store := NewMemStore()
	coord := NewCoordinator(store)
	insights := "11111111-1111-1111-1111-111111111111"

	first := Submission{
		Account:     testAccount,
		InsightsID:  strptr(insights),
		DisplayName: strptr("named"),
		IPAddresses: []string{"10.0.0.1", "10.0.0.2"},
		Tags:        []string{"env=prod"},
	}
	if _, err := coord.Upsert(context.Background(), first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	second := Submission{
		Account:     testAccount,
		InsightsID:  strptr(insights),
		IPAddresses: []string{"10.0.0.3"},
	}
	res, err := coord.Upsert(context.Background(), second)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !reflect.DeepEqual(res.Host.IPAddresses, []string{"10.0.0.3"}) {
		t.Fatalf("ip addresses = %v, want whole-field replacement", res.Host.IPAddresses)
	}
	// Absent descriptive fields clear, unlike canonical ones.
	if res.Host.DisplayName != nil {
		t.Fatalf("display name = %v, want cleared", *res.Host.DisplayName)
	}
	if len(res.Host.Tags) != 0 {
		t.Fatalf("tags = %v, want cleared", res.Host.Tags)
	}
}

func TestUpsertLeavesNamespacedFactsAlone(t *testing.T) {
	store := NewMemStore()
	coord := NewCoordinator(store)
	insights := "11111111-1111-1111-1111-111111111111"

	res, err := coord.Upsert(context.Background(), Submission{Account: testAccount, InsightsID: strptr(insights)})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rec := NewReconciler(store)
	if _, err := rec.Apply(context.Background(), testAccount,
		[]uuid.UUID{res.Host.ID}, OpMerge, "ns1", map[string]string{"a": "1"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	again, err := coord.Upsert(context.Background(), Submission{Account: testAccount, InsightsID: strptr(insights)})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	fs := again.Host.FactSetFor("ns1")
	if fs == nil || !reflect.DeepEqual(fs.Facts, map[string]string{"a": "1"}) {
		t.Fatalf("facts after upsert = %v, want untouched ns1", again.Host.Facts)
	}
}

func TestUpsertNoCanonicalFactsAlwaysCreates(t *testing.T) {
	store := NewMemStore()
	coord := NewCoordinator(store)

	first, err := coord.Upsert(context.Background(), Submission{Account: testAccount, DisplayName: strptr("anon")})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	second, err := coord.Upsert(context.Background(), Submission{Account: testAccount, DisplayName: strptr("anon")})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !first.Created || !second.Created {
		t.Fatal("identifier-free submissions must each create")
	}
	if first.Host.ID == second.Host.ID {
		t.Fatal("identifier-free submissions collapsed onto one host")
	}
}

func TestUpsertRejectsInvalidSubmission(t *testing.T) {
	coord := NewCoordinator(NewMemStore())
	_, err := coord.Upsert(context.Background(), Submission{DisplayName: strptr("no-account")})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Upsert() error = %v, want ValidationError", err)
	}
}

// racingStore loses its first create transaction to a competitor that it
// inserts behind the caller's back, simulating two submissions hitting the
// same canonical fact concurrently.
type racingStore struct {
	*MemStore
	competitor Host
	raced      atomic.Bool
}

func (s *racingStore) Transaction(ctx context.Context, fn func(Store) error) error {
	if s.raced.CompareAndSwap(false, true) {
		h := s.competitor
		if err := s.MemStore.Create(ctx, &h); err != nil {
			return err
		}
		return ErrConflict
	}
	return s.MemStore.Transaction(ctx, fn)
}

func TestUpsertRetriesLostCreateRaceAsUpdate(t *testing.T) {
	insights := "11111111-1111-1111-1111-111111111111"
	now := time.Now().UTC()
	competitor := Host{
		ID:         uuid.New(),
		Account:    testAccount,
		InsightsID: strptr(insights),
		Created:    now,
		Updated:    now,
	}
	store := &racingStore{MemStore: NewMemStore(), competitor: competitor}
	coord := NewCoordinator(store)

	res, err := coord.Upsert(context.Background(), Submission{
		Account:     testAccount,
		InsightsID:  strptr(insights),
		DisplayName: strptr("loser"),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if res.Created {
		t.Fatal("losing submission reported a create")
	}
	if res.Host.ID != competitor.ID {
		t.Fatalf("retry landed on %s, want winner %s", res.Host.ID, competitor.ID)
	}
	if got := res.Host.DisplayName; got == nil || *got != "loser" {
		t.Fatalf("display name = %v, want loser's update applied", got)
	}
}
