package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	upsertAttempts = 3
	upsertBackoff  = 50 * time.Millisecond
)

// UpsertResult carries the stored host after an upsert and whether this
// submission created it.
type UpsertResult struct {
	Host    Host
	Created bool
}

// Coordinator implements create-or-update for host submissions. Resolution
// and the subsequent write run inside one store transaction; a losing race
// on a canonical-fact uniqueness constraint is retried so the loser lands
// as an update on the winner's record.
type Coordinator struct {
	store Store
	clock func() time.Time
}

// NewCoordinator builds a Coordinator over the given store.
func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store, clock: func() time.Time { return time.Now().UTC() }}
}

// Upsert validates the submission, resolves it against the account's
// stored hosts, and either updates the matched record or creates a new
// one. Namespaced facts are never touched here; they are mutated only
// through the reconciler.
func (c *Coordinator) Upsert(ctx context.Context, sub Submission) (*UpsertResult, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	facts := CanonicalFacts(sub)

	var lastErr error
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * upsertBackoff):
			}
		}

		res, err := c.attempt(ctx, sub, facts)
		if err == nil {
			if res.Created {
				hostsCreated.Inc()
			} else {
				hostsUpdated.Inc()
			}
			return res, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Coordinator) attempt(ctx context.Context, sub Submission, facts []CanonicalFact) (*UpsertResult, error) {
	var res UpsertResult
	err := c.store.Transaction(ctx, func(tx Store) error {
		existing, err := Resolve(ctx, tx, sub.Account, facts)
		if err != nil {
			return err
		}

		now := c.clock()
		if existing == nil {
			h := newHost(sub, now)
			if err := tx.Create(ctx, h); err != nil {
				return err
			}
			res = UpsertResult{Host: *h, Created: true}
			return nil
		}

		h := existing.Clone()
		applySubmission(h, sub)
		touch(h, now)
		if err := tx.Update(ctx, h); err != nil {
			return err
		}
		res = UpsertResult{Host: *h, Created: false}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func newHost(sub Submission, now time.Time) *Host {
	h := &Host{
		ID:           uuid.New(),
		Account:      sub.Account,
		DisplayName:  sub.DisplayName,
		IPAddresses:  append([]string(nil), sub.IPAddresses...),
		MACAddresses: append([]string(nil), sub.MACAddresses...),
		Tags:         append([]string(nil), sub.Tags...),
		Facts:        cloneFactSets(sub.Facts),
		Created:      now,
		Updated:      now,
	}
	for _, field := range CanonicalFieldOrder {
		if v := sub.canonicalValue(field); v != nil && *v != "" {
			setCanonical(h, field, *v)
		}
	}
	return h
}

// applySubmission folds a submission into an existing record: descriptive
// fields are whole-field replaced, canonical fields present in the
// submission overwrite, absent ones keep their stored value, and the
// namespaced facts collection is left alone.
func applySubmission(h *Host, sub Submission) {
	h.DisplayName = sub.DisplayName
	h.IPAddresses = append([]string(nil), sub.IPAddresses...)
	h.MACAddresses = append([]string(nil), sub.MACAddresses...)
	h.Tags = append([]string(nil), sub.Tags...)
	for _, field := range CanonicalFieldOrder {
		if v := sub.canonicalValue(field); v != nil && *v != "" {
			setCanonical(h, field, *v)
		}
	}
}

func setCanonical(h *Host, field, value string) {
	v := value
	switch field {
	case FieldInsightsID:
		h.InsightsID = &v
	case FieldRHELMachineID:
		h.RHELMachineID = &v
	case FieldSubscriptionManagerID:
		h.SubscriptionManagerID = &v
	case FieldSatelliteID:
		h.SatelliteID = &v
	case FieldBIOSUUID:
		h.BIOSUUID = &v
	case FieldFQDN:
		h.FQDN = &v
	}
}

func cloneFactSets(src []FactSet) []FactSet {
	out := make([]FactSet, len(src))
	for i, fs := range src {
		facts := make(map[string]string, len(fs.Facts))
		for k, v := range fs.Facts {
			facts[k] = v
		}
		out[i] = FactSet{Namespace: fs.Namespace, Facts: facts}
	}
	return out
}
