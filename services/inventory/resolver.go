package inventory

import "context"

// Resolve finds at most one existing host in the account matching the
// extracted canonical facts. Facts are tried strictly in precedence order;
// the first field that yields exactly one host wins, even if a later field
// would have pointed at a different host. A field matching more than one
// host fails with AmbiguousMatchError because silently choosing would hide
// duplicate-data bugs. A nil result with a nil error means no match: the
// caller should create.
func Resolve(ctx context.Context, store Store, account string, facts []CanonicalFact) (*Host, error) {
	for _, cf := range facts {
		matches, err := store.FindByCanonicalFact(ctx, account, cf.Field, cf.Value)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 0:
			continue
		case 1:
			return &matches[0], nil
		default:
			ambiguousMatches.Inc()
			return nil, &AmbiguousMatchError{
				Account: account,
				Field:   cf.Field,
				Value:   cf.Value,
				Matches: len(matches),
			}
		}
	}
	return nil, nil
}
