package inventory

import (
	"strings"

	"github.com/google/uuid"
)

// Canonical fact field names, in resolution precedence order. insights_id
// is the most authoritative platform-issued identifier; fqdn the least.
const (
	FieldInsightsID            = "insights_id"
	FieldRHELMachineID         = "rhel_machine_id"
	FieldSubscriptionManagerID = "subscription_manager_id"
	FieldSatelliteID           = "satellite_id"
	FieldBIOSUUID              = "bios_uuid"
	FieldFQDN                  = "fqdn"
)

// CanonicalFieldOrder fixes the tie-break precedence used by the resolver.
// The extractor emits facts in this order and the resolver consumes them
// in this order, so the two cannot drift apart.
var CanonicalFieldOrder = []string{
	FieldInsightsID,
	FieldRHELMachineID,
	FieldSubscriptionManagerID,
	FieldSatelliteID,
	FieldBIOSUUID,
	FieldFQDN,
}

// CanonicalFact is one (field, value) identity pair extracted from a
// submission.
type CanonicalFact struct {
	Field string
	Value string
}

// CanonicalFacts extracts the present canonical identity pairs from a
// submission, in precedence order. A submission with none of them extracts
// to an empty set; such a host can only ever be created, never matched.
func CanonicalFacts(s Submission) []CanonicalFact {
	var out []CanonicalFact
	for _, field := range CanonicalFieldOrder {
		if v := s.canonicalValue(field); v != nil && *v != "" {
			out = append(out, CanonicalFact{Field: field, Value: *v})
		}
	}
	return out
}

func (s Submission) canonicalValue(field string) *string {
	switch field {
	case FieldInsightsID:
		return s.InsightsID
	case FieldRHELMachineID:
		return s.RHELMachineID
	case FieldSubscriptionManagerID:
		return s.SubscriptionManagerID
	case FieldSatelliteID:
		return s.SatelliteID
	case FieldBIOSUUID:
		return s.BIOSUUID
	case FieldFQDN:
		return s.FQDN
	}
	return nil
}

// CanonicalValue returns the host's stored value for a canonical field,
// or nil when unset.
func (h *Host) CanonicalValue(field string) *string {
	switch field {
	case FieldInsightsID:
		return h.InsightsID
	case FieldRHELMachineID:
		return h.RHELMachineID
	case FieldSubscriptionManagerID:
		return h.SubscriptionManagerID
	case FieldSatelliteID:
		return h.SatelliteID
	case FieldBIOSUUID:
		return h.BIOSUUID
	case FieldFQDN:
		return h.FQDN
	}
	return nil
}

// Validate checks the submission for client errors: a missing account,
// malformed UUID-typed canonical fields, or fact sets without a namespace
// or facts mapping.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Account) == "" {
		return &ValidationError{Field: "account", Reason: "is required"}
	}
	uuidFields := []string{
		FieldInsightsID,
		FieldRHELMachineID,
		FieldSubscriptionManagerID,
		FieldSatelliteID,
		FieldBIOSUUID,
	}
	for _, field := range uuidFields {
		v := s.canonicalValue(field)
		if v == nil || *v == "" {
			continue
		}
		if _, err := uuid.Parse(*v); err != nil {
			return &ValidationError{Field: field, Reason: "must be a UUID"}
		}
	}
	if s.FQDN != nil && *s.FQDN != "" && strings.ContainsAny(*s.FQDN, " \t") {
		return &ValidationError{Field: FieldFQDN, Reason: "must be a domain name"}
	}
	seen := make(map[string]bool, len(s.Facts))
	for _, fs := range s.Facts {
		if fs.Namespace == "" {
			return &ValidationError{Field: "facts", Reason: "namespace is required"}
		}
		if fs.Facts == nil {
			return &ValidationError{Field: "facts", Reason: "facts mapping is required"}
		}
		if seen[fs.Namespace] {
			return &ValidationError{Field: "facts", Reason: "duplicate namespace " + fs.Namespace}
		}
		seen[fs.Namespace] = true
	}
	return nil
}
