package inventory

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// FactSet carries all facts recorded under one namespace for one host.
// Namespaces are unique within a host.
type FactSet struct {
	Namespace string            `json:"namespace"`
	Facts     map[string]string `json:"facts"`
}

// Host is the canonical record for one managed machine within an account.
type Host struct {
	ID      uuid.UUID `json:"id"`
	Account string    `json:"account"`

	DisplayName *string `json:"display_name"`

	InsightsID            *string `json:"insights_id,omitempty"`
	RHELMachineID         *string `json:"rhel_machine_id,omitempty"`
	SubscriptionManagerID *string `json:"subscription_manager_id,omitempty"`
	SatelliteID           *string `json:"satellite_id,omitempty"`
	BIOSUUID              *string `json:"bios_uuid,omitempty"`
	FQDN                  *string `json:"fqdn,omitempty"`

	IPAddresses  []string `json:"ip_addresses"`
	MACAddresses []string `json:"mac_addresses"`
	Tags         []string `json:"tags"`

	Facts []FactSet `json:"facts"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Submission is an incoming host document before it has been resolved
// against the stored inventory.
type Submission struct {
	Account string `json:"account"`

	DisplayName *string `json:"display_name"`

	InsightsID            *string `json:"insights_id"`
	RHELMachineID         *string `json:"rhel_machine_id"`
	SubscriptionManagerID *string `json:"subscription_manager_id"`
	SatelliteID           *string `json:"satellite_id"`
	BIOSUUID              *string `json:"bios_uuid"`
	FQDN                  *string `json:"fqdn"`

	IPAddresses  []string `json:"ip_addresses"`
	MACAddresses []string `json:"mac_addresses"`
	Tags         []string `json:"tags"`

	Facts []FactSet `json:"facts"`
}

// FactSetFor returns the host's fact set for the given namespace, or nil.
func (h *Host) FactSetFor(namespace string) *FactSet {
	for i := range h.Facts {
		if h.Facts[i].Namespace == namespace {
			return &h.Facts[i]
		}
	}
	return nil
}

// HasAllTags reports whether the host owns every tag in want.
func (h *Host) HasAllTags(want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range h.Tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// store-owned data.
func (h *Host) Clone() *Host {
	out := *h
	out.IPAddresses = append([]string(nil), h.IPAddresses...)
	out.MACAddresses = append([]string(nil), h.MACAddresses...)
	out.Tags = append([]string(nil), h.Tags...)
	out.Facts = make([]FactSet, len(h.Facts))
	for i, fs := range h.Facts {
		facts := make(map[string]string, len(fs.Facts))
		for k, v := range fs.Facts {
			facts[k] = v
		}
		out.Facts[i] = FactSet{Namespace: fs.Namespace, Facts: facts}
	}
	return &out
}

// SortHostsByID orders hosts by ascending id, the stable ordering used by
// every paginated response.
func SortHostsByID(hosts []Host) {
	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].ID.String() < hosts[j].ID.String()
	})
}
