package inventory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type hostModel struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Account string    `gorm:"type:text;not null;index"`

	DisplayName *string `gorm:"type:text;column:display_name"`

	InsightsID            *string `gorm:"type:text;column:insights_id"`
	RHELMachineID         *string `gorm:"type:text;column:rhel_machine_id"`
	SubscriptionManagerID *string `gorm:"type:text;column:subscription_manager_id"`
	SatelliteID           *string `gorm:"type:text;column:satellite_id"`
	BIOSUUID              *string `gorm:"type:text;column:bios_uuid"`
	FQDN                  *string `gorm:"type:text;column:fqdn"`

	IPAddresses  datatypes.JSON `gorm:"type:jsonb;column:ip_addresses"`
	MACAddresses datatypes.JSON `gorm:"type:jsonb;column:mac_addresses"`
	Tags         datatypes.JSON `gorm:"type:jsonb;column:tags"`
	Facts        datatypes.JSON `gorm:"type:jsonb;column:facts"`

	// The engine sets both timestamps itself; gorm's auto-timestamping
	// must not overwrite them.
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();column:created_at;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();column:updated_at;autoUpdateTime:false"`
}

func (hostModel) TableName() string { return "hosts" }

func (m hostModel) toDomain() (*Host, error) {
	h := &Host{
		ID:                    m.ID,
		Account:               m.Account,
		DisplayName:           m.DisplayName,
		InsightsID:            m.InsightsID,
		RHELMachineID:         m.RHELMachineID,
		SubscriptionManagerID: m.SubscriptionManagerID,
		SatelliteID:           m.SatelliteID,
		BIOSUUID:              m.BIOSUUID,
		FQDN:                  m.FQDN,
		Created:               m.CreatedAt,
		Updated:               m.UpdatedAt,
	}
	if err := decodeJSONColumn(m.IPAddresses, &h.IPAddresses); err != nil {
		return nil, fmt.Errorf("host %s ip_addresses: %w", m.ID, err)
	}
	if err := decodeJSONColumn(m.MACAddresses, &h.MACAddresses); err != nil {
		return nil, fmt.Errorf("host %s mac_addresses: %w", m.ID, err)
	}
	if err := decodeJSONColumn(m.Tags, &h.Tags); err != nil {
		return nil, fmt.Errorf("host %s tags: %w", m.ID, err)
	}
	if err := decodeJSONColumn(m.Facts, &h.Facts); err != nil {
		return nil, fmt.Errorf("host %s facts: %w", m.ID, err)
	}
	return h, nil
}

func modelFromHost(h *Host) (*hostModel, error) {
	m := &hostModel{
		ID:                    h.ID,
		Account:               h.Account,
		DisplayName:           h.DisplayName,
		InsightsID:            h.InsightsID,
		RHELMachineID:         h.RHELMachineID,
		SubscriptionManagerID: h.SubscriptionManagerID,
		SatelliteID:           h.SatelliteID,
		BIOSUUID:              h.BIOSUUID,
		FQDN:                  h.FQDN,
		CreatedAt:             h.Created,
		UpdatedAt:             h.Updated,
	}
	// Nil slices land as jsonb [] rather than null so containment
	// queries behave.
	ips := h.IPAddresses
	if ips == nil {
		ips = []string{}
	}
	macs := h.MACAddresses
	if macs == nil {
		macs = []string{}
	}
	tags := h.Tags
	if tags == nil {
		tags = []string{}
	}
	facts := h.Facts
	if facts == nil {
		facts = []FactSet{}
	}
	var err error
	if m.IPAddresses, err = encodeJSONColumn(ips); err != nil {
		return nil, err
	}
	if m.MACAddresses, err = encodeJSONColumn(macs); err != nil {
		return nil, err
	}
	if m.Tags, err = encodeJSONColumn(tags); err != nil {
		return nil, err
	}
	if m.Facts, err = encodeJSONColumn(facts); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeJSONColumn(raw datatypes.JSON, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func encodeJSONColumn(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
