package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inventoried/pkg/db"
	"inventoried/services/inventory"
)

// PGSource reads host chunks straight from postgres, bypassing the engine;
// the synchronizer has no business holding row locks.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource wraps an open pool.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

type hostRow struct {
	ID                    uuid.UUID `db:"id"`
	Account               string    `db:"account"`
	DisplayName           *string   `db:"display_name"`
	InsightsID            *string   `db:"insights_id"`
	RHELMachineID         *string   `db:"rhel_machine_id"`
	SubscriptionManagerID *string   `db:"subscription_manager_id"`
	SatelliteID           *string   `db:"satellite_id"`
	BIOSUUID              *string   `db:"bios_uuid"`
	FQDN                  *string   `db:"fqdn"`
	IPAddresses           []byte    `db:"ip_addresses"`
	MACAddresses          []byte    `db:"mac_addresses"`
	Tags                  []byte    `db:"tags"`
	Facts                 []byte    `db:"facts"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

func (s *PGSource) CountHosts(ctx context.Context) (int64, error) {
	var count int64
	err := db.Get(ctx, s.pool, &count, "SELECT count(*) FROM hosts")
	return count, err
}

func (s *PGSource) HostChunk(ctx context.Context, offset, limit int) ([]inventory.Host, error) {
	var rows []hostRow
	err := db.Select(ctx, s.pool, &rows, `
SELECT id, account, display_name,
       insights_id, rhel_machine_id, subscription_manager_id,
       satellite_id, bios_uuid, fqdn,
       ip_addresses, mac_addresses, tags, facts,
       created_at, updated_at
FROM hosts
ORDER BY id
OFFSET $1 LIMIT $2
`, offset, limit)
	if err != nil {
		return nil, err
	}

	hosts := make([]inventory.Host, 0, len(rows))
	for _, row := range rows {
		h, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, *h)
	}
	return hosts, nil
}

func (r hostRow) toDomain() (*inventory.Host, error) {
	h := &inventory.Host{
		ID:                    r.ID,
		Account:               r.Account,
		DisplayName:           r.DisplayName,
		InsightsID:            r.InsightsID,
		RHELMachineID:         r.RHELMachineID,
		SubscriptionManagerID: r.SubscriptionManagerID,
		SatelliteID:           r.SatelliteID,
		BIOSUUID:              r.BIOSUUID,
		FQDN:                  r.FQDN,
		Created:               r.CreatedAt,
		Updated:               r.UpdatedAt,
	}
	for _, col := range []struct {
		raw  []byte
		dest any
		name string
	}{
		{r.IPAddresses, &h.IPAddresses, "ip_addresses"},
		{r.MACAddresses, &h.MACAddresses, "mac_addresses"},
		{r.Tags, &h.Tags, "tags"},
		{r.Facts, &h.Facts, "facts"},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("host %s %s: %w", r.ID, col.name, err)
		}
	}
	return h, nil
}

// StoreSource adapts an inventory.Store so the synchronizer and exporter
// can run over the in-memory store in tests and local development. It
// walks one account.
type StoreSource struct {
	store   inventory.Store
	account string
}

// NewStoreSource builds a StoreSource for one account scope.
func NewStoreSource(store inventory.Store, account string) *StoreSource {
	return &StoreSource{store: store, account: account}
}

func (s *StoreSource) CountHosts(ctx context.Context) (int64, error) {
	_, total, err := s.store.List(ctx, s.account, inventory.ListFilter{}, inventory.Page{Number: 1, Size: 1})
	return total, err
}

func (s *StoreSource) HostChunk(ctx context.Context, offset, limit int) ([]inventory.Host, error) {
	// Store paging is page-numbered; offsets here are always chunk
	// multiples, so the translation is exact.
	page := inventory.Page{Number: offset/limit + 1, Size: limit}
	hosts, _, err := s.store.List(ctx, s.account, inventory.ListFilter{}, page)
	return hosts, err
}
