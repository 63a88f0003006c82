package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Column names are fixed by the migration; the whitelist keeps dynamic
// field lookups out of string interpolation.
var canonicalColumns = map[string]string{
	FieldInsightsID:            "insights_id",
	FieldRHELMachineID:         "rhel_machine_id",
	FieldSubscriptionManagerID: "subscription_manager_id",
	FieldSatelliteID:           "satellite_id",
	FieldBIOSUUID:              "bios_uuid",
	FieldFQDN:                  "fqdn",
}

// PGStore implements Store on postgres via gorm. Uniqueness of
// canonical facts per account is enforced by partial unique indexes; races
// surface as ErrConflict for the coordinator to retry.
type PGStore struct {
	db *gorm.DB
}

// NewPGStore wraps an open gorm handle.
func NewPGStore(db *gorm.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) FindByCanonicalFact(ctx context.Context, account, field, value string) ([]Host, error) {
	column, ok := canonicalColumns[field]
	if !ok {
		return nil, fmt.Errorf("unknown canonical field %q", field)
	}
	var models []hostModel
	err := s.db.WithContext(ctx).
		Where("account = ?", account).
		Where(column+" = ?", value).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, translateStoreError(err)
	}
	return toDomainSlice(models)
}

func (s *PGStore) FindByID(ctx context.Context, account string, id uuid.UUID) (*Host, error) {
	var model hostModel
	err := s.db.WithContext(ctx).
		Where("account = ? AND id = ?", account, id).
		First(&model).Error
	if err != nil {
		return nil, translateStoreError(err)
	}
	return model.toDomain()
}

func (s *PGStore) FindByIDs(ctx context.Context, account string, ids []uuid.UUID) ([]Host, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []hostModel
	err := s.db.WithContext(ctx).
		Where("account = ? AND id IN ?", account, ids).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, translateStoreError(err)
	}
	return toDomainSlice(models)
}

func (s *PGStore) List(ctx context.Context, account string, filter ListFilter, page Page) ([]Host, int64, error) {
	q := s.db.WithContext(ctx).Model(&hostModel{}).Where("account = ?", account)

	if len(filter.Tags) > 0 {
		// jsonb containment over an array is superset matching, which is
		// exactly the conjunctive tag filter.
		tagsJSON, err := json.Marshal(filter.Tags)
		if err != nil {
			return nil, 0, err
		}
		q = q.Where("tags @> ?", string(tagsJSON))
	} else if filter.DisplayName != "" {
		q = q.Where("display_name ILIKE ?", "%"+escapeLike(filter.DisplayName)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateStoreError(err)
	}

	var models []hostModel
	err := q.Order("id").Offset(page.offset()).Limit(page.Size).Find(&models).Error
	if err != nil {
		return nil, 0, translateStoreError(err)
	}
	hosts, err := toDomainSlice(models)
	if err != nil {
		return nil, 0, err
	}
	return hosts, total, nil
}

func (s *PGStore) Create(ctx context.Context, h *Host) error {
	model, err := modelFromHost(h)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateStoreError(err)
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, h *Host) error {
	model, err := modelFromHost(h)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Save(model)
	if res.Error != nil {
		return translateStoreError(res.Error)
	}
	return nil
}

// MutateHost locks the row for the duration of the read-modify-write so
// two overlapping reconciliations cannot lose updates.
func (s *PGStore) MutateHost(ctx context.Context, account string, id uuid.UUID, fn func(*Host) error) (*Host, error) {
	var out *Host
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model hostModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account = ? AND id = ?", account, id).
			First(&model).Error
		if err != nil {
			return translateStoreError(err)
		}

		h, err := model.toDomain()
		if err != nil {
			return err
		}
		if err := fn(h); err != nil {
			return err
		}

		updated, err := modelFromHost(h)
		if err != nil {
			return err
		}
		if err := tx.Save(updated).Error; err != nil {
			return translateStoreError(err)
		}
		out = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PGStore{db: tx})
	})
}

func toDomainSlice(models []hostModel) ([]Host, error) {
	hosts := make([]Host, 0, len(models))
	for _, m := range models {
		h, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, *h)
	}
	return hosts, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func translateStoreError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrHostNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrConflict
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", ErrTransient, pgErr.Message)
		}
	}
	return err
}
