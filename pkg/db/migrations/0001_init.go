package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Host struct {
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

	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();column:created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();column:updated_at"`
}

func (Host) TableName() string { return "hosts" }

// Each canonical identity column gets a partial unique index per account;
// the resolver's no-duplicates invariant and the upsert's create/race
// detection both hang off these.
var canonicalColumns = []string{
	"insights_id",
	"rhel_machine_id",
	"subscription_manager_id",
	"satellite_id",
	"bios_uuid",
	"fqdn",
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(&Host{}); err != nil {
		return err
	}

	for _, column := range canonicalColumns {
		stmt := fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_hosts_account_%s ON hosts (account, %s) WHERE %s IS NOT NULL",
			column, column, column,
		)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_hosts_tags ON hosts USING gin (tags jsonb_path_ops)")
	return err
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(&Host{})
}
