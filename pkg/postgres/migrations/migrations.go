// Package migrations applies sequential schema migrations to the remote
// store. Each migration lives in its own package named after its
// timestamp and runs exactly once; applied names are recorded in the
// migrations table.
package migrations

import (
	"database/sql"
	"fmt"
	"time"

	_202608101200_initialSchema "github.com/nodeledger/rewards-tracker/pkg/postgres/migrations/202608101200_initialSchema"
	_202608141615_rewardEventTimestampIndex "github.com/nodeledger/rewards-tracker/pkg/postgres/migrations/202608141615_rewardEventTimestampIndex"
	_202608220930_trackingStartEpoch "github.com/nodeledger/rewards-tracker/pkg/postgres/migrations/202608220930_trackingStartEpoch"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ISqlMigration interface {
	Up(db *sql.DB, grm *gorm.DB) error
	GetName() string
}

type Migrations struct {
	Name      string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (m *Migrations) TableName() string {
	return "migrations"
}

type Migrator struct {
	Db     *sql.DB
	GDb    *gorm.DB
	Logger *zap.Logger
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger) *Migrator {
	initializeMigrationTable(gDb)
	return &Migrator{
		Db:     db,
		GDb:    gDb,
		Logger: l,
	}
}

func initializeMigrationTable(gDb *gorm.DB) {
	query := `
		create table if not exists migrations (
			name varchar(255) primary key,
			created_at timestamp with time zone default current_timestamp
		)`
	gDb.Exec(query)
}

func (m *Migrator) MigrateAll() error {
	migrations := []ISqlMigration{
		&_202608101200_initialSchema.Migration{},
		&_202608141615_rewardEventTimestampIndex.Migration{},
		&_202608220930_trackingStartEpoch.Migration{},
	}

	for _, migration := range migrations {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration ISqlMigration) error {
	name := migration.GetName()

	var count int64
	if err := m.GDb.Model(&Migrations{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check migration '%s': %w", name, err)
	}
	if count > 0 {
		return nil
	}

	m.Logger.Sugar().Infow("Running migration", zap.String("name", name))
	if err := migration.Up(m.Db, m.GDb); err != nil {
		return fmt.Errorf("failed to run migration '%s': %w", name, err)
	}

	if err := m.GDb.Create(&Migrations{Name: name}).Error; err != nil {
		return fmt.Errorf("failed to record migration '%s': %w", name, err)
	}
	return nil
}
