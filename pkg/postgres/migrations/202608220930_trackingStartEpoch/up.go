package _202608220930_trackingStartEpoch

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	query := `alter table trackers add column if not exists tracking_start_epoch bigint not null default 0;`
	if err := grm.Exec(query).Error; err != nil {
		return err
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202608220930_trackingStartEpoch"
}
