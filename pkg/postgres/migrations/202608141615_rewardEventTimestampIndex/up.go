package _202608141615_rewardEventTimestampIndex

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	query := `create index if not exists idx_reward_events_timestamp_sec on reward_events(tracker_id, timestamp_sec desc);`
	if err := grm.Exec(query).Error; err != nil {
		return err
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202608141615_rewardEventTimestampIndex"
}
