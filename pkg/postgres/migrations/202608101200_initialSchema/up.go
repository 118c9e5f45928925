package _202608101200_initialSchema

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`create table if not exists trackers (
			id varchar(64) primary key,
			withdrawal_address varchar(64) not null,
			fee_recipient_address varchar(64),
			validator_pubkey varchar(128),
			country varchar(8),
			tax_rate_percent numeric not null default 0,
			currency varchar(8) not null default 'eur',
			last_fetched_timestamp bigint not null default 0,
			last_synced_epoch bigint,
			created_at timestamp with time zone,
			updated_at timestamp with time zone
		);`,
		`create table if not exists reward_events (
			tracker_id varchar(64) not null,
			hash varchar(128) not null,
			timestamp_sec bigint not null,
			amount numeric not null,
			source_kind varchar(32) not null,
			status varchar(16) not null default 'unpaid',
			settlement_ref varchar(128),
			created_at timestamp with time zone,
			updated_at timestamp with time zone,
			primary key (tracker_id, hash),
			constraint reward_events_tracker_id_fkey foreign key (tracker_id) references trackers(id) on delete cascade
		);`,
		`create table if not exists price_entries (
			date_key varchar(10) not null,
			currency varchar(8) not null,
			fiat_per_unit numeric not null,
			created_at timestamp with time zone,
			primary key (date_key, currency)
		);`,
	}
	for _, query := range queries {
		if err := grm.Exec(query).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202608101200_initialSchema"
}
