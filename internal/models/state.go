package models

import (
	"time"
)

// DBVersion is bumped whenever the schema changes incompatibly.
const DBVersion = 1

// State is the single-row sync marker. BlockNum is the last block whose
// governance changes have been written.
type State struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false;column:id"`
	BlockNum  int64     `gorm:"not null;column:block_num"`
	BlockID   string    `gorm:"type:char(40);not null;default:'';column:block_id"`
	DBVersion int64     `gorm:"not null;column:db_version"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for State
func (State) TableName() string {
	return "golos_state"
}
