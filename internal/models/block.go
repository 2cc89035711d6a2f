package models

import (
	"time"
)

// Block is one applied block in the sync log.
type Block struct {
	Num       int64     `gorm:"primaryKey;autoIncrement:false;column:num"`
	Hash      string    `gorm:"type:char(40);not null;uniqueIndex:golos_blocks_ux1"`
	Prev      string    `gorm:"type:char(40);not null;column:prev"`
	Witness   string    `gorm:"type:varchar(16);not null;column:witness"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Block
func (Block) TableName() string {
	return "golos_blocks"
}
