package postgres

import (
	"time"

	"gorm.io/datatypes"
)

/*
 * 'RoundEvent' is an outbox row. It is written in the same transaction as
 * the state change it describes and relayed to subscribers afterwards.
 */
type RoundEvent struct {
	ID          string         `gorm:"primaryKey;size:36"`
	GameID      uint           `gorm:"not null;index"`
	RoundID     uint           `gorm:"not null;index"`
	Type        string         `gorm:"size:32;not null"`
	Payload     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null;index"`
	PublishedAt *time.Time     `gorm:"index"`
}
