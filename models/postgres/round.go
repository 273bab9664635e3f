package postgres

import "time"

type RoundStatus string

const (
	RoundActive    RoundStatus = "active"
	RoundFull      RoundStatus = "full"
	RoundCompleted RoundStatus = "completed"
	RoundCancelled RoundStatus = "cancelled"
)

/*
 * 'Round' is one capacity-bounded competition instance of a Game.
 * A partial unique index keeps at most one active round per game.
 */
type Round struct {
	ID                   uint        `gorm:"primaryKey"`
	GameID               uint        `gorm:"not null;uniqueIndex:idx_rounds_game_number;uniqueIndex:idx_rounds_one_active,where:status = 'active'"`
	RoundNumber          int         `gorm:"not null;uniqueIndex:idx_rounds_game_number"`
	Status               RoundStatus `gorm:"size:16;not null;default:'active';index"`
	ParticipantCount     int         `gorm:"not null;default:0"`
	PaidParticipantCount int         `gorm:"not null;default:0"`
	StartedAt            time.Time   `gorm:"not null"`
	FullAt               *time.Time
	CompletedAt          *time.Time
	CancelledAt          *time.Time
	WinnerParticipantID  *uint
}

// Terminal rounds never change again.
func (r *Round) Terminal() bool {
	return r.Status == RoundCompleted || r.Status == RoundCancelled
}

// AwaitingWinner is true for a full round whose winner has not been resolved.
func (r *Round) AwaitingWinner() bool {
	return r.Status == RoundFull && r.WinnerParticipantID == nil
}
