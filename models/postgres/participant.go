package postgres

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type GameStatus string

const (
	GameNotStarted GameStatus = "not_started"
	GameInProgress GameStatus = "in_progress"
	GameCompleted  GameStatus = "completed"
	GameFailed     GameStatus = "failed"
	GameAbandoned  GameStatus = "abandoned"
)

// Terminal statuses accept no further transitions.
func (s GameStatus) Terminal() bool {
	return s == GameCompleted || s == GameFailed || s == GameAbandoned
}

/*
 * 'Participant' is one entry of a player in one round.
 * Timer state lives on the row so any instance can pick it up.
 * Durations are stored as nanoseconds (BIGINT).
 */
type Participant struct {
	ID                uint          `gorm:"primaryKey"`
	RoundID           uint          `gorm:"not null;index"`
	GameID            uint          `gorm:"not null;index"`
	Email             string        `gorm:"size:100;not null"`
	DeviceFingerprint string        `gorm:"size:128;not null"`
	SessionID         string        `gorm:"size:64;not null"`
	PaymentStatus     PaymentStatus `gorm:"size:16;not null;default:'pending'"`
	GameStatus        GameStatus    `gorm:"size:16;not null;default:'not_started';index"`
	FailureReason     string        `gorm:"size:32"`
	CurrentQuestion   int           `gorm:"not null;default:1"`

	StartedAt         *time.Time
	QuestionStartedAt *time.Time
	PausedAt          *time.Time
	PausedTotal       time.Duration `gorm:"not null;default:0"`
	PrePaymentTime    time.Duration `gorm:"not null;default:0"`
	PostPaymentTime   time.Duration `gorm:"not null;default:0"`
	TotalTime         *time.Duration

	IsWinner     bool           `gorm:"not null;default:false"`
	IsFraudulent bool           `gorm:"not null;default:false"`
	FraudScore   float64        `gorm:"not null;default:0"`
	FraudSignals datatypes.JSON `gorm:"type:jsonb"`
	Answers      datatypes.JSON `gorm:"type:jsonb"`

	PaidAt      *time.Time
	AdmittedAt  *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EligibleForWin mirrors the winner query predicate. Only participants
// admitted into the round's paid capacity can win it.
func (p *Participant) EligibleForWin() bool {
	return p.AdmittedAt != nil &&
		p.PaymentStatus == PaymentPaid &&
		p.GameStatus == GameCompleted &&
		!p.IsFraudulent &&
		p.TotalTime != nil
}

// FinishedBefore orders by total time, earlier id first on ties.
func (p *Participant) FinishedBefore(other *Participant) bool {
	if *p.TotalTime != *other.TotalTime {
		return *p.TotalTime < *other.TotalTime
	}
	return p.ID < other.ID
}

// Guard is the snapshot a conditional participant update is checked against.
type Guard struct {
	RoundID         uint
	CurrentQuestion int
	GameStatus      GameStatus
	PaymentStatus   PaymentStatus
}

func (p *Participant) Guard() Guard {
	return Guard{
		RoundID:         p.RoundID,
		CurrentQuestion: p.CurrentQuestion,
		GameStatus:      p.GameStatus,
		PaymentStatus:   p.PaymentStatus,
	}
}

// Matches reports whether the row still holds the guarded values.
func (g Guard) Matches(p *Participant) bool {
	return g == p.Guard()
}
