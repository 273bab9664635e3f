package postgres

import (
	"Quizrace/apperrors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

/*
 * 'Game' is the configuration a sequence of rounds is played under.
 * It is read-only for the round engine; admins create it out of band.
 */
type Game struct {
	ID                     uint            `gorm:"primaryKey"`
	Name                   string          `gorm:"size:100;not null"`
	MaxPlayers             int             `gorm:"not null"`
	TotalQuestions         int             `gorm:"not null"`
	FreeQuestions          int             `gorm:"not null;default:0"`
	QuestionTimeoutSeconds int             `gorm:"not null"`
	AutoRestart            bool            `gorm:"not null;default:true"`
	EntryFee               decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	Currency               string          `gorm:"size:3;not null;default:'EUR'"`
	CreatedAt              time.Time       `gorm:"default:CURRENT_TIMESTAMP"`
}

// Validate checks the configuration invariants of a game.
func (g *Game) Validate() error {
	switch {
	case g.MaxPlayers < 1:
		return fmt.Errorf("%w: max_players must be at least 1", apperrors.ErrValidation)
	case g.TotalQuestions < 1:
		return fmt.Errorf("%w: total_questions must be at least 1", apperrors.ErrValidation)
	case g.FreeQuestions < 0 || g.FreeQuestions >= g.TotalQuestions:
		return fmt.Errorf("%w: free_questions must be within [0, total_questions)", apperrors.ErrValidation)
	case g.QuestionTimeoutSeconds < 1:
		return fmt.Errorf("%w: question_timeout_seconds must be positive", apperrors.ErrValidation)
	case g.EntryFee.IsNegative():
		return fmt.Errorf("%w: entry_fee must not be negative", apperrors.ErrValidation)
	}
	return nil
}

func (g *Game) BeforeSave(tx *gorm.DB) error {
	return g.Validate()
}

func (g *Game) QuestionTimeout() time.Duration {
	return time.Duration(g.QuestionTimeoutSeconds) * time.Second
}

// IsFree reports whether question n is answered before the paywall.
func (g *Game) IsFree(n int) bool {
	return n <= g.FreeQuestions
}
