// Package questions resolves the correct option of a game's questions.
package questions

import (
	"Quizrace/apperrors"
	"Quizrace/models/postgres"
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

type Bank interface {
	CorrectAnswer(ctx context.Context, gameID uint, number int) (string, error)
}

type GormBank struct {
	db *gorm.DB
}

func NewGormBank(db *gorm.DB) *GormBank {
	return &GormBank{db: db}
}

func (b *GormBank) CorrectAnswer(ctx context.Context, gameID uint, number int) (string, error) {
	var q postgres.Question
	err := b.db.WithContext(ctx).
		Select("correct_answer").
		Where("game_id = ? AND number = ?", gameID, number).
		Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: question %d of game %d", apperrors.ErrNotFound, number, gameID)
	}
	if err != nil {
		return "", fmt.Errorf("error fetching question %d of game %d: %w", number, gameID, err)
	}
	return q.CorrectAnswer, nil
}

// StaticBank serves answers from memory. Used by tests and the demo seed.
type StaticBank struct {
	mu      sync.RWMutex
	answers map[uint]map[int]string
}

func NewStaticBank() *StaticBank {
	return &StaticBank{answers: make(map[uint]map[int]string)}
}

// Set stores the answer key of a game, question 1 first.
func (b *StaticBank) Set(gameID uint, answers ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := make(map[int]string, len(answers))
	for i, a := range answers {
		m[i+1] = a
	}
	b.answers[gameID] = m
}

func (b *StaticBank) CorrectAnswer(ctx context.Context, gameID uint, number int) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.answers[gameID][number]
	if !ok {
		return "", fmt.Errorf("%w: question %d of game %d", apperrors.ErrNotFound, number, gameID)
	}
	return a, nil
}
