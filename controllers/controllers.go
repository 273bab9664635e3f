package controllers

import (
	"Quizrace/apperrors"
	"Quizrace/models/events"
	"Quizrace/models/postgres"
	"Quizrace/services/fraud"
	"Quizrace/services/participant"
	"Quizrace/utils/logger"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Engine is what the handlers need from the round engine.
type Engine interface {
	Register(ctx context.Context, reg participant.Registration) (*postgres.Participant, error)
	Start(ctx context.Context, participantID uint, id fraud.Identity) (participant.Outcome, error)
	SubmitAnswer(ctx context.Context, participantID uint, questionNumber int, answer string, id fraud.Identity) (participant.Outcome, error)
	ConfirmPayment(ctx context.Context, participantID uint) (*postgres.Participant, *postgres.Round, error)
	FailPayment(ctx context.Context, participantID uint) (*postgres.Participant, error)
	RefundPayment(ctx context.Context, participantID uint) (*postgres.Participant, error)
	CancelRound(ctx context.Context, roundID uint, reason string) (*postgres.Round, error)
	Round(ctx context.Context, roundID uint) (*postgres.Round, error)
	Rounds(ctx context.Context, gameID uint) ([]postgres.Round, error)
	Participant(ctx context.Context, participantID uint) (*postgres.Participant, error)
}

// History serves the recent events of a game.
type History interface {
	RecentRoundEvents(ctx context.Context, gameID uint, n int64) ([]events.Envelope, error)
}

func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("[API-ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s", apperrors.ErrValidation, name)
	}
	return uint(id), nil
}
