package controllers

import (
	"Quizrace/apperrors"
	"Quizrace/middleware"
	"Quizrace/services/participant"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email string `json:"email" binding:"required"`
}

type answerRequest struct {
	QuestionNumber int    `json:"question_number" binding:"required"`
	Answer         string `json:"answer" binding:"required"`
}

func respondOutcome(c *gin.Context, out participant.Outcome) {
	status := http.StatusOK
	if err := out.Err(); err != nil {
		status = apperrors.HTTPStatus(err)
	}
	c.JSON(status, NewOutcomeView(out))
}

// @Summary Register a participant
// @Description Joins the game's active round. Session and device come from the X-Session-ID / X-Device-Fingerprint headers or the session cookie.
// @Tags participants
// @Accept json
// @Produce json
// @Param game_id path int true "Game ID"
// @Param body body registerRequest true "Registration"
// @Success 201 {object} ParticipantView
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /games/{game_id}/participants [post]
func Register(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID, err := paramID(c, "game_id")
		if err != nil {
			respondError(c, err)
			return
		}
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
			return
		}
		p, err := eng.Register(c.Request.Context(), participant.Registration{
			GameID:   gameID,
			Email:    req.Email,
			Identity: middleware.GetIdentity(c),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, NewParticipantView(p))
	}
}

// @Summary Start playing
// @Description Starts the timer on question 1
// @Tags participants
// @Produce json
// @Param id path int true "Participant ID"
// @Success 200 {object} OutcomeView
// @Failure 402 {object} object{error=string}
// @Failure 403 {object} OutcomeView
// @Failure 409 {object} object{error=string}
// @Router /participants/{id}/start [post]
func Start(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		out, err := eng.Start(c.Request.Context(), id, middleware.GetIdentity(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOutcome(c, out)
	}
}

// @Summary Answer the current question
// @Tags participants
// @Accept json
// @Produce json
// @Param id path int true "Participant ID"
// @Param body body answerRequest true "Answer"
// @Success 200 {object} OutcomeView
// @Failure 402 {object} object{error=string}
// @Failure 403 {object} OutcomeView
// @Failure 409 {object} object{error=string}
// @Failure 410 {object} OutcomeView
// @Failure 422 {object} OutcomeView
// @Router /participants/{id}/answers [post]
func SubmitAnswer(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var req answerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
			return
		}
		out, err := eng.SubmitAnswer(c.Request.Context(), id, req.QuestionNumber, req.Answer, middleware.GetIdentity(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOutcome(c, out)
	}
}

// @Summary Participant state
// @Tags participants
// @Produce json
// @Param id path int true "Participant ID"
// @Success 200 {object} ParticipantView
// @Failure 404 {object} object{error=string}
// @Router /participants/{id} [get]
func GetParticipant(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		p, err := eng.Participant(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewParticipantView(p))
	}
}
