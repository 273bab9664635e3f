package controllers

import (
	"Quizrace/apperrors"
	game_constants "Quizrace/constants/game"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type cancelRequest struct {
	Reason string `json:"reason"`
}

// @Summary Round state
// @Tags rounds
// @Produce json
// @Param round_id path int true "Round ID"
// @Success 200 {object} RoundView
// @Failure 404 {object} object{error=string}
// @Router /rounds/{round_id} [get]
func GetRound(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramID(c, "round_id")
		if err != nil {
			respondError(c, err)
			return
		}
		r, err := eng.Round(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewRoundView(r))
	}
}

// @Summary Rounds of a game
// @Tags rounds
// @Produce json
// @Param game_id path int true "Game ID"
// @Success 200 {array} RoundView
// @Failure 404 {object} object{error=string}
// @Router /games/{game_id}/rounds [get]
func ListRounds(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID, err := paramID(c, "game_id")
		if err != nil {
			respondError(c, err)
			return
		}
		rounds, err := eng.Rounds(c.Request.Context(), gameID)
		if err != nil {
			respondError(c, err)
			return
		}
		out := make([]RoundView, 0, len(rounds))
		for i := range rounds {
			out = append(out, NewRoundView(&rounds[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary Cancel a round
// @Description Abandons unfinished participants and requests refunds for paid ones. Requires X-Admin-Key.
// @Tags rounds
// @Accept json
// @Produce json
// @Param round_id path int true "Round ID"
// @Param body body cancelRequest false "Reason"
// @Success 200 {object} RoundView
// @Failure 401 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /admin/rounds/{round_id}/cancel [post]
func CancelRound(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramID(c, "round_id")
		if err != nil {
			respondError(c, err)
			return
		}
		var req cancelRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
				return
			}
		}
		if req.Reason == "" {
			req.Reason = "operator"
		}
		r, err := eng.CancelRound(c.Request.Context(), id, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewRoundView(r))
	}
}

// @Summary Recent events of a game
// @Tags rounds
// @Produce json
// @Param game_id path int true "Game ID"
// @Param limit query int false "How many events (max 200)"
// @Success 200 {array} events.Envelope
// @Failure 503 {object} object{error=string}
// @Router /games/{game_id}/events [get]
func GameEvents(history History) gin.HandlerFunc {
	return func(c *gin.Context) {
		if history == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event history unavailable"})
			return
		}
		gameID, err := paramID(c, "game_id")
		if err != nil {
			respondError(c, err)
			return
		}
		limit := int64(50)
		if raw := c.Query("limit"); raw != "" {
			limit, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || limit < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
		}
		limit = min(limit, game_constants.EVENT_HISTORY_LEN)
		evs, err := history.RecentRoundEvents(c.Request.Context(), gameID, limit)
		if err != nil {
			respondError(c, apperrors.Retryable(err))
			return
		}
		c.JSON(http.StatusOK, evs)
	}
}
