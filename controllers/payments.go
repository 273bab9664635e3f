package controllers

import (
	"Quizrace/apperrors"
	"Quizrace/models/postgres"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type paymentWebhook struct {
	ParticipantID uint                   `json:"participant_id" binding:"required"`
	Status        postgres.PaymentStatus `json:"status" binding:"required"`
}

// @Summary Payment provider callback
// @Description Records paid, failed or refunded. A paid participant is admitted into a round. Deliveries may repeat.
// @Tags payments
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer HS256 token"
// @Param body body paymentWebhook true "Payment status"
// @Success 200 {object} object{participant=ParticipantView,round=RoundView}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /payments/webhook [post]
func PaymentWebhook(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req paymentWebhook
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
			return
		}
		ctx := c.Request.Context()

		var (
			p     *postgres.Participant
			round *postgres.Round
			err   error
		)
		switch req.Status {
		case postgres.PaymentPaid:
			p, round, err = eng.ConfirmPayment(ctx, req.ParticipantID)
		case postgres.PaymentFailed:
			p, err = eng.FailPayment(ctx, req.ParticipantID)
		case postgres.PaymentRefunded:
			p, err = eng.RefundPayment(ctx, req.ParticipantID)
		default:
			err = fmt.Errorf("%w: unknown payment status %q", apperrors.ErrValidation, req.Status)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		resp := gin.H{"participant": NewParticipantView(p)}
		if round != nil {
			resp["round"] = NewRoundView(round)
		}
		c.JSON(http.StatusOK, resp)
	}
}
