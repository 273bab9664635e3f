package rounds

import (
	"Quizrace/apperrors"
	game_constants "Quizrace/constants/game"
	"Quizrace/models/postgres"
	"Quizrace/utils/logger"
	"context"
	"errors"
	"time"
)

// AdmitWithRetry admits a paid participant, moving it to the game's active
// round when its own round filled up or closed in the meantime. Lost races
// and transient store failures are retried with capped exponential backoff
// until ctx is done.
//
// A nil round with a nil error means the participant was failed or abandoned
// before the payment arrived; a refund_intent is emitted for it instead.
func (c *Controller) AdmitWithRetry(ctx context.Context, participantID uint) (*postgres.Round, error) {
	backoff := game_constants.ADMIT_BACKOFF_BASE
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		round, err := c.admitOnce(ctx, participantID)
		switch {
		case err == nil:
			return round, nil
		case errors.Is(err, apperrors.ErrStaleState), errors.Is(err, apperrors.ErrRoundFull), errors.Is(err, apperrors.ErrRoundClosed):
			logger.Debugf("[ROUNDS] Admission of participant %d raced, retrying in %s (attempt %d): %v", participantID, backoff, attempt, err)
		case errors.Is(err, apperrors.ErrRetryable):
			logger.Warnf("[ROUNDS] Admission of participant %d failed, retrying in %s (attempt %d): %v", participantID, backoff, attempt, err)
		default:
			return nil, err
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff = nextBackoff(backoff)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	return min(d*2, game_constants.ADMIT_BACKOFF_MAX)
}

func (c *Controller) admitOnce(ctx context.Context, participantID uint) (*postgres.Round, error) {
	p, err := c.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, apperrors.Retryable(err)
	}
	if p.AdmittedAt != nil {
		return c.store.GetRound(ctx, p.RoundID)
	}
	if p.PaymentStatus != postgres.PaymentPaid {
		return nil, apperrors.ErrPaymentRequired
	}
	if p.GameStatus == postgres.GameAbandoned || p.GameStatus == postgres.GameFailed {
		logger.Infof("[ROUNDS] Participant %d paid after the game ended (%s: %s), requesting refund", p.ID, p.GameStatus, p.FailureReason)
		return nil, c.RequestRefund(ctx, p.ID, p.FailureReason)
	}

	round, err := c.AdmitPaidParticipant(ctx, p.RoundID, p.ID)
	if !errors.Is(err, apperrors.ErrRoundFull) && !errors.Is(err, apperrors.ErrRoundClosed) {
		return round, err
	}

	next, err := c.GetOrCreateActiveRound(ctx, p.GameID)
	if err != nil {
		return nil, err
	}
	if next.ID != p.RoundID {
		if err := c.store.MoveParticipant(ctx, p, p.Guard(), next.ID); err != nil {
			return nil, apperrors.Retryable(err)
		}
		logger.Infof("[ROUNDS] Moved participant %d to round %d", p.ID, next.ID)
	}
	return c.AdmitPaidParticipant(ctx, next.ID, p.ID)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
