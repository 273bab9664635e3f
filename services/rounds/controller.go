// Package rounds owns round lifecycle: capacity, fill, successor creation,
// winner resolution and cancellation.
//
// Every mutation runs in a store transaction holding the round row lock;
// paths that also touch the game lock it first. Events are written to the
// outbox in the same transaction and handed to the Dispatcher after commit.
package rounds

import (
	"Quizrace/apperrors"
	game_constants "Quizrace/constants/game"
	"Quizrace/models/events"
	"Quizrace/models/postgres"
	"Quizrace/services/store"
	"Quizrace/services/winner"
	"Quizrace/utils/clock"
	"Quizrace/utils/logger"
	"context"
	"errors"
	"fmt"
)

// Dispatcher delivers committed outbox events to subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, evs []postgres.RoundEvent)
}

type Controller struct {
	store      store.Store
	selector   *winner.Selector
	dispatcher Dispatcher
	now        clock.Func
}

func NewController(st store.Store, sel *winner.Selector, d Dispatcher, now clock.Func) *Controller {
	return &Controller{
		store:      st,
		selector:   sel,
		dispatcher: d,
		now:        now,
	}
}

func (c *Controller) GetRound(ctx context.Context, id uint) (*postgres.Round, error) {
	return c.store.GetRound(ctx, id)
}

func (c *Controller) ListRounds(ctx context.Context, gameID uint) ([]postgres.Round, error) {
	return c.store.ListRounds(ctx, gameID)
}

func (c *Controller) dispatch(ctx context.Context, evs []postgres.RoundEvent) {
	if len(evs) == 0 || c.dispatcher == nil {
		return
	}
	c.dispatcher.Dispatch(ctx, evs)
}

func (c *Controller) emit(tx store.Tx, out *[]postgres.RoundEvent, t events.EventType, r *postgres.Round, payload any) error {
	e, err := events.New(t, r, payload, c.now())
	if err != nil {
		return err
	}
	if err := tx.AppendEvent(&e); err != nil {
		return err
	}
	*out = append(*out, e)
	return nil
}

// GetOrCreateActiveRound returns the game's active round, creating one when
// none exists. An active round already at capacity is closed first.
func (c *Controller) GetOrCreateActiveRound(ctx context.Context, gameID uint) (*postgres.Round, error) {
	var (
		round *postgres.Round
		evs   []postgres.RoundEvent
	)
	err := c.store.InTx(ctx, func(tx store.Tx) error {
		evs = nil
		game, err := tx.LockGame(gameID)
		if err != nil {
			return err
		}
		active, err := tx.ActiveRound(gameID)
		switch {
		case err == nil:
			if active.PaidParticipantCount < game.MaxPlayers {
				round = active
				return nil
			}
			locked, err := tx.LockRound(active.ID)
			if err != nil {
				return err
			}
			if err := c.markFull(tx, locked, &evs); err != nil {
				return err
			}
		case errors.Is(err, apperrors.ErrNotFound):
		default:
			return err
		}
		round, err = c.createNextRound(tx, game, &evs)
		return err
	})
	if err != nil {
		return nil, apperrors.Retryable(err)
	}
	c.dispatch(ctx, evs)
	return round, nil
}

// EnsureActiveRound creates the next round when the game restarts
// automatically and has no active round. It is idempotent: concurrent
// callers serialize on the game lock and only the first one creates.
func (c *Controller) EnsureActiveRound(ctx context.Context, gameID uint) (*postgres.Round, bool, error) {
	var (
		round   *postgres.Round
		created bool
		evs     []postgres.RoundEvent
	)
	err := c.store.InTx(ctx, func(tx store.Tx) error {
		evs, created, round = nil, false, nil
		game, err := tx.LockGame(gameID)
		if err != nil {
			return err
		}
		active, err := tx.ActiveRound(gameID)
		if err == nil {
			round = active
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if !game.AutoRestart {
			return nil
		}
		round, err = c.createNextRound(tx, game, &evs)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, false, apperrors.Retryable(err)
	}
	c.dispatch(ctx, evs)
	return round, created, nil
}

func (c *Controller) createNextRound(tx store.Tx, game *postgres.Game, evs *[]postgres.RoundEvent) (*postgres.Round, error) {
	last, err := tx.MaxRoundNumber(game.ID)
	if err != nil {
		return nil, err
	}
	r := &postgres.Round{
		GameID:      game.ID,
		RoundNumber: last + 1,
		Status:      postgres.RoundActive,
		StartedAt:   c.now(),
	}
	if err := tx.CreateRound(r); err != nil {
		return nil, err
	}
	err = c.emit(tx, evs, events.RoundCreated, r, events.RoundCreatedPayload{
		RoundNumber: r.RoundNumber,
		StartedAt:   r.StartedAt,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("[ROUNDS] Created round %d (#%d) of game %d", r.ID, r.RoundNumber, game.ID)
	return r, nil
}

func (c *Controller) markFull(tx store.Tx, r *postgres.Round, evs *[]postgres.RoundEvent) error {
	now := c.now()
	r.Status = postgres.RoundFull
	r.FullAt = &now
	if err := tx.SaveRound(r); err != nil {
		return err
	}
	logger.Infof("[ROUNDS] Round %d is full with %d paid participants", r.ID, r.PaidParticipantCount)
	return c.emit(tx, evs, events.RoundFull, r, events.RoundFullPayload{
		RoundNumber:          r.RoundNumber,
		PaidParticipantCount: r.PaidParticipantCount,
		FullAt:               now,
	})
}

// AdmitPaidParticipant counts a paid participant against the round's
// capacity. The admission that fills the round marks it full and, for
// auto-restarting games, creates the successor round after commit.
// Admitting the same participant twice is a no-op.
func (c *Controller) AdmitPaidParticipant(ctx context.Context, roundID, participantID uint) (*postgres.Round, error) {
	var (
		round         *postgres.Round
		evs           []postgres.RoundEvent
		needSuccessor bool
	)
	err := c.store.InTx(ctx, func(tx store.Tx) error {
		evs, needSuccessor = nil, false
		r, err := tx.LockRound(roundID)
		if err != nil {
			return err
		}
		p, err := tx.GetParticipant(participantID)
		if err != nil {
			return err
		}
		if p.RoundID != r.ID {
			return fmt.Errorf("%w: participant %d is not in round %d", apperrors.ErrInvalidState, p.ID, r.ID)
		}
		if p.AdmittedAt != nil {
			round = r
			return nil
		}
		if p.PaymentStatus != postgres.PaymentPaid {
			return fmt.Errorf("%w: participant %d has not paid", apperrors.ErrPaymentRequired, p.ID)
		}

		switch r.Status {
		case postgres.RoundCancelled:
			return fmt.Errorf("%w: round %d", apperrors.ErrRoundClosed, r.ID)
		case postgres.RoundFull, postgres.RoundCompleted:
			return fmt.Errorf("%w: round %d", apperrors.ErrRoundFull, r.ID)
		}
		game, err := tx.GetGame(r.GameID)
		if err != nil {
			return err
		}
		if r.PaidParticipantCount >= game.MaxPlayers {
			return fmt.Errorf("%w: round %d", apperrors.ErrRoundFull, r.ID)
		}

		admitted, err := tx.MarkAdmitted(r.ID, p.ID, c.now())
		if err != nil {
			return err
		}
		if !admitted {
			return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, p.ID)
		}
		r.PaidParticipantCount++
		if r.PaidParticipantCount == game.MaxPlayers {
			if err := c.markFull(tx, r, &evs); err != nil {
				return err
			}
			needSuccessor = game.AutoRestart
		} else if err := tx.SaveRound(r); err != nil {
			return err
		}
		if _, err := c.resolve(tx, r, &evs); err != nil {
			return err
		}
		round = r
		return nil
	})
	if err != nil {
		return nil, apperrors.Retryable(err)
	}
	logger.Infof("[ROUNDS] Admitted participant %d into round %d (%d paid)", participantID, round.ID, round.PaidParticipantCount)
	c.dispatch(ctx, evs)

	if needSuccessor {
		// A failure here is repaired by the sweeper.
		if _, _, err := c.EnsureActiveRound(ctx, round.GameID); err != nil {
			logger.Errorf("[ROUNDS-ERROR] Error creating successor of round %d: %v", round.ID, err)
		}
	}
	return round, nil
}

// resolve completes a full round once no admitted participant is still
// playing. It is a no-op for any other round.
func (c *Controller) resolve(tx store.Tx, r *postgres.Round, evs *[]postgres.RoundEvent) (bool, error) {
	if !r.AwaitingWinner() {
		return false, nil
	}
	participants, err := tx.RoundParticipants(r.ID)
	if err != nil {
		return false, err
	}
	for _, p := range participants {
		if p.AdmittedAt != nil && p.PaymentStatus == postgres.PaymentPaid && !p.GameStatus.Terminal() {
			return false, nil
		}
	}

	w, err := c.selector.Select(tx, r)
	if err != nil {
		return false, err
	}
	now := c.now()
	r.Status = postgres.RoundCompleted
	r.CompletedAt = &now
	payload := events.RoundCompletedPayload{RoundNumber: r.RoundNumber, CompletedAt: now}
	if w != nil {
		id := w.ID
		ms := w.TotalTime.Milliseconds()
		r.WinnerParticipantID = &id
		payload.WinnerParticipantID = &id
		payload.WinnerTotalTimeMs = &ms
		logger.Infof("[ROUNDS] Round %d won by participant %d in %s", r.ID, w.ID, *w.TotalTime)
	} else {
		logger.Infof("[ROUNDS] Round %d completed without an eligible winner", r.ID)
	}
	if err := tx.SaveRound(r); err != nil {
		return false, err
	}
	return true, c.emit(tx, evs, events.RoundCompleted, r, payload)
}

// TryComplete resolves the winner of a full round if every admitted
// participant has finished. Safe to call any number of times.
func (c *Controller) TryComplete(ctx context.Context, roundID uint) (bool, error) {
	var (
		completed bool
		evs       []postgres.RoundEvent
	)
	err := c.store.InTx(ctx, func(tx store.Tx) error {
		evs = nil
		r, err := tx.LockRound(roundID)
		if err != nil {
			return err
		}
		completed, err = c.resolve(tx, r, &evs)
		return err
	})
	if err != nil {
		return false, apperrors.Retryable(err)
	}
	c.dispatch(ctx, evs)
	return completed, nil
}

// ReleasePaidParticipant undoes an admission after a refund. Completed rounds
// keep their counts. A full round reopens only while it is still the
// game's latest round and no other round is active.
func (c *Controller) ReleasePaidParticipant(ctx context.Context, roundID, participantID uint) error {
	snapshot, err := c.store.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	var evs []postgres.RoundEvent
	err = c.store.InTx(ctx, func(tx store.Tx) error {
		evs = nil
		game, err := tx.LockGame(snapshot.GameID)
		if err != nil {
			return err
		}
		r, err := tx.LockRound(roundID)
		if err != nil {
			return err
		}
		if r.Status == postgres.RoundCompleted {
			logger.Infof("[ROUNDS] Round %d already completed, refund of participant %d leaves counts unchanged", r.ID, participantID)
			return nil
		}
		released, err := tx.ClearAdmitted(r.ID, participantID)
		if err != nil || !released {
			return err
		}
		r.PaidParticipantCount--

		if r.Status == postgres.RoundFull && r.PaidParticipantCount < game.MaxPlayers {
			reopen, err := c.isLatestWithoutActive(tx, game.ID, r)
			if err != nil {
				return err
			}
			if reopen {
				r.Status = postgres.RoundActive
				r.FullAt = nil
				logger.Infof("[ROUNDS] Round %d reopened after refund", r.ID)
			}
		}
		if err := tx.SaveRound(r); err != nil {
			return err
		}
		_, err = c.resolve(tx, r, &evs)
		return err
	})
	if err != nil {
		return apperrors.Retryable(err)
	}
	c.dispatch(ctx, evs)
	return nil
}

func (c *Controller) isLatestWithoutActive(tx store.Tx, gameID uint, r *postgres.Round) (bool, error) {
	if _, err := tx.ActiveRound(gameID); err == nil {
		return false, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return false, err
	}
	last, err := tx.MaxRoundNumber(gameID)
	if err != nil {
		return false, err
	}
	return last == r.RoundNumber, nil
}

// CancelRound stops a round that has not completed. Unfinished participants
// are abandoned and every paid participant gets a refund_intent event.
func (c *Controller) CancelRound(ctx context.Context, roundID uint, reason string) (*postgres.Round, error) {
	snapshot, err := c.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	var (
		round *postgres.Round
		evs   []postgres.RoundEvent
		game  *postgres.Game
	)
	err = c.store.InTx(ctx, func(tx store.Tx) error {
		evs = nil
		g, err := tx.LockGame(snapshot.GameID)
		if err != nil {
			return err
		}
		game = g
		r, err := tx.LockRound(roundID)
		if err != nil {
			return err
		}
		switch r.Status {
		case postgres.RoundCancelled:
			round = r
			return nil
		case postgres.RoundCompleted:
			return fmt.Errorf("%w: round %d already completed", apperrors.ErrInvalidState, r.ID)
		}

		now := c.now()
		r.Status = postgres.RoundCancelled
		r.CancelledAt = &now

		participants, err := tx.RoundParticipants(r.ID)
		if err != nil {
			return err
		}
		refunds := 0
		for i := range participants {
			p := &participants[i]
			if p.PaymentStatus == postgres.PaymentPaid {
				err := c.emit(tx, &evs, events.RefundIntent, r, events.RefundIntentPayload{
					ParticipantID: p.ID,
					Email:         p.Email,
					Amount:        g.EntryFee,
					Currency:      g.Currency,
					Reason:        reason,
				})
				if err != nil {
					return err
				}
				refunds++
			}
			if !p.GameStatus.Terminal() {
				guard := p.Guard()
				p.GameStatus = postgres.GameAbandoned
				p.FailureReason = game_constants.REASON_ROUND_CANCELED
				p.TotalTime = nil
				if err := tx.UpdateParticipant(p, guard); err != nil {
					return err
				}
			}
		}
		if err := tx.SaveRound(r); err != nil {
			return err
		}
		if err := c.emit(tx, &evs, events.RoundCancelled, r, events.RoundCancelledPayload{
			RoundNumber: r.RoundNumber,
			Reason:      reason,
			Refunds:     refunds,
			CancelledAt: now,
		}); err != nil {
			return err
		}
		logger.Infof("[ROUNDS] Cancelled round %d (%s), %d refunds requested", r.ID, reason, refunds)
		round = r
		return nil
	})
	if err != nil {
		return nil, apperrors.Retryable(err)
	}
	c.dispatch(ctx, evs)

	if game.AutoRestart {
		if _, _, err := c.EnsureActiveRound(ctx, game.ID); err != nil {
			logger.Errorf("[ROUNDS-ERROR] Error replacing cancelled round %d: %v", roundID, err)
		}
	}
	return round, nil
}

// RequestRefund emits a refund_intent for a paid participant that will never
// be admitted. Participants already paid when their round was cancelled got
// theirs from CancelRound.
func (c *Controller) RequestRefund(ctx context.Context, participantID uint, reason string) error {
	var evs []postgres.RoundEvent
	err := c.store.InTx(ctx, func(tx store.Tx) error {
		evs = nil
		p, err := tx.GetParticipant(participantID)
		if err != nil {
			return err
		}
		r, err := tx.LockRound(p.RoundID)
		if err != nil {
			return err
		}
		if p.PaymentStatus != postgres.PaymentPaid || refundedOnCancel(r, p) {
			return nil
		}
		g, err := tx.GetGame(r.GameID)
		if err != nil {
			return err
		}
		return c.emit(tx, &evs, events.RefundIntent, r, events.RefundIntentPayload{
			ParticipantID: p.ID,
			Email:         p.Email,
			Amount:        g.EntryFee,
			Currency:      g.Currency,
			Reason:        reason,
		})
	})
	if err != nil {
		return apperrors.Retryable(err)
	}
	c.dispatch(ctx, evs)
	return nil
}

func refundedOnCancel(r *postgres.Round, p *postgres.Participant) bool {
	if r.Status != postgres.RoundCancelled || r.CancelledAt == nil {
		return false
	}
	return p.PaidAt == nil || !p.PaidAt.After(*r.CancelledAt)
}
