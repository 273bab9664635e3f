package engine

import (
	game_constants "Quizrace/constants/game"
	"Quizrace/models/postgres"
	"Quizrace/utils/logger"
	"context"
	"errors"
	"fmt"
	"time"
)

type SweepReport struct {
	Completed int
	Abandoned int
	Created   int
	Relayed   int
}

// Sweep repairs what request paths leave behind after crashes or lost
// callbacks: full rounds whose last participant finished without resolving
// them, participants that walked away, auto-restart games without an active
// round, and outbox events that were never delivered. Every step is
// idempotent; a failing step does not stop the others.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	var (
		report SweepReport
		errs   []error
	)
	now := e.now()

	pending, err := e.store.RoundsAwaitingWinner(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("error listing full rounds: %w", err))
	}
	for _, r := range pending {
		done, err := e.rounds.TryComplete(ctx, r.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			report.Completed++
		}
	}

	idle, err := e.store.IdleParticipants(ctx, now.Add(-game_constants.ABANDON_GRACE))
	if err != nil {
		errs = append(errs, fmt.Errorf("error listing idle participants: %w", err))
	}
	for i := range idle {
		p := &idle[i]
		stale, err := e.isStale(ctx, p, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !stale {
			continue
		}
		if _, err := e.participants.Abandon(ctx, p.ID, game_constants.REASON_IDLE); err != nil {
			errs = append(errs, err)
			continue
		}
		report.Abandoned++
	}

	games, err := e.store.GamesWithoutActiveRound(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("error listing games: %w", err))
	}
	for _, g := range games {
		_, created, err := e.rounds.EnsureActiveRound(ctx, g.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if created {
			report.Created++
		}
	}

	relayed, err := e.relay.SyncPendingEvents(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	report.Relayed = relayed

	if report != (SweepReport{}) {
		logger.Infof("[SWEEPER] completed=%d abandoned=%d created=%d relayed=%d",
			report.Completed, report.Abandoned, report.Created, report.Relayed)
	}
	return report, errors.Join(errs...)
}

// isStale reports whether a non-terminal participant stopped playing. A
// running question is stale once its deadline plus grace passed; a
// participant on the paywall or not yet started is stale after IDLE_LIMIT.
func (e *Engine) isStale(ctx context.Context, p *postgres.Participant, now time.Time) (bool, error) {
	if p.GameStatus == postgres.GameInProgress && p.PausedAt == nil {
		deadline, running, err := e.participants.Deadline(ctx, p)
		if err != nil {
			return false, err
		}
		if running {
			return now.After(deadline.Add(game_constants.ABANDON_GRACE)), nil
		}
	}
	return now.Sub(p.UpdatedAt) > game_constants.IDLE_LIMIT, nil
}
