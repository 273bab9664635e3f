// Package engine wires the round and participant services behind the API the
// HTTP layer uses.
package engine

import (
	"Quizrace/models/postgres"
	"Quizrace/services/fraud"
	"Quizrace/services/notify"
	"Quizrace/services/participant"
	"Quizrace/services/questions"
	"Quizrace/services/rounds"
	"Quizrace/services/store"
	"Quizrace/services/winner"
	"Quizrace/sync"
	"Quizrace/utils/clock"
	"Quizrace/utils/logger"
	"context"
	"fmt"
)

type Options struct {
	Store store.Store
	Bank  questions.Bank
	// Without a Publisher events stay in the outbox.
	Publisher notify.Publisher
	Policy    fraud.Policy
	Now       clock.Func
}

type Engine struct {
	store        store.Store
	rounds       *rounds.Controller
	participants *participant.Machine
	relay        *sync.SyncManager
	now          clock.Func
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Bank == nil {
		return nil, fmt.Errorf("engine needs a store and a question bank")
	}
	if opts.Now == nil {
		opts.Now = clock.System
	}
	if opts.Policy.Threshold == 0 {
		opts.Policy = fraud.DefaultPolicy()
	}

	relay := sync.NewSyncManager(opts.Store, opts.Publisher, opts.Now)
	rc := rounds.NewController(opts.Store, winner.NewSelector(), relay, opts.Now)
	m := participant.NewMachine(opts.Store, opts.Bank, fraud.NewScorer(opts.Policy), rc, opts.Now)
	return &Engine{
		store:        opts.Store,
		rounds:       rc,
		participants: m,
		relay:        relay,
		now:          opts.Now,
	}, nil
}

func (e *Engine) Register(ctx context.Context, reg participant.Registration) (*postgres.Participant, error) {
	return e.participants.Register(ctx, reg)
}

func (e *Engine) Start(ctx context.Context, participantID uint, id fraud.Identity) (participant.Outcome, error) {
	return e.participants.Start(ctx, participantID, id)
}

func (e *Engine) SubmitAnswer(ctx context.Context, participantID uint, questionNumber int, answer string, id fraud.Identity) (participant.Outcome, error) {
	return e.participants.SubmitAnswer(ctx, participantID, questionNumber, answer, id)
}

// ConfirmPayment records the payment and admits the participant into a
// round. Replayed confirmations retry an admission that did not finish.
func (e *Engine) ConfirmPayment(ctx context.Context, participantID uint) (*postgres.Participant, *postgres.Round, error) {
	p, replay, err := e.participants.MarkPaid(ctx, participantID)
	if err != nil {
		return nil, nil, err
	}
	if replay {
		logger.Infof("[PAYMENT] Duplicate confirmation for participant %d", p.ID)
	}
	round, err := e.rounds.AdmitWithRetry(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	p, err = e.participants.Get(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, round, nil
}

func (e *Engine) FailPayment(ctx context.Context, participantID uint) (*postgres.Participant, error) {
	return e.participants.MarkPaymentFailed(ctx, participantID)
}

func (e *Engine) RefundPayment(ctx context.Context, participantID uint) (*postgres.Participant, error) {
	return e.participants.MarkRefunded(ctx, participantID)
}

func (e *Engine) CancelRound(ctx context.Context, roundID uint, reason string) (*postgres.Round, error) {
	return e.rounds.CancelRound(ctx, roundID, reason)
}

func (e *Engine) Round(ctx context.Context, roundID uint) (*postgres.Round, error) {
	return e.rounds.GetRound(ctx, roundID)
}

func (e *Engine) Rounds(ctx context.Context, gameID uint) ([]postgres.Round, error) {
	if _, err := e.store.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	return e.rounds.ListRounds(ctx, gameID)
}

// ActiveRound returns the round new registrations join.
func (e *Engine) ActiveRound(ctx context.Context, gameID uint) (*postgres.Round, error) {
	return e.rounds.GetOrCreateActiveRound(ctx, gameID)
}

func (e *Engine) Participant(ctx context.Context, participantID uint) (*postgres.Participant, error) {
	return e.participants.Get(ctx, participantID)
}
