// Package participant drives a participant through registration, play and
// payment. Every write is a conditional update on the state the request
// read, so two concurrent requests for the same participant cannot both
// advance it.
package participant

import (
	"Quizrace/apperrors"
	game_constants "Quizrace/constants/game"
	"Quizrace/models/postgres"
	"Quizrace/services/fraud"
	"Quizrace/services/questions"
	"Quizrace/services/store"
	"Quizrace/services/timing"
	"Quizrace/utils/clock"
	"Quizrace/utils/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Rounds is the part of the round controller the machine reports to.
type Rounds interface {
	GetOrCreateActiveRound(ctx context.Context, gameID uint) (*postgres.Round, error)
	TryComplete(ctx context.Context, roundID uint) (bool, error)
	ReleasePaidParticipant(ctx context.Context, roundID, participantID uint) error
}

type Machine struct {
	store  store.Store
	bank   questions.Bank
	scorer *fraud.Scorer
	rounds Rounds
	now    clock.Func
}

func NewMachine(st store.Store, bank questions.Bank, scorer *fraud.Scorer, rounds Rounds, now clock.Func) *Machine {
	return &Machine{
		store:  st,
		bank:   bank,
		scorer: scorer,
		rounds: rounds,
		now:    now,
	}
}

type Registration struct {
	GameID   uint
	Email    string
	Identity fraud.Identity
}

func (m *Machine) Get(ctx context.Context, id uint) (*postgres.Participant, error) {
	return m.store.GetParticipant(ctx, id)
}

// Register places a new participant in the game's active round.
func (m *Machine) Register(ctx context.Context, reg Registration) (*postgres.Participant, error) {
	email := strings.TrimSpace(reg.Email)
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, fmt.Errorf("%w: invalid email", apperrors.ErrValidation)
	case reg.Identity.SessionID == "":
		return nil, fmt.Errorf("%w: missing session", apperrors.ErrValidation)
	case reg.Identity.DeviceFingerprint == "":
		return nil, fmt.Errorf("%w: missing device fingerprint", apperrors.ErrValidation)
	}

	game, err := m.store.GetGame(ctx, reg.GameID)
	if err != nil {
		return nil, err
	}
	round, err := m.rounds.GetOrCreateActiveRound(ctx, game.ID)
	if err != nil {
		return nil, err
	}

	p := &postgres.Participant{
		RoundID:           round.ID,
		GameID:            game.ID,
		Email:             email,
		DeviceFingerprint: reg.Identity.DeviceFingerprint,
		SessionID:         reg.Identity.SessionID,
		PaymentStatus:     postgres.PaymentPending,
		GameStatus:        postgres.GameNotStarted,
		CurrentQuestion:   1,
		FraudSignals:      datatypes.JSON("[]"),
		Answers:           datatypes.JSON("[]"),
	}
	if err := m.store.CreateParticipant(ctx, p); err != nil {
		return nil, apperrors.Retryable(err)
	}
	logger.Infof("[PARTICIPANT] Registered participant %d in round %d of game %d", p.ID, round.ID, game.ID)
	return p, nil
}

// Start begins the timer. Games without free questions require payment first.
func (m *Machine) Start(ctx context.Context, id uint, presented fraud.Identity) (Outcome, error) {
	p, err := m.store.GetParticipant(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if p.GameStatus != postgres.GameNotStarted {
		return Outcome{}, fmt.Errorf("%w: participant %d is %s", apperrors.ErrInvalidState, p.ID, p.GameStatus)
	}
	guard := p.Guard()
	now := m.now()

	if forbidden, err := m.checkIdentity(p, presented, now); err != nil {
		return Outcome{}, err
	} else if forbidden {
		return m.persistTerminal(ctx, p, guard, Forbidden, nil)
	}

	switch p.PaymentStatus {
	case postgres.PaymentFailed, postgres.PaymentRefunded:
		return Outcome{}, fmt.Errorf("%w: payment %s", apperrors.ErrInvalidState, p.PaymentStatus)
	}
	game, err := m.store.GetGame(ctx, p.GameID)
	if err != nil {
		return Outcome{}, err
	}
	if game.FreeQuestions == 0 && p.PaymentStatus != postgres.PaymentPaid {
		return Outcome{}, fmt.Errorf("%w: game %d has no free questions", apperrors.ErrPaymentRequired, game.ID)
	}

	state, err := timingState(p)
	if err != nil {
		return Outcome{}, err
	}
	tracker := timing.NewTracker(state, game.FreeQuestions, game.QuestionTimeout(), func() time.Time { return now })
	if err := tracker.Start(); err != nil {
		return Outcome{}, err
	}
	if err := applyTiming(p, state); err != nil {
		return Outcome{}, err
	}
	p.GameStatus = postgres.GameInProgress

	if err := m.store.UpdateParticipant(ctx, p, guard); err != nil {
		return Outcome{}, apperrors.Retryable(err)
	}
	logger.Infof("[PARTICIPANT] Participant %d started", p.ID)
	return Outcome{Kind: Accepted, Participant: p}, nil
}

// SubmitAnswer validates and records an answer to the current question.
func (m *Machine) SubmitAnswer(ctx context.Context, id uint, questionNumber int, answer string, presented fraud.Identity) (Outcome, error) {
	answer = strings.ToUpper(strings.TrimSpace(answer))
	if !slices.Contains(game_constants.ValidAnswers, answer) {
		return Outcome{}, fmt.Errorf("%w: answer must be one of %v", apperrors.ErrValidation, game_constants.ValidAnswers)
	}
	if questionNumber < 1 {
		return Outcome{}, fmt.Errorf("%w: question number must be positive", apperrors.ErrValidation)
	}

	p, err := m.store.GetParticipant(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if p.GameStatus != postgres.GameInProgress {
		return Outcome{}, fmt.Errorf("%w: participant %d is %s", apperrors.ErrInvalidState, p.ID, p.GameStatus)
	}
	guard := p.Guard()
	now := m.now()

	if forbidden, err := m.checkIdentity(p, presented, now); err != nil {
		return Outcome{}, err
	} else if forbidden {
		return m.persistTerminal(ctx, p, guard, Forbidden, nil)
	}

	game, err := m.store.GetGame(ctx, p.GameID)
	if err != nil {
		return Outcome{}, err
	}
	if questionNumber > game.TotalQuestions {
		return Outcome{}, fmt.Errorf("%w: game has %d questions", apperrors.ErrValidation, game.TotalQuestions)
	}
	if questionNumber != p.CurrentQuestion {
		return Outcome{}, fmt.Errorf("%w: current question is %d", apperrors.ErrStaleState, p.CurrentQuestion)
	}
	if !game.IsFree(questionNumber) && p.PaymentStatus != postgres.PaymentPaid {
		return Outcome{}, fmt.Errorf("%w: question %d", apperrors.ErrPaymentRequired, questionNumber)
	}
	correct, err := m.bank.CorrectAnswer(ctx, game.ID, questionNumber)
	if err != nil {
		return Outcome{}, apperrors.Retryable(err)
	}

	state, err := timingState(p)
	if err != nil {
		return Outcome{}, err
	}
	tracker := timing.NewTracker(state, game.FreeQuestions, game.QuestionTimeout(), func() time.Time { return now })
	rec, err := tracker.RecordAnswer(questionNumber, answer, correct)
	switch {
	case errors.Is(err, apperrors.ErrTimeout):
		return m.finishFailed(ctx, p, guard, state, game_constants.REASON_TIMEOUT, TimedOut, &rec)
	case errors.Is(err, apperrors.ErrWrongAnswer):
		return m.finishFailed(ctx, p, guard, state, game_constants.REASON_WRONG_ANSWER, WrongAnswer, &rec)
	case err != nil:
		return Outcome{}, err
	}

	if sig, ok := m.scorer.CheckLatency(questionNumber, rec.TimeTaken, now); ok {
		if err := m.addSignals(p, sig); err != nil {
			return Outcome{}, err
		}
		if p.IsFraudulent {
			return m.finishFailed(ctx, p, guard, state, game_constants.REASON_FRAUD, Fraudulent, &rec)
		}
	}

	p.CurrentQuestion = questionNumber + 1
	kind := Accepted
	switch {
	case questionNumber == game.TotalQuestions:
		total := tracker.TotalTime()
		p.TotalTime = &total
		p.GameStatus = postgres.GameCompleted
		p.CompletedAt = &now
		kind = Completed
	case questionNumber == game.FreeQuestions && p.PaymentStatus != postgres.PaymentPaid:
		if err := tracker.Pause(); err != nil {
			return Outcome{}, err
		}
		kind = AwaitingPayment
	}
	if err := applyTiming(p, state); err != nil {
		return Outcome{}, err
	}
	if err := m.store.UpdateParticipant(ctx, p, guard); err != nil {
		return Outcome{}, apperrors.Retryable(err)
	}

	if kind == Completed {
		logger.Infof("[PARTICIPANT] Participant %d completed in %s", p.ID, *p.TotalTime)
		m.afterTerminal(ctx, p)
	}
	return Outcome{Kind: kind, Participant: p, Answer: &rec}, nil
}

func (m *Machine) finishFailed(ctx context.Context, p *postgres.Participant, guard postgres.Guard, state *timing.State, reason string, kind OutcomeKind, rec *timing.AnswerRecord) (Outcome, error) {
	if err := applyTiming(p, state); err != nil {
		return Outcome{}, err
	}
	fail(p, reason)
	return m.persistTerminal(ctx, p, guard, kind, rec)
}

func (m *Machine) persistTerminal(ctx context.Context, p *postgres.Participant, guard postgres.Guard, kind OutcomeKind, rec *timing.AnswerRecord) (Outcome, error) {
	if err := m.store.UpdateParticipant(ctx, p, guard); err != nil {
		return Outcome{}, apperrors.Retryable(err)
	}
	logger.Infof("[PARTICIPANT] Participant %d %s (score %.2f)", p.ID, kind, p.FraudScore)
	m.afterTerminal(ctx, p)
	return Outcome{Kind: kind, Participant: p, Answer: rec}, nil
}

// afterTerminal lets the round resolve its winner once a paid participant
// stops playing. admitted_at is not part of the write guard, so an admission
// may have committed after p was read; TryComplete is a no-op on rounds that
// are not full. Errors are left to the sweeper.
func (m *Machine) afterTerminal(ctx context.Context, p *postgres.Participant) {
	if p.PaymentStatus != postgres.PaymentPaid || m.rounds == nil {
		return
	}
	if _, err := m.rounds.TryComplete(ctx, p.RoundID); err != nil {
		logger.Errorf("[PARTICIPANT-ERROR] Error resolving round %d: %v", p.RoundID, err)
	}
}

func fail(p *postgres.Participant, reason string) {
	p.GameStatus = postgres.GameFailed
	p.FailureReason = reason
	p.TotalTime = nil
}

// checkIdentity compares the presented identity with the registered one.
// A mismatch records fraud signals and fails the participant in one write.
func (m *Machine) checkIdentity(p *postgres.Participant, presented fraud.Identity, now time.Time) (bool, error) {
	signals := m.scorer.CheckContinuity(identity(p), presented, now)
	if len(signals) == 0 {
		return false, nil
	}
	if err := m.addSignals(p, signals...); err != nil {
		return false, err
	}
	fail(p, game_constants.REASON_FORBIDDEN)
	logger.Warnf("[PARTICIPANT] Identity mismatch on participant %d: %d signals", p.ID, len(signals))
	return true, nil
}

func (m *Machine) addSignals(p *postgres.Participant, signals ...fraud.Signal) error {
	all, err := fraudSignals(p)
	if err != nil {
		return err
	}
	all = append(all, signals...)
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("error encoding fraud signals: %v", err)
	}
	p.FraudSignals = datatypes.JSON(data)
	p.FraudScore = m.scorer.Evaluate(all)
	p.IsFraudulent = m.scorer.IsFraudulent(p.FraudScore)
	if p.IsFraudulent {
		p.TotalTime = nil
	}
	return nil
}

// MarkPaid records a successful payment and resumes a paused timer. The
// boolean is true when the payment had already been recorded.
func (m *Machine) MarkPaid(ctx context.Context, id uint) (*postgres.Participant, bool, error) {
	p, err := m.store.GetParticipant(ctx, id)
	if err != nil {
		return nil, false, err
	}
	switch p.PaymentStatus {
	case postgres.PaymentPaid:
		return p, true, nil
	case postgres.PaymentFailed, postgres.PaymentRefunded:
		return nil, false, fmt.Errorf("%w: payment already %s", apperrors.ErrInvalidState, p.PaymentStatus)
	}
	guard := p.Guard()
	now := m.now()
	p.PaymentStatus = postgres.PaymentPaid
	p.PaidAt = &now

	if p.PausedAt != nil {
		state, err := timingState(p)
		if err != nil {
			return nil, false, err
		}
		game, err := m.store.GetGame(ctx, p.GameID)
		if err != nil {
			return nil, false, err
		}
		tracker := timing.NewTracker(state, game.FreeQuestions, game.QuestionTimeout(), func() time.Time { return now })
		if err := tracker.Resume(); err != nil {
			return nil, false, err
		}
		if err := applyTiming(p, state); err != nil {
			return nil, false, err
		}
	}
	if err := m.store.UpdateParticipant(ctx, p, guard); err != nil {
		return nil, false, apperrors.Retryable(err)
	}
	logger.Infof("[PARTICIPANT] Participant %d paid", p.ID)
	return p, false, nil
}

// MarkPaymentFailed records a failed payment. A participant waiting on the
// paywall cannot continue and is abandoned.
func (m *Machine) MarkPaymentFailed(ctx context.Context, id uint) (*postgres.Participant, error) {
	p, err := m.store.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	switch p.PaymentStatus {
	case postgres.PaymentFailed:
		return p, nil
	case postgres.PaymentPaid, postgres.PaymentRefunded:
		return nil, fmt.Errorf("%w: payment already %s", apperrors.ErrInvalidState, p.PaymentStatus)
	}
	guard := p.Guard()
	p.PaymentStatus = postgres.PaymentFailed
	if !p.GameStatus.Terminal() {
		p.GameStatus = postgres.GameAbandoned
		p.FailureReason = game_constants.REASON_PAYMENT_FAILED
		p.TotalTime = nil
	}
	if err := m.store.UpdateParticipant(ctx, p, guard); err != nil {
		return nil, apperrors.Retryable(err)
	}
	logger.Infof("[PARTICIPANT] Payment of participant %d failed", p.ID)
	return p, nil
}

// MarkRefunded records a refund and gives the paid slot back to the round.
func (m *Machine) MarkRefunded(ctx context.Context, id uint) (*postgres.Participant, error) {
	p, err := m.store.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	switch p.PaymentStatus {
	case postgres.PaymentRefunded:
	case postgres.PaymentPaid:
		guard := p.Guard()
		p.PaymentStatus = postgres.PaymentRefunded
		if !p.GameStatus.Terminal() {
			p.GameStatus = postgres.GameAbandoned
			p.FailureReason = game_constants.REASON_REFUNDED
			p.TotalTime = nil
		}
		if err := m.store.UpdateParticipant(ctx, p, guard); err != nil {
			return nil, apperrors.Retryable(err)
		}
		logger.Infof("[PARTICIPANT] Participant %d refunded", p.ID)
	default:
		return nil, fmt.Errorf("%w: payment is %s", apperrors.ErrInvalidState, p.PaymentStatus)
	}

	// Replays reach here too, so a release that failed earlier is retried.
	if p.AdmittedAt != nil && m.rounds != nil {
		if err := m.rounds.ReleasePaidParticipant(ctx, p.RoundID, p.ID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Abandon ends a participant that stopped playing.
func (m *Machine) Abandon(ctx context.Context, id uint, reason string) (*postgres.Participant, error) {
	p, err := m.store.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.GameStatus.Terminal() {
		return p, nil
	}
	guard := p.Guard()
	p.GameStatus = postgres.GameAbandoned
	p.FailureReason = reason
	p.TotalTime = nil
	if err := m.store.UpdateParticipant(ctx, p, guard); err != nil {
		return nil, apperrors.Retryable(err)
	}
	logger.Infof("[PARTICIPANT] Participant %d abandoned (%s)", p.ID, reason)
	m.afterTerminal(ctx, p)
	return p, nil
}

// Deadline is when the participant's current question expires, if running.
func (m *Machine) Deadline(ctx context.Context, p *postgres.Participant) (time.Time, bool, error) {
	game, err := m.store.GetGame(ctx, p.GameID)
	if err != nil {
		return time.Time{}, false, err
	}
	state, err := timingState(p)
	if err != nil {
		return time.Time{}, false, err
	}
	deadline, ok := timing.NewTracker(state, game.FreeQuestions, game.QuestionTimeout(), m.now).Deadline()
	return deadline, ok, nil
}
