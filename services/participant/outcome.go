package participant

import (
	"Quizrace/apperrors"
	"Quizrace/models/postgres"
	"Quizrace/services/timing"
)

type OutcomeKind string

const (
	Accepted        OutcomeKind = "accepted"
	AwaitingPayment OutcomeKind = "awaiting_payment"
	Completed       OutcomeKind = "completed"
	TimedOut        OutcomeKind = "timed_out"
	WrongAnswer     OutcomeKind = "wrong_answer"
	Forbidden       OutcomeKind = "forbidden"
	Fraudulent      OutcomeKind = "fraudulent"
)

// Outcome is the result of a request that reached the participant. The
// terminal kinds are results, not errors: the participant row was updated.
type Outcome struct {
	Kind        OutcomeKind
	Participant *postgres.Participant
	Answer      *timing.AnswerRecord
}

// Terminal reports whether the participant can no longer play.
func (o Outcome) Terminal() bool {
	switch o.Kind {
	case Completed, TimedOut, WrongAnswer, Forbidden, Fraudulent:
		return true
	}
	return false
}

// Err maps failure outcomes onto the error taxonomy for the HTTP layer.
func (o Outcome) Err() error {
	switch o.Kind {
	case TimedOut:
		return apperrors.ErrTimeout
	case WrongAnswer:
		return apperrors.ErrWrongAnswer
	case Forbidden, Fraudulent:
		return apperrors.ErrForbidden
	}
	return nil
}
