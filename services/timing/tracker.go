// Package timing measures how long a participant spends on each question.
//
// A Tracker operates on a State that the caller loads from and persists to
// the participant row, so timing survives restarts and works across
// instances. Elapsed time for a question runs from the moment the question
// became current and excludes any interval spent paused on the paywall.
package timing

import (
	"Quizrace/apperrors"
	"fmt"
	"strings"
	"time"
)

// AnswerRecord is one accepted or rejected answer, kept in submission order.
type AnswerRecord struct {
	QuestionNumber int           `json:"question_number"`
	Answer         string        `json:"answer"`
	Correct        bool          `json:"correct"`
	TimeTaken      time.Duration `json:"time_taken"`
	AnsweredAt     time.Time     `json:"answered_at"`
}

// State is the persisted timer state of one participant.
type State struct {
	StartedAt         *time.Time
	QuestionStartedAt *time.Time
	PausedAt          *time.Time
	PausedTotal       time.Duration
	PrePayment        time.Duration
	PostPayment       time.Duration
	Answers           []AnswerRecord
}

type Tracker struct {
	state         *State
	freeQuestions int
	timeout       time.Duration
	now           func() time.Time
}

func NewTracker(state *State, freeQuestions int, timeout time.Duration, now func() time.Time) *Tracker {
	return &Tracker{
		state:         state,
		freeQuestions: freeQuestions,
		timeout:       timeout,
		now:           now,
	}
}

// Start records T0. Question 1 becomes current at the same instant.
func (t *Tracker) Start() error {
	if t.state.StartedAt != nil {
		return fmt.Errorf("%w: timer already started", apperrors.ErrInvalidState)
	}
	now := t.now()
	t.state.StartedAt = &now
	t.state.QuestionStartedAt = &now
	return nil
}

// Paused reports whether the timer is stopped on the paywall.
func (t *Tracker) Paused() bool {
	return t.state.PausedAt != nil
}

// NextQuestion is the question number the tracker expects next.
func (t *Tracker) NextQuestion() int {
	return len(t.state.Answers) + 1
}

// Elapsed is the active time spent on the current question.
func (t *Tracker) Elapsed() time.Duration {
	if t.state.QuestionStartedAt == nil {
		return 0
	}
	end := t.now()
	if t.state.PausedAt != nil {
		end = *t.state.PausedAt
	}
	elapsed := end.Sub(*t.state.QuestionStartedAt) - t.state.PausedTotal
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Deadline is when the current question times out, if the clock is running.
func (t *Tracker) Deadline() (time.Time, bool) {
	if t.state.QuestionStartedAt == nil || t.state.PausedAt != nil {
		return time.Time{}, false
	}
	return t.state.QuestionStartedAt.Add(t.state.PausedTotal + t.timeout), true
}

// RecordAnswer appends the answer to the history and attributes its time to
// the pre- or post-payment bucket. A late answer returns ErrTimeout and a
// wrong one ErrWrongAnswer; neither is appended, the record is only
// returned to the caller.
func (t *Tracker) RecordAnswer(questionNumber int, answer, correct string) (AnswerRecord, error) {
	if t.state.QuestionStartedAt == nil {
		return AnswerRecord{}, fmt.Errorf("%w: timer not started", apperrors.ErrInvalidState)
	}
	if t.state.PausedAt != nil {
		return AnswerRecord{}, fmt.Errorf("%w: timer is paused", apperrors.ErrInvalidState)
	}
	if questionNumber != t.NextQuestion() {
		return AnswerRecord{}, fmt.Errorf("%w: expected question %d, got %d",
			apperrors.ErrStaleState, t.NextQuestion(), questionNumber)
	}

	now := t.now()
	elapsed := t.Elapsed()
	rec := AnswerRecord{
		QuestionNumber: questionNumber,
		Answer:         answer,
		Correct:        strings.EqualFold(answer, correct),
		TimeTaken:      elapsed,
		AnsweredAt:     now,
	}
	if elapsed > t.timeout {
		rec.Correct = false
		return rec, fmt.Errorf("%w: question %d took %s", apperrors.ErrTimeout, questionNumber, elapsed)
	}
	if !rec.Correct {
		return rec, fmt.Errorf("%w: question %d", apperrors.ErrWrongAnswer, questionNumber)
	}
	t.state.Answers = append(t.state.Answers, rec)

	if questionNumber <= t.freeQuestions {
		t.state.PrePayment += elapsed
	} else {
		t.state.PostPayment += elapsed
	}

	// The next question becomes current now.
	t.state.QuestionStartedAt = &now
	t.state.PausedTotal = 0
	return rec, nil
}

// Pause stops the clock while the participant pays.
func (t *Tracker) Pause() error {
	if t.state.QuestionStartedAt == nil {
		return fmt.Errorf("%w: timer not started", apperrors.ErrInvalidState)
	}
	if t.state.PausedAt != nil {
		return nil
	}
	now := t.now()
	t.state.PausedAt = &now
	return nil
}

// Resume restarts the clock; the paused interval is not charged.
func (t *Tracker) Resume() error {
	if t.state.PausedAt == nil {
		return fmt.Errorf("%w: timer is not paused", apperrors.ErrInvalidState)
	}
	t.state.PausedTotal += t.now().Sub(*t.state.PausedAt)
	t.state.PausedAt = nil
	return nil
}

// TotalTime is the time charged across every correctly answered question.
func (t *Tracker) TotalTime() time.Duration {
	return t.state.PrePayment + t.state.PostPayment
}
