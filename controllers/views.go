package controllers

import (
	"Quizrace/models/postgres"
	"Quizrace/services/participant"
	"Quizrace/services/timing"
	"time"
)

type ParticipantView struct {
	ID              uint                   `json:"id"`
	RoundID         uint                   `json:"round_id"`
	GameID          uint                   `json:"game_id"`
	Email           string                 `json:"email"`
	PaymentStatus   postgres.PaymentStatus `json:"payment_status"`
	GameStatus      postgres.GameStatus    `json:"game_status"`
	FailureReason   string                 `json:"failure_reason,omitempty"`
	CurrentQuestion int                    `json:"current_question"`
	PrePaymentMs    int64                  `json:"pre_payment_ms"`
	PostPaymentMs   int64                  `json:"post_payment_ms"`
	TotalTimeMs     *int64                 `json:"total_time_ms"`
	Paused          bool                   `json:"paused"`
	Admitted        bool                   `json:"admitted"`
	IsWinner        bool                   `json:"is_winner"`
	IsFraudulent    bool                   `json:"is_fraudulent"`
	FraudScore      float64                `json:"fraud_score"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
}

func NewParticipantView(p *postgres.Participant) ParticipantView {
	v := ParticipantView{
		ID:              p.ID,
		RoundID:         p.RoundID,
		GameID:          p.GameID,
		Email:           p.Email,
		PaymentStatus:   p.PaymentStatus,
		GameStatus:      p.GameStatus,
		FailureReason:   p.FailureReason,
		CurrentQuestion: p.CurrentQuestion,
		PrePaymentMs:    p.PrePaymentTime.Milliseconds(),
		PostPaymentMs:   p.PostPaymentTime.Milliseconds(),
		Paused:          p.PausedAt != nil,
		Admitted:        p.AdmittedAt != nil,
		IsWinner:        p.IsWinner,
		IsFraudulent:    p.IsFraudulent,
		FraudScore:      p.FraudScore,
		CompletedAt:     p.CompletedAt,
	}
	if p.TotalTime != nil {
		ms := p.TotalTime.Milliseconds()
		v.TotalTimeMs = &ms
	}
	return v
}

type RoundView struct {
	ID                   uint                 `json:"id"`
	GameID               uint                 `json:"game_id"`
	RoundNumber          int                  `json:"round_number"`
	Status               postgres.RoundStatus `json:"status"`
	ParticipantCount     int                  `json:"participant_count"`
	PaidParticipantCount int                  `json:"paid_participant_count"`
	StartedAt            time.Time            `json:"started_at"`
	FullAt               *time.Time           `json:"full_at,omitempty"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
	CancelledAt          *time.Time           `json:"cancelled_at,omitempty"`
	WinnerParticipantID  *uint                `json:"winner_participant_id"`
}

func NewRoundView(r *postgres.Round) RoundView {
	return RoundView{
		ID:                   r.ID,
		GameID:               r.GameID,
		RoundNumber:          r.RoundNumber,
		Status:               r.Status,
		ParticipantCount:     r.ParticipantCount,
		PaidParticipantCount: r.PaidParticipantCount,
		StartedAt:            r.StartedAt,
		FullAt:               r.FullAt,
		CompletedAt:          r.CompletedAt,
		CancelledAt:          r.CancelledAt,
		WinnerParticipantID:  r.WinnerParticipantID,
	}
}

type AnswerView struct {
	QuestionNumber int    `json:"question_number"`
	Answer         string `json:"answer"`
	Correct        bool   `json:"correct"`
	TimeTakenMs    int64  `json:"time_taken_ms"`
}

type OutcomeView struct {
	Outcome     participant.OutcomeKind `json:"outcome"`
	Participant ParticipantView         `json:"participant"`
	Answer      *AnswerView             `json:"answer,omitempty"`
}

func NewOutcomeView(o participant.Outcome) OutcomeView {
	v := OutcomeView{Outcome: o.Kind, Participant: NewParticipantView(o.Participant)}
	if o.Answer != nil {
		v.Answer = newAnswerView(o.Answer)
	}
	return v
}

func newAnswerView(rec *timing.AnswerRecord) *AnswerView {
	return &AnswerView{
		QuestionNumber: rec.QuestionNumber,
		Answer:         rec.Answer,
		Correct:        rec.Correct,
		TimeTakenMs:    rec.TimeTaken.Milliseconds(),
	}
}
