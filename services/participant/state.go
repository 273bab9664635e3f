package participant

import (
	"Quizrace/models/postgres"
	"Quizrace/services/fraud"
	"Quizrace/services/timing"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// timingState lifts the timer columns of p into a timing.State.
func timingState(p *postgres.Participant) (*timing.State, error) {
	s := &timing.State{
		StartedAt:         p.StartedAt,
		QuestionStartedAt: p.QuestionStartedAt,
		PausedAt:          p.PausedAt,
		PausedTotal:       p.PausedTotal,
		PrePayment:        p.PrePaymentTime,
		PostPayment:       p.PostPaymentTime,
	}
	if len(p.Answers) > 0 {
		if err := json.Unmarshal(p.Answers, &s.Answers); err != nil {
			return nil, fmt.Errorf("error decoding answers of participant %d: %v", p.ID, err)
		}
	}
	return s, nil
}

func applyTiming(p *postgres.Participant, s *timing.State) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("error encoding answers of participant %d: %v", p.ID, err)
	}
	if s.Answers == nil {
		answers = []byte("[]")
	}
	p.StartedAt = s.StartedAt
	p.QuestionStartedAt = s.QuestionStartedAt
	p.PausedAt = s.PausedAt
	p.PausedTotal = s.PausedTotal
	p.PrePaymentTime = s.PrePayment
	p.PostPaymentTime = s.PostPayment
	p.Answers = datatypes.JSON(answers)
	return nil
}

func fraudSignals(p *postgres.Participant) ([]fraud.Signal, error) {
	var signals []fraud.Signal
	if len(p.FraudSignals) > 0 {
		if err := json.Unmarshal(p.FraudSignals, &signals); err != nil {
			return nil, fmt.Errorf("error decoding fraud signals of participant %d: %v", p.ID, err)
		}
	}
	return signals, nil
}

// Answers decodes the answer history of p.
func Answers(p *postgres.Participant) ([]timing.AnswerRecord, error) {
	s, err := timingState(p)
	if err != nil {
		return nil, err
	}
	return s.Answers, nil
}

// Signals decodes the fraud signals recorded on p.
func Signals(p *postgres.Participant) ([]fraud.Signal, error) {
	return fraudSignals(p)
}

func identity(p *postgres.Participant) fraud.Identity {
	return fraud.Identity{SessionID: p.SessionID, DeviceFingerprint: p.DeviceFingerprint}
}
