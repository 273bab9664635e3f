package fraud

import (
	game_constants "Quizrace/constants/game"
	"fmt"
	"math"
	"time"
)

type SignalType string

const (
	AnswerTooFast   SignalType = "answer_too_fast"
	SessionMismatch SignalType = "session_mismatch"
	DeviceMismatch  SignalType = "device_mismatch"
)

// Signal is one suspicious observation about a participant.
type Signal struct {
	Type   SignalType `json:"type"`
	Detail string     `json:"detail,omitempty"`
	At     time.Time  `json:"at"`
}

// Identity is what a request presents to prove it comes from the registrant.
type Identity struct {
	SessionID         string
	DeviceFingerprint string
}

// Policy holds the weights and limits scoring runs with. It is built once
// at startup and injected.
type Policy struct {
	Weights       map[SignalType]float64
	DefaultWeight float64
	Threshold     float64
	MinLatency    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Weights: map[SignalType]float64{
			AnswerTooFast:   game_constants.WEIGHT_ANSWER_TOO_FAST,
			SessionMismatch: game_constants.WEIGHT_SESSION_MISMATCH,
			DeviceMismatch:  game_constants.WEIGHT_DEVICE_MISMATCH,
		},
		DefaultWeight: game_constants.WEIGHT_UNKNOWN_SIGNAL,
		Threshold:     game_constants.FRAUD_THRESHOLD,
		MinLatency:    game_constants.MIN_ANSWER_LATENCY,
	}
}

type Scorer struct {
	policy Policy
}

func NewScorer(policy Policy) *Scorer {
	return &Scorer{policy: policy}
}

func (s *Scorer) Policy() Policy {
	return s.policy
}

func (s *Scorer) Weight(t SignalType) float64 {
	if w, ok := s.policy.Weights[t]; ok {
		return w
	}
	return s.policy.DefaultWeight
}

// Evaluate sums signal weights, capped at 1.0. The sum is rounded to four
// decimals so that repeated float additions compare cleanly to the threshold.
func (s *Scorer) Evaluate(signals []Signal) float64 {
	var score float64
	for _, sig := range signals {
		score += s.Weight(sig.Type)
	}
	score = math.Round(score*game_constants.FRAUD_SCORE_DECIMALS) / game_constants.FRAUD_SCORE_DECIMALS
	return math.Min(score, game_constants.MAX_FRAUD_SCORE)
}

func (s *Scorer) IsFraudulent(score float64) bool {
	return score >= s.policy.Threshold
}

// CheckContinuity compares a request's identity with the one captured at
// registration and returns one signal per mismatching field.
func (s *Scorer) CheckContinuity(registered, presented Identity, at time.Time) []Signal {
	var signals []Signal
	if presented.SessionID != registered.SessionID {
		signals = append(signals, Signal{Type: SessionMismatch, At: at})
	}
	if presented.DeviceFingerprint != registered.DeviceFingerprint {
		signals = append(signals, Signal{Type: DeviceMismatch, At: at})
	}
	return signals
}

// CheckLatency flags an answer submitted faster than the policy allows.
func (s *Scorer) CheckLatency(questionNumber int, elapsed time.Duration, at time.Time) (Signal, bool) {
	if elapsed >= s.policy.MinLatency {
		return Signal{}, false
	}
	return Signal{
		Type:   AnswerTooFast,
		Detail: fmt.Sprintf("question %d answered in %s", questionNumber, elapsed),
		At:     at,
	}, true
}
