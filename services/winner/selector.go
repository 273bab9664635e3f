// Package winner picks the fastest eligible participant of a round.
package winner

import (
	"Quizrace/models/postgres"
	"Quizrace/services/store"
	"fmt"
)

type Selector struct{}

func NewSelector() *Selector {
	return &Selector{}
}

// Select flags and returns the winner of round, or nil when nobody is
// eligible. It must run inside the transaction that holds the round lock.
func (s *Selector) Select(tx store.Tx, round *postgres.Round) (*postgres.Participant, error) {
	candidates, err := tx.WinnerCandidates(round.ID)
	if err != nil {
		return nil, err
	}
	w := Rank(candidates)
	if w == nil {
		return nil, nil
	}
	if err := tx.MarkWinner(round.ID, w.ID); err != nil {
		return nil, fmt.Errorf("error flagging winner of round %d: %w", round.ID, err)
	}
	w.IsWinner = true
	return w, nil
}

// Rank returns the eligible participant with the lowest total time, breaking
// ties on the lower id.
func Rank(participants []postgres.Participant) *postgres.Participant {
	var best *postgres.Participant
	for i := range participants {
		p := &participants[i]
		if !p.EligibleForWin() {
			continue
		}
		if best == nil || p.FinishedBefore(best) {
			best = p
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}
