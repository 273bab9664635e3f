// Package store persists games, rounds, participants and outbox events.
//
// Two implementations exist: GormStore on PostgreSQL, where row locks are
// taken with SELECT ... FOR UPDATE, and MemoryStore, which emulates the same
// locking and transaction semantics in process. Callers that need to lock a
// game and a round in the same transaction must lock the game first.
package store

import (
	"Quizrace/models/postgres"
	"context"
	"time"
)

// Store is the lock-free surface plus the entry point into transactions.
type Store interface {
	// InTx runs fn in a transaction. Any error returned by fn rolls back.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	SaveGame(ctx context.Context, g *postgres.Game) error
	GetGame(ctx context.Context, id uint) (*postgres.Game, error)
	GetRound(ctx context.Context, id uint) (*postgres.Round, error)
	ListRounds(ctx context.Context, gameID uint) ([]postgres.Round, error)
	GetParticipant(ctx context.Context, id uint) (*postgres.Participant, error)

	// CreateParticipant inserts p and bumps its round's participant_count.
	CreateParticipant(ctx context.Context, p *postgres.Participant) error
	// UpdateParticipant writes p only if the row still matches guard;
	// otherwise it returns ErrStaleState. admitted_at and is_winner are never
	// written here.
	UpdateParticipant(ctx context.Context, p *postgres.Participant, guard postgres.Guard) error
	// MoveParticipant reassigns p to roundID under the same guard rule.
	MoveParticipant(ctx context.Context, p *postgres.Participant, guard postgres.Guard, roundID uint) error

	// Sweeper queries
	RoundsAwaitingWinner(ctx context.Context) ([]postgres.Round, error)
	IdleParticipants(ctx context.Context, cutoff time.Time) ([]postgres.Participant, error)
	GamesWithoutActiveRound(ctx context.Context) ([]postgres.Game, error)

	// Outbox
	UnpublishedEvents(ctx context.Context, limit int) ([]postgres.RoundEvent, error)
	MarkEventsPublished(ctx context.Context, ids []string, at time.Time) error
}

// Tx is the transactional surface. Row locks are held until commit.
type Tx interface {
	LockGame(id uint) (*postgres.Game, error)
	LockRound(id uint) (*postgres.Round, error)
	GetGame(id uint) (*postgres.Game, error)

	ActiveRound(gameID uint) (*postgres.Round, error)
	RoundByNumber(gameID uint, number int) (*postgres.Round, error)
	MaxRoundNumber(gameID uint) (int, error)
	CreateRound(r *postgres.Round) error
	SaveRound(r *postgres.Round) error

	GetParticipant(id uint) (*postgres.Participant, error)
	RoundParticipants(roundID uint) ([]postgres.Participant, error)
	// WinnerCandidates returns eligible participants ordered by total time, then id.
	WinnerCandidates(roundID uint) ([]postgres.Participant, error)
	UpdateParticipant(p *postgres.Participant, guard postgres.Guard) error
	MarkWinner(roundID, participantID uint) error
	// MarkAdmitted returns false when the participant was already admitted.
	MarkAdmitted(roundID, participantID uint, at time.Time) (bool, error)
	// ClearAdmitted returns false when the participant was not admitted.
	ClearAdmitted(roundID, participantID uint) (bool, error)

	AppendEvent(e *postgres.RoundEvent) error
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*gormTx)(nil)
	_ Tx    = (*memoryTx)(nil)
)
