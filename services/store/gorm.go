package store

import (
	"Quizrace/apperrors"
	"Quizrace/models/postgres"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the PostgreSQL implementation.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", apperrors.ErrNotFound, what, id)
	}
	return fmt.Errorf("error fetching %s %v: %w", what, id, err)
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{tx: tx})
	})
}

func (s *GormStore) SaveGame(ctx context.Context, g *postgres.Game) error {
	if err := s.db.WithContext(ctx).Save(g).Error; err != nil {
		return fmt.Errorf("error saving game: %w", err)
	}
	return nil
}

func (s *GormStore) GetGame(ctx context.Context, id uint) (*postgres.Game, error) {
	var g postgres.Game
	if err := s.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, notFound(err, "game", id)
	}
	return &g, nil
}

func (s *GormStore) GetRound(ctx context.Context, id uint) (*postgres.Round, error) {
	var r postgres.Round
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err, "round", id)
	}
	return &r, nil
}

func (s *GormStore) ListRounds(ctx context.Context, gameID uint) ([]postgres.Round, error) {
	var rounds []postgres.Round
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("round_number ASC").
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("error listing rounds of game %d: %w", gameID, err)
	}
	return rounds, nil
}

func (s *GormStore) GetParticipant(ctx context.Context, id uint) (*postgres.Participant, error) {
	var p postgres.Participant
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "participant", id)
	}
	return &p, nil
}

func (s *GormStore) CreateParticipant(ctx context.Context, p *postgres.Participant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("error creating participant: %w", err)
		}
		res := tx.Model(&postgres.Round{}).
			Where("id = ?", p.RoundID).
			UpdateColumn("participant_count", gorm.Expr("participant_count + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("error counting participant: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: round %d", apperrors.ErrNotFound, p.RoundID)
		}
		return nil
	})
}

func (s *GormStore) UpdateParticipant(ctx context.Context, p *postgres.Participant, guard postgres.Guard) error {
	return updateParticipant(s.db.WithContext(ctx), p, guard)
}

// updateParticipant is a conditional full-row write. Zero matched rows means
// another request got there first.
func updateParticipant(db *gorm.DB, p *postgres.Participant, guard postgres.Guard) error {
	res := db.Model(p).
		Where("round_id = ? AND current_question = ? AND game_status = ? AND payment_status = ?",
			guard.RoundID, guard.CurrentQuestion, guard.GameStatus, guard.PaymentStatus).
		Select("*").
		Omit("id", "created_at", "admitted_at", "is_winner").
		Updates(p)
	if res.Error != nil {
		return fmt.Errorf("error updating participant %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, p.ID)
	}
	return nil
}

func (s *GormStore) MoveParticipant(ctx context.Context, p *postgres.Participant, guard postgres.Guard, roundID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&postgres.Participant{}).
			Where("id = ? AND round_id = ? AND current_question = ? AND game_status = ? AND payment_status = ? AND admitted_at IS NULL",
				p.ID, guard.RoundID, guard.CurrentQuestion, guard.GameStatus, guard.PaymentStatus).
			Update("round_id", roundID)
		if res.Error != nil {
			return fmt.Errorf("error moving participant %d: %w", p.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, p.ID)
		}
		res = tx.Model(&postgres.Round{}).
			Where("id = ?", roundID).
			UpdateColumn("participant_count", gorm.Expr("participant_count + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("error counting participant: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: round %d", apperrors.ErrNotFound, roundID)
		}
		p.RoundID = roundID
		return nil
	})
}

func (s *GormStore) RoundsAwaitingWinner(ctx context.Context) ([]postgres.Round, error) {
	var rounds []postgres.Round
	err := s.db.WithContext(ctx).
		Where("status = ? AND winner_participant_id IS NULL", postgres.RoundFull).
		Order("id ASC").
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("error listing full rounds: %w", err)
	}
	return rounds, nil
}

func (s *GormStore) IdleParticipants(ctx context.Context, cutoff time.Time) ([]postgres.Participant, error) {
	var out []postgres.Participant
	err := s.db.WithContext(ctx).
		Where("game_status IN ? AND updated_at < ?",
			[]postgres.GameStatus{postgres.GameNotStarted, postgres.GameInProgress}, cutoff).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("error listing idle participants: %w", err)
	}
	return out, nil
}

func (s *GormStore) GamesWithoutActiveRound(ctx context.Context) ([]postgres.Game, error) {
	var games []postgres.Game
	err := s.db.WithContext(ctx).
		Where("auto_restart = ? AND NOT EXISTS (SELECT 1 FROM rounds WHERE rounds.game_id = games.id AND rounds.status = ?)",
			true, postgres.RoundActive).
		Order("id ASC").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("error listing games without a round: %w", err)
	}
	return games, nil
}

func (s *GormStore) UnpublishedEvents(ctx context.Context, limit int) ([]postgres.RoundEvent, error) {
	var out []postgres.RoundEvent
	err := s.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("error listing outbox: %w", err)
	}
	return out, nil
}

func (s *GormStore) MarkEventsPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&postgres.RoundEvent{}).
		Where("id IN ? AND published_at IS NULL", ids).
		Update("published_at", at).Error
	if err != nil {
		return fmt.Errorf("error marking events published: %w", err)
	}
	return nil
}

type gormTx struct {
	tx *gorm.DB
}

func (t *gormTx) forUpdate() *gorm.DB {
	return t.tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) LockGame(id uint) (*postgres.Game, error) {
	var g postgres.Game
	if err := t.forUpdate().First(&g, id).Error; err != nil {
		return nil, notFound(err, "game", id)
	}
	return &g, nil
}

func (t *gormTx) LockRound(id uint) (*postgres.Round, error) {
	var r postgres.Round
	if err := t.forUpdate().First(&r, id).Error; err != nil {
		return nil, notFound(err, "round", id)
	}
	return &r, nil
}

func (t *gormTx) GetGame(id uint) (*postgres.Game, error) {
	var g postgres.Game
	if err := t.tx.First(&g, id).Error; err != nil {
		return nil, notFound(err, "game", id)
	}
	return &g, nil
}

func (t *gormTx) ActiveRound(gameID uint) (*postgres.Round, error) {
	var r postgres.Round
	err := t.tx.Where("game_id = ? AND status = ?", gameID, postgres.RoundActive).
		Order("round_number DESC").
		Take(&r).Error
	if err != nil {
		return nil, notFound(err, "active round of game", gameID)
	}
	return &r, nil
}

func (t *gormTx) RoundByNumber(gameID uint, number int) (*postgres.Round, error) {
	var r postgres.Round
	err := t.tx.Where("game_id = ? AND round_number = ?", gameID, number).Take(&r).Error
	if err != nil {
		return nil, notFound(err, "round number", number)
	}
	return &r, nil
}

func (t *gormTx) MaxRoundNumber(gameID uint) (int, error) {
	var n int
	err := t.tx.Model(&postgres.Round{}).
		Where("game_id = ?", gameID).
		Select("COALESCE(MAX(round_number), 0)").
		Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("error reading last round number: %w", err)
	}
	return n, nil
}

func (t *gormTx) CreateRound(r *postgres.Round) error {
	if err := t.tx.Create(r).Error; err != nil {
		return fmt.Errorf("error creating round: %w", err)
	}
	return nil
}

func (t *gormTx) SaveRound(r *postgres.Round) error {
	if err := t.tx.Save(r).Error; err != nil {
		return fmt.Errorf("error saving round %d: %w", r.ID, err)
	}
	return nil
}

func (t *gormTx) GetParticipant(id uint) (*postgres.Participant, error) {
	var p postgres.Participant
	if err := t.tx.First(&p, id).Error; err != nil {
		return nil, notFound(err, "participant", id)
	}
	return &p, nil
}

func (t *gormTx) RoundParticipants(roundID uint) ([]postgres.Participant, error) {
	var out []postgres.Participant
	if err := t.tx.Where("round_id = ?", roundID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("error listing participants of round %d: %w", roundID, err)
	}
	return out, nil
}

func (t *gormTx) WinnerCandidates(roundID uint) ([]postgres.Participant, error) {
	var out []postgres.Participant
	err := t.tx.
		Where("round_id = ? AND payment_status = ? AND game_status = ? AND is_fraudulent = ? AND total_time IS NOT NULL AND admitted_at IS NOT NULL",
			roundID, postgres.PaymentPaid, postgres.GameCompleted, false).
		Order("total_time ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("error listing winner candidates of round %d: %w", roundID, err)
	}
	return out, nil
}

func (t *gormTx) UpdateParticipant(p *postgres.Participant, guard postgres.Guard) error {
	return updateParticipant(t.tx, p, guard)
}

func (t *gormTx) MarkWinner(roundID, participantID uint) error {
	res := t.tx.Model(&postgres.Participant{}).
		Where("id = ? AND round_id = ?", participantID, roundID).
		Update("is_winner", true)
	if res.Error != nil {
		return fmt.Errorf("error flagging winner %d: %w", participantID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: participant %d in round %d", apperrors.ErrNotFound, participantID, roundID)
	}
	return nil
}

func (t *gormTx) MarkAdmitted(roundID, participantID uint, at time.Time) (bool, error) {
	res := t.tx.Model(&postgres.Participant{}).
		Where("id = ? AND round_id = ? AND payment_status = ? AND admitted_at IS NULL",
			participantID, roundID, postgres.PaymentPaid).
		Update("admitted_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("error admitting participant %d: %w", participantID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) ClearAdmitted(roundID, participantID uint) (bool, error) {
	res := t.tx.Model(&postgres.Participant{}).
		Where("id = ? AND round_id = ? AND admitted_at IS NOT NULL", participantID, roundID).
		Update("admitted_at", gorm.Expr("NULL"))
	if res.Error != nil {
		return false, fmt.Errorf("error releasing participant %d: %w", participantID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) AppendEvent(e *postgres.RoundEvent) error {
	if err := t.tx.Create(e).Error; err != nil {
		return fmt.Errorf("error writing %s event: %w", e.Type, err)
	}
	return nil
}
