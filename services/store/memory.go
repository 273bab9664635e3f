package store

import (
	"Quizrace/apperrors"
	"Quizrace/models/postgres"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	errDuplicateRound  = errors.New("duplicate round number")
	errDuplicateActive = errors.New("game already has an active round")
)

// MemoryStore keeps everything in process. Row locks are per-key mutexes
// held until the transaction ends; writes are staged and applied at commit.
type MemoryStore struct {
	Now func() time.Time

	mu              sync.RWMutex
	games           map[uint]*postgres.Game
	rounds          map[uint]*postgres.Round
	participants    map[uint]*postgres.Participant
	events          []*postgres.RoundEvent
	nextGame        uint
	nextRound       uint
	nextParticipant uint

	locksMu    sync.Mutex
	gameLocks  map[uint]*sync.Mutex
	roundLocks map[uint]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Now:          time.Now,
		games:        make(map[uint]*postgres.Game),
		rounds:       make(map[uint]*postgres.Round),
		participants: make(map[uint]*postgres.Participant),
		gameLocks:    make(map[uint]*sync.Mutex),
		roundLocks:   make(map[uint]*sync.Mutex),
	}
}

func (s *MemoryStore) lockFor(locks map[uint]*sync.Mutex, id uint) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := locks[id]
	if !ok {
		m = &sync.Mutex{}
		locks[id] = m
	}
	return m
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{
		s:          s,
		heldGames:  make(map[uint]bool),
		heldRounds: make(map[uint]bool),
		rounds:     make(map[uint]*postgres.Round),
		ops:        make(map[uint][]participantOp),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *MemoryStore) SaveGame(ctx context.Context, g *postgres.Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == 0 {
		s.nextGame++
		g.ID = s.nextGame
	} else if g.ID > s.nextGame {
		s.nextGame = g.ID
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.Now()
	}
	cp := *g
	s.games[g.ID] = &cp
	return nil
}

func (s *MemoryStore) GetGame(ctx context.Context, id uint) (*postgres.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: game %d", apperrors.ErrNotFound, id)
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryStore) GetRound(ctx context.Context, id uint) (*postgres.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[id]
	if !ok {
		return nil, fmt.Errorf("%w: round %d", apperrors.ErrNotFound, id)
	}
	return cloneRound(r), nil
}

func (s *MemoryStore) ListRounds(ctx context.Context, gameID uint) ([]postgres.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []postgres.Round
	for _, r := range s.rounds {
		if r.GameID == gameID {
			out = append(out, *cloneRound(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (s *MemoryStore) GetParticipant(ctx context.Context, id uint) (*postgres.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, fmt.Errorf("%w: participant %d", apperrors.ErrNotFound, id)
	}
	return cloneParticipant(p), nil
}

func (s *MemoryStore) CreateParticipant(ctx context.Context, p *postgres.Participant) error {
	// The count bump waits for any transaction holding the round.
	m := s.lockFor(s.roundLocks, p.RoundID)
	m.Lock()
	defer m.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[p.RoundID]
	if !ok {
		return fmt.Errorf("%w: round %d", apperrors.ErrNotFound, p.RoundID)
	}
	s.nextParticipant++
	p.ID = s.nextParticipant
	p.CreatedAt = s.Now()
	p.UpdatedAt = p.CreatedAt
	if p.PaymentStatus == "" {
		p.PaymentStatus = postgres.PaymentPending
	}
	if p.GameStatus == "" {
		p.GameStatus = postgres.GameNotStarted
	}
	if p.CurrentQuestion == 0 {
		p.CurrentQuestion = 1
	}
	s.participants[p.ID] = cloneParticipant(p)
	r.ParticipantCount++
	return nil
}

func (s *MemoryStore) UpdateParticipant(ctx context.Context, p *postgres.Participant, guard postgres.Guard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.participants[p.ID]
	if !ok {
		return fmt.Errorf("%w: participant %d", apperrors.ErrNotFound, p.ID)
	}
	if !guard.Matches(cur) {
		return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, p.ID)
	}
	p.UpdatedAt = s.Now()
	s.participants[p.ID] = overwriteParticipant(cur, p)
	return nil
}

func (s *MemoryStore) MoveParticipant(ctx context.Context, p *postgres.Participant, guard postgres.Guard, roundID uint) error {
	m := s.lockFor(s.roundLocks, roundID)
	m.Lock()
	defer m.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.participants[p.ID]
	if !ok {
		return fmt.Errorf("%w: participant %d", apperrors.ErrNotFound, p.ID)
	}
	target, ok := s.rounds[roundID]
	if !ok {
		return fmt.Errorf("%w: round %d", apperrors.ErrNotFound, roundID)
	}
	if !guard.Matches(cur) || cur.AdmittedAt != nil {
		return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, p.ID)
	}
	cur.RoundID = roundID
	cur.UpdatedAt = s.Now()
	target.ParticipantCount++
	p.RoundID = roundID
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *MemoryStore) RoundsAwaitingWinner(ctx context.Context) ([]postgres.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []postgres.Round
	for _, r := range s.rounds {
		if r.AwaitingWinner() {
			out = append(out, *cloneRound(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) IdleParticipants(ctx context.Context, cutoff time.Time) ([]postgres.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []postgres.Participant
	for _, p := range s.participants {
		if !p.GameStatus.Terminal() && p.UpdatedAt.Before(cutoff) {
			out = append(out, *cloneParticipant(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GamesWithoutActiveRound(ctx context.Context) ([]postgres.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make(map[uint]bool)
	for _, r := range s.rounds {
		if r.Status == postgres.RoundActive {
			active[r.GameID] = true
		}
	}
	var out []postgres.Game
	for _, g := range s.games {
		if g.AutoRestart && !active[g.ID] {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UnpublishedEvents(ctx context.Context, limit int) ([]postgres.RoundEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []postgres.RoundEvent
	for _, e := range s.events {
		if e.PublishedAt == nil {
			out = append(out, *e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkEventsPublished(ctx context.Context, ids []string, at time.Time) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if want[e.ID] && e.PublishedAt == nil {
			t := at
			e.PublishedAt = &t
		}
	}
	return nil
}

// Events returns every outbox row in insertion order.
func (s *MemoryStore) Events() []postgres.RoundEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]postgres.RoundEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	return out
}

type participantOp func(p *postgres.Participant) error

type memoryTx struct {
	s          *MemoryStore
	held       []*sync.Mutex
	heldGames  map[uint]bool
	heldRounds map[uint]bool

	rounds  map[uint]*postgres.Round
	ops     map[uint][]participantOp
	opOrder []uint
	events  []*postgres.RoundEvent
}

func (tx *memoryTx) release() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
	tx.held = nil
}

func (tx *memoryTx) commit() error {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make(map[uint]*postgres.Participant, len(tx.opOrder))
	for _, id := range tx.opOrder {
		cur, ok := s.participants[id]
		if !ok {
			return fmt.Errorf("%w: participant %d", apperrors.ErrNotFound, id)
		}
		p := cloneParticipant(cur)
		for _, op := range tx.ops[id] {
			if err := op(p); err != nil {
				return err
			}
		}
		updated[id] = p
	}
	for _, r := range tx.rounds {
		if r.Status != postgres.RoundActive {
			continue
		}
		for id, other := range s.rounds {
			if id == r.ID || other.GameID != r.GameID || other.Status != postgres.RoundActive {
				continue
			}
			if staged, ok := tx.rounds[id]; ok && staged.Status != postgres.RoundActive {
				continue
			}
			return fmt.Errorf("%w: game %d", errDuplicateActive, r.GameID)
		}
	}

	for id, r := range tx.rounds {
		s.rounds[id] = cloneRound(r)
	}
	for id, p := range updated {
		s.participants[id] = p
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (tx *memoryTx) LockGame(id uint) (*postgres.Game, error) {
	if !tx.heldGames[id] {
		m := tx.s.lockFor(tx.s.gameLocks, id)
		m.Lock()
		tx.held = append(tx.held, m)
		tx.heldGames[id] = true
	}
	return tx.s.GetGame(context.Background(), id)
}

func (tx *memoryTx) GetGame(id uint) (*postgres.Game, error) {
	return tx.s.GetGame(context.Background(), id)
}

func (tx *memoryTx) LockRound(id uint) (*postgres.Round, error) {
	if !tx.heldRounds[id] {
		m := tx.s.lockFor(tx.s.roundLocks, id)
		m.Lock()
		tx.held = append(tx.held, m)
		tx.heldRounds[id] = true
	}
	return tx.round(id)
}

func (tx *memoryTx) round(id uint) (*postgres.Round, error) {
	if r, ok := tx.rounds[id]; ok {
		return cloneRound(r), nil
	}
	return tx.s.GetRound(context.Background(), id)
}

// roundView merges staged rounds over committed ones for one game.
func (tx *memoryTx) roundView(gameID uint) []*postgres.Round {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	var out []*postgres.Round
	for id, r := range tx.s.rounds {
		if _, staged := tx.rounds[id]; staged || r.GameID != gameID {
			continue
		}
		out = append(out, cloneRound(r))
	}
	for _, r := range tx.rounds {
		if r.GameID == gameID {
			out = append(out, cloneRound(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out
}

func (tx *memoryTx) ActiveRound(gameID uint) (*postgres.Round, error) {
	var active *postgres.Round
	for _, r := range tx.roundView(gameID) {
		if r.Status == postgres.RoundActive {
			active = r
		}
	}
	if active == nil {
		return nil, fmt.Errorf("%w: no active round for game %d", apperrors.ErrNotFound, gameID)
	}
	return active, nil
}

func (tx *memoryTx) RoundByNumber(gameID uint, number int) (*postgres.Round, error) {
	for _, r := range tx.roundView(gameID) {
		if r.RoundNumber == number {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: round %d of game %d", apperrors.ErrNotFound, number, gameID)
}

func (tx *memoryTx) MaxRoundNumber(gameID uint) (int, error) {
	highest := 0
	for _, r := range tx.roundView(gameID) {
		if r.RoundNumber > highest {
			highest = r.RoundNumber
		}
	}
	return highest, nil
}

func (tx *memoryTx) CreateRound(r *postgres.Round) error {
	for _, other := range tx.roundView(r.GameID) {
		if other.RoundNumber == r.RoundNumber {
			return fmt.Errorf("%w: %d", errDuplicateRound, r.RoundNumber)
		}
	}
	tx.s.mu.Lock()
	tx.s.nextRound++
	r.ID = tx.s.nextRound
	tx.s.mu.Unlock()
	if r.Status == "" {
		r.Status = postgres.RoundActive
	}
	tx.rounds[r.ID] = cloneRound(r)
	return nil
}

func (tx *memoryTx) SaveRound(r *postgres.Round) error {
	if _, err := tx.round(r.ID); err != nil {
		return err
	}
	tx.rounds[r.ID] = cloneRound(r)
	return nil
}

func (tx *memoryTx) stage(id uint, op participantOp) {
	if _, ok := tx.ops[id]; !ok {
		tx.opOrder = append(tx.opOrder, id)
	}
	tx.ops[id] = append(tx.ops[id], op)
}

// participant returns the committed row with this transaction's writes applied.
func (tx *memoryTx) participant(id uint) (*postgres.Participant, error) {
	p, err := tx.s.GetParticipant(context.Background(), id)
	if err != nil {
		return nil, err
	}
	for _, op := range tx.ops[id] {
		_ = op(p)
	}
	return p, nil
}

func (tx *memoryTx) GetParticipant(id uint) (*postgres.Participant, error) {
	return tx.participant(id)
}

func (tx *memoryTx) RoundParticipants(roundID uint) ([]postgres.Participant, error) {
	tx.s.mu.RLock()
	ids := make([]uint, 0)
	for id := range tx.s.participants {
		ids = append(ids, id)
	}
	tx.s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []postgres.Participant
	for _, id := range ids {
		p, err := tx.participant(id)
		if err != nil {
			return nil, err
		}
		if p.RoundID == roundID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (tx *memoryTx) WinnerCandidates(roundID uint) ([]postgres.Participant, error) {
	all, err := tx.RoundParticipants(roundID)
	if err != nil {
		return nil, err
	}
	var out []postgres.Participant
	for _, p := range all {
		if p.EligibleForWin() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinishedBefore(&out[j]) })
	return out, nil
}

func (tx *memoryTx) UpdateParticipant(p *postgres.Participant, guard postgres.Guard) error {
	cur, err := tx.participant(p.ID)
	if err != nil {
		return err
	}
	if !guard.Matches(cur) {
		return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, p.ID)
	}
	next := cloneParticipant(p)
	now := tx.s.Now()
	tx.stage(p.ID, func(row *postgres.Participant) error {
		if !guard.Matches(row) {
			return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, row.ID)
		}
		*row = *overwriteParticipant(row, next)
		row.UpdatedAt = now
		return nil
	})
	p.UpdatedAt = now
	return nil
}

func (tx *memoryTx) MarkWinner(roundID, participantID uint) error {
	cur, err := tx.participant(participantID)
	if err != nil {
		return err
	}
	if cur.RoundID != roundID {
		return fmt.Errorf("%w: participant %d is not in round %d", apperrors.ErrNotFound, participantID, roundID)
	}
	tx.stage(participantID, func(row *postgres.Participant) error {
		row.IsWinner = true
		return nil
	})
	return nil
}

func (tx *memoryTx) MarkAdmitted(roundID, participantID uint, at time.Time) (bool, error) {
	cur, err := tx.participant(participantID)
	if err != nil {
		return false, err
	}
	if cur.RoundID != roundID || cur.PaymentStatus != postgres.PaymentPaid || cur.AdmittedAt != nil {
		return false, nil
	}
	tx.stage(participantID, func(row *postgres.Participant) error {
		if row.RoundID != roundID || row.AdmittedAt != nil {
			return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, row.ID)
		}
		t := at
		row.AdmittedAt = &t
		return nil
	})
	return true, nil
}

func (tx *memoryTx) ClearAdmitted(roundID, participantID uint) (bool, error) {
	cur, err := tx.participant(participantID)
	if err != nil {
		return false, err
	}
	if cur.RoundID != roundID || cur.AdmittedAt == nil {
		return false, nil
	}
	tx.stage(participantID, func(row *postgres.Participant) error {
		if row.RoundID != roundID || row.AdmittedAt == nil {
			return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, row.ID)
		}
		row.AdmittedAt = nil
		return nil
	})
	return true, nil
}

func (tx *memoryTx) AppendEvent(e *postgres.RoundEvent) error {
	cp := *e
	tx.events = append(tx.events, &cp)
	return nil
}

func cloneRound(r *postgres.Round) *postgres.Round {
	cp := *r
	cp.FullAt = cloneTime(r.FullAt)
	cp.CompletedAt = cloneTime(r.CompletedAt)
	cp.CancelledAt = cloneTime(r.CancelledAt)
	if r.WinnerParticipantID != nil {
		id := *r.WinnerParticipantID
		cp.WinnerParticipantID = &id
	}
	return &cp
}

func cloneParticipant(p *postgres.Participant) *postgres.Participant {
	cp := *p
	cp.StartedAt = cloneTime(p.StartedAt)
	cp.QuestionStartedAt = cloneTime(p.QuestionStartedAt)
	cp.PausedAt = cloneTime(p.PausedAt)
	cp.PaidAt = cloneTime(p.PaidAt)
	cp.AdmittedAt = cloneTime(p.AdmittedAt)
	cp.CompletedAt = cloneTime(p.CompletedAt)
	if p.TotalTime != nil {
		d := *p.TotalTime
		cp.TotalTime = &d
	}
	cp.FraudSignals = append([]byte(nil), p.FraudSignals...)
	cp.Answers = append([]byte(nil), p.Answers...)
	return &cp
}

// overwriteParticipant copies next over cur, keeping the columns only the
// round transaction owns.
func overwriteParticipant(cur, next *postgres.Participant) *postgres.Participant {
	out := cloneParticipant(next)
	out.AdmittedAt = cloneTime(cur.AdmittedAt)
	out.IsWinner = cur.IsWinner
	out.CreatedAt = cur.CreatedAt
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
