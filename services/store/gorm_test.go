package store

import (
	"Quizrace/apperrors"
	"Quizrace/models/postgres"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(pgdriver.New(pgdriver.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return NewGormStore(gdb), mock
}

func TestGormLockRoundUsesForUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "rounds" WHERE "rounds"."id" = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "game_id", "round_number", "status", "paid_participant_count", "started_at"}).
			AddRow(4, 1, 2, "active", 3, now))
	mock.ExpectCommit()

	var got *postgres.Round
	err := s.InTx(context.Background(), func(tx Tx) error {
		var err error
		got, err = tx.LockRound(4)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint(4), got.ID)
	assert.Equal(t, postgres.RoundActive, got.Status)
	assert.Equal(t, 3, got.PaidParticipantCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLockGameNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "games" .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx Tx) error {
		_, err := tx.LockGame(9)
		return err
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUpdateParticipantStale(t *testing.T) {
	s, mock := newMockStore(t)
	p := &postgres.Participant{
		ID:              7,
		RoundID:         1,
		GameID:          1,
		CurrentQuestion: 2,
		GameStatus:      postgres.GameInProgress,
		PaymentStatus:   postgres.PaymentPending,
	}
	guard := p.Guard()
	p.CurrentQuestion = 3

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "participants" SET .* WHERE .*round_id = \$\d+ AND current_question = \$\d+ AND game_status = \$\d+ AND payment_status = \$\d+.*"id" = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.UpdateParticipant(context.Background(), p, guard)
	assert.ErrorIs(t, err, apperrors.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUpdateParticipantSkipsRoundOwnedColumns(t *testing.T) {
	s, mock := newMockStore(t)
	p := &postgres.Participant{ID: 7, RoundID: 1, CurrentQuestion: 1, GameStatus: postgres.GameInProgress, PaymentStatus: postgres.PaymentPaid}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "participants" SET .*"current_question"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpdateParticipant(context.Background(), p, p.Guard()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormWinnerCandidatesOrdering(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "participants" WHERE .*total_time IS NOT NULL.* ORDER BY total_time ASC, id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "round_id", "total_time"}).
			AddRow(3, 5, int64(2*time.Second)).
			AddRow(1, 5, int64(4*time.Second)))
	mock.ExpectCommit()

	var got []postgres.Participant
	err := s.InTx(context.Background(), func(tx Tx) error {
		var err error
		got, err = tx.WinnerCandidates(5)
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint(3), got[0].ID)
	assert.Equal(t, 2*time.Second, *got[0].TotalTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormMarkAdmittedOnce(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "participants" SET "admitted_at"=.* WHERE .*admitted_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var admitted bool
	err := s.InTx(context.Background(), func(tx Tx) error {
		var err error
		admitted, err = tx.MarkAdmitted(5, 7, time.Now())
		return err
	})
	require.NoError(t, err)
	assert.False(t, admitted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCreateParticipantCountsInRound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "participants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectExec(`UPDATE "rounds" SET "participant_count"=participant_count \+ \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := &postgres.Participant{RoundID: 5, GameID: 1, Email: "a@b.c", SessionID: "s", DeviceFingerprint: "d"}
	require.NoError(t, s.CreateParticipant(context.Background(), p))
	assert.Equal(t, uint(12), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
