package questions

import (
	"Quizrace/apperrors"
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestStaticBank(t *testing.T) {
	b := NewStaticBank()
	b.Set(1, "A", "C")

	got, err := b.CorrectAnswer(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "C", got)

	_, err = b.CorrectAnswer(context.Background(), 1, 3)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGormBank(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	gdb, err := gorm.Open(pgdriver.New(pgdriver.Config{Conn: db, PreferSimpleProtocol: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .*correct_answer.* FROM "questions" WHERE game_id = \$1 AND number = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"correct_answer"}).AddRow("B"))
	mock.ExpectQuery(`SELECT .*correct_answer.* FROM "questions"`).
		WillReturnRows(sqlmock.NewRows([]string{"correct_answer"}))

	bank := NewGormBank(gdb)
	got, err := bank.CorrectAnswer(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, "B", got)

	_, err = bank.CorrectAnswer(context.Background(), 3, 9)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
