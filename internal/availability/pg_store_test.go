package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doc := uuid.New()
	updated := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"weekly", "blocks", "updated_at"}).
		AddRow([]byte(`{"monday":["09:00"]}`), []byte(`[]`), updated)
	mock.ExpectQuery("SELECT weekly, blocks, updated_at").
		WithArgs(doc).
		WillReturnRows(rows)

	store := NewPgStore(mock)
	a, err := store.Get(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, Weekly{"monday": {"09:00"}}, a.Weekly)
	assert.Empty(t, a.Blocks)
	assert.Equal(t, updated, a.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreGetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doc := uuid.New()
	mock.ExpectQuery("SELECT weekly, blocks, updated_at").
		WithArgs(doc).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPgStore(mock).Get(context.Background(), doc)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreSave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := Empty(uuid.New())
	a.Weekly["monday"] = []string{"09:00"}
	a.UpdatedAt = time.Now().UTC()

	mock.ExpectExec("INSERT INTO doctor_availability").
		WithArgs(a.DoctorID, pgxmock.AnyArg(), pgxmock.AnyArg(), a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPgStore(mock).Save(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}
