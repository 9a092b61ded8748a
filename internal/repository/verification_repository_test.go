package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
)

func newVerificationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func verificationRow(id string, date time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "client_id", "client_name", "activity_name", "date", "method", "kind", "verified_at"}).
		AddRow(id, "c1", "Carla Gomez", "pilates", date, models.MethodAutomatica, models.KindClaseRegular, time.Now().UTC())
}

func TestVerificationRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newVerificationRepoMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO verifications`).
		WithArgs(sqlmock.AnyArg(), "c1", "Carla Gomez", "pilates", date, models.MethodAutomatica, models.KindClaseRegular, sqlmock.AnyArg()).
		WillReturnRows(verificationRow("ver-1", date))

	stored, err := repo.Insert(context.Background(), &models.VerificationRecord{
		ClientID: "c1", ClientName: "Carla Gomez", ActivityName: "pilates",
		Date: date, Method: models.MethodAutomatica, Kind: models.KindClaseRegular,
	})
	require.NoError(t, err)
	require.Equal(t, "ver-1", stored.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryInsertDuplicate(t *testing.T) {
	db, mock, cleanup := newVerificationRepoMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	// ON CONFLICT DO NOTHING returns zero rows on a duplicate.
	mock.ExpectQuery(`INSERT INTO verifications`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "client_name", "activity_name", "date", "method", "kind", "verified_at"}))

	_, err := repo.Insert(context.Background(), &models.VerificationRecord{
		ClientID: "c1", ClientName: "Carla Gomez", ActivityName: "pilates",
		Date: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), Method: models.MethodAutomatica, Kind: models.KindClaseRegular,
	})
	require.ErrorIs(t, err, ErrDuplicateVerification)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryExistingDates(t *testing.T) {
	db, mock, cleanup := newVerificationRepoMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	from := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"date"}).
		AddRow(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)).
		AddRow(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
	mock.ExpectQuery(`SELECT date FROM verifications`).
		WithArgs("c1", "pilates", models.MethodAutomatica, from, to).
		WillReturnRows(rows)

	existing, err := repo.ExistingDates(context.Background(),
		models.EnrollmentKey{ClientID: "c1", ActivityName: "pilates"}, models.MethodAutomatica, from, to)
	require.NoError(t, err)
	require.Len(t, existing, 2)
	_, ok := existing["2026-03-09"]
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newVerificationRepoMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	mock.ExpectExec(`DELETE FROM verifications WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
