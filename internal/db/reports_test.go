package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/patrickwarner/floodwatch/internal/models"
)

var repoNow = time.Date(2025, time.March, 1, 8, 30, 0, 0, time.UTC)

var reportColumns = []string{
	"id", "location", "coordinates", "water_level", "description",
	"image_url", "status", "user_id", "created_at",
}

func newMockRepository(t *testing.T) (*ReportRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := OpenGorm(sqlDB, zap.NewNop())
	require.NoError(t, err)
	return NewReportRepository(gdb, clockwork.NewFakeClockAt(repoNow)), mock
}

func TestReportRepository_Create(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "successful insert",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO "reports"`).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO "reports"`).
					WillReturnError(sql.ErrConnDone)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			tt.setupMock(mock)

			report := &models.Report{
				Location:    "Jl. Kemang Raya",
				Coordinates: datatypes.NewJSONType(models.Coordinates{Lat: -6.26, Lng: 106.81}),
				WaterLevel:  45.5,
				Description: "knee deep",
				UserID:      "u1",
			}
			err := repo.Create(context.Background(), report)

			if tt.expectError {
				assert.ErrorIs(t, err, sql.ErrConnDone)
			} else {
				require.NoError(t, err)
				_, parseErr := uuid.Parse(report.ID)
				assert.NoError(t, parseErr)
				assert.Equal(t, models.StatusActive, report.Status)
				assert.Equal(t, repoNow, report.CreatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReportRepository_FindByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(`SELECT \* FROM "reports" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(reportColumns).AddRow(
				"r1", "Kemang", []byte(`{"lat":-6.26,"lng":106.81}`), 45.5, "knee deep",
				nil, "ACTIVE", "u1", repoNow,
			))

		report, err := repo.FindByID(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, "r1", report.ID)
		assert.Equal(t, models.Coordinates{Lat: -6.26, Lng: 106.81}, report.Coordinates.Data())
		assert.Nil(t, report.ImageURL)
		assert.Equal(t, models.StatusActive, report.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(`SELECT \* FROM "reports" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(reportColumns))

		_, err := repo.FindByID(context.Background(), "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReportRepository_Update(t *testing.T) {
	changes := models.ReportChanges{
		Location:    "Kemang",
		Coordinates: models.Coordinates{Lat: -6.26, Lng: 106.81},
		WaterLevel:  80,
		Description: "waist deep",
	}

	t.Run("status untouched when not provided", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE "reports" SET`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "reports" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(reportColumns).AddRow(
				"r1", "Kemang", []byte(`{"lat":-6.26,"lng":106.81}`), 80.0, "waist deep",
				nil, "ACTIVE", "u1", repoNow,
			))

		report, err := repo.Update(context.Background(), "r1", changes)
		require.NoError(t, err)
		assert.Equal(t, 80.0, report.WaterLevel)
		assert.Equal(t, "u1", report.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status written when provided", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		resolved := models.StatusResolved
		withStatus := changes
		withStatus.Status = &resolved

		mock.ExpectExec(`UPDATE "reports" SET .*"status"=`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "reports" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(reportColumns).AddRow(
				"r1", "Kemang", []byte(`{"lat":-6.26,"lng":106.81}`), 80.0, "waist deep",
				nil, "RESOLVED", "u1", repoNow,
			))

		report, err := repo.Update(context.Background(), "r1", withStatus)
		require.NoError(t, err)
		assert.Equal(t, models.StatusResolved, report.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE "reports" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.Update(context.Background(), "missing", changes)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReportRepository_Delete(t *testing.T) {
	tests := []struct {
		name      string
		affected  int64
		expectErr error
	}{
		{name: "deleted", affected: 1},
		{name: "missing", affected: 0, expectErr: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			mock.ExpectExec(`DELETE FROM "reports" WHERE id = \$1`).
				WithArgs("r1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Delete(context.Background(), "r1")
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReportRepository_ListAll(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT \* FROM "reports" ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows(reportColumns).
			AddRow("r2", "Cawang", []byte(`{"lat":-6.24,"lng":106.86}`), 120.0, "chest deep",
				"https://cdn.example.com/2.jpg", "ACTIVE", "u1", repoNow).
			AddRow("r1", "Kemang", []byte(`{"lat":-6.26,"lng":106.81}`), 45.5, "knee deep",
				nil, "RESOLVED", "u1", repoNow.Add(-time.Hour)))
	mock.ExpectQuery(`SELECT "id","name","email" FROM "users" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow("u1", "Sari", "sari@example.com"))

	reports, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "r2", reports[0].ID)
	assert.Equal(t, "r1", reports[1].ID)
	for _, r := range reports {
		require.NotNil(t, r.Owner)
		assert.Equal(t, "Sari", r.Owner.Name)
		assert.Equal(t, "sari@example.com", r.Owner.Email)
	}
	require.NotNil(t, reports[0].ImageURL)
	assert.Equal(t, "https://cdn.example.com/2.jpg", *reports[0].ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_ListAllEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT \* FROM "reports" ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows(reportColumns))

	reports, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, reports)
	assert.Empty(t, reports)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_CountUsers(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
