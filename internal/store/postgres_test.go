package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"geotasks/api/internal/model"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(db), mock
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func TestCreateUser(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("inserts and returns id", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		user := &model.User{Username: "alice", Email: "alice@example.com", Password: "hash", Role: model.RoleUser, IsActive: true}
		require.NoError(t, s.CreateUser(ctx, user))
		assert.Equal(t, uint(1), user.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email becomes constraint error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users"`).WillReturnError(uniqueViolation(ConstraintEmail))
		mock.ExpectRollback()

		user := &model.User{Username: "alice2", Email: "alice@example.com", Password: "hash", Role: model.RoleUser, IsActive: true}
		err := s.CreateUser(ctx, user)
		require.Error(t, err)
		assert.True(t, IsConstraint(err, ConstraintEmail))
		assert.False(t, IsConstraint(err, ConstraintUsername))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUserNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}))

	user, err := s.GetUser(context.Background(), 42)
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password", "role", "is_active", "created_at", "updated_at"}).
			AddRow(3, "alice", "alice@example.com", "hash", "user", true, now, now))

	user, err := s.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint(3), user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveTasksWithFilters(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	priority := model.PriorityLow
	done := false

	mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE .*user_id = \$1 AND is_active = \$2.* AND priority = \$3 AND done = \$4 ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "description", "done", "priority", "is_active", "created_at", "updated_at"}).
			AddRow(1, 7, "buy milk", "", false, "low", true, now, now).
			AddRow(2, 7, "walk dog", "", false, "low", true, now, now))

	tasks, err := s.ListActiveTasks(context.Background(), 7, model.TaskFilter{Priority: &priority, Done: &done}, model.NewPage(0, 10))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "buy milk", tasks[0].Title)
	assert.Equal(t, model.PriorityLow, tasks[1].Priority)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTaskMissingRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "tasks" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.SaveTask(context.Background(), &model.Task{ID: 9, Title: "x", Priority: model.PriorityMedium})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTask(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "tasks" WHERE "tasks"."id" = \$1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, s.DeleteTask(ctx, 4))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "tasks"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	assert.ErrorIs(t, s.DeleteTask(ctx, 4), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLocationDerivesPoint(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	userID := uint(5)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "locations" .*ST_SetSRID\(ST_MakePoint\(\$\d+, \$\d+\), 4326\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()

	loc := &model.Location{UserID: &userID, PlaceID: 1, Name: "home", Lat: 10, Lon: 20}
	require.NoError(t, s.CreateLocation(ctx, loc))
	assert.Equal(t, uint(11), loc.ID)
	assert.Equal(t, model.NewPoint(10, 20), loc.Geom)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "locations"`).WillReturnError(uniqueViolation(ConstraintUserLocation))
	mock.ExpectRollback()

	err := s.CreateLocation(ctx, &model.Location{UserID: &userID, PlaceID: 2, Lat: 1, Lon: 1})
	assert.True(t, IsConstraint(err, ConstraintUserLocation))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveLocationRederivesPoint(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	userID := uint(5)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "locations" SET "place_id"=\$1,"display_name"=\$2,"name"=\$3,"lat"=\$4,"lon"=\$5,"geom"=ST_SetSRID\(ST_MakePoint\(\$6, \$7\), 4326\),"updated_at"=\$8 WHERE "id" = \$9`).
		WithArgs(int64(2), "Elsewhere", "work", 30.5, -40.25, -40.25, 30.5, sqlmock.AnyArg(), uint(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	loc := &model.Location{ID: 11, UserID: &userID, PlaceID: 2, DisplayName: "Elsewhere", Name: "work", Lat: 30.5, Lon: -40.25, Geom: model.NewPoint(10, 20)}
	require.NoError(t, s.SaveLocation(ctx, loc))
	assert.Equal(t, model.NewPoint(30.5, -40.25), loc.Geom)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "locations" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	assert.ErrorIs(t, s.SaveLocation(ctx, &model.Location{ID: 12, PlaceID: 1}), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUserWritesInactive(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET "username"=\$1,"email"=\$2,"password"=\$3,"role"=\$4,"is_active"=\$5,"updated_at"=\$6 WHERE "id" = \$7`).
		WithArgs("alice", "alice@example.com", "hash", model.RoleUser, false, sqlmock.AnyArg(), uint(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &model.User{ID: 3, Username: "alice", Email: "alice@example.com", Password: "hash", Role: model.RoleUser, IsActive: false}
	require.NoError(t, s.SaveUser(ctx, user))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET`).WillReturnError(uniqueViolation(ConstraintUsername))
	mock.ExpectRollback()
	err := s.SaveUser(ctx, &model.User{ID: 3, Username: "bob", Email: "alice@example.com", Role: model.RoleUser})
	assert.True(t, IsConstraint(err, ConstraintUsername))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "users" WHERE "users"."id" = \$1`).WithArgs(uint(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, s.DeleteUser(ctx, 3))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "users" WHERE "users"."id" = \$1`).WithArgs(uint(404)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	assert.ErrorIs(t, s.DeleteUser(ctx, 404), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLocationReadsGeoJSON(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, user_id, task_id, .*ST_AsGeoJSON\(geom\) AS geom.* FROM "locations" WHERE task_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "task_id", "place_id", "display_name", "name", "lat", "lon", "geom", "created_at", "updated_at"}).
			AddRow(2, nil, 8, 99, "Somewhere, Earth", "somewhere", 10.0, 20.0, `{"type":"Point","coordinates":[20,10]}`, now, now))

	loc, err := s.GetLocationByTask(context.Background(), 8)
	require.NoError(t, err)
	assert.Nil(t, loc.UserID)
	require.NotNil(t, loc.TaskID)
	assert.Equal(t, uint(8), *loc.TaskID)
	assert.Equal(t, int64(99), loc.PlaceID)
	assert.Equal(t, [2]float64{20, 10}, loc.Geom.Coordinates)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("rolls back on error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := s.Transaction(ctx, func(tx Repository) error {
			if err := tx.CreateUser(ctx, &model.User{Username: "a", Email: "a@b.co", Role: model.RoleUser, IsActive: true}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commits on success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "locations"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.Transaction(ctx, func(tx Repository) error {
			return tx.DeleteLocation(ctx, 3)
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError(nil))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), ErrNotFound)

	err := translateError(&pgconn.PgError{Code: pgCheckViolation, ConstraintName: ConstraintLocationOwner})
	assert.True(t, IsConstraint(err, ConstraintLocationOwner))

	other := &pgconn.PgError{Code: "23503", ConstraintName: "fk_tasks_user"}
	assert.Same(t, error(other), translateError(other))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, ParseLogLevel("INFO"))
	assert.Equal(t, logger.Silent, ParseLogLevel("silent"))
	assert.Equal(t, logger.Warn, ParseLogLevel(""))
}
