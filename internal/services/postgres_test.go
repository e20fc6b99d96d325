package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdelr/mealsnap-be/internal/common"
	"github.com/isdelr/mealsnap-be/internal/database"
	"github.com/isdelr/mealsnap-be/internal/models"
)

func newPostgresMock(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &database.DB{DB: conn, Dialect: database.DialectPostgres}, mock
}

func TestPostgresCreateUser(t *testing.T) {
	db, mock := newPostgresMock(t)
	svc := NewUserService(db)

	q := `(?s)^INSERT\s+INTO\s+"user"\s*\(username,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2\)\s*RETURNING\s+id$`
	mock.ExpectQuery(q).
		WithArgs("alice", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	user, err := svc.CreateUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUserUniqueViolation(t *testing.T) {
	db, mock := newPostgresMock(t)
	svc := NewUserService(db)

	mock.ExpectQuery(`INSERT\s+INTO\s+"user"`).
		WithArgs("alice", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := svc.CreateUser(context.Background(), "alice")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUserDBError(t *testing.T) {
	db, mock := newPostgresMock(t)
	svc := NewUserService(db)

	mock.ExpectQuery(`INSERT\s+INTO\s+"user"`).
		WithArgs("alice", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	_, err := svc.CreateUser(context.Background(), "alice")
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
	assert.False(t, common.IsClientError(err))
}

func TestPostgresCreateMealForeignKeyViolation(t *testing.T) {
	db, mock := newPostgresMock(t)
	svc := NewMealService(db)

	q := `(?s)INSERT\s+INTO\s+meal\s*\(date,\s*weight,\s*description,\s*calories,\s*protein,\s*carbs,\s*fat,\s*image_data,\s*user_id\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8,\s*\$9\)\s*RETURNING\s+id`
	mock.ExpectQuery(q).
		WithArgs(sqlmock.AnyArg(), 200.0, "toast", 300.0, 8.0, 40.0, 9.0, nil, int64(42)).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := svc.CreateMeal(context.Background(), models.Meal{
		UserID: 42, Weight: 200, Description: "toast", Calories: 300, Protein: 8, Carbs: 40, Fat: 9,
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListMealsInRange(t *testing.T) {
	db, mock := newPostgresMock(t)
	svc := NewMealService(db)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	eaten := from.Add(13 * time.Hour)

	q := `(?s)SELECT\s+id,\s*date,.*FROM\s+meal\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+date\s*>=\s*\$2\s+AND\s+date\s*<\s*\$3\s+ORDER\s+BY\s+date,\s*id`
	rows := sqlmock.NewRows([]string{"id", "date", "weight", "description", "calories", "protein", "carbs", "fat", "image_data", "user_id"}).
		AddRow(int64(1), eaten, 300.0, "soup", 250.0, 12.0, 30.0, 7.0, nil, int64(3))
	mock.ExpectQuery(q).WithArgs(int64(3), from, to).WillReturnRows(rows)

	meals, err := svc.ListMealsInRange(context.Background(), 3, from, to)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, "soup", meals[0].Description)
	assert.Nil(t, meals[0].ImageData)
	assert.True(t, eaten.Equal(meals[0].Date))
	assert.NoError(t, mock.ExpectationsWereMet())
}
