package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/mealsnap-be/internal/common"
	"github.com/isdelr/mealsnap-be/internal/database"
	"github.com/isdelr/mealsnap-be/internal/models"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, username string) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db  *database.DB
	now func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(db *database.DB) *UserService {
	return &UserService{db: db, now: time.Now}
}

// CreateUser inserts a user. The UNIQUE constraint on username decides
// whether the name is taken; a violation is reported as common.ErrAlreadyExists.
func (s *UserService) CreateUser(ctx context.Context, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, fmt.Errorf("username is required: %w", common.ErrValidation)
	}

	user := models.User{
		Username:  username,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	query := s.db.Rebind(`INSERT INTO "user" (username, created_at) VALUES (?, ?) RETURNING id`)
	err := s.db.QueryRowContext(ctx, query, user.Username, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, fmt.Errorf("username %q: %w", username, common.ErrAlreadyExists)
		}
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	query := s.db.Rebind(`SELECT id, username, created_at FROM "user" WHERE id = ?`)
	return s.getUser(ctx, query, id)
}

// GetUserByUsername retrieves a single user by their username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	query := s.db.Rebind(`SELECT id, username, created_at FROM "user" WHERE username = ?`)
	return s.getUser(ctx, query, strings.TrimSpace(username))
}

func (s *UserService) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %v: %w", arg, common.ErrNotFound)
		}
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// ListUsers returns every user ordered by username.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, created_at FROM "user" ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}
