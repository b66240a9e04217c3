package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pricetrack/models"
)

// ErrUserNotFound is returned when the owning user of a product does not exist
var ErrUserNotFound = errors.New("user not found")

// UserRepository handles user lookups
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a user
func (r *UserRepository) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	query := `
		INSERT INTO users (name, email)
		VALUES ($1, $2)
		RETURNING id, name, email, created_at
	`

	var u models.User
	err := r.db.QueryRowContext(ctx, query, name, email).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

// GetUserEmail returns the email address alerts for userID are sent to
func (r *UserRepository) GetUserEmail(ctx context.Context, userID int) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get user email: %w", err)
	}
	return email, nil
}
