package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
	"github.com/BowlPulp/HodlSync/internal/domain/repositories"
)

// Ensure UserRepo implements UserRepository
var _ repositories.UserRepository = (*UserRepo)(nil)

// UserRepo implements UserRepository using PostgreSQL
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user
func (r *UserRepo) Create(ctx context.Context, user *entities.User) (*entities.User, error) {
	query := `
		INSERT INTO users (username, email, dob, password_hash, addresses)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	addresses := user.Addresses
	if addresses == nil {
		addresses = pq.StringArray{}
	}

	row := r.db.QueryRowxContext(ctx, query,
		user.Username,
		strings.ToLower(user.Email),
		user.DOB,
		user.PasswordHash,
		addresses,
	)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, entities.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.Email = strings.ToLower(user.Email)
	user.Addresses = addresses
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	query := `SELECT * FROM users WHERE email = $1`

	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	var user entities.User
	query := `SELECT * FROM users WHERE id = $1`

	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &user, nil
}

// GetAddresses returns the user's tracked address list
func (r *UserRepo) GetAddresses(ctx context.Context, userID int64) ([]string, error) {
	var addresses pq.StringArray
	query := `SELECT addresses FROM users WHERE id = $1`

	if err := r.db.GetContext(ctx, &addresses, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get addresses: %w", err)
	}

	return addresses, nil
}

// AddAddress appends an address to the user's tracked list
func (r *UserRepo) AddAddress(ctx context.Context, userID int64, address string) ([]string, error) {
	var addresses pq.StringArray
	query := `
		UPDATE users SET
			addresses = array_append(addresses, $2),
			updated_at = NOW()
		WHERE id = $1
		RETURNING addresses
	`

	if err := r.db.GetContext(ctx, &addresses, query, userID, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to add address: %w", err)
	}

	return addresses, nil
}

// RemoveAddress removes an address from the user's tracked list. The
// membership check is part of the UPDATE predicate so two concurrent
// removes of the same address cannot both succeed.
func (r *UserRepo) RemoveAddress(ctx context.Context, userID int64, address string) ([]string, error) {
	var addresses pq.StringArray
	query := `
		UPDATE users SET
			addresses = array_remove(addresses, $2),
			updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(addresses)
		RETURNING addresses
	`

	if err := r.db.GetContext(ctx, &addresses, query, userID, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to remove address: %w", err)
	}

	return addresses, nil
}
