package repositories

import (
	"context"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
)

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create inserts a new user and returns it with ID and timestamps set.
	// Returns entities.ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, user *entities.User) (*entities.User, error)

	// GetByEmail retrieves a user by email, or nil if no such user exists
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// GetByID retrieves a user by ID, or nil if no such user exists
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// GetAddresses returns the user's tracked address list in stored order
	GetAddresses(ctx context.Context, userID int64) ([]string, error)

	// AddAddress appends an address to the user's tracked list and returns
	// the updated list
	AddAddress(ctx context.Context, userID int64, address string) ([]string, error)

	// RemoveAddress removes an address from the user's tracked list and
	// returns the updated list. Returns entities.ErrNotFound if the address
	// is not tracked.
	RemoveAddress(ctx context.Context, userID int64, address string) ([]string, error)
}
