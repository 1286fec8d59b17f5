package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
	"github.com/BowlPulp/HodlSync/internal/domain/repositories"
	"github.com/BowlPulp/HodlSync/internal/infrastructure/auth"
)

// AccountService provides signup and login for user accounts
type AccountService struct {
	userRepo repositories.UserRepository
	tokens   *auth.TokenManager
	logger   *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	userRepo repositories.UserRepository,
	tokens *auth.TokenManager,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		userRepo: userRepo,
		tokens:   tokens,
		logger:   logger,
	}
}

// SignupRequest carries the fields required to create an account
type SignupRequest struct {
	Username  string
	Email     string
	DOB       time.Time
	Password  string
	Addresses []string
}

// UserDTO is the API representation of a user account
type UserDTO struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	DOB       string   `json:"dob"`
	Addresses []string `json:"addressesToTrack"`
	CreatedAt string   `json:"createdAt"`
}

// Signup creates a new user account with a bcrypt-hashed password
func (s *AccountService) Signup(ctx context.Context, req SignupRequest) (*UserDTO, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", entities.ErrValidation)
	}
	if req.DOB.IsZero() {
		return nil, fmt.Errorf("%w: date of birth is required", entities.ErrValidation)
	}

	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, entities.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		Username:     req.Username,
		Email:        req.Email,
		DOB:          req.DOB,
		PasswordHash: string(hash),
		Addresses:    req.Addresses,
	}

	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.Int64("user_id", created.ID),
		zap.String("email", created.Email),
	)

	return userToDTO(created), nil
}

// Login validates credentials and issues a session token
func (s *AccountService) Login(ctx context.Context, email, password string) (*UserDTO, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, "", fmt.Errorf("%w: user not found", entities.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("%w: invalid email or password", entities.ErrUnauthorized)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Info("User logged in", zap.Int64("user_id", user.ID))

	return userToDTO(user), token, nil
}

func userToDTO(user *entities.User) *UserDTO {
	return &UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		DOB:       user.DOB.Format("2006-01-02"),
		Addresses: user.Addresses,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}
