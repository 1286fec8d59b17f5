package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
	"github.com/BowlPulp/HodlSync/internal/domain/repositories"
)

// RegistryService provides the server-side tracked-address registry
type RegistryService struct {
	userRepo repositories.UserRepository
	logger   *zap.Logger
}

// NewRegistryService creates a new registry service
func NewRegistryService(userRepo repositories.UserRepository, logger *zap.Logger) *RegistryService {
	return &RegistryService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// FetchAddresses returns the user's tracked address list
func (s *RegistryService) FetchAddresses(ctx context.Context, userID int64) ([]string, error) {
	addresses, err := s.userRepo.GetAddresses(ctx, userID)
	if err != nil {
		return nil, err
	}
	if addresses == nil {
		addresses = []string{}
	}
	return addresses, nil
}

// AddAddress validates and appends a wallet address to the user's list
func (s *RegistryService) AddAddress(ctx context.Context, userID int64, address string) ([]string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", entities.ErrValidation)
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: not a valid wallet address", entities.ErrValidation)
	}

	addresses, err := s.userRepo.AddAddress(ctx, userID, strings.ToLower(address))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Address added",
		zap.Int64("user_id", userID),
		zap.String("address", strings.ToLower(address)),
	)

	return addresses, nil
}

// RemoveAddress removes a wallet address from the user's list. Removing an
// untracked address returns entities.ErrNotFound.
func (s *RegistryService) RemoveAddress(ctx context.Context, userID int64, address string) ([]string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", entities.ErrValidation)
	}

	addresses, err := s.userRepo.RemoveAddress(ctx, userID, strings.ToLower(address))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Address removed",
		zap.Int64("user_id", userID),
		zap.String("address", strings.ToLower(address)),
	)

	return addresses, nil
}
