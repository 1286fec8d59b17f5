package testutil

import (
	"strconv"
	"strings"
	"time"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
)

// TestAddressA and TestAddressB are valid wallet addresses for tests
const (
	TestAddressA = "0x1111111111111111111111111111111111111111"
	TestAddressB = "0x2222222222222222222222222222222222222222"
)

// TestSession returns a session for the given user ID
func TestSession(userID int64) entities.Session {
	return entities.Session{
		Token:    "test-token",
		UserID:   userID,
		Username: "tester",
		Email:    "tester@example.com",
	}
}

// TestUser returns a user fixture with no tracked addresses
func TestUser(id int64) *entities.User {
	return &entities.User{
		ID:           id,
		Username:     "tester",
		Email:        "tester@example.com",
		DOB:          time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		PasswordHash: "$2a$10$invalidhashinvalidhashinvalidhashinvalidhashinvalidha",
		Addresses:    []string{},
	}
}

// ETHHolding returns an ETH token holding with the given human balance
// (18 decimals) and unit price
func ETHHolding(wholeUnits int64, price float64) entities.TokenHolding {
	return entities.TokenHolding{
		Symbol:   "ETH",
		Name:     "Ether",
		Balance:  weiBalance(wholeUnits, 18),
		Decimals: 18,
		USDPrice: price,
		Logo:     "https://cdn.example.com/eth.png",
	}
}

// USDCHolding returns a USDC token holding with the given human balance
// (6 decimals) and unit price
func USDCHolding(wholeUnits int64, price float64) entities.TokenHolding {
	return entities.TokenHolding{
		Symbol:   "USDC",
		Name:     "USD Coin",
		Balance:  weiBalance(wholeUnits, 6),
		Decimals: 6,
		USDPrice: price,
		Logo:     "https://cdn.example.com/usdc.png",
	}
}

// weiBalance renders wholeUnits scaled by decimals as a raw integer string
func weiBalance(wholeUnits int64, decimals int) string {
	if wholeUnits == 0 {
		return "0"
	}
	return strconv.FormatInt(wholeUnits, 10) + strings.Repeat("0", decimals)
}
