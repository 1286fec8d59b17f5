package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
	"github.com/BowlPulp/HodlSync/internal/domain/repositories"
)

// MockCall records one invocation of a mock method
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockUserRepository is a mock implementation of UserRepository backed by
// an in-memory user table, with function hooks for custom behavior
type MockUserRepository struct {
	mu     sync.RWMutex
	users  map[int64]*entities.User
	nextID int64

	CreateFunc        func(ctx context.Context, user *entities.User) (*entities.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*entities.User, error)
	GetByIDFunc       func(ctx context.Context, id int64) (*entities.User, error)
	GetAddressesFunc  func(ctx context.Context, userID int64) ([]string, error)
	AddAddressFunc    func(ctx context.Context, userID int64, address string) ([]string, error)
	RemoveAddressFunc func(ctx context.Context, userID int64, address string) ([]string, error)

	Calls []MockCall
}

var _ repositories.UserRepository = (*MockUserRepository)(nil)

// NewMockUserRepository creates an empty mock user repository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*entities.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) record(method string, args ...interface{}) {
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create", user.Email)

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}

	for _, u := range m.users {
		if u.Email == user.Email {
			return nil, entities.ErrEmailTaken
		}
	}

	stored := *user
	stored.ID = m.nextID
	m.nextID++
	m.users[stored.ID] = &stored

	result := stored
	return &result, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.record("GetByEmail", email)

	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}

	for _, u := range m.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.record("GetByID", id)

	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	result := *u
	return &result, nil
}

func (m *MockUserRepository) GetAddresses(ctx context.Context, userID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.record("GetAddresses", userID)

	if m.GetAddressesFunc != nil {
		return m.GetAddressesFunc(ctx, userID)
	}

	u, ok := m.users[userID]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return append([]string{}, u.Addresses...), nil
}

func (m *MockUserRepository) AddAddress(ctx context.Context, userID int64, address string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("AddAddress", userID, address)

	if m.AddAddressFunc != nil {
		return m.AddAddressFunc(ctx, userID, address)
	}

	u, ok := m.users[userID]
	if !ok {
		return nil, entities.ErrNotFound
	}
	u.Addresses = append(u.Addresses, address)
	return append([]string{}, u.Addresses...), nil
}

func (m *MockUserRepository) RemoveAddress(ctx context.Context, userID int64, address string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveAddress", userID, address)

	if m.RemoveAddressFunc != nil {
		return m.RemoveAddressFunc(ctx, userID, address)
	}

	u, ok := m.users[userID]
	if !ok {
		return nil, entities.ErrNotFound
	}

	filtered := make([]string, 0, len(u.Addresses))
	found := false
	for _, a := range u.Addresses {
		if a == address {
			found = true
			continue
		}
		filtered = append(filtered, a)
	}
	if !found {
		return nil, entities.ErrNotFound
	}
	u.Addresses = filtered
	return append([]string{}, filtered...), nil
}

// Seed inserts a user directly into the mock table
func (m *MockUserRepository) Seed(user *entities.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == 0 {
		user.ID = m.nextID
		m.nextID++
	} else if user.ID >= m.nextID {
		m.nextID = user.ID + 1
	}
	m.users[user.ID] = user
}

// MockMarketDataProvider is a mock implementation of MarketDataProvider
// with per-endpoint call counters
type MockMarketDataProvider struct {
	mu sync.Mutex

	GetWalletTokensFunc   func(ctx context.Context, address string) ([]entities.TokenHolding, error)
	GetWalletNetWorthFunc func(ctx context.Context, address string) (float64, error)

	TokenCalls    int
	NetWorthCalls int
	Calls         []MockCall
}

// NewMockMarketDataProvider creates a provider mock that returns empty data
func NewMockMarketDataProvider() *MockMarketDataProvider {
	return &MockMarketDataProvider{}
}

func (m *MockMarketDataProvider) GetWalletTokens(ctx context.Context, address string) ([]entities.TokenHolding, error) {
	m.mu.Lock()
	m.TokenCalls++
	m.Calls = append(m.Calls, MockCall{Method: "GetWalletTokens", Args: []interface{}{address}})
	fn := m.GetWalletTokensFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, address)
	}
	return []entities.TokenHolding{}, nil
}

func (m *MockMarketDataProvider) GetWalletNetWorth(ctx context.Context, address string) (float64, error) {
	m.mu.Lock()
	m.NetWorthCalls++
	m.Calls = append(m.Calls, MockCall{Method: "GetWalletNetWorth", Args: []interface{}{address}})
	fn := m.GetWalletNetWorthFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, address)
	}
	return 0, nil
}

// TotalCalls returns the number of provider calls across both endpoints
func (m *MockMarketDataProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TokenCalls + m.NetWorthCalls
}

// MockAddressRegistry is a mock implementation of the aggregator's
// AddressRegistry dependency
type MockAddressRegistry struct {
	mu        sync.Mutex
	addresses []string

	FetchAddressesFunc func(ctx context.Context, session entities.Session) ([]string, error)
	AddAddressFunc     func(ctx context.Context, session entities.Session, address string) ([]string, error)
	RemoveAddressFunc  func(ctx context.Context, session entities.Session, address string) ([]string, error)

	Calls []MockCall
}

// NewMockAddressRegistry creates a registry mock tracking the given list
func NewMockAddressRegistry(addresses ...string) *MockAddressRegistry {
	return &MockAddressRegistry{addresses: addresses}
}

// SetAddresses replaces the tracked list served by the default behavior
func (m *MockAddressRegistry) SetAddresses(addresses ...string) {
	m.mu.Lock()
	m.addresses = addresses
	m.mu.Unlock()
}

func (m *MockAddressRegistry) FetchAddresses(ctx context.Context, session entities.Session) ([]string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "FetchAddresses"})
	fn := m.FetchAddressesFunc
	current := append([]string{}, m.addresses...)
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, session)
	}
	return current, nil
}

func (m *MockAddressRegistry) AddAddress(ctx context.Context, session entities.Session, address string) ([]string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "AddAddress", Args: []interface{}{address}})
	fn := m.AddAddressFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, session, address)
	}

	m.mu.Lock()
	m.addresses = append(m.addresses, address)
	current := append([]string{}, m.addresses...)
	m.mu.Unlock()
	return current, nil
}

func (m *MockAddressRegistry) RemoveAddress(ctx context.Context, session entities.Session, address string) ([]string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "RemoveAddress", Args: []interface{}{address}})
	fn := m.RemoveAddressFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, session, address)
	}

	m.mu.Lock()
	filtered := make([]string, 0, len(m.addresses))
	for _, a := range m.addresses {
		if a != address {
			filtered = append(filtered, a)
		}
	}
	m.addresses = filtered
	current := append([]string{}, filtered...)
	m.mu.Unlock()
	return current, nil
}

// MockHealthChecker is a mock implementation of a health-checkable
// dependency
type MockHealthChecker struct {
	healthy bool
}

// NewMockHealthChecker creates a health checker with fixed status
func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	return &MockHealthChecker{healthy: healthy}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	if !m.healthy {
		return errors.New("connection refused")
	}
	return nil
}
