package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
	"github.com/BowlPulp/HodlSync/internal/infrastructure/cache"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hodlsync_provider_requests_total",
			Help: "Total number of market-data provider requests",
		},
		[]string{"endpoint", "outcome"},
	)

	cacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hodlsync_cache_events_total",
			Help: "Cache resolution outcomes by kind",
		},
		[]string{"kind"},
	)

	refreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hodlsync_refresh_duration_seconds",
			Help:    "Duration of full portfolio refreshes",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// MarketDataProvider supplies per-address token balances and net worth
// figures from an external blockchain data API
type MarketDataProvider interface {
	GetWalletTokens(ctx context.Context, address string) ([]entities.TokenHolding, error)
	GetWalletNetWorth(ctx context.Context, address string) (float64, error)
}

// AddressRegistry is the aggregator's view of the tracked-address registry
type AddressRegistry interface {
	FetchAddresses(ctx context.Context, session entities.Session) ([]string, error)
	AddAddress(ctx context.Context, session entities.Session, address string) ([]string, error)
	RemoveAddress(ctx context.Context, session entities.Session, address string) ([]string, error)
}

// PortfolioView is the aggregated dashboard state for one user
type PortfolioView struct {
	Addresses   []string                     `json:"addresses"`
	Holdings    []entities.AggregatedHolding `json:"holdings"`
	NetWorth    *entities.PortfolioSnapshot  `json:"net_worth"`
	RefreshedAt time.Time                    `json:"refreshed_at"`
}

// tokenCacheEntry wraps a per-address token list with its fetch time
type tokenCacheEntry struct {
	Tokens    []entities.TokenHolding `json:"tokens"`
	FetchedAt time.Time               `json:"fetched_at"`
}

// netWorthCacheEntry wraps the aggregate net worth scalar. Addresses record
// the address-set identity the figure was computed for: any membership
// change invalidates it regardless of age.
type netWorthCacheEntry struct {
	Total     float64   `json:"total"`
	Addresses []string  `json:"addresses"`
	FetchedAt time.Time `json:"fetched_at"`
}

// AggregatorService produces the aggregated holdings table and net worth
// snapshot for a user's tracked addresses, minimizing provider calls with a
// per-key TTL cache and degrading to stale data when the provider fails.
type AggregatorService struct {
	registry AddressRegistry
	provider MarketDataProvider
	cache    cache.Store
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	gens  map[int64]uint64
	views map[int64]*PortfolioView
}

// NewAggregatorService creates a new aggregator service
func NewAggregatorService(
	registry AddressRegistry,
	provider MarketDataProvider,
	store cache.Store,
	ttl time.Duration,
	logger *zap.Logger,
) *AggregatorService {
	return &AggregatorService{
		registry: registry,
		provider: provider,
		cache:    store,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		gens:     make(map[int64]uint64),
		views:    make(map[int64]*PortfolioView),
	}
}

// viewSweepThreshold is the committed-view count past which a commit also
// evicts views that have aged out of the freshness window
const viewSweepThreshold = 1024

func userPrefix(userID int64) string {
	return fmt.Sprintf("user:%d:", userID)
}

func tokensKey(userID int64, address string) string {
	return userPrefix(userID) + "tokens:" + strings.ToLower(address)
}

func netWorthKey(userID int64) string {
	return userPrefix(userID) + "networth"
}

// GetPortfolio returns the last committed view for the user while it is
// inside the freshness window, refreshing otherwise. The per-key cache makes
// a refresh of a partially fresh view cheap.
func (s *AggregatorService) GetPortfolio(ctx context.Context, session entities.Session) (*PortfolioView, error) {
	s.mu.Lock()
	view := s.views[session.UserID]
	s.mu.Unlock()

	if view != nil && s.now().Sub(view.RefreshedAt) < s.ttl {
		return view, nil
	}
	return s.Refresh(ctx, session)
}

// Refresh rebuilds the user's portfolio view from the current tracked
// address list. Provider failures degrade to cached data and never fail the
// refresh; only registry failures propagate.
func (s *AggregatorService) Refresh(ctx context.Context, session entities.Session) (*PortfolioView, error) {
	start := s.now()
	defer func() { refreshDuration.Observe(s.now().Sub(start).Seconds()) }()

	gen := s.beginRefresh(session.UserID)

	addresses, err := s.registry.FetchAddresses(ctx, session)
	if err != nil {
		return nil, err
	}

	if len(addresses) == 0 {
		if err := s.cache.Delete(ctx, netWorthKey(session.UserID)); err != nil {
			s.logger.Warn("Failed to clear net worth cache", zap.Error(err))
		}
		view := &PortfolioView{
			Addresses:   []string{},
			Holdings:    []entities.AggregatedHolding{},
			NetWorth:    nil,
			RefreshedAt: s.now(),
		}
		return s.commit(session.UserID, gen, view), nil
	}

	// Fan out per-address token fetches, then fold only after every fetch
	// has settled. Results land in a per-index slot so the goroutines share
	// no mutable state.
	perAddress := make([][]entities.TokenHolding, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addresses {
		i, addr := i, addr
		g.Go(func() error {
			perAddress[i] = s.resolveTokens(gctx, session.UserID, addr)
			return nil
		})
	}
	_ = g.Wait()

	holdings := foldHoldings(perAddress)
	snapshot := s.resolveNetWorth(ctx, session.UserID, addresses)

	view := &PortfolioView{
		Addresses:   addresses,
		Holdings:    holdings,
		NetWorth:    snapshot,
		RefreshedAt: s.now(),
	}
	return s.commit(session.UserID, gen, view), nil
}

// Invalidate discards every cache key and the committed view for the user
func (s *AggregatorService) Invalidate(ctx context.Context, session entities.Session) error {
	s.mu.Lock()
	s.gens[session.UserID]++
	delete(s.views, session.UserID)
	s.mu.Unlock()

	if err := s.cache.DeletePrefix(ctx, userPrefix(session.UserID)); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// AddAddress registers a new tracked address via the registry, then
// invalidates all cached data. Invalidation is sequenced strictly after the
// registry acknowledges the mutation.
func (s *AggregatorService) AddAddress(ctx context.Context, session entities.Session, address string) ([]string, error) {
	addresses, err := s.registry.AddAddress(ctx, session, address)
	if err != nil {
		return nil, err
	}

	if err := s.Invalidate(ctx, session); err != nil {
		s.logger.Warn("Cache invalidation after add failed", zap.Error(err))
	}
	return addresses, nil
}

// RemoveAddress removes a tracked address via the registry, then
// invalidates all cached data
func (s *AggregatorService) RemoveAddress(ctx context.Context, session entities.Session, address string) ([]string, error) {
	addresses, err := s.registry.RemoveAddress(ctx, session, address)
	if err != nil {
		return nil, err
	}

	if err := s.Invalidate(ctx, session); err != nil {
		s.logger.Warn("Cache invalidation after remove failed", zap.Error(err))
	}
	return addresses, nil
}

// beginRefresh bumps and returns the user's refresh generation
func (s *AggregatorService) beginRefresh(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
	return s.gens[userID]
}

// commit installs the view atomically unless a newer refresh has started
// for the user since gen was taken (last-refresh-wins). The computed view
// is still returned to this caller either way.
func (s *AggregatorService) commit(userID int64, gen uint64, view *PortfolioView) *PortfolioView {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gens[userID] != gen {
		s.logger.Debug("Dropping superseded refresh result",
			zap.Int64("user_id", userID),
			zap.Uint64("gen", gen),
		)
		return view
	}
	s.views[userID] = view

	if len(s.views) >= viewSweepThreshold {
		s.evictStale()
	}
	return view
}

// evictStale drops committed views past the freshness window along with
// their generation counters, keeping the per-user maps bounded on a
// long-running gateway. Dropping a generation turns any in-flight commit
// for that user into a no-op; the next load refreshes again. Caller must
// hold mu.
func (s *AggregatorService) evictStale() {
	now := s.now()
	for id, view := range s.views {
		if now.Sub(view.RefreshedAt) >= s.ttl {
			delete(s.views, id)
			delete(s.gens, id)
		}
	}
}

// resolveTokens returns the token list for one address: a fresh cache hit,
// a new fetch, a stale fallback after a failed fetch, or an empty list when
// nothing else is available. It never fails the surrounding refresh.
func (s *AggregatorService) resolveTokens(ctx context.Context, userID int64, address string) []entities.TokenHolding {
	key := tokensKey(userID, address)

	var entry tokenCacheEntry
	cached := false
	if err := s.cache.Get(ctx, key, &entry); err == nil {
		cached = true
		if s.now().Sub(entry.FetchedAt) < s.ttl {
			cacheEventsTotal.WithLabelValues("hit").Inc()
			return entry.Tokens
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	cacheEventsTotal.WithLabelValues("miss").Inc()

	tokens, err := s.provider.GetWalletTokens(ctx, address)
	if err != nil {
		providerRequestsTotal.WithLabelValues("tokens", "error").Inc()
		s.logger.Warn("Token fetch failed",
			zap.String("address", address),
			zap.Error(err),
		)
		if cached {
			cacheEventsTotal.WithLabelValues("stale_fallback").Inc()
			return entry.Tokens
		}
		return []entities.TokenHolding{}
	}
	providerRequestsTotal.WithLabelValues("tokens", "success").Inc()

	if err := s.cache.Set(ctx, key, tokenCacheEntry{Tokens: tokens, FetchedAt: s.now()}); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return tokens
}

// resolveNetWorth returns the aggregate net worth snapshot for the address
// set, applying the same fresh/fetch/stale-fallback policy as token data.
// The cached figure is only fresh if the address-set membership is
// unchanged.
func (s *AggregatorService) resolveNetWorth(ctx context.Context, userID int64, addresses []string) *entities.PortfolioSnapshot {
	key := netWorthKey(userID)

	var entry netWorthCacheEntry
	cached := false
	if err := s.cache.Get(ctx, key, &entry); err == nil {
		cached = true
		if sameAddressSet(entry.Addresses, addresses) && s.now().Sub(entry.FetchedAt) < s.ttl {
			cacheEventsTotal.WithLabelValues("hit").Inc()
			return &entities.PortfolioSnapshot{
				TotalNetWorthUSD: entry.Total,
				FetchedAt:        entry.FetchedAt,
			}
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	cacheEventsTotal.WithLabelValues("miss").Inc()

	totals := make([]float64, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addresses {
		i, addr := i, addr
		g.Go(func() error {
			value, err := s.provider.GetWalletNetWorth(gctx, addr)
			if err != nil {
				return err
			}
			totals[i] = value
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		providerRequestsTotal.WithLabelValues("networth", "error").Inc()
		s.logger.Warn("Net worth fetch failed", zap.Error(err))
		if cached {
			cacheEventsTotal.WithLabelValues("stale_fallback").Inc()
			return &entities.PortfolioSnapshot{
				TotalNetWorthUSD: entry.Total,
				FetchedAt:        entry.FetchedAt,
			}
		}
		return nil
	}
	providerRequestsTotal.WithLabelValues("networth", "success").Inc()

	var total float64
	for _, v := range totals {
		total += v
	}

	fetchedAt := s.now()
	if err := s.cache.Set(ctx, key, netWorthCacheEntry{
		Total:     total,
		Addresses: normalizedSet(addresses),
		FetchedAt: fetchedAt,
	}); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}

	return &entities.PortfolioSnapshot{
		TotalNetWorthUSD: total,
		FetchedAt:        fetchedAt,
	}
}

// foldHoldings merges per-address token lists into one symbol-keyed table.
// Balances accumulate commutatively; name, price and icon take the values
// of whichever list folds last for the symbol.
func foldHoldings(perAddress [][]entities.TokenHolding) []entities.AggregatedHolding {
	bySymbol := make(map[string]*entities.AggregatedHolding)
	for _, tokens := range perAddress {
		for _, t := range tokens {
			agg, ok := bySymbol[t.Symbol]
			if !ok {
				agg = &entities.AggregatedHolding{Symbol: t.Symbol}
				bySymbol[t.Symbol] = agg
			}
			agg.Balance += t.HumanBalance()
			agg.Name = t.Name
			agg.USDPrice = t.USDPrice
			agg.Icon = t.IconURL()
		}
	}

	holdings := make([]entities.AggregatedHolding, 0, len(bySymbol))
	for _, agg := range bySymbol {
		agg.USDValue = agg.Balance * agg.USDPrice
		holdings = append(holdings, *agg)
	}

	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].USDValue != holdings[j].USDValue {
			return holdings[i].USDValue > holdings[j].USDValue
		}
		return holdings[i].Symbol < holdings[j].Symbol
	})
	return holdings
}

// normalizedSet returns a sorted lowercase copy of the address list
func normalizedSet(addresses []string) []string {
	set := make([]string, len(addresses))
	for i, a := range addresses {
		set[i] = strings.ToLower(a)
	}
	sort.Strings(set)
	return set
}

// sameAddressSet reports whether two address lists have the same
// membership, ignoring order and case
func sameAddressSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	na, nb := normalizedSet(a), normalizedSet(b)
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
