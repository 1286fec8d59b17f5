package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
	"github.com/BowlPulp/HodlSync/internal/infrastructure/cache"
	"github.com/BowlPulp/HodlSync/internal/testutil"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// newTestAggregator wires an aggregator over a memory store with a
// controllable clock
func newTestAggregator(registry AddressRegistry, provider MarketDataProvider, clock *time.Time) *AggregatorService {
	s := NewAggregatorService(registry, provider, cache.NewMemoryStore(), 15*time.Minute, zap.NewNop())
	if clock != nil {
		s.now = func() time.Time { return *clock }
	}
	return s
}

func findHolding(holdings []entities.AggregatedHolding, symbol string) *entities.AggregatedHolding {
	for i := range holdings {
		if holdings[i].Symbol == symbol {
			return &holdings[i]
		}
	}
	return nil
}

func TestAggregatorService_Refresh(t *testing.T) {
	ctx := context.Background()
	session := testutil.TestSession(1)

	t.Run("empty address set yields empty view with zero provider calls", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry()
		provider := testutil.NewMockMarketDataProvider()
		service := newTestAggregator(registry, provider, nil)

		view, err := service.Refresh(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(view.Holdings) != 0 {
			t.Errorf("expected no holdings, got %d", len(view.Holdings))
		}
		if view.NetWorth != nil {
			t.Errorf("expected nil net worth, got %+v", view.NetWorth)
		}
		if provider.TotalCalls() != 0 {
			t.Errorf("expected zero provider calls, got %d", provider.TotalCalls())
		}
	})

	t.Run("merges holdings across addresses by symbol", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA, testutil.TestAddressB)
		provider := testutil.NewMockMarketDataProvider()
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			if address == testutil.TestAddressA {
				return []entities.TokenHolding{testutil.ETHHolding(2, 3000)}, nil
			}
			return []entities.TokenHolding{
				testutil.ETHHolding(1, 3000),
				testutil.USDCHolding(500, 1),
			}, nil
		}
		provider.GetWalletNetWorthFunc = func(ctx context.Context, address string) (float64, error) {
			if address == testutil.TestAddressA {
				return 6000, nil
			}
			return 3500, nil
		}

		service := newTestAggregator(registry, provider, nil)

		view, err := service.Refresh(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(view.Holdings) != 2 {
			t.Fatalf("expected 2 holdings, got %d", len(view.Holdings))
		}

		eth := findHolding(view.Holdings, "ETH")
		if eth == nil {
			t.Fatal("expected ETH holding")
		}
		if !almostEqual(eth.Balance, 3.0) {
			t.Errorf("expected ETH balance 3.0, got %f", eth.Balance)
		}
		if !almostEqual(eth.USDValue, 9000) {
			t.Errorf("expected ETH usd value 9000, got %f", eth.USDValue)
		}

		usdc := findHolding(view.Holdings, "USDC")
		if usdc == nil {
			t.Fatal("expected USDC holding")
		}
		if !almostEqual(usdc.Balance, 500) {
			t.Errorf("expected USDC balance 500, got %f", usdc.Balance)
		}
		if !almostEqual(usdc.USDValue, 500) {
			t.Errorf("expected USDC usd value 500, got %f", usdc.USDValue)
		}

		if view.NetWorth == nil {
			t.Fatal("expected net worth snapshot")
		}
		if !almostEqual(view.NetWorth.TotalNetWorthUSD, 9500) {
			t.Errorf("expected net worth 9500, got %f", view.NetWorth.TotalNetWorthUSD)
		}

		// Holdings are sorted by USD value, largest first
		if view.Holdings[0].Symbol != "ETH" {
			t.Errorf("expected ETH first, got %s", view.Holdings[0].Symbol)
		}
	})

	t.Run("second refresh inside the freshness window issues no provider calls", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA, testutil.TestAddressB)
		provider := testutil.NewMockMarketDataProvider()
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			return []entities.TokenHolding{testutil.ETHHolding(1, 3000)}, nil
		}
		provider.GetWalletNetWorthFunc = func(ctx context.Context, address string) (float64, error) {
			return 3000, nil
		}

		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		service := newTestAggregator(registry, provider, &now)

		first, err := service.Refresh(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		callsAfterFirst := provider.TotalCalls()
		if callsAfterFirst != 4 {
			t.Fatalf("expected 4 provider calls for 2 addresses, got %d", callsAfterFirst)
		}

		now = now.Add(5 * time.Minute)

		second, err := service.Refresh(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.TotalCalls() != callsAfterFirst {
			t.Errorf("expected no additional provider calls, got %d more",
				provider.TotalCalls()-callsAfterFirst)
		}

		if len(first.Holdings) != len(second.Holdings) {
			t.Fatalf("holdings count changed between refreshes")
		}
		for i := range first.Holdings {
			if first.Holdings[i] != second.Holdings[i] {
				t.Errorf("holding %d changed: %+v vs %+v", i, first.Holdings[i], second.Holdings[i])
			}
		}
	})

	t.Run("stale entries are refetched after the freshness window", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA)
		provider := testutil.NewMockMarketDataProvider()
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			return []entities.TokenHolding{testutil.ETHHolding(1, 3000)}, nil
		}

		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		service := newTestAggregator(registry, provider, &now)

		if _, err := service.Refresh(ctx, session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		callsAfterFirst := provider.TokenCalls

		now = now.Add(16 * time.Minute)

		if _, err := service.Refresh(ctx, session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.TokenCalls != callsAfterFirst+1 {
			t.Errorf("expected one refetch after expiry, got %d extra",
				provider.TokenCalls-callsAfterFirst)
		}
	})

	t.Run("falls back to stale cache when the provider fails", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA)
		provider := testutil.NewMockMarketDataProvider()
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			return []entities.TokenHolding{testutil.ETHHolding(2, 3000)}, nil
		}
		provider.GetWalletNetWorthFunc = func(ctx context.Context, address string) (float64, error) {
			return 6000, nil
		}

		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		service := newTestAggregator(registry, provider, &now)

		if _, err := service.Refresh(ctx, session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Expire the cache, then break the provider
		now = now.Add(20 * time.Minute)
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			return nil, entities.ErrProviderUnavailable
		}
		provider.GetWalletNetWorthFunc = func(ctx context.Context, address string) (float64, error) {
			return 0, entities.ErrProviderUnavailable
		}

		view, err := service.Refresh(ctx, session)
		if err != nil {
			t.Fatalf("refresh must not fail on provider errors: %v", err)
		}

		eth := findHolding(view.Holdings, "ETH")
		if eth == nil {
			t.Fatal("expected stale ETH holding to survive")
		}
		if !almostEqual(eth.Balance, 2.0) {
			t.Errorf("expected stale balance 2.0, got %f", eth.Balance)
		}
		if view.NetWorth == nil {
			t.Fatal("expected stale net worth to survive")
		}
		if !almostEqual(view.NetWorth.TotalNetWorthUSD, 6000) {
			t.Errorf("expected stale net worth 6000, got %f", view.NetWorth.TotalNetWorthUSD)
		}
	})

	t.Run("provider failure with no cache yields empty contribution", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA, testutil.TestAddressB)
		provider := testutil.NewMockMarketDataProvider()
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			if address == testutil.TestAddressA {
				return nil, entities.ErrProviderUnavailable
			}
			return []entities.TokenHolding{testutil.USDCHolding(500, 1)}, nil
		}
		provider.GetWalletNetWorthFunc = func(ctx context.Context, address string) (float64, error) {
			return 0, entities.ErrProviderUnavailable
		}

		service := newTestAggregator(registry, provider, nil)

		view, err := service.Refresh(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(view.Holdings) != 1 {
			t.Fatalf("expected only the healthy address's holdings, got %d", len(view.Holdings))
		}
		if view.Holdings[0].Symbol != "USDC" {
			t.Errorf("expected USDC, got %s", view.Holdings[0].Symbol)
		}
		if view.NetWorth != nil {
			t.Errorf("expected no net worth without cache, got %+v", view.NetWorth)
		}
	})

	t.Run("zero unit price yields exactly zero usd value", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA)
		provider := testutil.NewMockMarketDataProvider()
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			return []entities.TokenHolding{testutil.ETHHolding(5, 0)}, nil
		}

		service := newTestAggregator(registry, provider, nil)

		view, err := service.Refresh(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		eth := findHolding(view.Holdings, "ETH")
		if eth == nil {
			t.Fatal("expected ETH holding")
		}
		if eth.USDValue != 0 {
			t.Errorf("expected usd value exactly 0, got %f", eth.USDValue)
		}
		if math.IsNaN(eth.USDValue) {
			t.Error("usd value must not be NaN")
		}
	})

	t.Run("propagates registry failures", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry()
		registry.FetchAddressesFunc = func(ctx context.Context, session entities.Session) ([]string, error) {
			return nil, entities.ErrUnauthorized
		}
		provider := testutil.NewMockMarketDataProvider()
		service := newTestAggregator(registry, provider, nil)

		_, err := service.Refresh(ctx, session)
		if !errors.Is(err, entities.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if provider.TotalCalls() != 0 {
			t.Errorf("expected zero provider calls, got %d", provider.TotalCalls())
		}
	})
}

func TestAggregatorService_GetPortfolio(t *testing.T) {
	ctx := context.Background()
	session := testutil.TestSession(1)

	t.Run("serves the committed view inside the freshness window", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA)
		provider := testutil.NewMockMarketDataProvider()

		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		service := newTestAggregator(registry, provider, &now)

		first, err := service.GetPortfolio(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		callsAfterFirst := provider.TotalCalls()

		now = now.Add(10 * time.Minute)

		second, err := service.GetPortfolio(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second != first {
			t.Error("expected the committed view to be reused")
		}
		if provider.TotalCalls() != callsAfterFirst {
			t.Errorf("expected no additional provider calls, got %d more",
				provider.TotalCalls()-callsAfterFirst)
		}
	})

	t.Run("refreshes once the committed view ages out", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA)
		provider := testutil.NewMockMarketDataProvider()
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			return []entities.TokenHolding{testutil.ETHHolding(2, 3000)}, nil
		}

		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		service := newTestAggregator(registry, provider, &now)

		first, err := service.GetPortfolio(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		callsAfterFirst := provider.TotalCalls()

		now = now.Add(2 * time.Hour)

		second, err := service.GetPortfolio(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.TotalCalls() <= callsAfterFirst {
			t.Error("expected an aged-out dashboard load to hit the provider")
		}
		if second == first {
			t.Error("expected a newly committed view")
		}
		if !second.RefreshedAt.Equal(now) {
			t.Errorf("expected refresh time %v, got %v", now, second.RefreshedAt)
		}
	})
}

func TestAggregatorService_EvictStale(t *testing.T) {
	registry := testutil.NewMockAddressRegistry()
	provider := testutil.NewMockMarketDataProvider()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	service := newTestAggregator(registry, provider, &now)

	for userID := int64(1); userID <= 3; userID++ {
		gen := service.beginRefresh(userID)
		service.commit(userID, gen, &PortfolioView{RefreshedAt: now})
	}

	now = now.Add(20 * time.Minute)

	gen := service.beginRefresh(4)
	fresh := &PortfolioView{RefreshedAt: now}
	service.commit(4, gen, fresh)

	service.mu.Lock()
	service.evictStale()
	views, gens := len(service.views), len(service.gens)
	kept := service.views[4]
	service.mu.Unlock()

	if views != 1 || gens != 1 {
		t.Errorf("expected only the fresh user to survive, got %d views and %d gens", views, gens)
	}
	if kept != fresh {
		t.Error("expected the fresh view to be untouched")
	}
}

func TestAggregatorService_Invalidation(t *testing.T) {
	ctx := context.Background()
	session := testutil.TestSession(1)

	t.Run("address mutation invalidates all cache keys", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA)
		provider := testutil.NewMockMarketDataProvider()
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			return []entities.TokenHolding{testutil.ETHHolding(2, 3000)}, nil
		}
		provider.GetWalletNetWorthFunc = func(ctx context.Context, address string) (float64, error) {
			return 6000, nil
		}

		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		service := newTestAggregator(registry, provider, &now)

		if _, err := service.Refresh(ctx, session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		callsAfterFirst := provider.TotalCalls()

		if _, err := service.AddAddress(ctx, session, testutil.TestAddressB); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Immediately after the mutation, a refresh must not reuse any
		// pre-mutation cache entries even though they are age-fresh
		if _, err := service.Refresh(ctx, session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := callsAfterFirst + 4 // tokens + networth for both addresses
		if provider.TotalCalls() != expected {
			t.Errorf("expected %d provider calls after invalidation, got %d",
				expected, provider.TotalCalls())
		}
	})

	t.Run("removing an address drops its holdings from the aggregate", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA, testutil.TestAddressB)
		provider := testutil.NewMockMarketDataProvider()
		provider.GetWalletTokensFunc = func(ctx context.Context, address string) ([]entities.TokenHolding, error) {
			if address == testutil.TestAddressA {
				return []entities.TokenHolding{testutil.ETHHolding(2, 3000)}, nil
			}
			return []entities.TokenHolding{
				testutil.ETHHolding(1, 3000),
				testutil.USDCHolding(500, 1),
			}, nil
		}
		provider.GetWalletNetWorthFunc = func(ctx context.Context, address string) (float64, error) {
			if address == testutil.TestAddressA {
				return 6000, nil
			}
			return 3500, nil
		}

		service := newTestAggregator(registry, provider, nil)

		if _, err := service.Refresh(ctx, session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := service.RemoveAddress(ctx, session, testutil.TestAddressB); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		view, err := service.Refresh(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(view.Holdings) != 1 {
			t.Fatalf("expected 1 holding after removal, got %d", len(view.Holdings))
		}
		eth := view.Holdings[0]
		if eth.Symbol != "ETH" || !almostEqual(eth.Balance, 2.0) || !almostEqual(eth.USDValue, 6000) {
			t.Errorf("expected ETH 2.0 worth 6000, got %+v", eth)
		}
		if view.NetWorth == nil || !almostEqual(view.NetWorth.TotalNetWorthUSD, 6000) {
			t.Errorf("expected recomputed net worth 6000, got %+v", view.NetWorth)
		}
	})

	t.Run("superseded refresh does not overwrite a newer committed view", func(t *testing.T) {
		registry := testutil.NewMockAddressRegistry(testutil.TestAddressA)
		provider := testutil.NewMockMarketDataProvider()
		service := newTestAggregator(registry, provider, nil)

		oldGen := service.beginRefresh(session.UserID)
		newGen := service.beginRefresh(session.UserID)

		newer := &PortfolioView{Addresses: []string{testutil.TestAddressA}, RefreshedAt: time.Now()}
		service.commit(session.UserID, newGen, newer)

		older := &PortfolioView{Addresses: []string{}, RefreshedAt: time.Now()}
		service.commit(session.UserID, oldGen, older)

		got, err := service.GetPortfolio(ctx, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != newer {
			t.Error("expected the newer view to win")
		}
	})
}

func TestFoldHoldings(t *testing.T) {
	t.Run("is commutative over address order", func(t *testing.T) {
		listA := []entities.TokenHolding{testutil.ETHHolding(2, 3000)}
		listB := []entities.TokenHolding{
			testutil.ETHHolding(1, 3000),
			testutil.USDCHolding(500, 1),
		}
		listC := []entities.TokenHolding{
			testutil.ETHHolding(4, 3000),
			testutil.USDCHolding(250, 1),
		}

		orders := [][][]entities.TokenHolding{
			{listA, listB, listC},
			{listC, listA, listB},
			{listB, listC, listA},
		}

		var reference []entities.AggregatedHolding
		for i, order := range orders {
			holdings := foldHoldings(order)
			if i == 0 {
				reference = holdings
				continue
			}
			if len(holdings) != len(reference) {
				t.Fatalf("order %d produced %d holdings, want %d", i, len(holdings), len(reference))
			}
			for j := range holdings {
				if holdings[j].Symbol != reference[j].Symbol {
					t.Errorf("order %d: symbol %s, want %s", i, holdings[j].Symbol, reference[j].Symbol)
				}
				if !almostEqual(holdings[j].Balance, reference[j].Balance) {
					t.Errorf("order %d: %s balance %f, want %f",
						i, holdings[j].Symbol, holdings[j].Balance, reference[j].Balance)
				}
			}
		}
	})

	t.Run("empty input yields empty table", func(t *testing.T) {
		holdings := foldHoldings(nil)
		if len(holdings) != 0 {
			t.Errorf("expected empty table, got %d entries", len(holdings))
		}
	})
}
