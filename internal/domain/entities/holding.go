package entities

import (
	"math/big"
	"time"
)

// TokenHolding is a single token position for one wallet address, as
// returned by the market-data provider
type TokenHolding struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Balance   string  `json:"balance"` // Raw integer balance (wei-style)
	Decimals  int     `json:"decimals"`
	USDPrice  float64 `json:"usd_price"` // Zero means unknown/illiquid, not an error
	Thumbnail string  `json:"thumbnail"`
	Logo      string  `json:"logo"`
}

// HumanBalance converts the raw integer balance to a human-readable value
// using the token's decimals. Malformed balances count as zero.
func (t TokenHolding) HumanBalance() float64 {
	raw, ok := new(big.Float).SetString(t.Balance)
	if !ok {
		return 0
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(
		big.NewInt(10), big.NewInt(int64(t.Decimals)), nil,
	))
	human, _ := new(big.Float).Quo(raw, scale).Float64()
	return human
}

// IconURL returns the best available icon for the token
func (t TokenHolding) IconURL() string {
	if t.Thumbnail != "" {
		return t.Thumbnail
	}
	return t.Logo
}

// AggregatedHolding is one entry per distinct symbol across all tracked
// addresses. Balance is the cumulative human-readable balance; price, name
// and icon reflect whichever address contributed last.
type AggregatedHolding struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Balance  float64 `json:"balance"`
	USDPrice float64 `json:"usd_price"`
	USDValue float64 `json:"usd_value"`
	Icon     string  `json:"icon,omitempty"`
}

// PortfolioSnapshot is the aggregate net worth for the current address set
type PortfolioSnapshot struct {
	TotalNetWorthUSD float64   `json:"total_networth_usd"`
	FetchedAt        time.Time `json:"fetched_at"`
}
