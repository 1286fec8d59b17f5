package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/BowlPulp/HodlSync/internal/config"
	"github.com/BowlPulp/HodlSync/internal/domain/entities"
)

// MoralisClient is an HTTP client for the Moralis wallet API. It supplies
// per-address token balances and per-address net worth figures. Every
// failure is wrapped as entities.ErrProviderUnavailable so callers can
// apply the stale-cache fallback uniformly.
type MoralisClient struct {
	baseURL    string
	apiKey     string
	chain      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewMoralisClient creates a new Moralis API client
func NewMoralisClient(cfg config.ProviderConfig, logger *zap.Logger) *MoralisClient {
	return &MoralisClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		chain:      cfg.Chain,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// walletTokensResponse is the wire shape of the token-list endpoint
type walletTokensResponse struct {
	Result []entities.TokenHolding `json:"result"`
}

// netWorthResponse is the wire shape of the net-worth endpoint
type netWorthResponse struct {
	TotalNetWorthUSD float64 `json:"total_networth_usd"`
}

// GetWalletTokens fetches the token balance list for one wallet address
func (c *MoralisClient) GetWalletTokens(ctx context.Context, address string) ([]entities.TokenHolding, error) {
	path := fmt.Sprintf("/wallets/%s/tokens?chain=%s&exclude_spam=true",
		url.PathEscape(address), url.QueryEscape(c.chain))

	var response walletTokensResponse
	if err := c.getJSON(ctx, path, &response); err != nil {
		return nil, err
	}

	return response.Result, nil
}

// GetWalletNetWorth fetches the USD net worth for one wallet address
func (c *MoralisClient) GetWalletNetWorth(ctx context.Context, address string) (float64, error) {
	path := fmt.Sprintf("/wallets/%s/net-worth?exclude_spam=true&exclude_unverified_contracts=false",
		url.PathEscape(address))

	var response netWorthResponse
	if err := c.getJSON(ctx, path, &response); err != nil {
		return 0, err
	}

	return response.TotalNetWorthUSD, nil
}

// getJSON performs an authenticated GET request and unmarshals the response
func (c *MoralisClient) getJSON(ctx context.Context, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", entities.ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing request: %v", entities.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", entities.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Provider returned non-200 status",
			zap.Int("status", resp.StatusCode),
			zap.String("path", path),
		)
		return fmt.Errorf("%w: HTTP %d from provider", entities.ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", entities.ErrProviderUnavailable, err)
	}

	return nil
}
