package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
)

// Client is the Address Registry Client: an HTTP client for the account &
// registry service, the single source of truth for which addresses a user
// tracks. The user's session token is forwarded as the auth cookie on every
// call; the client keeps no derived state.
type Client struct {
	baseURL    string
	cookieName string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new registry client
func NewClient(baseURL, cookieName string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookieName: cookieName,
		httpClient: httpClient,
		logger:     logger,
	}
}

// fetchAddressesResponse is the wire shape of GET /fetch-addresses
type fetchAddressesResponse struct {
	Success   bool     `json:"success"`
	Addresses []string `json:"addresses"`
}

// mutateAddressResponse is the wire shape of the add/remove endpoints
type mutateAddressResponse struct {
	Message   string   `json:"message"`
	Addresses []string `json:"addressesToTrack"`
}

// errorResponse is the wire shape of non-2xx registry responses
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FetchAddresses returns the user's current tracked address list
func (c *Client) FetchAddresses(ctx context.Context, session entities.Session) ([]string, error) {
	var response fetchAddressesResponse
	if err := c.do(ctx, session, http.MethodGet, "/api/users/fetch-addresses", nil, &response); err != nil {
		return nil, err
	}
	return response.Addresses, nil
}

// AddAddress registers a new tracked address and returns the updated list.
// Empty or whitespace-only input is rejected before any network call.
func (c *Client) AddAddress(ctx context.Context, session entities.Session, address string) ([]string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address must not be empty", entities.ErrValidation)
	}

	body := map[string]string{"address": address}
	var response mutateAddressResponse
	if err := c.do(ctx, session, http.MethodPatch, "/api/users/add-address", body, &response); err != nil {
		return nil, err
	}
	return response.Addresses, nil
}

// RemoveAddress removes a tracked address and returns the updated list.
// Removing an address the server no longer tracks is treated as a no-op:
// the current list is re-fetched to confirm actual state.
func (c *Client) RemoveAddress(ctx context.Context, session entities.Session, address string) ([]string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address must not be empty", entities.ErrValidation)
	}

	body := map[string]string{"address": address}
	var response mutateAddressResponse
	err := c.do(ctx, session, http.MethodPatch, "/api/users/remove-address", body, &response)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			c.logger.Debug("Remove of untracked address, re-fetching list",
				zap.String("address", address),
			)
			return c.FetchAddresses(ctx, session)
		}
		return nil, err
	}
	return response.Addresses, nil
}

// do issues a registry request with the session cookie attached and maps
// non-2xx statuses onto the domain error taxonomy
func (c *Client) do(ctx context.Context, session entities.Session, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", entities.ErrServer, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: c.cookieName, Value: session.Token})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing request: %v", entities.ErrServer, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", entities.ErrServer, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		_ = json.Unmarshal(data, &errResp)
		detail := errResp.Error
		if detail == "" {
			detail = errResp.Message
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", entities.ErrUnauthorized, detail)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", entities.ErrNotFound, detail)
		default:
			return fmt.Errorf("%w: HTTP %d: %s", entities.ErrServer, resp.StatusCode, detail)
		}
	}

	if dest != nil {
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("%w: malformed response: %v", entities.ErrServer, err)
		}
	}

	return nil
}
