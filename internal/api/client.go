package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/platform"
	"acdm-platform/internal/service"
	"acdm-platform/internal/verification"
)

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Kind   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Msg, e.Status, e.Kind)
}

// Client calls the HTTP API as one caller.
type Client struct {
	base   string
	caller domain.Address
	http   *http.Client
}

// NewClient creates a client for baseURL acting as caller.
func NewClient(baseURL string, caller domain.Address) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		caller: caller,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// Caller returns the address sent with every request.
func (c *Client) Caller() domain.Address {
	return c.caller
}

// Register links the caller to referrer.
func (c *Client) Register(ctx context.Context, referrer domain.Address) (platform.Registered, error) {
	var out platform.Registered
	err := c.do(ctx, http.MethodPost, "/api/v1/referrals", RegisterRequest{Referrer: referrer}, &out)
	return out, err
}

// Referrer returns participant's referrer.
func (c *Client) Referrer(ctx context.Context, participant domain.Address) (domain.Address, error) {
	var out ReferrerResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/referrals/"+url.PathEscape(string(participant)), nil, &out)
	return out.Referrer, err
}

// StartSaleRound starts the next sale round.
func (c *Client) StartSaleRound(ctx context.Context) (platform.RoundStarted, error) {
	var out platform.RoundStarted
	err := c.do(ctx, http.MethodPost, "/api/v1/rounds/sale", nil, &out)
	return out, err
}

// StartTradeRound starts the next trade round.
func (c *Client) StartTradeRound(ctx context.Context) (platform.RoundStarted, error) {
	var out platform.RoundStarted
	err := c.do(ctx, http.MethodPost, "/api/v1/rounds/trade", nil, &out)
	return out, err
}

// BuyACDM buys amount tokens paying payment wei.
func (c *Client) BuyACDM(ctx context.Context, amount, payment *big.Int) (platform.Purchase, error) {
	var out platform.Purchase
	err := c.do(ctx, http.MethodPost, "/api/v1/purchases", BuyRequest{Amount: amount, Payment: payment}, &out)
	return out, err
}

// Approve lets the platform escrow up to amount of the caller's tokens.
func (c *Client) Approve(ctx context.Context, amount *big.Int) (service.Balance, error) {
	var out service.Balance
	err := c.do(ctx, http.MethodPost, "/api/v1/approvals", ApproveRequest{Amount: amount}, &out)
	return out, err
}

// AddOrder places a sell order.
func (c *Client) AddOrder(ctx context.Context, amount, pricePerToken *big.Int) (platform.OrderPlaced, error) {
	var out platform.OrderPlaced
	err := c.do(ctx, http.MethodPost, "/api/v1/orders", AddOrderRequest{Amount: amount, PricePerToken: pricePerToken}, &out)
	return out, err
}

// RemoveOrder cancels order id.
func (c *Client) RemoveOrder(ctx context.Context, id uint64) (platform.OrderRemoved, error) {
	var out platform.OrderRemoved
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/orders/%d", id), nil, &out)
	return out, err
}

// RedeemOrder buys amount tokens from order id.
func (c *Client) RedeemOrder(ctx context.Context, id uint64, amount, payment *big.Int) (platform.Redemption, error) {
	var out platform.Redemption
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/redeem", id), RedeemRequest{Amount: amount, Payment: payment}, &out)
	return out, err
}

// StatusRound returns the kind of the latest round in cycle number.
func (c *Client) StatusRound(ctx context.Context, number int) (domain.RoundKind, error) {
	var out StatusRoundResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/status-round/%d", number), nil, &out)
	return out.Kind, err
}

// Rounds returns the round history.
func (c *Client) Rounds(ctx context.Context) ([]domain.Round, error) {
	var out []domain.Round
	err := c.do(ctx, http.MethodGet, "/api/v1/rounds", nil, &out)
	return out, err
}

// Orders returns orders, optionally only the open ones.
func (c *Client) Orders(ctx context.Context, openOnly bool) ([]domain.Order, error) {
	path := "/api/v1/orders"
	if openOnly {
		path += "?open=true"
	}
	var out []domain.Order
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// State returns the platform snapshot.
func (c *Client) State(ctx context.Context) (platform.Snapshot, error) {
	var out platform.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/v1/state", nil, &out)
	return out, err
}

// Verify checks the server's stores against its live state.
func (c *Client) Verify(ctx context.Context) (*verification.Report, error) {
	var out verification.Report
	err := c.do(ctx, http.MethodGet, "/api/v1/verify", nil, &out)
	return &out, err
}

// Account returns an account's balances.
func (c *Client) Account(ctx context.Context, addr domain.Address) (service.Balance, error) {
	var out service.Balance
	err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(string(addr)), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.caller != "" {
		req.Header.Set(CallerHeader, string(c.caller))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Kind: e.Kind, Msg: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
