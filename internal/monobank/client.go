package monobank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jarfeed/internal/domain"
	"jarfeed/internal/metrics"
)

const defaultBaseURL = "https://api.monobank.ua"

type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client talks to the personal API. Callers go through ClientInfoCache for
// client info; the statement endpoint has the same rate limit.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.Token),
	}
}

type apiError struct {
	ErrorDescription string `json:"errorDescription"`
}

// ClientInfo fetches /personal/client-info.
func (c *Client) ClientInfo(ctx context.Context) (*domain.ClientInfo, error) {
	var out domain.ClientInfo
	if err := c.get(ctx, "client_info", "/personal/client-info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Statement fetches transactions for account between from and to.
func (c *Client) Statement(ctx context.Context, account string, from, to time.Time) ([]domain.Transaction, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, &domain.ExternalAPIError{Op: "statement", Kind: domain.KindBadRequest, Err: errors.New("account id required")}
	}
	path := fmt.Sprintf("/personal/statement/%s/%d/%d", account, from.Unix(), to.Unix())
	var out []domain.Transaction
	if err := c.get(ctx, "statement", path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op, path string, dst any) error {
	if c == nil || c.token == "" {
		return &domain.ExternalAPIError{Op: op, Kind: domain.KindUnauthorized, Err: domain.ErrNotConfigured}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &domain.ExternalAPIError{Op: op, Kind: domain.KindTransient, Err: err}
	}
	req.Header.Set("X-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BankRequests.WithLabelValues(op, "network_error").Inc()
		return &domain.ExternalAPIError{Op: op, Kind: domain.KindTransient, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		metrics.BankRequests.WithLabelValues(op, "network_error").Inc()
		return &domain.ExternalAPIError{Op: op, Kind: domain.KindTransient, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		kind := domain.KindForStatus(resp.StatusCode)
		metrics.BankRequests.WithLabelValues(op, string(kind)).Inc()
		msg := fmt.Sprintf("http %d", resp.StatusCode)
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorDescription != "" {
			msg = apiErr.ErrorDescription
		}
		return &domain.ExternalAPIError{Op: op, Kind: kind, Status: resp.StatusCode, Body: string(body), Err: errors.New(msg)}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		metrics.BankRequests.WithLabelValues(op, "decode_error").Inc()
		return &domain.ExternalAPIError{Op: op, Kind: domain.KindTransient, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	metrics.BankRequests.WithLabelValues(op, "ok").Inc()
	return nil
}
