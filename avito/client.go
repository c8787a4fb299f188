package avito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/retry"
)

// DefaultBaseURL is the production marketplace API host.
const DefaultBaseURL = "https://api.avito.ru"

const (
	userAgent      = "cm-bolt/1.0"
	maxErrorDetail = 512
)

// Client calls the marketplace realty API. Retryable responses (429 and 5xx)
// are reattempted per the retry policy, honoring Retry-After; other 4xx
// responses surface immediately as *APIError. Request logging never includes
// tokens or bodies.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	policy     retry.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// NewClient builds a marketplace client for the given API host.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     zap.NewNop(),
		policy:     retry.Default,
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// PushPriceRanges replaces the per-date pricing for a listing.
func (c *Client) PushPriceRanges(ctx context.Context, token, accountID, itemID string, ranges []PriceRange) error {
	if ranges == nil {
		ranges = []PriceRange{}
	}

	payload := struct {
		Prices []PriceRange `json:"prices"`
	}{Prices: ranges}

	path := fmt.Sprintf("/realty/v1/accounts/%s/items/%s/prices", accountID, itemID)

	return c.doJSON(ctx, http.MethodPost, path, token, payload, nil)
}

// PushBaseParams sets the listing-level default price and minimum stay.
func (c *Client) PushBaseParams(ctx context.Context, token, accountID, itemID string, params BaseParams) error {
	path := fmt.Sprintf("/realty/v1/accounts/%s/items/%s/base", accountID, itemID)

	return c.doJSON(ctx, http.MethodPost, path, token, params, nil)
}

// PushBlockedIntervals replaces the listing's unavailable intervals. An empty
// slice is meaningful: it clears every block on the marketplace side.
func (c *Client) PushBlockedIntervals(ctx context.Context, token, accountID, itemID string, intervals []Interval) error {
	if intervals == nil {
		intervals = []Interval{}
	}

	payload := struct {
		Intervals []Interval `json:"intervals"`
	}{Intervals: intervals}

	path := fmt.Sprintf("/realty/v1/accounts/%s/items/%s/intervals", accountID, itemID)

	return c.doJSON(ctx, http.MethodPost, path, token, payload, nil)
}

// ListBookings returns one page of bookings in the date window. A 404 means
// the listing has no booking data yet and yields an empty page, not an error.
func (c *Client) ListBookings(ctx context.Context, token, accountID, itemID string, q BookingsQuery) ([]Booking, error) {
	path := fmt.Sprintf("/realty/v1/accounts/%s/items/%s/bookings?%s", accountID, itemID, q.values().Encode())

	var out struct {
		Bookings []Booking `json:"bookings"`
	}

	err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out)
	if err != nil {
		if IsNotFound(err) {
			c.logger.Debug("marketplace has no bookings for listing", zap.String("item_id", itemID))
			return nil, nil
		}

		return nil, err
	}

	return out.Bookings, nil
}

// CancelBooking cancels a remote booking. A 409 means the booking was paid in
// the meantime and must be kept; callers detect it with IsConflict.
func (c *Client) CancelBooking(ctx context.Context, token, accountID, itemID string, bookingID int64) error {
	path := fmt.Sprintf("/realty/v1/accounts/%s/items/%s/bookings/%d/cancel", accountID, itemID, bookingID)

	return c.doJSON(ctx, http.MethodPost, path, token, struct{}{}, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body []byte

	if in != nil {
		var err error

		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	fullURL := c.baseURL + path

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(body))
		if err != nil {
			return err
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", userAgent)

		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.logger.Debug("marketplace request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
		)

		start := time.Now()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.policy.MaxAttempts {
				if waitErr := retry.Sleep(ctx, c.policy.Delay(attempt)); waitErr != nil {
					return waitErr
				}

				continue
			}

			return fmt.Errorf("marketplace request failed: %w", err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		c.logger.Debug("marketplace response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("took", time.Since(start)),
		)

		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil {
				return nil
			}

			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			return nil
		}

		if retryable(resp.StatusCode) && attempt < c.policy.MaxAttempts {
			hint := parseRetryAfter(resp.Header.Get("Retry-After"))

			if waitErr := retry.Sleep(ctx, c.policy.DelayWithHint(attempt, hint)); waitErr != nil {
				return waitErr
			}

			continue
		}

		return parseAPIError(resp.StatusCode, respBody)
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Message:    strings.TrimSpace(string(body)),
	}

	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Error.Code != "" {
			apiErr.Code = parsed.Error.Code
		}

		if strings.TrimSpace(parsed.Error.Message) != "" {
			apiErr.Message = strings.TrimSpace(parsed.Error.Message)
		}
	}

	if len(apiErr.Message) > maxErrorDetail {
		apiErr.Message = apiErr.Message[:maxErrorDetail]
	}

	return apiErr
}
