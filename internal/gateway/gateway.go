package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"travel-booking-storefront/internal/models"

	"github.com/google/uuid"
)

// TokenSource supplies the access token for authenticated calls and performs
// a single refresh when the backend answers 401. Token storage internals live
// outside the core.
type TokenSource interface {
	Token() (string, bool)
	Refresh(ctx context.Context) error
}

// Config for the backend cart gateway
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryBackoff time.Duration
}

// Client talks to the booking backend's cart API. It is the only network
// boundary of the cart core: it deduplicates identical concurrent requests,
// retries transport failures once, and refreshes the auth token once on 401.
type Client struct {
	config   Config
	client   *http.Client
	tokens   TokenSource
	inflight *inflightRegistry
	sleep    func(time.Duration) // overridable in tests
}

// NewClient creates a gateway client. tokens may be nil for a guest-only
// storefront.
func NewClient(config Config, tokens TokenSource) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = time.Second
	}
	return &Client{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		tokens:   tokens,
		inflight: newInflightRegistry(),
		sleep:    time.Sleep,
	}
}

// CartResponse is the GET /cart/ payload. For guests the backend echoes the
// session identifier owning the cart.
type CartResponse struct {
	Items      []models.CartItem `json:"items"`
	SessionKey string            `json:"session_key,omitempty"`
	ExpiresAt  int64             `json:"expires_at,omitempty"`
}

// ItemPatch is a partial update for PATCH /cart/items/{id}/
type ItemPatch struct {
	Quantity        *int                     `json:"quantity,omitempty"`
	BookingDate     *string                  `json:"booking_date,omitempty"`
	BookingTime     *string                  `json:"booking_time,omitempty"`
	SelectedOptions []models.OptionSelection `json:"selected_options,omitempty"`
}

// MergeResponse is the POST /cart/merge/ success payload
type MergeResponse struct {
	MergedCount int `json:"merged_count"`
}

// CapacityRequest asks the backend for the authoritative remaining capacity
type CapacityRequest struct {
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id,omitempty"`
	ScheduleID string `json:"schedule_id"`
	Requested  int    `json:"requested"`
}

// CapacityResponse is the POST /cart/check-capacity/ payload
type CapacityResponse struct {
	Available bool `json:"available"`
	Remaining int  `json:"remaining"`
}

// errorEnvelope is the backend's error body shape
type errorEnvelope struct {
	Error struct {
		Code       string                 `json:"code"`
		Message    string                 `json:"message"`
		Conflicts  []models.MergeConflict `json:"conflicts,omitempty"`
		RedirectTo string                 `json:"redirect_to,omitempty"`
	} `json:"error"`
}

// ListCart fetches the current cart items
func (c *Client) ListCart(ctx context.Context, sessionKey string) (*CartResponse, error) {
	body, err := c.do(ctx, http.MethodGet, "/cart/", nil, nil, sessionKey)
	if err != nil {
		return nil, err
	}
	var resp CartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cart response: %w", err)
	}
	return &resp, nil
}

// GetSummary fetches the authoritative totals
func (c *Client) GetSummary(ctx context.Context, sessionKey string) (*models.CartSummary, error) {
	body, err := c.do(ctx, http.MethodGet, "/cart/summary/", nil, nil, sessionKey)
	if err != nil {
		return nil, err
	}
	var summary models.CartSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary response: %w", err)
	}
	return &summary, nil
}

// AddItem adds a cart line and returns the backend-confirmed item
func (c *Client) AddItem(ctx context.Context, sessionKey string, item *models.CartItem) (*models.CartItem, error) {
	body, err := c.do(ctx, http.MethodPost, "/cart/add/", nil, item, sessionKey)
	if err != nil {
		return nil, err
	}
	var confirmed models.CartItem
	if err := json.Unmarshal(body, &confirmed); err != nil {
		return nil, fmt.Errorf("failed to decode add response: %w", err)
	}
	return &confirmed, nil
}

// PriceDryRun computes a price for the item without mutating the cart
func (c *Client) PriceDryRun(ctx context.Context, sessionKey string, item *models.CartItem) (*models.PricingBreakdown, error) {
	query := url.Values{"dry_run": {"1"}}
	body, err := c.do(ctx, http.MethodPost, "/cart/add/", query, item, sessionKey)
	if err != nil {
		return nil, err
	}
	var breakdown models.PricingBreakdown
	if err := json.Unmarshal(body, &breakdown); err != nil {
		return nil, fmt.Errorf("failed to decode pricing response: %w", err)
	}
	return &breakdown, nil
}

// UpdateItem partially updates a cart line
func (c *Client) UpdateItem(ctx context.Context, sessionKey, itemID string, patch *ItemPatch) (*models.CartItem, error) {
	path := fmt.Sprintf("/cart/items/%s/", itemID)
	body, err := c.do(ctx, http.MethodPatch, path, nil, patch, sessionKey)
	if err != nil {
		return nil, err
	}
	var updated models.CartItem
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, fmt.Errorf("failed to decode update response: %w", err)
	}
	return &updated, nil
}

// RemoveItem deletes a cart line
func (c *Client) RemoveItem(ctx context.Context, sessionKey, itemID string) error {
	path := fmt.Sprintf("/cart/items/%s/remove/", itemID)
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil, sessionKey)
	return err
}

// ClearCart empties the cart
func (c *Client) ClearCart(ctx context.Context, sessionKey string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/clear/", nil, nil, sessionKey)
	return err
}

// MergeCart attaches the guest cart identified by sessionKey to the
// authenticated user's cart. attemptID makes retries of the same outstanding
// merge idempotent on the backend.
func (c *Client) MergeCart(ctx context.Context, sessionKey, attemptID string) (*MergeResponse, error) {
	payload := map[string]string{"session_key": sessionKey, "attempt_id": attemptID}
	body, err := c.do(ctx, http.MethodPost, "/cart/merge/", nil, payload, "")
	if err != nil {
		return nil, err
	}
	var resp MergeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode merge response: %w", err)
	}
	return &resp, nil
}

// CheckCapacity performs the authoritative capacity check
func (c *Client) CheckCapacity(ctx context.Context, sessionKey string, req *CapacityRequest) (*CapacityResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/cart/check-capacity/", nil, req, sessionKey)
	if err != nil {
		return nil, err
	}
	var resp CapacityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode capacity response: %w", err)
	}
	return &resp, nil
}

// do runs one deduplicated request. Concurrent calls with the same method,
// path, query, and body share a single network round trip.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}, sessionKey string) ([]byte, error) {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	rawQuery := ""
	if query != nil {
		rawQuery = query.Encode()
	}

	identity := sessionKey
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			identity += "|" + token
		}
	}

	key := requestKey(identity, method, path, rawQuery, bodyBytes)
	call, owner := c.inflight.begin(key)
	if !owner {
		select {
		case <-call.done:
			return c.finish(call.result)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	res := c.perform(ctx, method, path, rawQuery, bodyBytes, sessionKey)
	c.inflight.settle(key, call, res)
	return c.finish(res)
}

func (c *Client) finish(res callResult) ([]byte, error) {
	if res.err != nil {
		return nil, res.err
	}
	return res.body, nil
}

// perform issues the request with the retry and refresh policy: transport
// failures get one retry after a fixed backoff; a 401 gets one token refresh
// and one replay; business-rule errors are terminal.
func (c *Client) perform(ctx context.Context, method, path, rawQuery string, body []byte, sessionKey string) callResult {
	status, respBody, err := c.roundTrip(ctx, method, path, rawQuery, body, sessionKey)
	if err != nil {
		if ctx.Err() != nil {
			return callResult{err: err}
		}
		c.sleep(c.config.RetryBackoff)
		status, respBody, err = c.roundTrip(ctx, method, path, rawQuery, body, sessionKey)
		if err != nil {
			return callResult{err: fmt.Errorf("%w: %v", models.ErrConnectivity, err)}
		}
	}

	if status == http.StatusUnauthorized && c.tokens != nil {
		if refreshErr := c.tokens.Refresh(ctx); refreshErr == nil {
			status, respBody, err = c.roundTrip(ctx, method, path, rawQuery, body, sessionKey)
			if err != nil {
				return callResult{err: fmt.Errorf("%w: %v", models.ErrConnectivity, err)}
			}
		}
	}

	if status == http.StatusUnauthorized {
		return callResult{status: status, err: models.ErrUnauthorized}
	}

	if status >= 400 {
		return callResult{status: status, err: parseAPIError(status, respBody)}
	}

	return callResult{status: status, body: respBody}
}

func (c *Client) roundTrip(ctx context.Context, method, path, rawQuery string, body []byte, sessionKey string) (int, []byte, error) {
	u := c.config.BaseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionKey != "" {
		req.Header.Set("X-Session-Key", sessionKey)
	}
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// parseAPIError maps an error body onto the typed CartError the core
// branches on
func parseAPIError(status int, body []byte) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		return &models.CartError{
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
			Conflicts:  envelope.Error.Conflicts,
			RedirectTo: envelope.Error.RedirectTo,
		}
	}
	return &models.CartError{
		Code:    fmt.Sprintf("HTTP_%d", status),
		Message: fmt.Sprintf("backend returned status %d", status),
	}
}
