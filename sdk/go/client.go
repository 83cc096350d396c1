package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"progresskit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the progress HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// SubmitAttempt records one learner attempt and returns the recomputed
// progress, game state, and any rewards the submission unlocked.
func (c *Client) SubmitAttempt(ctx context.Context, learnerID string, attempt core.AttemptInput) (SubmitResult, error) {
	if strings.TrimSpace(learnerID) == "" {
		return SubmitResult{}, ErrEmptyLearnerID
	}
	payload, err := json.Marshal(attempt)
	if err != nil {
		return SubmitResult{}, err
	}

	u := fmt.Sprintf("%s/learners/%s/attempts", c.baseURL, url.PathEscape(learnerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return SubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmitResult{}, err
	}
	defer resp.Body.Close()

	var result SubmitResult
	if err := decodeJSON(resp, &result); err != nil {
		return SubmitResult{}, err
	}
	return result, nil
}

// Summary fetches the learner-facing progress summary.
func (c *Client) Summary(ctx context.Context, learnerID string) (LearnerSummary, error) {
	if strings.TrimSpace(learnerID) == "" {
		return LearnerSummary{}, ErrEmptyLearnerID
	}
	u := fmt.Sprintf("%s/learners/%s", c.baseURL, url.PathEscape(learnerID))
	var s LearnerSummary
	if err := c.getJSON(ctx, u, &s); err != nil {
		return LearnerSummary{}, err
	}
	return s, nil
}

// Goals fetches the learner's upcoming goal list.
func (c *Client) Goals(ctx context.Context, learnerID string) ([]Goal, error) {
	if strings.TrimSpace(learnerID) == "" {
		return nil, ErrEmptyLearnerID
	}
	u := fmt.Sprintf("%s/learners/%s/goals", c.baseURL, url.PathEscape(learnerID))
	var body struct {
		Goals []Goal `json:"goals"`
	}
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	return body.Goals, nil
}

// Digest fetches the educator-facing digest for a learner.
func (c *Client) Digest(ctx context.Context, learnerID string) (Digest, error) {
	if strings.TrimSpace(learnerID) == "" {
		return Digest{}, ErrEmptyLearnerID
	}
	u := fmt.Sprintf("%s/learners/%s/digest", c.baseURL, url.PathEscape(learnerID))
	var d Digest
	if err := c.getJSON(ctx, u, &d); err != nil {
		return Digest{}, err
	}
	return d, nil
}

// Rewards fetches the learner's most recent unlocks.
func (c *Client) Rewards(ctx context.Context, learnerID string, limit int) ([]core.Reward, error) {
	if strings.TrimSpace(learnerID) == "" {
		return nil, ErrEmptyLearnerID
	}
	u := fmt.Sprintf("%s/learners/%s/rewards", c.baseURL, url.PathEscape(learnerID))
	if limit > 0 {
		u += fmt.Sprintf("?limit=%d", limit)
	}
	var body struct {
		Rewards []core.Reward `json:"rewards"`
	}
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	return body.Rewards, nil
}

// Leaderboard fetches the top n learners by XP.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	u := c.baseURL + "/leaderboard"
	if n > 0 {
		u += fmt.Sprintf("?n=%d", n)
	}
	var body struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	return body.Entries, nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	if err := c.getJSON(ctx, c.baseURL+"/healthz", &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// A non-empty learnerID filters the stream to that learner's events.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, learnerID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	wsURL := c.wsURL
	if learnerID != "" {
		wsURL += "?learner=" + url.QueryEscape(learnerID)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt core.Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, u string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
