// Package gaincapital is the REST client for the GAIN Capital (FOREX.com)
// trading API.
package gaincapital

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/fxtrader/broker"
)

const (
	// LiveURL serves both live and paper accounts; the login decides which.
	LiveURL = "https://ciapi.cityindex.com/TradingAPI"

	defaultTimeout = 30 * time.Second
	defaultRate    = 10 // requests per second
	defaultBurst   = 5
)

type Config struct {
	Username string
	Password string
	AppKey   string

	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond caps the request rate. Zero means defaultRate.
	RequestsPerSecond float64

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the trading API. It is safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string
	appKey   string

	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger

	mu        sync.Mutex
	session   string
	accountID int64
	markets   map[string]int64
}

var _ broker.Broker = (*Client)(nil)

func New(cfg Config) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		appKey:     cfg.AppKey,
		httpClient: cfg.HTTPClient,
		log:        cfg.Logger,
		markets:    make(map[string]int64),
	}
	if c.baseURL == "" {
		c.baseURL = LiveURL
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRate
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), defaultBurst)
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.With(zap.String("component", "gaincapital"))
	return c
}

// apiError is the error body the API returns alongside non-2xx statuses.
type apiError struct {
	ErrorMessage string `json:"ErrorMessage"`
	ErrorCode    int    `json:"ErrorCode"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status  int
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (status %d)", e.Status)
	}
	return fmt.Sprintf("API error (status %d, code %d): %s", e.Status, e.Code, e.Message)
}

// do sends one request. in, when non-nil, is JSON encoded as the body; out,
// when non-nil, receives the decoded response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != "" {
		req.Header.Set("UserName", c.username)
		req.Header.Set("Session", session)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		se := &StatusError{Status: resp.StatusCode}
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.ErrorMessage != "" {
			se.Code, se.Message = ae.ErrorCode, ae.ErrorMessage
		} else {
			se.Message = string(bytes.TrimSpace(raw))
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authenticated() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == "" {
		return 0, fmt.Errorf("not authenticated")
	}
	return c.accountID, nil
}
