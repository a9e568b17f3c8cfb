// Package kite is the REST gateway to the Zerodha Kite quote API. It owns
// the access-token lifecycle and maps broker failures onto the domain
// error taxonomy; it never touches shared caches, callers decide what to
// cache.
package kite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alphadeck/papertrade/internal/domain"
)

const (
	// requestTimeout bounds every outbound call; a timeout surfaces as a
	// generic upstream failure, never a retry loop.
	requestTimeout = 7 * time.Second

	// kiteVersion is the API version header the broker requires.
	kiteVersion = "3"

	// The broker allows roughly three quote requests per second per app.
	requestsPerSecond = 3
)

// Client is the REST client for the Kite quote API.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu          sync.RWMutex
	accessToken string
}

// NewClient creates a Kite client. The access token is supplied later via
// GenerateSession or SetAccessToken.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// SetAccessToken installs a broker access token, e.g. one restored from
// configuration after a restart.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// HasAccessToken reports whether a token is currently installed.
func (c *Client) HasAccessToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken != ""
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// GenerateSession exchanges a request token for an access token using the
// documented checksum (hex sha256 of api_key + request_token + api_secret)
// and installs the resulting token on the client.
func (c *Client) GenerateSession(ctx context.Context, requestToken string) (Session, error) {
	sum := sha256.Sum256([]byte(c.apiKey + requestToken + c.apiSecret))

	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", hex.EncodeToString(sum[:]))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/session/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, fmt.Errorf("kite: create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Kite-Version", kiteVersion)

	body, err := c.do(req)
	if err != nil {
		return Session{}, fmt.Errorf("kite: generate session: %w", err)
	}

	var resp envelope[rawSession]
	if err := json.Unmarshal(body, &resp); err != nil {
		return Session{}, fmt.Errorf("kite: decode session: %w: %v", domain.ErrUpstream, err)
	}

	sess := Session{
		UserID:      resp.Data.UserID,
		UserName:    resp.Data.UserName,
		AccessToken: resp.Data.AccessToken,
		PublicToken: resp.Data.PublicToken,
		LoginTime:   resp.Data.LoginTime.Time,
	}
	if sess.AccessToken == "" {
		return Session{}, fmt.Errorf("kite: session exchange returned no access token: %w", domain.ErrUpstream)
	}

	c.SetAccessToken(sess.AccessToken)
	return sess, nil
}

// GetQuotes fetches full quote snapshots for the given instruments.
// Instruments the broker does not recognize are simply absent from the
// returned map.
func (c *Client) GetQuotes(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error) {
	body, err := c.doQuoteGet(ctx, "/quote", keys)
	if err != nil {
		return nil, err
	}

	var resp envelope[map[string]rawQuote]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kite: decode quotes: %w: %v", domain.ErrUpstream, err)
	}

	fetchedAt := time.Now()
	quotes := make(map[domain.InstrumentKey]domain.Quote, len(resp.Data))
	for k, r := range resp.Data {
		key := domain.InstrumentKey(k)
		quotes[key] = toQuote(key, r, fetchedAt)
	}
	return quotes, nil
}

// GetOHLC fetches OHLC summaries for the given instruments.
func (c *Client) GetOHLC(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.OHLCQuote, error) {
	body, err := c.doQuoteGet(ctx, "/quote/ohlc", keys)
	if err != nil {
		return nil, err
	}

	var resp envelope[map[string]rawOHLCQuote]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kite: decode ohlc: %w: %v", domain.ErrUpstream, err)
	}

	out := make(map[domain.InstrumentKey]domain.OHLCQuote, len(resp.Data))
	for k, r := range resp.Data {
		key := domain.InstrumentKey(k)
		ohlc := domain.OHLC{}
		if r.OHLC != nil {
			ohlc = domain.OHLC(*r.OHLC)
		}
		if ohlc.Open == 0 {
			ohlc.Open = r.LastPrice
		}
		if ohlc.Close == 0 {
			ohlc.Close = r.LastPrice
		}
		out[key] = domain.OHLCQuote{Instrument: key, LastPrice: r.LastPrice, OHLC: ohlc}
	}
	return out, nil
}

// GetLTP fetches last traded prices for the given instruments.
func (c *Client) GetLTP(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]float64, error) {
	body, err := c.doQuoteGet(ctx, "/quote/ltp", keys)
	if err != nil {
		return nil, err
	}

	var resp envelope[map[string]rawLTP]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kite: decode ltp: %w: %v", domain.ErrUpstream, err)
	}

	out := make(map[domain.InstrumentKey]float64, len(resp.Data))
	for k, r := range resp.Data {
		out[domain.InstrumentKey(k)] = r.LastPrice
	}
	return out, nil
}

// doQuoteGet issues an authenticated GET against a quote endpoint with the
// instrument list as repeated "i" query parameters.
func (c *Client) doQuoteGet(ctx context.Context, path string, keys []domain.InstrumentKey) ([]byte, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("kite: %w: empty instrument list", domain.ErrValidation)
	}
	token := c.token()
	if token == "" {
		return nil, fmt.Errorf("kite: %s: %w", path, domain.ErrUnauthenticated)
	}

	params := url.Values{}
	for _, k := range keys {
		params.Add("i", string(k))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("kite: create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.apiKey+":"+token)
	req.Header.Set("X-Kite-Version", kiteVersion)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("kite: %s: %w", path, err)
	}
	return body, nil
}

// do applies the client-side throttle, executes the request, and maps the
// response status onto the domain error taxonomy.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("throttle: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures and timeouts are upstream errors; the caller
		// must not retry within the same tick.
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}

	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkStatus maps non-2xx broker responses to sentinel errors, keeping
// the broker's message and error type for diagnostics.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr envelope[json.RawMessage]
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s (%s)", domain.ErrUnauthenticated, apiErr.Message, apiErr.ErrorType)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s (%s)", domain.ErrRateLimited, apiErr.Message, apiErr.ErrorType)
	default:
		return fmt.Errorf("%w: HTTP %d: %s (%s)", domain.ErrUpstream, statusCode, apiErr.Message, apiErr.ErrorType)
	}
}
