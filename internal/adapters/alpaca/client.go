package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/ports"
)

const (
	defaultBaseURL = "https://data.alpaca.markets"
	// pageLimit is the vendor's maximum bars per page.
	pageLimit = 10000

	headerAPIKey    = "APCA-API-KEY-ID"
	headerAPISecret = "APCA-API-SECRET-KEY"
)

// Client implements the ports.MarketDataFeed interface against the Alpaca
// market data REST API.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	timeframe  string
	feed       string
	httpClient *http.Client
	logger     ports.Logger
}

// Config holds configuration specific to the Alpaca client adapter.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeframe string        // Bar aggregation, e.g. "1Min", "5Min"
	Feed      string        // Data feed tier, e.g. "iex" or "sip"
	Timeout   time.Duration // Per-request HTTP timeout
	Logger    ports.Logger
}

// New creates a new Alpaca market data client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Alpaca client")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: Alpaca API key and secret are required", ports.ErrInvalidAPIKeys)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeframe := cfg.Timeframe
	if timeframe == "" {
		timeframe = "1Min"
	}
	feed := cfg.Feed
	if feed == "" {
		feed = "iex"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cfg.Logger.Info(context.Background(), "Alpaca client configured", map[string]interface{}{
		"baseURL":   baseURL,
		"timeframe": timeframe,
		"feed":      feed,
	})

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		timeframe:  timeframe,
		feed:       feed,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}, nil
}

// barPayload is the vendor wire format for one bar.
type barPayload struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

type barsResponse struct {
	Bars          []barPayload `json:"bars"`
	Symbol        string       `json:"symbol"`
	NextPageToken *string      `json:"next_page_token"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GetBars fetches bars for symbol strictly after since, in ascending timestamp
// order. Malformed bars are dropped and counted, never returned.
func (c *Client) GetBars(ctx context.Context, symbol string, since time.Time) ([]*domain.Bar, error) {
	const op = "GetBars"

	var (
		bars      []*domain.Bar
		dropped   int
		pageToken string
	)
	for {
		resp, err := c.fetchPage(ctx, symbol, since, pageToken)
		if err != nil {
			return nil, c.handleError(ctx, err, op, symbol)
		}

		for i := range resp.Bars {
			p := resp.Bars[i]
			bar := &domain.Bar{
				Symbol:    symbol,
				Timestamp: p.Timestamp,
				Open:      p.Open,
				High:      p.High,
				Low:       p.Low,
				Close:     p.Close,
				Volume:    p.Volume,
			}
			if err := bar.Validate(); err != nil {
				dropped++
				c.logger.Warn(ctx, op+": dropping malformed bar", map[string]interface{}{
					"symbol": symbol,
					"error":  err.Error(),
				})
				continue
			}
			if !bar.Timestamp.After(since) {
				continue
			}
			bars = append(bars, bar)
		}

		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		pageToken = *resp.NextPageToken
	}

	if dropped > 0 {
		c.logger.Warn(ctx, op+": malformed bars dropped", map[string]interface{}{
			"symbol":  symbol,
			"dropped": dropped,
			"kept":    len(bars),
		})
	}
	return bars, nil
}

func (c *Client) fetchPage(ctx context.Context, symbol string, since time.Time, pageToken string) (*barsResponse, error) {
	q := url.Values{}
	q.Set("timeframe", c.timeframe)
	q.Set("start", since.UTC().Format(time.RFC3339))
	q.Set("limit", fmt.Sprintf("%d", pageLimit))
	q.Set("feed", c.feed)
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set(headerAPISecret, c.apiSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode, body: body}
	}

	var parsed barsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding bars response: %w", err)
	}
	return &parsed, nil
}

// httpStatusError carries a non-200 vendor response until handleError maps it.
type httpStatusError struct {
	status int
	body   []byte
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("vendor returned HTTP %d: %s", e.status, string(e.body))
}

// handleError translates vendor failures into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation, symbol string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "symbol": symbol, "originalError": err.Error()}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		var apiErr apiError
		if jsonErr := json.Unmarshal(statusErr.body, &apiErr); jsonErr == nil && apiErr.Message != "" {
			fields["apiErrorCode"] = apiErr.Code
			fields["apiErrorMessage"] = apiErr.Message
		}

		var mappedErr error
		switch {
		case statusErr.status == http.StatusTooManyRequests:
			mappedErr = ports.ErrRateLimited
		case statusErr.status == http.StatusUnauthorized:
			mappedErr = ports.ErrAuthenticationFailed
		case statusErr.status == http.StatusForbidden:
			mappedErr = ports.ErrInvalidAPIKeys
		case statusErr.status == http.StatusNotFound:
			mappedErr = ports.ErrInvalidSymbol
		case statusErr.status == http.StatusUnprocessableEntity, statusErr.status == http.StatusBadRequest:
			mappedErr = ports.ErrInvalidRequest
		case statusErr.status >= 500:
			mappedErr = ports.ErrFeedUnavailable
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Non-HTTP errors: network, timeouts, context cancellation.
	var finalErr error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case errors.As(err, &urlErr) && urlErr.Timeout():
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "no such host"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}
