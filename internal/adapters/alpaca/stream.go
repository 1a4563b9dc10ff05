package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/ports"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

const defaultStreamURL = "wss://stream.data.alpaca.markets/v2/iex"

// maxBufferedBars caps each symbol's buffer. A symbol nobody drains (suspended,
// or simply between slow ticks) evicts its oldest bars instead of growing for
// the rest of the session. Minute bars over a full regular session total 390,
// so the cap only bites when draining has actually stopped.
const maxBufferedBars = 1024

// Stream maintains a websocket subscription to the vendor's live bar feed and
// buffers completed bars per symbol. It implements ports.MarketDataFeed:
// GetBars drains the buffered bars after the caller's cursor, so the
// orchestrator polls it exactly like the REST client.
type Stream struct {
	url       string
	apiKey    string
	apiSecret string
	symbols   []string
	logger    ports.Logger

	mu      sync.Mutex
	buffers map[string][]*domain.Bar
	dropped int

	dial func(ctx context.Context, url string) (wsConn, error)
}

// wsConn is the subset of *websocket.Conn the stream uses, extracted so tests
// can supply a scripted connection.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// StreamConfig holds configuration for the live bar stream.
type StreamConfig struct {
	URL       string
	APIKey    string
	APISecret string
	Symbols   []string
	Logger    ports.Logger
}

// NewStream creates a live bar stream. Run must be started for bars to flow.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Alpaca stream")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: Alpaca API key and secret are required", ports.ErrInvalidAPIKeys)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("%w: stream requires at least one symbol", ports.ErrConfigurationError)
	}

	url := cfg.URL
	if url == "" {
		url = defaultStreamURL
	}

	return &Stream{
		url:       url,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		symbols:   cfg.Symbols,
		logger:    cfg.Logger,
		buffers:   make(map[string][]*domain.Bar),
		dial: func(ctx context.Context, url string) (wsConn, error) {
			dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
			conn, _, err := dialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}, nil
}

// streamMessage is the vendor wire format for one stream event.
type streamMessage struct {
	Type      string    `json:"T"`
	Symbol    string    `json:"S"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
	Timestamp time.Time `json:"t"`
	Code      int       `json:"code"`
	Msg       string    `json:"msg"`
}

// Run connects, authenticates, subscribes and consumes bar messages until ctx
// is cancelled. Connection drops are retried with capped exponential backoff;
// authentication rejections are returned immediately since retrying cannot
// help.
func (s *Stream) Run(ctx context.Context) error {
	const op = "Stream.Run"

	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    time.Minute,
		Factor: 2,
		Jitter: true,
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s stopped: %w: %w", op, ports.ErrContextCanceled, err)
		}

		err := s.runOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if ports.IsFatal(err) {
			s.logger.Error(ctx, err, op+": fatal stream error, giving up")
			return err
		}

		delay := b.Duration()
		s.logger.Warn(ctx, op+": stream disconnected, reconnecting", map[string]interface{}{
			"error": err.Error(),
			"delay": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Stream) runOnce(ctx context.Context) error {
	const op = "Stream.runOnce"

	conn, err := s.dial(ctx, s.url)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrConnectionFailed, err)
	}
	defer conn.Close()

	// Close the socket when ctx is cancelled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	auth := map[string]string{"action": "auth", "key": s.apiKey, "secret": s.apiSecret}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("%s: sending auth: %w: %w", op, ports.ErrConnectionFailed, err)
	}
	sub := map[string]interface{}{"action": "subscribe", "bars": s.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("%s: sending subscribe: %w: %w", op, ports.ErrConnectionFailed, err)
	}

	s.logger.Info(ctx, "Live bar stream connected", map[string]interface{}{
		"url":     s.url,
		"symbols": len(s.symbols),
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s: reading message: %w: %w", op, ports.ErrConnectionFailed, err)
		}

		var msgs []streamMessage
		if err := json.Unmarshal(payload, &msgs); err != nil {
			s.logger.Warn(ctx, op+": skipping undecodable message", map[string]interface{}{"error": err.Error()})
			continue
		}

		for _, msg := range msgs {
			if err := s.handleMessage(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (s *Stream) handleMessage(ctx context.Context, msg streamMessage) error {
	const op = "Stream.handleMessage"

	switch msg.Type {
	case "b":
		bar := &domain.Bar{
			Symbol:    msg.Symbol,
			Timestamp: msg.Timestamp,
			Open:      msg.Open,
			High:      msg.High,
			Low:       msg.Low,
			Close:     msg.Close,
			Volume:    msg.Volume,
		}
		if err := bar.Validate(); err != nil {
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			s.logger.Warn(ctx, op+": dropping malformed bar", map[string]interface{}{
				"symbol": msg.Symbol,
				"error":  err.Error(),
			})
			return nil
		}
		s.mu.Lock()
		buf := append(s.buffers[bar.Symbol], bar)
		if over := len(buf) - maxBufferedBars; over > 0 {
			// Drop-oldest, counted like any other boundary drop.
			buf = buf[over:]
			s.dropped += over
		}
		s.buffers[bar.Symbol] = buf
		s.mu.Unlock()
	case "error":
		err := fmt.Errorf("%s: vendor error %d: %s", op, msg.Code, msg.Msg)
		if msg.Code == 402 || strings.Contains(strings.ToLower(msg.Msg), "auth") {
			return fmt.Errorf("%w: %w", ports.ErrAuthenticationFailed, err)
		}
		return fmt.Errorf("%w: %w", ports.ErrFeedUnavailable, err)
	case "success", "subscription":
		s.logger.Debug(ctx, op+": control message", map[string]interface{}{"type": msg.Type, "msg": msg.Msg})
	}
	return nil
}

// GetBars returns the buffered bars for symbol strictly after since, in
// ascending timestamp order, and trims the buffer to what was not consumed.
func (s *Stream) GetBars(ctx context.Context, symbol string, since time.Time) ([]*domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("GetBars canceled: %w: %w", ports.ErrContextCanceled, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buffered := s.buffers[symbol]
	if len(buffered) == 0 {
		return nil, nil
	}

	sort.Slice(buffered, func(i, j int) bool {
		return buffered[i].Timestamp.Before(buffered[j].Timestamp)
	})

	out := make([]*domain.Bar, 0, len(buffered))
	var last time.Time
	for _, bar := range buffered {
		if !bar.Timestamp.After(since) {
			continue
		}
		if !last.IsZero() && !bar.Timestamp.After(last) {
			continue // duplicate timestamp from a reconnect replay
		}
		out = append(out, bar)
		last = bar.Timestamp
	}
	delete(s.buffers, symbol)
	return out, nil
}

// DroppedBars reports how many malformed bars the stream has discarded.
func (s *Stream) DroppedBars() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
