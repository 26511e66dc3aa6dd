package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

const (
	defaultStreamURL = "wss://stream.binance.com:9443"
	sandboxStreamURL = "wss://stream.testnet.binance.vision"

	// wsPongWait is the time allowed to read the next message or pong.
	wsPongWait = 60 * time.Second

	// wsPingPeriod sends pings at this interval. Must be less than wsPongWait.
	wsPingPeriod = (wsPongWait * 9) / 10

	// wsWriteWait is the time allowed to write a control message.
	wsWriteWait = 10 * time.Second

	// wsReconnectDelay is the base delay before reconnecting.
	wsReconnectDelay = time.Second

	// wsMaxReconnectDelay caps the exponential backoff.
	wsMaxReconnectDelay = 60 * time.Second

	// streamLevels is the partial depth the stream subscribes to.
	streamLevels = 20
)

type streamBook struct {
	book       domain.OrderBook
	receivedAt time.Time
}

// Stream keeps the top of the book for a set of symbols from the combined
// partial book depth stream. Books older than staleAfter are not served.
type Stream struct {
	wsURL      string
	staleAfter time.Duration
	logger     *slog.Logger

	mu    sync.RWMutex
	books map[string]streamBook
}

// NewStream creates a Stream. An empty wsURL selects the production or
// sandbox endpoint.
func NewStream(wsURL string, sandbox bool, staleAfter time.Duration, logger *slog.Logger) *Stream {
	if wsURL == "" {
		wsURL = defaultStreamURL
		if sandbox {
			wsURL = sandboxStreamURL
		}
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Second
	}
	return &Stream{
		wsURL:      strings.TrimRight(wsURL, "/"),
		staleAfter: staleAfter,
		logger:     logger.With(slog.String("component", "binance_stream")),
		books:      make(map[string]streamBook),
	}
}

// Book returns the latest streamed book for a Binance symbol name. It
// returns domain.ErrNotFound before the first event and domain.ErrStaleBook
// once updates stop arriving.
func (s *Stream) Book(exchangeSymbol string) (domain.OrderBook, error) {
	s.mu.RLock()
	entry, ok := s.books[strings.ToLower(exchangeSymbol)]
	s.mu.RUnlock()
	if !ok {
		return domain.OrderBook{}, domain.ErrNotFound
	}
	if time.Since(entry.receivedAt) > s.staleAfter {
		return domain.OrderBook{}, fmt.Errorf("%s: %w", exchangeSymbol, domain.ErrStaleBook)
	}
	return entry.book, nil
}

// Run streams the given Binance symbol names until ctx ends, reconnecting
// with exponential backoff.
func (s *Stream) Run(ctx context.Context, exchangeSymbols []string) error {
	if len(exchangeSymbols) == 0 {
		<-ctx.Done()
		return nil
	}
	endpoint := streamEndpoint(s.wsURL, exchangeSymbols)

	delay := wsReconnectDelay
	for {
		connected, err := s.session(ctx, endpoint)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = wsReconnectDelay
		}
		s.logger.WarnContext(ctx, "stream disconnected, reconnecting",
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		delay = min(delay*2, wsMaxReconnectDelay)
	}
}

// session runs one connection until it fails. connected reports whether the
// dial succeeded.
func (s *Stream) session(ctx context.Context, endpoint string) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("binance/ws: connect: %w", err)
	}
	defer conn.Close()

	s.logger.InfoContext(ctx, "stream connected", slog.String("endpoint", endpoint))

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteWait))
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("binance/ws: read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if err := s.apply(msg, time.Now()); err != nil {
			s.logger.DebugContext(ctx, "stream event skipped", slog.String("error", err.Error()))
		}
	}
}

// apply stores the book carried by one combined stream event.
func (s *Stream) apply(msg []byte, at time.Time) error {
	var env streamEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	name, _, ok := strings.Cut(env.Stream, "@")
	if !ok || name == "" {
		return fmt.Errorf("unexpected stream %q", env.Stream)
	}
	book, err := toBook(env.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	book.Timestamp = at.UTC()

	s.mu.Lock()
	s.books[name] = streamBook{book: book, receivedAt: at}
	s.mu.Unlock()
	return nil
}

// streamEndpoint builds the combined stream URL for the symbols.
func streamEndpoint(base string, exchangeSymbols []string) string {
	streams := make([]string, 0, len(exchangeSymbols))
	for _, s := range exchangeSymbols {
		streams = append(streams, fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(s), streamLevels))
	}
	return base + "/stream?streams=" + strings.Join(streams, "/")
}
