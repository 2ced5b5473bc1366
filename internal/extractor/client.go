package extractor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/recipeshelf/import-service/internal/recipes"
)

// Sink receives translated stream events for one job. Progress callbacks may
// arrive any number of times; exactly one of OnComplete or OnError is
// delivered per session, after which the session goes quiet.
type Sink interface {
	OnProgress(message string, percent float64, tier string)
	OnComplete(recipe *recipes.Recipe)
	OnError(message string)
}

// Config holds extraction service client settings
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	// IdleTimeout closes a stream that stops emitting events without
	// closing the socket. Zero disables the watchdog.
	IdleTimeout time.Duration
}

// Client opens streaming sessions against the extraction service
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new extraction service client
func NewClient(config *Config, logger *slog.Logger) *Client {
	// No overall client timeout; streams are long-lived. ConnectTimeout
	// bounds dialing and the wait for response headers only.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: config.ConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: config.ConnectTimeout,
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

// Session is one open event stream for one job
type Session struct {
	sink        Sink
	logger      *slog.Logger
	cancel      context.CancelFunc
	idle        *time.Timer
	idleTimeout time.Duration

	mu       sync.Mutex
	closed   bool
	terminal bool

	done chan struct{}
}

// Open starts a streaming session for sourceURL. It returns immediately;
// events are delivered to sink from a background goroutine until a terminal
// event, an idle timeout, or Close.
func (c *Client) Open(ctx context.Context, sourceURL string, sink Sink) *Session {
	streamCtx, cancel := context.WithCancel(ctx)

	s := &Session{
		sink:        sink,
		logger:      c.logger.With(slog.String("url", sourceURL)),
		cancel:      cancel,
		idleTimeout: c.config.IdleTimeout,
		done:        make(chan struct{}),
	}

	if c.config.IdleTimeout > 0 {
		s.idle = time.AfterFunc(c.config.IdleTimeout, func() {
			s.logger.Warn("Extraction stream idle timeout exceeded")
			s.deliverError(msgTimedOut)
			cancel()
		})
	}

	go s.run(streamCtx, c, sourceURL)

	return s
}

// Close tears the connection down without delivering a terminal event.
// Safe to call multiple times and after the session has finished.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.idle != nil {
		s.idle.Stop()
	}
	s.cancel()
}

// Done is closed when the reader goroutine has exited
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run(ctx context.Context, c *Client, sourceURL string) {
	defer close(s.done)
	defer s.cancel()

	streamURL := fmt.Sprintf("%s/api/v1/extract/stream?url=%s",
		strings.TrimRight(c.config.BaseURL, "/"),
		url.QueryEscape(sourceURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		s.deliverError(msgClosed)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		s.logger.Error("Failed to open extraction stream",
			slog.Any("error", err),
		)
		s.deliverError(msgClosed)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("Extraction stream returned non-OK status",
			slog.Int("status", resp.StatusCode),
		)
		s.deliverError(msgClosed)
		return
	}

	// Reader-based line framing: a complete event's data line carries the
	// whole recipe payload and may exceed any fixed scanner token size
	reader := bufio.NewReaderSize(resp.Body, 64*1024)

	var eventName string
	var data strings.Builder

	flush := func() {
		if data.Len() > 0 || eventName != "" {
			s.dispatch(eventName, []byte(data.String()))
		}
		eventName = ""
		data.Reset()
	}

	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			flush()

		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if err != nil {
			break
		}
	}

	// Dangling event without a trailing blank line
	flush()

	// Stream ended. Without a terminal event this is itself an error.
	s.deliverError(msgClosed)
}

// dispatch routes one raw stream event. Unnamed events carry their own type
// discriminator and take the same paths as named ones.
func (s *Session) dispatch(name string, data []byte) {
	if s.idle != nil {
		s.idle.Reset(s.idleTimeout)
	}

	if name == "" || name == "message" {
		name = eventType(data)
	}

	switch name {
	case eventOpen:
		s.deliverProgress(msgConnected, 0.1, "")

	case eventProgress:
		var p progressPayload
		if err := json.Unmarshal(data, &p); err != nil {
			// Garbled progress must never fail a job
			s.logger.Debug("Ignoring malformed progress payload",
				slog.Any("error", err),
			)
			return
		}
		s.deliverProgress(p.Message, p.Percent, p.Tier)

	case eventComplete:
		var p completePayload
		if err := json.Unmarshal(data, &p); err != nil || p.Recipe == nil {
			s.deliverError(msgNoRecipe)
			return
		}
		s.deliverComplete(p.Recipe)

	case eventError:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil || p.Message == "" {
			s.deliverError(msgExtractionFailed)
			return
		}
		s.deliverError(p.Message)

	default:
		s.logger.Debug("Ignoring unknown stream event",
			slog.String("event", name),
		)
	}
}

// gate reports whether an event may still be delivered, and records a
// terminal delivery so every later event on the connection is dropped
func (s *Session) gate(terminal bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.terminal {
		return false
	}
	if terminal {
		s.terminal = true
		if s.idle != nil {
			s.idle.Stop()
		}
	}
	return true
}

func (s *Session) deliverProgress(message string, percent float64, tier string) {
	if !s.gate(false) {
		return
	}
	s.sink.OnProgress(message, percent, tier)
}

func (s *Session) deliverComplete(recipe *recipes.Recipe) {
	if !s.gate(true) {
		return
	}
	s.sink.OnComplete(recipe)
}

func (s *Session) deliverError(message string) {
	if !s.gate(true) {
		return
	}
	s.sink.OnError(message)
}
