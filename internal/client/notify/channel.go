package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atinyakov/folio/internal/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SocketPath is the push endpoint below the API base URL.
const SocketPath = "/ws/admin-notifications"

// DefaultBackoff is the wait between reconnect attempts.
const DefaultBackoff = 5 * time.Second

// Channel delivers new-message events until ctx is done.
type Channel interface {
	Run(ctx context.Context, deliver func(models.NewMessageEvent)) error
}

// LocalChannel is an in-process Channel, used in mock mode where no push
// server exists.
type LocalChannel struct {
	events chan models.NewMessageEvent
}

// NewLocalChannel returns a channel buffering up to size events.
func NewLocalChannel(size int) *LocalChannel {
	return &LocalChannel{events: make(chan models.NewMessageEvent, size)}
}

// Publish queues ev. It blocks while the buffer is full.
func (c *LocalChannel) Publish(ctx context.Context, ev models.NewMessageEvent) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run implements Channel.
func (c *LocalChannel) Run(ctx context.Context, deliver func(models.NewMessageEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			deliver(ev)
		}
	}
}

// TokenSource returns the current bearer token.
type TokenSource interface {
	Token() string
}

// WSChannel subscribes to the server's push socket and reconnects after a
// fixed back-off whenever the connection drops.
type WSChannel struct {
	url     string
	tokens  TokenSource
	dialer  *websocket.Dialer
	backoff time.Duration
	log     *zap.Logger
}

// NewWSChannel returns a channel dialing socketURL. A nil dialer uses
// websocket.DefaultDialer.
func NewWSChannel(socketURL string, tokens TokenSource, dialer *websocket.Dialer, log *zap.Logger) *WSChannel {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WSChannel{url: socketURL, tokens: tokens, dialer: dialer, backoff: DefaultBackoff, log: log}
}

// WithBackoff sets the reconnect wait.
func (c *WSChannel) WithBackoff(d time.Duration) *WSChannel {
	c.backoff = d
	return c
}

// SocketURL derives the push socket URL from the API base URL.
func SocketURL(apiBase string) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiBase, "/"))
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	u.Path += SocketPath
	return u.String(), nil
}

// Run implements Channel. Connection failures are logged and retried; Run
// only returns once ctx is done.
func (c *WSChannel) Run(ctx context.Context, deliver func(models.NewMessageEvent)) error {
	for {
		err := c.session(ctx, deliver)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("notification socket closed", zap.String("url", c.url), zap.Error(err))

		t := time.NewTimer(c.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (c *WSChannel) session(ctx context.Context, deliver func(models.NewMessageEvent)) error {
	header := http.Header{}
	if token := c.tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	c.log.Info("notification socket connected", zap.String("url", c.url))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame models.PushFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("invalid push frame", zap.Error(err))
			continue
		}
		if frame.Event != models.EventNewContactMessage {
			c.log.Debug("ignored push event", zap.String("event", frame.Event))
			continue
		}
		deliver(frame.Data)
	}
}
