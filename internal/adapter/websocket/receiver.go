// Package websocket receives Alamos alarm documents over a websocket feed.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/alarm-display/internal/domain"
	"github.com/couchcryptid/alarm-display/internal/observability"
)

// Time allowed to write the authentication message.
const writeWait = 10 * time.Second

type authMessage struct {
	AuthToken string `json:"auth_token"`
}

// Receiver keeps a websocket connection to the feed open and submits every
// text message as a JSON payload.
type Receiver struct {
	url       string
	token     string
	reconnect time.Duration
	dialer    *websocket.Dialer
	submitter domain.Submitter
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewReceiver creates a receiver for url that authenticates with token.
func NewReceiver(url, token string, reconnect time.Duration, submitter domain.Submitter,
	metrics *observability.Metrics, logger *slog.Logger,
) *Receiver {
	return &Receiver{
		url:       url,
		token:     token,
		reconnect: reconnect,
		dialer:    websocket.DefaultDialer,
		submitter: submitter,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run connects and receives until ctx is cancelled, waiting the reconnect
// delay after every closed connection.
func (r *Receiver) Run(ctx context.Context) error {
	r.logger.Info("websocket receiver started", "url", r.url)
	for {
		r.logger.Info("connecting to websocket", "url", r.url)
		err := r.session(ctx)
		r.metrics.TransportConnected.WithLabelValues("websocket").Set(0)
		if ctx.Err() != nil {
			r.logger.Info("websocket receiver stopped")
			return nil
		}
		r.logger.Error("websocket closed, waiting to reconnect", "error", err, "delay", r.reconnect)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.reconnect):
		}
	}
}

func (r *Receiver) session(ctx context.Context) error {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			conn.Close()
		case <-done:
		}
	}()

	r.logger.Info("websocket connected, authenticating")
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(authMessage{AuthToken: r.token}); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	r.metrics.TransportConnected.WithLabelValues("websocket").Set(1)

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		r.logger.Info("websocket message received", "bytes", len(msg))
		raw := domain.RawPayload{Kind: domain.SourceJSON, Data: msg, Origin: "websocket"}
		if err := r.submitter.Submit(ctx, raw); err != nil {
			return err
		}
	}
}
