// Package notify reports startup and received pager telegrams to an HTTP
// endpoint as JSON.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/couchcryptid/alarm-display/internal/domain"
)

// Message is the JSON body posted to the endpoint.
type Message struct {
	HostName    string `json:"host_name"`
	Startup     bool   `json:"startup,omitempty"`
	PagerString string `json:"pager_string,omitempty"`
}

// Notifier posts Messages to a fixed URL.
type Notifier struct {
	client   *resty.Client
	url      string
	hostName string
	logger   *slog.Logger
}

// NewNotifier creates a notifier for url. The host name identifies this
// display in every message.
func NewNotifier(url string, timeout time.Duration, logger *slog.Logger) *Notifier {
	hostName, err := os.Hostname()
	if err != nil {
		logger.Warn("could not determine host name", "error", err)
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json")

	logger.Info("using notification endpoint", "url", url)
	return &Notifier{client: client, url: url, hostName: hostName, logger: logger}
}

// Startup announces that the display has started.
func (n *Notifier) Startup(ctx context.Context) error {
	return n.post(ctx, Message{HostName: n.hostName, Startup: true})
}

// Load reports pager telegrams. Other payloads are ignored.
func (n *Notifier) Load(ctx context.Context, update domain.Update) error {
	if update.Payload.Kind != domain.SourcePager {
		return nil
	}
	return n.post(ctx, Message{HostName: n.hostName, PagerString: string(update.Payload.Data)})
}

func (n *Notifier) post(ctx context.Context, msg Message) error {
	n.logger.Info("sending notification", "url", n.url, "startup", msg.Startup)

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("notify %s: %w", n.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify %s: status %d", n.url, resp.StatusCode())
	}
	n.logger.Info("notification successful")
	return nil
}
