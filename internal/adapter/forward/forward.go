// Package forward relays received payloads to peer displays.
package forward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/couchcryptid/alarm-display/internal/domain"
)

// DefaultPort is used for peers configured without a port.
const DefaultPort = "11211"

// Forwarder sends pager telegrams as UDP datagrams and XML documents over
// TCP to every configured peer. JSON payloads are not forwarded.
type Forwarder struct {
	hosts   []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewForwarder creates a Forwarder for hosts given as "host" or "host:port".
func NewForwarder(hosts []string, timeout time.Duration, logger *slog.Logger) *Forwarder {
	addrs := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if _, _, err := net.SplitHostPort(h); err != nil {
			h = net.JoinHostPort(h, DefaultPort)
		}
		logger.Info("adding forward peer", "addr", h)
		addrs = append(addrs, h)
	}
	return &Forwarder{hosts: addrs, timeout: timeout, logger: logger}
}

// Load forwards the payload of update. Failing peers do not stop delivery to
// the others; their errors are joined.
func (f *Forwarder) Load(ctx context.Context, update domain.Update) error {
	p := update.Payload
	var send func(context.Context, string, []byte) error
	switch p.Kind {
	case domain.SourcePager:
		send = f.sendUDP
	case domain.SourceXML:
		send = f.sendTCP
	default:
		return nil
	}

	var errs []error
	for _, addr := range f.hosts {
		f.logger.Info("forwarding payload", "addr", addr, "source", p.Kind)
		if err := send(ctx, addr, p.Data); err != nil {
			errs = append(errs, fmt.Errorf("forward to %s: %w", addr, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Forwarder) sendUDP(ctx context.Context, addr string, data []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(data)
	return err
}

func (f *Forwarder) sendTCP(ctx context.Context, addr string, data []byte) error {
	d := net.Dialer{Timeout: f.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(f.timeout)); err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
