package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/couchcryptid/alarm-display/internal/domain"
	"github.com/couchcryptid/alarm-display/internal/observability"
)

// UDPListener receives telegrams forwarded by peer displays. Datagrams are
// UTF-8 text and are not remapped.
type UDPListener struct {
	conn      net.PacketConn
	submitter domain.Submitter
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// ListenUDP binds addr.
func ListenUDP(addr string, submitter domain.Submitter, metrics *observability.Metrics, logger *slog.Logger) (*UDPListener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return &UDPListener{conn: conn, submitter: submitter, metrics: metrics, logger: logger}, nil
}

// Addr returns the bound address.
func (l *UDPListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run receives datagrams until ctx is cancelled. It closes the socket on return.
func (l *UDPListener) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	l.logger.Info("udp listener started", "addr", l.Addr().String())
	l.metrics.TransportConnected.WithLabelValues("udp").Set(1)
	defer l.metrics.TransportConnected.WithLabelValues("udp").Set(0)

	buf := make([]byte, 65535)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.logger.Info("udp listener stopped")
				return nil
			}
			return fmt.Errorf("read datagram: %w", err)
		}
		if n == 0 {
			continue
		}

		l.logger.Info("pager telegram received", "origin", "udp", "from", from.String(), "bytes", n)
		raw := domain.RawPayload{
			Kind:   domain.SourcePager,
			Data:   append([]byte(nil), buf[:n]...),
			Origin: "udp",
		}
		if err := l.submitter.Submit(ctx, raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
