// Package pager receives pager telegrams from the serial receiver and from
// peer displays over UDP.
package pager

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"github.com/couchcryptid/alarm-display/internal/domain"
	"github.com/couchcryptid/alarm-display/internal/observability"
)

// maxFrameSize bounds a single telegram; the receiver emits a few hundred bytes.
const maxFrameSize = 64 * 1024

// Serial reads NUL-terminated telegrams from the pager receiver.
type Serial struct {
	port      string
	baud      int
	reconnect time.Duration
	submitter domain.Submitter
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewSerial creates a receiver for the serial device at port.
func NewSerial(port string, baud int, submitter domain.Submitter, metrics *observability.Metrics, logger *slog.Logger) *Serial {
	return &Serial{
		port:      port,
		baud:      baud,
		reconnect: 5 * time.Second,
		submitter: submitter,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run reads telegrams until ctx is cancelled, reopening the port after errors.
func (s *Serial) Run(ctx context.Context) error {
	s.logger.Info("serial receiver started", "port", s.port, "baud", s.baud)
	for {
		err := s.session(ctx)
		s.metrics.TransportConnected.WithLabelValues("serial").Set(0)
		if ctx.Err() != nil {
			s.logger.Info("serial receiver stopped")
			return nil
		}
		s.logger.Error("serial receiver failed, reopening", "error", err, "delay", s.reconnect)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnect):
		}
	}
}

func (s *Serial) session(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: s.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.port, mode)
	if err != nil {
		return fmt.Errorf("open serial port: %w", err)
	}

	// Unblock the pending Read on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		port.Close()
	}()

	s.logger.Info("serial port opened", "port", s.port)
	s.metrics.TransportConnected.WithLabelValues("serial").Set(1)

	return ReadFrames(port, func(frame []byte) error {
		text := domain.DecodePager(frame)
		s.logger.Info("pager telegram received", "origin", "serial", "bytes", len(frame))
		return s.submitter.Submit(ctx, domain.RawPayload{
			Kind:   domain.SourcePager,
			Data:   []byte(text),
			Origin: "serial",
		})
	})
}

// ReadFrames splits r into NUL-terminated frames and calls fn for each.
// Empty frames are skipped and a trailing unterminated frame is dropped.
// It returns nil at EOF.
func ReadFrames(r io.Reader, fn func(frame []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), maxFrameSize)
	sc.Split(splitNUL)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		frame := append([]byte(nil), sc.Bytes()...)
		if err := fn(frame); err != nil {
			return err
		}
	}
	return sc.Err()
}

func splitNUL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}
