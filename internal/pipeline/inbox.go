package pipeline

import (
	"context"

	"github.com/couchcryptid/alarm-display/internal/domain"
)

// Inbox collects payloads from all transports for the pipeline. It implements
// Extractor on the pipeline side and domain.Submitter on the transport side.
type Inbox struct {
	ch chan domain.RawPayload
}

// NewInbox creates an Inbox buffering up to size payloads.
func NewInbox(size int) *Inbox {
	return &Inbox{ch: make(chan domain.RawPayload, size)}
}

// Submit queues raw, blocking while the buffer is full.
func (i *Inbox) Submit(ctx context.Context, raw domain.RawPayload) error {
	if raw.ReceivedAt.IsZero() {
		raw.ReceivedAt = domain.Now()
	}
	select {
	case i.ch <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Extract returns the next payload.
func (i *Inbox) Extract(ctx context.Context) (domain.RawPayload, error) {
	select {
	case raw := <-i.ch:
		return raw, nil
	case <-ctx.Done():
		return domain.RawPayload{}, ctx.Err()
	}
}
