// Package imap polls a mailbox for dispatch emails and hands their XML
// attachments to the pipeline.
package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset" // non-UTF-8 mail headers and parts
	"github.com/emersion/go-message/mail"

	"github.com/couchcryptid/alarm-display/internal/domain"
	"github.com/couchcryptid/alarm-display/internal/observability"
)

// Monitor polls INBOX over IMAPS for unseen messages.
type Monitor struct {
	addr      string
	user      string
	pass      string
	interval  time.Duration
	submitter domain.Submitter
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewMonitor creates a mailbox monitor. host may omit the port; 993 is used then.
func NewMonitor(host, user, pass string, interval time.Duration, submitter domain.Submitter,
	metrics *observability.Metrics, logger *slog.Logger,
) *Monitor {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "993")
	}
	return &Monitor{
		addr:      host,
		user:      user,
		pass:      pass,
		interval:  interval,
		submitter: submitter,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run polls the mailbox until ctx is cancelled. A failed cycle is logged and
// retried after the poll interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("imap monitor started", "addr", m.addr, "interval", m.interval)
	for {
		if err := m.cycle(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("imap cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			m.logger.Info("imap monitor stopped")
			return nil
		case <-time.After(m.interval):
		}
	}
}

// cycle connects, fetches unseen messages, submits their attachments and marks them seen.
func (m *Monitor) cycle(ctx context.Context) error {
	c, err := client.DialTLS(m.addr, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	m.metrics.TransportConnected.WithLabelValues("imap").Set(1)
	defer func() {
		m.metrics.TransportConnected.WithLabelValues("imap").Set(0)
		_ = c.Logout()
	}()

	if err := c.Login(m.user, m.pass); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	mbox, err := c.Select("INBOX", false)
	if err != nil {
		return fmt.Errorf("select inbox: %w", err)
	}
	m.logger.Debug("mailbox selected", "messages", mbox.Messages)

	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	seqset := new(goimap.SeqSet)
	seqset.AddNum(uids...)
	section := &goimap.BodySectionName{Peek: true}

	messages := make(chan *goimap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []goimap.FetchItem{section.FetchItem()}, messages)
	}()

	var payloads [][]byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		attachments, err := ExtractXMLAttachments(body, m.logger)
		if err != nil {
			m.logger.Warn("skipping unreadable message", "uid", msg.Uid, "error", err)
			continue
		}
		payloads = append(payloads, attachments...)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	// Mark as seen before submitting so a crash does not replay the alarm.
	flags := []interface{}{goimap.SeenFlag}
	if err := c.UidStore(seqset, goimap.FormatFlagsOp(goimap.AddFlags, true), flags, nil); err != nil {
		m.logger.Error("could not mark messages as seen", "error", err)
	}

	for _, p := range payloads {
		raw := domain.RawPayload{Kind: domain.SourceXML, Data: p, Origin: "imap"}
		if err := m.submitter.Submit(ctx, raw); err != nil {
			return err
		}
	}
	return nil
}

// ExtractXMLAttachments returns the content of every attachment of the mail
// in r whose file name ends in "xml".
func ExtractXMLAttachments(r io.Reader, logger *slog.Logger) ([][]byte, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("read mail: %w", err)
	}
	defer mr.Close()

	subject, _ := mr.Header.Subject()
	from, _ := mr.Header.AddressList("From")
	logger.Info("mail received", "subject", subject, "from", fmt.Sprint(from))

	var out [][]byte
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read part: %w", err)
		}

		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		name, _ := h.Filename()
		if !strings.HasSuffix(strings.ToLower(name), "xml") {
			continue
		}
		data, err := io.ReadAll(p.Body)
		if err != nil {
			return out, fmt.Errorf("read attachment %s: %w", name, err)
		}
		logger.Info("xml attachment found", "file", name, "bytes", len(data))
		out = append(out, data)
	}
	return out, nil
}
