package pager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/couchcryptid/alarm-display/internal/domain"
	"github.com/couchcryptid/alarm-display/internal/observability"
)

type recordingSubmitter struct {
	mu       sync.Mutex
	payloads []domain.RawPayload
	got      chan struct{}
}

func newRecordingSubmitter() *recordingSubmitter {
	return &recordingSubmitter{got: make(chan struct{}, 16)}
}

func (r *recordingSubmitter) Submit(_ context.Context, raw domain.RawPayload) error {
	r.mu.Lock()
	r.payloads = append(r.payloads, raw)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

func (r *recordingSubmitter) all() []domain.RawPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RawPayload(nil), r.payloads...)
}

func TestReadFrames(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []string
	}{
		{"single frame", []byte("abc\x00"), []string{"abc"}},
		{"two frames", []byte("abc\x00def\x00"), []string{"abc", "def"}},
		{"empty frames skipped", []byte("\x00\x00abc\x00"), []string{"abc"}},
		{"unterminated tail dropped", []byte("abc\x00de"), []string{"abc"}},
		{"nothing", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := ReadFrames(bytes.NewReader(tt.input), func(frame []byte) error {
				got = append(got, string(frame))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFrames_CallbackError(t *testing.T) {
	boom := errors.New("inbox closed")
	calls := 0

	err := ReadFrames(bytes.NewReader([]byte("a\x00b\x00")), func([]byte) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestReadFrames_DecodesRestrictedCharset(t *testing.T) {
	// 0xE4 is latin1 "ä"; "[" and "~" are the 7-bit umlaut substitutes.
	input := []byte("Dorfstra~e [rzte \xe4\x00")

	var got string
	require.NoError(t, ReadFrames(bytes.NewReader(input), func(frame []byte) error {
		got = domain.DecodePager(frame)
		return nil
	}))

	assert.Equal(t, "Dorfstraße Ärzte ä", got)
}

func TestUDPListener(t *testing.T) {
	defer goleak.VerifyNone(t)

	sub := newRecordingSubmitter()
	l, err := ListenUDP("127.0.0.1:0", sub, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	conn, err := net.Dial("udp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("21-12-17 11:55:10 Gebäude [kein Remap]"))
	require.NoError(t, err)

	select {
	case <-sub.got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}

	cancel()
	require.NoError(t, <-done)

	got := sub.all()
	require.Len(t, got, 1)
	assert.Equal(t, domain.SourcePager, got[0].Kind)
	assert.Equal(t, "udp", got[0].Origin)
	assert.Equal(t, "21-12-17 11:55:10 Gebäude [kein Remap]", string(got[0].Data))
}

func TestListenUDP_BadAddr(t *testing.T) {
	_, err := ListenUDP("not-an-addr", newRecordingSubmitter(), observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
