package core

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Ap1297/Random-Chat-Application/internal/audit"
	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu     sync.Mutex
	closed bool
	msgs   []Envelope
}

func (f *fakeSender) Send(env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrSessionClosed
	}
	f.msgs = append(f.msgs, env)
	return nil
}

func (f *fakeSender) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeSender) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSender) received() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Envelope(nil), f.msgs...)
}

func (f *fakeSender) types() []MessageType {
	return lo.Map(f.received(), func(e Envelope, _ int) MessageType { return e.Type })
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = nil
}

type recordingJournal struct {
	mu     sync.Mutex
	events []audit.Event
}

func (j *recordingJournal) Record(ev audit.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
}

func (j *recordingJournal) Close() error { return nil }

func (j *recordingJournal) kinds() []audit.Kind {
	j.mu.Lock()
	defer j.mu.Unlock()
	return lo.Map(j.events, func(e audit.Event, _ int) audit.Kind { return e.Kind })
}

func newTestRelay(t *testing.T) *Relay {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))
	return NewRelay(Config{
		Clock:  mock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func connect(t *testing.T, r *Relay, id string) *fakeSender {
	t.Helper()
	s := &fakeSender{}
	require.NoError(t, r.Connect(id, s))
	return s
}

func join(r *Relay, id, name string) {
	r.Handle(id, JoinCommand{Name: name})
}

func chat(r *Relay, id, sender, content string) {
	r.Handle(id, ForwardCommand{Envelope: Envelope{Type: TypeChat, Sender: sender, Content: content, Timestamp: "t"}})
}

// requireInvariants checks that waiting, paired and idle are disjoint, the
// pairing and avoid tables are symmetric, and no two waiting sessions that
// could be matched are left sitting in the pool.
func requireInvariants(t *testing.T, r *Relay) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	waiting := r.pool.Snapshot()
	require.Len(t, lo.Uniq(waiting), len(waiting), "duplicate waiting entries: %v", waiting)
	for a, b := range r.pairs.partners {
		require.NotEqual(t, a, b)
		require.Equal(t, a, r.pairs.partners[b], "asymmetric pair %s -> %s", a, b)
		require.NotContains(t, waiting, a, "%s is both paired and waiting", a)
		_, ok := r.registry.Lookup(a)
		require.True(t, ok, "paired session %s is not registered", a)
	}
	for _, id := range waiting {
		_, ok := r.registry.Lookup(id)
		require.True(t, ok, "waiting session %s is not registered", id)
	}
	for a, b := range r.avoid {
		require.Equal(t, a, r.avoid[b], "asymmetric avoid %s -> %s", a, b)
	}
	for i, a := range waiting {
		for _, b := range waiting[i+1:] {
			require.False(t, r.compatible(a, b), "%s and %s are both waiting but were not matched: %v", a, b, waiting)
		}
	}
}
