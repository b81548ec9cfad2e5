package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"rillcall/internal/core/codec"
	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
	"rillcall/internal/infrastructure/transport"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func fakeSDP(kind string) string {
	return fmt.Sprintf("v=0\r\no=- 4611731400430051336 2 IN IP4 127.0.0.1\r\ns=%s\r\nt=0 0\r\n", kind)
}

type fakeMedia struct {
	mu         sync.Mutex
	sessions   []*fakeSession
	acquireErr error
	gate       chan struct{}
	// hold blocks acquisition regardless of the caller's context.
	hold chan struct{}
}

func (m *fakeMedia) AcquireLocalMedia(ctx context.Context, hooks ports.MediaHooks) (ports.MediaSession, error) {
	m.mu.Lock()
	gate, hold, acquireErr := m.gate, m.hold, m.acquireErr
	m.mu.Unlock()

	if hold != nil {
		<-hold
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if acquireErr != nil {
		return nil, acquireErr
	}

	s := &fakeSession{hooks: hooks}
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
	return s, nil
}

func (m *fakeMedia) all() []*fakeSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fakeSession(nil), m.sessions...)
}

func (m *fakeMedia) last(t *testing.T) *fakeSession {
	t.Helper()
	var s *fakeSession
	require.Eventually(t, func() bool {
		all := m.all()
		if len(all) == 0 {
			return false
		}
		s = all[len(all)-1]
		return true
	}, waitFor, tick)
	return s
}

type fakeSession struct {
	mu         sync.Mutex
	hooks      ports.MediaHooks
	local      *domain.SessionDescription
	remote     *domain.SessionDescription
	candidates []domain.ICECandidate
	closeCalls int
}

func (s *fakeSession) CreateOffer(context.Context) (domain.SessionDescription, error) {
	return domain.SessionDescription{Type: domain.SDPTypeOffer, SDP: fakeSDP("offer")}, nil
}

func (s *fakeSession) CreateAnswer(context.Context) (domain.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote == nil {
		return domain.SessionDescription{}, errors.New("no remote offer")
	}
	return domain.SessionDescription{Type: domain.SDPTypeAnswer, SDP: fakeSDP("answer")}, nil
}

func (s *fakeSession) SetLocalDescription(desc domain.SessionDescription) error {
	s.mu.Lock()
	s.local = &desc
	s.mu.Unlock()

	mid := "0"
	idx := uint16(0)
	s.hooks.OnLocalCandidate(domain.ICECandidate{
		Candidate:     "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	})
	return nil
}

func (s *fakeSession) SetRemoteDescription(desc domain.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = &desc
	return nil
}

func (s *fakeSession) AddRemoteCandidate(c domain.ICECandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote == nil {
		return errors.New("remote description not set")
	}
	s.candidates = append(s.candidates, c)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func (s *fakeSession) closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

func (s *fakeSession) remoteCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates)
}

func (s *fakeSession) descriptions() (local, remote *domain.SessionDescription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local, s.remote
}

type notifications struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (n *notifications) Notify(note domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *notifications) count(kind domain.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, note := range n.notes {
		if note.Kind == kind {
			c++
		}
	}
	return c
}

func (n *notifications) lastOf(kind domain.NotificationKind) (domain.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.notes) - 1; i >= 0; i-- {
		if n.notes[i].Kind == kind {
			return n.notes[i], true
		}
	}
	return domain.Notification{}, false
}

type testPeer struct {
	id     domain.ParticipantID
	engine *CallEngine
	media  *fakeMedia
	notes  *notifications
	stop   context.CancelFunc
	done   chan struct{}
}

type peerOption func(*EngineConfig, *EngineDeps)

func withMetrics(m ports.CallMetrics) peerOption {
	return func(_ *EngineConfig, deps *EngineDeps) { deps.Metrics = m }
}

func withRing(interval time.Duration, attempts int) peerOption {
	return func(cfg *EngineConfig, _ *EngineDeps) {
		cfg.RingInterval = interval
		cfg.RingAttempts = attempts
	}
}

func withMediaTimeout(d time.Duration) peerOption {
	return func(cfg *EngineConfig, _ *EngineDeps) { cfg.MediaTimeout = d }
}

// wireLog records the types of messages published to one participant.
type wireLog struct {
	mu    sync.Mutex
	types []domain.MessageType
}

// recordTo installs a broker filter logging every payload sent to p.
func recordTo(broker *transport.MemoryBroker, p domain.ParticipantID) *wireLog {
	w := &wireLog{}
	topic := codec.Topic("", p)
	broker.SetFilter(func(to string, payload []byte) bool {
		if to != topic {
			return true
		}
		if msg, err := codec.Decode(payload); err == nil {
			w.mu.Lock()
			w.types = append(w.types, msg.Type)
			w.mu.Unlock()
		}
		return true
	})
	return w
}

func (w *wireLog) sent() []domain.MessageType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.MessageType(nil), w.types...)
}

func (w *wireLog) count(t domain.MessageType) int {
	n := 0
	for _, got := range w.sent() {
		if got == t {
			n++
		}
	}
	return n
}

func withInboundLimit(perSecond float64, burst int) peerOption {
	return func(cfg *EngineConfig, _ *EngineDeps) {
		cfg.InboundRate = rate.Limit(perSecond)
		cfg.InboundBurst = burst
	}
}

func newTestBroker(t *testing.T) *transport.MemoryBroker {
	broker := transport.NewMemoryBroker(codec.DefaultChannel, 64, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = broker.Close() })
	return broker
}

func startPeer(t *testing.T, broker *transport.MemoryBroker, username, clientID string, opts ...peerOption) *testPeer {
	t.Helper()

	id := domain.ParticipantID{Username: username, ClientID: clientID}
	cfg := DefaultEngineConfig(id)
	cfg.RingInterval = 200 * time.Millisecond
	cfg.RingAttempts = 5
	cfg.MediaTimeout = time.Second
	cfg.PublishTimeout = time.Second

	p := &testPeer{id: id, media: &fakeMedia{}, notes: &notifications{}, done: make(chan struct{})}
	deps := EngineDeps{
		Transport: broker,
		Media:     p.media,
		Notifier:  p.notes,
		Logger:    zaptest.NewLogger(t).Sugar(),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	p.engine = NewCallEngine(cfg, deps)

	ctx, cancel := context.WithCancel(context.Background())
	p.stop = cancel
	go func() {
		defer close(p.done)
		_ = p.engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-p.done
	})

	require.Eventually(t, func() bool { return broker.Subscribers(id) == 1 }, waitFor, tick)
	return p
}

func (p *testPeer) waitState(t *testing.T, state domain.CallState) ports.CallSnapshot {
	t.Helper()
	var snap ports.CallSnapshot
	require.Eventually(t, func() bool {
		snap = p.engine.Snapshot()
		return snap.State == state
	}, waitFor, tick, "%s never reached %s", p.id, state)
	return snap
}

// inject delivers msg to p as if sent by from.
func (p *testPeer) inject(t *testing.T, from domain.ParticipantID, msg domain.SignalMessage) {
	t.Helper()
	payload, err := codec.Encode(msg.From(from))
	require.NoError(t, err)
	p.engine.HandlePayload(payload)
}

// barrier returns once every event queued before it has been processed.
// NewCall is rejected in every state but Idle, which callers must exclude.
func (p *testPeer) barrier(t *testing.T) {
	t.Helper()
	err := p.engine.NewCall(context.Background(), domain.ParticipantID{Username: "barrier", ClientID: "x"}, nil)
	require.Error(t, err)
}
