package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"rillcall/internal/core/codec"
	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
	apperrors "rillcall/pkg/errors"
	"rillcall/pkg/ratelimit"
	"rillcall/pkg/tracing"
	"rillcall/pkg/validation"
)

// EngineConfig tunes a CallEngine.
type EngineConfig struct {
	Self domain.ParticipantID

	// RingInterval is the delay between call resends; RingAttempts bounds
	// the total number of call messages sent for one attempt.
	RingInterval time.Duration
	RingAttempts int

	PublishTimeout time.Duration
	// MediaTimeout bounds media acquisition, description creation and the
	// time spent waiting for the peer's offer or answer.
	MediaTimeout time.Duration

	OutboxSize     int
	EventQueueSize int

	// InboundRate limits inbound messages per sender; zero disables it.
	InboundRate  rate.Limit
	InboundBurst int
}

// DefaultEngineConfig returns the defaults used by the agent.
func DefaultEngineConfig(self domain.ParticipantID) EngineConfig {
	return EngineConfig{
		Self:           self,
		RingInterval:   5 * time.Second,
		RingAttempts:   5,
		PublishTimeout: 3 * time.Second,
		MediaTimeout:   15 * time.Second,
		OutboxSize:     64,
		EventQueueSize: 128,
	}
}

// EngineDeps are the collaborators of a CallEngine. Metrics and Notifier
// are optional.
type EngineDeps struct {
	Transport ports.Transport
	Media     ports.MediaController
	Notifier  ports.Notifier
	Metrics   ports.CallMetrics
	Logger    *zap.SugaredLogger
}

type outboundMessage struct {
	to      domain.ParticipantID
	typ     domain.MessageType
	payload []byte
}

// CallEngine is the call signaling state machine of one participant. All
// state is owned by the goroutine running Run; intents, inbound payloads,
// timers and media completions reach it as events.
type CallEngine struct {
	cfg       EngineConfig
	transport ports.Transport
	media     ports.MediaController
	notifier  ports.Notifier
	metrics   ports.CallMetrics
	logger    *zap.SugaredLogger
	limiter   *ratelimit.Keyed[domain.ParticipantID]

	events  chan event
	outbox  chan outboundMessage
	done    chan struct{}
	running atomic.Bool

	// owned by the loop
	runCtx   context.Context
	session  session
	call     *callContext
	epoch    uint64
	deadline *time.Timer

	snapMu   sync.RWMutex
	snapshot ports.CallSnapshot
}

var _ ports.CallService = (*CallEngine)(nil)

func NewCallEngine(cfg EngineConfig, deps EngineDeps) *CallEngine {
	def := DefaultEngineConfig(cfg.Self)
	if cfg.RingInterval <= 0 {
		cfg.RingInterval = def.RingInterval
	}
	if cfg.RingAttempts <= 0 {
		cfg.RingAttempts = def.RingAttempts
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.MediaTimeout <= 0 {
		cfg.MediaTimeout = def.MediaTimeout
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = def.OutboxSize
	}
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = def.EventQueueSize
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = ports.NotifierFunc(func(domain.Notification) {})
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NoopMetrics()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	e := &CallEngine{
		cfg:       cfg,
		transport: deps.Transport,
		media:     deps.Media,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger.With("participant", cfg.Self.String()),
		limiter:   ratelimit.New[domain.ParticipantID](cfg.InboundRate, cfg.InboundBurst),
		events:    make(chan event, cfg.EventQueueSize),
		outbox:    make(chan outboundMessage, cfg.OutboxSize),
		done:      make(chan struct{}),
		runCtx:    context.Background(),
		session:   idleSession{},
	}
	e.snapshot = ports.CallSnapshot{State: domain.StateIdle, Since: time.Now()}
	return e
}

// Self returns the local participant.
func (e *CallEngine) Self() domain.ParticipantID {
	return e.cfg.Self
}

// Run subscribes to the local topic and processes events until ctx is done.
// A live call is ended with a farewell message on shutdown.
func (e *CallEngine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("call engine already running")
	}
	e.runCtx = ctx

	if err := e.transport.Subscribe(ctx, e.cfg.Self, e.HandlePayload); err != nil {
		close(e.done)
		return apperrors.NewTransportError(err, "failed to subscribe to signal topic")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.sendLoop(ctx)
	}()

	e.logger.Infow("Call engine started",
		"topic", codec.Topic("", e.cfg.Self),
		"ring_interval", e.cfg.RingInterval,
		"ring_attempts", e.cfg.RingAttempts,
	)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			close(e.done)
			wg.Wait()
			e.logger.Infow("Call engine stopped")
			return nil
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

// HandlePayload is the inbound entry point used by the transport. It never
// blocks: when the event queue is full the message is dropped.
func (e *CallEngine) HandlePayload(payload []byte) {
	msg, err := codec.Decode(payload)
	if err != nil {
		e.enqueue(protocolErrorEvent{err: err}, "queue_full")
		return
	}

	if msg.Client.Equal(e.cfg.Self) {
		e.metrics.RecordMessageDropped("own_echo")
		return
	}
	if !e.limiter.Allow(msg.Client) {
		e.metrics.RecordMessageDropped("rate_limited")
		e.logger.Debugw("Inbound message rate limited", "from", msg.Client.String(), "type", msg.Type)
		return
	}

	e.metrics.RecordMessageReceived(msg.Type)
	e.enqueue(inboundEvent{msg: msg}, "queue_full")
}

func (e *CallEngine) enqueue(ev event, dropReason string) {
	select {
	case <-e.done:
	case e.events <- ev:
	default:
		e.metrics.RecordMessageDropped(dropReason)
		e.logger.Warnw("Event queue full, dropping event", "event", ev.name())
	}
}

// post delivers a completion to the loop. It reports false once the engine
// has stopped.
func (e *CallEngine) post(ev event) bool {
	select {
	case <-e.done:
		return false
	case e.events <- ev:
		return true
	}
}

// NewCall places a call to target, optionally on behalf of proxy.
func (e *CallEngine) NewCall(ctx context.Context, target domain.ParticipantID, proxy *domain.ParticipantID) error {
	if target.IsZero() {
		return apperrors.Wrap(domain.ErrNoRemote, apperrors.ErrCodeInvalidInput, "target is required")
	}
	if err := validation.ValidateParticipant(target.Username, target.ClientID); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if target.Equal(e.cfg.Self) {
		return apperrors.Wrap(domain.ErrSelfCall, apperrors.ErrCodeInvalidInput, "cannot call own client")
	}
	if proxy != nil {
		if err := validation.ValidateParticipant(proxy.Username, proxy.ClientID); err != nil {
			return apperrors.NewInvalidInputError("proxy: " + err.Error())
		}
	}
	return e.submit(ctx, intentEvent{kind: intentNewCall, target: target, proxy: proxy})
}

// AcceptCall accepts the call being prompted.
func (e *CallEngine) AcceptCall(ctx context.Context) error {
	return e.submit(ctx, intentEvent{kind: intentAccept})
}

// AnswerCall accepts a call from an invitation without a prior prompt. The
// caller is told to reroute its call to this client.
func (e *CallEngine) AnswerCall(ctx context.Context, from domain.ParticipantID) error {
	if err := validation.ValidateParticipant(from.Username, from.ClientID); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if from.Equal(e.cfg.Self) {
		return apperrors.Wrap(domain.ErrSelfCall, apperrors.ErrCodeInvalidInput, "cannot answer own client")
	}
	return e.submit(ctx, intentEvent{kind: intentAnswer, target: from})
}

func (e *CallEngine) DeclineCall(ctx context.Context) error {
	return e.submit(ctx, intentEvent{kind: intentDecline})
}

func (e *CallEngine) CancelCall(ctx context.Context) error {
	return e.submit(ctx, intentEvent{kind: intentCancel})
}

func (e *CallEngine) Hangup(ctx context.Context) error {
	return e.submit(ctx, intentEvent{kind: intentHangup})
}

func (e *CallEngine) submit(ctx context.Context, in intentEvent) error {
	in.reply = make(chan error, 1)

	select {
	case e.events <- in:
	case <-e.done:
		return apperrors.NewServiceUnavailableError(domain.ErrEngineStopped.Error())
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-in.reply:
		return err
	case <-e.done:
		return apperrors.NewServiceUnavailableError(domain.ErrEngineStopped.Error())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the engine stops processing events.
func (e *CallEngine) Done() <-chan struct{} {
	return e.done
}

// Snapshot returns a copy of the current session.
func (e *CallEngine) Snapshot() ports.CallSnapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapshot
}

func (e *CallEngine) dispatch(ev event) {
	from := e.session.state()
	ctx, span := tracing.TraceCallEvent(e.runCtx, ev.name(), e.cfg.Self.String(), from.String())
	defer span.End()

	switch ev := ev.(type) {
	case inboundEvent:
		e.handleMessage(ev.msg)
	case protocolErrorEvent:
		e.handleProtocolError(ctx, ev.err)
	case intentEvent:
		err := e.handleIntent(ev)
		if err != nil {
			tracing.RecordError(ctx, err)
		}
		ev.reply <- err
	case ringTickEvent:
		e.handleRingTick(ev)
	case negotiationTimeoutEvent:
		e.handleNegotiationTimeout(ev)
	case mediaReadyEvent:
		e.handleMediaReady(ev)
	case descriptionReadyEvent:
		e.handleDescriptionReady(ev)
	case localCandidateEvent:
		e.handleLocalCandidate(ev)
	case mediaFailedEvent:
		e.handleMediaFailed(ev)
	case mediaConnectedEvent:
		if ev.epoch == e.epoch && e.call != nil {
			e.callLogger().Infow("Media connected")
		}
	}

	tracing.AddSpanAttributes(ctx, tracing.ToStateKey.String(e.session.state().String()))
	if e.call != nil {
		tracing.AddSpanAttributes(ctx, tracing.CallIDKey.String(e.call.id))
	}
}

func (e *CallEngine) handleProtocolError(ctx context.Context, err error) {
	tracing.RecordError(ctx, err)
	e.metrics.RecordMessageDropped("protocol_error")
	e.logger.Warnw("Dropping invalid signal message", "error", err, "state", e.session.state().String())
	e.notify(domain.Notification{Kind: domain.NotifyProtocolError, Detail: err.Error()})
}

// beginCall creates the call context for a transition out of Idle.
func (e *CallEngine) beginCall(remote domain.ParticipantID, proxy *domain.ParticipantID) {
	e.epoch++
	e.call = &callContext{
		id:        uuid.NewString(),
		remote:    remote,
		proxy:     proxy,
		startedAt: time.Now(),
	}
}

// setSession switches the session variant, releasing the timers owned by
// the state being left.
func (e *CallEngine) setSession(next session) {
	prev := e.session
	from, to := prev.state(), next.state()

	if c, ok := prev.(*callingSession); ok && to != domain.StateCalling {
		if c.timer != nil {
			c.timer.Stop()
		}
	}
	if to == domain.StateIdle || to == domain.StateActiveCall {
		e.stopDeadline()
	}

	e.session = next
	if from != to {
		e.metrics.RecordTransition(from, to)
		e.callLogger().Infow("Call state changed", "from", from.String(), "to", to.String())
	}
	e.updateSnapshot()
}

// toIdle tears down the call context: timers are stopped, the media
// session is closed once and callEnded is emitted once. It is a no-op when
// already idle.
func (e *CallEngine) toIdle(reason domain.EndReason) {
	if e.call == nil {
		return
	}

	call := e.call
	log := e.callLogger()

	if n := negotiationOf(e.session); n != nil && n.media != nil {
		if err := n.media.Close(); err != nil {
			log.Warnw("Failed to close media session", "error", err)
		}
		n.media = nil
	}

	e.call = nil
	e.epoch++
	e.setSession(idleSession{})

	duration := time.Since(call.startedAt)
	e.metrics.RecordCallEnded(reason, duration)
	log.Infow("Call ended", "reason", reason, "duration", duration)

	e.notify(domain.Notification{
		Kind:   domain.NotifyCallEnded,
		CallID: call.id,
		Remote: call.remote.Ptr(),
		Proxy:  call.proxy,
		Reason: reason,
	})
}

// farewellType picks the message that releases the remote from the
// current state.
func (e *CallEngine) farewellType() (domain.MessageType, bool) {
	switch s := e.session.(type) {
	case *callingSession:
		return domain.MessageCancel, true
	case promptSession:
		return domain.MessageDecline, true
	case *waitingForOfferSession:
		if !s.acceptedSent {
			// the caller is still ringing
			return domain.MessageDecline, true
		}
		return domain.MessageBye, true
	case *waitingForAnswerSession, *activeSession:
		return domain.MessageBye, true
	default:
		return "", false
	}
}

func (e *CallEngine) shutdown() {
	if e.call == nil {
		return
	}
	if t, ok := e.farewellType(); ok {
		payload, err := codec.Encode(domain.NewControlMessage(t).From(e.cfg.Self))
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PublishTimeout)
			if err := e.transport.Publish(ctx, e.call.remote, payload); err != nil {
				e.metrics.RecordPublishError()
				e.callLogger().Warnw("Failed to send farewell", "type", t, "error", err)
			} else {
				e.metrics.RecordMessageSent(t)
			}
			cancel()
		}
	}
	e.toIdle(domain.EndShutdown)
}

// send stamps msg with the local participant and queues it for publishing.
// Delivery is best-effort: a full outbox drops the message.
func (e *CallEngine) send(to domain.ParticipantID, msg domain.SignalMessage) {
	payload, err := codec.Encode(msg.From(e.cfg.Self))
	if err != nil {
		e.logger.Errorw("Failed to encode signal message", "type", msg.Type, "error", err)
		return
	}

	select {
	case e.outbox <- outboundMessage{to: to, typ: msg.Type, payload: payload}:
		e.logger.Debugw("Queued signal message", "type", msg.Type, "to", to.String())
	default:
		e.metrics.RecordMessageDropped("outbox_full")
		e.logger.Warnw("Outbox full, dropping signal message", "type", msg.Type, "to", to.String())
	}
}

func (e *CallEngine) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-e.outbox:
			e.publish(ctx, out)
		}
	}
}

func (e *CallEngine) publish(ctx context.Context, out outboundMessage) {
	pubCtx, span := tracing.TraceSignal(ctx, string(out.typ), out.to.String())
	defer span.End()

	pubCtx, cancel := context.WithTimeout(pubCtx, e.cfg.PublishTimeout)
	defer cancel()

	if err := e.transport.Publish(pubCtx, out.to, out.payload); err != nil {
		err = apperrors.NewTransportError(err, fmt.Sprintf("publish %s", out.typ))
		tracing.RecordError(pubCtx, err)
		e.metrics.RecordPublishError()
		e.logger.Warnw("Failed to publish signal message", "type", out.typ, "to", out.to.String(), "error", err)
		return
	}
	e.metrics.RecordMessageSent(out.typ)
}

func (e *CallEngine) notify(n domain.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	if n.CallID == "" && e.call != nil {
		n.CallID = e.call.id
	}
	e.notifier.Notify(n)
}

// notifyCall emits a notification about the live call.
func (e *CallEngine) notifyCall(kind domain.NotificationKind) {
	n := domain.Notification{Kind: kind}
	if e.call != nil {
		n.Remote = e.call.remote.Ptr()
		n.Proxy = e.call.proxy
	}
	e.notify(n)
}

func (e *CallEngine) callLogger() *zap.SugaredLogger {
	if e.call == nil {
		return e.logger
	}
	log := e.logger.With("call_id", e.call.id, "remote", e.call.remote.String())
	if e.call.proxy != nil {
		log = log.With("proxy", e.call.proxy.String())
	}
	return log
}

func (e *CallEngine) updateSnapshot() {
	e.snapMu.RLock()
	prev := e.snapshot
	e.snapMu.RUnlock()

	snap := ports.CallSnapshot{State: e.session.state(), Since: prev.Since}
	if snap.State != prev.State {
		snap.Since = time.Now()
	}
	if e.call != nil {
		snap.CallID = e.call.id
		snap.Remote = e.call.remote.Ptr()
		if e.call.proxy != nil {
			snap.Proxy = e.call.proxy.Ptr()
		}
	}
	switch s := e.session.(type) {
	case *waitingForAnswerSession:
		snap.Initiator = true
	case *activeSession:
		snap.Initiator = s.initiator
	}

	e.snapMu.Lock()
	e.snapshot = snap
	e.snapMu.Unlock()
}

func (e *CallEngine) armDeadline() {
	e.stopDeadline()
	epoch := e.epoch
	e.deadline = time.AfterFunc(e.cfg.MediaTimeout, func() {
		e.post(negotiationTimeoutEvent{epoch: epoch})
	})
}

func (e *CallEngine) stopDeadline() {
	if e.deadline != nil {
		e.deadline.Stop()
		e.deadline = nil
	}
}
