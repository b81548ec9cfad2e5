package services

import (
	"fmt"
	"time"

	"rillcall/internal/core/domain"
	apperrors "rillcall/pkg/errors"
)

func (e *CallEngine) handleIntent(in intentEvent) error {
	state := e.session.state()
	forbidden := func() error {
		e.logger.Infow("Rejecting intent", "intent", in.kind, "state", state.String())
		return apperrors.NewInvalidStateError(domain.ErrInvalidState, state.String()).
			WithContext("intent", string(in.kind))
	}

	switch in.kind {
	case intentNewCall:
		if state != domain.StateIdle {
			return forbidden()
		}
		e.beginCall(in.target, nil)
		s := &callingSession{proxy: in.proxy}
		e.setSession(s)
		e.ring(s)

	case intentAccept:
		if state != domain.StatePrompt {
			return forbidden()
		}
		e.startWaitingForOffer(false)

	case intentAnswer:
		if state != domain.StateIdle {
			return forbidden()
		}
		e.beginCall(in.target, nil)
		e.startWaitingForOffer(true)

	case intentDecline:
		if state != domain.StatePrompt {
			return forbidden()
		}
		e.send(e.call.remote, domain.NewControlMessage(domain.MessageDecline))
		e.toIdle(domain.EndDeclined)

	case intentCancel:
		if state != domain.StateCalling {
			return forbidden()
		}
		e.send(e.call.remote, domain.NewControlMessage(domain.MessageCancel))
		e.toIdle(domain.EndCancelled)

	case intentHangup:
		if !state.Negotiating() {
			return forbidden()
		}
		if t, ok := e.farewellType(); ok {
			e.send(e.call.remote, domain.NewControlMessage(t))
		}
		e.toIdle(domain.EndHangup)

	default:
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown intent %q", in.kind))
	}
	return nil
}

// ring sends one call message and schedules the next attempt.
func (e *CallEngine) ring(s *callingSession) {
	s.sent++
	e.send(e.call.remote, domain.NewCallMessage(s.proxy))
	e.metrics.RecordRingAttempt()

	n := domain.Notification{Kind: domain.NotifyRinging, Remote: e.call.remote.Ptr(), Proxy: s.proxy, Attempt: s.sent}
	e.notify(n)
	e.callLogger().Infow("Ringing", "attempt", s.sent, "max_attempts", e.cfg.RingAttempts)

	epoch := e.epoch
	s.timer = time.AfterFunc(e.cfg.RingInterval, func() {
		e.post(ringTickEvent{epoch: epoch})
	})
}

func (e *CallEngine) handleRingTick(ev ringTickEvent) {
	s, ok := e.session.(*callingSession)
	if !ok || ev.epoch != e.epoch {
		return
	}
	if s.sent < e.cfg.RingAttempts {
		e.ring(s)
		return
	}

	e.callLogger().Infow("Remote did not pick up the call", "attempts", s.sent)
	e.send(e.call.remote, domain.NewControlMessage(domain.MessageCancel))
	e.notifyCall(domain.NotifyNoAnswer)
	e.toIdle(domain.EndNoAnswer)
}

func (e *CallEngine) handleNegotiationTimeout(ev negotiationTimeoutEvent) {
	if ev.epoch != e.epoch {
		return
	}
	state := e.session.state()
	if state != domain.StateWaitingForOffer && state != domain.StateWaitingForAnswer {
		return
	}

	err := apperrors.NewTimeoutError(fmt.Sprintf("no progress while %s", state))
	e.callLogger().Warnw("Negotiation timed out", "state", state.String(), "timeout", e.cfg.MediaTimeout)
	if t, ok := e.farewellType(); ok {
		e.send(e.call.remote, domain.NewControlMessage(t))
	}
	e.notify(domain.Notification{Kind: domain.NotifyMediaError, Remote: e.call.remote.Ptr(), Detail: err.Error()})
	e.toIdle(domain.EndTimeout)
}

// handleMessage applies one authenticated inbound message.
func (e *CallEngine) handleMessage(msg domain.SignalMessage) {
	switch msg.Type {
	case domain.MessageCall:
		e.onCall(msg)
	case domain.MessageCancel:
		e.onCancel(msg)
	case domain.MessageBusy, domain.MessageDecline:
		e.onRejected(msg)
	case domain.MessageAccepted:
		e.onAccepted(msg)
	case domain.MessageOffer:
		e.onOffer(msg)
	case domain.MessageAnswer:
		e.onAnswer(msg)
	case domain.MessageCandidate:
		e.onCandidate(msg)
	case domain.MessageBye:
		e.onBye(msg)
	default:
		// decoded messages always carry a known type
		e.handleProtocolError(e.runCtx, apperrors.NewProtocolError(domain.ErrUnknownMessageType, string(msg.Type)))
	}
}

func (e *CallEngine) ignore(msg domain.SignalMessage) {
	e.metrics.RecordMessageDropped("ignored")
	e.callLogger().Infow("Ignoring "+string(msg.Type),
		"from", msg.Client.String(),
		"state", e.session.state().String(),
	)
}

func (e *CallEngine) onCall(msg domain.SignalMessage) {
	switch state := e.session.state(); {
	case state == domain.StateIdle:
		e.beginCall(msg.Client, msg.Proxy)
		e.setSession(promptSession{})
		e.callLogger().Infow("Incoming call")
		e.notifyCall(domain.NotifyIncomingCall)
	case state.AcceptsIncomingCall():
		// a second inviter is not queued
		e.ignore(msg)
	default:
		e.callLogger().Infow("Busy, rejecting call", "from", msg.Client.String(), "state", state.String())
		e.send(msg.Client, domain.NewControlMessage(domain.MessageBusy))
	}
}

func (e *CallEngine) onCancel(msg domain.SignalMessage) {
	switch e.session.state() {
	case domain.StatePrompt, domain.StateWaitingForOffer:
		// in WaitingForOffer the caller gave up before our accepted arrived
		if msg.Client.Equal(e.call.remote) {
			e.toIdle(domain.EndCancelled)
			return
		}
	}
	e.ignore(msg)
}

func (e *CallEngine) onRejected(msg domain.SignalMessage) {
	if _, ok := e.session.(*callingSession); !ok || !msg.Client.Equal(e.call.remote) {
		e.ignore(msg)
		return
	}

	if msg.Type == domain.MessageBusy {
		e.notifyCall(domain.NotifyBusy)
		e.toIdle(domain.EndBusy)
		return
	}
	e.notifyCall(domain.NotifyDeclined)
	e.toIdle(domain.EndDeclined)
}

func (e *CallEngine) onAccepted(msg domain.SignalMessage) {
	s, ok := e.session.(*callingSession)
	if !ok {
		e.ignore(msg)
		return
	}

	// Any rerouting sender is adopted unless a proxy was announced, in which
	// case only that proxy may take the call over.
	if msg.Reroute && !msg.Client.Equal(e.call.remote) && (s.proxy == nil || msg.Client.Equal(*s.proxy)) {
		e.callLogger().Infow("Rerouting call", "to", msg.Client.String())
		// release the original target, which may still be prompting
		e.send(e.call.remote, domain.NewControlMessage(domain.MessageCancel))
		e.call.proxy = e.call.remote.Ptr()
		e.call.remote = msg.Client
	}

	if !msg.Client.Equal(e.call.remote) {
		e.ignore(msg)
		return
	}

	e.setSession(&waitingForAnswerSession{})
	e.armDeadline()
	e.acquireMedia()
}

func (e *CallEngine) onOffer(msg domain.SignalMessage) {
	s, ok := e.session.(*waitingForOfferSession)
	if !ok || !msg.Client.Equal(e.call.remote) {
		e.ignore(msg)
		return
	}

	next := &activeSession{
		negotiation: s.negotiation,
		initiator:   false,
		remoteOffer: msg.Description,
	}
	e.setSession(next)
	e.metrics.RecordCallStarted(false)
	e.notifyCall(domain.NotifyCallActive)

	if next.media != nil {
		e.answerOffer(next)
	}
	// otherwise the answer is produced once media is ready
}

func (e *CallEngine) onAnswer(msg domain.SignalMessage) {
	s, ok := e.session.(*waitingForAnswerSession)
	if !ok || !msg.Client.Equal(e.call.remote) {
		e.ignore(msg)
		return
	}
	if s.media == nil || !s.offerSent {
		e.callLogger().Warnw("Answer received before offer was sent", "from", msg.Client.String())
		e.ignore(msg)
		return
	}

	if err := s.media.SetRemoteDescription(*msg.Description); err != nil {
		e.failMedia(err, "apply remote answer")
		return
	}

	next := &activeSession{negotiation: s.negotiation, initiator: true}
	next.remoteApplied = true
	e.setSession(next)
	e.flushCandidates(&next.negotiation)
	e.metrics.RecordCallStarted(true)
	e.notifyCall(domain.NotifyCallActive)
}

func (e *CallEngine) onCandidate(msg domain.SignalMessage) {
	n := negotiationOf(e.session)
	if n == nil || !e.call.authorized(msg.Client) {
		e.ignore(msg)
		return
	}

	if n.media == nil || !n.remoteApplied {
		if !n.buffer(*msg.Candidate) {
			e.metrics.RecordMessageDropped("candidate_overflow")
			e.callLogger().Warnw("Dropping remote candidate, buffer full")
		}
		return
	}
	if err := n.media.AddRemoteCandidate(*msg.Candidate); err != nil {
		e.callLogger().Warnw("Failed to add remote candidate", "error", err)
	}
}

func (e *CallEngine) onBye(msg domain.SignalMessage) {
	if !e.session.state().Negotiating() || !e.call.authorized(msg.Client) {
		e.ignore(msg)
		return
	}
	e.callLogger().Infow("Remote hung up", "from", msg.Client.String())
	e.toIdle(domain.EndRemoteHangup)
}
