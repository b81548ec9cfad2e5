package services

import (
	"context"
	"fmt"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
	apperrors "rillcall/pkg/errors"
	"rillcall/pkg/tracing"
)

// startWaitingForOffer accepts the current remote's call. accepted is sent
// once local media is ready.
func (e *CallEngine) startWaitingForOffer(reroute bool) {
	e.setSession(&waitingForOfferSession{reroute: reroute})
	e.armDeadline()
	e.acquireMedia()
}

// acquireMedia starts local media acquisition for the live call. The
// result comes back as a mediaReadyEvent tagged with the current epoch.
func (e *CallEngine) acquireMedia() {
	epoch := e.epoch
	callID := e.call.id
	runCtx := e.runCtx

	// hooks fire on media goroutines and must never block them
	hooks := ports.MediaHooks{
		OnLocalCandidate: func(c domain.ICECandidate) {
			go e.post(localCandidateEvent{epoch: epoch, candidate: c})
		},
		OnFailed: func(err error) {
			go e.post(mediaFailedEvent{epoch: epoch, err: err})
		},
		OnConnected: func() {
			go e.post(mediaConnectedEvent{epoch: epoch})
		},
	}

	go func() {
		ctx, span := tracing.TraceMedia(runCtx, "acquire", callID)
		defer span.End()
		ctx, cancel := context.WithTimeout(ctx, e.cfg.MediaTimeout)
		defer cancel()

		sess, err := e.media.AcquireLocalMedia(ctx, hooks)
		if err != nil {
			tracing.RecordError(ctx, err)
		}
		if !e.post(mediaReadyEvent{epoch: epoch, session: sess, err: err}) && sess != nil {
			_ = sess.Close()
		}
	}()
}

func (e *CallEngine) handleMediaReady(ev mediaReadyEvent) {
	n := negotiationOf(e.session)
	if ev.epoch != e.epoch || n == nil || n.media != nil {
		if ev.session != nil {
			e.logger.Infow("Discarding stale media session", "state", e.session.state().String())
			_ = ev.session.Close()
		}
		return
	}
	if ev.err != nil {
		e.failMedia(ev.err, "acquire local media")
		return
	}
	n.media = ev.session

	switch s := e.session.(type) {
	case *waitingForOfferSession:
		e.send(e.call.remote, domain.NewAcceptedMessage(s.reroute))
		s.acceptedSent = true
		e.callLogger().Infow("Accepted call", "reroute", s.reroute)
	case *waitingForAnswerSession:
		e.describe(s.media, domain.SDPTypeOffer)
	case *activeSession:
		if s.remoteOffer != nil {
			e.answerOffer(s)
		}
	}
}

// answerOffer applies the held remote offer and starts creating the answer.
func (e *CallEngine) answerOffer(s *activeSession) {
	if err := s.media.SetRemoteDescription(*s.remoteOffer); err != nil {
		e.failMedia(err, "apply remote offer")
		return
	}
	s.remoteOffer = nil
	s.remoteApplied = true
	e.flushCandidates(&s.negotiation)
	e.describe(s.media, domain.SDPTypeAnswer)
}

// describe creates a local offer or answer off the loop.
func (e *CallEngine) describe(media ports.MediaSession, kind domain.SDPType) {
	epoch := e.epoch
	callID := e.call.id
	runCtx := e.runCtx

	go func() {
		ctx, span := tracing.TraceMedia(runCtx, "create_"+string(kind), callID)
		defer span.End()
		ctx, cancel := context.WithTimeout(ctx, e.cfg.MediaTimeout)
		defer cancel()

		var (
			desc domain.SessionDescription
			err  error
		)
		if kind == domain.SDPTypeOffer {
			desc, err = media.CreateOffer(ctx)
		} else {
			desc, err = media.CreateAnswer(ctx)
		}
		if err != nil {
			tracing.RecordError(ctx, err)
		}
		e.post(descriptionReadyEvent{epoch: epoch, kind: kind, desc: desc, err: err})
	}()
}

func (e *CallEngine) handleDescriptionReady(ev descriptionReadyEvent) {
	if ev.epoch != e.epoch || e.call == nil {
		return
	}
	if ev.err != nil {
		e.failMedia(ev.err, "create "+string(ev.kind))
		return
	}

	switch s := e.session.(type) {
	case *waitingForAnswerSession:
		if ev.kind != domain.SDPTypeOffer || s.offerSent || s.media == nil {
			return
		}
		if err := s.media.SetLocalDescription(ev.desc); err != nil {
			e.failMedia(err, "apply local offer")
			return
		}
		s.offerSent = true
	case *activeSession:
		if ev.kind != domain.SDPTypeAnswer || s.initiator || s.media == nil {
			return
		}
		if err := s.media.SetLocalDescription(ev.desc); err != nil {
			e.failMedia(err, "apply local answer")
			return
		}
	default:
		return
	}

	e.send(e.call.remote, domain.NewDescriptionMessage(ev.desc))
}

func (e *CallEngine) handleLocalCandidate(ev localCandidateEvent) {
	if ev.epoch != e.epoch || negotiationOf(e.session) == nil {
		return
	}
	e.send(e.call.remote, domain.NewCandidateMessage(ev.candidate))
}

func (e *CallEngine) handleMediaFailed(ev mediaFailedEvent) {
	if ev.epoch != e.epoch || negotiationOf(e.session) == nil {
		return
	}
	e.callLogger().Warnw("Media connection failed", "error", ev.err)
	e.send(e.call.remote, domain.NewControlMessage(domain.MessageBye))
	e.notify(domain.Notification{
		Kind:   domain.NotifyMediaError,
		Remote: e.call.remote.Ptr(),
		Detail: ev.err.Error(),
	})
	e.toIdle(domain.EndMediaFailure)
}

// failMedia handles a local media error: the remote is released, the UI is
// told and the call context is torn down.
func (e *CallEngine) failMedia(cause error, what string) {
	err := apperrors.NewMediaError(cause, fmt.Sprintf("failed to %s", what))
	e.callLogger().Errorw("Media error", "error", err)

	if t, ok := e.farewellType(); ok {
		e.send(e.call.remote, domain.NewControlMessage(t))
	}
	e.notify(domain.Notification{
		Kind:   domain.NotifyMediaError,
		Remote: e.call.remote.Ptr(),
		Detail: err.Error(),
	})
	e.toIdle(domain.EndMediaError)
}

func (e *CallEngine) flushCandidates(n *negotiation) {
	pending := n.pending
	n.pending = nil
	for _, c := range pending {
		if err := n.media.AddRemoteCandidate(c); err != nil {
			e.callLogger().Warnw("Failed to add buffered candidate", "error", err)
		}
	}
}
