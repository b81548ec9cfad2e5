package services

import (
	"time"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

// maxPendingCandidates bounds the remote candidates buffered before the
// remote description is applied.
const maxPendingCandidates = 64

// callContext is the live session record. It exists exactly while the
// engine is not idle.
type callContext struct {
	id        string
	remote    domain.ParticipantID
	proxy     *domain.ParticipantID
	startedAt time.Time
}

// authorized reports whether p is the remote or the proxy of the call.
func (c *callContext) authorized(p domain.ParticipantID) bool {
	if p.Equal(c.remote) {
		return true
	}
	return c.proxy != nil && p.Equal(*c.proxy)
}

// session carries exactly the data its state needs.
type session interface {
	state() domain.CallState
}

type idleSession struct{}

type callingSession struct {
	sent  int
	proxy *domain.ParticipantID // announced in every call message
	timer *time.Timer
}

type promptSession struct{}

// negotiation is the media part shared by the negotiating states.
type negotiation struct {
	media         ports.MediaSession
	remoteApplied bool
	pending       []domain.ICECandidate
}

func (n *negotiation) buffer(c domain.ICECandidate) bool {
	if len(n.pending) >= maxPendingCandidates {
		return false
	}
	n.pending = append(n.pending, c)
	return true
}

type waitingForOfferSession struct {
	negotiation
	reroute      bool
	acceptedSent bool
}

type waitingForAnswerSession struct {
	negotiation
	offerSent bool
}

type activeSession struct {
	negotiation
	initiator bool
	// remoteOffer is held until local media is ready to answer it.
	remoteOffer *domain.SessionDescription
}

func (idleSession) state() domain.CallState              { return domain.StateIdle }
func (*callingSession) state() domain.CallState          { return domain.StateCalling }
func (promptSession) state() domain.CallState            { return domain.StatePrompt }
func (*waitingForOfferSession) state() domain.CallState  { return domain.StateWaitingForOffer }
func (*waitingForAnswerSession) state() domain.CallState { return domain.StateWaitingForAnswer }
func (*activeSession) state() domain.CallState           { return domain.StateActiveCall }

// negotiationOf returns the media part of s, or nil when s has none.
func negotiationOf(s session) *negotiation {
	switch s := s.(type) {
	case *waitingForOfferSession:
		return &s.negotiation
	case *waitingForAnswerSession:
		return &s.negotiation
	case *activeSession:
		return &s.negotiation
	default:
		return nil
	}
}
