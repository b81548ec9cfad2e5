package services

import (
	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

// event is everything the engine loop processes. Completions of
// asynchronous media work carry the epoch they were started in; the loop
// discards them when the epoch has moved on.
type event interface {
	name() string
}

type inboundEvent struct {
	msg domain.SignalMessage
}

type protocolErrorEvent struct {
	err error
}

type intentKind string

const (
	intentNewCall intentKind = "new_call"
	intentAccept  intentKind = "accept"
	intentAnswer  intentKind = "answer"
	intentDecline intentKind = "decline"
	intentCancel  intentKind = "cancel"
	intentHangup  intentKind = "hangup"
)

type intentEvent struct {
	kind   intentKind
	target domain.ParticipantID
	proxy  *domain.ParticipantID
	reply  chan error
}

type ringTickEvent struct {
	epoch uint64
}

type negotiationTimeoutEvent struct {
	epoch uint64
}

type mediaReadyEvent struct {
	epoch   uint64
	session ports.MediaSession
	err     error
}

type descriptionReadyEvent struct {
	epoch uint64
	kind  domain.SDPType
	desc  domain.SessionDescription
	err   error
}

type localCandidateEvent struct {
	epoch     uint64
	candidate domain.ICECandidate
}

type mediaFailedEvent struct {
	epoch uint64
	err   error
}

type mediaConnectedEvent struct {
	epoch uint64
}

func (e inboundEvent) name() string          { return "inbound." + string(e.msg.Type) }
func (protocolErrorEvent) name() string      { return "protocol_error" }
func (e intentEvent) name() string           { return "intent." + string(e.kind) }
func (ringTickEvent) name() string           { return "ring_tick" }
func (negotiationTimeoutEvent) name() string { return "negotiation_timeout" }
func (mediaReadyEvent) name() string         { return "media_ready" }
func (e descriptionReadyEvent) name() string { return "description_ready." + string(e.kind) }
func (localCandidateEvent) name() string     { return "local_candidate" }
func (mediaFailedEvent) name() string        { return "media_failed" }
func (mediaConnectedEvent) name() string     { return "media_connected" }
