// Package codec converts signal messages to and from their JSON wire form.
//
// Wire form (one JSON object per payload):
//
//	{"type":"call","client":{"username":"u","client_id":"c"},"proxy":{...}}
//	{"type":"accepted","client":{...},"reroute":true}
//	{"type":"offer","client":{...},"sdp":"v=0..."}
//	{"type":"candidate","client":{...},"label":0,"id":"0","candidate":"candidate:..."}
package codec

import (
	"encoding/json"
	"fmt"

	"rillcall/internal/core/domain"
	apperrors "rillcall/pkg/errors"
	"rillcall/pkg/validation"
)

// DefaultChannel is the topic suffix used for signaling payloads.
const DefaultChannel = "webrtc/message"

type wireMessage struct {
	Type    domain.MessageType    `json:"type"`
	Client  *domain.ParticipantID `json:"client"`
	Proxy   *domain.ParticipantID `json:"proxy,omitempty"`
	Reroute *bool                 `json:"reroute,omitempty"`

	SDP string `json:"sdp,omitempty"`

	Label     *uint16 `json:"label,omitempty"`
	ID        *string `json:"id,omitempty"`
	Candidate string  `json:"candidate,omitempty"`
}

// Topic returns the pub/sub topic owned by p.
func Topic(channel string, p domain.ParticipantID) string {
	if channel == "" {
		channel = DefaultChannel
	}
	return fmt.Sprintf("user/%s/client/%s/%s", p.Username, p.ClientID, channel)
}

// Encode serializes m. The message must already be stamped with its sender.
func Encode(m domain.SignalMessage) ([]byte, error) {
	if m.Client.IsZero() {
		return nil, apperrors.NewProtocolError(domain.ErrMissingField, "outbound message has no sender")
	}
	if !m.Type.Known() {
		return nil, apperrors.NewProtocolError(domain.ErrUnknownMessageType, fmt.Sprintf("cannot encode %q", m.Type))
	}

	client := m.Client
	w := wireMessage{
		Type:   m.Type,
		Client: &client,
	}

	switch m.Type {
	case domain.MessageCall:
		w.Proxy = m.Proxy
	case domain.MessageAccepted:
		reroute := m.Reroute
		w.Reroute = &reroute
	case domain.MessageOffer, domain.MessageAnswer:
		if m.Description == nil {
			return nil, apperrors.NewProtocolError(domain.ErrMissingField, "description is required")
		}
		w.SDP = m.Description.SDP
	case domain.MessageCandidate:
		if m.Candidate == nil {
			return nil, apperrors.NewProtocolError(domain.ErrMissingField, "candidate is required")
		}
		w.Candidate = m.Candidate.Candidate
		w.ID = m.Candidate.SDPMid
		w.Label = m.Candidate.SDPMLineIndex
	}

	return json.Marshal(w)
}

// Decode parses and validates an inbound payload. Every failure is an
// AppError with code PROTOCOL_ERROR wrapping a domain sentinel.
func Decode(payload []byte) (domain.SignalMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.SignalMessage{}, apperrors.NewProtocolError(
			fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err), "payload is not a signal message")
	}

	if w.Type == "" {
		return domain.SignalMessage{}, missing("type")
	}
	if !w.Type.Known() {
		return domain.SignalMessage{}, apperrors.NewProtocolError(domain.ErrUnknownMessageType,
			fmt.Sprintf("unknown message type %q", w.Type)).WithContext("type", string(w.Type))
	}
	if w.Client == nil {
		return domain.SignalMessage{}, missing("client")
	}
	if err := validation.ValidateParticipant(w.Client.Username, w.Client.ClientID); err != nil {
		return domain.SignalMessage{}, apperrors.NewProtocolError(
			fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err), "invalid client")
	}

	m := domain.SignalMessage{Type: w.Type, Client: *w.Client}

	switch w.Type {
	case domain.MessageCall:
		if w.Proxy != nil {
			if err := validation.ValidateParticipant(w.Proxy.Username, w.Proxy.ClientID); err != nil {
				return domain.SignalMessage{}, apperrors.NewProtocolError(
					fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err), "invalid proxy")
			}
			m.Proxy = w.Proxy
		}
	case domain.MessageAccepted:
		m.Reroute = w.Reroute != nil && *w.Reroute
	case domain.MessageOffer, domain.MessageAnswer:
		if w.SDP == "" {
			return domain.SignalMessage{}, missing("sdp")
		}
		if err := validation.ValidateSDP(w.SDP); err != nil {
			return domain.SignalMessage{}, apperrors.NewProtocolError(
				fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err), "invalid sdp")
		}
		sdpType := domain.SDPTypeOffer
		if w.Type == domain.MessageAnswer {
			sdpType = domain.SDPTypeAnswer
		}
		m.Description = &domain.SessionDescription{Type: sdpType, SDP: w.SDP}
	case domain.MessageCandidate:
		if w.Candidate == "" {
			return domain.SignalMessage{}, missing("candidate")
		}
		if err := validation.ValidateCandidate(w.Candidate); err != nil {
			return domain.SignalMessage{}, apperrors.NewProtocolError(
				fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err), "invalid candidate")
		}
		m.Candidate = &domain.ICECandidate{
			Candidate:     w.Candidate,
			SDPMid:        w.ID,
			SDPMLineIndex: w.Label,
		}
	}

	return m, nil
}

func missing(field string) error {
	return apperrors.NewProtocolError(fmt.Errorf("%w: %s", domain.ErrMissingField, field),
		fmt.Sprintf("missing %s", field)).WithContext("field", field)
}
