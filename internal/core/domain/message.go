package domain

// MessageType tags a SignalMessage.
type MessageType string

const (
	MessageCall      MessageType = "call"
	MessageCancel    MessageType = "cancel"
	MessageBusy      MessageType = "busy"
	MessageDecline   MessageType = "decline"
	MessageAccepted  MessageType = "accepted"
	MessageOffer     MessageType = "offer"
	MessageAnswer    MessageType = "answer"
	MessageCandidate MessageType = "candidate"
	MessageBye       MessageType = "bye"
)

var knownMessageTypes = map[MessageType]struct{}{
	MessageCall:      {},
	MessageCancel:    {},
	MessageBusy:      {},
	MessageDecline:   {},
	MessageAccepted:  {},
	MessageOffer:     {},
	MessageAnswer:    {},
	MessageCandidate: {},
	MessageBye:       {},
}

func (t MessageType) Known() bool {
	_, ok := knownMessageTypes[t]
	return ok
}

// SDPType is the kind of a session description.
type SDPType string

const (
	SDPTypeOffer  SDPType = "offer"
	SDPTypeAnswer SDPType = "answer"
)

// SessionDescription is the opaque media capability document exchanged via
// offer and answer messages.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

// ICECandidate is one connectivity-path hint.
type ICECandidate struct {
	Candidate     string
	SDPMid        *string
	SDPMLineIndex *uint16
}

// SignalMessage is the tagged union of everything exchanged between
// participants. Only the fields that belong to Type are set. Values are
// never mutated after construction.
type SignalMessage struct {
	Type   MessageType
	Client ParticipantID

	// call, accepted
	Proxy *ParticipantID
	// accepted
	Reroute bool
	// offer, answer
	Description *SessionDescription
	// candidate
	Candidate *ICECandidate
}

func NewCallMessage(proxy *ParticipantID) SignalMessage {
	return SignalMessage{Type: MessageCall, Proxy: proxy}
}

func NewAcceptedMessage(reroute bool) SignalMessage {
	return SignalMessage{Type: MessageAccepted, Reroute: reroute}
}

func NewDescriptionMessage(desc SessionDescription) SignalMessage {
	t := MessageOffer
	if desc.Type == SDPTypeAnswer {
		t = MessageAnswer
	}
	return SignalMessage{Type: t, Description: &desc}
}

func NewCandidateMessage(c ICECandidate) SignalMessage {
	return SignalMessage{Type: MessageCandidate, Candidate: &c}
}

// NewControlMessage builds one of the payload-less messages
// (cancel, busy, decline, bye).
func NewControlMessage(t MessageType) SignalMessage {
	return SignalMessage{Type: t}
}

// From returns a copy of m stamped with the sender.
func (m SignalMessage) From(sender ParticipantID) SignalMessage {
	m.Client = sender
	return m
}
