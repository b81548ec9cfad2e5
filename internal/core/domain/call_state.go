package domain

// CallState is the live state of the local signaling session.
type CallState int

const (
	StateIdle CallState = iota
	StateCalling
	StateWaitingForAnswer
	StateWaitingForOffer
	StateActiveCall
	StatePrompt
)

func (s CallState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalling:
		return "calling"
	case StateWaitingForAnswer:
		return "waiting_for_answer"
	case StateWaitingForOffer:
		return "waiting_for_offer"
	case StateActiveCall:
		return "active_call"
	case StatePrompt:
		return "prompt"
	default:
		return "unknown"
	}
}

// AcceptsIncomingCall reports whether a `call` received in this state is
// handled without replying busy.
func (s CallState) AcceptsIncomingCall() bool {
	return s == StateIdle || s == StatePrompt || s == StateWaitingForOffer
}

// Negotiating reports whether a media session may exist in this state.
func (s CallState) Negotiating() bool {
	return s == StateWaitingForAnswer || s == StateWaitingForOffer || s == StateActiveCall
}

func (s CallState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
