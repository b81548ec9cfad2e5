package domain

import "errors"

var (
	ErrInvalidState       = errors.New("operation not allowed in current call state")
	ErrNoRemote           = errors.New("no remote participant selected")
	ErrSelfCall           = errors.New("cannot call own client")
	ErrEngineStopped      = errors.New("call engine stopped")
	ErrMalformedMessage   = errors.New("malformed signal message")
	ErrUnknownMessageType = errors.New("unknown signal message type")
	ErrMissingField       = errors.New("missing required field")
	ErrMediaUnavailable   = errors.New("local media unavailable")
	ErrParticipantUnknown = errors.New("participant not found")
)
