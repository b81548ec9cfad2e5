package ports

import (
	"context"
	"time"

	"rillcall/internal/core/domain"
)

// Notifier receives lifecycle notifications produced by the call engine.
type Notifier interface {
	Notify(n domain.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(domain.Notification)

func (f NotifierFunc) Notify(n domain.Notification) { f(n) }

// CallSnapshot is a read-only copy of the engine's current session.
type CallSnapshot struct {
	State     domain.CallState      `json:"state"`
	CallID    string                `json:"call_id,omitempty"`
	Remote    *domain.ParticipantID `json:"remote,omitempty"`
	Proxy     *domain.ParticipantID `json:"proxy,omitempty"`
	Initiator bool                  `json:"initiator"`
	Since     time.Time             `json:"since"`
}

// CallService is the UI intent surface of the call engine.
type CallService interface {
	NewCall(ctx context.Context, target domain.ParticipantID, proxy *domain.ParticipantID) error
	AcceptCall(ctx context.Context) error
	AnswerCall(ctx context.Context, from domain.ParticipantID) error
	DeclineCall(ctx context.Context) error
	CancelCall(ctx context.Context) error
	Hangup(ctx context.Context) error
	Snapshot() CallSnapshot
	Self() domain.ParticipantID
}

// CallMetrics records engine activity.
type CallMetrics interface {
	RecordTransition(from, to domain.CallState)
	RecordMessageReceived(t domain.MessageType)
	RecordMessageSent(t domain.MessageType)
	RecordMessageDropped(reason string)
	RecordRingAttempt()
	RecordCallStarted(initiator bool)
	RecordCallEnded(reason domain.EndReason, duration time.Duration)
	RecordPublishError()
}
