package domain

import "time"

// NotificationKind enumerates the lifecycle events the UI is told about.
type NotificationKind string

const (
	NotifyRinging       NotificationKind = "ringing"
	NotifyNoAnswer      NotificationKind = "no_answer"
	NotifyBusy          NotificationKind = "busy"
	NotifyDeclined      NotificationKind = "declined"
	NotifyIncomingCall  NotificationKind = "incoming_call"
	NotifyCallActive    NotificationKind = "call_active"
	NotifyCallEnded     NotificationKind = "call_ended"
	NotifyProtocolError NotificationKind = "protocol_error"
	NotifyMediaError    NotificationKind = "media_error"
)

// EndReason says why a call context was torn down.
type EndReason string

const (
	EndHangup       EndReason = "hangup"
	EndRemoteHangup EndReason = "remote_hangup"
	EndCancelled    EndReason = "cancelled"
	EndNoAnswer     EndReason = "no_answer"
	EndBusy         EndReason = "busy"
	EndDeclined     EndReason = "declined"
	EndMediaError   EndReason = "media_error"
	EndMediaFailure EndReason = "media_failure"
	EndTimeout      EndReason = "timeout"
	EndShutdown     EndReason = "shutdown"
)

type Notification struct {
	Kind      NotificationKind `json:"kind"`
	CallID    string           `json:"call_id,omitempty"`
	Remote    *ParticipantID   `json:"remote,omitempty"`
	Proxy     *ParticipantID   `json:"proxy,omitempty"`
	Reason    EndReason        `json:"reason,omitempty"`
	Detail    string           `json:"detail,omitempty"`
	Attempt   int              `json:"attempt,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
