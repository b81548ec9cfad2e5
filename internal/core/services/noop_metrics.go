package services

import (
	"time"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

type noopMetrics struct{}

// NoopMetrics discards everything. It is used when no collector is configured.
func NoopMetrics() ports.CallMetrics { return noopMetrics{} }

func (noopMetrics) RecordTransition(domain.CallState, domain.CallState) {}
func (noopMetrics) RecordMessageReceived(domain.MessageType)            {}
func (noopMetrics) RecordMessageSent(domain.MessageType)                {}
func (noopMetrics) RecordMessageDropped(string)                         {}
func (noopMetrics) RecordRingAttempt()                                  {}
func (noopMetrics) RecordCallStarted(bool)                              {}
func (noopMetrics) RecordCallEnded(domain.EndReason, time.Duration)     {}
func (noopMetrics) RecordPublishError()                                 {}
