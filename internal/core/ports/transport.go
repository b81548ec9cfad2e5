package ports

import (
	"context"

	"rillcall/internal/core/domain"
)

// Transport is the unreliable pub/sub channel between participants. Delivery
// is at-most-once and unordered.
type Transport interface {
	// Publish sends an encoded payload to the topic of the given participant.
	Publish(ctx context.Context, to domain.ParticipantID, payload []byte) error
	// Subscribe returns once the subscription on self's topic is active.
	// Payloads are delivered to handler until ctx is done or Close is called.
	Subscribe(ctx context.Context, self domain.ParticipantID, handler func(payload []byte)) error
	Close() error
}

// PresenceDirectory tracks which participants are currently online.
type PresenceDirectory interface {
	Announce(ctx context.Context, p domain.ParticipantID) error
	Withdraw(ctx context.Context, p domain.ParticipantID) error
	List(ctx context.Context) ([]domain.ParticipantID, error)
}
