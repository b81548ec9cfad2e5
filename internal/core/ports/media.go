package ports

import (
	"context"

	"rillcall/internal/core/domain"
)

// MediaHooks lets a media session report events back to its owner. Hooks may
// be invoked from any goroutine.
type MediaHooks struct {
	OnLocalCandidate func(domain.ICECandidate)
	OnFailed         func(error)
	OnConnected      func()
}

// MediaController acquires local media and creates a session around it.
type MediaController interface {
	AcquireLocalMedia(ctx context.Context, hooks MediaHooks) (MediaSession, error)
}

// MediaSession is one negotiated media session. Close must be idempotent.
type MediaSession interface {
	CreateOffer(ctx context.Context) (domain.SessionDescription, error)
	CreateAnswer(ctx context.Context) (domain.SessionDescription, error)
	SetLocalDescription(desc domain.SessionDescription) error
	SetRemoteDescription(desc domain.SessionDescription) error
	AddRemoteCandidate(c domain.ICECandidate) error
	Close() error
}
