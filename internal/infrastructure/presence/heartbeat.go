package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

// Heartbeat announces self every interval until ctx is done, then
// withdraws it.
func Heartbeat(ctx context.Context, dir ports.PresenceDirectory, self domain.ParticipantID, interval time.Duration, logger *zap.SugaredLogger) {
	announce := func() {
		if err := dir.Announce(ctx, self); err != nil {
			logger.Warnw("Failed to announce presence", "participant", self.String(), "error", err)
		}
	}

	announce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// ctx is already cancelled
			wctx, cancel := context.WithTimeout(context.Background(), time.Second)
			if err := dir.Withdraw(wctx, self); err != nil {
				logger.Warnw("Failed to withdraw presence", "participant", self.String(), "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			announce()
		}
	}
}

// Others filters self out of a directory listing.
func Others(all []domain.ParticipantID, self domain.ParticipantID) []domain.ParticipantID {
	out := make([]domain.ParticipantID, 0, len(all))
	for _, p := range all {
		if !p.Equal(self) {
			out = append(out, p)
		}
	}
	return out
}
