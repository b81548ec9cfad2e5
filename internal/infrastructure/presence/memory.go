package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

// MemoryDirectory is a process-local presence directory. Entries expire ttl
// after their last announcement.
type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[domain.ParticipantID]time.Time
	ttl     time.Duration
	now     func() time.Time
}

var _ ports.PresenceDirectory = (*MemoryDirectory)(nil)

func NewMemoryDirectory(ttl time.Duration) *MemoryDirectory {
	return &MemoryDirectory{
		entries: make(map[domain.ParticipantID]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (d *MemoryDirectory) Announce(ctx context.Context, p domain.ParticipantID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[p] = d.now().Add(d.ttl)
	return nil
}

func (d *MemoryDirectory) Withdraw(ctx context.Context, p domain.ParticipantID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, p)
	return nil
}

// List returns the live participants ordered by username, then client id.
func (d *MemoryDirectory) List(ctx context.Context) ([]domain.ParticipantID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	online := make([]domain.ParticipantID, 0, len(d.entries))
	for p, expires := range d.entries {
		if now.After(expires) {
			delete(d.entries, p)
			continue
		}
		online = append(online, p)
	}
	sortParticipants(online)
	return online, nil
}

func sortParticipants(ps []domain.ParticipantID) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Username != ps[j].Username {
			return ps[i].Username < ps[j].Username
		}
		return ps[i].ClientID < ps[j].ClientID
	})
}
