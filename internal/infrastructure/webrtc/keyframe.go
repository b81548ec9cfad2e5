package webrtc

import (
	"sync"
	"time"

	"github.com/pion/rtp"
)

// isVP8Keyframe reports whether packet starts a VP8 keyframe.
func isVP8Keyframe(packet *rtp.Packet) bool {
	p := packet.Payload
	if len(p) < 1 {
		return false
	}

	// payload descriptor: X bit, S bit, partition index
	x := p[0]&0x80 != 0
	start := p[0]&0x10 != 0
	pid := p[0] & 0x07
	if !start || pid != 0 {
		return false
	}

	i := 1
	if x {
		if len(p) < 2 {
			return false
		}
		ext := p[1]
		i++
		if ext&0x80 != 0 { // picture id
			if len(p) <= i {
				return false
			}
			if p[i]&0x80 != 0 {
				i++
			}
			i++
		}
		if ext&0x40 != 0 { // tl0picidx
			i++
		}
		if ext&0x20 != 0 || ext&0x10 != 0 { // tid / keyidx
			i++
		}
	}
	if len(p) <= i {
		return false
	}
	// P bit of the VP8 frame header is zero for keyframes
	return p[i]&0x01 == 0
}

// keyframeTracker remembers when each remote video track last delivered a
// keyframe so that picture loss requests are only sent when one is overdue.
type keyframeTracker struct {
	mu   sync.Mutex
	last map[uint32]time.Time
}

func newKeyframeTracker() *keyframeTracker {
	return &keyframeTracker{last: make(map[uint32]time.Time)}
}

func (k *keyframeTracker) observe(ssrc uint32, packet *rtp.Packet, now time.Time) bool {
	if !isVP8Keyframe(packet) {
		return false
	}
	k.mu.Lock()
	k.last[ssrc] = now
	k.mu.Unlock()
	return true
}

// overdue reports whether ssrc has gone at least interval without a keyframe.
func (k *keyframeTracker) overdue(ssrc uint32, interval time.Duration, now time.Time) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	last, ok := k.last[ssrc]
	return !ok || now.Sub(last) >= interval
}
