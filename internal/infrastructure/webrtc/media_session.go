package webrtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

// mediaSession adapts one pion PeerConnection to ports.MediaSession.
type mediaSession struct {
	pc          *webrtc.PeerConnection
	hooks       ports.MediaHooks
	pliInterval time.Duration
	stats       TrackStats
	keyframes   *keyframeTracker
	logger      *zap.SugaredLogger

	audio *webrtc.TrackLocalStaticRTP
	video *webrtc.TrackLocalStaticRTP

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newMediaSession(pc *webrtc.PeerConnection, hooks ports.MediaHooks, pliInterval time.Duration, stats TrackStats, logger *zap.SugaredLogger) *mediaSession {
	s := &mediaSession{
		pc:          pc,
		hooks:       hooks,
		pliInterval: pliInterval,
		stats:       stats,
		keyframes:   newKeyframeTracker(),
		logger:      logger,
		done:        make(chan struct{}),
	}

	pc.OnICECandidate(s.handleICECandidate)
	pc.OnConnectionStateChange(s.handleConnectionState)
	pc.OnTrack(s.handleRemoteTrack)
	return s
}

func (s *mediaSession) addLocalTracks() error {
	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"rillcall",
	)
	if err != nil {
		return err
	}
	video, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video",
		"rillcall",
	)
	if err != nil {
		return err
	}

	for _, track := range []*webrtc.TrackLocalStaticRTP{audio, video} {
		sender, err := s.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("failed to add %s track: %w", track.Kind(), err)
		}
		go s.drainSenderRTCP(sender)
	}
	s.audio, s.video = audio, video
	return nil
}

// LocalTracks returns the tracks a media source writes RTP into.
func (s *mediaSession) LocalTracks() (audio, video *webrtc.TrackLocalStaticRTP) {
	return s.audio, s.video
}

func (s *mediaSession) CreateOffer(ctx context.Context) (domain.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionDescription{}, err
	}
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return fromPion(offer), nil
}

func (s *mediaSession) CreateAnswer(ctx context.Context) (domain.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionDescription{}, err
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return fromPion(answer), nil
}

func (s *mediaSession) SetLocalDescription(desc domain.SessionDescription) error {
	return s.pc.SetLocalDescription(toPion(desc))
}

func (s *mediaSession) SetRemoteDescription(desc domain.SessionDescription) error {
	return s.pc.SetRemoteDescription(toPion(desc))
}

func (s *mediaSession) AddRemoteCandidate(c domain.ICECandidate) error {
	if s.pc.RemoteDescription() == nil {
		return errors.New("remote description not set")
	}
	return s.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	})
}

// Close closes the peer connection once; later calls return the first result.
func (s *mediaSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.pc.Close()
	})
	return s.closeErr
}

func (s *mediaSession) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *mediaSession) handleICECandidate(c *webrtc.ICECandidate) {
	// nil marks the end of gathering
	if c == nil || s.hooks.OnLocalCandidate == nil || s.closed() {
		return
	}
	init := c.ToJSON()
	s.hooks.OnLocalCandidate(domain.ICECandidate{
		Candidate:     init.Candidate,
		SDPMid:        init.SDPMid,
		SDPMLineIndex: init.SDPMLineIndex,
	})
}

func (s *mediaSession) handleConnectionState(state webrtc.PeerConnectionState) {
	s.logger.Infow("Peer connection state changed", "connection_state", state.String())
	if s.closed() {
		return
	}

	switch state {
	case webrtc.PeerConnectionStateConnected:
		if s.hooks.OnConnected != nil {
			s.hooks.OnConnected()
		}
	case webrtc.PeerConnectionStateFailed:
		if s.hooks.OnFailed != nil {
			s.hooks.OnFailed(fmt.Errorf("peer connection %s", state))
		}
	}
}

func (s *mediaSession) handleRemoteTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	kind := track.Kind().String()
	s.logger.Infow("Remote track started",
		"track_id", track.ID(),
		"kind", kind,
		"codec", track.Codec().MimeType,
	)

	go s.readRTCP(receiver)
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		go s.requestKeyframes(uint32(track.SSRC()))
	}
	s.readRTP(track, kind)
}

// readRTP consumes the remote track until it ends.
func (s *mediaSession) readRTP(track *webrtc.TrackRemote, kind string) {
	buf := make([]byte, 1500)
	packet := &rtp.Packet{}
	ssrc := uint32(track.SSRC())

	for {
		n, _, err := track.Read(buf)
		if err != nil {
			s.logger.Debugw("Remote track ended", "track_id", track.ID(), "error", err)
			return
		}
		s.stats.RecordRTPPacket(kind, n)

		if track.Kind() != webrtc.RTPCodecTypeVideo {
			continue
		}
		if err := packet.Unmarshal(buf[:n]); err != nil {
			continue
		}
		s.keyframes.observe(ssrc, packet, time.Now())
	}
}

func (s *mediaSession) readRTCP(receiver *webrtc.RTPReceiver) {
	for {
		packets, _, err := receiver.ReadRTCP()
		if err != nil {
			return
		}
		s.recordReports(packets)
	}
}

func (s *mediaSession) recordReports(packets []rtcp.Packet) {
	for _, p := range packets {
		if rr, ok := p.(*rtcp.ReceiverReport); ok {
			for _, report := range rr.Reports {
				s.stats.RecordReceiverReport(report.FractionLost, report.Jitter)
			}
		}
	}
}

// drainSenderRTCP keeps interceptors running for an outgoing track.
func (s *mediaSession) drainSenderRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		packets, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		s.recordReports(packets)
	}
}

// requestKeyframes sends a PLI whenever the remote video track has gone a
// full interval without a keyframe.
func (s *mediaSession) requestKeyframes(ssrc uint32) {
	ticker := time.NewTicker(s.pliInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			if !s.keyframes.overdue(ssrc, s.pliInterval, now) {
				continue
			}
			err := s.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}})
			if err != nil {
				s.logger.Debugw("Failed to send PLI", "ssrc", ssrc, "error", err)
				return
			}
			s.stats.RecordKeyframeRequest()
		}
	}
}

func toPion(desc domain.SessionDescription) webrtc.SessionDescription {
	t := webrtc.SDPTypeOffer
	if desc.Type == domain.SDPTypeAnswer {
		t = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: t, SDP: desc.SDP}
}

func fromPion(desc webrtc.SessionDescription) domain.SessionDescription {
	t := domain.SDPTypeOffer
	if desc.Type == webrtc.SDPTypeAnswer {
		t = domain.SDPTypeAnswer
	}
	return domain.SessionDescription{Type: t, SDP: desc.SDP}
}
