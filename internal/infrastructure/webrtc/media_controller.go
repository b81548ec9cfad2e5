package webrtc

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
	"rillcall/pkg/config"
)

// Config configures the peer connections created by MediaController.
type Config struct {
	ICEServers []webrtc.ICEServer
	PortRange  struct {
		Min uint16
		Max uint16
	}
	// PLIInterval is how often a keyframe is requested from a remote video
	// track that has not sent one.
	PLIInterval time.Duration
}

// ConfigFrom maps the webrtc section of the agent configuration.
func ConfigFrom(cfg *config.Config) Config {
	var c Config
	for _, s := range cfg.WebRTC.ICEServers {
		c.ICEServers = append(c.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	c.PortRange.Min = cfg.WebRTC.PortRange.Min
	c.PortRange.Max = cfg.WebRTC.PortRange.Max
	c.PLIInterval = cfg.WebRTC.PLIInterval
	return c
}

// TrackStats receives statistics about remote media.
type TrackStats interface {
	RecordRTPPacket(kind string, bytes int)
	RecordReceiverReport(fractionLost uint8, jitter uint32)
	RecordKeyframeRequest()
}

type noopStats struct{}

func (noopStats) RecordRTPPacket(string, int)        {}
func (noopStats) RecordReceiverReport(uint8, uint32) {}
func (noopStats) RecordKeyframeRequest()             {}

// MediaController creates one pion peer connection per call, carrying an
// opus audio track and a VP8 video track.
type MediaController struct {
	config Config
	api    *webrtc.API
	stats  TrackStats
	logger *zap.SugaredLogger
}

var _ ports.MediaController = (*MediaController)(nil)

func NewMediaController(cfg Config, stats TrackStats, logger *zap.SugaredLogger) *MediaController {
	if cfg.PLIInterval <= 0 {
		cfg.PLIInterval = 3 * time.Second
	}
	if stats == nil {
		stats = noopStats{}
	}

	settingEngine := webrtc.SettingEngine{}
	if cfg.PortRange.Min > 0 && cfg.PortRange.Max > 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(cfg.PortRange.Min, cfg.PortRange.Max); err != nil {
			logger.Warnw("Ignoring invalid UDP port range",
				"min", cfg.PortRange.Min,
				"max", cfg.PortRange.Max,
				"error", err,
			)
		}
	}

	return &MediaController{
		config: cfg,
		api:    webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		stats:  stats,
		logger: logger,
	}
}

// AcquireLocalMedia creates a peer connection with the local tracks added.
func (c *MediaController) AcquireLocalMedia(ctx context.Context, hooks ports.MediaHooks) (ports.MediaSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pc, err := c.api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   c.config.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}

	s := newMediaSession(pc, hooks, c.config.PLIInterval, c.stats, c.logger)
	if err := s.addLocalTracks(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}
	return s, nil
}
