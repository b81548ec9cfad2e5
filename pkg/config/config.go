package config

import (
	"fmt"
	"os"
	"time"

	"rillcall/pkg/validation"

	"gopkg.in/yaml.v2"
)

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type Config struct {
	Participant struct {
		Username string `yaml:"username"`
		ClientID string `yaml:"client_id"`
	} `yaml:"participant"`

	Signal struct {
		Channel        string        `yaml:"channel"`
		RingInterval   time.Duration `yaml:"ring_interval"`
		RingAttempts   int           `yaml:"ring_attempts"`
		PublishTimeout time.Duration `yaml:"publish_timeout"`
		MediaTimeout   time.Duration `yaml:"media_timeout"`
		OutboxSize     int           `yaml:"outbox_size"`
		EventQueueSize int           `yaml:"event_queue_size"`
	} `yaml:"signal"`

	Transport struct {
		Kind string `yaml:"kind"` // memory | redis
	} `yaml:"transport"`

	Redis struct {
		Address        string        `yaml:"address"`
		Password       string        `yaml:"password"`
		DB             int           `yaml:"db"`
		PoolSize       int           `yaml:"pool_size"`
		ConnectRetries int           `yaml:"connect_retries"`
		RetryDelay     time.Duration `yaml:"retry_delay"`
	} `yaml:"redis"`

	WebRTC struct {
		ICEServers []ICEServer `yaml:"ice_servers"`
		PortRange  struct {
			Min uint16 `yaml:"min"`
			Max uint16 `yaml:"max"`
		} `yaml:"port_range"`
		PLIInterval time.Duration `yaml:"pli_interval"`
	} `yaml:"webrtc"`

	Presence struct {
		TTL       time.Duration `yaml:"ttl"`
		Heartbeat time.Duration `yaml:"heartbeat"`
	} `yaml:"presence"`

	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
	} `yaml:"server"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled        bool   `yaml:"enabled"`
		JaegerEndpoint string `yaml:"jaeger_endpoint"`
		Environment    string `yaml:"environment"`
	} `yaml:"tracing"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"http"`

		// Signal limits inbound signaling messages per sender.
		Signal struct {
			MessagesPerSecond float64 `yaml:"messages_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"signal"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Participant
	if err := validation.ValidateParticipant(c.Participant.Username, c.Participant.ClientID); err != nil {
		return fmt.Errorf("participant: %w", err)
	}

	// Signal
	if err := validation.ValidateNonEmptyString(c.Signal.Channel, "signal.channel"); err != nil {
		return err
	}
	if c.Signal.RingInterval <= 0 {
		return fmt.Errorf("signal.ring_interval must be > 0")
	}
	if c.Signal.RingAttempts <= 0 {
		return fmt.Errorf("signal.ring_attempts must be > 0")
	}
	if c.Signal.PublishTimeout <= 0 {
		return fmt.Errorf("signal.publish_timeout must be > 0")
	}
	if c.Signal.MediaTimeout <= 0 {
		return fmt.Errorf("signal.media_timeout must be > 0")
	}
	if c.Signal.OutboxSize <= 0 {
		return fmt.Errorf("signal.outbox_size must be > 0")
	}
	if c.Signal.EventQueueSize <= 0 {
		return fmt.Errorf("signal.event_queue_size must be > 0")
	}

	// Transport
	switch c.Transport.Kind {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when transport.kind=redis")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when transport.kind=redis")
		}
	default:
		return fmt.Errorf("transport.kind must be memory or redis, got %q", c.Transport.Kind)
	}

	// WebRTC
	if c.WebRTC.PortRange.Min > 0 || c.WebRTC.PortRange.Max > 0 {
		if c.WebRTC.PortRange.Min == 0 || c.WebRTC.PortRange.Max == 0 {
			return fmt.Errorf("webrtc.port_range.min and max must both be set when one is set")
		}
		if c.WebRTC.PortRange.Min >= c.WebRTC.PortRange.Max {
			return fmt.Errorf("webrtc.port_range.min must be < max")
		}
	}
	for i, s := range c.WebRTC.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("webrtc.ice_servers[%d].urls must not be empty", i)
		}
		for _, u := range s.URLs {
			if err := validation.ValidateICEServerURL(u); err != nil {
				return fmt.Errorf("webrtc.ice_servers[%d]: %w", i, err)
			}
		}
	}

	// Presence
	if c.Presence.TTL <= 0 {
		return fmt.Errorf("presence.ttl must be > 0")
	}
	if c.Presence.Heartbeat <= 0 || c.Presence.Heartbeat >= c.Presence.TTL {
		return fmt.Errorf("presence.heartbeat must be > 0 and < presence.ttl")
	}

	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	if c.Server.PingInterval <= 0 {
		return fmt.Errorf("server.ping_interval must be > 0")
	}
	if c.Server.PongTimeout <= c.Server.PingInterval {
		return fmt.Errorf("server.pong_timeout must be > server.ping_interval")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Tracing
	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Signal.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.signal.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Signal.Burst <= 0 {
			return fmt.Errorf("rate_limiting.signal.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	host, _ := os.Hostname()
	if host == "" {
		host = "local"
	}
	cfg.Participant.Username = "operator"
	cfg.Participant.ClientID = host

	cfg.Signal.Channel = "webrtc/message"
	cfg.Signal.RingInterval = 5 * time.Second
	cfg.Signal.RingAttempts = 5
	cfg.Signal.PublishTimeout = 3 * time.Second
	cfg.Signal.MediaTimeout = 15 * time.Second
	cfg.Signal.OutboxSize = 64
	cfg.Signal.EventQueueSize = 128

	cfg.Transport.Kind = "memory"

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.ConnectRetries = 5
	cfg.Redis.RetryDelay = 500 * time.Millisecond

	cfg.WebRTC.ICEServers = []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	cfg.WebRTC.PLIInterval = 3 * time.Second

	cfg.Presence.TTL = 30 * time.Second
	cfg.Presence.Heartbeat = 10 * time.Second

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Server.PingInterval = 30 * time.Second
	cfg.Server.PongTimeout = 60 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 12 * time.Hour
	cfg.Auth.AllowedOrigins = []string{"*"}

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 20
	cfg.RateLimiting.HTTP.Burst = 40
	cfg.RateLimiting.Signal.MessagesPerSecond = 50
	cfg.RateLimiting.Signal.Burst = 100

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RILLCALL_USERNAME"); v != "" {
		c.Participant.Username = v
	}
	if v := os.Getenv("RILLCALL_CLIENT_ID"); v != "" {
		c.Participant.ClientID = v
	}
	if v := os.Getenv("RILLCALL_SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("RILLCALL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RILLCALL_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("RILLCALL_REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
		c.Transport.Kind = "redis"
	}
}
