package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Relay struct {
		Address         string        `yaml:"address"`
		APIAddress      string        `yaml:"api_address"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"relay"`

	Signaling struct {
		URL               string        `yaml:"url"`
		DialTimeout       time.Duration `yaml:"dial_timeout"`
		ReconnectAttempts int           `yaml:"reconnect_attempts"`
		ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	} `yaml:"signaling"`

	Booking struct {
		BaseURL        string        `yaml:"base_url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"booking"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		PeerJoinTimeout time.Duration `yaml:"peer_join_timeout"`
	} `yaml:"webrtc"`

	Quality struct {
		SampleInterval time.Duration `yaml:"sample_interval"`
		WindowSize     int           `yaml:"window_size"`
		OfflineGrace   time.Duration `yaml:"offline_grace"`
		PoorGrace      time.Duration `yaml:"poor_grace"`
		UpgradeWindow  time.Duration `yaml:"upgrade_window"`

		Thresholds struct {
			ExcellentLoss float64       `yaml:"excellent_loss"`
			ExcellentRTT  time.Duration `yaml:"excellent_rtt"`
			GoodLoss      float64       `yaml:"good_loss"`
			GoodRTT       time.Duration `yaml:"good_rtt"`
			FairLoss      float64       `yaml:"fair_loss"`
			FairRTT       time.Duration `yaml:"fair_rtt"`
		} `yaml:"thresholds"`
	} `yaml:"quality"`

	Reconnect struct {
		BaseDelay   time.Duration `yaml:"base_delay"`
		MaxDelay    time.Duration `yaml:"max_delay"`
		MaxAttempts int           `yaml:"max_attempts"`
		Jitter      bool          `yaml:"jitter"`
	} `yaml:"reconnect"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		HTTPPerSecond     float64 `yaml:"http_per_second"`
		HTTPBurst         int     `yaml:"http_burst"`
		MessagesPerSecond float64 `yaml:"messages_per_second"`
		MessageBurst      int     `yaml:"message_burst"`
	} `yaml:"rate_limiting"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns configuration with sane defaults. Quality
// thresholds and reconnect parameters are tunables, not invariants.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Relay.Address = ":8081"
	cfg.Relay.APIAddress = ":8080"
	cfg.Relay.PingInterval = 30 * time.Second
	cfg.Relay.PongTimeout = 60 * time.Second
	cfg.Relay.WriteTimeout = 10 * time.Second
	cfg.Relay.ShutdownTimeout = 30 * time.Second

	cfg.Signaling.URL = "ws://localhost:8081/ws"
	cfg.Signaling.DialTimeout = 10 * time.Second
	cfg.Signaling.ReconnectAttempts = 3
	cfg.Signaling.ReconnectDelay = 2 * time.Second

	cfg.Booking.BaseURL = "http://localhost:8080"
	cfg.Booking.RequestTimeout = 5 * time.Second

	cfg.WebRTC.PeerJoinTimeout = 2 * time.Minute

	cfg.Quality.SampleInterval = 3 * time.Second
	cfg.Quality.WindowSize = 5
	cfg.Quality.OfflineGrace = 10 * time.Second
	cfg.Quality.PoorGrace = 10 * time.Second
	cfg.Quality.UpgradeWindow = 15 * time.Second
	cfg.Quality.Thresholds.ExcellentLoss = 0.01
	cfg.Quality.Thresholds.ExcellentRTT = 100 * time.Millisecond
	cfg.Quality.Thresholds.GoodLoss = 0.03
	cfg.Quality.Thresholds.GoodRTT = 200 * time.Millisecond
	cfg.Quality.Thresholds.FairLoss = 0.08
	cfg.Quality.Thresholds.FairRTT = 400 * time.Millisecond

	cfg.Reconnect.BaseDelay = 2 * time.Second
	cfg.Reconnect.MaxDelay = 30 * time.Second
	cfg.Reconnect.MaxAttempts = 4
	cfg.Reconnect.Jitter = true

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.TokenTTL = time.Hour

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTPPerSecond = 50
	cfg.RateLimiting.HTTPBurst = 100
	cfg.RateLimiting.MessagesPerSecond = 50
	cfg.RateLimiting.MessageBurst = 100

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.PoolSize = 10

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnvOverrides()
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

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Relay.Address == "" {
		return fmt.Errorf("relay.address must not be empty")
	}
	if c.Relay.PingInterval <= 0 {
		return fmt.Errorf("relay.ping_interval must be > 0")
	}
	if c.Relay.PongTimeout <= 0 {
		return fmt.Errorf("relay.pong_timeout must be > 0")
	}

	if c.Signaling.ReconnectAttempts < 0 {
		return fmt.Errorf("signaling.reconnect_attempts must be >= 0")
	}
	if c.Signaling.ReconnectDelay <= 0 {
		return fmt.Errorf("signaling.reconnect_delay must be > 0")
	}

	if c.Quality.SampleInterval <= 0 {
		return fmt.Errorf("quality.sample_interval must be > 0")
	}
	if c.Quality.WindowSize <= 0 {
		return fmt.Errorf("quality.window_size must be > 0")
	}
	if c.Quality.OfflineGrace <= 0 {
		return fmt.Errorf("quality.offline_grace must be > 0")
	}
	th := c.Quality.Thresholds
	if !(th.ExcellentLoss < th.GoodLoss && th.GoodLoss < th.FairLoss) {
		return fmt.Errorf("quality.thresholds loss bands must be strictly increasing")
	}
	if !(th.ExcellentRTT < th.GoodRTT && th.GoodRTT < th.FairRTT) {
		return fmt.Errorf("quality.thresholds rtt bands must be strictly increasing")
	}

	if c.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay must be >= base_delay")
	}
	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("reconnect.max_attempts must be > 0")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTPPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http_per_second must be > 0 when enabled")
		}
		if c.RateLimiting.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.messages_per_second must be > 0 when enabled")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("TELECALL_RELAY_ADDRESS"); addr != "" {
		c.Relay.Address = addr
	}
	if addr := os.Getenv("TELECALL_API_ADDRESS"); addr != "" {
		c.Relay.APIAddress = addr
	}
	if url := os.Getenv("TELECALL_SIGNALING_URL"); url != "" {
		c.Signaling.URL = url
	}
	if url := os.Getenv("TELECALL_BOOKING_URL"); url != "" {
		c.Booking.BaseURL = url
	}
	if level := os.Getenv("TELECALL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("TELECALL_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("TELECALL_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
}
