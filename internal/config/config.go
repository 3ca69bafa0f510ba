package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type TrackerConfig struct {
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	SessionTimeout     time.Duration `mapstructure:"session_timeout"`
	MaxUsersPerSession int           `mapstructure:"max_users_per_session"`
	HistorySize        int           `mapstructure:"history_size"`
	EventLogSize       int           `mapstructure:"event_log_size"`
	DefaultTTL         time.Duration `mapstructure:"default_ttl"`
}

type WebSocketConfig struct {
	SendBuffer     int           `mapstructure:"send_buffer"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type DatabaseConfig struct {
	URL       string `mapstructure:"url"`
	QueueSize int    `mapstructure:"queue_size"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Channel   string `mapstructure:"channel"`
	QueueSize int    `mapstructure:"queue_size"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// New returns a viper instance with every default set and environment
// overrides enabled. Callers may bind flags before passing it to Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)
	return v
}

// Load reads .env, the optional YAML file and the environment into a
// validated Config.
func Load(v *viper.Viper) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	if v == nil {
		v = New()
	}

	configPath := v.GetString("config")
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Tracker.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("tracker.heartbeat_interval must be positive"))
	}
	if c.Tracker.SessionTimeout <= 0 {
		errs = append(errs, errors.New("tracker.session_timeout must be positive"))
	}
	if c.Tracker.MaxUsersPerSession < 1 {
		errs = append(errs, errors.New("tracker.max_users_per_session must be at least 1"))
	}
	if c.Tracker.HistorySize < 1 {
		errs = append(errs, errors.New("tracker.history_size must be at least 1"))
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		errs = append(errs, errors.New("websocket.ping_period must be shorter than websocket.pong_wait"))
	}
	if c.WebSocket.SendBuffer < 1 {
		errs = append(errs, errors.New("websocket.send_buffer must be at least 1"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Tracker
	v.SetDefault("tracker.heartbeat_interval", "30s")
	v.SetDefault("tracker.session_timeout", "5m")
	v.SetDefault("tracker.max_users_per_session", 100)
	v.SetDefault("tracker.history_size", 100)
	v.SetDefault("tracker.event_log_size", 1000)
	v.SetDefault("tracker.default_ttl", "1h")

	// WebSocket
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.ping_period", "54s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 64*1024)

	// Journal and fan-out
	v.SetDefault("database.url", "")
	v.SetDefault("database.queue_size", 1024)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "session-tracker:events")
	v.SetDefault("redis.queue_size", 1024)

	// Auth
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", os.Getenv("ENV") != "production")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("tracker.heartbeat_interval", "HEARTBEAT_INTERVAL")
	v.BindEnv("tracker.session_timeout", "SESSION_TIMEOUT")
	v.BindEnv("tracker.max_users_per_session", "MAX_USERS_PER_SESSION")
}
