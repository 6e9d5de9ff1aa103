package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Server settings
	ServerPort      string        `json:"server_port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Debug           bool          `json:"debug"`
	Version         string        `json:"version"`

	// Application paths
	LogDir    string `json:"log_dir"`
	LogLevel  string `json:"log_level"`
	OutputDir string `json:"output_dir"`

	CORS      CORSConfig      `json:"cors"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Database  DatabaseConfig  `json:"database"`
	Worker    WorkerConfig    `json:"worker"`
	WebSocket WebSocketConfig `json:"websocket"`
	Extractor ExtractorConfig `json:"extractor"`
	Spaces    SpacesConfig    `json:"spaces"`
}

type DatabaseConfig struct {
	Path               string        `json:"path"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
	BusyTimeout        time.Duration `json:"busy_timeout"`
}

type WorkerConfig struct {
	Enabled      bool          `json:"enabled"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxRetries   int           `json:"max_retries"`
	RetryDelay   time.Duration `json:"retry_delay"`
	// JobTimeout of zero leaves extraction unbounded.
	JobTimeout       time.Duration `json:"job_timeout"`
	ProgressInterval time.Duration `json:"progress_interval"`
}

type WebSocketConfig struct {
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	WriteTimeout      time.Duration `json:"write_timeout"`
}

type ExtractorConfig struct {
	Command     string   `json:"command"`
	Script      string   `json:"script"`
	Environment []string `json:"environment"`
}

// SpacesConfig points at an S3-compatible bucket. Publishing is off when Bucket is empty.
type SpacesConfig struct {
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
}

func (s SpacesConfig) Enabled() bool {
	return s.Bucket != ""
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
	BurstSize         int  `json:"burst_size"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8000"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		Debug:           getEnvAsBool("DEBUG", false),
		Version:         getEnv("VERSION", "0.1.0"),

		LogDir:    getEnv("LOG_DIR", "/var/log/yt-kb"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		OutputDir: getEnv("OUTPUT_DIR", "/app/transcripts"),

		CORS: CORSConfig{
			Enabled:        getEnvAsBool("CORS_ENABLED", true),
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice(
				"CORS_ALLOWED_METHODS",
				[]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			),
			AllowedHeaders:   getEnvAsStringSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "X-Request-ID"}),
			ExposedHeaders:   getEnvAsStringSlice("CORS_EXPOSED_HEADERS", []string{"X-Request-ID"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 86400),
		},

		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", false),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 120),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 20),
		},

		Database: DatabaseConfig{
			Path:               getEnv("DB_PATH", "/app/queue/queue.db"),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			BusyTimeout:        getEnvAsDuration("DB_BUSY_TIMEOUT", 5*time.Second),
		},

		Worker: WorkerConfig{
			Enabled:          getEnvAsBool("WORKER_ENABLED", true),
			PollInterval:     getEnvAsDuration("WORKER_POLL_INTERVAL", 5*time.Second),
			MaxRetries:       getEnvAsInt("WORKER_MAX_RETRIES", 3),
			RetryDelay:       getEnvAsDuration("WORKER_RETRY_DELAY", 5*time.Second),
			JobTimeout:       getEnvAsDuration("WORKER_JOB_TIMEOUT", 0),
			ProgressInterval: getEnvAsDuration("WORKER_PROGRESS_INTERVAL", 500*time.Millisecond),
		},

		WebSocket: WebSocketConfig{
			HeartbeatInterval: getEnvAsDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
			WriteTimeout:      getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		},

		Extractor: ExtractorConfig{
			Command:     getEnv("EXTRACTOR_COMMAND", "python3"),
			Script:      getEnv("EXTRACTOR_SCRIPT", "/app/youtube_extractor.py"),
			Environment: getEnvAsStringSlice("EXTRACTOR_ENV", nil),
		},

		Spaces: SpacesConfig{
			AccessKey: getEnv("SPACES_ACCESS_KEY", ""),
			SecretKey: getEnv("SPACES_SECRET_KEY", ""),
			Region:    getEnv("SPACES_REGION", "us-east-1"),
			Endpoint:  getEnv("SPACES_ENDPOINT", ""),
			Bucket:    getEnv("SPACES_BUCKET", ""),
			Prefix:    getEnv("SPACES_PREFIX", "transcripts"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validateTimeouts(c); err != nil {
		return err
	}

	if err := validateServices(c); err != nil {
		return err
	}

	return validatePaths(c)
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.OutputDir, "output directory"},
		{filepath.Dir(c.Database.Path), "database directory"},
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", p.name)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.ServerPort == "" {
		return errors.New("server port is required")
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.WebSocket.HeartbeatInterval <= 0 {
		return errors.New("websocket heartbeat interval must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return errors.New("websocket write timeout must be positive")
	}
	return nil
}

func validateServices(c *Config) error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Worker.PollInterval <= 0 {
		return errors.New("worker poll interval must be positive")
	}
	if c.Worker.MaxRetries < 0 {
		return errors.New("worker max retries cannot be negative")
	}
	if c.Worker.JobTimeout < 0 {
		return errors.New("worker job timeout cannot be negative")
	}
	if c.Extractor.Command == "" {
		return errors.New("extractor command is required")
	}
	if c.Spaces.Enabled() && (c.Spaces.AccessKey == "" || c.Spaces.SecretKey == "") {
		return errors.New("spaces bucket requires both access and secret keys")
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid boolean, using default")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	}
	return defaultValue
}
