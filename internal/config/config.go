package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Server contains HTTP listener configuration.
type Server struct {
	Bind                   string `toml:"bind"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
	MaxUploadMB            int64  `toml:"max_upload_mb"`
}

// Uploads contains configuration for the temporary upload directory.
type Uploads struct {
	Dir string `toml:"dir"`
	// KeepFiles retains uploads after classification instead of deleting them.
	KeepFiles bool `toml:"keep_files"`
}

// Classifier contains configuration for the external classifier CLI.
type Classifier struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	MaxOutputBytes int64    `toml:"max_output_bytes"`
}

// Auth contains optional JWT bearer authentication settings. Authentication
// is disabled when the secret is empty.
type Auth struct {
	JWTSecret   string `toml:"jwt_secret"`
	JWTAudience string `toml:"jwt_audience"`
}

// Logging contains log output configuration.
type Logging struct {
	Level string `toml:"level"`
}

// Config is the root gateway configuration.
type Config struct {
	Server     Server     `toml:"server"`
	Uploads    Uploads    `toml:"uploads"`
	Classifier Classifier `toml:"classifier"`
	Auth       Auth       `toml:"auth"`
	Logging    Logging    `toml:"logging"`
}

// Default returns the configuration used when no file or overrides are present.
func Default() Config {
	return Config{
		Server: Server{
			Bind:                   ":8080",
			ShutdownTimeoutSeconds: 15,
			MaxUploadMB:            10,
		},
		Uploads: Uploads{
			Dir: "uploads",
		},
		Classifier: Classifier{
			Command:        "python3",
			TimeoutSeconds: 60,
			MaxOutputBytes: 1 << 20,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path, applies environment overrides, and
// validates the result. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// fall through to env overrides
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Bind = getEnv("GATEWAY_BIND", c.Server.Bind)
	c.Uploads.Dir = getEnv("GATEWAY_UPLOAD_DIR", c.Uploads.Dir)
	c.Classifier.Command = getEnv("CLASSIFIER_COMMAND", c.Classifier.Command)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTAudience = getEnv("JWT_AUDIENCE", c.Auth.JWTAudience)
	c.Logging.Level = getEnv("GATEWAY_LOG_LEVEL", c.Logging.Level)

	if v := os.Getenv("CLASSIFIER_TIMEOUT_SECONDS"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			c.Classifier.TimeoutSeconds = seconds
		}
	}
}

func (c *Config) normalize() {
	// The stock python classifier is a script, so the interpreter needs its
	// path as a fixed first argument.
	if c.Classifier.Command == "python3" && len(c.Classifier.Args) == 0 {
		c.Classifier.Args = []string{"prediction_service/predict.py"}
	}
}

func (c *Config) validate() error {
	if c.Server.Bind == "" {
		return errors.New("config: server.bind must not be empty")
	}
	if c.Uploads.Dir == "" {
		return errors.New("config: uploads.dir must not be empty")
	}
	if c.Classifier.Command == "" {
		return errors.New("config: classifier.command must not be empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("config: server.max_upload_mb must be positive")
	}
	if c.Classifier.MaxOutputBytes <= 0 {
		return errors.New("config: classifier.max_output_bytes must be positive")
	}
	if c.Classifier.TimeoutSeconds < 0 {
		return errors.New("config: classifier.timeout_seconds must not be negative")
	}
	return nil
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

// ClassifierTimeout returns the per-invocation deadline. Zero disables it.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

// ShutdownTimeout returns how long graceful shutdown may take.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
