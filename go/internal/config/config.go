package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Push transports
const (
	TransportWebsocket = "websocket"
	TransportNATS      = "nats"
	TransportNone      = "none"
)

// Config is the full client configuration. Values come from defaults, then the optional
// YAML file, then the environment.
type Config struct {
	Portal  PortalConfig  `yaml:"portal"`
	Push    PushConfig    `yaml:"push"`
	Server  ServerConfig  `yaml:"server"`
	Submit  SubmitConfig  `yaml:"submit"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

type PortalConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Token   string        `yaml:"token"`
	Cookie  string        `yaml:"cookie"`
	GameID  int           `yaml:"game_id" validate:"required,gt=0"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type PushConfig struct {
	Transport         string        `yaml:"transport" validate:"oneof=websocket nats none"`
	NATSURL           string        `yaml:"nats_url" validate:"required_if=Transport nats"`
	NATSSubjectPrefix string        `yaml:"nats_subject_prefix"`
	NATSStream        string        `yaml:"nats_stream"`
	ReconnectWait     time.Duration `yaml:"reconnect_wait"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port" validate:"omitempty,numeric"`
}

type SubmitConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Burst    int           `yaml:"burst" validate:"gt=0"`
}

type ArchiveConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Portal: PortalConfig{
			Timeout: 30 * time.Second,
		},
		Push: PushConfig{
			Transport:         TransportWebsocket,
			NATSSubjectPrefix: "ctf.games",
			ReconnectWait:     2 * time.Second,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    "8080",
		},
		Submit: SubmitConfig{
			Interval: 3 * time.Second,
			Burst:    3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from path (optional) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Portal.BaseURL = strings.TrimRight(getEnv("CTF_BASE_URL", cfg.Portal.BaseURL), "/")
	cfg.Portal.Token = getEnv("CTF_TOKEN", cfg.Portal.Token)
	cfg.Portal.Cookie = getEnv("CTF_COOKIE", cfg.Portal.Cookie)
	cfg.Portal.GameID = getEnvAsInt("CTF_GAME_ID", cfg.Portal.GameID)
	cfg.Portal.Timeout = getEnvAsDuration("CTF_TIMEOUT", cfg.Portal.Timeout)

	cfg.Push.Transport = strings.ToLower(getEnv("CTF_PUSH_TRANSPORT", cfg.Push.Transport))
	cfg.Push.NATSURL = getEnv("NATS_URL", cfg.Push.NATSURL)
	cfg.Push.NATSSubjectPrefix = getEnv("CTF_NATS_SUBJECT_PREFIX", cfg.Push.NATSSubjectPrefix)
	cfg.Push.NATSStream = getEnv("CTF_NATS_STREAM", cfg.Push.NATSStream)

	cfg.Server.Enabled = getEnvAsBool("CTF_SERVER_ENABLED", cfg.Server.Enabled)
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)

	cfg.Submit.Interval = getEnvAsDuration("CTF_SUBMIT_INTERVAL", cfg.Submit.Interval)
	cfg.Submit.Burst = getEnvAsInt("CTF_SUBMIT_BURST", cfg.Submit.Burst)

	cfg.Archive.Enabled = getEnvAsBool("ARCHIVE_ENABLED", cfg.Archive.Enabled)

	cfg.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", cfg.Log.Level))
}

// Validate checks every field against its constraints and reports the first violation per field.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
