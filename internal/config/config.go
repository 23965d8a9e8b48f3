package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/snarg/whisper-remote/internal/transcribe"
)

type Config struct {
	RemoteURL     string        `env:"REMOTE_URL,required"`
	AudioField    string        `env:"AUDIO_FIELD" envDefault:"audio_file"`
	RemoteTimeout time.Duration `env:"REMOTE_TIMEOUT" envDefault:"0s"`

	// Request options forwarded to the remote server
	Task           string `env:"TASK" envDefault:"transcribe"`
	Language       string `env:"LANGUAGE"`
	WordTimestamps bool   `env:"WORD_TIMESTAMPS" envDefault:"false"`

	VADFilter               bool    `env:"VAD_FILTER" envDefault:"false"`
	VADThreshold            float64 `env:"VAD_THRESHOLD"`
	VADMinSpeechDurationMs  int     `env:"VAD_MIN_SPEECH_DURATION_MS"`
	VADMaxSpeechDurationS   float64 `env:"VAD_MAX_SPEECH_DURATION_S"`
	VADMinSilenceDurationMs int     `env:"VAD_MIN_SILENCE_DURATION_MS"`

	// Display
	Verbose        bool   `env:"VERBOSE" envDefault:"false"`
	Live           bool   `env:"LIVE" envDefault:"false"`
	PrintColors    bool   `env:"PRINT_COLORS" envDefault:"false"`
	OutputEncoding string `env:"OUTPUT_ENCODING" envDefault:"utf-8"`

	// Relay server
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AuthToken    string        `env:"AUTH_TOKEN"`

	// Optional sinks
	DatabaseURL         string        `env:"DATABASE_URL"`
	DatabaseMaxConns    int32         `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	DatabaseMinConns    int32         `env:"DATABASE_MIN_CONNS" envDefault:"1"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT" envDefault:"2s"`

	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"whisper-remote"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"whisper-remote"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`

	// Audio sources
	S3 S3Config

	WatchDir        string   `env:"WATCH_DIR"`
	WatchExtensions []string `env:"WATCH_EXTENSIONS" envDefault:".wav,.mp3,.m4a,.flac,.ogg,.opus,.webm" envSeparator:","`
	WatchBackfill   bool     `env:"WATCH_BACKFILL" envDefault:"false"`

	SentryDSN string `env:"SENTRY_DSN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config holds S3-compatible object store settings for remote audio input.
type S3Config struct {
	Bucket    string `env:"S3_BUCKET"`
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Prefix    string `env:"S3_PREFIX"`
}

// Enabled reports whether S3 input is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// VAD returns the voice-activity-detection options to forward.
func (c *Config) VAD() transcribe.VADOptions {
	return transcribe.VADOptions{
		Filter:               c.VADFilter,
		Threshold:            c.VADThreshold,
		MinSpeechDurationMs:  c.VADMinSpeechDurationMs,
		MaxSpeechDurationS:   c.VADMaxSpeechDurationS,
		MinSilenceDurationMs: c.VADMinSilenceDurationMs,
	}
}

// RequestOptions returns the form fields sent with every upload.
func (c *Config) RequestOptions() transcribe.RequestOptions {
	return transcribe.RequestOptions{
		Task:           c.Task,
		Language:       c.Language,
		WordTimestamps: c.WordTimestamps,
		VAD:            c.VAD(),
	}
}

// Overrides holds CLI flag values that take priority over env vars.
// Pointer fields distinguish "not given" from an explicit false.
type Overrides struct {
	EnvFile     string
	RemoteURL   string
	LogLevel    string
	HTTPAddr    string
	Language    string
	Task        string
	WatchDir    string
	Verbose     *bool
	Live        *bool
	PrintColors *bool
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// REMOTE_URL may come from a flag alone
	var opts env.Options
	if overrides.RemoteURL != "" {
		opts.Environment = env.ToMap(os.Environ())
		opts.Environment["REMOTE_URL"] = overrides.RemoteURL
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.Language != "" {
		cfg.Language = overrides.Language
	}
	if overrides.Task != "" {
		cfg.Task = overrides.Task
	}
	if overrides.WatchDir != "" {
		cfg.WatchDir = overrides.WatchDir
	}
	if overrides.Verbose != nil {
		cfg.Verbose = *overrides.Verbose
	}
	if overrides.Live != nil {
		cfg.Live = *overrides.Live
	}
	if overrides.PrintColors != nil {
		cfg.PrintColors = *overrides.PrintColors
	}

	for i, ext := range cfg.WatchExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.WatchExtensions[i] = ext
	}

	return cfg, nil
}
