package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/truemediaorg/mentionbot/model"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Bilibili BilibiliConfig
	Pipeline PipelineConfig
	GenAI    GenAIConfig
	Health   HealthConfig

	SQLitePath         string
	PostgresURL        string
	PostgresSecretPath string

	LogLevel        log.Level
	LogFormat       LogFormat
	TestModeEnabled bool
}

type BilibiliConfig struct {
	ApiURL         url.URL
	PassportURL    url.URL
	CredentialPath string
	SecretPath     string
	BotNickname    string
	FeedPageSize   int
}

type PipelineConfig struct {
	PollInterval      time.Duration
	BatchSize         int
	ClaimOrder        model.ClaimOrder
	ProcessingTimeout time.Duration
	ReplyRateLimit    time.Duration
	GenerateTimeout   time.Duration
}

type GenAIConfig struct {
	APIKey       string
	SecretPath   string
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

type HealthConfig struct {
	Enabled bool
	Port    int
}

// CheckGenAI fails when no API key source is configured. Test mode falls back
// to canned replies and needs neither.
func (c Config) CheckGenAI() error {
	if c.GenAI.APIKey == "" && c.GenAI.SecretPath == "" && !c.TestModeEnabled {
		return fmt.Errorf("GenAI not configured: set %s or %s", EnvfileKeyGenAIAPIKey, EnvfileKeyGenAISecretsPath)
	}
	return nil
}

// UsesPostgres reports whether Postgres is configured; SQLite is used otherwise.
func (c Config) UsesPostgres() bool {
	return c.PostgresURL != "" || c.PostgresSecretPath != ""
}

type LogFormat string

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

const (
	minPollInterval = 10 * time.Second
	minRateLimit    = time.Second
)

const (
	// Path of the SQLite database, used unless Postgres is configured
	EnvfileKeySQLitePath = "SQLITE_PATH"
	// Postgres connection string to use for database connections
	EnvfileKeyPostgresURL = "POSTGRES_URL"
	// AWS Secrets Manager path where Postgres connection string can be found
	EnvfileKeyPostgresSecretsPath = "POSTGRES_SECRETS_PATH"

	// Base URL of the Bilibili API
	EnvfileKeyBilibiliAPI = "BILIBILI_API"
	// Base URL of the Bilibili passport service, used by the login command
	EnvfileKeyBilibiliPassport = "BILIBILI_PASSPORT"
	// JSON file holding the session cookies of the bot account
	EnvfileKeyBilibiliCredentialPath = "BILIBILI_CREDENTIAL_PATH"
	// AWS Secrets Manager path where the session cookies can be found, overrides the file
	EnvfileKeyBilibiliSecretsPath = "BILIBILI_SECRETS_PATH"
	// Nickname of the bot, used when it can't be looked up
	EnvfileKeyBilibiliBotNickname = "BILIBILI_BOT_NICKNAME"
	// Number of mentions to request per feed page
	EnvfileKeyFeedPageSize = "FEED_PAGE_SIZE"

	// Interval between pipeline iterations, in seconds
	EnvfileKeyPollInterval = "POLL_INTERVAL"
	// Maximum number of mentions processed per iteration
	EnvfileKeyBatchSize = "BATCH_SIZE"
	// Which pending mention to work on first ("newest_first", "oldest_first")
	EnvfileKeyClaimOrder = "CLAIM_ORDER"
	// How long a mention may stay in processing before it is reset, in minutes
	EnvfileKeyProcessingTimeout = "PROCESSING_TIMEOUT"
	// Minimum delay between replies, in seconds
	EnvfileKeyReplyRateLimit = "REPLY_RATE_LIMIT"
	// Time allowed for generating one reply, in seconds
	EnvfileKeyGenerateTimeout = "GENERATE_TIMEOUT"

	// API key for the GenAI reply producer
	EnvfileKeyGenAIAPIKey = "GENAI_API_KEY"
	// AWS Secrets Manager path where the GenAI API key can be found
	EnvfileKeyGenAISecretsPath = "GENAI_SECRETS_PATH"
	EnvfileKeyGenAIModel       = "GENAI_MODEL"
	EnvfileKeyGenAIMaxTokens   = "GENAI_MAX_TOKENS"
	EnvfileKeyGenAITemperature = "GENAI_TEMPERATURE"
	// Replaces the built in system prompt
	EnvfileKeyGenAISystemPrompt = "GENAI_SYSTEM_PROMPT"

	// Serve the healthcheck endpoints
	EnvfileKeyHealthEnabled = "HEALTH_ENABLED"
	EnvfileKeyHealthPort    = "HEALTH_PORT"

	// Log level (e.g. "debug", "info", "warn", "error")
	EnvfileKeyLogLevel = "LOG_LEVEL"
	// Log output format (e.g. "text", "json")
	EnvfileKeyLogFormat = "LOG_FORMAT"
	// Enables "test mode" (server simulates posting, etc.)
	EnvfileKeyTestMode = "TEST_MODE"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault(EnvfileKeySQLitePath, "data/mentions.db")
	v.SetDefault(EnvfileKeyBilibiliAPI, "https://api.bilibili.com")
	v.SetDefault(EnvfileKeyBilibiliPassport, "https://passport.bilibili.com")
	v.SetDefault(EnvfileKeyBilibiliCredentialPath, "data/credentials.json")
	v.SetDefault(EnvfileKeyFeedPageSize, 20)
	v.SetDefault(EnvfileKeyPollInterval, 60)
	v.SetDefault(EnvfileKeyBatchSize, 20)
	v.SetDefault(EnvfileKeyClaimOrder, string(model.ClaimOrderNewestFirst))
	v.SetDefault(EnvfileKeyProcessingTimeout, 20)
	v.SetDefault(EnvfileKeyReplyRateLimit, 3)
	v.SetDefault(EnvfileKeyGenerateTimeout, 60)
	v.SetDefault(EnvfileKeyGenAIModel, "gemini-2.0-flash")
	v.SetDefault(EnvfileKeyGenAIMaxTokens, 500)
	v.SetDefault(EnvfileKeyGenAITemperature, 0.7)
	v.SetDefault(EnvfileKeyHealthEnabled, true)
	v.SetDefault(EnvfileKeyHealthPort, 8080)
}

// FromEnvfile reads an optional .env file in the working directory, with
// environment variables taking precedence, and exits on invalid config.
func FromEnvfile() Config {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("dotenv")

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatalf("error reading config: %v", err)
		}
		log.Debug("no .env file found, using environment only")
	}

	cfg, err := Load(v)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return cfg
}

// Load builds a Config from v, applying defaults and validating ranges.
func Load(v *viper.Viper) (Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	bilibiliURL, err := url.Parse(v.GetString(EnvfileKeyBilibiliAPI))
	if err != nil {
		return Config{}, fmt.Errorf("error parsing Bilibili URL: %w", err)
	}
	passportURL, err := url.Parse(v.GetString(EnvfileKeyBilibiliPassport))
	if err != nil {
		return Config{}, fmt.Errorf("error parsing Bilibili passport URL: %w", err)
	}

	feedPageSize := v.GetInt(EnvfileKeyFeedPageSize)
	if feedPageSize <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", EnvfileKeyFeedPageSize, feedPageSize)
	}

	pollInterval := time.Duration(v.GetInt(EnvfileKeyPollInterval)) * time.Second
	if pollInterval < minPollInterval {
		return Config{}, fmt.Errorf("%s must be at least %s, got %s", EnvfileKeyPollInterval, minPollInterval, pollInterval)
	}

	batchSize := v.GetInt(EnvfileKeyBatchSize)
	if batchSize < 1 {
		return Config{}, fmt.Errorf("%s must be at least 1, got %d", EnvfileKeyBatchSize, batchSize)
	}

	claimOrder, err := model.ParseClaimOrder(v.GetString(EnvfileKeyClaimOrder))
	if err != nil {
		return Config{}, err
	}

	processingTimeout := time.Duration(v.GetInt(EnvfileKeyProcessingTimeout)) * time.Minute
	if processingTimeout < time.Minute {
		return Config{}, fmt.Errorf("%s must be at least 1 minute, got %s", EnvfileKeyProcessingTimeout, processingTimeout)
	}

	rateLimit := time.Duration(v.GetInt(EnvfileKeyReplyRateLimit)) * time.Second
	if rateLimit < minRateLimit {
		return Config{}, fmt.Errorf("%s must be at least %s, got %s", EnvfileKeyReplyRateLimit, minRateLimit, rateLimit)
	}

	generateTimeout := time.Duration(v.GetInt(EnvfileKeyGenerateTimeout)) * time.Second
	if generateTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %s", EnvfileKeyGenerateTimeout, generateTimeout)
	}

	healthPort := v.GetInt(EnvfileKeyHealthPort)
	if healthPort <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", EnvfileKeyHealthPort, healthPort)
	}

	genAI := GenAIConfig{
		APIKey:       v.GetString(EnvfileKeyGenAIAPIKey),
		SecretPath:   v.GetString(EnvfileKeyGenAISecretsPath),
		Model:        v.GetString(EnvfileKeyGenAIModel),
		MaxTokens:    v.GetInt(EnvfileKeyGenAIMaxTokens),
		Temperature:  v.GetFloat64(EnvfileKeyGenAITemperature),
		SystemPrompt: v.GetString(EnvfileKeyGenAISystemPrompt),
	}
	logLevel, err := log.ParseLevel(v.GetString(EnvfileKeyLogLevel))
	if err != nil {
		// Default to info level but log a warning
		log.Warnf("unable to parse log level: %v", err)
		logLevel = log.InfoLevel
	}

	logFormat, err := parseLogFormat(v.GetString(EnvfileKeyLogFormat))
	if err != nil {
		// Default to text formatter but log a warning
		log.Warnf("unable to parse log format: %v", err)
		logFormat = LogFormatText
	}

	return Config{
		Bilibili: BilibiliConfig{
			ApiURL:         *bilibiliURL,
			PassportURL:    *passportURL,
			CredentialPath: v.GetString(EnvfileKeyBilibiliCredentialPath),
			SecretPath:     v.GetString(EnvfileKeyBilibiliSecretsPath),
			BotNickname:    v.GetString(EnvfileKeyBilibiliBotNickname),
			FeedPageSize:   feedPageSize,
		},
		Pipeline: PipelineConfig{
			PollInterval:      pollInterval,
			BatchSize:         batchSize,
			ClaimOrder:        claimOrder,
			ProcessingTimeout: processingTimeout,
			ReplyRateLimit:    rateLimit,
			GenerateTimeout:   generateTimeout,
		},
		GenAI: genAI,
		Health: HealthConfig{
			Enabled: v.GetBool(EnvfileKeyHealthEnabled),
			Port:    healthPort,
		},
		SQLitePath:         v.GetString(EnvfileKeySQLitePath),
		PostgresURL:        v.GetString(EnvfileKeyPostgresURL),
		PostgresSecretPath: v.GetString(EnvfileKeyPostgresSecretsPath),
		LogLevel:           logLevel,
		LogFormat:          logFormat,
		TestModeEnabled:    v.GetBool(EnvfileKeyTestMode),
	}, nil
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(raw) {
	case LogFormatJSON:
		return LogFormatJSON, nil
	case LogFormatText:
		return LogFormatText, nil
	default:
		return "", fmt.Errorf("unidentified log format: %s", raw)
	}
}
