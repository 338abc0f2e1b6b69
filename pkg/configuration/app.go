package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	EnvLambdaServerPort          string = "_LAMBDA_SERVER_PORT"
	EnvLogLevel                  string = "LOG_LEVEL"
	EnvTalosHost                 string = "TALOS_HOST"
	EnvTalosKeyParameter         string = "TALOS_KEY_PARAMETER"
	EnvTalosSecretParameter      string = "TALOS_SECRET_PARAMETER"
	EnvSlackTokenParameter       string = "SLACK_TOKEN_PARAMETER"
	EnvSlackSigningParameter     string = "SLACK_SIGNING_SECRET_PARAMETER"
	EnvStoreBackend              string = "STORE_BACKEND"
	EnvDynamoDBTable             string = "DYNAMODB_TABLE"
	EnvRedisAddr                 string = "REDIS_ADDR"
	EnvRedisPassword             string = "REDIS_PASSWORD"
	EnvRedisDB                   string = "REDIS_DB"
	EnvAllowedChannels           string = "ALLOWED_CHANNELS"
	EnvRegistrationQueueURL      string = "REGISTRATION_QUEUE_URL"
	EnvFillThreshold             string = "FILL_THRESHOLD"
	EnvReconnectInterval         string = "RECONNECT_INTERVAL"
	EnvMaxDecodeErrors           string = "MAX_DECODE_ERRORS"
	EnvRegistrationTTL           string = "REGISTRATION_TTL"
	EnvDigestHours               string = "DIGEST_HOURS"
	EnvArchiveBucket             string = "ARCHIVE_BUCKET"
	EnvArchivePrefix             string = "ARCHIVE_PREFIX"
	EnvGlueArchiveJob            string = "GLUE_ARCHIVE_JOB"
	EnvGlueArchiveOperation      string = "GLUE_ARCHIVE_OPERATION"
	EnvReferencePairs            string = "REFERENCE_PAIRS"
	EnvHealthAddr                string = "HEALTH_ADDR"
	EnvSlashCommand              string = "SLASH_COMMAND"
	StoreBackendDynamoDB         string = "dynamodb"
	StoreBackendRedis            string = "redis"
	StoreBackendMemory           string = "memory"
	defaultTableName             string = "order-monitoring"
	defaultFillThreshold         string = "5.0"
	defaultReconnectInterval     string = "30s"
	defaultMaxDecodeErrors       string = "5"
	defaultRegistrationTTL       string = "48h"
	defaultDigestHours           string = "11,23"
	defaultArchivePrefix         string = "orders/completed"
	defaultGlueArchiveOperation  string = "upsert"
	defaultHealthAddr            string = ":8080"
	defaultSlashCommand          string = "/monitor"
	defaultTalosKeyParameter     string = "/order-monitor/talos/key"
	defaultTalosSecretParameter  string = "/order-monitor/talos/secret"
	defaultSlackTokenParameter   string = "/order-monitor/slack/token"
	defaultSlackSigningParameter string = "/order-monitor/slack/signing-secret"
)

// AppConfig contains all configuration to be injected into logic
type AppConfig struct {
	TalosHost string

	TalosKeyParameter     string `validate:"required"`
	TalosSecretParameter  string `validate:"required"`
	SlackTokenParameter   string `validate:"required"`
	SlackSigningParameter string

	StoreBackend  string `validate:"oneof=dynamodb redis memory"`
	TableName     string `validate:"required_if=StoreBackend dynamodb"`
	RedisAddr     string `validate:"required_if=StoreBackend redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	SlashCommand         string `validate:"required,startswith=/"`
	AllowedChannels      []string
	RegistrationQueueURL string `validate:"omitempty,url"`

	FillThreshold     decimal.Decimal
	ReconnectInterval time.Duration `validate:"gt=0"`
	MaxDecodeErrors   int           `validate:"gte=1"`
	RegistrationTTL   time.Duration `validate:"gt=0"`
	DigestHours       []int         `validate:"min=1,dive,gte=0,lte=23"`

	ArchiveBucket        string
	ArchivePrefix        string
	GlueArchiveJob       string
	GlueArchiveOperation string

	ReferencePairs map[string]string
	HealthAddr     string
}

// LoadDotEnv loads a local .env file when present.
// Lambda environments have no such file so a missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file loaded, using process environment")
	}
}

// LoadAppConfig reads the configuration from the process environment.
func LoadAppConfig() (*AppConfig, error) {
	return LoadAppConfigFrom(os.Getenv)
}

// LoadAppConfigFrom reads the configuration through getenv and validates it.
func LoadAppConfigFrom(getenv func(string) string) (*AppConfig, error) {
	env := func(name string, fallback string) string {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
		return fallback
	}

	c := &AppConfig{
		TalosHost:             env(EnvTalosHost, ""),
		TalosKeyParameter:     env(EnvTalosKeyParameter, defaultTalosKeyParameter),
		TalosSecretParameter:  env(EnvTalosSecretParameter, defaultTalosSecretParameter),
		SlackTokenParameter:   env(EnvSlackTokenParameter, defaultSlackTokenParameter),
		SlackSigningParameter: env(EnvSlackSigningParameter, defaultSlackSigningParameter),
		StoreBackend:          strings.ToLower(env(EnvStoreBackend, StoreBackendDynamoDB)),
		TableName:             env(EnvDynamoDBTable, defaultTableName),
		RedisAddr:             env(EnvRedisAddr, ""),
		RedisPassword:         env(EnvRedisPassword, ""),
		SlashCommand:          env(EnvSlashCommand, defaultSlashCommand),
		AllowedChannels:       splitList(env(EnvAllowedChannels, "")),
		RegistrationQueueURL:  env(EnvRegistrationQueueURL, ""),
		ArchiveBucket:         env(EnvArchiveBucket, ""),
		ArchivePrefix:         strings.Trim(env(EnvArchivePrefix, defaultArchivePrefix), "/"),
		GlueArchiveJob:        env(EnvGlueArchiveJob, ""),
		GlueArchiveOperation:  env(EnvGlueArchiveOperation, defaultGlueArchiveOperation),
		HealthAddr:            env(EnvHealthAddr, defaultHealthAddr),
	}

	if strings.EqualFold(c.HealthAddr, "off") {
		c.HealthAddr = ""
	}

	var err error
	if c.RedisDB, err = strconv.Atoi(env(EnvRedisDB, "0")); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvRedisDB, err)
	}

	if c.FillThreshold, err = decimal.NewFromString(env(EnvFillThreshold, defaultFillThreshold)); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvFillThreshold, err)
	}

	if !c.FillThreshold.IsPositive() {
		return nil, fmt.Errorf("%s must be positive, got %s", EnvFillThreshold, c.FillThreshold)
	}

	if c.ReconnectInterval, err = time.ParseDuration(env(EnvReconnectInterval, defaultReconnectInterval)); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvReconnectInterval, err)
	}

	if c.MaxDecodeErrors, err = strconv.Atoi(env(EnvMaxDecodeErrors, defaultMaxDecodeErrors)); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvMaxDecodeErrors, err)
	}

	if c.RegistrationTTL, err = time.ParseDuration(env(EnvRegistrationTTL, defaultRegistrationTTL)); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvRegistrationTTL, err)
	}

	if c.DigestHours, err = parseHours(env(EnvDigestHours, defaultDigestHours)); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvDigestHours, err)
	}

	if c.ReferencePairs, err = parsePairs(env(EnvReferencePairs, "")); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvReferencePairs, err)
	}

	if err := validator.New().Struct(c); err != nil {
		return nil, err
	}

	return c, nil
}

// RequireVenue ensures the venue connection settings are present.
func (c *AppConfig) RequireVenue() error {
	if c.TalosHost == "" {
		return fmt.Errorf("%s must be set", EnvTalosHost)
	}
	return nil
}

// ChannelAllowed reports whether the slash command may be used in the channel.
// An empty allow list allows every channel.
func (c *AppConfig) ChannelAllowed(channelID string) bool {
	if len(c.AllowedChannels) == 0 {
		return true
	}

	for _, allowed := range c.AllowedChannels {
		if allowed == channelID {
			return true
		}
	}
	return false
}

// ConfigureLogging sets the logrus output, format and level.
// JSON is used inside Lambda so CloudWatch can index the fields.
func ConfigureLogging(getenv func(string) string) {
	logrus.SetOutput(os.Stdout)
	logrus.SetReportCaller(false)

	if getenv(EnvLambdaServerPort) != "" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(getenv(EnvLogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// InLambda reports whether the process runs inside the Lambda runtime.
func InLambda(getenv func(string) string) bool {
	return getenv(EnvLambdaServerPort) != ""
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseHours(s string) ([]int, error) {
	var hours []int
	for _, part := range splitList(s) {
		h, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, nil
}

// parsePairs reads "BTC-USD=XBTUSD,ETH-USD=ETHUSD".
func parsePairs(s string) (map[string]string, error) {
	pairs := map[string]string{}
	for _, part := range splitList(s) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" || strings.TrimSpace(kv[1]) == "" {
			return nil, fmt.Errorf("invalid pair mapping %q", part)
		}
		pairs[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return pairs, nil
}
