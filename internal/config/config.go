package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every runtime setting of the engine. Only this struct may
// be used to read configuration; no direct env/ini access elsewhere.
type Config struct {
	AppEnv   string `env:"APP_ENV" default:"dev"`
	AppName  string `env:"APP_NAME" default:"compliance_engine"`
	AppDebug bool   `env:"APP_DEBUG" default:"1"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	// Webhook reconciliation queue (redis streams).
	QueueName              string        `env:"QUEUE_NAME" default:"webhook:events"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP" default:"reconciler"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ"`

	// Upstream carrier-aggregation gateway.
	GatewayURL        string        `env:"GATEWAY_URL"`
	GatewayAPIKey     string        `env:"GATEWAY_API_KEY"`
	GatewayTimeout    time.Duration `env:"GATEWAY_TIMEOUT" default:"5s"`
	GatewayMaxRetries int           `env:"GATEWAY_MAX_RETRIES" default:"3"`
	GatewayRetryBase  time.Duration `env:"GATEWAY_RETRY_BASE" default:"200ms"`

	// Campaign/Brand Registry collaborator.
	RegistryURL     string        `env:"REGISTRY_URL"`
	RegistryTimeout time.Duration `env:"REGISTRY_TIMEOUT" default:"2s"`

	// Webhook ingress verification.
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookMaxSkew    time.Duration `env:"WEBHOOK_MAX_SKEW" default:"5m"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" default:"5"`
	WebhookRetryBase  time.Duration `env:"WEBHOOK_RETRY_BASE" default:"1s"`

	// Quiet-hours window, local recipient time. Sends allowed in
	// [QuietHoursEnd, QuietHoursStart).
	QuietHoursStart int `env:"QUIET_HOURS_START" default:"21"`
	QuietHoursEnd   int `env:"QUIET_HOURS_END" default:"8"`

	// Fallbacks for scopes with no registry tier.
	RateDefaultCapacity  int     `env:"RATE_DEFAULT_CAPACITY" default:"60"`
	RateDefaultRefillSec float64 `env:"RATE_DEFAULT_REFILL_SEC" default:"1"`

	// Reply bodies for keyword handling.
	OptOutConfirmationBody string `env:"OPT_OUT_CONFIRMATION_BODY" default:"You have been unsubscribed and will receive no further messages. Reply START to resubscribe."`
	OptInConfirmationBody  string `env:"OPT_IN_CONFIRMATION_BODY" default:"You have been resubscribed. Reply STOP to unsubscribe."`
	HelpReplyBody          string `env:"HELP_REPLY_BODY" default:"Msg&data rates may apply. Reply STOP to unsubscribe."`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the loaded configuration. Intended for tests.
func Set(c *Config) {
	config = c
}
