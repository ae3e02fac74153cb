package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every setting of the api, processor and cli binaries.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=loyalty_engine"`
	AppDebug bool   `env:"APP_DEBUG,default=false"`

	// metrics are served on their own listener
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR,default=:9100"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr            string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerReadTimeout     time.Duration `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    time.Duration `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerRequestTimeout  time.Duration `env:"HTTP_SERVER_REQUEST_TIMEOUT,default=5s"`
	HttpServerReadBufferSize  int           `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int           `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	// must stay below HTTP_SERVER_REQUEST_TIMEOUT
	PostgresStatementTimeout time.Duration `env:"POSTGRES_STATEMENT_TIMEOUT,default=3s"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=loyalty:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=loyalty"`

	NotifyQueueName              string        `env:"NOTIFY_QUEUE_NAME,default=notifications"`
	NotifyQueueConsumerGroup     string        `env:"NOTIFY_QUEUE_CONSUMER_GROUP,default=sms-senders"`
	NotifyQueueConsumerName      string        `env:"NOTIFY_QUEUE_CONSUMER_NAME,default=sender"`
	NotifyQueueConsumers         int           `env:"NOTIFY_QUEUE_CONSUMERS,default=4"`
	NotifyQueueWorkers           int           `env:"NOTIFY_QUEUE_WORKERS,default=20"`
	NotifyQueueMaxRetries        int           `env:"NOTIFY_QUEUE_MAX_RETRIES,default=3"`
	NotifyQueueVisibilityTimeout time.Duration `env:"NOTIFY_QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	NotifyQueuePollInterval      time.Duration `env:"NOTIFY_QUEUE_POLL_INTERVAL,default=1s"`
	NotifyQueueBatchSize         int64         `env:"NOTIFY_QUEUE_BATCH_SIZE,default=10"`
	NotifyQueueMaxLen            int64         `env:"NOTIFY_QUEUE_MAX_LEN,default=100000"`
	NotifyQueueEnableDLQ         bool          `env:"NOTIFY_QUEUE_ENABLE_DLQ,default=true"`

	SmsProviderPrimaryUrl   string        `env:"SMS_PROVIDER_PRIMARY_URL"`
	SmsProviderSecondaryUrl string        `env:"SMS_PROVIDER_SECONDARY_URL"`
	SmsSenderID             string        `env:"SMS_SENDER_ID"`
	SmsTimeout              time.Duration `env:"SMS_TIMEOUT,default=5s"`

	ReferralCodeLength int `env:"REFERRAL_CODE_LENGTH,default=8"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Config")
	}
	if c.HttpServerRequestTimeout > 0 && c.PostgresStatementTimeout >= c.HttpServerRequestTimeout {
		return errors.Errorf("POSTGRES_STATEMENT_TIMEOUT (%s) must be shorter than HTTP_SERVER_REQUEST_TIMEOUT (%s)",
			c.PostgresStatementTimeout, c.HttpServerRequestTimeout)
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
