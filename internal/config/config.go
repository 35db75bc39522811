// Package config loads facade and sink settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"aws_facade/internal/facade"
	"aws_facade/internal/utils"
)

// ErrMissingKey is returned when an encrypted secret is configured without
// CONFIG_ENCRYPTION_KEY.
var ErrMissingKey = errors.New("encrypted secret configured without CONFIG_ENCRYPTION_KEY")

// SinkKind selects where audit records go.
type SinkKind string

const (
	SinkNone     SinkKind = "none"
	SinkGraylog  SinkKind = "graylog"
	SinkS3       SinkKind = "s3"
	SinkPostgres SinkKind = "postgres"
)

// Config holds configuration for the facades and their audit sink.
type Config struct {
	LogLevel utils.LogLevel
	Storage  StorageConfig
	Queue    QueueConfig
	Mailer   MailerConfig
	Sink     SinkConfig
	Redis    RedisConfig
}

// StorageConfig holds the S3 facade settings
type StorageConfig struct {
	Credentials facade.Credentials
	Bucket      string
	// Endpoint points the client at an S3-compatible store such as MinIO.
	Endpoint string
}

// QueueConfig holds the SQS facade settings
type QueueConfig struct {
	Credentials facade.Credentials
	URL         string
}

// MailerConfig holds the SES facade settings
type MailerConfig struct {
	Credentials facade.Credentials
	FromAddress string
	FromUser    string
	UseTextBody bool
}

// SinkConfig holds the audit sink settings
type SinkConfig struct {
	Kind SinkKind
	// IgnoreErrors keeps sink failures away from facade callers.
	IgnoreErrors bool

	// Buffered puts a queue and a background forwarder in front of the writer.
	Buffered      bool
	UseRedis      bool
	QueueName     string
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration

	GraylogURL     string
	GraylogTimeout time.Duration

	S3Bucket   string
	S3Region   string
	S3Prefix   string
	S3Endpoint string
	PodName    string

	DatabaseURL string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}

	return b
}

// LoadDotEnv reads the given .env files (".env" when none are named) into the
// process environment. Variables already set are left alone; missing files are
// not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var enc *Encryption
	if key := os.Getenv("CONFIG_ENCRYPTION_KEY"); key != "" {
		var err error
		enc, err = NewEncryptionFromBase64(key)
		if err != nil {
			return nil, fmt.Errorf("invalid CONFIG_ENCRYPTION_KEY: %w", err)
		}
	}

	s3Creds, err := loadCredentials("AWSS3", enc)
	if err != nil {
		return nil, err
	}
	sqsCreds, err := loadCredentials("AWSSQS", enc)
	if err != nil {
		return nil, err
	}
	sesCreds, err := loadCredentials("AWSSES", enc)
	if err != nil {
		return nil, err
	}

	kind := SinkKind(strings.ToLower(getEnvString("SINK_KIND", string(SinkNone))))
	switch kind {
	case SinkNone, SinkGraylog, SinkS3, SinkPostgres:
	default:
		return nil, fmt.Errorf("unknown SINK_KIND %q", kind)
	}

	cfg := &Config{
		LogLevel: utils.ParseLogLevel(getEnvString("LOG_LEVEL", "warning")),
		Storage: StorageConfig{
			Credentials: s3Creds,
			Bucket:      getEnvString("AWSS3_BUCKET", ""),
			Endpoint:    getEnvString("AWSS3_ENDPOINT", ""),
		},
		Queue: QueueConfig{
			Credentials: sqsCreds,
			URL:         getEnvString("AWSSQS_URL", ""),
		},
		Mailer: MailerConfig{
			Credentials: sesCreds,
			FromAddress: getEnvString("AWSSES_FROM_ADDRESS", ""),
			FromUser:    getEnvString("AWSSES_FROM_USER", ""),
			UseTextBody: getEnvBool("AWSSES_USE_TEXT_BODY", false),
		},
		Sink: SinkConfig{
			Kind:           kind,
			IgnoreErrors:   strings.EqualFold(getEnvString("SINK_ERRORS", "propagate"), "ignore"),
			Buffered:       getEnvBool("SINK_BUFFERED", false),
			UseRedis:       getEnvBool("SINK_QUEUE_REDIS", false),
			QueueName:      getEnvString("SINK_QUEUE_NAME", "audit"),
			BatchSize:      getEnvInt("SINK_BATCH_SIZE", 100),
			FlushInterval:  getEnvDuration("SINK_FLUSH_INTERVAL", 5*time.Second),
			MaxRetries:     getEnvInt("SINK_MAX_RETRIES", 3),
			RetryBackoff:   getEnvDuration("SINK_RETRY_BACKOFF", 1*time.Second),
			GraylogURL:     getEnvString("GRAYLOG_URL", "http://graylog:12201/gelf"),
			GraylogTimeout: getEnvDuration("GRAYLOG_TIMEOUT", 5*time.Second),
			S3Bucket:       getEnvString("SINK_S3_BUCKET", ""),
			S3Region:       getEnvString("SINK_S3_REGION", s3Creds.Region),
			S3Prefix:       getEnvString("SINK_S3_PREFIX", "audit/"),
			S3Endpoint:     getEnvString("SINK_S3_ENDPOINT", ""),
			PodName:        getEnvString("POD_NAME", "facade-0"),
			DatabaseURL:    os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Address:  getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}

	switch cfg.Sink.Kind {
	case SinkS3:
		if cfg.Sink.S3Bucket == "" {
			return nil, fmt.Errorf("SINK_S3_BUCKET is required when SINK_KIND=s3")
		}
	case SinkPostgres:
		if cfg.Sink.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when SINK_KIND=postgres")
		}
	}

	return cfg, nil
}

// loadCredentials reads <prefix>_KEY, <prefix>_SECRET and <prefix>_REGION.
// <prefix>_SECRET_ENCRYPTED, when set, wins over the plaintext secret.
func loadCredentials(prefix string, enc *Encryption) (facade.Credentials, error) {
	creds := facade.Credentials{
		AccessKey: os.Getenv(prefix + "_KEY"),
		Secret:    os.Getenv(prefix + "_SECRET"),
		Region:    getEnvString(prefix+"_REGION", "us-east-1"),
	}

	sealed := os.Getenv(prefix + "_SECRET_ENCRYPTED")
	if sealed == "" {
		return creds, nil
	}
	if enc == nil {
		return facade.Credentials{}, fmt.Errorf("%s_SECRET_ENCRYPTED: %w", prefix, ErrMissingKey)
	}
	secret, err := enc.Decrypt(sealed)
	if err != nil {
		return facade.Credentials{}, fmt.Errorf("%s_SECRET_ENCRYPTED: %w", prefix, err)
	}
	creds.Secret = string(secret)
	return creds, nil
}
