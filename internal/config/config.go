package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	SMSProviderLog     = "log"
	SMSProviderWebhook = "webhook"

	EmailProviderLog     = "log"
	EmailProviderSMTP    = "smtp"
	EmailProviderMailgun = "mailgun"
	EmailProviderSES     = "ses"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Scheduler SchedulerConfig
	Worker    WorkerConfig
	SMS       SMSConfig
	Email     EmailConfig
	LogLevel  slog.Level
}

type ServerConfig struct {
	Address    string
	BaseURL    string
	CronSecret string
}

type DatabaseConfig struct {
	Store       string
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type RabbitMQConfig struct {
	Enabled bool
	URL     string
}

type SchedulerConfig struct {
	Enabled     bool
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

type WorkerConfig struct {
	Count     int
	QueueSize int
}

type SMSConfig struct {
	Provider   string
	WebhookURL string
	From       string
	APIKey     string
	ContentMax int
}

type EmailConfig struct {
	Provider string
	From     string
	SMTP     SMTPConfig
	Mailgun  MailgunConfig
	SES      SESConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

type MailgunConfig struct {
	Domain string
	APIKey string
}

type SESConfig struct {
	Region string
}

// LoadAll reads the process configuration from the environment. Every
// missing, malformed or out-of-range value is reported in one joined error.
func LoadAll() (*Config, error) {
	var errs []error

	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolVar := func(key string, def bool) bool {
		v, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Address:    getEnv("SERVER_ADDRESS", ":8080"),
			BaseURL:    getEnv("BASE_URL", "http://localhost:3000"),
			CronSecret: os.Getenv("CRON_SECRET"),
		},
		Database: DatabaseConfig{
			Store: strings.ToLower(getEnv("STORE", StorePostgres)),
		},
		Scheduler: SchedulerConfig{
			Enabled:     boolVar("SCHED_ENABLED", true),
			Interval:    time.Duration(intVar("SCHED_INTERVAL_SECONDS", 300)) * time.Second,
			BatchSize:   intVar("SCHED_BATCH_SIZE", 50),
			Concurrency: intVar("SCHED_CONCURRENCY", 10),
		},
		Worker: WorkerConfig{
			Count:     intVar("WORKER_COUNT", 4),
			QueueSize: intVar("WORKER_QUEUE_SIZE", 256),
		},
		SMS: SMSConfig{
			Provider:   strings.ToLower(getEnv("SMS_PROVIDER", SMSProviderLog)),
			WebhookURL: os.Getenv("SMS_WEBHOOK_URL"),
			From:       getEnv("SMS_FROM", "+1234567890"),
			APIKey:     os.Getenv("SMS_API_KEY"),
			ContentMax: intVar("CONTENT_MAX", 1600),
		},
		Email: EmailConfig{
			Provider: strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderLog)),
			From:     getEnv("EMAIL_FROM", "noreply@example.com"),
			SMTP: SMTPConfig{
				Host:     os.Getenv("SMTP_HOST"),
				Port:     intVar("SMTP_PORT", 587),
				User:     os.Getenv("SMTP_USER"),
				Password: os.Getenv("SMTP_PASSWORD"),
			},
			Mailgun: MailgunConfig{
				Domain: os.Getenv("MAILGUN_DOMAIN"),
				APIKey: os.Getenv("MAILGUN_API_KEY"),
			},
			SES: SESConfig{
				Region: getEnv("AWS_REGION", "us-east-1"),
			},
		},
		RabbitMQ: RabbitMQConfig{
			URL:     os.Getenv("RABBITMQ_URL"),
			Enabled: os.Getenv("RABBITMQ_URL") != "",
		},
	}

	if cfg.Database.Store == StorePostgres {
		url, err := requireEnv("POSTGRES_URL")
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Database.PostgresURL = url
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis = RedisConfig{
			Enabled:  true,
			Address:  addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intVar("REDIS_DB", 0),
			TTL:      time.Duration(intVar("REDIS_TTL_SECONDS", 86400)) * time.Second,
		}
	}

	level := getEnv("LOG_LEVEL", "info")
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %q", level))
	}

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) []error {
	var errs []error

	switch cfg.Database.Store {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Database.Store))
	}

	if cfg.Scheduler.BatchSize <= 0 {
		errs = append(errs, errors.New("SCHED_BATCH_SIZE must be > 0"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Scheduler.Concurrency <= 0 {
		errs = append(errs, errors.New("SCHED_CONCURRENCY must be > 0"))
	}
	if cfg.Worker.Count <= 0 {
		errs = append(errs, errors.New("WORKER_COUNT must be > 0"))
	}
	if cfg.Worker.QueueSize < 0 {
		errs = append(errs, errors.New("WORKER_QUEUE_SIZE must be >= 0"))
	}
	if cfg.SMS.ContentMax <= 0 {
		errs = append(errs, errors.New("CONTENT_MAX must be > 0"))
	}

	switch cfg.SMS.Provider {
	case SMSProviderLog:
	case SMSProviderWebhook:
		if cfg.SMS.WebhookURL == "" {
			errs = append(errs, errors.New("SMS_WEBHOOK_URL is required when SMS_PROVIDER=webhook"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SMS_PROVIDER %q", cfg.SMS.Provider))
	}

	switch cfg.Email.Provider {
	case EmailProviderLog, EmailProviderSES:
	case EmailProviderSMTP:
		if cfg.Email.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when EMAIL_PROVIDER=smtp"))
		}
	case EmailProviderMailgun:
		if cfg.Email.Mailgun.Domain == "" || cfg.Email.Mailgun.APIKey == "" {
			errs = append(errs, errors.New("MAILGUN_DOMAIN and MAILGUN_API_KEY are required when EMAIL_PROVIDER=mailgun"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.Email.Provider))
	}

	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %q", key, v)
	}
	return b, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
