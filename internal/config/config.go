package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// DatabaseConfig holds the database connection information.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// RedisConfig holds the shared counter store connection.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PolicyConfig is a throttling rule for one action.
type PolicyConfig struct {
	MaxRequests int    `yaml:"max_requests"`
	Window      string `yaml:"window"`
}

// RateLimitConfig selects the counter store and per-action policies.
type RateLimitConfig struct {
	// Store is "redis" or "memory".
	Store              string       `yaml:"store"`
	ContactForm        PolicyConfig `yaml:"contact_form"`
	PartnerApplication PolicyConfig `yaml:"partner_application"`
}

// AdminConfig holds the bootstrap reviewer account and token settings.
type AdminConfig struct {
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	JWTSecret   string   `yaml:"jwt_secret"`
	TokenExpiry string   `yaml:"token_expiry"`
	Emails      []string `yaml:"emails"`
}

// SMTPConfig holds outbound email settings. An empty host disables email.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	SiteURL  string `yaml:"site_url"`
}

// KafkaConfig enables status-change events when brokers are set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// NotifyConfig tunes the asynchronous dispatcher.
type NotifyConfig struct {
	QueueSize     int     `yaml:"queue_size"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// LogConfig controls log output.
type LogConfig struct {
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// SchedulerConfig holds configuration for the scheduler. ReportSpec
// schedules the emailed daily report, which only runs when SMTP and at least
// one admin email are configured.
type SchedulerConfig struct {
	AnalyticsSpec string `yaml:"analytics_spec"`
	ReportSpec    string `yaml:"report_spec"`
}

// Config holds the configuration for the intake service.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig     `yaml:"admin"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Port      int             `yaml:"port"`
	Debug     bool            `yaml:"debug"`
}

// WindowDuration parses the policy window, falling back to def when unset or invalid.
func (p PolicyConfig) WindowDuration(def time.Duration) time.Duration {
	if p.Window == "" {
		return def
	}
	d, err := time.ParseDuration(p.Window)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// TokenTTL returns the reviewer token lifetime.
func (a AdminConfig) TokenTTL() time.Duration {
	d, err := time.ParseDuration(a.TokenExpiry)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// LoadConfig reads and parses the configuration file. It returns the config and a potential warning message.
var LoadConfig = func(path string) (*Config, string, error) {
	var config Config
	var warnings []string

	data, err := os.ReadFile(path)
	if err == nil {
		if err = yaml.Unmarshal(data, &config); err != nil {
			return nil, "", fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}
	// A missing file is fine; environment variables may carry everything.

	applyEnv(&config)

	if config.Port == 0 {
		config.Port = 8080
	}
	if config.RateLimit.Store == "" {
		if config.Redis.URL != "" {
			config.RateLimit.Store = "redis"
		} else {
			config.RateLimit.Store = "memory"
			warnings = append(warnings, "rate_limit.store not set and no redis url, using in-memory counters")
		}
	}
	if config.RateLimit.ContactForm.MaxRequests == 0 {
		config.RateLimit.ContactForm = PolicyConfig{MaxRequests: 5, Window: "1h"}
	}
	if config.RateLimit.PartnerApplication.MaxRequests == 0 {
		config.RateLimit.PartnerApplication = PolicyConfig{MaxRequests: 3, Window: "24h"}
	}
	if config.Admin.Username == "" {
		config.Admin.Username = "admin"
	}
	if config.Kafka.Topic == "" {
		config.Kafka.Topic = "partner-application-events"
	}
	if config.Notify.QueueSize == 0 {
		config.Notify.QueueSize = 100
	}
	if config.Notify.RatePerSecond == 0 {
		config.Notify.RatePerSecond = 5
	}
	if config.SMTP.Port == 0 {
		config.SMTP.Port = 587
	}
	if config.Scheduler.AnalyticsSpec == "" {
		config.Scheduler.AnalyticsSpec = "@daily"
	}
	if config.Scheduler.ReportSpec == "" {
		config.Scheduler.ReportSpec = "0 7 * * *"
	}

	if config.Database.Type == "" || config.Database.DSN == "" {
		return nil, "", fmt.Errorf("database type and dsn must be configured in config.yaml or via environment variables")
	}
	if config.RateLimit.Store == "redis" && config.Redis.URL == "" {
		return nil, "", fmt.Errorf("rate_limit.store is redis but redis.url is empty")
	}
	if config.RateLimit.Store != "redis" && config.RateLimit.Store != "memory" {
		return nil, "", fmt.Errorf("unsupported rate_limit.store: %s", config.RateLimit.Store)
	}
	if config.Admin.JWTSecret == "" {
		return nil, "", fmt.Errorf("admin.jwt_secret must be configured")
	}

	return &config, strings.Join(warnings, "; "), nil
}

func applyEnv(config *Config) {
	if dsn := os.Getenv("INTAKE_DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if dbType := os.Getenv("INTAKE_DATABASE_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if url := os.Getenv("INTAKE_REDIS_URL"); url != "" {
		config.Redis.URL = url
	}
	if store := os.Getenv("INTAKE_RATE_LIMIT_STORE"); store != "" {
		config.RateLimit.Store = store
	}
	if port := os.Getenv("INTAKE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	if password := os.Getenv("INTAKE_ADMIN_PASSWORD"); password != "" {
		config.Admin.Password = password
	}
	if secret := os.Getenv("INTAKE_JWT_SECRET"); secret != "" {
		config.Admin.JWTSecret = secret
	}
	if host := os.Getenv("INTAKE_SMTP_HOST"); host != "" {
		config.SMTP.Host = host
	}
	if password := os.Getenv("INTAKE_SMTP_PASSWORD"); password != "" {
		config.SMTP.Password = password
	}
	if brokers := os.Getenv("INTAKE_KAFKA_BROKERS"); brokers != "" {
		config.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if debug := os.Getenv("INTAKE_DEBUG"); debug != "" {
		config.Debug = (debug == "true")
	}
}
