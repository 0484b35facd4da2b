package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Mail      MailConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	Schema          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (c RedisConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	return c.Host + ":" + c.Port
}

type JWTConfig struct {
	Secret string
	Expiry int // in minutes
}

type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	FromName     string
	SendTimeout  time.Duration
	MaxRetries   uint64
	QueueSize    int
	Workers      int
}

type StorageConfig struct {
	Driver       string // local or s3
	UploadDir    string
	URLPrefix    string
	MaxBytes     int64
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	S3Bucket     string
	PublicURL    string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from an optional .env file and the environment
func Load() (*Config, error) {
	// Missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			ReadTimeout:    v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DB_URL"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_DATABASE"),
			Schema:          v.GetString("DB_SCHEMA"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			QueryTimeout:    v.GetDuration("DB_QUERY_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Expiry: v.GetInt("JWT_EXPIRY"),
		},
		Mail: MailConfig{
			SMTPHost:     v.GetString("SMTP_HOST"),
			SMTPPort:     v.GetInt("SMTP_PORT"),
			SMTPUsername: v.GetString("SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
			From:         v.GetString("MAIL_FROM"),
			FromName:     v.GetString("MAIL_FROM_NAME"),
			SendTimeout:  v.GetDuration("MAIL_SEND_TIMEOUT"),
			MaxRetries:   v.GetUint64("MAIL_MAX_RETRIES"),
			QueueSize:    v.GetInt("MAIL_QUEUE_SIZE"),
			Workers:      v.GetInt("MAIL_WORKERS"),
		},
		Storage: StorageConfig{
			Driver:       strings.ToLower(v.GetString("STORAGE_DRIVER")),
			UploadDir:    v.GetString("UPLOAD_DIR"),
			URLPrefix:    v.GetString("UPLOAD_URL_PREFIX"),
			MaxBytes:     v.GetInt64("UPLOAD_MAX_BYTES"),
			AWSRegion:    v.GetString("AWS_REGION"),
			AWSAccessKey: v.GetString("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:     v.GetString("AWS_S3_BUCKET"),
			PublicURL:    v.GetString("AWS_PUBLIC_URL"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_QUERY_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_EXPIRY", 60)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM_NAME", "Storefront")
	v.SetDefault("MAIL_SEND_TIMEOUT", 10*time.Second)
	v.SetDefault("MAIL_MAX_RETRIES", 5)
	v.SetDefault("MAIL_QUEUE_SIZE", 100)
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_URL_PREFIX", "/uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 5<<20)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("RATE_LIMIT_REQUESTS", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.Expiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}
	if c.IsProduction() && c.Database.URL == "" && c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required in production"))
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, errors.New("DB_QUERY_TIMEOUT must be positive"))
	}
	if c.Mail.SendTimeout <= 0 {
		errs = append(errs, errors.New("MAIL_SEND_TIMEOUT must be positive"))
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("AWS_S3_BUCKET is required when STORAGE_DRIVER is s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
