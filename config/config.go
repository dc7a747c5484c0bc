// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// DSN renders the pgx keyword/value connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	Currency       string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CartTTL  time.Duration
}

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		IdleTimeout  time.Duration
	}
	Store  string
	DB     DBConfig
	Stripe StripeConfig
	Redis  RedisConfig
	Cart   struct {
		CookieName   string
		SecureCookie bool
		TTL          time.Duration
	}
	Checkout struct {
		TTL time.Duration
	}
	Log struct {
		Development bool
		Level       string
	}
	ShutdownTimeout time.Duration
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.golf-booking")

	setDefaults(v)

	// DB.HOST <- DB_HOST, STRIPE.WEBHOOKSECRET <- STRIPE_WEBHOOKSECRET, etc.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			if envValue := os.Getenv(envVar); envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Every key needs a default so that Unmarshal sees environment overrides
// even when no config file exists.
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Server.ReadTimeout", 10*time.Second)
	v.SetDefault("Server.WriteTimeout", 30*time.Second)
	v.SetDefault("Server.IdleTimeout", 120*time.Second)

	v.SetDefault("Store", StorePostgres)

	v.SetDefault("DB.Host", "localhost")
	v.SetDefault("DB.Port", "5432")
	v.SetDefault("DB.User", "postgres")
	v.SetDefault("DB.Password", "postgres")
	v.SetDefault("DB.DBName", "golf_booking")
	v.SetDefault("DB.SSLMode", "disable")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 5)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)

	v.SetDefault("Stripe.SecretKey", "")
	v.SetDefault("Stripe.PublishableKey", "")
	v.SetDefault("Stripe.WebhookSecret", "")
	v.SetDefault("Stripe.Currency", "usd")

	v.SetDefault("Redis.Addr", "")
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Redis.CartTTL", 15*time.Minute)

	v.SetDefault("Cart.CookieName", "cart_session_id")
	v.SetDefault("Cart.SecureCookie", false)
	v.SetDefault("Cart.TTL", 30*24*time.Hour)

	v.SetDefault("Checkout.TTL", time.Hour)

	v.SetDefault("Log.Development", false)
	v.SetDefault("Log.Level", "info")
	v.SetDefault("ShutdownTimeout", 10*time.Second)
}

// The deployment environment predates the nested key layout.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("DB.DBName", "DB_NAME", "DB_DBNAME")
	_ = v.BindEnv("DB.SSLMode", "DB_SSL_MODE", "DB_SSLMODE")
	_ = v.BindEnv("Stripe.SecretKey", "STRIPE_SECRET_KEY", "STRIPE_SECRETKEY")
	_ = v.BindEnv("Stripe.PublishableKey", "STRIPE_PUBLISHABLE_KEY", "STRIPE_PUBLISHABLEKEY")
	_ = v.BindEnv("Stripe.WebhookSecret", "STRIPE_WEBHOOK_SECRET", "STRIPE_WEBHOOKSECRET")
	_ = v.BindEnv("Server.Port", "SERVER_PORT", "PORT")
}

// Validate checks settings without which the server cannot start. A missing
// webhook secret is allowed: the webhook endpoint reports it per request.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DB.Host == "" || c.DB.DBName == "" {
			return errors.New("database configuration is incomplete")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Stripe.SecretKey == "" {
		return errors.New("stripe secret key is not configured")
	}
	if c.Checkout.TTL <= 0 || c.Cart.TTL <= 0 {
		return errors.New("cart and checkout TTLs must be positive")
	}
	return nil
}
