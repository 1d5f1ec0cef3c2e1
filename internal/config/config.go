// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/bhmc/slot-reservation/internal/model"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	Store    string // "mysql" or "memory"
	LogLevel string // zap level name

	DBUser     string
	DBPass     string // empty allowed
	DBHost     string
	DBPort     string
	DBName     string
	DBLockWait time.Duration // innodb_lock_wait_timeout for slot locks

	JWTSecret string // secret used to verify bearer tokens

	RabbitMQURL string // empty disables confirmation publishing

	StripeSecretKey     string // empty selects the mock gateway outside prod
	StripeWebhookSecret string

	Season model.SeasonSettings

	SweepInterval       time.Duration
	AbandonedPaymentAge time.Duration
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	c := Config{
		Env:      must("APP_ENV"),
		Port:     envStr("APP_PORT", "8080"),
		Store:    envStr("APP_STORE", "mysql"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		JWTSecret: must("JWT_SECRET"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		Season:              LoadSeason(),
		SweepInterval:       envDur("SWEEP_INTERVAL", time.Minute),
		AbandonedPaymentAge: envDur("ABANDONED_PAYMENT_AGE", time.Hour),
	}
	if c.Store == "mysql" {
		c.DBUser = must("DB_USER")
		c.DBPass = os.Getenv("DB_PASS")
		c.DBHost = must("DB_HOST")
		c.DBPort = must("DB_PORT")
		c.DBName = must("DB_NAME")
		c.DBLockWait = envDur("DB_LOCK_WAIT", 5*time.Second)
	}
	if c.IsProd() && (c.StripeSecretKey == "" || c.StripeWebhookSecret == "") {
		log.Fatalf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required in %s", c.Env)
	}
	return c
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

// LoadSeason reads the current season's settings.  The transaction cost
// defaults match the club's card processor contract.
func LoadSeason() model.SeasonSettings {
	return model.SeasonSettings{
		Season:            mustInt("SEASON_YEAR"),
		MembershipEventID: uint64(envInt("SEASON_MEMBERSHIP_EVENT_ID", 0)),
		FixedCostCents:    int64(envInt("SEASON_FIXED_COST_CENTS", 30)),
		PercentageRate:    envFloat("SEASON_PERCENTAGE_RATE", 0.029),
		Currency:          envStr("SEASON_CURRENCY", "usd"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
