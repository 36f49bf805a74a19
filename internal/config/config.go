// Package config loads application configuration from environment
// variables.  A .env file in the working directory is read first when it
// exists; variables already set in the process environment win.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration values of the server.  Each
// field corresponds to an environment variable.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	// AutoMigrate applies the embedded schema at startup.
	AutoMigrate bool

	AuthEnabled bool   // require a bearer token on /v1
	JWTSecret   string // HS256 secret, required when AuthEnabled

	RabbitURL      string // empty disables event publishing
	EventsConsumer bool   // run the event log consumer in-process
	EventsLogDir   string // directory of the consumer's log file

	Policy Policy
}

// Policy carries the business rules that are configurable rather than
// fixed in code.
type Policy struct {
	LateFeePolicy      string          // "flat" or "class"
	LateFeePerDay      decimal.Decimal // flat rate per overdue day
	LateFeeClassFactor decimal.Decimal // class value multiplier for "class"
	ReactivationCap    int             // dependents restored on reactivation
	ReferenceTZ        *time.Location  // day boundary for "today"
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
	loadDotEnv()
	cfg := Config{
		Env:            getenv("APP_ENV", "dev"),
		Port:           getenv("APP_PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         getenv("DB_PORT", "3306"),
		DBName:         must("DB_NAME"),
		AutoMigrate:    envBool("DB_AUTO_MIGRATE", false),
		AuthEnabled:    envBool("AUTH_ENABLED", false),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		EventsConsumer: envBool("EVENTS_CONSUMER", false),
		EventsLogDir:   getenv("EVENTS_LOG_DIR", "logs"),
	}
	if cfg.AuthEnabled && cfg.JWTSecret == "" {
		log.Fatalf("missing required env var: JWT_SECRET (AUTH_ENABLED=true)")
	}
	p, err := LoadPolicy()
	if err != nil {
		log.Fatalf("invalid policy configuration: %v", err)
	}
	cfg.Policy = p
	return cfg
}

// LoadPolicy reads the business policy variables.  Unset variables take
// the shop's current defaults: a flat fee of 2 per day and at most 3
// dependents restored on reactivation.
func LoadPolicy() (Policy, error) {
	p := Policy{
		LateFeePolicy:   envStr("LATE_FEE_POLICY", "flat"),
		ReactivationCap: envInt("REACTIVATION_CAP", 3),
	}
	var err error
	if p.LateFeePerDay, err = envDecimal("LATE_FEE_PER_DAY", "2"); err != nil {
		return Policy{}, err
	}
	if p.LateFeeClassFactor, err = envDecimal("LATE_FEE_CLASS_FACTOR", "0.5"); err != nil {
		return Policy{}, err
	}
	if p.ReactivationCap < 0 {
		return Policy{}, fmt.Errorf("REACTIVATION_CAP must not be negative, got %d", p.ReactivationCap)
	}
	tz := envStr("REFERENCE_TZ", "UTC")
	if p.ReferenceTZ, err = time.LoadLocation(tz); err != nil {
		return Policy{}, fmt.Errorf("REFERENCE_TZ %q: %w", tz, err)
	}
	return p, nil
}

// ClientConfig configures the dashboard REST client used by rentalctl.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// LoadClientConfig reads the RENTAL_API_* variables.
func LoadClientConfig() ClientConfig {
	loadDotEnv()
	return ClientConfig{
		BaseURL: envStr("RENTAL_API_URL", "http://localhost:8080"),
		Token:   os.Getenv("RENTAL_API_TOKEN"),
		Timeout: envDur("RENTAL_API_TIMEOUT", 10*time.Second),
	}
}

// JWTSecret returns the token signing secret, for commands that mint
// tokens outside the server.
func JWTSecret() string {
	loadDotEnv()
	return os.Getenv("JWT_SECRET")
}

// loadDotEnv loads .env (or the file named by ENV_FILE) when present.
// godotenv never overrides variables that are already set.
func loadDotEnv() {
	file := getenv("ENV_FILE", ".env")
	if _, err := os.Stat(file); err != nil {
		return
	}
	if err := godotenv.Load(file); err != nil {
		log.Printf("config: could not load %s: %v", file, err)
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

func envDecimal(key, def string) (decimal.Decimal, error) {
	s := envStr(key, def)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q", key, s)
	}
	return d, nil
}
