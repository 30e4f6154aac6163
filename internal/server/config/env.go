package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv overlays Config with environment variables. Variables from the
// file given by -env-file (or ./.env when present) are loaded first without
// overriding ones already set in the process environment.
//
// A missing default .env is ignored; a missing explicit file, or a value that
// does not parse, panics.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlag(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	envString("HTTP_ADDR", &config.EndpointAddrHTTP)
	envString("GRPC_ADDR", &config.EndpointAddrGRPC)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("ENCRYPTION_KEY", &config.EncryptionKey)
	envString("ENCRYPTION_SALT", &config.EncryptionSalt)
	envDuration("SESSION_TTL", &config.SessionTTL)
	envInt64("PAYMENT_FEE", &config.PaymentFee)
	envString("PAYMENT_METHOD", &config.PaymentMethod)
	envString("MSG91_URL", &config.NotifyURL)
	envString("MSG91_AUTH_KEY", &config.NotifyAuthKey)
	envString("MSG91_WHATSAPP_CHANNEL_ID", &config.NotifyChannelID)
	envDuration("NOTIFY_TIMEOUT", &config.NotifyTimeout)
	envInt("NOTIFY_MAX_RETRIES", &config.NotifyMaxRetries)
	envFloat("NOTIFY_RATE_PER_SECOND", &config.NotifyRatePerSecond)
	envInt("NOTIFY_QUEUE_SIZE", &config.NotifyQueueSize)
	envInt("NOTIFY_WORKERS", &config.NotifyWorkers)
	envDuration("SWEEP_INTERVAL", &config.SweepInterval)
	envDuration("REQUEST_TIMEOUT", &config.RequestTimeout)
	envString("SENTRY_DSN", &config.SentryDSN)
	envString("SENTRY_ENVIRONMENT", &config.SentryEnvironment)
	envString("LOG_LEVEL", &config.LogLevel)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		*dst = d
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		*dst = n
	}
}

func envInt64(key string, dst *int64) {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		*dst = n
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			panic(err)
		}
		*dst = f
	}
}
