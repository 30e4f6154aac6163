package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sehatbot/internal/flagx"
	"github.com/dmitrijs2005/sehatbot/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Duration fields use timex.Duration, which accepts both "90s"-style strings
// and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP    string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC    string         `json:"endpoint_addr_grpc"`
	DatabaseDSN         string         `json:"database_dsn"`
	EncryptionKey       string         `json:"encryption_key"`
	EncryptionSalt      string         `json:"encryption_salt"`
	SessionTTL          timex.Duration `json:"session_ttl"`
	PaymentFee          int64          `json:"payment_fee"`
	PaymentMethod       string         `json:"payment_method"`
	NotifyURL           string         `json:"notify_url"`
	NotifyAuthKey       string         `json:"notify_auth_key"`
	NotifyChannelID     string         `json:"notify_channel_id"`
	NotifyTimeout       timex.Duration `json:"notify_timeout"`
	NotifyMaxRetries    int            `json:"notify_max_retries"`
	NotifyRatePerSecond float64        `json:"notify_rate_per_second"`
	NotifyQueueSize     int            `json:"notify_queue_size"`
	NotifyWorkers       int            `json:"notify_workers"`
	SweepInterval       timex.Duration `json:"sweep_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	SentryDSN           string         `json:"sentry_dsn"`
	SentryEnvironment   string         `json:"sentry_environment"`
	LogLevel            string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Keys absent from the file keep their current values.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	fromJson(c, config)
}

func toJson(config *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:    config.EndpointAddrHTTP,
		EndpointAddrGRPC:    config.EndpointAddrGRPC,
		DatabaseDSN:         config.DatabaseDSN,
		EncryptionKey:       config.EncryptionKey,
		EncryptionSalt:      config.EncryptionSalt,
		SessionTTL:          timex.Duration{Duration: config.SessionTTL},
		PaymentFee:          config.PaymentFee,
		PaymentMethod:       config.PaymentMethod,
		NotifyURL:           config.NotifyURL,
		NotifyAuthKey:       config.NotifyAuthKey,
		NotifyChannelID:     config.NotifyChannelID,
		NotifyTimeout:       timex.Duration{Duration: config.NotifyTimeout},
		NotifyMaxRetries:    config.NotifyMaxRetries,
		NotifyRatePerSecond: config.NotifyRatePerSecond,
		NotifyQueueSize:     config.NotifyQueueSize,
		NotifyWorkers:       config.NotifyWorkers,
		SweepInterval:       timex.Duration{Duration: config.SweepInterval},
		RequestTimeout:      timex.Duration{Duration: config.RequestTimeout},
		SentryDSN:           config.SentryDSN,
		SentryEnvironment:   config.SentryEnvironment,
		LogLevel:            config.LogLevel,
	}
}

func fromJson(c *JsonConfig, config *Config) {
	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.EncryptionKey = c.EncryptionKey
	config.EncryptionSalt = c.EncryptionSalt
	config.SessionTTL = c.SessionTTL.Duration
	config.PaymentFee = c.PaymentFee
	config.PaymentMethod = c.PaymentMethod
	config.NotifyURL = c.NotifyURL
	config.NotifyAuthKey = c.NotifyAuthKey
	config.NotifyChannelID = c.NotifyChannelID
	config.NotifyTimeout = c.NotifyTimeout.Duration
	config.NotifyMaxRetries = c.NotifyMaxRetries
	config.NotifyRatePerSecond = c.NotifyRatePerSecond
	config.NotifyQueueSize = c.NotifyQueueSize
	config.NotifyWorkers = c.NotifyWorkers
	config.SweepInterval = c.SweepInterval.Duration
	config.RequestTimeout = c.RequestTimeout.Duration
	config.SentryDSN = c.SentryDSN
	config.SentryEnvironment = c.SentryEnvironment
	config.LogLevel = c.LogLevel
}
