package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type DB struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

type NSQ struct {
	NsqdTCPAddr     string // e.g. nsqd:4150
	LookupHTTPAddr  string // e.g. http://nsqlookupd:4161
	EventsTopic     string // NSQ topic carrying inbound platform events
	NotifierChannel string // NSQ channel name for the notifier daemon
}

type Webhook struct {
	Timeout         time.Duration   // Hard per-delivery HTTP timeout
	MaxPayloadBytes int             // Formatted payload size cap, checked before any network call
	MaxConcurrent   int64           // Upper bound on simultaneous outbound calls
	SweepInterval   time.Duration   // Period of the retry sweep loop
	SweepBatchSize  int             // Max due ledger entries per sweep tick
	MaxRetries      int             // Retry attempts before an entry is exhausted
	RetryDelays     []time.Duration // Backoff schedule indexed by attempt number
	SignatureHeader string          // HTTP header for the HMAC signature
	TimestampHeader string          // HTTP header for the signing timestamp
}

type Auth struct {
	PublicKeyPEM string // RSA public key for admin API bearer tokens; empty disables auth
	Issuer       string
	Audience     string
}

type FakeReceiver struct {
	FailFirstN           int           // Number of requests to fail initially
	EndpointSecret       string        // Secret for webhook signature verification
	SigningLeewaySeconds int           // Allowed timestamp skew in seconds
	ResponseDelayMS      int           // Simulated response delay in milliseconds
	Port                 string        // Server listen port
	ReadTimeout          time.Duration // HTTP read timeout
	WriteTimeout         time.Duration // HTTP write timeout
	IdleTimeout          time.Duration // HTTP idle timeout
}

type Config struct {
	AppName      string
	HTTPPort     string // :8080
	DB           DB
	NSQ          NSQ
	Webhook      Webhook
	Auth         Auth
	FakeReceiver FakeReceiver
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// defaultRetryDelays is the fixed backoff schedule: 1m, 5m, 15m, 1h, 2h.
func defaultRetryDelays() []time.Duration {
	return []time.Duration{
		time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		time.Hour,
		2 * time.Hour,
	}
}

// parseRetryDelays parses a comma-separated list of delay seconds, e.g.
// "60,300,900,3600,7200". Malformed elements are skipped; an empty result
// falls back to the default schedule.
func parseRetryDelays(schedule string) []time.Duration {
	if schedule == "" {
		return defaultRetryDelays()
	}

	parts := strings.Split(schedule, ",")
	delays := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if secs, err := strconv.Atoi(part); err == nil && secs > 0 {
			delays = append(delays, time.Duration(secs)*time.Second)
		}
	}

	if len(delays) == 0 {
		return defaultRetryDelays()
	}
	return delays
}

func FromEnv() Config {
	return Config{
		AppName:  getenv("APP_NAME", "planthook"),
		HTTPPort: getenv("HTTP_PORT", ":8080"),
		DB: DB{
			User: getenv("DB_USER", "postgres"),
			Pass: getenv("DB_PASS", "postgres"),
			Host: getenv("DB_HOST", "postgres"),
			Port: getenv("DB_PORT", "5432"),
			Name: getenv("DB_NAME", "planthook"),
		},
		NSQ: NSQ{
			NsqdTCPAddr:     getenv("NSQD_TCP_ADDR", "nsqd:4150"),
			LookupHTTPAddr:  getenv("NSQ_LOOKUP_HTTP_ADDR", "http://nsqlookupd:4161"),
			EventsTopic:     getenv("NSQ_EVENTS_TOPIC", "events"),
			NotifierChannel: getenv("NSQ_NOTIFIER_CHANNEL", "notifier"),
		},
		Webhook: Webhook{
			Timeout:         time.Duration(getenvInt("TIMEOUT_MS", 10000)) * time.Millisecond,
			MaxPayloadBytes: getenvInt("MAX_PAYLOAD_BYTES", 102400),
			MaxConcurrent:   getenvInt64("MAX_CONCURRENT", 10),
			SweepInterval:   time.Duration(getenvInt("SWEEP_INTERVAL_S", 60)) * time.Second,
			SweepBatchSize:  getenvInt("SWEEP_BATCH_SIZE", 50),
			MaxRetries:      getenvInt("MAX_RETRIES", 5),
			RetryDelays:     parseRetryDelays(getenv("RETRY_DELAYS_S", "")),
			SignatureHeader: getenv("WEBHOOK_SIGNATURE_HEADER", "X-PlantHook-Signature"),
			TimestampHeader: getenv("WEBHOOK_TIMESTAMP_HEADER", "X-PlantHook-Timestamp"),
		},
		Auth: Auth{
			PublicKeyPEM: getenv("JWT_PUBLIC_KEY", ""),
			Issuer:       getenv("JWT_ISSUER", "planthook"),
			Audience:     getenv("JWT_AUDIENCE", "planthook-admin"),
		},
		FakeReceiver: FakeReceiver{
			FailFirstN:           getenvInt("FAIL_FIRST_N", 0),
			EndpointSecret:       getenv("ENDPOINT_SECRET", ""),
			SigningLeewaySeconds: getenvInt("SIGNING_LEEWAY_SECONDS", 300),
			ResponseDelayMS:      getenvInt("RESPONSE_DELAY_MS", 0),
			Port:                 getenv("FAKE_RECEIVER_PORT", ":8081"),
			ReadTimeout:          getenvDuration("FAKE_RECEIVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:         getenvDuration("FAKE_RECEIVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:          getenvDuration("FAKE_RECEIVER_IDLE_TIMEOUT", 60*time.Second),
		},
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB.User, c.DB.Pass, c.DB.Host, c.DB.Port, c.DB.Name)
}
