package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the corresponding env var is unset.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultRedisStream = "order_events"
	DefaultStepTimeout = 5 * time.Second
)

// HTTPConfig holds the public API listener settings.
type HTTPConfig struct {
	Addr              string
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// RedisConfig holds Redis connection and behavior settings.
type RedisConfig struct {
	URL                string
	Stream             string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	OutcomeTTL         time.Duration
	StreamMaxLen       int64
	EnableOTel         bool
	TLSConfig          *tls.Config
}

// SagaConfig holds transaction coordinator settings. A non-empty InventoryURL
// points the coordinator at a remote inventory service instead of the local
// ledger.
type SagaConfig struct {
	StepTimeout      time.Duration
	PaymentThreshold int
	PaymentSeed      int64
	InventoryURL     string
}

// StorageConfig holds the optional persistence settings.
type StorageConfig struct {
	DatabaseURL string
	JournalPath string
}

// ObservabilityConfig holds the HTTP address for the metrics endpoint. An
// empty Addr disables the observability server.
type ObservabilityConfig struct {
	Addr string
}

// LoadHTTP reads the public API listener settings from env.
func LoadHTTP() (HTTPConfig, error) {
	cfg := HTTPConfig{Addr: strings.TrimSpace(os.Getenv("HTTP_ADDR"))}
	if cfg.Addr == "" {
		cfg.Addr = DefaultHTTPAddr
	}

	interval, err := optionalDuration("HTTP_RATE_LIMIT_INTERVAL")
	if err != nil {
		return cfg, err
	}
	if interval != nil {
		cfg.RateLimitInterval = *interval
	}

	burst, err := optionalInt("HTTP_RATE_LIMIT_BURST")
	if err != nil {
		return cfg, err
	}
	if burst != nil {
		cfg.RateLimitBurst = *burst
	}

	if (cfg.RateLimitInterval > 0) != (cfg.RateLimitBurst > 0) {
		return cfg, errors.New("HTTP_RATE_LIMIT_INTERVAL and HTTP_RATE_LIMIT_BURST must be set together")
	}
	return cfg, nil
}

// LoadRedis reads Redis config from env. The second return value is false when
// REDIS_URL is unset, meaning Redis is disabled.
func LoadRedis() (RedisConfig, bool, error) {
	cfg := RedisConfig{
		URL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		Stream: strings.TrimSpace(os.Getenv("REDIS_STREAM")),
	}
	if cfg.URL == "" {
		return cfg, false, nil
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultRedisStream
	}

	var err error
	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, false, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, false, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, false, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, false, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, false, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, false, err
	}

	if cfg.HealthcheckTimeout, err = durationOrDefault("REDIS_HEALTHCHECK_TIMEOUT", 2*time.Second); err != nil {
		return cfg, false, err
	}
	if cfg.OutcomeTTL, err = durationOrDefault("REDIS_OUTCOME_TTL", 0); err != nil {
		return cfg, false, err
	}

	maxLen, err := optionalInt64("REDIS_STREAM_MAXLEN")
	if err != nil {
		return cfg, false, err
	}
	if maxLen != nil {
		cfg.StreamMaxLen = *maxLen
	}

	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, false, err
	}

	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, false, err
	}

	return cfg, true, nil
}

// LoadSaga reads transaction coordinator settings from env.
func LoadSaga() (SagaConfig, error) {
	cfg := SagaConfig{
		PaymentThreshold: -1,
		InventoryURL:     strings.TrimSpace(os.Getenv("INVENTORY_URL")),
	}

	var err error
	if cfg.StepTimeout, err = durationOrDefault("SAGA_STEP_TIMEOUT", DefaultStepTimeout); err != nil {
		return cfg, err
	}

	threshold, err := optionalInt("PAYMENT_DECLINE_THRESHOLD")
	if err != nil {
		return cfg, err
	}
	if threshold != nil {
		cfg.PaymentThreshold = *threshold
	}

	seed, err := optionalInt64("PAYMENT_SEED")
	if err != nil {
		return cfg, err
	}
	if seed != nil {
		cfg.PaymentSeed = *seed
	} else {
		cfg.PaymentSeed = time.Now().UnixNano()
	}
	return cfg, nil
}

// LoadStorage reads the optional persistence settings from env.
func LoadStorage() StorageConfig {
	return StorageConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JournalPath: strings.TrimSpace(os.Getenv("INVENTORY_JOURNAL")),
	}
}

// LoadObservability reads the metrics HTTP server address from env.
func LoadObservability() ObservabilityConfig {
	return ObservabilityConfig{Addr: strings.TrimSpace(os.Getenv("OBS_ADDR"))}
}

func loadRedisTLSFromEnv() (*tls.Config, error) {
	caFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CA_FILE"))
	certFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("REDIS_TLS_KEY_FILE"))
	serverName := strings.TrimSpace(os.Getenv("REDIS_TLS_SERVER_NAME"))
	insecureStr := strings.TrimSpace(os.Getenv("REDIS_TLS_INSECURE_SKIP_VERIFY"))

	if caFile == "" && certFile == "" && keyFile == "" && serverName == "" && insecureStr == "" {
		return nil, nil
	}
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("REDIS_TLS_CERT_FILE and REDIS_TLS_KEY_FILE must be set together")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_TLS_INSECURE_SKIP_VERIFY: %w", err)
		}
		tlsConfig.InsecureSkipVerify = insecure
	}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read REDIS_TLS_CA_FILE: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("REDIS_TLS_CA_FILE contains no valid certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load redis TLS keypair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func durationOrDefault(name string, def time.Duration) (time.Duration, error) {
	val, err := optionalDuration(name)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return def, nil
	}
	return *val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt64(name string) (*int64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}
