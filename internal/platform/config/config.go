package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TransportMode selects the Transport Client implementation at construction
// time. Both implementations satisfy the same contract.
type TransportMode string

const (
	TransportMock TransportMode = "mock"
	TransportLive TransportMode = "live"
)

// Environment selects which regulator endpoint a live transport targets.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Config is the full configuration surface of the filing service. Built once
// in main via FromEnv so the rest of the code never reads the environment.
type Config struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string

	TransportMode TransportMode
	Environment   Environment

	// SFTP connection settings for the live transport.
	SFTPHost     string
	SFTPPort     int
	SFTPUser     string
	SFTPPassword string
	DialTimeout  time.Duration

	// Directories on the regulator's drop box. Uploads go to InboundDir;
	// both response artifact kinds appear in OutboundDir.
	InboundDir  string
	OutboundDir string

	// Filer identification required on every reporting-entity party. These
	// come from configuration, never from transaction data.
	FilerTaxID      string
	TransmitterCode string
	OrgName         string
	ContactName     string
	ContactPhone    string

	RetryCeiling int

	PostgresURL string
	Redis       RedisConfig
}

// RedisConfig carries connection tuning for the optional Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
// Defaults are development-safe: mock transport, sandbox environment.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:            envOr("REFILING_ADDR", ":8080"),
		AdminToken:      os.Getenv("REFILING_ADMIN_TOKEN"),
		JWTSigningKey:   envOr("REFILING_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TransportMode:   TransportMode(envOr("REFILING_TRANSPORT", string(TransportMock))),
		Environment:     Environment(envOr("REFILING_ENV", string(EnvSandbox))),
		SFTPHost:        os.Getenv("REFILING_SFTP_HOST"),
		SFTPPort:        envInt("REFILING_SFTP_PORT", 22),
		SFTPUser:        os.Getenv("REFILING_SFTP_USER"),
		SFTPPassword:    os.Getenv("REFILING_SFTP_PASSWORD"),
		DialTimeout:     envDuration("REFILING_SFTP_DIAL_TIMEOUT", 15*time.Second),
		InboundDir:      envOr("REFILING_INBOUND_DIR", "/inbound"),
		OutboundDir:     envOr("REFILING_OUTBOUND_DIR", "/outbound"),
		FilerTaxID:      os.Getenv("REFILING_FILER_TAX_ID"),
		TransmitterCode: os.Getenv("REFILING_TRANSMITTER_CODE"),
		OrgName:         envOr("REFILING_ORG_NAME", "REFILING"),
		ContactName:     os.Getenv("REFILING_CONTACT_NAME"),
		ContactPhone:    os.Getenv("REFILING_CONTACT_PHONE"),
		RetryCeiling:    envInt("REFILING_RETRY_CEILING", 5),
		PostgresURL:     os.Getenv("REFILING_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REFILING_REDIS_URL"),
			PoolSize:     envInt("REFILING_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REFILING_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("REFILING_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REFILING_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REFILING_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	switch cfg.TransportMode {
	case TransportMock, TransportLive:
	default:
		return Config{}, fmt.Errorf("invalid REFILING_TRANSPORT: %q", cfg.TransportMode)
	}
	switch cfg.Environment {
	case EnvSandbox, EnvProduction:
	default:
		return Config{}, fmt.Errorf("invalid REFILING_ENV: %q", cfg.Environment)
	}
	// The host has per-environment defaults; credentials never do.
	if cfg.TransportMode == TransportLive && (cfg.SFTPUser == "" || cfg.SFTPPassword == "") {
		return Config{}, fmt.Errorf("live transport requires REFILING_SFTP_USER and REFILING_SFTP_PASSWORD")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
