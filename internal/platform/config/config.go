package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"citadel/internal/asset/models"
	id "citadel/pkg/domain"
)

// EnvPrefix prefixes every environment override, e.g. CITADEL_SERVER_ADDR.
const EnvPrefix = "CITADEL"

// Config is the full process configuration. Values come from Default, then an
// optional TOML file, then environment variables.
type Config struct {
	Server   Server
	Asset    Asset
	Height   Height
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Rate     RateLimit
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `toml:"addr" envconfig:"ADDR"`
	JWTSigningKey   string        `toml:"jwt_signing_key" envconfig:"JWT_SIGNING_KEY"`
	JWTIssuer       string        `toml:"jwt_issuer" envconfig:"JWT_ISSUER"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// Asset holds the registry's fixed rules. Administrator is read once at startup.
type Asset struct {
	Administrator     string `toml:"administrator" envconfig:"ADMINISTRATOR"`
	MaxTitleLength    int    `toml:"max_title_length" envconfig:"MAX_TITLE_LENGTH"`
	MaxAbstractLength int    `toml:"max_abstract_length" envconfig:"MAX_ABSTRACT_LENGTH"`
	MaxTagLength      int    `toml:"max_tag_length" envconfig:"MAX_TAG_LENGTH"`
	MaxTags           int    `toml:"max_tags" envconfig:"MAX_TAGS"`
	MaxSizeBytes      uint64 `toml:"max_size_bytes" envconfig:"MAX_SIZE_BYTES"`
	AuditBuffer       int    `toml:"audit_buffer" envconfig:"AUDIT_BUFFER"`
}

// Height configures the logical clock used when no upstream height is supplied.
// Only Trusted principals (and the administrator) may supply a height, and at most
// MaxAhead past the local clock.
type Height struct {
	Genesis  time.Time     `toml:"genesis" envconfig:"GENESIS"`
	Interval time.Duration `toml:"interval" envconfig:"INTERVAL"`
	Trusted  []string      `toml:"trusted" envconfig:"TRUSTED"`
	MaxAhead uint64        `toml:"max_ahead" envconfig:"MAX_AHEAD"`
}

// PostgresConfig selects the durable ledger. An empty URL keeps the ledger in memory.
type PostgresConfig struct {
	URL          string        `toml:"url" envconfig:"URL"`
	MaxOpenConns int           `toml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns int           `toml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLife  time.Duration `toml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
}

// RedisConfig selects the Redis audit store. An empty URL keeps audit in memory.
type RedisConfig struct {
	URL          string        `toml:"url" envconfig:"URL"`
	PoolSize     int           `toml:"pool_size" envconfig:"POOL_SIZE"`
	MinIdleConns int           `toml:"min_idle_conns" envconfig:"MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `toml:"dial_timeout" envconfig:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `toml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `toml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	AuditCap     int64         `toml:"audit_cap" envconfig:"AUDIT_CAP"`
}

// KafkaConfig enables the audit sink. No brokers disables it.
type KafkaConfig struct {
	Brokers          []string      `toml:"brokers" envconfig:"BROKERS"`
	AuditTopic       string        `toml:"audit_topic" envconfig:"AUDIT_TOPIC"`
	Partitions       int32         `toml:"partitions" envconfig:"PARTITIONS"`
	Replication      int16         `toml:"replication" envconfig:"REPLICATION"`
	BreakerThreshold int           `toml:"breaker_threshold" envconfig:"BREAKER_THRESHOLD"`
	BreakerCooldown  time.Duration `toml:"breaker_cooldown" envconfig:"BREAKER_COOLDOWN"`
}

// RateLimit sets per-principal request budgets. A zero limit leaves a class unlimited.
// Buckets live in Redis when it is configured, otherwise in process memory.
type RateLimit struct {
	Disabled   bool          `toml:"disabled" envconfig:"DISABLED"`
	ReadLimit  int           `toml:"read_limit" envconfig:"READ_LIMIT"`
	WriteLimit int           `toml:"write_limit" envconfig:"WRITE_LIMIT"`
	Window     time.Duration `toml:"window" envconfig:"WINDOW"`
}

type Log struct {
	Level  string `toml:"level" envconfig:"LEVEL"`
	Format string `toml:"format" envconfig:"FORMAT"`
}

// Default returns development defaults.
func Default() Config {
	limits := models.DefaultLimits()
	return Config{
		Server: Server{
			Addr:            ":8080",
			JWTSigningKey:   "dev-secret-key-change-in-production",
			JWTIssuer:       "citadel",
			ShutdownTimeout: 15 * time.Second,
		},
		Asset: Asset{
			Administrator:     "admin",
			MaxTitleLength:    limits.MaxTitleLength,
			MaxAbstractLength: limits.MaxAbstractLength,
			MaxTagLength:      limits.MaxTagLength,
			MaxTags:           limits.MaxTags,
			MaxSizeBytes:      limits.MaxSizeBytes,
			AuditBuffer:       1024,
		},
		Height: Height{
			Genesis:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Interval: 10 * time.Second,
			MaxAhead: 8640,
		},
		Postgres: PostgresConfig{
			MaxOpenConns: 20,
			MaxIdleConns: 5,
			ConnMaxLife:  30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			AuditCap:     10000,
		},
		Kafka: KafkaConfig{
			AuditTopic:       "citadel.audit",
			Partitions:       3,
			Replication:      1,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Rate: RateLimit{
			ReadLimit:  600,
			WriteLimit: 120,
			Window:     time.Minute,
		},
		Log: Log{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. path may be empty; a named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()
		if err := decodeTOML(f, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("processing env vars overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeTOML(r io.Reader, cfg *Config) error {
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if _, err := id.ParsePrincipal(c.Asset.Administrator); err != nil {
		return fmt.Errorf("invalid administrator principal: %w", err)
	}
	if c.Height.Interval <= 0 {
		return fmt.Errorf("height interval must be positive")
	}
	for _, p := range c.Height.Trusted {
		if _, err := id.ParsePrincipal(p); err != nil {
			return fmt.Errorf("invalid trusted height principal %q: %w", p, err)
		}
	}
	if c.Server.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	if !c.Rate.Disabled && c.Rate.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		return fmt.Errorf("kafka audit topic is required when brokers are set")
	}
	return nil
}

// Administrator returns the parsed administrator principal. Call after Validate.
func (c Config) Administrator() id.Principal {
	return id.Principal(c.Asset.Administrator)
}

// TrustedHeightSources returns the principals allowed to supply a height. The
// administrator is always included. Call after Validate.
func (c Config) TrustedHeightSources() []id.Principal {
	out := []id.Principal{c.Administrator()}
	for _, p := range c.Height.Trusted {
		if principal := id.Principal(p); principal != out[0] {
			out = append(out, principal)
		}
	}
	return out
}

// Limits converts the asset section into validation limits.
func (c Config) Limits() models.Limits {
	l := models.DefaultLimits()
	l.MaxTitleLength = c.Asset.MaxTitleLength
	l.MaxAbstractLength = c.Asset.MaxAbstractLength
	l.MaxTagLength = c.Asset.MaxTagLength
	l.MaxTags = c.Asset.MaxTags
	l.MaxSizeBytes = c.Asset.MaxSizeBytes
	return l
}
