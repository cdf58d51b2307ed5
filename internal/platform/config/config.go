package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete gateway configuration. Every collaborator client
// receives its section explicitly at construction.
type Config struct {
	Server      Server      `yaml:"server"`
	DigiLocker  DigiLocker  `yaml:"digilocker"`
	Directory   Directory   `yaml:"directory"`
	Registry    Endpoint    `yaml:"registry"`
	DID         Endpoint    `yaml:"did"`
	Credentials Credentials `yaml:"credentials"`
	Redis       RedisConfig `yaml:"redis"`
	Audit       Audit       `yaml:"audit"`
	Identity    Identity    `yaml:"identity"`
	Outbound    Outbound    `yaml:"outbound"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	LogLevel        string        `yaml:"log_level"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	BulkConcurrency int           `yaml:"bulk_concurrency"`
}

// DigiLocker holds the identity provider endpoints and one application per role.
type DigiLocker struct {
	AuthURL  string      `yaml:"auth_url"`
	TokenURL string      `yaml:"token_url"`
	Issuer   string      `yaml:"issuer"`
	JWKSURL  string      `yaml:"jwks_url"`
	Student  Application `yaml:"student"`
	Staff    Application `yaml:"staff"`
}

// Application is one OAuth client registered with the identity provider.
type Application struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Directory configures the IAM realm that owns user accounts.
type Directory struct {
	BaseURL      string `yaml:"base_url"`
	Realm        string `yaml:"realm"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Endpoint is a collaborator reachable at a single base URL.
type Endpoint struct {
	BaseURL string `yaml:"base_url"`
}

// Credentials configures the credential and schema services.
type Credentials struct {
	BaseURL        string        `yaml:"base_url"`
	SchemaURL      string        `yaml:"schema_url"`
	SchemaCacheTTL time.Duration `yaml:"schema_cache_ttl"`
	SchemaCacheMax int           `yaml:"schema_cache_max"`
}

// RedisConfig configures the optional shared schema cache.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Audit configures the audit event stream. Empty brokers keep audit in the log only.
type Audit struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	Topic        string   `yaml:"topic"`
}

// Identity holds the inputs of the deterministic credential derivation.
type Identity struct {
	Salt string `yaml:"salt"`
}

// Outbound bounds every collaborator call.
type Outbound struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a configuration usable for local development.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			LogLevel:        "info",
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			BulkConcurrency: 4,
		},
		Credentials: Credentials{
			SchemaCacheTTL: 30 * time.Minute,
			SchemaCacheMax: 128,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Audit: Audit{
			Topic: "ulp.identity.audit",
		},
		Outbound: Outbound{
			Timeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// ULP_* environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var errs []error
	required := map[string]string{
		"digilocker.token_url":         c.DigiLocker.TokenURL,
		"digilocker.student.client_id": c.DigiLocker.Student.ClientID,
		"digilocker.staff.client_id":   c.DigiLocker.Staff.ClientID,
		"directory.base_url":           c.Directory.BaseURL,
		"directory.realm":              c.Directory.Realm,
		"directory.client_id":          c.Directory.ClientID,
		"registry.base_url":            c.Registry.BaseURL,
		"did.base_url":                 c.DID.BaseURL,
		"credentials.base_url":         c.Credentials.BaseURL,
		"identity.salt":                c.Identity.Salt,
	}
	for _, key := range slices.Sorted(maps.Keys(required)) {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if c.Outbound.Timeout <= 0 {
		errs = append(errs, errors.New("outbound.timeout must be positive"))
	}
	if c.Server.BulkConcurrency <= 0 {
		errs = append(errs, errors.New("server.bulk_concurrency must be positive"))
	}
	if len(c.Audit.KafkaBrokers) > 0 && c.Audit.Topic == "" {
		errs = append(errs, errors.New("audit.topic is required when kafka brokers are set"))
	}
	return errors.Join(errs...)
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("ULP_ADDR", &cfg.Server.Addr)
	str("ULP_LOG_LEVEL", &cfg.Server.LogLevel)
	dur("ULP_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	num("ULP_BULK_CONCURRENCY", &cfg.Server.BulkConcurrency)

	str("ULP_DIGILOCKER_AUTH_URL", &cfg.DigiLocker.AuthURL)
	str("ULP_DIGILOCKER_TOKEN_URL", &cfg.DigiLocker.TokenURL)
	str("ULP_DIGILOCKER_ISSUER", &cfg.DigiLocker.Issuer)
	str("ULP_DIGILOCKER_JWKS_URL", &cfg.DigiLocker.JWKSURL)
	str("ULP_DIGILOCKER_STUDENT_CLIENT_ID", &cfg.DigiLocker.Student.ClientID)
	str("ULP_DIGILOCKER_STUDENT_CLIENT_SECRET", &cfg.DigiLocker.Student.ClientSecret)
	str("ULP_DIGILOCKER_STUDENT_REDIRECT_URL", &cfg.DigiLocker.Student.RedirectURL)
	str("ULP_DIGILOCKER_STAFF_CLIENT_ID", &cfg.DigiLocker.Staff.ClientID)
	str("ULP_DIGILOCKER_STAFF_CLIENT_SECRET", &cfg.DigiLocker.Staff.ClientSecret)
	str("ULP_DIGILOCKER_STAFF_REDIRECT_URL", &cfg.DigiLocker.Staff.RedirectURL)

	str("ULP_DIRECTORY_URL", &cfg.Directory.BaseURL)
	str("ULP_DIRECTORY_REALM", &cfg.Directory.Realm)
	str("ULP_DIRECTORY_CLIENT_ID", &cfg.Directory.ClientID)
	str("ULP_DIRECTORY_CLIENT_SECRET", &cfg.Directory.ClientSecret)

	str("ULP_REGISTRY_URL", &cfg.Registry.BaseURL)
	str("ULP_DID_URL", &cfg.DID.BaseURL)
	str("ULP_CREDENTIALS_URL", &cfg.Credentials.BaseURL)
	str("ULP_SCHEMA_URL", &cfg.Credentials.SchemaURL)
	dur("ULP_SCHEMA_CACHE_TTL", &cfg.Credentials.SchemaCacheTTL)

	str("ULP_REDIS_URL", &cfg.Redis.URL)
	if v, ok := lookup("ULP_AUDIT_KAFKA_BROKERS"); ok && v != "" {
		cfg.Audit.KafkaBrokers = strings.Split(v, ",")
	}
	str("ULP_AUDIT_TOPIC", &cfg.Audit.Topic)

	str("ULP_IDENTITY_SALT", &cfg.Identity.Salt)
	dur("ULP_OUTBOUND_TIMEOUT", &cfg.Outbound.Timeout)

	return errors.Join(errs...)
}
