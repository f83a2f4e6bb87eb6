package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an optional YAML file layered between defaults and env vars.
const ConfigPathEnvVar = "CONFIG_PATH"

// Session store kinds accepted by SESSION_STORE.
const (
	SessionStoreCookie   = "cookie"
	SessionStorePostgres = "postgres"
)

// Config captures all runtime configuration. Keys mirror the environment
// variable names in lower case, so a YAML file uses the same vocabulary.
type Config struct {
	Port                 string `koanf:"port"`
	BackendURL           string `koanf:"backend_url"`
	BackendTimeoutSecs   int    `koanf:"backend_timeout_secs"`
	BackendRateLimit     int    `koanf:"backend_rate_limit"`
	ReadTimeoutSecs      int    `koanf:"server_read_timeout"`
	WriteTimeoutSecs     int    `koanf:"server_write_timeout"`
	IdleTimeoutSecs      int    `koanf:"server_idle_timeout"`
	SessionSecret        string `koanf:"session_secret"`
	SessionStore         string `koanf:"session_store"`
	SessionMaxAgeSecs    int    `koanf:"session_max_age_secs"`
	SecureCookies        bool   `koanf:"secure_cookies"`
	DBURL                string `koanf:"db_url"`
	DBMaxConns           int    `koanf:"db_max_conns"`
	DBMinConns           int    `koanf:"db_min_conns"`
	DBMaxIdleSecs        int    `koanf:"db_max_conn_idle_secs"`
	DBMaxLifeSecs        int    `koanf:"db_max_conn_lifetime_secs"`
	DBConnTimeoutSecs    int    `koanf:"db_conn_timeout_secs"`
	DBStatementCache     int    `koanf:"db_statement_cache_capacity"`
	SearchPerPage        int    `koanf:"search_per_page"`
	HistoryPerPage       int    `koanf:"history_per_page"`
	SearchDebounceMillis int    `koanf:"search_debounce_ms"`
	SearchSessionTTLSecs int    `koanf:"search_session_ttl_secs"`
	SearchMaxSessions    int    `koanf:"search_max_sessions"`
	AuthRateLimit        int    `koanf:"auth_rate_limit"`
	CORSAllowedOrigins   string `koanf:"cors_allowed_origins"`
	LogLevel             string `koanf:"log_level"`
	LogFormat            string `koanf:"log_format"`
}

func defaultConfig() Config {
	return Config{
		Port:                 "8080",
		BackendURL:           "http://localhost:5001",
		BackendTimeoutSecs:   5,
		ReadTimeoutSecs:      15,
		WriteTimeoutSecs:     15,
		IdleTimeoutSecs:      60,
		SessionStore:         SessionStoreCookie,
		SessionMaxAgeSecs:    7 * 24 * 3600,
		DBMaxConns:           20,
		DBMinConns:           2,
		DBMaxIdleSecs:        300,
		DBMaxLifeSecs:        3600,
		DBConnTimeoutSecs:    10,
		DBStatementCache:     256,
		SearchPerPage:        21,
		HistoryPerPage:       21,
		SearchSessionTTLSecs: 1800,
		SearchMaxSessions:    1024,
		AuthRateLimit:        20,
		LogLevel:             "info",
		LogFormat:            "json",
	}
}

// Load layers defaults, an optional YAML file and environment variables, then validates.
func Load() (Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	known := make(map[string]struct{}, len(k.Keys()))
	for _, key := range k.Keys() {
		known[key] = struct{}{}
	}
	envProvider := env.Provider("", ".", func(key string) string {
		key = strings.ToLower(key)
		if _, ok := known[key]; ok {
			return key
		}
		return ""
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting, naming its environment variable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.BackendTimeoutSecs <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT_SECS must be positive")
	}
	if c.BackendRateLimit < 0 {
		return fmt.Errorf("BACKEND_RATE_LIMIT must be non-negative")
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}
	if c.SessionMaxAgeSecs <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE_SECS must be positive")
	}
	switch c.SessionStore {
	case SessionStoreCookie:
	case SessionStorePostgres:
		if c.DBURL == "" {
			return fmt.Errorf("DB_URL is required when SESSION_STORE=postgres")
		}
		if c.DBMaxConns <= 0 {
			return fmt.Errorf("DB_MAX_CONNS must be positive")
		}
		if c.DBMinConns < 0 {
			return fmt.Errorf("DB_MIN_CONNS must be non-negative")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
		}
		if c.DBStatementCache < 0 {
			return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q", SessionStoreCookie, SessionStorePostgres)
	}
	if c.SearchPerPage <= 0 {
		return fmt.Errorf("SEARCH_PER_PAGE must be positive")
	}
	if c.HistoryPerPage <= 0 {
		return fmt.Errorf("HISTORY_PER_PAGE must be positive")
	}
	if c.SearchDebounceMillis < 0 {
		return fmt.Errorf("SEARCH_DEBOUNCE_MS must be non-negative")
	}
	if c.SearchSessionTTLSecs <= 0 {
		return fmt.Errorf("SEARCH_SESSION_TTL_SECS must be positive")
	}
	if c.SearchMaxSessions <= 0 {
		return fmt.Errorf("SEARCH_MAX_SESSIONS must be positive")
	}
	if c.AuthRateLimit < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must be non-negative")
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
