package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the invoicegate configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Identity    IdentityConfig    `yaml:"identity"`
	Listing     ListingConfig     `yaml:"listing"`
	Performance PerformanceConfig `yaml:"performance"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the invoice database connection settings.
type DatabaseConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Name               string `yaml:"name"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	SSLMode            string `yaml:"sslmode"`
	View               string `yaml:"view"`
	AgentTable         string `yaml:"agent_table"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
	ConnectTimeoutSec  int    `yaml:"connect_timeout_sec"`
	QueryTimeoutSec    int    `yaml:"query_timeout_sec"`
	ReadinessTimeout   int    `yaml:"readiness_timeout_sec"`
}

// IdentityConfig selects how the calling agent is resolved.
type IdentityConfig struct {
	Mode         string `yaml:"mode"` // env, header, email, jwt (default: header)
	DefaultAgent string `yaml:"default_agent"`
	JWTSecret    string `yaml:"jwt_secret"`
	JWTIssuer    string `yaml:"jwt_issuer"`
}

// PerformanceConfig locates the agent performance and zone data. An empty
// Database reads them over the invoice database connection; otherwise a
// second pool opens against that database with the same host and credentials.
type PerformanceConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Database    string `yaml:"database"`
	View        string `yaml:"view"`         // default: view_agente_performance_anual
	AgentsTable string `yaml:"agents_table"` // default: agentes
	ZonesTable  string `yaml:"zones_table"`  // default: zonas
}

// ListingConfig holds listing settings.
type ListingConfig struct {
	DefaultLimit int `yaml:"default_limit"` // 0 = system maximum
}

// RateLimitConfig holds per-agent throttling settings.
type RateLimitConfig struct {
	Enabled           bool        `yaml:"enabled"`
	Backend           string      `yaml:"backend"` // memory, redis (default: memory)
	RequestsPerMinute int         `yaml:"requests_per_minute"`
	Burst             int         `yaml:"burst"`
	Redis             RedisConfig `yaml:"redis"`
}

// RedisConfig holds the shared counter store settings.
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML with ${VAR} expansion, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Port <= 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.View == "" {
		c.Database.View = "view_ai_facturas"
	}
	if c.Database.AgentTable == "" {
		c.Database.AgentTable = "contacto_agentes"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = c.Database.MaxOpenConns
	}
	if c.Database.ConnMaxLifetimeSec <= 0 {
		c.Database.ConnMaxLifetimeSec = 300
	}
	if c.Database.ConnectTimeoutSec <= 0 {
		c.Database.ConnectTimeoutSec = 5
	}
	if c.Database.QueryTimeoutSec <= 0 {
		c.Database.QueryTimeoutSec = 5
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Identity.Mode == "" {
		c.Identity.Mode = "header"
	}
	if c.Performance.View == "" {
		c.Performance.View = "view_agente_performance_anual"
	}
	if c.Performance.AgentsTable == "" {
		c.Performance.AgentsTable = "agentes"
	}
	if c.Performance.ZonesTable == "" {
		c.Performance.ZonesTable = "zonas"
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = 120
	}
	if c.RateLimit.Redis.KeyPrefix == "" {
		c.RateLimit.Redis.KeyPrefix = "invoicegate:ratelimit:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Listing.DefaultLimit < 0 || c.Listing.DefaultLimit > 500 {
		return fmt.Errorf("listing.default_limit must be between 0 and 500, got %d", c.Listing.DefaultLimit)
	}

	switch c.Identity.Mode {
	case "env":
		if strings.TrimSpace(c.Identity.DefaultAgent) == "" {
			return fmt.Errorf("identity.default_agent is required in env mode")
		}
	case "header", "email":
	case "jwt":
		if len(c.Identity.JWTSecret) < 32 {
			return fmt.Errorf("identity.jwt_secret must be at least 32 bytes in jwt mode")
		}
	default:
		return fmt.Errorf("identity.mode must be one of env, header, email, jwt, got %q", c.Identity.Mode)
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if len(c.RateLimit.Redis.Addrs) == 0 {
				return fmt.Errorf("rate_limit.redis.addrs is required for the redis backend")
			}
		default:
			return fmt.Errorf("rate_limit.backend must be \"memory\" or \"redis\", got %q", c.RateLimit.Backend)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
