package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAPIHost is the QWeather free-tier host; paid accounts point
// QWEATHER_API_HOST at their dedicated gateway.
const DefaultAPIHost = "https://devapi.qweather.com"

// Config holds service configuration loaded from env, with an optional YAML
// overlay for the non-secret knobs. Credentials come from env only.
type Config struct {
	// SigningMode is true when JWT credentials are configured; otherwise
	// the static API key is used.
	SigningMode bool

	APIKey        string
	ProjectID     string
	KeyID         string
	PrivateKeyPEM string

	APIHost    string
	APITimeout time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	// MetricsPort enables the metrics/health HTTP listener when non-empty.
	MetricsPort string
}

type fileConfig struct {
	APIHost    string `yaml:"api_host"`
	APITimeout string `yaml:"api_timeout"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Metrics struct {
		Port string `yaml:"port"`
	} `yaml:"metrics"`
}

// Load reads configuration. A YAML file named by QWEATHER_CONFIG_FILE is the
// base; env vars override it. Returns an error enumerating every missing
// required variable so startup diagnostics are complete in one pass.
func Load() (*Config, error) {
	var fc fileConfig
	if path := os.Getenv("QWEATHER_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{}

	cfg.ProjectID = os.Getenv("QWEATHER_PROJECT_ID")
	cfg.KeyID = os.Getenv("QWEATHER_KEY_ID")
	cfg.APIKey = os.Getenv("QWEATHER_API_KEY")
	cfg.SigningMode = cfg.ProjectID != "" || cfg.KeyID != ""

	if cfg.SigningMode {
		pem, missingKeyVar, err := loadPrivateKey()
		if err != nil {
			return nil, err
		}
		var missing []string
		if cfg.ProjectID == "" {
			missing = append(missing, "QWEATHER_PROJECT_ID")
		}
		if cfg.KeyID == "" {
			missing = append(missing, "QWEATHER_KEY_ID")
		}
		if missingKeyVar != "" {
			missing = append(missing, missingKeyVar)
		}
		if len(missing) > 0 {
			return nil, missingVarsError("JWT", missing)
		}
		cfg.PrivateKeyPEM = pem
	} else if cfg.APIKey == "" {
		return nil, missingVarsError("API key", []string{
			"QWEATHER_API_KEY (或配置 QWEATHER_PROJECT_ID/QWEATHER_KEY_ID/QWEATHER_PRIVATE_KEY 使用 JWT 鉴权)",
		})
	}

	cfg.APIHost = firstNonEmpty(os.Getenv("QWEATHER_API_HOST"), fc.APIHost, DefaultAPIHost)
	cfg.APITimeout = parseDuration(fc.APITimeout, 30*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "in_memory")))
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 12*time.Hour)
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.MetricsPort = firstNonEmpty(os.Getenv("METRICS_PORT"), fc.Metrics.Port, "")

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadPrivateKey resolves the signing key from QWEATHER_PRIVATE_KEY (inline
// PEM, literal "\n" sequences accepted) or QWEATHER_PRIVATE_KEY_PATH.
// Returns the name of the missing variable group when neither is set.
func loadPrivateKey() (pem string, missingVar string, err error) {
	if inline := os.Getenv("QWEATHER_PRIVATE_KEY"); inline != "" {
		return strings.ReplaceAll(inline, `\n`, "\n"), "", nil
	}
	if path := os.Getenv("QWEATHER_PRIVATE_KEY_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", fmt.Errorf("read private key file %s: %w", path, err)
		}
		return string(data), "", nil
	}
	return "", "QWEATHER_PRIVATE_KEY 或 QWEATHER_PRIVATE_KEY_PATH", nil
}

func missingVarsError(mode string, missing []string) error {
	return fmt.Errorf("%s 鉴权配置不完整，缺少环境变量:\n  - %s", mode, strings.Join(missing, "\n  - "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string, returning defaultVal on empty
// string, parse error, or non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.APIHost, "http://") && !strings.HasPrefix(cfg.APIHost, "https://") {
		return fmt.Errorf("QWEATHER_API_HOST must include a scheme, got %q", cfg.APIHost)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
