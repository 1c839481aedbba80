package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/filingintel/internal/cache"
	"github.com/hurttlocker/filingintel/internal/provider/edgar"
	"github.com/hurttlocker/filingintel/internal/provider/local"
	"github.com/hurttlocker/filingintel/internal/window"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Provider names accepted by the provider key.
const (
	ProviderLocal = "local"
	ProviderEdgar = "edgar"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath     string
	CLIProvider    string
	CLIDBPath      string
	CLIUserAgent   string
	CLICatalogPath string
	CLILogLevel    string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	Provider  ResolvedValue `json:"provider"`
	DBPath    ResolvedValue `json:"db_path"`
	UserAgent ResolvedValue `json:"user_agent"`
	RateLimit ResolvedValue `json:"rate_limit"`

	CacheTTL      ResolvedValue `json:"cache_ttl"`
	CacheCapacity ResolvedValue `json:"cache_capacity"`
	SweepInterval ResolvedValue `json:"sweep_interval"`

	Workers            ResolvedValue `json:"workers"`
	DocumentTimeout    ResolvedValue `json:"document_timeout"`
	MaxWindowDocuments ResolvedValue `json:"max_window_documents"`

	CatalogPath ResolvedValue `json:"catalog_path"`
	LogLevel    ResolvedValue `json:"log_level"`
}

type fileConfig struct {
	Provider    string `yaml:"provider"`
	DBPath      string `yaml:"db_path"`
	CatalogPath string `yaml:"catalog_path"`
	LogLevel    string `yaml:"log_level"`
	Edgar       struct {
		UserAgent string `yaml:"user_agent"`
		RateLimit string `yaml:"rate_limit"`
	} `yaml:"edgar"`
	Cache struct {
		TTL           string `yaml:"ttl"`
		Capacity      string `yaml:"capacity"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"cache"`
	Window struct {
		Workers         string `yaml:"workers"`
		DocumentTimeout string `yaml:"document_timeout"`
		MaxDocuments    string `yaml:"max_documents"`
	} `yaml:"window"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".filingintel", "config.yaml")
}

// ResolveConfig layers built-in defaults, the YAML file, FILINGINTEL_*
// environment variables and CLI flags, later layers winning. Each value
// remembers where it came from.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}
	applyDefaults(&out)

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.Provider, cfg.Provider, SourceConfig, path)
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.UserAgent, cfg.Edgar.UserAgent, SourceConfig, path)
		apply(&out.RateLimit, cfg.Edgar.RateLimit, SourceConfig, path)
		apply(&out.CacheTTL, cfg.Cache.TTL, SourceConfig, path)
		apply(&out.CacheCapacity, cfg.Cache.Capacity, SourceConfig, path)
		apply(&out.SweepInterval, cfg.Cache.SweepInterval, SourceConfig, path)
		apply(&out.Workers, cfg.Window.Workers, SourceConfig, path)
		apply(&out.DocumentTimeout, cfg.Window.DocumentTimeout, SourceConfig, path)
		apply(&out.MaxWindowDocuments, cfg.Window.MaxDocuments, SourceConfig, path)
		apply(&out.CatalogPath, cfg.CatalogPath, SourceConfig, path)
		apply(&out.LogLevel, cfg.LogLevel, SourceConfig, path)
	}

	applyEnv(&out.Provider, "FILINGINTEL_PROVIDER")
	applyEnv(&out.DBPath, "FILINGINTEL_DB")
	applyEnv(&out.DBPath, "FILINGINTEL_DB_PATH")
	applyEnv(&out.UserAgent, "FILINGINTEL_USER_AGENT")
	applyEnv(&out.RateLimit, "FILINGINTEL_RATE_LIMIT")
	applyEnv(&out.CacheTTL, "FILINGINTEL_CACHE_TTL")
	applyEnv(&out.CacheCapacity, "FILINGINTEL_CACHE_CAPACITY")
	applyEnv(&out.SweepInterval, "FILINGINTEL_SWEEP_INTERVAL")
	applyEnv(&out.Workers, "FILINGINTEL_WORKERS")
	applyEnv(&out.DocumentTimeout, "FILINGINTEL_DOCUMENT_TIMEOUT")
	applyEnv(&out.MaxWindowDocuments, "FILINGINTEL_MAX_WINDOW_DOCUMENTS")
	applyEnv(&out.CatalogPath, "FILINGINTEL_CATALOG")
	applyEnv(&out.LogLevel, "FILINGINTEL_LOG_LEVEL")

	apply(&out.Provider, opts.CLIProvider, SourceCLI, "--provider")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.UserAgent, opts.CLIUserAgent, SourceCLI, "--user-agent")
	apply(&out.CatalogPath, opts.CLICatalogPath, SourceCLI, "--catalog")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.CatalogPath.Value != "" {
		out.CatalogPath.Value = expandUserPath(out.CatalogPath.Value)
	}

	return out, nil
}

func applyDefaults(out *ResolvedConfig) {
	def := func(dst *ResolvedValue, v string) {
		*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
	}
	def(&out.Provider, ProviderLocal)
	def(&out.DBPath, expandUserPath(local.DefaultDBPath))
	def(&out.RateLimit, strconv.FormatFloat(edgar.DefaultRateLimit, 'f', -1, 64))
	def(&out.CacheTTL, cache.DefaultTTL.String())
	def(&out.CacheCapacity, strconv.Itoa(cache.DefaultCapacity))
	def(&out.SweepInterval, cache.DefaultSweepInterval.String())
	def(&out.Workers, strconv.Itoa(window.DefaultWorkers))
	def(&out.DocumentTimeout, window.DefaultDocumentTimeout.String())
	def(&out.MaxWindowDocuments, strconv.Itoa(window.DefaultMaxDocuments))
	def(&out.LogLevel, "info")
}

// Settings are the typed values of a ResolvedConfig.
type Settings struct {
	Provider           string
	DBPath             string
	UserAgent          string
	RateLimit          float64
	CacheTTL           time.Duration
	CacheCapacity      int
	SweepInterval      time.Duration
	Workers            int
	DocumentTimeout    time.Duration
	MaxWindowDocuments int
	CatalogPath        string
	LogLevel           string
}

// Settings parses every value. Errors name the key and the layer the bad
// value came from.
func (r ResolvedConfig) Settings() (Settings, error) {
	s := Settings{
		Provider:    strings.ToLower(r.Provider.Value),
		DBPath:      r.DBPath.Value,
		UserAgent:   r.UserAgent.Value,
		CatalogPath: r.CatalogPath.Value,
		LogLevel:    strings.ToLower(r.LogLevel.Value),
	}
	var errs []string
	bad := func(key string, v ResolvedValue, err error) {
		errs = append(errs, fmt.Sprintf("%s=%q (%s %s): %v", key, v.Value, v.Source, v.From, err))
	}

	if f, err := strconv.ParseFloat(r.RateLimit.Value, 64); err != nil || f <= 0 {
		bad("rate_limit", r.RateLimit, positive(err))
	} else {
		s.RateLimit = f
	}
	durations := []struct {
		key string
		v   ResolvedValue
		dst *time.Duration
	}{
		{"cache_ttl", r.CacheTTL, &s.CacheTTL},
		{"sweep_interval", r.SweepInterval, &s.SweepInterval},
		{"document_timeout", r.DocumentTimeout, &s.DocumentTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.v.Value)
		if err != nil || v <= 0 {
			bad(d.key, d.v, positive(err))
			continue
		}
		*d.dst = v
	}
	ints := []struct {
		key string
		v   ResolvedValue
		dst *int
	}{
		{"cache_capacity", r.CacheCapacity, &s.CacheCapacity},
		{"workers", r.Workers, &s.Workers},
		{"max_window_documents", r.MaxWindowDocuments, &s.MaxWindowDocuments},
	}
	for _, n := range ints {
		v, err := strconv.Atoi(n.v.Value)
		if err != nil || v <= 0 {
			bad(n.key, n.v, positive(err))
			continue
		}
		*n.dst = v
	}

	switch s.Provider {
	case ProviderLocal:
	case ProviderEdgar:
		if strings.TrimSpace(s.UserAgent) == "" {
			errs = append(errs, "user_agent is required for the edgar provider (FILINGINTEL_USER_AGENT or edgar.user_agent)")
		}
	default:
		bad("provider", r.Provider, fmt.Errorf("want %s or %s", ProviderLocal, ProviderEdgar))
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		bad("log_level", r.LogLevel, fmt.Errorf("want debug, info, warn or error"))
	}

	if len(errs) > 0 {
		return s, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return s, nil
}

func positive(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("must be positive")
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
