package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags mirror the root command's persistent flags. Layering order is
// defaults, then config file, then environment, then flags.
type GlobalFlags struct {
	ConfigPath   string
	JSON         bool
	Plain        bool
	Timeout      string
	Retries      int
	PollInterval string
	LogLevel     string
}

type Settings struct {
	OutputMode   string
	LogLevel     string
	Timeout      time.Duration
	Retries      int
	PollInterval time.Duration

	RelayBaseURL    string
	DebridgeBaseURL string
	UltraBaseURL    string
	PricesBaseURL   string

	SolanaRPCURL  string
	PrivateKeyEnv string

	HistoryPath        string
	HistoryLockPath    string
	AuditPath          string
	RouteCacheTTL      time.Duration
	RouteCachePath     string
	RouteCacheLockPath string
}

type fileConfig struct {
	Output       string `yaml:"output"`
	LogLevel     string `yaml:"log_level"`
	Timeout      string `yaml:"timeout"`
	Retries      *int   `yaml:"retries"`
	PollInterval string `yaml:"poll_interval"`
	Providers    struct {
		Relay struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"relay"`
		Debridge struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"debridge"`
		JupiterUltra struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"jupiter_ultra"`
	} `yaml:"providers"`
	Prices struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"prices"`
	Solana struct {
		RPCURL        string `yaml:"rpc_url"`
		PrivateKeyEnv string `yaml:"private_key_env"`
	} `yaml:"solana"`
	Routes struct {
		CacheTTL      string `yaml:"cache_ttl"`
		CachePath     string `yaml:"cache_path"`
		CacheLockPath string `yaml:"cache_lock_path"`
	} `yaml:"routes"`
	History struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"history"`
	Audit struct {
		Path string `yaml:"path"`
	} `yaml:"audit"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 20 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = 2 * time.Second
	}
	if settings.RouteCacheTTL <= 0 {
		settings.RouteCacheTTL = 5 * time.Minute
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:         "plain",
		LogLevel:           "warn",
		Timeout:            20 * time.Second,
		Retries:            2,
		PollInterval:       2 * time.Second,
		SolanaRPCURL:       "https://api.mainnet-beta.solana.com",
		PrivateKeyEnv:      "SWAPROUTER_PRIVATE_KEY",
		HistoryPath:        filepath.Join(dataDir, "history.db"),
		HistoryLockPath:    filepath.Join(dataDir, "history.lock"),
		AuditPath:          filepath.Join(dataDir, "audit.jsonl"),
		RouteCacheTTL:      5 * time.Minute,
		RouteCachePath:     filepath.Join(dataDir, "routes.db"),
		RouteCacheLockPath: filepath.Join(dataDir, "routes.lock"),
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "swaprouter", "config.yaml"), nil
}

func defaultDataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "swaprouter"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.PollInterval != "" {
		d, err := time.ParseDuration(cfg.PollInterval)
		if err != nil {
			return fmt.Errorf("config poll_interval: %w", err)
		}
		settings.PollInterval = d
	}
	if cfg.Providers.Relay.BaseURL != "" {
		settings.RelayBaseURL = cfg.Providers.Relay.BaseURL
	}
	if cfg.Providers.Debridge.BaseURL != "" {
		settings.DebridgeBaseURL = cfg.Providers.Debridge.BaseURL
	}
	if cfg.Providers.JupiterUltra.BaseURL != "" {
		settings.UltraBaseURL = cfg.Providers.JupiterUltra.BaseURL
	}
	if cfg.Prices.BaseURL != "" {
		settings.PricesBaseURL = cfg.Prices.BaseURL
	}
	if cfg.Solana.RPCURL != "" {
		settings.SolanaRPCURL = cfg.Solana.RPCURL
	}
	if cfg.Solana.PrivateKeyEnv != "" {
		settings.PrivateKeyEnv = cfg.Solana.PrivateKeyEnv
	}
	if cfg.Routes.CacheTTL != "" {
		d, err := time.ParseDuration(cfg.Routes.CacheTTL)
		if err != nil {
			return fmt.Errorf("config routes.cache_ttl: %w", err)
		}
		settings.RouteCacheTTL = d
	}
	if cfg.Routes.CachePath != "" {
		settings.RouteCachePath = cfg.Routes.CachePath
	}
	if cfg.Routes.CacheLockPath != "" {
		settings.RouteCacheLockPath = cfg.Routes.CacheLockPath
	}
	if cfg.History.Path != "" {
		settings.HistoryPath = cfg.History.Path
	}
	if cfg.History.LockPath != "" {
		settings.HistoryLockPath = cfg.History.LockPath
	}
	if cfg.Audit.Path != "" {
		settings.AuditPath = cfg.Audit.Path
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("SWAPROUTER_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("SWAPROUTER_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("SWAPROUTER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("SWAPROUTER_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("SWAPROUTER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.PollInterval = d
		}
	}
	if v := os.Getenv("SWAPROUTER_RELAY_URL"); v != "" {
		settings.RelayBaseURL = v
	}
	if v := os.Getenv("SWAPROUTER_DEBRIDGE_URL"); v != "" {
		settings.DebridgeBaseURL = v
	}
	if v := os.Getenv("SWAPROUTER_ULTRA_URL"); v != "" {
		settings.UltraBaseURL = v
	}
	if v := os.Getenv("SWAPROUTER_PRICES_URL"); v != "" {
		settings.PricesBaseURL = v
	}
	if v := os.Getenv("SWAPROUTER_SOLANA_RPC_URL"); v != "" {
		settings.SolanaRPCURL = v
	}
	if v := os.Getenv("SWAPROUTER_HISTORY_PATH"); v != "" {
		settings.HistoryPath = v
	}
	if v := os.Getenv("SWAPROUTER_HISTORY_LOCK_PATH"); v != "" {
		settings.HistoryLockPath = v
	}
	if v := os.Getenv("SWAPROUTER_AUDIT_PATH"); v != "" {
		settings.AuditPath = v
	}
	if v := os.Getenv("SWAPROUTER_ROUTE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.RouteCacheTTL = d
		}
	}
	if v := os.Getenv("SWAPROUTER_ROUTE_CACHE_PATH"); v != "" {
		settings.RouteCachePath = v
	}
	if v := os.Getenv("SWAPROUTER_ROUTE_CACHE_LOCK_PATH"); v != "" {
		settings.RouteCacheLockPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.PollInterval != "" {
		d, err := time.ParseDuration(flags.PollInterval)
		if err != nil {
			return fmt.Errorf("parse --poll-interval: %w", err)
		}
		settings.PollInterval = d
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	return nil
}

// PrivateKey reads the signing key from the configured environment variable.
// Empty is not an error here; commands that need signing enforce presence.
func (s Settings) PrivateKey() string {
	return strings.TrimSpace(os.Getenv(s.PrivateKeyEnv))
}
