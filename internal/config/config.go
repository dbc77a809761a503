package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AutomationConfig holds logging settings.
type AutomationConfig struct {
	LogLevel  string
	LogFormat string
}

// SchedulerConfig holds scheduler settings.
type SchedulerConfig struct {
	CheckInterval time.Duration
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Addr          string
	AuthToken     string
	Mode          string
	ShutdownGrace time.Duration
}

// HistoryConfig holds run-history journal settings.
type HistoryConfig struct {
	Retention int
}

// NotifyConfig holds failure notification settings.
type NotifyConfig struct {
	BarkURL string
	Enabled bool
}

// Config holds all runtime configuration for the daemon.
type Config struct {
	Automation AutomationConfig
	Scheduler  SchedulerConfig
	Server     ServerConfig
	History    HistoryConfig
	Notify     NotifyConfig

	StateDir string
}

const (
	defaultAddr          = "0.0.0.0:8686"
	defaultMode          = "http"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultCheckInterval = 60 // seconds
	defaultRetention     = 20
	defaultShutdownGrace = 5 * time.Second
)

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse builds the daemon configuration.
// Priority: CLI flags > environment variables > .env file > YAML config
// file > defaults.
func Parse() (*Config, error) {
	// Optional .env overlays, checked in the working directory and the
	// user config directory.
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "autotask", ".env"))
	}
	_ = godotenv.Load(envFiles...)

	var configPath, addr, mode, logLevel, stateDir string
	var checkIntervalSecs, retention int
	var shutdownGrace time.Duration

	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	flag.StringVar(&mode, "mode", "", "Run mode: http, mcp, or both")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&stateDir, "state-dir", "", "Directory to store the run-history database")
	flag.IntVar(&checkIntervalSecs, "check-interval", 0, "Scheduler poll interval in seconds")
	flag.IntVar(&retention, "history-retention", 0, "Number of recent runs to retain per task")
	flag.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")
	flag.Parse()

	if configPath == "" {
		configPath = getEnvString("AUTOTASK_CONFIG", "")
	}
	if configPath == "" {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath = filepath.Join(configDir, "autotask", "config.yaml")
		}
	}
	file, err := LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Automation: AutomationConfig{
			LogLevel:  getEnvString("AUTOTASK_LOG_LEVEL", file.GetString("automation.log_level", defaultLogLevel)),
			LogFormat: getEnvString("AUTOTASK_LOG_FORMAT", file.GetString("automation.log_format", defaultLogFormat)),
		},
		Scheduler: SchedulerConfig{
			CheckInterval: time.Duration(getEnvInt("AUTOTASK_CHECK_INTERVAL",
				file.GetInt("scheduler.check_interval", defaultCheckInterval))) * time.Second,
		},
		Server: ServerConfig{
			Addr:          getEnvString("AUTOTASK_ADDR", file.GetString("server.addr", defaultAddr)),
			AuthToken:     getEnvString("AUTOTASK_AUTH_TOKEN", file.GetString("server.auth_token", "")),
			Mode:          getEnvString("AUTOTASK_MODE", file.GetString("server.mode", defaultMode)),
			ShutdownGrace: getEnvDuration("AUTOTASK_SHUTDOWN_GRACE", file.GetDuration("server.shutdown_grace", defaultShutdownGrace)),
		},
		History: HistoryConfig{
			Retention: getEnvInt("AUTOTASK_HISTORY_RETENTION", file.GetInt("history.retention", defaultRetention)),
		},
		Notify: NotifyConfig{
			BarkURL: getEnvString("AUTOTASK_BARK_URL", file.GetString("notify.bark_url", "")),
			Enabled: getEnvBool("AUTOTASK_NOTIFY_ENABLED", file.GetBool("notify.enabled", false)),
		},
		StateDir: getEnvString("AUTOTASK_STATE_DIR", file.GetString("state_dir", "")),
	}

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if mode != "" {
		cfg.Server.Mode = mode
	}
	if logLevel != "" {
		cfg.Automation.LogLevel = logLevel
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if checkIntervalSecs > 0 {
		cfg.Scheduler.CheckInterval = time.Duration(checkIntervalSecs) * time.Second
	}
	if retention > 0 {
		cfg.History.Retention = retention
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "shutdown-grace" {
			cfg.Server.ShutdownGrace = shutdownGrace
		}
	})

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}
	if cfg.Scheduler.CheckInterval <= 0 {
		cfg.Scheduler.CheckInterval = defaultCheckInterval * time.Second
	}
	if cfg.History.Retention < 1 {
		cfg.History.Retention = defaultRetention
	}

	return cfg, nil
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "autotask")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
