// Package config layers defaults, an optional config file, a .env file and
// the environment into one Config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/far-prep/backend/internal/database"
	"github.com/far-prep/backend/internal/explain"
	"github.com/far-prep/backend/internal/progress"
	"github.com/far-prep/backend/internal/questions"
	"github.com/far-prep/backend/internal/scheduler"
)

const envPrefix = "FARPREP"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = database.DriverSQLite
	DriverPostgres = database.DriverPostgres
)

type StorageConfig struct {
	Driver     string
	Path       string
	AttemptCap int
	Postgres   database.PostgresConfig
}

type ReminderConfig struct {
	Enabled  bool
	Interval time.Duration
}

type Config struct {
	Port        string
	CorpusPath  string
	ShuffleSeed int64
	Storage     StorageConfig
	Explain     explain.Options
	Reminder    ReminderConfig
	WeakAreas   questions.WeakAreaPolicy
}

// New returns a viper instance with every default set and the environment
// bound. Callers may bind flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	weak := questions.DefaultWeakAreaPolicy()
	defaults := map[string]interface{}{
		"port":                    "8080",
		"corpus.path":             DefaultCorpusPath(),
		"shuffle.seed":            0,
		"storage.driver":          DriverSQLite,
		"storage.path":            "",
		"storage.attempt_cap":     progress.DefaultAttemptCap,
		"db.host":                 "localhost",
		"db.port":                 "5432",
		"db.user":                 "postgres",
		"db.password":             "postgres",
		"db.name":                 "far_prep",
		"db.sslmode":              "disable",
		"explain.backend":         explain.BackendTemplate,
		"explain.model":           "",
		"explain.api_key":         "",
		"explain.cli_path":        "claude",
		"explain.timeout":         30 * time.Second,
		"reminder.enabled":        true,
		"reminder.interval":       scheduler.DefaultInterval,
		"weak_areas.topics":       weak.TopicCount,
		"weak_areas.weak_share":   weak.WeakShare,
		"weak_areas.other_share":  weak.OtherShare,
		"weak_areas.fallback_cap": weak.FallbackLimit,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names shared with the rest of the deployment.
	v.BindEnv("port", envPrefix+"_PORT", "PORT")
	v.BindEnv("db.host", envPrefix+"_DB_HOST", "DB_HOST")
	v.BindEnv("db.port", envPrefix+"_DB_PORT", "DB_PORT")
	v.BindEnv("db.user", envPrefix+"_DB_USER", "DB_USER")
	v.BindEnv("db.password", envPrefix+"_DB_PASSWORD", "DB_PASSWORD")
	v.BindEnv("db.name", envPrefix+"_DB_NAME", "DB_NAME")
	v.BindEnv("db.sslmode", envPrefix+"_DB_SSLMODE", "DB_SSLMODE")
	v.BindEnv("explain.api_key", envPrefix+"_EXPLAIN_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("explain.model", envPrefix+"_EXPLAIN_MODEL", "ANTHROPIC_MODEL")
	v.BindEnv("explain.cli_path", envPrefix+"_EXPLAIN_CLI_PATH", "CLAUDE_CLI_PATH")

	return v
}

// LoadDotEnv reads .env from the working directory when present.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] .env not loaded: %v", err)
	}
}

// ReadFile merges a config file into v. An empty path falls back to the
// default location, which may be absent.
func ReadFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file: %w", err)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	log.Printf("[config] loaded %s", path)
	return nil
}

// Load resolves the final configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetString("port"),
		CorpusPath:  v.GetString("corpus.path"),
		ShuffleSeed: v.GetInt64("shuffle.seed"),
		Storage: StorageConfig{
			Driver:     strings.ToLower(v.GetString("storage.driver")),
			Path:       v.GetString("storage.path"),
			AttemptCap: v.GetInt("storage.attempt_cap"),
			Postgres: database.PostgresConfig{
				Host:     v.GetString("db.host"),
				Port:     v.GetString("db.port"),
				User:     v.GetString("db.user"),
				Password: v.GetString("db.password"),
				DBName:   v.GetString("db.name"),
				SSLMode:  v.GetString("db.sslmode"),
			},
		},
		Explain: explain.Options{
			Backend: strings.ToLower(v.GetString("explain.backend")),
			Model:   v.GetString("explain.model"),
			APIKey:  v.GetString("explain.api_key"),
			CLIPath: v.GetString("explain.cli_path"),
			Timeout: v.GetDuration("explain.timeout"),
		},
		Reminder: ReminderConfig{
			Enabled:  v.GetBool("reminder.enabled"),
			Interval: v.GetDuration("reminder.interval"),
		},
		WeakAreas: questions.WeakAreaPolicy{
			TopicCount:    v.GetInt("weak_areas.topics"),
			WeakShare:     v.GetFloat64("weak_areas.weak_share"),
			OtherShare:    v.GetFloat64("weak_areas.other_share"),
			FallbackLimit: v.GetInt("weak_areas.fallback_cap"),
		},
	}

	switch cfg.Storage.Driver {
	case DriverSQLite:
		if cfg.Storage.Path == "" {
			cfg.Storage.Path = DefaultDBPath()
		}
	case DriverFile:
		if cfg.Storage.Path == "" {
			cfg.Storage.Path = DefaultProgressFile()
		}
	case DriverMemory, DriverPostgres:
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.Explain.Backend {
	case explain.BackendTemplate, explain.BackendAnthropic, explain.BackendCLI, explain.BackendMock:
	default:
		return nil, fmt.Errorf("unknown explain backend %q", cfg.Explain.Backend)
	}
	if cfg.Explain.Backend == explain.BackendAnthropic && cfg.Explain.APIKey == "" {
		return nil, errors.New("explain backend anthropic requires ANTHROPIC_API_KEY")
	}

	if cfg.WeakAreas.TopicCount <= 0 || cfg.WeakAreas.WeakShare < 0 || cfg.WeakAreas.OtherShare < 0 {
		return nil, fmt.Errorf("invalid weak area policy %+v", cfg.WeakAreas)
	}

	return cfg, nil
}

// ProgressOptions converts the storage settings for the progress stores.
func (c *Config) ProgressOptions() progress.Options {
	return progress.Options{AttemptCap: c.Storage.AttemptCap}
}
