package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	ScanQueue ScanQueueConfig `mapstructure:"scan_queue"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	UploadDir     string `mapstructure:"upload_dir"`
	QuarantineDir string `mapstructure:"quarantine_dir"`
}

type ScannerConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
	Clamd   ClamdConfig   `mapstructure:"clamd"`
	CLI     CLIConfig     `mapstructure:"cli"`
	API     APIConfig     `mapstructure:"api"`
}

type ClamdConfig struct {
	Network string `mapstructure:"network"`
	Address string `mapstructure:"address"`
}

type CLIConfig struct {
	Program string   `mapstructure:"program"`
	Args    []string `mapstructure:"args"`
}

type APIConfig struct {
	BaseURL            string  `mapstructure:"base_url"`
	APIKey             string  `mapstructure:"api_key"`
	RequestsPerSecond  float64 `mapstructure:"requests_per_second"`
	MaliciousThreshold int     `mapstructure:"malicious_threshold"`
}

type ScanQueueConfig struct {
	Workers        int           `mapstructure:"workers"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	FallbackPolicy string        `mapstructure:"fallback_policy"`
}

type WorkflowConfig struct {
	Profile string `mapstructure:"profile"`
}

type NotifyConfig struct {
	Log         LogNotifyConfig         `mapstructure:"log"`
	Mail        MailNotifyConfig        `mapstructure:"mail"`
	CloudEvents CloudEventsNotifyConfig `mapstructure:"cloudevents"`
	BatchSize   int                     `mapstructure:"batch_size"`
}

type LogNotifyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MailNotifyConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Host          string   `mapstructure:"host"`
	Port          int      `mapstructure:"port"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	From          string   `mapstructure:"from"`
	To            []string `mapstructure:"to"`
	SkipTLSVerify bool     `mapstructure:"skip_tls_verify"`
}

type CloudEventsNotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Target  string `mapstructure:"target"`
	Source  string `mapstructure:"source"`
}

// IsNonProduction reports whether the disabled scanner backend may be used.
func (c Config) IsNonProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.App.Env)) {
	case "local", "test":
		return true
	default:
		return false
	}
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err == nil {
		logging.Info(logCtx, "loaded .env file")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if strings.EqualFold(cfg.ScanQueue.FallbackPolicy, "allow") {
		logging.Warn(logCtx, "scan fallback policy is fail-open: unscanned files are treated as clean during scanner outages")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("scanner_backend", cfg.Scanner.Backend),
		slog.String("fallback_policy", cfg.ScanQueue.FallbackPolicy),
	)

	return cfg, nil
}

// Validate checks cross-field constraints viper cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if strings.TrimSpace(c.Storage.UploadDir) == "" || strings.TrimSpace(c.Storage.QuarantineDir) == "" {
		return errors.New("storage.upload_dir and storage.quarantine_dir are required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Scanner.Backend)) {
	case "clamd", "cli", "api":
	case "disabled":
		if !c.IsNonProduction() {
			return fmt.Errorf("scanner.backend=disabled is not allowed in env %q", c.App.Env)
		}
	default:
		return fmt.Errorf("unsupported scanner.backend %q", c.Scanner.Backend)
	}

	switch strings.ToLower(strings.TrimSpace(c.ScanQueue.FallbackPolicy)) {
	case "reject", "allow":
	default:
		return fmt.Errorf("scan_queue.fallback_policy must be reject or allow, got %q", c.ScanQueue.FallbackPolicy)
	}

	if c.ScanQueue.MaxAttempts <= 0 {
		return errors.New("scan_queue.max_attempts must be positive")
	}
	if c.ScanQueue.AttemptTimeout <= 0 {
		return errors.New("scan_queue.attempt_timeout must be positive")
	}
	if c.ScanQueue.Workers <= 0 {
		return errors.New("scan_queue.workers must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "scholarflow")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "var/state/scholarflow.sqlite")
	v.SetDefault("storage.upload_dir", "var/uploads")
	v.SetDefault("storage.quarantine_dir", "var/quarantine")

	v.SetDefault("scanner.backend", "clamd")
	v.SetDefault("scanner.timeout", "2m")
	v.SetDefault("scanner.clamd.network", "tcp")
	v.SetDefault("scanner.clamd.address", "127.0.0.1:3310")
	v.SetDefault("scanner.cli.program", "clamscan")
	v.SetDefault("scanner.cli.args", []string{"--no-summary", "--stdout"})
	v.SetDefault("scanner.api.requests_per_second", 4.0)
	v.SetDefault("scanner.api.malicious_threshold", 1)

	v.SetDefault("scan_queue.workers", 4)
	v.SetDefault("scan_queue.max_attempts", 3)
	v.SetDefault("scan_queue.attempt_timeout", "5m")
	v.SetDefault("scan_queue.backoff_initial", "10s")
	v.SetDefault("scan_queue.backoff_max", "5m")
	v.SetDefault("scan_queue.poll_interval", "2s")
	v.SetDefault("scan_queue.batch_size", 16)
	v.SetDefault("scan_queue.fallback_policy", "reject")

	v.SetDefault("notify.log.enabled", true)
	v.SetDefault("notify.mail.port", 587)
	v.SetDefault("notify.cloudevents.source", "scholarflow")
	v.SetDefault("notify.batch_size", 200)
}
