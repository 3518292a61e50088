package config

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/catalog.yaml"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`
	Hostname                  string        `koanf:"hostname"`
	JWTSecret                 string        `koanf:"jwt_secret"`
	ServerHost                string        `koanf:"server_host" default:"0.0.0.0"`
	ServerPort                int           `koanf:"server_port" default:"1337"`
	WorkerProcesses           int           `koanf:"worker_processes" default:"2"`
	WorkerPollInterval        time.Duration `koanf:"worker_poll_interval" default:"5s"`
	WorkerStaleJobTimeout     time.Duration `koanf:"worker_stale_job_timeout" default:"6h"`

	// Write pipeline.
	DesktopUserAgentPrefix string `koanf:"desktop_user_agent_prefix" default:"RestSharp"`
	DashboardRefererMarker string `koanf:"dashboard_referer_marker" default:"/dashboard/apps/"`
	BookBaseURL            string `koanf:"book_base_url" default:"https://library.example.org/book/"`

	// Maintenance jobs.
	LanguageDeletionGrace time.Duration `koanf:"language_deletion_grace" default:"2h"`
	AnalyticsURL          string        `koanf:"analytics_url"`
	AnalyticsAPIKey       string        `koanf:"analytics_api_key"`
	AnalyticsQueryURL     string        `koanf:"analytics_query_url"`
	AnalyticsQueryAuth    string        `koanf:"analytics_query_auth"`
	AnalyticsPageSize     int           `koanf:"analytics_page_size" default:"1000000"`
	AnalyticsTimeout      time.Duration `koanf:"analytics_timeout" default:"2m"`
	AnalyticsAttempts     uint          `koanf:"analytics_attempts" default:"3"`

	// Notification collaborator. When empty, newly visible books are only logged.
	NotifyWebhookURL string `koanf:"notify_webhook_url"`
}

// New loads the config from the optional YAML file pointed at by CONFIG_FILE
// and then from the environment. Environment variables win over the file.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = defaultConfigFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(err, "failed to load config file %s", path)
	}

	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := checkRequired(k); err != nil {
		return nil, err
	}

	if cfg.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		cfg.Hostname = hostname
	}

	return cfg, nil
}

// NewForTest returns a config pointed at an in-memory database.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.JWTSecret = "test-secret"
	cfg.ServerHost = "127.0.0.1"
	cfg.WorkerProcesses = 1
	return cfg
}

func checkRequired(k *koanf.Koanf) error {
	missing := []string{}
	for _, field := range requiredFields {
		key := toSnakeCase(field)
		if strings.TrimSpace(k.String(key)) == "" {
			missing = append(missing, fmt.Sprintf("%s (env) / %s (file)", strings.ToUpper(key), key))
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

var requiredFields = []string{"DatabaseFilePath", "JWTSecret"}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
