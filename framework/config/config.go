package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/km-arc/go-ioc/framework/validation"
)

// EnvPrefix prefixes every environment override, e.g. IOC_LOG_LEVEL.
const EnvPrefix = "IOC"

// Config is the typed configuration of an application built on the container.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Container ContainerConfig `mapstructure:"container"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // local | production | testing
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // console | json
}

type ContainerConfig struct {
	// Name of the root container.
	Name string `mapstructure:"name"`
	// Manifest is an optional YAML file describing the container tree.
	Manifest string `mapstructure:"manifest"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// Load reads .env files (".env" when none are given; missing files are
// ignored), then layers defaults, an optional config.yaml from . or ./configs,
// and IOC_-prefixed environment variables.
//
//	cfg, err := config.Load()
func Load(envFiles ...string) (*Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// .env may not exist in production
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "GoIoC")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.port", "8000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("container.name", "root")
	v.SetDefault("container.manifest", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "ioc")
	v.SetDefault("metrics.path", "/metrics")
}

// bindEnvVars accepts the unprefixed names used by .env files as well.
func bindEnvVars(v *viper.Viper) {
	mappings := map[string]string{
		"app.name":  "APP_NAME",
		"app.env":   "APP_ENV",
		"app.port":  "APP_PORT",
		"log.level": "LOG_LEVEL",
	}
	for key, env := range mappings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
}

// Validate checks the values Load cannot coerce.
func (c *Config) Validate() error {
	return validation.Make(map[string]string{
		"app.name":          c.App.Name,
		"app.env":           c.App.Env,
		"app.port":          c.App.Port,
		"log.level":         c.Log.Level,
		"log.format":        c.Log.Format,
		"container.name":    c.Container.Name,
		"metrics.namespace": c.Metrics.Namespace,
		"metrics.path":      c.Metrics.Path,
	}, validation.Rules{
		"app.name":          "required|max:64",
		"app.env":           "required|in:local,production,testing",
		"app.port":          "required|integer|gte:1|lte:65535",
		"log.level":         "required|in:debug,info,warn,error",
		"log.format":        "required|in:console,json",
		"container.name":    "required|max:64|slug",
		"metrics.namespace": "required|regex:^[a-zA-Z_][a-zA-Z0-9_]*$",
		"metrics.path":      "required|regex:^/",
	}).Validate()
}

// Addr is the listen address for the HTTP server.
func (a AppConfig) Addr() string { return ":" + a.Port }

func (a AppConfig) IsLocal() bool      { return a.Env == "local" }
func (a AppConfig) IsProduction() bool { return a.Env == "production" }
func (a AppConfig) IsTesting() bool    { return a.Env == "testing" }
