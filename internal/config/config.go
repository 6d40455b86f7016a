// Package config loads pct settings from flags, PCT_* environment variables
// and an optional pct.yaml file.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/pointcloud-transport/internal/observability"
)

// EnvPrefix prefixes every environment variable, e.g. PCT_HOST_BACKEND.
const EnvPrefix = "PCT"

type Config struct {
	Output        string              `mapstructure:"output"`
	Host          HostConfig          `mapstructure:"host"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// HostConfig selects the hosting backend and its settings.
type HostConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// ObsConfig converts to the observability package's config.
func (c ObservabilityConfig) ObsConfig() observability.ObsConfig {
	return observability.ObsConfig{
		LogLevel:       c.LogLevel,
		LogFormat:      c.LogFormat,
		OTLPEndpoint:   c.OTLPEndpoint,
		OTLPProtocol:   c.OTLPProtocol,
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
	}
}

// Defaults applied before flags, environment and file.
var Defaults = struct {
	Output      string
	HostBackend string
	LogLevel    string
	LogFormat   string
	ServiceName string
	Version     string
}{
	Output:      "text",
	HostBackend: "memory",
	LogLevel:    "info",
	LogFormat:   "text",
	ServiceName: "pct",
	Version:     "dev",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output", Defaults.Output)

	v.SetDefault("host.backend", Defaults.HostBackend)
	v.SetDefault("host.config", map[string]string{})

	v.SetDefault("observability.log_level", Defaults.LogLevel)
	v.SetDefault("observability.log_format", Defaults.LogFormat)
	v.SetDefault("observability.metrics_addr", "")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http")
	v.SetDefault("observability.service_name", Defaults.ServiceName)
	v.SetDefault("observability.service_version", Defaults.Version)
}

// BindFlags registers the persistent flags shared by every pct command.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()

	f.String("config", "", "config file path (default ./pct.yaml, ~/.pct/pct.yaml, /etc/pct/pct.yaml)")
	f.StringP("output", "o", "", "output format (text, json, markdown)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")
	f.String("metrics-addr", "", "serve /metrics and /health on this address")

	_ = v.BindPFlag("config", f.Lookup("config"))
	_ = v.BindPFlag("output", f.Lookup("output"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
}

// BindHostFlags registers the flags selecting a hosting backend.
func BindHostFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.String("backend", "", "hosting backend (memory, nats, redis)")
	f.StringToString("host-config", nil, "backend settings as key=value pairs")

	_ = v.BindPFlag("host.backend", f.Lookup("backend"))
	_ = v.BindPFlag("host.config", f.Lookup("host-config"))
}

// Load applies defaults and merges environment and config file into v,
// returning the resulting Config. A missing config file is only an error
// when configFile names it explicitly.
func Load(v *viper.Viper, configFile string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("pct")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pct")
		v.AddConfigPath("/etc/pct")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
