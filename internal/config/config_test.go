package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// isolate runs the test from an empty directory with an empty HOME so no
// pct.yaml on the machine is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load with no config file should not error, got: %v", err)
	}

	if cfg.Output != "text" {
		t.Errorf("Output = %q, want text", cfg.Output)
	}
	if cfg.Host.Backend != "memory" {
		t.Errorf("Host.Backend = %q, want memory", cfg.Host.Backend)
	}
	if len(cfg.Host.Config) != 0 {
		t.Errorf("Host.Config = %v, want empty", cfg.Host.Config)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.Observability.LogFormat)
	}
	if cfg.Observability.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want disabled", cfg.Observability.MetricsAddr)
	}
	if cfg.Observability.OTLPProtocol != "http" {
		t.Errorf("OTLPProtocol = %q, want http", cfg.Observability.OTLPProtocol)
	}
	if cfg.Observability.ServiceName != "pct" {
		t.Errorf("ServiceName = %q, want pct", cfg.Observability.ServiceName)
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("PCT_HOST_BACKEND", "nats")
	t.Setenv("PCT_OBSERVABILITY_LOG_LEVEL", "debug")
	t.Setenv("PCT_OUTPUT", "json")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host.Backend != "nats" {
		t.Errorf("Host.Backend = %q, want nats", cfg.Host.Backend)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	content := `
host:
  backend: redis
  config:
    addr: localhost:6380
    key_prefix: "test:"
observability:
  log_format: json
`
	if err := os.WriteFile(filepath.Join(dir, "pct.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host.Backend != "redis" {
		t.Errorf("Host.Backend = %q, want redis", cfg.Host.Backend)
	}
	if cfg.Host.Config["addr"] != "localhost:6380" {
		t.Errorf("Host.Config[addr] = %q", cfg.Host.Config["addr"])
	}
	if cfg.Host.Config["key_prefix"] != "test:" {
		t.Errorf("Host.Config[key_prefix] = %q", cfg.Host.Config["key_prefix"])
	}
	if cfg.Observability.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.Observability.LogFormat)
	}
}

func TestLoadExplicitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("output: markdown\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output != "markdown" {
		t.Errorf("Output = %q, want markdown", cfg.Output)
	}
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	isolate(t)
	if _, err := Load(viper.New(), "/nonexistent/path/pct.yaml"); err == nil {
		t.Error("Load with explicit missing config file should error")
	}
}

func TestLoadMalformedConfigFile(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "pct.yaml"), []byte("host: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(viper.New(), ""); err == nil {
		t.Error("Load with malformed config file should error")
	}
}

func TestBindFlags(t *testing.T) {
	isolate(t)
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	BindFlags(cmd, v)
	BindHostFlags(cmd, v)

	err := cmd.ParseFlags([]string{
		"-o", "json",
		"--log-level", "debug",
		"--log-format", "json",
		"--metrics-addr", ":9464",
		"--backend", "nats",
		"--host-config", "url=nats://example:4222,name=pct-test",
	})
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(v, v.GetString("config"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if cfg.Observability.LogLevel != "debug" || cfg.Observability.LogFormat != "json" {
		t.Errorf("log = %q/%q, want debug/json", cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	}
	if cfg.Observability.MetricsAddr != ":9464" {
		t.Errorf("MetricsAddr = %q", cfg.Observability.MetricsAddr)
	}
	if cfg.Host.Backend != "nats" {
		t.Errorf("Host.Backend = %q, want nats", cfg.Host.Backend)
	}
	if cfg.Host.Config["url"] != "nats://example:4222" || cfg.Host.Config["name"] != "pct-test" {
		t.Errorf("Host.Config = %v", cfg.Host.Config)
	}
}

func TestFlagTakesPriorityOverEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PCT_HOST_BACKEND", "redis")

	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	BindHostFlags(cmd, v)
	if err := cmd.ParseFlags([]string{"--backend", "nats"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host.Backend != "nats" {
		t.Errorf("Host.Backend = %q, flag should win over env", cfg.Host.Backend)
	}
}

func TestObsConfig(t *testing.T) {
	c := ObservabilityConfig{
		LogLevel:       "warn",
		LogFormat:      "json",
		OTLPEndpoint:   "localhost:4318",
		OTLPProtocol:   "grpc",
		ServiceName:    "pct",
		ServiceVersion: "1.2.3",
	}
	got := c.ObsConfig()
	if got.LogLevel != "warn" || got.LogFormat != "json" || got.OTLPEndpoint != "localhost:4318" ||
		got.OTLPProtocol != "grpc" || got.ServiceName != "pct" || got.ServiceVersion != "1.2.3" {
		t.Errorf("ObsConfig() = %+v", got)
	}
}
