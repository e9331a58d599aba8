package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the config file at path over the defaults, then applies
// ZENCLAW_* overrides and expands ${VAR} references in credential fields.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
		applyDefaults(&cfg)
	}

	applyEnvOverrides(&cfg)
	expandSecrets(&cfg)
	return cfg, nil
}

// LoadDotEnv loads ./.env and then <home>/.env. Variables already in the
// environment are never replaced.
func LoadDotEnv(p Paths) error {
	for _, path := range []string{".env", filepath.Join(p.Base, ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return &ConfigError{Message: "failed to load " + path + ": " + err.Error()}
		}
	}
	return nil
}

// LoadRaw reads the config file as an untyped tree for "config get/set".
func LoadRaw(path string) (map[string]any, error) {
	raw := map[string]any{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes raw as YAML, owner-only. The file is replaced by rename
// so a crash never leaves a truncated config behind.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func orDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// applyDefaults restores defaults for keys the file set to a zero value.
func applyDefaults(cfg *Config) {
	d := Defaults()
	orDefault(&cfg.Provider.Name, d.Provider.Name)
	orDefault(&cfg.Agent.MaxIterations, d.Agent.MaxIterations)
	orDefault(&cfg.Agent.MaxTokens, d.Agent.MaxTokens)
	orDefault(&cfg.Agent.ToolTimeoutSeconds, d.Agent.ToolTimeoutSeconds)
	orDefault(&cfg.Routing.Scope, d.Routing.Scope)
	orDefault(&cfg.Routing.Concurrency, d.Routing.Concurrency)
	orDefault(&cfg.NATS.Subject, d.NATS.Subject)
	orDefault(&cfg.Gateway.Port, d.Gateway.Port)
	orDefault(&cfg.Gateway.Bind, d.Gateway.Bind)
	orDefault(&cfg.Gateway.Auth.Mode, d.Gateway.Auth.Mode)
	orDefault(&cfg.Memory.Store, d.Memory.Store)
	orDefault(&cfg.Memory.ChunkWords, d.Memory.ChunkWords)
	orDefault(&cfg.Logging.Level, d.Logging.Level)
	orDefault(&cfg.Logging.ConsoleStyle, d.Logging.ConsoleStyle)
}

// envOverrides maps ZENCLAW_* variables onto config fields. Empty values
// are ignored.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"ZENCLAW_PROVIDER", func(c *Config, v string) { c.Provider.Name = strings.ToLower(v) }},
	{"ZENCLAW_MODEL", func(c *Config, v string) { c.Provider.Model = v }},
	{"ZENCLAW_API_KEY", func(c *Config, v string) { c.Provider.APIKey = v }},
	{"ZENCLAW_BASE_URL", func(c *Config, v string) { c.Provider.BaseURL = v }},
	{"ZENCLAW_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) }},
	{"ZENCLAW_GATEWAY_PORT", func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}},
	{"ZENCLAW_NATS_URL", func(c *Config, v string) {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}},
	{"ZENCLAW_MEMORY_STORE", func(c *Config, v string) { c.Memory.Store = strings.ToLower(v) }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes ${VAR} references. References to unset
// variables are kept verbatim so the mistake stays visible.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := os.LookupEnv(ref[2 : len(ref)-1]); ok {
			return v
		}
		return ref
	})
}

// expandSecrets lets credentials and endpoints be written as ${VAR}.
func expandSecrets(cfg *Config) {
	for _, field := range []*string{
		&cfg.Provider.APIKey,
		&cfg.Provider.BaseURL,
		&cfg.Gateway.Auth.Token,
		&cfg.Gateway.Auth.Password,
		&cfg.NATS.URL,
	} {
		*field = expandEnvVars(*field)
	}
}
