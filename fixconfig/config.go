// Package fixconfig loads the YAML configuration for a set of FIX
// sessions, generalized from the teacher's config package (which loaded
// one server list for SOL/IPMI targets) to a list of per-counterparty
// session definitions plus a shared audit/metrics/directory block.
package fixconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionConfig is one counterparty's connection parameters, as they
// appear in the YAML sessions list.
type SessionConfig struct {
	Name         string `yaml:"name"`
	BeginString  string `yaml:"begin_string"`
	SenderCompID string `yaml:"sender_comp_id"`
	TargetCompID string `yaml:"target_comp_id"`
	Address      string `yaml:"address"`

	HeartbeatSeconds int  `yaml:"heartbeat_seconds"`
	Production       bool `yaml:"production"`
	AllowTest        bool `yaml:"allow_test"`
	VerifyTestIndicator bool `yaml:"verify_test_indicator"`
}

// Heartbeat returns the configured heartbeat interval, defaulting to 30s
// when unset.
func (s SessionConfig) Heartbeat() time.Duration {
	if s.HeartbeatSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.HeartbeatSeconds) * time.Second
}

// Config is the top-level document.
type Config struct {
	Sessions []SessionConfig `yaml:"sessions"`

	AuditPath      string `yaml:"audit_path"`
	AuditRetention int    `yaml:"audit_retention_days"`

	DirectoryCachePath     string `yaml:"directory_cache_path"`
	DirectoryPollSeconds   int    `yaml:"directory_poll_seconds"`

	MetricsListenAddr string `yaml:"metrics_listen_addr"`

	LogLevel string `yaml:"log_level"`
}

// DirectoryPollInterval returns the configured directory poll interval,
// defaulting to 60s when unset.
func (c Config) DirectoryPollInterval() time.Duration {
	if c.DirectoryPollSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.DirectoryPollSeconds) * time.Second
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixconfig: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("fixconfig: parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("fixconfig: %s: %w", path, err)
	}

	return &cfg, nil
}

func (c Config) validate() error {
	seen := make(map[string]bool, len(c.Sessions))
	for _, s := range c.Sessions {
		if s.Name == "" {
			return fmt.Errorf("session missing name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate session name %q", s.Name)
		}
		seen[s.Name] = true
		if s.BeginString == "" {
			return fmt.Errorf("session %q missing begin_string", s.Name)
		}
		if s.SenderCompID == "" || s.TargetCompID == "" {
			return fmt.Errorf("session %q missing sender/target comp id", s.Name)
		}
	}
	return nil
}
