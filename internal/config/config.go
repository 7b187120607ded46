// Package config loads and validates podcrawl's top-level YAML
// configuration (spec.md §6). Grounded on the teacher's internal/config
// package shape (one Config struct, a Load function, a Validate method)
// but deliberately departs from its Viper-backed reflection mapper: here
// a plain yaml.v3 decoder runs with KnownFields(true), so an unrecognized
// key is a startup-time fatal error rather than a silently ignored typo
// (SPEC_FULL.md §9's "Reflection-based configuration" resolution).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for fields spec.md §6 marks optional.
const (
	DefaultPolitenessDelaySeconds = 70
	DefaultRobotsCacheTTLSeconds  = 86400
	DefaultHTTPTimeoutSeconds     = 30
	DefaultHTTPMaxRetries         = 2
	DefaultGlobalCoordinationPod  = 0
	DefaultSeenErrorRate          = 0.001
)

// Pod describes one pod store endpoint.
type Pod struct {
	KVURL string `yaml:"kv_url"`
}

// Config is podcrawl's complete startup configuration.
type Config struct {
	Pods    []Pod    `yaml:"pods"`
	DataDirs []string `yaml:"data_dirs"`
	LogDir  string   `yaml:"log_dir"`

	FetchersPerPod int `yaml:"fetchers_per_pod"`
	ParsersPerPod  int `yaml:"parsers_per_pod"`

	EnableCPUAffinity bool `yaml:"enable_cpu_affinity"`
	CoresPerPod       int  `yaml:"cores_per_pod"`

	PolitenessDelaySeconds int `yaml:"politeness_delay_seconds"`
	RobotsCacheTTLSeconds  int `yaml:"robots_cache_ttl_seconds"`
	HTTPTimeoutSeconds     int `yaml:"http_timeout_seconds"`
	HTTPMaxRetries         int `yaml:"http_max_retries"`

	ParseQueueSoftLimit int `yaml:"parse_queue_soft_limit"`
	ParseQueueHardLimit int `yaml:"parse_queue_hard_limit"`

	SeenCapacity  uint    `yaml:"seen_capacity"`
	SeenErrorRate float64 `yaml:"seen_error_rate"`

	GlobalCoordinationPod int `yaml:"global_coordination_pod"`

	PrometheusPort   int  `yaml:"prometheus_port"`
	EnablePrometheus bool `yaml:"enable_prometheus"`
}

// SetDefaults fills in zero-valued optional fields with spec.md §6's
// defaults. Mirrors internal/logging.Config.SetDefaults's shape.
func (c *Config) SetDefaults() {
	if c.PolitenessDelaySeconds == 0 {
		c.PolitenessDelaySeconds = DefaultPolitenessDelaySeconds
	}
	if c.RobotsCacheTTLSeconds == 0 {
		c.RobotsCacheTTLSeconds = DefaultRobotsCacheTTLSeconds
	}
	if c.HTTPTimeoutSeconds == 0 {
		c.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}
	if c.HTTPMaxRetries == 0 {
		c.HTTPMaxRetries = DefaultHTTPMaxRetries
	}
	if c.SeenErrorRate == 0 {
		c.SeenErrorRate = DefaultSeenErrorRate
	}
}

// PolitenessDelay returns PolitenessDelaySeconds as a time.Duration.
func (c *Config) PolitenessDelay() time.Duration {
	return time.Duration(c.PolitenessDelaySeconds) * time.Second
}

// RobotsCacheTTL returns RobotsCacheTTLSeconds as a time.Duration.
func (c *Config) RobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLSeconds) * time.Second
}

// HTTPTimeout returns HTTPTimeoutSeconds as a time.Duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Validate checks the invariants required before the orchestrator can
// start: at least one pod and one content directory, worker counts
// positive, the coordination pod index in range.
func (c *Config) Validate() error {
	if len(c.Pods) == 0 {
		return errors.New("config: pods must list at least one pod store endpoint")
	}
	if len(c.DataDirs) == 0 {
		return errors.New("config: data_dirs must list at least one content directory")
	}
	if c.FetchersPerPod <= 0 {
		return errors.New("config: fetchers_per_pod must be positive")
	}
	if c.ParsersPerPod <= 0 {
		return errors.New("config: parsers_per_pod must be positive")
	}
	if c.ParseQueueHardLimit > 0 && c.ParseQueueSoftLimit > c.ParseQueueHardLimit {
		return errors.New("config: parse_queue_soft_limit must not exceed parse_queue_hard_limit")
	}
	if c.GlobalCoordinationPod < 0 || c.GlobalCoordinationPod >= len(c.Pods) {
		return fmt.Errorf("config: global_coordination_pod %d out of range for %d pods",
			c.GlobalCoordinationPod, len(c.Pods))
	}
	if c.EnableCPUAffinity && c.CoresPerPod <= 0 {
		return errors.New("config: cores_per_pod must be positive when enable_cpu_affinity is set")
	}
	return nil
}

// Load reads and decodes the YAML config at path. Unknown keys are a
// fatal decode error (KnownFields(true)) so an operator typo fails fast
// rather than being silently ignored.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// Decode reads and decodes YAML config from r, applying defaults and
// validating the result.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
