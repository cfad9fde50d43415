package config

import (
	"fmt"
	"time"
)

// Config represents a tether.yaml configuration file.
// All values are optional and act as defaults for tether flags.
// CLI flags always override config values.
type Config struct {
	// APIURL is the base URL of the runtime provider API.
	APIURL string `yaml:"api_url"`
	// Token is the provider bearer token. Prefer ${TETHER_TOKEN} env
	// expansion over a literal value.
	Token string `yaml:"token"`
	// Variant is the default hardware variant (gpu, tpu, default).
	Variant string `yaml:"variant"`
	// ForceNew always provisions a fresh runtime instead of reusing.
	ForceNew bool `yaml:"force_new"`
	// PollInterval overrides the acquisition poll cadence.
	PollInterval Duration `yaml:"poll_interval"`
	// AcquireTimeout overrides the overall acquisition deadline.
	AcquireTimeout Duration `yaml:"acquire_timeout"`
	// StartupCommand is injected at the start of interactive sessions.
	StartupCommand string `yaml:"startup_command"`

	Recording RecordingConfig `yaml:"recording"`
	Adapter   AdapterConfig   `yaml:"adapter"`
}

// RecordingConfig holds session recording defaults from the config file.
type RecordingConfig struct {
	// Enabled turns on frame recording for every session.
	Enabled bool `yaml:"enabled"`
	// Backend selects where recordings go: "fs" or "s3".
	Backend string `yaml:"backend"`
	// Path is the local directory (fs) or "bucket/prefix" (s3).
	Path string `yaml:"path"`
	// Region is the AWS region for the s3 backend.
	Region string `yaml:"region"`
	// Endpoint is a custom S3 endpoint for S3-compatible providers.
	Endpoint string `yaml:"endpoint"`
	// S3PathStyle forces path-style addressing.
	S3PathStyle bool `yaml:"s3_path_style"`
}

// AdapterConfig holds notification adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks cross-field constraints that YAML decoding cannot.
func (c *Config) Validate() error {
	switch c.Recording.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("invalid recording backend %q: must be fs or s3", c.Recording.Backend)
	}
	if c.Recording.Enabled && c.Recording.Backend == "s3" && c.Recording.Path == "" {
		return fmt.Errorf("recording backend s3 requires a path (bucket or bucket/prefix)")
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("invalid adapter type %q: must be webhook or redis", c.Adapter.Type)
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		return fmt.Errorf("adapter type %q requires a url", c.Adapter.Type)
	}
	return nil
}
