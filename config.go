package terminal

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"gopkg.in/yaml.v3"

	"github.com/EricSpencer00/ai-os-sub000/service/synthesizer"
)

// Config is a serialisable representation of the engine configuration. It
// can be populated from YAML or JSON; start from DefaultConfig (as
// LoadConfig does) so unset fields keep their package defaults, since
// Validate rejects zero shell and execution bounds.
type Config struct {
	Shell       ShellConfig              `json:"shell" yaml:"shell"`
	Execution   ExecutionConfig          `json:"execution" yaml:"execution"`
	Synthesizer synthesizer.ClientConfig `json:"synthesizer" yaml:"synthesizer"`
	Transcript  TranscriptConfig         `json:"transcript" yaml:"transcript"`
}

// ShellConfig describes the persistent shell process.
type ShellConfig struct {
	Path       string            `json:"path,omitempty" yaml:"path,omitempty"`
	Env        map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	ReadPollMs int               `json:"readPollMs,omitempty" yaml:"readPollMs,omitempty"`
}

// ExecutionConfig bounds command execution and the retry machine.
type ExecutionConfig struct {
	TimeoutMs    int `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	MaxAttempts  int `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
	ExcerptLimit int `json:"excerptLimit,omitempty" yaml:"excerptLimit,omitempty"`
}

// TranscriptConfig controls attempt-history persistence; an empty BaseURL
// disables it.
type TranscriptConfig struct {
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			Path:       "/bin/bash",
			ReadPollMs: 50,
		},
		Execution: ExecutionConfig{
			TimeoutMs:    60_000,
			MaxAttempts:  3,
			ExcerptLimit: 2000,
		},
	}
}

// Validate returns an aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Execution.MaxAttempts <= 0 {
		return fmt.Errorf("execution.maxAttempts must be > 0")
	}
	if c.Execution.TimeoutMs <= 0 {
		return fmt.Errorf("execution.timeoutMs must be > 0")
	}
	if c.Shell.ReadPollMs <= 0 {
		return fmt.Errorf("shell.readPollMs must be > 0")
	}
	return nil
}

// LoadConfig reads a YAML config document from URL (file://, mem://,
// embed:// ...), layered over DefaultConfig. Storage options are forwarded
// to the file system, e.g. an *embed.FS for embed:// URLs.
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
