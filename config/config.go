// Package config holds the options of a page run and the YAML file they
// can be loaded from.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/perfgo/pagerunner/results"
	"gopkg.in/yaml.v3"
)

// Unbounded disables the failure cutoff.
const Unbounded = -1

// RunOptions control how a page set is run.
type RunOptions struct {
	// Times every page is run in a row
	PageRepeat int `yaml:"page_repeat"`
	// Times the whole page set is run
	PagesetRepeat int `yaml:"pageset_repeat"`
	// Failures tolerated before the remaining pages are abandoned. A
	// negative value defers to the page test.
	MaxFailures int `yaml:"max_failures"`
	OutputFormat results.Format `yaml:"output_format"`
	// Summary destination, stdout when empty
	OutputFile string `yaml:"output_file,omitempty"`
	// Serve pages from the network instead of replay archives
	UseLiveSites bool `yaml:"use_live_sites,omitempty"`
}

// DefaultRunOptions runs every page once and prints buildbot results.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		PageRepeat:    1,
		PagesetRepeat: 1,
		MaxFailures:   Unbounded,
		OutputFormat:  results.FormatBuildbot,
	}
}

// Validate checks the options.
func (o RunOptions) Validate() error {
	var errs []error
	if o.PageRepeat < 1 {
		errs = append(errs, fmt.Errorf("page_repeat must be at least 1, got %d", o.PageRepeat))
	}
	if o.PagesetRepeat < 1 {
		errs = append(errs, fmt.Errorf("pageset_repeat must be at least 1, got %d", o.PagesetRepeat))
	}
	if _, err := results.ParseFormat(string(o.OutputFormat)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Browser holds launcher settings passed through to browser.Options.
type Browser struct {
	UserAgentType string   `yaml:"user_agent_type,omitempty"`
	ExtraArgs     []string `yaml:"extra_args,omitempty"`
}

// Systrace configures background trace collection.
type Systrace struct {
	// adb serial, empty for the only attached device
	Device     string        `yaml:"device,omitempty"`
	Categories []string      `yaml:"categories,omitempty"`
	RingBuffer bool          `yaml:"ring_buffer,omitempty"`
	Interval   time.Duration `yaml:"interval,omitempty"`
}

// Config is the content of a pagerunner configuration file.
type Config struct {
	Run             RunOptions `yaml:"run"`
	Browser         Browser    `yaml:"browser,omitempty"`
	CredentialsPath string     `yaml:"credentials_path,omitempty"`
	// Directory history is recorded in, .pagerunner at the repository root
	// when empty
	HistoryDir string   `yaml:"history_dir,omitempty"`
	Systrace   Systrace `yaml:"systrace,omitempty"`
}

// Default returns the configuration used without a config file.
func Default() Config {
	return Config{
		Run: DefaultRunOptions(),
		Systrace: Systrace{
			Interval: 15 * time.Second,
		},
	}
}

// Load reads a configuration file. Unset fields keep their defaults and
// unknown fields are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Run.Validate(); err != nil {
		return err
	}
	if c.Systrace.Interval < 0 {
		return fmt.Errorf("systrace interval must not be negative, got %s", c.Systrace.Interval)
	}
	return nil
}
