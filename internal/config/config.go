// Package config loads and validates the sitebuilder YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FailurePolicy controls executor behavior when an artifact fails to build.
type FailurePolicy string

const (
	// PolicyBestEffort continues building independent artifacts after a failure.
	PolicyBestEffort FailurePolicy = "best_effort"
	// PolicyFailFast stops scheduling new artifacts after the first failure.
	PolicyFailFast FailurePolicy = "fail_fast"
)

// Config represents the application configuration
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Output    OutputConfig    `yaml:"output"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Build     BuildConfig     `yaml:"build"`
	History   HistoryConfig   `yaml:"history"`
	Publish   PublishConfig   `yaml:"publish"`
	Watch     WatchConfig     `yaml:"watch"`
	LinkCheck LinkCheckConfig `yaml:"linkcheck"`
}

// SourceConfig describes where documents live and how they are filtered.
type SourceConfig struct {
	Root              string   `yaml:"root"`
	IncludeExtensions []string `yaml:"include_extensions,omitempty"`
	Header            string   `yaml:"header,omitempty"` // fragment filename, relative to root
	Footer            string   `yaml:"footer,omitempty"` // fragment filename, relative to root
	ListingDirs       []string `yaml:"listing_dirs,omitempty"`
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Extension string `yaml:"extension,omitempty"`
	Clean     bool   `yaml:"clean"` // Clean output directory before build
}

// RendererConfig selects the document renderer. An empty command uses the
// built-in Markdown renderer.
type RendererConfig struct {
	Command []string `yaml:"command,omitempty"`
}

// BuildConfig tunes executor behavior.
type BuildConfig struct {
	FailurePolicy FailurePolicy `yaml:"failure_policy,omitempty"`
	Workers       int           `yaml:"workers,omitempty"`  // 0 means GOMAXPROCS
	Deadline      string        `yaml:"deadline,omitempty"` // optional, e.g. "2m"
}

// HistoryConfig enables the sqlite build-history store when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// PublishConfig describes the deploy branch the output tree is committed to.
type PublishConfig struct {
	Branch    string `yaml:"branch,omitempty"`
	Directory string `yaml:"directory,omitempty"` // deploy worktree; defaults to <output>-publish
	Remote    string `yaml:"remote,omitempty"`    // optional push remote
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce    string `yaml:"debounce,omitempty"`
	Schedule    string `yaml:"schedule,omitempty"` // optional cron expression for periodic full rebuilds
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
	NATSURL     string `yaml:"nats_url,omitempty"`
	NATSSubject string `yaml:"nats_subject,omitempty"`
}

// LinkCheckConfig enables post-build verification of relative links in rendered output.
type LinkCheckConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env files if present; missing files are not an error.
	_ = godotenv.Load(".env", ".env.local")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// DebounceDuration returns the parsed watch debounce interval.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// DeadlineDuration returns the parsed build deadline, or zero when unset.
func (c *Config) DeadlineDuration() time.Duration {
	if c.Build.Deadline == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Build.Deadline)
	if err != nil {
		return 0
	}
	return d
}

// PublishDirectory returns the deploy worktree directory.
func (c *Config) PublishDirectory() string {
	if c.Publish.Directory != "" {
		return c.Publish.Directory
	}
	return c.Output.Directory + "-publish"
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Source: SourceConfig{
			Root:              "./content",
			IncludeExtensions: []string{".md"},
			Header:            "header.md",
			Footer:            "footer.md",
			ListingDirs:       []string{"posts"},
		},
		Output: OutputConfig{
			Directory: "./site",
			Extension: ".html",
		},
		Renderer: RendererConfig{
			Command: []string{"pandoc", "-f", "markdown", "-t", "html", "-s"},
		},
		Build: BuildConfig{
			FailurePolicy: PolicyBestEffort,
		},
		Publish: PublishConfig{
			Branch: "pages",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
