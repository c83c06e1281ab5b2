// Package config provides configuration loading and validation for the CLI.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ROJGAR_PIPELINE_INTERVAL=30m.
const EnvPrefix = "ROJGAR"

// Config represents the full pipeline configuration. Values come from an
// optional config file, then environment variables, then defaults.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Store     StoreConfig     `mapstructure:"store"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	DB        DBConfig        `mapstructure:"db"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// PipelineConfig controls the polling loop.
type PipelineConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Threshold   float64       `mapstructure:"threshold"`
	Sources     []string      `mapstructure:"sources"`
	SourcesFile string        `mapstructure:"sources_file"`
	Timezone    string        `mapstructure:"timezone"`
}

// StoreConfig locates the category store and the seen-URL ledger.
type StoreConfig struct {
	Path       string `mapstructure:"path"`
	LedgerPath string `mapstructure:"ledger_path"`
}

// FetchConfig configures listing-page discovery and article download.
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RespectRobots  bool          `mapstructure:"respect_robots"`
	Browser        bool          `mapstructure:"browser"`
	BrowserTimeout time.Duration `mapstructure:"browser_timeout"`
}

// LLMConfig configures record synthesis.
type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ArtifactsConfig selects where consolidated texts and raw responses are kept.
// A bucket takes precedence over the local directory; both empty disables artifacts.
type ArtifactsConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig enables record.inserted notifications when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether notifications are configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Topic != ""
}

// DBConfig enables the Postgres run history when URL is set.
type DBConfig struct {
	URL string `mapstructure:"url"`
}

// ServerConfig controls the ops HTTP server. An empty Addr disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads the configuration and validates it for running the pipeline.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a Config from an optional file at path plus the environment and
// merges in the sources file. It does not validate, so maintenance commands
// can run without an API key.
func Read(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The API key may also come from the variables the Gemini SDK documents.
	if err := v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Environment lists are comma separated; trim entries and drop blanks.
	cfg.Pipeline.Sources = splitList(cfg.Pipeline.Sources)

	fromFile, err := ReadSources(cfg.Pipeline.SourcesFile)
	if err != nil {
		return nil, err
	}
	cfg.Pipeline.Sources = dedupe(append(cfg.Pipeline.Sources, fromFile...))
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.interval", time.Hour)
	v.SetDefault("pipeline.threshold", 0.75)
	v.SetDefault("pipeline.sources", []string{})
	v.SetDefault("pipeline.sources_file", "links.txt")
	v.SetDefault("pipeline.timezone", "Asia/Kolkata")
	v.SetDefault("store.path", "data.json")
	v.SetDefault("store.ledger_path", "seen_urls.txt")
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; RojgarPipeline/1.0)")
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.browser", false)
	v.SetDefault("fetch.browser_timeout", 30*time.Second)
	v.SetDefault("llm.model", "gemini-2.5-flash-lite")
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.gcs_bucket", "")
	v.SetDefault("artifacts.prefix", "rojgar")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("db.url", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("logging.development", true)
}

// Validate checks that the configuration can drive a pipeline.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("config error: llm.api_key is required (or set GEMINI_API_KEY)")
	}
	if len(c.Pipeline.Sources) == 0 {
		return fmt.Errorf("config error: no sources configured (pipeline.sources or %q)", c.Pipeline.SourcesFile)
	}
	if c.Pipeline.Interval <= 0 {
		return errors.New("config error: pipeline.interval must be > 0")
	}
	if c.Pipeline.Threshold <= 0 || c.Pipeline.Threshold >= 1 {
		return fmt.Errorf("config error: pipeline.threshold must be in (0, 1), got %v", c.Pipeline.Threshold)
	}
	if c.Store.Path == "" || c.Store.LedgerPath == "" {
		return errors.New("config error: store.path and store.ledger_path are required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return errors.New("config error: pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

// Location resolves the configured timezone used for "today".
func (c *Config) Location() (*time.Location, error) {
	if c.Pipeline.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config error: unknown timezone %q: %w", c.Pipeline.Timezone, err)
	}
	return loc, nil
}

// ReadSources reads listing-page URLs from path, one per line. Blank lines and
// lines starting with # are ignored. A missing file yields no sources.
func ReadSources(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open sources file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}
	return sources, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
