// Package config loads audit configuration from YAML with environment
// overrides for secrets. API keys never belong in config files; they are
// read from the environment at load time.
package config

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SAM252003/Nehoris/internal/brand"
	"github.com/SAM252003/Nehoris/internal/campaign"
)

// Duration wraps time.Duration so YAML can carry values like "90s" or "3m".
type Duration time.Duration

// UnmarshalYAML accepts a duration string or a raw nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	return value.Decode((*time.Duration)(d))
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ProviderConfig holds per-provider connection settings. Keys come from the
// environment (OPENAI_API_KEY, GEMINI_API_KEY, PERPLEXITY_API_KEY,
// OLLAMA_HOST) and override whatever the file says.
type ProviderConfig struct {
	APIKey  string   `yaml:"api_key"`
	Host    string   `yaml:"host"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

// DispatchConfig tunes the request pool.
type DispatchConfig struct {
	Workers      int      `yaml:"workers"`
	BatchTimeout Duration `yaml:"batch_timeout"`
	CacheTTL     Duration `yaml:"cache_ttl"`
}

// ResilienceConfig tunes breakers and retries.
type ResilienceConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	Cooldown         Duration `yaml:"cooldown"`
	MaxRetries       int      `yaml:"max_retries"`
	BackoffBase      float64  `yaml:"backoff_base"`
}

// LoggingConfig tunes category log files.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level"`
}

// StoreConfig locates the results database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Config is the root configuration document.
type Config struct {
	Campaign   campaign.Spec             `yaml:"campaign"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Dispatch   DispatchConfig            `yaml:"dispatch"`
	Resilience ResilienceConfig          `yaml:"resilience"`
	Logging    LoggingConfig             `yaml:"logging"`
	Store      StoreConfig               `yaml:"store"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Campaign: campaign.Spec{
			RunsPerPrompt:  1,
			Provider:       "ollama",
			Temperature:    0.7,
			FuzzyThreshold: 85,
		},
		Providers: map[string]ProviderConfig{},
		Dispatch: DispatchConfig{
			Workers:      3,
			BatchTimeout: Duration(3 * time.Minute),
			CacheTTL:     Duration(30 * time.Minute),
		},
		Resilience: ResilienceConfig{
			FailureThreshold: 5,
			Cooldown:         Duration(time.Minute),
			MaxRetries:       2,
			BackoffBase:      1.5,
		},
		Logging: LoggingConfig{Dir: ".nehoris/logs"},
		Store:   StoreConfig{Path: ".nehoris/nehoris.db"},
	}
}

// Load reads path (optional), layers it over defaults, and applies
// environment overrides. An empty path returns defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setKey := func(name, key string) {
		if key == "" {
			return
		}
		p := c.Providers[name]
		p.APIKey = key
		c.Providers[name] = p
	}
	setKey("openai", os.Getenv("OPENAI_API_KEY"))
	setKey("gemini", os.Getenv("GEMINI_API_KEY"))
	setKey("perplexity", os.Getenv("PERPLEXITY_API_KEY"))
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		p := c.Providers["ollama"]
		p.Host = host
		c.Providers["ollama"] = p
	}
}

// Validate checks tunables for sane ranges. The campaign section is only
// validated at Start time since it may be completed on the command line.
func (c *Config) Validate() error {
	if c.Dispatch.Workers < 0 {
		return fmt.Errorf("dispatch.workers must not be negative")
	}
	if c.Resilience.FailureThreshold < 1 {
		return fmt.Errorf("resilience.failure_threshold must be at least 1")
	}
	if c.Resilience.BackoffBase < 1 {
		return fmt.Errorf("resilience.backoff_base must be at least 1")
	}
	if c.Campaign.FuzzyThreshold < 0 || c.Campaign.FuzzyThreshold > 100 {
		return fmt.Errorf("campaign.fuzzy_threshold must be in [0,100]")
	}
	return nil
}

// LoadPrompts reads prompts from a CSV file, one prompt per row (first
// column). A header row named "prompt" is skipped.
func LoadPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompts file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var prompts []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read prompts file: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		p := strings.TrimSpace(record[0])
		if p == "" || (len(prompts) == 0 && strings.EqualFold(p, "prompt")) {
			continue
		}
		prompts = append(prompts, p)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompts file %s contains no prompts", path)
	}
	return prompts, nil
}

// LoadBrands parses a comma-separated brand list of the form
// "Name1;variantA;variantB,Name2" into brand definitions.
func LoadBrands(s string) []brand.Brand {
	var brands []brand.Brand
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(part, ";")
		name := strings.TrimSpace(fields[0])
		if name == "" {
			continue
		}
		b := brand.Brand{Name: name}
		for _, v := range fields[1:] {
			if v = strings.TrimSpace(v); v != "" {
				b.Variants = append(b.Variants, v)
			}
		}
		brands = append(brands, b)
	}
	return brands
}
