package sources

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses "10s"-style YAML values into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// SourceConfig defines one marketplace adapter loaded from a YAML file.
type SourceConfig struct {
	Name            string         `yaml:"name"`
	BaseURL         string         `yaml:"base_url"`
	Kind            string         `yaml:"kind"` // "html" or "json"
	Enabled         bool           `yaml:"enabled"`
	Priority        int            `yaml:"priority"`
	TrustLevel      int            `yaml:"trust_level"`
	RateLimitPerSec float64        `yaml:"rate_limit_per_sec"`
	Timeout         Duration       `yaml:"timeout"`
	MaxPages        int            `yaml:"max_pages"`
	Notes           string         `yaml:"notes,omitempty"`
	Selectors       SelectorConfig `yaml:"selectors"`
}

// SelectorConfig holds CSS selectors used by the HTML (Colly) adapter kind.
type SelectorConfig struct {
	ListingList string `yaml:"listing_list"`
	Title       string `yaml:"title"`
	Price       string `yaml:"price"`
	Mileage     string `yaml:"mileage"`
	Year        string `yaml:"year"`
	Location    string `yaml:"location"`
	URL         string `yaml:"url"`
	Image       string `yaml:"image"`
	Pagination  string `yaml:"pagination"`
}

// DefaultSourceConfig returns a SourceConfig with defaults applied.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		Kind:            "json",
		Enabled:         true,
		Priority:        100,
		TrustLevel:      5,
		RateLimitPerSec: 1,
		Timeout:         Duration(10 * time.Second),
		MaxPages:        5,
	}
}

// ValidateConfig validates a SourceConfig and returns an error describing
// all problems found, or nil if the config is valid.
func ValidateConfig(cfg SourceConfig) error {
	var errs []string

	if strings.TrimSpace(cfg.Name) == "" {
		errs = append(errs, "name: required")
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		errs = append(errs, "base_url: required")
	} else {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("base_url: must be a valid http/https URL, got %q", cfg.BaseURL))
		}
	}

	if cfg.Kind != "html" && cfg.Kind != "json" {
		errs = append(errs, fmt.Sprintf("kind: must be html or json, got %q", cfg.Kind))
	}

	if cfg.TrustLevel < 1 || cfg.TrustLevel > 10 {
		errs = append(errs, fmt.Sprintf("trust_level: must be 1-10, got %d", cfg.TrustLevel))
	}

	if cfg.RateLimitPerSec <= 0 {
		errs = append(errs, fmt.Sprintf("rate_limit_per_sec: must be > 0, got %g", cfg.RateLimitPerSec))
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("timeout: must be > 0, got %s", cfg.Timeout.Std()))
	}

	if cfg.Kind == "html" && strings.TrimSpace(cfg.Selectors.ListingList) == "" {
		errs = append(errs, "selectors.listing_list: required for kind html")
	}

	if cfg.MaxPages < 0 {
		errs = append(errs, fmt.Sprintf("max_pages: must be > 0, got %d", cfg.MaxPages))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// LoadSourceConfigs reads all *.yaml files from dir (skipping files starting
// with "_"), parses each into a SourceConfig with defaults applied, validates
// each config, and returns the slice of valid configs. If any config is
// invalid an error is returned that includes the file path and field errors.
// A non-existent directory returns an empty slice with no error.
func LoadSourceConfigs(dir string) ([]SourceConfig, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []SourceConfig{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading source config dir %s: %w", dir, err)
	}

	var configs []SourceConfig
	var validationErrors []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "_") {
			continue
		}
		if filepath.Ext(name) != ".yaml" {
			continue
		}

		filePath := filepath.Join(dir, name)
		cfg, err := loadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", filePath, err)
		}

		if err := ValidateConfig(cfg); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", filePath, err.Error()))
			continue
		}
		configs = append(configs, cfg)
	}

	if len(validationErrors) > 0 {
		return configs, fmt.Errorf("invalid source configs:\n  %s", strings.Join(validationErrors, "\n  "))
	}
	return configs, nil
}

// LoadSourceConfig reads a single YAML source config file, applies defaults,
// and validates it. Intended for CLI commands that accept an explicit path.
func LoadSourceConfig(path string) (SourceConfig, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return SourceConfig{}, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return SourceConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// loadFile reads a single YAML source config file and applies defaults.
func loadFile(path string) (SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceConfig{}, err
	}

	// Start from defaults so zero-value booleans and ints are set properly.
	cfg := DefaultSourceConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SourceConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	// Apply conditional defaults that depend on parsed values.
	if cfg.TrustLevel == 0 {
		cfg.TrustLevel = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(10 * time.Second)
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 5
	}

	return cfg, nil
}
