package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDecimals    = 9
	defaultConcurrency = 4
)

type Config struct {
	Log         Log               `yaml:"log"`
	MetricsAddr string            `yaml:"metrics_addr"`
	Decimals    Decimals          `yaml:"decimals"`
	ProviderRef ProviderReference `yaml:"provider"`
	RateLimit   RateLimit         `yaml:"rate_limit"`
	Concurrency int               `yaml:"concurrency"`
	Report      string            `yaml:"report"`
	Queries     []Query           `yaml:"queries"`
}

type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Decimals is the fixed-point scale of provider bars.
type Decimals struct {
	Price  int32 `yaml:"price"`
	Volume int32 `yaml:"volume"`
}

// RateLimit caps provider requests per second. Zero RPS disables the limit.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Query struct {
	Name                     string    `yaml:"name"`
	Market                   string    `yaml:"market"`
	Indicators               []string  `yaml:"indicators"`
	Resolution               string    `yaml:"resolution"`
	Mode                     string    `yaml:"mode"`
	Period                   string    `yaml:"period"`
	From                     time.Time `yaml:"from"`
	To                       time.Time `yaml:"to"`
	AsOf                     time.Time `yaml:"as_of"`
	WindowSize               int       `yaml:"window_size"`
	PriceSource              string    `yaml:"price_source"`
	VWAPAnchor               string    `yaml:"vwap_anchor"`
	Strict                   bool      `yaml:"strict"`
	MicroSummary             bool      `yaml:"micro_summary"`
	IncludeIncompleteLastBar bool      `yaml:"include_incomplete_last_bar"`
	Dump                     string    `yaml:"dump"`
	Chart                    string    `yaml:"chart"`
}

func Read(r io.Reader) (*Config, error) {
	cfg := Config{
		Decimals:    Decimals{Price: defaultDecimals, Volume: defaultDecimals},
		Concurrency: defaultConcurrency,
	}

	d := yaml.NewDecoder(r)
	err := d.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ReadFromFile reads the config at path, expanding ${VAR} references from
// the environment first.
func ReadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	return Read(strings.NewReader(os.ExpandEnv(string(data))))
}

func (c *Config) validate() error {
	var errs []error
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.Decimals.Price < 0 || c.Decimals.Volume < 0 {
		errs = append(errs, errors.New("decimals must not be negative"))
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit.RPS))
	}

	names := make(map[string]bool, len(c.Queries))
	for i, q := range c.Queries {
		if q.Name == "" {
			errs = append(errs, fmt.Errorf("query %d has no name", i))
			continue
		}
		if names[q.Name] {
			errs = append(errs, fmt.Errorf("duplicate query name: %s", q.Name))
		}
		names[q.Name] = true
	}

	return errors.Join(errs...)
}

type ProviderReference struct {
	Provider Provider
}

type Provider interface{}

// provider configs

type Emulator struct {
	// Data maps market ids to CSV files.
	Data           map[string]string `yaml:"data"`
	BaseResolution string            `yaml:"base_resolution"`
}

type Alpaca struct {
	BaseUrl string `yaml:"base_url"`
	ApiKey  string `yaml:"api_key"`
	Secret  string `yaml:"secret"`
	Feed    string `yaml:"feed"`
}

func (w *ProviderReference) UnmarshalYAML(value *yaml.Node) error {
	if len(value.Content) == 0 {
		return nil
	}

	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return errors.New("invalid provider yaml format")
	}

	key := value.Content[0].Value
	switch key {
	case "emulator":
		var emu Emulator
		if err := value.Content[1].Decode(&emu); err != nil {
			return fmt.Errorf("failed parsing emulator provider config: %w", err)
		}
		w.Provider = emu
	case "alpaca":
		var alpaca Alpaca
		if err := value.Content[1].Decode(&alpaca); err != nil {
			return fmt.Errorf("failed parsing Alpaca provider config: %w", err)
		}
		w.Provider = alpaca
	default:
		return fmt.Errorf("unknown provider type: %s", key)
	}

	return nil
}
