package config

import (
	"fmt"
	"net/url"
	"time"
)

// Resources the harvester knows how to walk.
const (
	ResourceComments    = "comments"
	ResourceAttractions = "attractions"
)

// Config holds harvester configuration.
// The `mapstructure` tags map fields to the viper keys bound from flags, env and config file.
type Config struct {
	Resource string `mapstructure:"-"`

	Endpoint   string `mapstructure:"endpoint"`
	POIID      int64  `mapstructure:"poi-id"`
	DistrictID int64  `mapstructure:"district-id"`
	StartPage  int    `mapstructure:"start-page"`
	TotalPages int    `mapstructure:"pages"`
	PageSize   int    `mapstructure:"page-size"`
	SortType   int    `mapstructure:"sort-type"`

	MaxRetries        int           `mapstructure:"max-retries"`
	Concurrency       int           `mapstructure:"concurrency"`
	BatchSize         int           `mapstructure:"batch-size"`
	PaceMin           time.Duration `mapstructure:"pace-min"`
	PaceMax           time.Duration `mapstructure:"pace-max"`
	BatchCooldownMin  time.Duration `mapstructure:"batch-cooldown-min"`
	BatchCooldownMax  time.Duration `mapstructure:"batch-cooldown-max"`
	RetryBackoff      time.Duration `mapstructure:"retry-backoff"`
	RetryJitterMin    time.Duration `mapstructure:"retry-jitter-min"`
	RetryJitterMax    time.Duration `mapstructure:"retry-jitter-max"`
	RateLimitCooldown time.Duration `mapstructure:"rate-limit-cooldown"`
	ThrottleCooldown  time.Duration `mapstructure:"throttle-cooldown"`
	RequestsPerSecond float64       `mapstructure:"rps"`
	Timeout           time.Duration `mapstructure:"timeout"`

	Proxies            []string `mapstructure:"proxy"`
	InsecureSkipVerify bool     `mapstructure:"insecure"`

	OutputFile    string `mapstructure:"output"`
	OutputFormat  string `mapstructure:"format"` // csv, json, dual or sqlite
	AggregateFile string `mapstructure:"aggregate-file"`
	Fresh         bool   `mapstructure:"fresh"`
	OverlapWindow int    `mapstructure:"overlap-window"`

	MetricsAddr string `mapstructure:"metrics-addr"`
	Verbose     bool   `mapstructure:"verbose"`
	JSON        bool   `mapstructure:"json"`
}

// DefaultConfig returns the pacing the listing API tolerates without blocking.
func DefaultConfig() *Config {
	return &Config{
		Resource:          ResourceComments,
		POIID:             76342,
		DistrictID:        104,
		StartPage:         1,
		TotalPages:        500,
		PageSize:          10,
		SortType:          3,
		MaxRetries:        5,
		Concurrency:       5,
		BatchSize:         50,
		PaceMin:           2 * time.Second,
		PaceMax:           6 * time.Second,
		BatchCooldownMin:  10 * time.Second,
		BatchCooldownMax:  30 * time.Second,
		RetryBackoff:      time.Second,
		RetryJitterMin:    time.Second,
		RetryJitterMax:    3 * time.Second,
		RateLimitCooldown: 60 * time.Second,
		ThrottleCooldown:  30 * time.Second,
		Timeout:           15 * time.Second,
		OutputFormat:      "csv",
		OverlapWindow:     100000,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	switch c.Resource {
	case ResourceComments:
		if c.POIID <= 0 {
			return fmt.Errorf("poi id must be positive")
		}
	case ResourceAttractions:
		if c.DistrictID <= 0 {
			return fmt.Errorf("district id must be positive")
		}
	default:
		return fmt.Errorf("unknown resource %q", c.Resource)
	}

	if c.Endpoint != "" {
		parsedURL, err := url.Parse(c.Endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("endpoint must include a host")
		}
	}
	for _, p := range c.Proxies {
		parsed, err := url.Parse(p)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("invalid proxy %q", p)
		}
	}

	if c.StartPage < 0 {
		return fmt.Errorf("start page cannot be negative")
	}
	if c.TotalPages <= 0 {
		return fmt.Errorf("total pages must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if err := validRange("pace", c.PaceMin, c.PaceMax); err != nil {
		return err
	}
	if err := validRange("batch cooldown", c.BatchCooldownMin, c.BatchCooldownMax); err != nil {
		return err
	}
	if err := validRange("retry jitter", c.RetryJitterMin, c.RetryJitterMax); err != nil {
		return err
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RateLimitCooldown < 0 || c.ThrottleCooldown < 0 {
		return fmt.Errorf("cooldowns cannot be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual", "sqlite":
	default:
		return fmt.Errorf("output format must be csv, json, dual or sqlite")
	}
	if c.OverlapWindow < 0 {
		return fmt.Errorf("overlap window cannot be negative")
	}

	return nil
}

func validRange(name string, min, max time.Duration) error {
	if min < 0 || max < 0 {
		return fmt.Errorf("%s range cannot be negative", name)
	}
	if min > max {
		return fmt.Errorf("%s min (%s) cannot exceed max (%s)", name, min, max)
	}
	return nil
}
