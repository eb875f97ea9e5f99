package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CTRIP_HARVEST_POI_ID.
const EnvPrefix = "CTRIP_HARVEST"

// BindFlags registers the harvest flags with defaults taken from DefaultConfig.
func BindFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()

	fs.String("endpoint", d.Endpoint, "Override the listing API URL")
	fs.Int64("poi-id", d.POIID, "Attraction (POI) id whose comments are harvested")
	fs.Int64("district-id", d.DistrictID, "District id whose attractions are harvested")
	fs.Int("start-page", d.StartPage, "First page index to request")
	fs.Int("pages", d.TotalPages, "Number of pages to request")
	fs.Int("page-size", d.PageSize, "Items per page")
	fs.Int("sort-type", d.SortType, "Comment sort order sent to the API")

	fs.Int("max-retries", d.MaxRetries, "Maximum attempts per page")
	fs.Int("concurrency", d.Concurrency, "Concurrent page fetches within a batch")
	fs.Int("batch-size", d.BatchSize, "Pages per batch")
	fs.Duration("pace-min", d.PaceMin, "Minimum pause before every attempt")
	fs.Duration("pace-max", d.PaceMax, "Maximum pause before every attempt")
	fs.Duration("batch-cooldown-min", d.BatchCooldownMin, "Minimum rest between batches")
	fs.Duration("batch-cooldown-max", d.BatchCooldownMax, "Maximum rest between batches")
	fs.Duration("retry-backoff", d.RetryBackoff, "Base of the exponential retry backoff")
	fs.Duration("retry-jitter-min", d.RetryJitterMin, "Minimum jitter added to retry backoff")
	fs.Duration("retry-jitter-max", d.RetryJitterMax, "Maximum jitter added to retry backoff")
	fs.Duration("rate-limit-cooldown", d.RateLimitCooldown, "Pause after a 429 response")
	fs.Duration("throttle-cooldown", d.ThrottleCooldown, "Pause after a 403 or an API throttling message")
	fs.Float64("rps", d.RequestsPerSecond, "Global request rate cap, 0 disables")
	fs.Duration("timeout", d.Timeout, "Per-request timeout")

	fs.StringSlice("proxy", nil, "Outbound proxy URL, repeat to rotate round-robin")
	fs.Bool("insecure", false, "Skip TLS certificate verification")

	fs.String("output", "", "Output file path (default output/<resource>_<id>.<ext>)")
	fs.String("format", d.OutputFormat, "Output format: csv, json, dual or sqlite")
	fs.String("aggregate-file", "", "CSV file every run also appends to")
	fs.Bool("fresh", false, "Truncate the output instead of appending to it")
	fs.Int("overlap-window", d.OverlapWindow, "Record keys remembered to report re-harvested records")

	fs.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolP("verbose", "v", false, "Enable verbose logging")
	fs.Bool("json", false, "Output logs in JSON")
}

// NewViper returns a viper instance reading flags from fs, CTRIP_HARVEST_* env vars and,
// when configFile is set, a YAML/TOML/JSON config file.
func NewViper(fs *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// Load builds a Config for resource from v.
func Load(v *viper.Viper, resource string) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Resource = resource
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	if cfg.OutputFile == "" {
		cfg.OutputFile = DefaultOutputFile(cfg)
	}
	return cfg, nil
}

// DefaultOutputFile names the output after the harvested resource.
func DefaultOutputFile(cfg *Config) string {
	ext := cfg.OutputFormat
	switch ext {
	case "json":
		ext = "jsonl"
	case "dual", "":
		ext = "csv"
	case "sqlite":
		ext = "db"
	}
	id := cfg.POIID
	if cfg.Resource == ResourceAttractions {
		id = cfg.DistrictID
	}
	return fmt.Sprintf("output/%s_%d.%s", cfg.Resource, id, ext)
}
