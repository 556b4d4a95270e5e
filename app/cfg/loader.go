package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

// DefaultProxyURL is the raw CORS proxy endpoint used by serve mode.
const DefaultProxyURL = "https://api.allorigins.win/raw?url="

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	Mode string `long:"mode" env:"MODE" default:"snapshot" choice:"snapshot" choice:"serve" description:"Execution mode"`

	// Aggregation configuration
	OPMLFile     string `long:"opml-file" env:"OPML_FILE" default:"feedlist.opml" description:"OPML file listing the feeds"`
	OutputFile   string `long:"output-file" env:"OUTPUT_FILE" default:"feeds.json" description:"Snapshot output path"`
	MaxDays      int    `long:"max-days" env:"MAX_DAYS" default:"30" description:"Recency window in days for snapshots"`
	Concurrency  int    `long:"concurrency" env:"CONCURRENCY" default:"6" description:"Maximum simultaneous feed fetches"`
	MaxItems     int    `long:"max-items" env:"MAX_ITEMS" default:"2000" description:"Maximum items written to a snapshot"`
	FetchTimeout int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"20" description:"Per-attempt fetch timeout in seconds"`
	FetchRetries int    `long:"fetch-retries" env:"FETCH_RETRIES" default:"2" description:"Retries after a failed fetch attempt"`
	RetryDelayMS int    `long:"retry-delay-ms" env:"RETRY_DELAY_MS" default:"1000" description:"Base retry backoff in milliseconds"`
	Interval     int    `long:"interval" env:"INTERVAL" default:"0" description:"Regenerate the snapshot every N seconds (0 runs once)"`
	RulesFile    string `long:"rules" env:"RULES_FILE" description:"YAML file with include/exclude keyword rules"`
	DBPath       string `long:"db-path" env:"DB_PATH" description:"SQLite database for run history (empty disables it)"`

	// Serve configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	ProxyURL     string `long:"proxy-url" env:"PROXY_URL" default:"https://api.allorigins.win/raw?url=" description:"Proxy endpoint prefix for serve mode fetches"`
	Direct       bool   `long:"direct" env:"DIRECT" description:"Fetch feeds directly in serve mode"`
	DefaultHours int    `long:"default-hours" env:"DEFAULT_HOURS" default:"24" description:"Initial recency window in hours for serve mode"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Digest/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the process arguments and environment. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs is Load with explicit arguments; nil means os.Args[1:].
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Mode:         Mode(raw.Mode),
		OPMLFile:     raw.OPMLFile,
		OutputFile:   raw.OutputFile,
		MaxDays:      raw.MaxDays,
		Concurrency:  raw.Concurrency,
		MaxItems:     raw.MaxItems,
		FetchTimeout: time.Duration(raw.FetchTimeout) * time.Second,
		FetchRetries: raw.FetchRetries,
		RetryDelay:   time.Duration(raw.RetryDelayMS) * time.Millisecond,
		Interval:     time.Duration(raw.Interval) * time.Second,
		RulesFile:    raw.RulesFile,
		DBPath:       raw.DBPath,
		Port:         raw.Port,
		ProxyURL:     raw.ProxyURL,
		DefaultHours: raw.DefaultHours,
		UserAgent:    raw.UserAgent,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	if raw.Direct {
		cfg.ProxyURL = ""
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	positiveFields := map[string]int{
		"max days":      c.MaxDays,
		"concurrency":   c.Concurrency,
		"default hours": c.DefaultHours,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"max items":     c.MaxItems,
		"fetch retries": c.FetchRetries,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.RetryDelay < 0 || c.Interval < 0 {
		return fmt.Errorf("retry delay and interval must be non-negative")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
