package cfg

import "time"

type Mode string

const (
	ModeSnapshot Mode = "snapshot"
	ModeServe    Mode = "serve"
)

type Cfg struct {
	Mode Mode

	// Aggregation
	OPMLFile     string
	OutputFile   string
	MaxDays      int
	Concurrency  int
	MaxItems     int
	FetchTimeout time.Duration
	FetchRetries int
	RetryDelay   time.Duration
	Interval     time.Duration
	RulesFile    string
	DBPath       string

	// Serve mode
	Port         string
	ProxyURL     string
	DefaultHours int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// Window returns the snapshot recency window.
func (c *Cfg) Window() time.Duration {
	return time.Duration(c.MaxDays) * 24 * time.Hour
}
