package pathao

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects the provider environment.
type Mode string

const (
	ModeSandbox Mode = "sandbox"
	ModeLive    Mode = "live"
)

const (
	DefaultSandboxURL = "https://courier-api-sandbox.pathao.com"
	DefaultLiveURL    = "https://api-hermes.pathao.com"
)

// Credentials for one provider environment.
type Credentials struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	StoreID      int64
}

// Config picks sandbox or live credentials by Mode. Business code never sees
// which one is in use.
type Config struct {
	Mode              Mode
	Sandbox           Credentials
	Live              Credentials
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
	DedupeTTL         time.Duration
}

// active returns the credentials of the selected mode with defaults applied.
func (c Config) active() (Credentials, error) {
	var creds Credentials
	switch c.Mode {
	case ModeLive:
		creds = c.Live
		if creds.BaseURL == "" {
			creds.BaseURL = DefaultLiveURL
		}
	case ModeSandbox, "":
		creds = c.Sandbox
		if creds.BaseURL == "" {
			creds.BaseURL = DefaultSandboxURL
		}
	default:
		return Credentials{}, fmt.Errorf("unknown courier mode %q", c.Mode)
	}
	creds.BaseURL = strings.TrimSuffix(creds.BaseURL, "/")
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return Credentials{}, fmt.Errorf("courier %s credentials are not configured", c.modeName())
	}
	if creds.StoreID <= 0 {
		return Credentials{}, fmt.Errorf("courier %s store id is not configured", c.modeName())
	}
	return creds, nil
}

func (c Config) modeName() string {
	if c.Mode == "" {
		return string(ModeSandbox)
	}
	return string(c.Mode)
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = 24 * time.Hour
	}
	return c
}
