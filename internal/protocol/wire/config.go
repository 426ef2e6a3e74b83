package wire

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines bridge transport defaults.
//
// CallTimeout is zero by default: a boundary call blocks until the foreign side
// answers or the connection drops.
type Config struct {
	DialTimeout     time.Duration
	WriteTimeout    time.Duration
	CallTimeout     time.Duration
	MaxDialAttempts int
	Backoff         BackoffConfig
	TLS             TLSConfig
	// AuthToken is attached to every call frame when set.
	AuthToken       string
}

// TLSConfig configures optional TLS on the bridge stream.
type TLSConfig struct {
	Enabled            bool
	Mutual             bool
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// DefaultConfig returns the bridge transport defaults.
func DefaultConfig() Config {
	return Config{
		DialTimeout:     5 * time.Second,
		WriteTimeout:    15 * time.Second,
		CallTimeout:     0,
		MaxDialAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.CallTimeout < 0 {
		c.CallTimeout = 0
	}
	if c.MaxDialAttempts <= 0 {
		c.MaxDialAttempts = def.MaxDialAttempts
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = def.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier <= 0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = def.Backoff.MaxDelay
	}
	return c
}
