package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config keys.
const (
	KeyAPIURL              = "api.url"
	KeyAPITimeout          = "api.timeout"
	KeySessionCookie       = "session.cookie"
	KeySessionFile         = "session.file"
	KeyCachePath           = "cache.path"
	KeyDispatchConcurrency = "dispatch.concurrency"
	KeyDispatchRetry       = "dispatch.retry"
	KeySearchDebounce      = "search.debounce"
)

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"api-url":      KeyAPIURL,
	"timeout":      KeyAPITimeout,
	"session":      KeySessionCookie,
	"session-file": KeySessionFile,
	"cache-path":   KeyCachePath,
	"concurrency":  KeyDispatchConcurrency,
	"retry":        KeyDispatchRetry,
}

// Config is the resolved console configuration.
type Config struct {
	APIURL        string        `json:"apiUrl" yaml:"apiUrl"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	SessionCookie string        `json:"-" yaml:"-"`
	SessionFile   string        `json:"sessionFile,omitempty" yaml:"sessionFile,omitempty"`
	CachePath     string        `json:"cachePath" yaml:"cachePath"`
	Concurrency   int           `json:"concurrency" yaml:"concurrency"`
	Retry         bool          `json:"retry" yaml:"retry"`
	Debounce      time.Duration `json:"debounce" yaml:"debounce"`
}

// LoadConfig reads .wbc.yaml from $WBC_CONFIG_PATH or the working directory,
// then WBC_* environment variables, then any flag changed in fs. fs may be
// nil.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyAPITimeout, 30*time.Second)
	v.SetDefault(KeyCachePath, "~/.wbc/cache")
	v.SetDefault(KeyDispatchConcurrency, 4)
	v.SetDefault(KeyDispatchRetry, true)
	v.SetDefault(KeySearchDebounce, 500*time.Millisecond)

	v.SetConfigName(".wbc") // .yaml is implicit
	v.SetEnvPrefix("WBC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if override := os.Getenv("WBC_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("store: read config: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("store: bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		APIURL:        strings.TrimSpace(v.GetString(KeyAPIURL)),
		Timeout:       v.GetDuration(KeyAPITimeout),
		SessionCookie: strings.TrimSpace(v.GetString(KeySessionCookie)),
		Concurrency:   v.GetInt(KeyDispatchConcurrency),
		Retry:         v.GetBool(KeyDispatchRetry),
		Debounce:      v.GetDuration(KeySearchDebounce),
	}
	var err error
	if cfg.CachePath, err = expand(v.GetString(KeyCachePath)); err != nil {
		return nil, err
	}
	if cfg.SessionFile, err = expand(v.GetString(KeySessionFile)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expand(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	out, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("store: expand %q: %w", path, err)
	}
	return out, nil
}

// Validate reports missing settings needed to reach the service.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("store: %s is required (set it in .wbc.yaml, WBC_API_URL or --api-url)", KeyAPIURL)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("store: %s must be at least 1, got %d", KeyDispatchConcurrency, c.Concurrency)
	}
	return nil
}

// Session returns the session cookie: the configured value, or else the
// trimmed contents of the session file. Empty means anonymous.
func (c *Config) Session() (string, error) {
	if c.SessionCookie != "" {
		return c.SessionCookie, nil
	}
	if c.SessionFile == "" {
		return "", nil
	}
	return ReadSessionFile(c.SessionFile)
}

// ReadSessionFile reads a session cookie file. A missing file is an empty
// session.
func ReadSessionFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("store: read session file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
