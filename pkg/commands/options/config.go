package options

import (
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/store"
)

// ConfigOptions are the connection settings every command shares. Values
// left unset fall back to .wbc.yaml and WBC_* variables.
type ConfigOptions struct {
	APIURL      string
	Timeout     time.Duration
	Session     string
	SessionFile string
	CachePath   string
	Concurrency int
	Retry       bool
}

func AddConfigArgs(cmd *cobra.Command, o *ConfigOptions) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.APIURL, "api-url", "", "Base URL of the billing service.")
	f.DurationVar(&o.Timeout, "timeout", 30*time.Second, "Timeout for each request.")
	f.StringVar(&o.Session, "session", "", "Session cookie value.")
	f.StringVar(&o.SessionFile, "session-file", "", "File holding the session cookie; watched for changes.")
	f.StringVar(&o.CachePath, "cache-path", "", "Directory for cached location snapshots.")
	f.IntVar(&o.Concurrency, "concurrency", 4, "Maximum task creations in flight.")
	f.BoolVar(&o.Retry, "retry", true, "Retry a task creation once after a transient failure.")
}

// Load resolves the configuration for cmd.
func (o *ConfigOptions) Load(cmd *cobra.Command) (*store.Config, error) {
	return store.LoadConfig(cmd.Flags())
}
