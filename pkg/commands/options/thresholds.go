package options

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/connection"
)

// ThresholdOptions filter disconnection candidates. Unset flags are not sent.
type ThresholdOptions struct {
	MinBalance      string
	MinUnpaidMonths int
}

func AddThresholdArgs(cmd *cobra.Command, o *ThresholdOptions) {
	cmd.Flags().StringVar(&o.MinBalance, "min-balance", "",
		"Only connections owing at least this amount.")
	cmd.Flags().IntVar(&o.MinUnpaidMonths, "min-unpaid-months", 0,
		"Only connections with at least this many unpaid months.")
}

// Balance parses --min-balance, or nil when unset. The text is kept as
// given.
func (o *ThresholdOptions) Balance() (*connection.Threshold, error) {
	t, err := connection.ParseThreshold(o.MinBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid --min-balance %q", strings.TrimSpace(o.MinBalance))
	}
	return t, nil
}

// Months returns --min-unpaid-months, or nil when the flag was not given.
func (o *ThresholdOptions) Months(cmd *cobra.Command) *int {
	if !cmd.Flags().Changed("min-unpaid-months") {
		return nil
	}
	n := o.MinUnpaidMonths
	return &n
}
