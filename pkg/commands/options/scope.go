package options

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/scope"
)

// ScopeOptions
type ScopeOptions struct {
	Scheme     string
	Zone       string
	Route      string
	Connection string
}

func AddScopeArgs(cmd *cobra.Command, o *ScopeOptions, connection bool) {
	cmd.Flags().StringVar(&o.Scheme, "scheme", "", "Scheme id.")
	cmd.Flags().StringVar(&o.Zone, "zone", "", "Zone id.")
	cmd.Flags().StringVar(&o.Route, "route", "", "Route id.")
	if connection {
		cmd.Flags().StringVar(&o.Connection, "connection", "", "Connection id.")
	}
}

// Selection returns the one scope given. More than one is an error.
func (o *ScopeOptions) Selection() (scope.Selection, error) {
	var (
		out scope.Selection
		set []string
	)
	for _, c := range []struct {
		kind scope.Kind
		id   string
	}{
		{scope.Scheme, o.Scheme},
		{scope.Zone, o.Zone},
		{scope.Route, o.Route},
		{scope.Connection, o.Connection},
	} {
		if strings.TrimSpace(c.id) == "" {
			continue
		}
		set = append(set, "--"+string(c.kind))
		out = scope.Of(c.kind, c.id)
	}
	if len(set) > 1 {
		return scope.Selection{}, fmt.Errorf("only one of %s may be set", strings.Join(set, ", "))
	}
	return out, nil
}
