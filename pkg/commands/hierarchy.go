package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/commands/options"
	"tableflip.dev/wbc/pkg/runner/hierarchy"
)

func addHierarchy(topLevel *cobra.Command, c *console) {
	so := &options.ScopeOptions{}
	oo := &options.OutputOptions{}

	cmd := &cobra.Command{
		Use:     "hierarchy",
		Aliases: []string{"locations", "ls"},
		Short:   "List schemes, zones and routes",
		Long: `List the location tree. With --scheme only the zones of that scheme are
shown, with --zone only the routes of that zone.

The tree is cached on disk per session; run "wbc cache clear" to refetch.`,
		Example: `
wbc hierarchy
wbc hierarchy --scheme S1
wbc hierarchy --zone Z1 -o yaml
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if so.Scheme != "" && so.Zone != "" {
				return errors.New("only one of --scheme, --zone may be set")
			}
			format, err := oo.Format()
			if err != nil {
				return err
			}
			svc, err := c.service(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			h := hierarchy.Hierarchy{
				Service: svc,
				Scheme:  so.Scheme,
				Zone:    so.Zone,
				Format:  format,
			}
			return oo.HandleError(h.Do(cmd.Context()))
		},
	}

	cmd.Flags().StringVar(&so.Scheme, "scheme", "", "List the zones of this scheme.")
	cmd.Flags().StringVar(&so.Zone, "zone", "", "List the routes of this zone.")
	options.AddOutputArg(cmd, oo)
	registerLocationCompletions(cmd, c)

	topLevel.AddCommand(cmd)
}
