package commands

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/location"
)

func addCompletions(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "completion",
		Short: "Generates bash completion scripts",
		Long: `To load completion run

. <(wbc completion)

To configure your bash shell to load completions for each session add to your bashrc

# ~/.bashrc or ~/.profile
. <(wbc completion)
`,
		Run: func(cmd *cobra.Command, args []string) {
			_ = topLevel.GenBashCompletion(os.Stdout)
		},
	}

	topLevel.AddCommand(cmd)
}

// registerLocationCompletions completes the --scheme, --zone and --route
// flags of cmd from the cached hierarchy.
func registerLocationCompletions(cmd *cobra.Command, c *console) {
	complete := func(list func(h *location.Hierarchy) []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return func(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return locationCompletions(cmd, c, toComplete, list), cobra.ShellCompDirectiveNoFileComp
		}
	}
	flags := map[string]func(h *location.Hierarchy) []string{
		"scheme": func(h *location.Hierarchy) []string {
			var out []string
			for _, s := range h.Schemes() {
				out = append(out, s.ID+"\t"+s.Name)
			}
			return out
		},
		"zone": func(h *location.Hierarchy) []string {
			var out []string
			for _, s := range h.Schemes() {
				for _, z := range s.Zones {
					out = append(out, z.ID+"\t"+z.Name+", "+s.Name)
				}
			}
			return out
		},
		"route": func(h *location.Hierarchy) []string {
			var out []string
			for _, s := range h.Schemes() {
				for _, z := range s.Zones {
					for _, r := range z.Routes {
						out = append(out, r.ID+"\t"+r.Name+", "+z.Name)
					}
				}
			}
			return out
		},
	}
	for name, list := range flags {
		if cmd.Flags().Lookup(name) == nil {
			continue
		}
		_ = cmd.RegisterFlagCompletionFunc(name, complete(list))
	}
}

func locationCompletions(cmd *cobra.Command, c *console, toComplete string, list func(h *location.Hierarchy) []string) []string {
	svc, err := c.service(cmd)
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tree, err := svc.Hierarchy(ctx)
	if err != nil {
		return nil
	}
	var out []string
	for _, candidate := range list(tree) {
		if strings.HasPrefix(candidate, toComplete) {
			out = append(out, candidate)
		}
	}
	return out
}
