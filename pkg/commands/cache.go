package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/runner/cache"
)

func addCache(topLevel *cobra.Command, c *console) {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local location cache",
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached location snapshot",
		Example: `
wbc cache clear
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			cc := cache.Clear{Service: svc, Out: cmd.OutOrStdout()}
			return cc.Do(cmd.Context())
		},
	}

	cmd.AddCommand(clearCmd)
	topLevel.AddCommand(cmd)
}
