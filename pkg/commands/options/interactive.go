package options

import (
	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/prompt"
)

// InteractiveOptions
type InteractiveOptions struct {
	Interactive bool
}

func InteractiveArgs(cmd *cobra.Command, o *InteractiveOptions) {
	cmd.Flags().BoolVarP(&o.Interactive, "interactive", "i", false,
		`Interactive input of subcommands or options.`)
}

// Enabled reports whether to prompt: asked for explicitly, or needed because
// flags left something out and a terminal is attached.
func (o *InteractiveOptions) Enabled(incomplete bool) bool {
	return o.Interactive || (incomplete && prompt.IsInteractive())
}
