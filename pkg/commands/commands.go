package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	base "github.com/n3wscott/cli-base/pkg/commands/options"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/commands/options"
)

// console carries the persistent flags and the process logger to every
// subcommand.
type console struct {
	config options.ConfigOptions
	log    options.LogOptions
	logger *zap.Logger
}

// service loads the configuration for cmd and builds the console service.
func (c *console) service(cmd *cobra.Command) (*app.Service, error) {
	cfg, err := c.config.Load(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, c.logger)
}

func New() *cobra.Command {
	c := &console{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "wbc",
		Short: base.Wrap80("Water billing console: browse the network, dispatch field tasks and check billing rules."),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.log.Logger()
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	options.AddConfigArgs(cmd, &c.config)
	options.AddLogArgs(cmd, &c.log)

	addCommands(cmd, c)
	return cmd
}

func addCommands(topLevel *cobra.Command, c *console) {
	addHierarchy(topLevel, c)
	addTask(topLevel, c)
	addDisconnect(topLevel, c)
	addGuard(topLevel, c)
	addCache(topLevel, c)
	addMCP(topLevel, c)
	addVersion(topLevel)
	addCompletions(topLevel)
}
