package commands

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/commands/options"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/printers"
	"tableflip.dev/wbc/pkg/runner/tasks"
)

func addTask(topLevel *cobra.Command, c *console) {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create and assign field tasks",
	}

	addTaskCreate(cmd, c)
	addTaskAssign(cmd, c)
	addTaskTypes(cmd, c)
	addTaskAssignees(cmd, c)

	topLevel.AddCommand(cmd)
}

func addTaskCreate(parent *cobra.Command, c *console) {
	to := &options.TaskOptions{}
	so := &options.ScopeOptions{}
	io := &options.InteractiveOptions{}
	oo := &options.OutputOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task, optionally targeting a location or connection",
		Long: `Create a single task. At most one of --scheme, --zone, --route or
--connection names what the task is about.

Without --title, --type and --assignee on a terminal, or with -i, a wizard
asks for the details, then the location, then the connection.`,
		Example: `
wbc task create --title "Read meter" --type t-read --assignee u1 --connection C3
wbc task create --title "Flush mains" --type t-maint --assignee u2 --zone Z1 --due 2026-11-02
wbc task create -i
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := oo.Format()
			if err != nil {
				return err
			}
			draft, err := to.Draft()
			if err != nil {
				return oo.HandleError(fault.Validation("task", err))
			}
			sel, err := so.Selection()
			if err != nil {
				return oo.HandleError(fault.Validation("scope", err))
			}
			svc, err := c.service(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			r := tasks.Create{
				Service:     svc,
				Draft:       draft.WithScope(sel),
				Interactive: format == printers.Pretty && io.Enabled(to.Incomplete()),
				Format:      format,
			}
			return oo.HandleError(r.Do(cmd.Context()))
		},
	}

	options.AddTaskArgs(cmd, to)
	options.AddScopeArgs(cmd, so, true)
	options.InteractiveArgs(cmd, io)
	options.AddOutputArg(cmd, oo)
	registerLocationCompletions(cmd, c)

	parent.AddCommand(cmd)
}

func addTaskAssign(parent *cobra.Command, c *console) {
	var (
		assignee string
		note     string
	)
	io := &options.InteractiveOptions{}
	oo := &options.OutputOptions{}

	cmd := &cobra.Command{
		Use:   "assign TASK",
		Short: "Reassign an existing task",
		Example: `
wbc task assign 7f1c --assignee u2 --note "covering for Amina"
wbc task assign 7f1c -i
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := oo.Format()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("requires a task id")
			}
			svc, err := c.service(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			r := tasks.Assign{
				Service:     svc,
				TaskID:      id,
				Assignee:    assignee,
				Note:        note,
				Interactive: format == printers.Pretty && io.Enabled(strings.TrimSpace(assignee) == ""),
				Format:      format,
			}
			return oo.HandleError(r.Do(cmd.Context()))
		},
	}

	cmd.Flags().StringVar(&assignee, "assignee", "", "New assignee user id.")
	cmd.Flags().StringVar(&note, "note", "", "Note for the new assignee.")
	options.InteractiveArgs(cmd, io)
	options.AddOutputArg(cmd, oo)

	parent.AddCommand(cmd)
}

func addTaskTypes(parent *cobra.Command, c *console) {
	oo := &options.OutputOptions{}

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List task types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := oo.Format()
			if err != nil {
				return err
			}
			svc, err := c.service(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			r := tasks.Types{Service: svc, Format: format}
			return oo.HandleError(r.Do(cmd.Context()))
		},
	}

	options.AddOutputArg(cmd, oo)
	parent.AddCommand(cmd)
}

func addTaskAssignees(parent *cobra.Command, c *console) {
	oo := &options.OutputOptions{}

	cmd := &cobra.Command{
		Use:     "assignees",
		Aliases: []string{"users"},
		Short:   "List people tasks can be assigned to",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := oo.Format()
			if err != nil {
				return err
			}
			svc, err := c.service(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			r := tasks.Assignees{Service: svc, Format: format}
			return oo.HandleError(r.Do(cmd.Context()))
		},
	}

	options.AddOutputArg(cmd, oo)
	parent.AddCommand(cmd)
}
