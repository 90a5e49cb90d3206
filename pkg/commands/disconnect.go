package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/commands/options"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/printers"
	"tableflip.dev/wbc/pkg/runner/disconnect"
)

func addDisconnect(topLevel *cobra.Command, c *console) {
	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Preview and dispatch bulk disconnections",
		Long: `Find connections in arrears across a scheme, zone or route and create one
disconnection task per connection.`,
	}

	addDisconnectPreview(cmd, c)
	addDisconnectDispatch(cmd, c)

	topLevel.AddCommand(cmd)
}

// candidateQuery builds the preview query from the scope and threshold flags.
func candidateQuery(cmd *cobra.Command, so *options.ScopeOptions, tho *options.ThresholdOptions) (connection.Query, error) {
	sel, err := so.Selection()
	if err != nil {
		return connection.Query{}, fault.Validation("scope", err)
	}
	balance, err := tho.Balance()
	if err != nil {
		return connection.Query{}, fault.Validation("preview", err)
	}
	return connection.Query{Scope: sel, MinBalance: balance, MinUnpaidMonths: tho.Months(cmd)}, nil
}

func addDisconnectPreview(parent *cobra.Command, c *console) {
	so := &options.ScopeOptions{}
	tho := &options.ThresholdOptions{}
	oo := &options.OutputOptions{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "List connections eligible for disconnection",
		Example: `
wbc disconnect preview --zone Z1 --min-balance 1000
wbc disconnect preview --route R1 --min-unpaid-months 3 --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := oo.Format()
			if err != nil {
				return err
			}
			q, err := candidateQuery(cmd, so, tho)
			if err != nil {
				return oo.HandleError(err)
			}
			svc, err := c.service(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			r := disconnect.Preview{Service: svc, Query: q, Format: format}
			return oo.HandleError(r.Do(cmd.Context()))
		},
	}

	options.AddScopeArgs(cmd, so, false)
	options.AddThresholdArgs(cmd, tho)
	options.AddOutputArg(cmd, oo)
	registerLocationCompletions(cmd, c)

	parent.AddCommand(cmd)
}

func addDisconnectDispatch(parent *cobra.Command, c *console) {
	so := &options.ScopeOptions{}
	tho := &options.ThresholdOptions{}
	to := &options.TaskOptions{}
	io := &options.InteractiveOptions{}
	oo := &options.OutputOptions{}
	var (
		selected    []string
		all         bool
		retryFailed bool
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Create a disconnection task for each chosen candidate",
		Long: `Create one task per chosen candidate. Candidates come from the same query
as "wbc disconnect preview"; choose them with --select or take every one with
--all. With -i the candidates are listed for toggling first.

Items are sent concurrently and each carries its own idempotency key. A
failed item does not stop the others; the report lists every outcome.`,
		Example: `
wbc disconnect dispatch --zone Z1 --min-balance 1000 --all \
    --title "Disconnect for arrears" --type t-disc --assignee u1
wbc disconnect dispatch --route R1 --select C1,C2 --type t-disc --assignee u1 \
    --title "Disconnect" --retry-failed
wbc disconnect dispatch --route R1 --type t-disc --assignee u1 --title "Disconnect" -i
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := oo.Format()
			if err != nil {
				return err
			}
			q, err := candidateQuery(cmd, so, tho)
			if err != nil {
				return oo.HandleError(err)
			}
			draft, err := to.Draft()
			if err != nil {
				return oo.HandleError(fault.Validation("task", err))
			}
			var ids []string
			for _, id := range selected {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
			svc, err := c.service(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			r := disconnect.Dispatch{
				Service:     svc,
				Request:     app.DisconnectRequest{Query: q, Select: ids, All: all, Draft: draft},
				RetryFailed: retryFailed,
				Interactive: format == printers.Pretty && io.Enabled(!all && len(ids) == 0),
				Format:      format,
			}
			return oo.HandleError(r.Do(cmd.Context()))
		},
	}

	options.AddScopeArgs(cmd, so, false)
	options.AddThresholdArgs(cmd, tho)
	options.AddTaskArgs(cmd, to)
	cmd.Flags().StringSliceVar(&selected, "select", nil, "Candidate connection ids to act on, comma separated.")
	cmd.Flags().BoolVar(&all, "all", false, "Act on every candidate.")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Re-send failed items once with their original keys.")
	options.InteractiveArgs(cmd, io)
	options.AddOutputArg(cmd, oo)
	registerLocationCompletions(cmd, c)

	parent.AddCommand(cmd)
}
