package commands

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/commands/options"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/runner/guard"
)

func addGuard(topLevel *cobra.Command, c *console) {
	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Check whether an action is allowed",
		Long: `Evaluate the billing rules for an action without performing it. The
answer is "allowed" or "blocked" with the reason.`,
	}

	for _, g := range []struct {
		use    string
		short  string
		action guard.Action
	}{
		{"meter", "Can a meter be assigned to the connection?", guard.AssignMeter},
		{"disconnect", "Can the connection be disconnected?", guard.Disconnect},
		{"reconnect", "Can the connection be reconnected?", guard.Reconnect},
	} {
		addConnectionGuard(cmd, c, g.use, g.short, g.action)
	}
	addBillGuard(cmd)

	topLevel.AddCommand(cmd)
}

func addConnectionGuard(parent *cobra.Command, c *console, use, short string, action guard.Action) {
	oo := &options.OutputOptions{}

	cmd := &cobra.Command{
		Use:     use + " CONNECTION",
		Short:   short,
		Example: fmt.Sprintf("\nwbc guard %s C1\n", use),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := oo.Format()
			if err != nil {
				return err
			}
			svc, err := c.service(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			r := guard.Connection{
				Service:      svc,
				ConnectionID: strings.TrimSpace(args[0]),
				Action:       action,
				Format:       format,
			}
			return oo.HandleError(r.Do(cmd.Context()))
		},
	}

	options.AddOutputArg(cmd, oo)
	parent.AddCommand(cmd)
}

func addBillGuard(parent *cobra.Command) {
	var (
		status string
		paid   string
		period string
	)
	oo := &options.OutputOptions{}

	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Can the bill be cancelled?",
		Long: `Only an UNPAID bill with nothing paid, issued for the current month, can be
cancelled. No call is made to the billing service.`,
		Example: `
wbc guard bill --status UNPAID --period 2026-10
wbc guard bill --status PARTIALLY_PAID --paid 120.50 --period 2026-10 -o yaml
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := oo.Format()
			if err != nil {
				return err
			}
			bill, err := parseBill(status, paid, period)
			if err != nil {
				return oo.HandleError(fault.Validation("bill", err))
			}
			r := guard.Bill{Bill: bill, Format: format}
			return oo.HandleError(r.Do(cmd.Context()))
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Bill status: UNPAID, PARTIALLY_PAID, PAID or CANCELLED.")
	cmd.Flags().StringVar(&paid, "paid", "0", "Amount already paid.")
	cmd.Flags().StringVar(&period, "period", "", `Billing month, example: --period="2026-10".`)
	_ = cmd.MarkFlagRequired("status")
	_ = cmd.MarkFlagRequired("period")
	options.AddOutputArg(cmd, oo)

	parent.AddCommand(cmd)
}

func parseBill(status, paid, period string) (connection.Bill, error) {
	s, err := connection.ParseBillStatus(status)
	if err != nil {
		return connection.Bill{}, err
	}
	p, err := connection.ParsePeriod(period)
	if err != nil {
		return connection.Bill{}, err
	}
	amount := decimal.Zero
	if raw := strings.TrimSpace(paid); raw != "" {
		if amount, err = decimal.NewFromString(raw); err != nil {
			return connection.Bill{}, fmt.Errorf("invalid --paid %q: %w", raw, err)
		}
	}
	return connection.Bill{Status: s, AmountPaid: amount, Period: p}, nil
}
