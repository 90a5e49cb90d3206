package printers

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/dispatch"
	"tableflip.dev/wbc/pkg/eligibility"
	"tableflip.dev/wbc/pkg/guard"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/task"
)

// PrettyPrint renders results for a terminal.
type PrettyPrint struct {
	// Out defaults to color.Output.
	Out    io.Writer
	ShowID bool
}

func (pp *PrettyPrint) out() io.Writer {
	if pp.Out == nil {
		return color.Output
	}
	return pp.Out
}

func (pp *PrettyPrint) table() *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	return tbl
}

func (pp *PrettyPrint) flush(tbl *uitable.Table) {
	_, _ = fmt.Fprintln(pp.out(), tbl)
}

func (pp *PrettyPrint) NewLine() {
	_, _ = fmt.Fprintln(pp.out(), "")
}

func (pp *PrettyPrint) Title(title string) {
	t := color.New(color.Bold, color.Underline)
	_, _ = t.Fprintln(pp.out(), title)
}

func (pp *PrettyPrint) TitleWithCount(title string, count int, noun string) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	_, _ = t.Fprint(pp.out(), title)
	_, _ = c.Fprintf(pp.out(), " - %d %s", count, noun)
	if count != 1 {
		_, _ = c.Fprint(pp.out(), "s")
	}
	_, _ = c.Fprintln(pp.out(), "")
}

func (pp *PrettyPrint) none() {
	f := color.New(color.Faint, color.Italic)
	_, _ = f.Fprint(pp.out(), " none\n\n")
}

func (pp *PrettyPrint) id(id string) string {
	return color.New(color.FgHiYellow, color.Faint).Sprint(id)
}

// Hierarchy prints the scheme tree indented by level.
func (pp *PrettyPrint) Hierarchy(tree *location.Hierarchy) {
	schemes := tree.Schemes()
	pp.TitleWithCount("Schemes", len(schemes), "scheme")
	if len(schemes) == 0 {
		pp.none()
		return
	}
	tbl := pp.table()
	for _, s := range schemes {
		tbl.AddRow(color.New(color.Bold).Sprint(s.Name), pp.id(s.ID))
		for _, z := range s.Zones {
			tbl.AddRow("  "+z.Name, pp.id(z.ID))
			for _, r := range z.Routes {
				tbl.AddRow("    "+r.Name, pp.id(r.ID))
			}
		}
	}
	pp.flush(tbl)
}

// Zones prints the zones of one scheme.
func (pp *PrettyPrint) Zones(schemeID string, zones []location.Zone) {
	pp.TitleWithCount("Zones of "+schemeID, len(zones), "zone")
	if len(zones) == 0 {
		pp.none()
		return
	}
	tbl := pp.table()
	tbl.AddRow("ID", "NAME", "ROUTES")
	for _, z := range zones {
		tbl.AddRow(pp.id(z.ID), z.Name, len(z.Routes))
	}
	pp.flush(tbl)
}

// Routes prints the routes of one zone.
func (pp *PrettyPrint) Routes(zoneID string, routes []location.Route) {
	pp.TitleWithCount("Routes of "+zoneID, len(routes), "route")
	if len(routes) == 0 {
		pp.none()
		return
	}
	tbl := pp.table()
	tbl.AddRow("ID", "NAME")
	for _, r := range routes {
		tbl.AddRow(pp.id(r.ID), r.Name)
	}
	pp.flush(tbl)
}

func status(s connection.Status) string {
	switch s {
	case connection.StatusActive:
		return color.GreenString(string(s))
	case connection.StatusDisconnected, connection.StatusInactive:
		return color.RedString(string(s))
	case connection.StatusPendingPayment, connection.StatusPendingMeter, connection.StatusPendingConnection:
		return color.YellowString(string(s))
	}
	return string(s)
}

// Candidates prints a preview. Selected rows are marked.
func (pp *PrettyPrint) Candidates(set *eligibility.CandidateSet) {
	q := set.Query()
	pp.TitleWithCount("Disconnection candidates in "+q.Scope.String(), set.Len(), "connection")
	if set.IsEmpty() {
		pp.none()
		return
	}
	tbl := pp.table()
	tbl.AddRow("", "ID", "NUMBER", "CUSTOMER", "STATUS", "BALANCE", "UNPAID MONTHS")
	for _, c := range set.Items() {
		mark := " "
		if set.IsSelected(c.ID) {
			mark = color.New(color.FgGreen, color.Bold).Sprint("*")
		}
		tbl.AddRow(mark, pp.id(c.ID), c.Number, c.CustomerName, status(c.Status), c.Balance.StringFixed(2), c.UnpaidMonths)
	}
	pp.flush(tbl)
}

// Connections prints a plain connection listing.
func (pp *PrettyPrint) Connections(conns []connection.Connection) {
	pp.TitleWithCount("Connections", len(conns), "connection")
	if len(conns) == 0 {
		pp.none()
		return
	}
	tbl := pp.table()
	tbl.AddRow("ID", "NUMBER", "CUSTOMER", "STATUS", "ROUTE", "METER")
	for _, c := range conns {
		meter := "-"
		if c.HasMeter() {
			meter = *c.MeterID
		}
		tbl.AddRow(pp.id(c.ID), c.Number, c.CustomerName, status(c.Status), c.RouteID, meter)
	}
	pp.flush(tbl)
}

// Summary prints "created X of Y; N failed" colored by outcome.
func (pp *PrettyPrint) Summary(s dispatch.Summary) {
	c := color.New(color.FgGreen, color.Bold)
	switch s.Outcome {
	case dispatch.OutcomePartial:
		c = color.New(color.FgYellow, color.Bold)
	case dispatch.OutcomeNone:
		c = color.New(color.FgRed, color.Bold)
	}
	_, _ = c.Fprintln(pp.out(), s.String())
	if s.Unauthorized {
		_, _ = color.New(color.FgRed).Fprintln(pp.out(), "permission denied for at least one item")
	}
}

// Report prints each dispatch item followed by the summary.
func (pp *PrettyPrint) Report(rep app.DispatchReport) {
	pp.TitleWithCount("Dispatch to "+rep.Scope.String(), len(rep.Items), "task")
	tbl := pp.table()
	tbl.AddRow("", "CONNECTION", "NUMBER", "TASK", "DETAIL")
	for _, it := range rep.Items {
		mark := color.GreenString("ok")
		detail := ""
		if !it.Success {
			mark = color.RedString("failed")
			detail = it.Error
		}
		if it.Attempts > 1 {
			detail = strings.TrimSpace(fmt.Sprintf("%s (%d attempts)", detail, it.Attempts))
		}
		tbl.AddRow(mark, pp.id(it.ConnectionID), it.Number, it.TaskID, detail)
	}
	pp.flush(tbl)
	pp.Summary(rep.Summary)
}

// Guard prints an allowed/blocked answer for one action.
func (pp *PrettyPrint) Guard(action string, r guard.Result) {
	if r.Allowed {
		_, _ = fmt.Fprintf(pp.out(), "%s: %s\n", action, color.GreenString("allowed"))
		return
	}
	_, _ = fmt.Fprintf(pp.out(), "%s: %s (%s)\n", action, color.RedString("blocked"), r.Reason)
}

// Task prints a created or reassigned task.
func (pp *PrettyPrint) Task(t task.Task) {
	pp.Title("Task " + t.ID)
	tbl := pp.table()
	tbl.AddRow("Title:", t.Title)
	tbl.AddRow("Type:", t.TypeID)
	tbl.AddRow("Priority:", string(t.Priority))
	if t.Status != "" {
		tbl.AddRow("Status:", t.Status)
	}
	if t.DueDate != nil {
		tbl.AddRow("Due:", t.DueDate.Format("2006-01-02"))
	}
	tbl.AddRow("Assignee:", t.AssigneeID)
	tbl.AddRow("Target:", t.Scope().String())
	pp.flush(tbl)
}

// TaskTypes prints the task types.
func (pp *PrettyPrint) TaskTypes(types []task.Type) {
	pp.TitleWithCount("Task types", len(types), "type")
	tbl := pp.table()
	for _, t := range types {
		tbl.AddRow(pp.id(t.ID), t.Name)
	}
	pp.flush(tbl)
}

// Assignees prints field staff.
func (pp *PrettyPrint) Assignees(people []task.Assignee) {
	pp.TitleWithCount("Assignees", len(people), "assignee")
	tbl := pp.table()
	for _, a := range people {
		tbl.AddRow(pp.id(a.ID), a.Name, a.Role)
	}
	pp.flush(tbl)
}
