// Package mcp provides the Model Context Protocol server integration for wbc.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/guard"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/printers"
	"tableflip.dev/wbc/pkg/scope"
	"tableflip.dev/wbc/pkg/task"
)

const layoutISO = "2006-01-02"

// Service adapts console operations to tool arguments and results.
type Service struct {
	Console *app.Service
	// Now defaults to the wall clock.
	Now func() time.Time
}

// NewService wraps a console service.
func NewService(console *app.Service) *Service {
	return &Service{Console: console, Now: time.Now}
}

func (s *Service) ready() error {
	if s.Console == nil {
		return errors.New("console is not configured")
	}
	return nil
}

// ScopeArgs names a scope as kind + id.
type ScopeArgs struct {
	Kind string `json:"scope_kind"`
	ID   string `json:"scope_id"`
}

// Selection parses the scope arguments. Both empty is None.
func (a ScopeArgs) Selection() (scope.Selection, error) {
	kind, err := scope.ParseKind(a.Kind)
	if err != nil {
		return scope.Selection{}, fault.Validation("scope", err)
	}
	if kind != scope.None && strings.TrimSpace(a.ID) == "" {
		return scope.Selection{}, fault.Validationf("scope", "scope_id is required for %s", kind)
	}
	return scope.Of(kind, a.ID), nil
}

// PreviewArgs are the arguments of preview_disconnections.
type PreviewArgs struct {
	ScopeArgs
	MinBalance      string `json:"min_balance"`
	MinUnpaidMonths *int   `json:"min_unpaid_months"`
}

// Query builds the candidate query. The balance threshold is passed on as
// written.
func (a PreviewArgs) Query() (connection.Query, error) {
	sel, err := a.Selection()
	if err != nil {
		return connection.Query{}, err
	}
	q := connection.Query{Scope: sel, MinUnpaidMonths: a.MinUnpaidMonths}
	balance, err := connection.ParseThreshold(a.MinBalance)
	if err != nil {
		return connection.Query{}, fault.Validationf("preview", "invalid min_balance %q", strings.TrimSpace(a.MinBalance))
	}
	q.MinBalance = balance
	return q, nil
}

// DraftArgs describe the task to create.
type DraftArgs struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TypeID      string `json:"type_id"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
	AssigneeID  string `json:"assignee_id"`
}

// Draft converts the arguments to a task draft.
func (a DraftArgs) Draft() (task.Draft, error) {
	d := task.NewDraft()
	p, err := task.ParsePriority(a.Priority)
	if err != nil {
		return d, fault.Validation("task", err)
	}
	d.Title, d.Description, d.TypeID, d.AssigneeID, d.Priority = a.Title, a.Description, a.TypeID, a.AssigneeID, p
	if raw := strings.TrimSpace(a.DueDate); raw != "" {
		due, err := time.Parse(layoutISO, raw)
		if err != nil {
			return d, fault.Validationf("task", "invalid due_date %q, expected YYYY-MM-DD", raw)
		}
		d.DueDate = &due
	}
	return d, nil
}

// DispatchArgs are the arguments of dispatch_disconnections.
type DispatchArgs struct {
	PreviewArgs
	DraftArgs
	ConnectionIDs string `json:"connection_ids"`
	All           bool   `json:"all"`
	RetryFailed   bool   `json:"retry_failed"`
}

// CreateArgs are the arguments of create_task.
type CreateArgs struct {
	DraftArgs
	ScopeArgs
}

// AssignArgs are the arguments of assign_task.
type AssignArgs struct {
	TaskID     string `json:"task_id"`
	AssigneeID string `json:"assignee_id"`
	Note       string `json:"note"`
}

// BillArgs describe a bill for can_cancel_bill.
type BillArgs struct {
	Status     string `json:"status"`
	AmountPaid string `json:"amount_paid"`
	Period     string `json:"bill_period"`
}

// GuardAnswer is returned by the guard tools.
type GuardAnswer struct {
	Action     string `json:"action"`
	Connection string `json:"connection,omitempty"`
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
}

// Schemes lists the location tree.
func (s *Service) Schemes(ctx context.Context) ([]location.Scheme, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	tree, err := s.Console.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Schemes(), nil
}

// Zones lists the zones of a scheme.
func (s *Service) Zones(ctx context.Context, schemeID string) ([]location.Zone, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Console.Zones(ctx, schemeID)
}

// Routes lists the routes of a zone.
func (s *Service) Routes(ctx context.Context, zoneID string) ([]location.Route, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Console.Routes(ctx, zoneID)
}

// Preview lists disconnection candidates.
func (s *Service) Preview(ctx context.Context, args PreviewArgs) (printers.CandidateDoc, error) {
	if err := s.ready(); err != nil {
		return printers.CandidateDoc{}, err
	}
	q, err := args.Query()
	if err != nil {
		return printers.CandidateDoc{}, err
	}
	set, err := s.Console.Preview(ctx, q)
	if err != nil {
		return printers.CandidateDoc{}, err
	}
	return printers.NewCandidateDoc(set), nil
}

// Dispatch creates disconnection tasks for the chosen candidates.
func (s *Service) Dispatch(ctx context.Context, args DispatchArgs) (app.DispatchReport, error) {
	if err := s.ready(); err != nil {
		return app.DispatchReport{}, err
	}
	q, err := args.Query()
	if err != nil {
		return app.DispatchReport{}, err
	}
	draft, err := args.Draft()
	if err != nil {
		return app.DispatchReport{}, err
	}
	var ids []string
	for _, id := range strings.Split(args.ConnectionIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if !args.All && len(ids) == 0 {
		return app.DispatchReport{}, fault.Validationf("dispatch", "set connection_ids or all")
	}
	req := app.DisconnectRequest{Query: q, Select: ids, All: args.All, Draft: draft}
	rep, err := s.Console.DispatchDisconnections(ctx, req)
	if err != nil {
		return rep, err
	}
	if args.RetryFailed && rep.Summary.Failed > 0 {
		return s.Console.RetryFailed(ctx, draft, rep)
	}
	return rep, nil
}

// CreateTask creates one task.
func (s *Service) CreateTask(ctx context.Context, args CreateArgs) (task.Task, error) {
	if err := s.ready(); err != nil {
		return task.Task{}, err
	}
	draft, err := args.Draft()
	if err != nil {
		return task.Task{}, err
	}
	sel, err := args.Selection()
	if err != nil {
		return task.Task{}, err
	}
	return s.Console.CreateTask(ctx, draft.WithScope(sel))
}

// AssignTask reassigns a task.
func (s *Service) AssignTask(ctx context.Context, args AssignArgs) (task.Task, error) {
	if err := s.ready(); err != nil {
		return task.Task{}, err
	}
	return s.Console.AssignTask(ctx, args.TaskID, args.AssigneeID, args.Note)
}

// CanAssignMeter checks meter assignment on a connection.
func (s *Service) CanAssignMeter(ctx context.Context, connectionID string) (GuardAnswer, error) {
	if err := s.ready(); err != nil {
		return GuardAnswer{}, err
	}
	c, res, err := s.Console.MeterCheck(ctx, connectionID)
	if err != nil {
		return GuardAnswer{}, err
	}
	return GuardAnswer{Action: "assign meter", Connection: c.ID, Allowed: res.Allowed, Reason: res.Reason}, nil
}

// CanCancelBill checks bill cancellation against the current month.
func (s *Service) CanCancelBill(args BillArgs) (GuardAnswer, error) {
	status, err := connection.ParseBillStatus(args.Status)
	if err != nil {
		return GuardAnswer{}, fault.Validation("bill", err)
	}
	period, err := connection.ParsePeriod(args.Period)
	if err != nil {
		return GuardAnswer{}, fault.Validation("bill", err)
	}
	paid := decimal.Zero
	if raw := strings.TrimSpace(args.AmountPaid); raw != "" {
		if paid, err = decimal.NewFromString(raw); err != nil {
			return GuardAnswer{}, fault.Validation("bill", fmt.Errorf("invalid amount_paid %q", raw))
		}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	res := guard.CancelBillAt(connection.Bill{Status: status, AmountPaid: paid, Period: period}, now())
	return GuardAnswer{Action: "cancel bill", Allowed: res.Allowed, Reason: res.Reason}, nil
}
