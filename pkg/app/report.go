package app

import (
	"context"
	"strings"

	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/dispatch"
	"tableflip.dev/wbc/pkg/eligibility"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/scope"
	"tableflip.dev/wbc/pkg/task"
)

// DisconnectRequest describes a bulk disconnection: the preview query, which
// candidates to act on and the task template.
type DisconnectRequest struct {
	Query  connection.Query
	Select []string
	All    bool
	Draft  task.Draft
}

// DispatchItem is one row of a dispatch report.
type DispatchItem struct {
	ConnectionID string          `json:"connectionId" yaml:"connectionId"`
	Number       string          `json:"connectionNumber,omitempty" yaml:"connectionNumber,omitempty"`
	Success      bool            `json:"success" yaml:"success"`
	TaskID       string          `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	Error        string          `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts     int             `json:"attempts" yaml:"attempts"`
	Result       dispatch.Result `json:"-" yaml:"-"`
}

// DispatchReport is the outcome of a bulk dispatch, aligned with the order
// candidates were reviewed in.
type DispatchReport struct {
	Scope      scope.Selection  `json:"scope" yaml:"scope"`
	Candidates int              `json:"candidates" yaml:"candidates"`
	Items      []DispatchItem   `json:"items" yaml:"items"`
	Summary    dispatch.Summary `json:"summary" yaml:"summary"`
}

// Results returns the raw dispatch results, e.g. to retry failures.
func (r DispatchReport) Results() []dispatch.Result {
	out := make([]dispatch.Result, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Result
	}
	return out
}

func newReport(set *eligibility.CandidateSet, results []dispatch.Result) DispatchReport {
	rep := DispatchReport{
		Scope:      set.Query().Scope,
		Candidates: set.Len(),
		Items:      make([]DispatchItem, len(results)),
		Summary:    dispatch.Summarize(results),
	}
	for i, r := range results {
		item := DispatchItem{
			ConnectionID: r.Target.ID(),
			Success:      r.OK(),
			Error:        r.Message(),
			Attempts:     r.Attempts,
			Result:       r,
		}
		if c, ok := set.Get(r.Target.ID()); ok {
			item.Number = c.Number
		}
		if r.Task != nil {
			item.TaskID = r.Task.ID
		}
		rep.Items[i] = item
	}
	return rep
}

// DispatchDisconnections previews req.Query, selects the requested
// candidates and creates one task per selection. Partial failure is reported
// in the summary, not as an error.
func (s *Service) DispatchDisconnections(ctx context.Context, req DisconnectRequest) (DispatchReport, error) {
	set, err := s.Preview(ctx, req.Query)
	if err != nil {
		return DispatchReport{}, err
	}
	if set.IsEmpty() {
		return DispatchReport{}, fault.Validationf("disconnect", "no eligible connections in %s", req.Query.Scope)
	}
	set.ClearSelection()
	switch {
	case req.All:
		set.SelectAll()
	default:
		ids := make([]string, 0, len(req.Select))
		for _, id := range req.Select {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if err := set.Select(ids...); err != nil {
			return DispatchReport{}, fault.Validation("disconnect", err)
		}
	}
	if !set.CanProceed() {
		return DispatchReport{}, fault.Validationf("disconnect", "no candidates selected")
	}

	results, err := s.Dispatcher.DispatchConnections(ctx, req.Draft, set.SelectedIDs())
	if err != nil {
		return DispatchReport{}, err
	}
	return newReport(set, results), nil
}

// RetryFailed re-dispatches the failed items of rep with the same keys.
func (s *Service) RetryFailed(ctx context.Context, draft task.Draft, rep DispatchReport) (DispatchReport, error) {
	results, err := s.Dispatcher.RetryFailed(ctx, draft, rep.Results())
	if err != nil {
		return DispatchReport{}, err
	}
	set := s.Resolver.Current()
	if set == nil || set.Query().Scope != rep.Scope {
		set = nil
	}
	out := newReport(set, results)
	out.Scope = rep.Scope
	out.Candidates = rep.Candidates
	return out, nil
}
