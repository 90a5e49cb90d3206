package printers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/eligibility"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/scope"
)

// Format selects machine output. The zero value means pretty output.
type Format string

const (
	Pretty Format = ""
	JSON   Format = "json"
	YAML   Format = "yaml"
)

// ParseFormat accepts "", "pretty", "json" and "yaml".
func ParseFormat(raw string) (Format, error) {
	switch f := strings.ToLower(strings.TrimSpace(raw)); f {
	case "", "pretty", "table":
		return Pretty, nil
	case string(JSON), string(YAML):
		return Format(f), nil
	default:
		return Pretty, fmt.Errorf("unknown output format %q (expected json or yaml)", raw)
	}
}

// Encode writes v to w as JSON or YAML.
func Encode(w io.Writer, f Format, v any) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("format %q is not a machine format", f)
}

// Print writes v in a machine format, or hands a PrettyPrint to pretty. A nil
// w means color.Output.
func Print(w io.Writer, f Format, v any, pretty func(pp *PrettyPrint)) error {
	if w == nil {
		w = color.Output
	}
	if f == Pretty {
		pretty(&PrettyPrint{Out: w})
		return nil
	}
	return Encode(w, f, v)
}

// ErrorDoc is the machine form of a failed command.
type ErrorDoc struct {
	Error string     `json:"error" yaml:"error"`
	Kind  fault.Kind `json:"kind" yaml:"kind"`
}

// NewErrorDoc classifies err for output.
func NewErrorDoc(err error) ErrorDoc {
	return ErrorDoc{Error: err.Error(), Kind: fault.KindOf(err)}
}

// Candidate is a previewed connection with its selection state.
type Candidate struct {
	connection.Connection `yaml:",inline"`
	Selected              bool `json:"selected" yaml:"selected"`
}

// CandidateDoc is the machine form of a preview.
type CandidateDoc struct {
	Scope           scope.Selection `json:"scope" yaml:"scope"`
	MinBalance      string          `json:"minBalance,omitempty" yaml:"minBalance,omitempty"`
	MinUnpaidMonths *int            `json:"minUnpaidMonths,omitempty" yaml:"minUnpaidMonths,omitempty"`
	Count           int             `json:"count" yaml:"count"`
	Candidates      []Candidate     `json:"candidates" yaml:"candidates"`
}

// NewCandidateDoc projects set for machine output.
func NewCandidateDoc(set *eligibility.CandidateSet) CandidateDoc {
	q := set.Query()
	doc := CandidateDoc{
		Scope:           q.Scope,
		MinUnpaidMonths: q.MinUnpaidMonths,
		Count:           set.Len(),
		Candidates:      make([]Candidate, 0, set.Len()),
	}
	if q.MinBalance != nil {
		doc.MinBalance = q.MinBalance.String()
	}
	for _, c := range set.Items() {
		doc.Candidates = append(doc.Candidates, Candidate{Connection: c, Selected: set.IsSelected(c.ID)})
	}
	return doc
}
