// Package scope defines the target of a task or a bulk query: a single
// connection or an aggregate (route, zone or scheme).
package scope

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind names the active variant of a Selection.
type Kind string

const (
	None       Kind = ""
	Connection Kind = "connection"
	Route      Kind = "route"
	Zone       Kind = "zone"
	Scheme     Kind = "scheme"
)

// AllKinds returns the non-empty kinds from narrowest to widest.
func AllKinds() []Kind {
	return []Kind{Connection, Route, Zone, Scheme}
}

// AggregateKinds returns the kinds a bulk query may target.
func AggregateKinds() []Kind {
	return []Kind{Route, Zone, Scheme}
}

// IsAggregate reports whether k is a route, zone or scheme.
func (k Kind) IsAggregate() bool {
	return k == Route || k == Zone || k == Scheme
}

func (k Kind) String() string {
	if k == None {
		return "none"
	}
	return string(k)
}

// ParseKind converts a string to a Kind. "none" and "" both map to None.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if k == "none" || k == None {
		return None, nil
	}
	for _, candidate := range AllKinds() {
		if candidate == k {
			return candidate, nil
		}
	}
	return None, fmt.Errorf("scope: unknown kind %q", raw)
}

// Selection is a tagged union: exactly one of Connection, Route, Zone or
// Scheme, or None. The zero value is None.
type Selection struct {
	kind Kind
	id   string
}

// Of builds a Selection. An empty id or None kind yields None.
func Of(kind Kind, id string) Selection {
	id = strings.TrimSpace(id)
	if kind == None || id == "" {
		return Selection{}
	}
	return Selection{kind: kind, id: id}
}

// OfConnection selects a single connection.
func OfConnection(id string) Selection { return Of(Connection, id) }

// OfRoute selects a route.
func OfRoute(id string) Selection { return Of(Route, id) }

// OfZone selects a zone.
func OfZone(id string) Selection { return Of(Zone, id) }

// OfScheme selects a scheme.
func OfScheme(id string) Selection { return Of(Scheme, id) }

// Kind returns the active variant.
func (s Selection) Kind() Kind { return s.kind }

// ID returns the id of the active variant, or "" for None.
func (s Selection) ID() string { return s.id }

// IsNone reports whether no variant is active.
func (s Selection) IsNone() bool { return s.kind == None }

// IsAggregate reports whether the active variant is a route, zone or scheme.
func (s Selection) IsAggregate() bool { return s.kind.IsAggregate() }

func (s Selection) String() string {
	if s.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%s:%s", s.kind, s.id)
}

// Fields projects the selection onto the four nullable ids used on the
// wire. At most one is non-empty.
type Fields struct {
	ConnectionID string `json:"connectionId,omitempty" yaml:"connectionId,omitempty"`
	RouteID      string `json:"routeId,omitempty" yaml:"routeId,omitempty"`
	ZoneID       string `json:"zoneId,omitempty" yaml:"zoneId,omitempty"`
	SchemeID     string `json:"schemeId,omitempty" yaml:"schemeId,omitempty"`
}

// Fields returns the wire projection of s.
func (s Selection) Fields() Fields {
	var f Fields
	switch s.kind {
	case Connection:
		f.ConnectionID = s.id
	case Route:
		f.RouteID = s.id
	case Zone:
		f.ZoneID = s.id
	case Scheme:
		f.SchemeID = s.id
	}
	return f
}

// QueryParam returns the query parameter name used to filter by s, or ""
// for None.
func (s Selection) QueryParam() string {
	switch s.kind {
	case Connection:
		return "connection_id"
	case Route:
		return "route_id"
	case Zone:
		return "zone_id"
	case Scheme:
		return "scheme_id"
	}
	return ""
}

// FromFields rebuilds a Selection from wire fields. More than one non-empty
// field is an error.
func FromFields(f Fields) (Selection, error) {
	var out Selection
	set := 0
	for _, c := range []struct {
		kind Kind
		id   string
	}{
		{Connection, f.ConnectionID},
		{Route, f.RouteID},
		{Zone, f.ZoneID},
		{Scheme, f.SchemeID},
	} {
		if strings.TrimSpace(c.id) == "" {
			continue
		}
		set++
		out = Of(c.kind, c.id)
	}
	if set > 1 {
		return Selection{}, fmt.Errorf("scope: %d targets set, expected at most one", set)
	}
	return out, nil
}

type selectionJSON struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// MarshalJSON encodes the selection as {"kind": ..., "id": ...}.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(selectionJSON{Kind: s.kind.String(), ID: s.id})
}

// UnmarshalJSON decodes the {"kind": ..., "id": ...} form.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw selectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := ParseKind(raw.Kind)
	if err != nil {
		return err
	}
	*s = Of(kind, raw.ID)
	return nil
}

// MarshalYAML encodes the selection the same way as JSON.
func (s Selection) MarshalYAML() (any, error) {
	return selectionJSON{Kind: s.kind.String(), ID: s.id}, nil
}
