// Package location holds the scheme > zone > route tree that scopes every
// task and bulk query.
package location

import (
	"strings"

	"tableflip.dev/wbc/pkg/scope"
)

// Scheme is the top level of the hierarchy.
type Scheme struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Zones []Zone `json:"zones,omitempty" yaml:"zones,omitempty"`
}

// Zone belongs to a scheme and owns routes.
type Zone struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	SchemeID string  `json:"schemeId" yaml:"schemeId"`
	Routes   []Route `json:"routes,omitempty" yaml:"routes,omitempty"`
}

// Route belongs to a zone. Connections reference routes by id.
type Route struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	ZoneID string `json:"zoneId" yaml:"zoneId"`
}

// Hierarchy is an immutable, id-indexed view of the scheme tree. A nil
// *Hierarchy behaves as an empty one.
type Hierarchy struct {
	schemes []Scheme

	schemeIdx map[string]int
	zoneIdx   map[string][2]int
	routeIdx  map[string][3]int
}

var _ scope.Hierarchy = (*Hierarchy)(nil)

// NewHierarchy indexes schemes. Parent ids on zones and routes are filled in
// from their position in the tree; entries without an id are dropped.
func NewHierarchy(schemes []Scheme) *Hierarchy {
	h := &Hierarchy{
		schemeIdx: make(map[string]int, len(schemes)),
		zoneIdx:   make(map[string][2]int),
		routeIdx:  make(map[string][3]int),
	}
	for _, s := range schemes {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			continue
		}
		if _, dup := h.schemeIdx[s.ID]; dup {
			continue
		}
		zones := make([]Zone, 0, len(s.Zones))
		for _, z := range s.Zones {
			z.ID = strings.TrimSpace(z.ID)
			if z.ID == "" {
				continue
			}
			z.SchemeID = s.ID
			routes := make([]Route, 0, len(z.Routes))
			for _, r := range z.Routes {
				r.ID = strings.TrimSpace(r.ID)
				if r.ID == "" {
					continue
				}
				r.ZoneID = z.ID
				routes = append(routes, r)
			}
			z.Routes = routes
			zones = append(zones, z)
		}
		s.Zones = zones

		si := len(h.schemes)
		h.schemes = append(h.schemes, s)
		h.schemeIdx[s.ID] = si
		for zi, z := range s.Zones {
			if _, dup := h.zoneIdx[z.ID]; !dup {
				h.zoneIdx[z.ID] = [2]int{si, zi}
			}
			for ri, r := range z.Routes {
				if _, dup := h.routeIdx[r.ID]; !dup {
					h.routeIdx[r.ID] = [3]int{si, zi, ri}
				}
			}
		}
	}
	return h
}

// Empty reports whether the hierarchy has no schemes.
func (h *Hierarchy) Empty() bool {
	return h == nil || len(h.schemes) == 0
}

// Schemes returns a copy of the top-level schemes, zones included.
func (h *Hierarchy) Schemes() []Scheme {
	if h == nil {
		return nil
	}
	return cloneSchemes(h.schemes)
}

// ZonesOf returns the zones of a scheme, or an empty slice for unknown or
// blank ids.
func (h *Hierarchy) ZonesOf(schemeID string) []Zone {
	s, ok := h.Scheme(schemeID)
	if !ok {
		return []Zone{}
	}
	return s.Zones
}

// RoutesOf returns the routes of a zone, or an empty slice for unknown or
// blank ids.
func (h *Hierarchy) RoutesOf(zoneID string) []Route {
	z, ok := h.Zone(zoneID)
	if !ok {
		return []Route{}
	}
	return z.Routes
}

// Scheme looks up a scheme by id.
func (h *Hierarchy) Scheme(id string) (Scheme, bool) {
	if h == nil {
		return Scheme{}, false
	}
	i, ok := h.schemeIdx[strings.TrimSpace(id)]
	if !ok {
		return Scheme{}, false
	}
	return cloneSchemes(h.schemes[i : i+1])[0], true
}

// Zone looks up a zone by id.
func (h *Hierarchy) Zone(id string) (Zone, bool) {
	if h == nil {
		return Zone{}, false
	}
	at, ok := h.zoneIdx[strings.TrimSpace(id)]
	if !ok {
		return Zone{}, false
	}
	z := h.schemes[at[0]].Zones[at[1]]
	z.Routes = append([]Route(nil), z.Routes...)
	return z, true
}

// Route looks up a route by id.
func (h *Hierarchy) Route(id string) (Route, bool) {
	if h == nil {
		return Route{}, false
	}
	at, ok := h.routeIdx[strings.TrimSpace(id)]
	if !ok {
		return Route{}, false
	}
	return h.schemes[at[0]].Zones[at[1]].Routes[at[2]], true
}

// SchemeOfZone returns the parent scheme id of a zone.
func (h *Hierarchy) SchemeOfZone(zoneID string) (string, bool) {
	z, ok := h.Zone(zoneID)
	if !ok {
		return "", false
	}
	return z.SchemeID, true
}

// ZoneOfRoute returns the parent zone id of a route.
func (h *Hierarchy) ZoneOfRoute(routeID string) (string, bool) {
	r, ok := h.Route(routeID)
	if !ok {
		return "", false
	}
	return r.ZoneID, true
}

// Contains reports whether child lies within parent. A selection contains
// itself. Connections are not part of the tree and are never contained.
func (h *Hierarchy) Contains(parent, child scope.Selection) bool {
	if parent.IsNone() || child.IsNone() || child.Kind() == scope.Connection {
		return false
	}
	if parent == child {
		return h.Has(parent)
	}
	path := scope.PathOf(h, child)
	switch parent.Kind() {
	case scope.Scheme:
		return path.SchemeID == parent.ID()
	case scope.Zone:
		return path.ZoneID == parent.ID() && child.Kind() == scope.Route
	}
	return false
}

// Has reports whether an aggregate selection exists in the tree.
func (h *Hierarchy) Has(sel scope.Selection) bool {
	var ok bool
	switch sel.Kind() {
	case scope.Scheme:
		_, ok = h.Scheme(sel.ID())
	case scope.Zone:
		_, ok = h.Zone(sel.ID())
	case scope.Route:
		_, ok = h.Route(sel.ID())
	}
	return ok
}

// Name returns the display name of an aggregate selection, or its id when
// the tree does not know it.
func (h *Hierarchy) Name(sel scope.Selection) string {
	switch sel.Kind() {
	case scope.Scheme:
		if s, ok := h.Scheme(sel.ID()); ok && s.Name != "" {
			return s.Name
		}
	case scope.Zone:
		if z, ok := h.Zone(sel.ID()); ok && z.Name != "" {
			return z.Name
		}
	case scope.Route:
		if r, ok := h.Route(sel.ID()); ok && r.Name != "" {
			return r.Name
		}
	}
	return sel.ID()
}

func cloneSchemes(in []Scheme) []Scheme {
	if in == nil {
		return nil
	}
	out := make([]Scheme, len(in))
	for i, s := range in {
		zones := make([]Zone, len(s.Zones))
		for j, z := range s.Zones {
			z.Routes = append([]Route(nil), z.Routes...)
			zones[j] = z
		}
		s.Zones = zones
		out[i] = s
	}
	return out
}
