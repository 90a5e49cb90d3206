package hierarchy

import (
	"context"
	"errors"
	"io"
	"strings"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/printers"
)

// Hierarchy lists schemes, the zones of a scheme or the routes of a zone.
type Hierarchy struct {
	Service *app.Service
	Scheme  string
	Zone    string
	Format  printers.Format
	Out     io.Writer
}

func (h *Hierarchy) Do(ctx context.Context) error {
	if h.Service == nil {
		return errors.New("can not list locations, no service")
	}
	scheme, zone := strings.TrimSpace(h.Scheme), strings.TrimSpace(h.Zone)

	switch {
	case zone != "":
		routes, err := h.Service.Routes(ctx, zone)
		if err != nil {
			return err
		}
		doc := struct {
			Zone   string           `json:"zone" yaml:"zone"`
			Routes []location.Route `json:"routes" yaml:"routes"`
		}{zone, routes}
		return printers.Print(h.Out, h.Format, doc, func(pp *printers.PrettyPrint) {
			pp.Routes(zone, routes)
		})

	case scheme != "":
		zones, err := h.Service.Zones(ctx, scheme)
		if err != nil {
			return err
		}
		doc := struct {
			Scheme string          `json:"scheme" yaml:"scheme"`
			Zones  []location.Zone `json:"zones" yaml:"zones"`
		}{scheme, zones}
		return printers.Print(h.Out, h.Format, doc, func(pp *printers.PrettyPrint) {
			pp.Zones(scheme, zones)
		})
	}

	tree, err := h.Service.Hierarchy(ctx)
	if err != nil {
		return err
	}
	doc := struct {
		Schemes []location.Scheme `json:"schemes" yaml:"schemes"`
	}{tree.Schemes()}
	return printers.Print(h.Out, h.Format, doc, func(pp *printers.PrettyPrint) {
		pp.Hierarchy(tree)
	})
}
