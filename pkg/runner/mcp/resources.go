package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerResources(srv *server.MCPServer, svc *Service) {
	registerSchemesResource(srv, svc)
	registerZonesTemplate(srv, svc)
	registerRoutesTemplate(srv, svc)
}

func registerSchemesResource(srv *server.MCPServer, svc *Service) {
	resource := mcp.NewResource(
		"wbc://schemes",
		"Schemes",
		mcp.WithResourceDescription("The location tree: schemes with their zones and routes."),
		mcp.WithMIMEType("application/json"),
	)

	srv.AddResource(resource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		schemes, err := svc.Schemes(ctx)
		if err != nil {
			return nil, err
		}

		payload := map[string]any{
			"schemes": schemes,
			"count":   len(schemes),
		}
		return encodeResourceJSON(request.Params.URI, payload)
	})
}

func registerZonesTemplate(srv *server.MCPServer, svc *Service) {
	template := mcp.NewResourceTemplate(
		"wbc://schemes/{id}/zones",
		"Scheme Zones",
		mcp.WithTemplateDescription("Zones that belong to a scheme."),
		mcp.WithTemplateMIMEType("application/json"),
	)

	srv.AddResourceTemplate(template, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := templateArg(request, "id")
		if id == "" {
			return nil, fmt.Errorf("scheme id is required")
		}

		zones, err := svc.Zones(ctx, id)
		if err != nil {
			return nil, err
		}

		payload := map[string]any{
			"scheme": id,
			"count":  len(zones),
			"zones":  zones,
		}
		return encodeResourceJSON(request.Params.URI, payload)
	})
}

func registerRoutesTemplate(srv *server.MCPServer, svc *Service) {
	template := mcp.NewResourceTemplate(
		"wbc://zones/{id}/routes",
		"Zone Routes",
		mcp.WithTemplateDescription("Routes that belong to a zone."),
		mcp.WithTemplateMIMEType("application/json"),
	)

	srv.AddResourceTemplate(template, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := templateArg(request, "id")
		if id == "" {
			return nil, fmt.Errorf("zone id is required")
		}

		routes, err := svc.Routes(ctx, id)
		if err != nil {
			return nil, err
		}

		payload := map[string]any{
			"zone":   id,
			"count":  len(routes),
			"routes": routes,
		}
		return encodeResourceJSON(request.Params.URI, payload)
	})
}

// templateArg reads a URI template variable. The server may hand it over as
// a string or a single-element list.
func templateArg(request mcp.ReadResourceRequest, name string) string {
	switch v := request.Params.Arguments[name].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func encodeResourceJSON(uri string, payload any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
