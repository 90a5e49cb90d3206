package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tableflip.dev/wbc/pkg/fault"
)

func registerTools(srv *server.MCPServer, svc *Service) {
	registerListSchemesTool(srv, svc)
	registerListZonesTool(srv, svc)
	registerListRoutesTool(srv, svc)
	registerPreviewTool(srv, svc)
	registerDispatchTool(srv, svc)
	registerCreateTaskTool(srv, svc)
	registerAssignTaskTool(srv, svc)
	registerCanAssignMeterTool(srv, svc)
	registerCanCancelBillTool(srv, svc)
}

func scopeOptions(required bool) []mcp.ToolOption {
	kind := []mcp.PropertyOption{
		mcp.Description("Scope level to target."),
		mcp.Enum("scheme", "zone", "route"),
	}
	id := []mcp.PropertyOption{mcp.Description("Identifier of the scheme, zone or route.")}
	if required {
		kind = append(kind, mcp.Required())
		id = append(id, mcp.Required())
	} else {
		kind[1] = mcp.Enum("none", "scheme", "zone", "route", "connection")
	}
	return []mcp.ToolOption{
		mcp.WithString("scope_kind", kind...),
		mcp.WithString("scope_id", id...),
	}
}

func thresholdOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("min_balance",
			mcp.Description("Optional minimum outstanding balance, as a decimal string."),
		),
		mcp.WithNumber("min_unpaid_months",
			mcp.Description("Optional minimum number of unpaid months."),
			mcp.Min(0),
		),
	}
}

func draftOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title.")),
		mcp.WithString("type_id", mcp.Required(), mcp.Description("Task type identifier.")),
		mcp.WithString("assignee_id", mcp.Required(), mcp.Description("User who receives the task.")),
		mcp.WithString("description", mcp.Description("Optional task description.")),
		mcp.WithString("priority",
			mcp.Description("Task priority (default MEDIUM)."),
			mcp.Enum("LOW", "MEDIUM", "HIGH", "CRITICAL"),
		),
		mcp.WithString("due_date", mcp.Description("Optional due date, YYYY-MM-DD.")),
	}
}

func newTool(name, description string, groups ...[]mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(description)}
	for _, g := range groups {
		opts = append(opts, g...)
	}
	return mcp.NewTool(name, opts...)
}

func registerListSchemesTool(srv *server.MCPServer, svc *Service) {
	tool := newTool("list_schemes", "List the scheme > zone > route location tree.")

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schemes, err := svc.Schemes(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return toJSONResult(map[string]any{
			"schemes": schemes,
			"count":   len(schemes),
		})
	})
}

func registerListZonesTool(srv *server.MCPServer, svc *Service) {
	tool := newTool("list_zones", "List the zones of a scheme.", []mcp.ToolOption{
		mcp.WithString("scheme_id", mcp.Required(), mcp.Description("Scheme identifier.")),
	})

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("scheme_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		zones, err := svc.Zones(ctx, id)
		if err != nil {
			return toolError(err), nil
		}
		return toJSONResult(map[string]any{
			"scheme": id,
			"zones":  zones,
			"count":  len(zones),
		})
	})
}

func registerListRoutesTool(srv *server.MCPServer, svc *Service) {
	tool := newTool("list_routes", "List the routes of a zone.", []mcp.ToolOption{
		mcp.WithString("zone_id", mcp.Required(), mcp.Description("Zone identifier.")),
	})

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("zone_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		routes, err := svc.Routes(ctx, id)
		if err != nil {
			return toolError(err), nil
		}
		return toJSONResult(map[string]any{
			"zone":   id,
			"routes": routes,
			"count":  len(routes),
		})
	})
}

func registerPreviewTool(srv *server.MCPServer, svc *Service) {
	tool := newTool("preview_disconnections",
		"List connections in a scheme, zone or route that are eligible for disconnection.",
		scopeOptions(true), thresholdOptions())

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args PreviewArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		doc, err := svc.Preview(ctx, args)
		if err != nil {
			return toolError(err), nil
		}
		return toJSONResult(doc)
	})
}

func registerDispatchTool(srv *server.MCPServer, svc *Service) {
	tool := newTool("dispatch_disconnections",
		"Create one disconnection task per chosen candidate. Partial failure is reported per item.",
		scopeOptions(true), thresholdOptions(), draftOptions(), []mcp.ToolOption{
			mcp.WithString("connection_ids",
				mcp.Description("Comma separated candidate connection ids to act on."),
			),
			mcp.WithBoolean("all",
				mcp.Description("Act on every candidate instead of connection_ids."),
			),
			mcp.WithBoolean("retry_failed",
				mcp.Description("Re-send failed items once with their original idempotency keys."),
			),
		})

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args DispatchArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		rep, err := svc.Dispatch(ctx, args)
		if err != nil {
			return toolError(err), nil
		}
		return toJSONResult(map[string]any{
			"report":  rep,
			"message": rep.Summary.String(),
		})
	})
}

func registerCreateTaskTool(srv *server.MCPServer, svc *Service) {
	tool := newTool("create_task",
		"Create a single task, optionally targeting a connection, route, zone or scheme.",
		draftOptions(), scopeOptions(false))

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args CreateArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		t, err := svc.CreateTask(ctx, args)
		if err != nil {
			return toolError(err), nil
		}
		return toJSONResult(t)
	})
}

func registerAssignTaskTool(srv *server.MCPServer, svc *Service) {
	tool := newTool("assign_task", "Reassign an existing task.", []mcp.ToolOption{
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier.")),
		mcp.WithString("assignee_id", mcp.Required(), mcp.Description("New assignee.")),
		mcp.WithString("note", mcp.Description("Optional note for the assignee.")),
	})

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AssignArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		t, err := svc.AssignTask(ctx, args)
		if err != nil {
			return toolError(err), nil
		}
		return toJSONResult(t)
	})
}

func registerCanAssignMeterTool(srv *server.MCPServer, svc *Service) {
	tool := newTool("can_assign_meter", "Check whether a meter can be assigned to a connection.", []mcp.ToolOption{
		mcp.WithString("connection_id", mcp.Required(), mcp.Description("Connection identifier.")),
	})

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("connection_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ans, err := svc.CanAssignMeter(ctx, id)
		if err != nil {
			return toolError(err), nil
		}
		return toJSONResult(ans)
	})
}

func registerCanCancelBillTool(srv *server.MCPServer, svc *Service) {
	tool := newTool("can_cancel_bill", "Check whether a bill can be cancelled this month.", []mcp.ToolOption{
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("Bill status."),
			mcp.Enum("UNPAID", "PARTIALLY_PAID", "PAID", "CANCELLED"),
		),
		mcp.WithString("bill_period", mcp.Required(), mcp.Description("Billing month, YYYY-MM.")),
		mcp.WithString("amount_paid", mcp.Description("Amount already paid, as a decimal string.")),
	})

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args BillArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		ans, err := svc.CanCancelBill(args)
		if err != nil {
			return toolError(err), nil
		}
		return toJSONResult(ans)
	})
}

// toolError reports err to the caller with its classification.
func toolError(err error) *mcp.CallToolResult {
	if fault.IsAuthorization(err) {
		return mcp.NewToolResultError("permission denied: " + err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s error: %v", fault.KindOf(err), err))
}

func toJSONResult(data any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return result, nil
}
