package registry

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/client"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// CallTool invokes a tool by qualified name. It never returns an error:
// unknown, disabled and unreachable tools, as well as transport failures,
// come back as a result with Success false and the reason in Content.
func (r *Registry) CallTool(
	ctx context.Context,
	qualified string,
	args map[string]any,
	opts ...client.CallOption,
) ToolCallResult {
	start := time.Now()

	serverID, name, err := ParseQualifiedName(qualified)
	if err != nil {
		return failure(qualified, "", "Tool not found: "+qualified, start)
	}

	w, ok := r.load()[serverID][name]
	if !ok {
		return failure(qualified, serverID, "Tool not found: "+qualified, start)
	}

	if !w.Enabled {
		return failure(qualified, serverID, "Tool disabled: "+qualified, start)
	}

	srv, err := r.server(serverID)
	if err != nil {
		return failure(qualified, serverID, "Server not found: "+serverID, start)
	}

	log := r.log.With("server_id", serverID, "tool", name)
	log.Debug("Calling tool")

	res, err := srv.client.CallTool(ctx, mcp.CallToolParams{Name: name, Arguments: args}, opts...)
	if err != nil {
		log.Warn("Tool call failed", "error", err)

		return failure(qualified, serverID, err.Error(), start)
	}

	result := ToolCallResult{
		Success:  !res.IsError,
		ToolName: qualified,
		ServerID: serverID,
		Content:  FlattenContent(res.Content),
		IsError:  res.IsError,
		Duration: time.Since(start),
		Raw:      res,
	}

	log.Debug("Tool call finished", "is_error", res.IsError, "duration", result.Duration)

	return result
}

func failure(toolName, serverID, message string, start time.Time) ToolCallResult {
	return ToolCallResult{
		Success:  false,
		ToolName: toolName,
		ServerID: serverID,
		Content:  message,
		IsError:  true,
		Duration: time.Since(start),
	}
}

// FlattenContent renders content blocks as text, one block per line:
// text verbatim, images and resources as placeholders, anything else as
// JSON.
func FlattenContent(blocks []mcp.Content) string {
	parts := make([]string, 0, len(blocks))

	for _, b := range blocks {
		switch b.Type {
		case mcp.ContentText:
			parts = append(parts, b.Text)

		case mcp.ContentImage:
			parts = append(parts, "[Image: "+b.MIMEType+"]")

		case mcp.ContentResource, mcp.ContentResourceLink:
			parts = append(parts, "[Resource: "+b.ResourceURI()+"]")

		default:
			data, err := json.Marshal(b)
			if err != nil {
				continue
			}

			parts = append(parts, string(data))
		}
	}

	return strings.Join(parts, "\n")
}

// GetServerInfo returns the status of one server.
func (r *Registry) GetServerInfo(id string) (mcp.ServerStatus, error) {
	srv, err := r.server(id)
	if err != nil {
		return mcp.ServerStatus{}, err
	}

	return r.status(srv, r.load()), nil
}

// GetAllServerStatuses returns the status of every server ordered by id.
func (r *Registry) GetAllServerStatuses() []mcp.ServerStatus {
	idx := r.load()
	servers := r.snapshot()
	out := make([]mcp.ServerStatus, 0, len(servers))

	for _, srv := range servers {
		out = append(out, r.status(srv, idx))
	}

	return out
}

func (r *Registry) status(srv *server, idx index) mcp.ServerStatus {
	return mcp.ServerStatus{
		ID:         srv.cfg.ID,
		Name:       srv.cfg.DisplayName(),
		Connection: srv.client.Info(),
		ToolCount:  len(idx[srv.cfg.ID]),
	}
}

// ListResources lists the resources of one server.
func (r *Registry) ListResources(ctx context.Context, serverID string) ([]mcp.Resource, error) {
	srv, err := r.server(serverID)
	if err != nil {
		return nil, err
	}

	return srv.client.ListResources(ctx)
}

// ReadResource reads a resource from one server.
func (r *Registry) ReadResource(ctx context.Context, serverID, uri string) (*mcp.ReadResourceResult, error) {
	srv, err := r.server(serverID)
	if err != nil {
		return nil, err
	}

	return srv.client.ReadResource(ctx, uri)
}

// ListPrompts lists the prompts of one server.
func (r *Registry) ListPrompts(ctx context.Context, serverID string) ([]mcp.Prompt, error) {
	srv, err := r.server(serverID)
	if err != nil {
		return nil, err
	}

	return srv.client.ListPrompts(ctx)
}

// GetPrompt renders a prompt from one server.
func (r *Registry) GetPrompt(
	ctx context.Context,
	serverID, name string,
	args map[string]string,
) (*mcp.GetPromptResult, error) {
	srv, err := r.server(serverID)
	if err != nil {
		return nil, err
	}

	return srv.client.GetPrompt(ctx, name, args)
}
