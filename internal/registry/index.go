package registry

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

func (r *Registry) load() index {
	return *r.tools.Load()
}

// replace swaps one server's tools. A nil map removes the server.
func (r *Registry) replace(serverID string, tools map[string]ToolWrapper) {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	old := r.load()
	next := make(index, len(old)+1)

	for id, t := range old {
		if id != serverID {
			next[id] = t
		}
	}

	if tools != nil {
		next[serverID] = tools
	}

	r.tools.Store(&next)
}

// wrap builds a server's wrappers from its tool list. Tools whose names
// cannot round-trip through a qualified name are skipped.
func (r *Registry) wrap(srv *server, tools []mcp.Tool) map[string]ToolWrapper {
	wrappers := make(map[string]ToolWrapper, len(tools))

	for _, tool := range tools {
		if tool.Name == "" || strings.Contains(tool.Name, mcp.QualifierSeparator) {
			r.log.Warn("Skipping tool with unusable name", "server_id", srv.cfg.ID, "tool", tool.Name)

			continue
		}

		if _, dup := wrappers[tool.Name]; dup {
			r.log.Warn("Skipping duplicate tool", "server_id", srv.cfg.ID, "tool", tool.Name)

			continue
		}

		wrappers[tool.Name] = ToolWrapper{
			Tool:          tool,
			ServerID:      srv.cfg.ID,
			ServerName:    srv.cfg.DisplayName(),
			QualifiedName: QualifyName(srv.cfg.ID, tool.Name),
			Enabled:       !matchAny(srv.cfg.DisabledTools, tool.Name),
		}
	}

	return wrappers
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}

	return false
}

// all returns every wrapper ordered by qualified name.
func (r *Registry) all() []ToolWrapper {
	idx := r.load()

	var out []ToolWrapper

	for _, tools := range idx {
		for _, w := range tools {
			out = append(out, w)
		}
	}

	slices.SortFunc(out, func(a, b ToolWrapper) int {
		return cmp.Compare(a.QualifiedName, b.QualifiedName)
	})

	return out
}

// GetAllTools returns every enabled tool ordered by qualified name.
func (r *Registry) GetAllTools() []ToolWrapper {
	enabled := true

	return r.FindTools(ToolFilter{Enabled: &enabled})
}

// GetToolDefinitions returns every enabled tool in the shape a tool-calling
// model expects, ordered by name.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	tools := r.GetAllTools()
	defs := make([]ToolDefinition, 0, len(tools))

	for _, w := range tools {
		defs = append(defs, ToolDefinition{
			Name:        w.QualifiedName,
			Description: w.Tool.Description,
			Parameters:  w.Tool.InputSchema,
		})
	}

	return defs
}

// FindTools returns the tools matching f, disabled ones included unless
// f.Enabled says otherwise. An invalid pattern matches nothing.
func (r *Registry) FindTools(f ToolFilter) []ToolWrapper {
	out := []ToolWrapper{}

	for _, w := range r.all() {
		if f.ServerID != "" && w.ServerID != f.ServerID {
			continue
		}

		if f.Enabled != nil && w.Enabled != *f.Enabled {
			continue
		}

		if f.Pattern != "" {
			if ok, _ := doublestar.Match(f.Pattern, w.QualifiedName); !ok {
				continue
			}
		}

		out = append(out, w)
	}

	return out
}

// GetTool looks up one tool by qualified name.
func (r *Registry) GetTool(qualified string) (ToolWrapper, bool) {
	serverID, name, err := ParseQualifiedName(qualified)
	if err != nil {
		return ToolWrapper{}, false
	}

	w, ok := r.load()[serverID][name]

	return w, ok
}

// SetToolEnabled enables or disables one tool in place.
func (r *Registry) SetToolEnabled(qualified string, enabled bool) error {
	serverID, name, err := ParseQualifiedName(qualified)
	if err != nil {
		return err
	}

	r.indexMu.Lock()

	old := r.load()

	w, ok := old[serverID][name]
	if !ok {
		r.indexMu.Unlock()

		return fmt.Errorf("%w: %s", errors.ErrToolNotFound, qualified)
	}

	w.Enabled = enabled

	tools := maps.Clone(old[serverID])
	tools[name] = w

	next := maps.Clone(old)
	next[serverID] = tools
	r.tools.Store(&next)

	r.indexMu.Unlock()

	r.log.Info("Toggled tool", "tool", qualified, "enabled", enabled)
	r.emit(Event{
		Type:       EventToolToggled,
		ServerID:   serverID,
		ServerName: w.ServerName,
		ToolName:   qualified,
		Enabled:    enabled,
	})

	return nil
}

// SetToolsEnabled toggles every tool whose qualified name matches the
// doublestar pattern and returns how many changed.
func (r *Registry) SetToolsEnabled(pattern string, enabled bool) (int, error) {
	if !doublestar.ValidatePattern(pattern) {
		return 0, fmt.Errorf("invalid tool pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	r.indexMu.Lock()

	old := r.load()
	next := maps.Clone(old)

	var changed []ToolWrapper

	for serverID, tools := range old {
		var updated map[string]ToolWrapper

		for name, w := range tools {
			if w.Enabled == enabled {
				continue
			}

			if ok, _ := doublestar.Match(pattern, w.QualifiedName); !ok {
				continue
			}

			if updated == nil {
				updated = maps.Clone(tools)
			}

			w.Enabled = enabled
			updated[name] = w
			changed = append(changed, w)
		}

		if updated != nil {
			next[serverID] = updated
		}
	}

	if len(changed) > 0 {
		r.tools.Store(&next)
	}

	r.indexMu.Unlock()

	slices.SortFunc(changed, func(a, b ToolWrapper) int {
		return cmp.Compare(a.QualifiedName, b.QualifiedName)
	})

	for _, w := range changed {
		r.emit(Event{
			Type:       EventToolToggled,
			ServerID:   w.ServerID,
			ServerName: w.ServerName,
			ToolName:   w.QualifiedName,
			Enabled:    enabled,
		})
	}

	return len(changed), nil
}
