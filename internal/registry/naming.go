package registry

import (
	"fmt"
	"strings"

	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// QualifyName joins a server id and a tool name.
func QualifyName(serverID, toolName string) string {
	return serverID + mcp.QualifierSeparator + toolName
}

// ParseQualifiedName splits "serverId:toolName". Both parts must be
// non-empty and the name must contain exactly one separator.
func ParseQualifiedName(qualified string) (serverID, toolName string, err error) {
	parts := strings.Split(qualified, mcp.QualifierSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", errors.ErrInvalidQualifiedName, qualified)
	}

	return parts[0], parts[1], nil
}
