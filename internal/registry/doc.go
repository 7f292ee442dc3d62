// Package registry aggregates the tools of many capability servers behind
// qualified names.
//
// A Registry owns one client per registered server. ConnectAll dials every
// server in parallel with isolated failures, indexes each server's tools
// under "serverId:toolName" and keeps that index current as servers report
// list changes or disconnect. CallTool routes a qualified name to its server
// and flattens the result into text.
package registry
