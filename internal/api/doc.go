// Package api exposes a small administrative HTTP surface over the
// orchestrator's listing and removal operations. It serves operators
// inspecting the node's job backlog; submissions always go through the CLI.
package api
