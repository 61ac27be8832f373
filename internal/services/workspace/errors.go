package workspace

import "errors"

var (
	// ErrWorkspaceNotFound is returned when neither an id nor a name match
	// a non-deleted workspace.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrDirectoryReadOnly is returned by mutation operations; workspace
	// lifecycle changes flow through the administrative path instead.
	ErrDirectoryReadOnly = errors.New("workspace directory is read-only")

	// ErrNoWorkspaceContext is returned when no workspace can be derived
	// from the request. Tenant-scoped operations fail fast on it rather
	// than defaulting to a shared workspace.
	ErrNoWorkspaceContext = errors.New("no workspace context available")
)
