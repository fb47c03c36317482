package tree

import "errors"

var (
	// ErrNotFound is returned when no node has the requested id.
	ErrNotFound = errors.New("node not found")
	// ErrInvalidTarget is returned when an operation addresses the wrong kind of node,
	// such as inserting under a document.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrForbidden is returned for operations on protected nodes, such as removing the trash.
	ErrForbidden = errors.New("forbidden")
	// ErrNoTrash is returned by MoveToTrash when the forest has no trash node.
	ErrNoTrash = errors.New("no trash node")
	// ErrDocumentChildren is returned when a document carries children.
	ErrDocumentChildren = errors.New("document nodes cannot have children")
	// ErrInvalidForest is returned by Load when the payload breaks a tree invariant.
	ErrInvalidForest = errors.New("invalid tree")
)
