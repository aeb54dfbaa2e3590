package dialogue

import "errors"

var (
	// ErrNotFound is returned when a referenced node is not part of the tree.
	ErrNotFound = errors.New("node not found")

	// ErrInvalidTarget is returned for an attempt to make the root node current.
	ErrInvalidTarget = errors.New("cannot jump to root")

	// ErrUpstreamFailure is returned when the summarizer failed or returned malformed data.
	ErrUpstreamFailure = errors.New("summarizer failed")

	// ErrCorruptTree marks a dangling parent reference, a cycle or a missing root.
	ErrCorruptTree = errors.New("corrupt dialogue tree")

	// ErrSwitchInFlight is returned when a switch request is dropped because
	// another switch on the same tree has not finished.
	ErrSwitchInFlight = errors.New("branch switch already in progress")

	// ErrEditInFlight is returned when a node is edited again before its
	// summary request completed.
	ErrEditInFlight = errors.New("node edit already in progress")
)
