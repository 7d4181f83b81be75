package x11clip

import "errors"

// Error kinds surfaced to callers of Load/Store. Use errors.Is to test
// for a specific kind.
var (
	// ErrConnection means the X display could not be opened.
	ErrConnection = errors.New("x11clip: could not open X display")
	// ErrBadTarget means the owner refused the requested conversion.
	ErrBadTarget = errors.New("x11clip: owner refused requested target")
	// ErrBadOwner means SetSelectionOwner did not stick — another
	// client claimed the selection concurrently.
	ErrBadOwner = errors.New("x11clip: failed to become selection owner")
	// ErrTimeout means Load's deadline elapsed before the transfer
	// completed.
	ErrTimeout = errors.New("x11clip: load timed out")
)
