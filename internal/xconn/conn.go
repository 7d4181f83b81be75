// Package xconn wraps the X11 protocol operations the clipboard core
// needs behind a small interface, so the owner loop and loader can be
// driven either by a real connection (xgbconn.go, backed by
// github.com/jezek/xgb) or by an in-memory fake (internal/xconntest) in
// tests.
package xconn

import "github.com/jezek/xgb/xproto"

// Atom, Window and Timestamp mirror the X11 protocol types so that
// callers of this package never need to import xproto directly.
type (
	Atom      = xproto.Atom
	Window    = xproto.Window
	Timestamp = xproto.Timestamp
)

// AtomNone is the reserved "no atom" value. PRIMARY and STRING are
// predefined atoms with fixed protocol values, not interned by name.
const (
	AtomNone   = xproto.AtomNone
	AtomAtom   = xproto.AtomAtom
	xa_PRIMARY = xproto.AtomPrimary
	xa_STRING  = xproto.AtomString
)

// PropertyNotify state values, mirroring xproto's.
const (
	PropertyNewValue byte = 0
	PropertyDelete   byte = 1
)

// PropertyReply is the subset of GetProperty's reply the core needs.
type PropertyReply struct {
	Format     byte
	Type       Atom
	BytesAfter uint32
	Value      []byte
}

// SelectionRequestEvent mirrors xproto.SelectionRequestEvent.
type SelectionRequestEvent struct {
	Time      Timestamp
	Owner     Window
	Requestor Window
	Selection Atom
	Target    Atom
	Property  Atom
}

// SelectionNotifyEvent mirrors xproto.SelectionNotifyEvent.
type SelectionNotifyEvent struct {
	Time      Timestamp
	Requestor Window
	Selection Atom
	Target    Atom
	Property  Atom
}

// SelectionClearEvent mirrors xproto.SelectionClearEvent.
type SelectionClearEvent struct {
	Time      Timestamp
	Owner     Window
	Selection Atom
}

// PropertyNotifyEvent mirrors xproto.PropertyNotifyEvent.
type PropertyNotifyEvent struct {
	Window Window
	Atom   Atom
	Time   Timestamp
	State  byte
}

// TerminateEvent is delivered when the underlying connection has been
// closed, standing in for the "event type of 0" sentinel a libxcb/Xlib
// event loop would see on connection teardown.
type TerminateEvent struct{}

// Event is implemented by every event type the core dispatches on.
type Event interface {
	isEvent()
}

func (SelectionRequestEvent) isEvent() {}
func (SelectionNotifyEvent) isEvent()  {}
func (SelectionClearEvent) isEvent()   {}
func (PropertyNotifyEvent) isEvent()   {}
func (TerminateEvent) isEvent()        {}

// Conn is the set of X11 operations the owner loop and loader perform.
// Every call writes ReplaceMode / format exactly as the selection
// transfer protocol requires, so the interface omits parameters (write
// mode, delete-on-read) whose value is always the same here.
type Conn interface {
	// ConvertSelection asks whoever owns selection to convert it to
	// target and write the result to property on requestor.
	ConvertSelection(requestor Window, selection, target, property Atom, t Timestamp) error
	// SetSelectionOwner claims ownership of selection for owner.
	SetSelectionOwner(owner Window, selection Atom, t Timestamp) error
	// GetSelectionOwner returns the current owner of selection (0 if none).
	GetSelectionOwner(selection Atom) (Window, error)
	// ChangeProperty replaces property's value on window (PropModeReplace).
	ChangeProperty(window Window, property, typ Atom, format byte, data []byte) error
	// DeleteProperty deletes property on window.
	DeleteProperty(window Window, property Atom) error
	// GetProperty reads property on window without deleting it.
	GetProperty(window Window, property, typ Atom, longOffset, longLength uint32) (PropertyReply, error)
	// SendSelectionNotify delivers a SelectionNotify event to destination.
	SendSelectionNotify(destination Window, ev SelectionNotifyEvent) error
	// SelectPropertyChangeInput registers interest in PropertyNotify
	// events for window (which need not be owned by this connection).
	SelectPropertyChangeInput(window Window) error
	// WaitForEvent blocks until the next event. It returns a
	// TerminateEvent, nil when the connection has been closed.
	WaitForEvent() (Event, error)
	// PollForEvent returns the next event without blocking. It returns
	// nil, nil when no event is currently pending.
	PollForEvent() (Event, error)
	// MaxRequestSize returns the server's maximum request length, in
	// 4-byte units (the same unit XMaxRequestSize reports).
	MaxRequestSize() uint32
	// Flush sends any buffered requests to the server.
	Flush() error
	// Close tears down the connection.
	Close() error
}
