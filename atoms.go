package x11clip

import (
	"github.com/jezek/xgb/xproto"

	"x11clip/internal/xconn"
)

// Atom, Window and Timestamp mirror the X11 protocol types used
// throughout this package's public surface.
type (
	Atom      = xproto.Atom
	Window    = xproto.Window
	Timestamp = xproto.Timestamp
)

// AtomNone is the reserved "no atom" value.
const AtomNone = xconn.AtomNone

// Atoms is the fixed set of interned identifiers a Handle caches at
// connection time, so callers can pass standard atoms to Load/Store
// without re-interning them.
type Atoms struct {
	Primary    Atom
	Clipboard  Atom
	Targets    Atom
	String     Atom
	Utf8String Atom
	Incr       Atom
	// Property is the private transfer property (THIS_CLIPBOARD_OUT)
	// conventionally passed as Load's property argument.
	Property Atom
}

func toPublicAtoms(a xconn.Atoms) Atoms {
	return Atoms{
		Primary:    a.Primary,
		Clipboard:  a.Clipboard,
		Targets:    a.Targets,
		String:     a.String,
		Utf8String: a.Utf8String,
		Incr:       a.Incr,
		Property:   a.Property,
	}
}
