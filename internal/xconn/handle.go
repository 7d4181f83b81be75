package xconn

import "fmt"

// Atoms caches the fixed set of interned identifiers the clipboard
// protocol needs, resolved once when the connection is opened.
type Atoms struct {
	Primary    Atom
	Clipboard  Atom
	Targets    Atom
	String     Atom
	Utf8String Atom
	Incr       Atom
	// Property is the private transfer property, THIS_CLIPBOARD_OUT.
	Property Atom
}

// Handle is a single X connection plus the invisible window used as its
// addressable endpoint for selection events. Handle adds no locking of
// its own. Clipboard keeps two Handles (getter, setter) so the loader
// and the owner loop never touch the same one; Clipboard.Store also
// calls the setter's Conn from the caller's goroutine, which both Conn
// implementations (xgb's connection and the xconntest fake) tolerate.
type Handle struct {
	Conn   Conn
	Window Window
	Atoms  Atoms
}

const propertyAtomName = "THIS_CLIPBOARD_OUT"

var fixedAtomNames = []string{
	"CLIPBOARD",
	"TARGETS",
	"UTF8_STRING",
	"INCR",
	propertyAtomName,
}

// Close tears down the handle's connection.
func (h *Handle) Close() error {
	return h.Conn.Close()
}

// Intern interns an ad-hoc atom by name, for callers that want to pass a
// non-standard target to Load/Store.
func (h *Handle) Intern(name string) (Atom, error) {
	a, err := internOne(h.Conn, name)
	if err != nil {
		return 0, fmt.Errorf("intern atom %q: %w", name, err)
	}
	return a, nil
}

// internAtomer is satisfied by connections that can resolve atom names;
// both the real xgb-backed connection and the test fake implement it.
type internAtomer interface {
	InternAtom(name string) (Atom, error)
}

func internOne(conn Conn, name string) (Atom, error) {
	ia, ok := conn.(internAtomer)
	if !ok {
		return 0, fmt.Errorf("connection does not support interning atoms")
	}
	return ia.InternAtom(name)
}

func internFixedAtoms(conn Conn) (Atoms, error) {
	resolved := make(map[string]Atom, len(fixedAtomNames))
	for _, name := range fixedAtomNames {
		a, err := internOne(conn, name)
		if err != nil {
			return Atoms{}, fmt.Errorf("intern atom %q: %w", name, err)
		}
		resolved[name] = a
	}
	return Atoms{
		Primary:    xa_PRIMARY,
		Clipboard:  resolved["CLIPBOARD"],
		Targets:    resolved["TARGETS"],
		String:     xa_STRING,
		Utf8String: resolved["UTF8_STRING"],
		Incr:       resolved["INCR"],
		Property:   resolved[propertyAtomName],
	}, nil
}
