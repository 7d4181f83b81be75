package x11clip

import (
	"fmt"

	"x11clip/internal/notify"
	"x11clip/internal/owner"
	"x11clip/internal/store"
	"x11clip/internal/xconn"
)

// Clipboard is the library's facade: a getter handle used by
// Load, a setter handle serviced by a background owner loop (and used
// by Store to claim ownership), the selection store shared between Store and that loop, and the
// unbounded notification queue used to invalidate in-flight INCR state
// before a selection is overwritten.
type Clipboard struct {
	getter *xconn.Handle
	setter *xconn.Handle
	store  *store.Store
	notify *notify.Queue
}

// New opens two independent connections to displayName (the default
// display, if empty) — a getter for the foreground Load path and a
// setter whose events are serviced by a background owner loop spawned
// for the lifetime of the returned Clipboard (or until Close).
func New(displayName string) (*Clipboard, error) {
	getter, err := xconn.Open(displayName)
	if err != nil {
		return nil, fmt.Errorf("%w: getter: %v", ErrConnection, err)
	}
	setter, err := xconn.Open(displayName)
	if err != nil {
		getter.Close()
		return nil, fmt.Errorf("%w: setter: %v", ErrConnection, err)
	}

	st := store.New()
	queue := notify.NewQueue()
	loop := owner.New(setter, st)
	go loop.Run(queue.C())

	return &Clipboard{getter: getter, setter: setter, store: st, notify: queue}, nil
}

// GetterAtoms returns the atoms interned on the connection Load uses.
func (c *Clipboard) GetterAtoms() Atoms { return toPublicAtoms(c.getter.Atoms) }

// SetterAtoms returns the atoms interned on the connection the owner
// loop uses; identical in practice to GetterAtoms, since both
// connections intern the same fixed name set.
func (c *Clipboard) SetterAtoms() Atoms { return toPublicAtoms(c.setter.Atoms) }

// Intern resolves name to its server-assigned atom, for callers that
// want to pass a non-standard target or selection to Load/Store. Atom
// ids are server-global, so an atom interned here is equally valid on
// the setter's connection.
func (c *Clipboard) Intern(name string) (Atom, error) {
	return c.getter.Intern(name)
}

// Store claims ownership of selection and serves target/data to future
// requestors for as long as this process keeps ownership. It invalidates
// any in-flight INCR transfer for selection before claiming ownership,
// so a concurrent Store never races a stale transfer against the new
// value.
func (c *Clipboard) Store(selection, target Atom, data []byte) error {
	c.notify.Send(selection)

	c.store.Write(selection, target, data)

	if err := c.setter.Conn.SetSelectionOwner(c.setter.Window, selection, xconn.Timestamp(0)); err != nil {
		return fmt.Errorf("set selection owner: %w", err)
	}
	cur, err := c.setter.Conn.GetSelectionOwner(selection)
	if err != nil {
		return fmt.Errorf("get selection owner: %w", err)
	}
	if cur != c.setter.Window {
		return ErrBadOwner
	}
	return nil
}

// Close tears down both underlying X connections. Closing the setter's
// connection causes the owner loop's blocking read to observe a
// TerminateEvent and return.
func (c *Clipboard) Close() error {
	c.notify.Close()
	getterErr := c.getter.Close()
	setterErr := c.setter.Close()
	if getterErr != nil {
		return fmt.Errorf("close getter connection: %w", getterErr)
	}
	if setterErr != nil {
		return fmt.Errorf("close setter connection: %w", setterErr)
	}
	return nil
}
