package xconn

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// xgbConn adapts a *xgb.Conn + its addressable window to the Conn
// interface. xgb sends every request over the wire as soon as it is
// issued (unlike Xlib's buffered model) so Flush is a no-op here; it
// stays part of the Conn interface for fidelity with the XFlush calls
// an Xlib-based implementation of this protocol would make.
type xgbConn struct {
	conn   *xgb.Conn
	window Window
	maxReq uint32
}

// Open opens a connection to displayName (the default display, if
// empty), creates a 1x1 InputOutput child window of the root window,
// selects PropertyChangeMask on it, and interns the fixed atom set.
func Open(displayName string) (*Handle, error) {
	var conn *xgb.Conn
	var err error
	if displayName == "" {
		conn, err = xgb.NewConn()
	} else {
		conn, err = xgb.NewConnDisplay(displayName)
	}
	if err != nil {
		return nil, fmt.Errorf("open X display %q: %w", displayName, err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("allocate window id: %w", err)
	}

	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		screen.Root,
		0, 0, 1, 1,
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange},
	).Check()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create selection window: %w", err)
	}

	c := &xgbConn{
		conn:   conn,
		window: wid,
		maxReq: uint32(setup.MaximumRequestLength),
	}

	atoms, err := internFixedAtoms(c)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Handle{Conn: c, Window: wid, Atoms: atoms}, nil
}

func (c *xgbConn) InternAtom(name string) (Atom, error) {
	reply, err := xproto.InternAtom(c.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

func (c *xgbConn) ConvertSelection(requestor Window, selection, target, property Atom, t Timestamp) error {
	return xproto.ConvertSelectionChecked(c.conn, requestor, selection, target, property, t).Check()
}

func (c *xgbConn) SetSelectionOwner(owner Window, selection Atom, t Timestamp) error {
	return xproto.SetSelectionOwnerChecked(c.conn, owner, selection, t).Check()
}

func (c *xgbConn) GetSelectionOwner(selection Atom) (Window, error) {
	reply, err := xproto.GetSelectionOwner(c.conn, selection).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Owner, nil
}

func (c *xgbConn) ChangeProperty(window Window, property, typ Atom, format byte, data []byte) error {
	// The wire length field counts format-sized units, not bytes.
	return xproto.ChangePropertyChecked(
		c.conn,
		xproto.PropModeReplace,
		window,
		property,
		typ,
		format,
		uint32(len(data))/uint32(format/8),
		data,
	).Check()
}

func (c *xgbConn) DeleteProperty(window Window, property Atom) error {
	return xproto.DeletePropertyChecked(c.conn, window, property).Check()
}

func (c *xgbConn) GetProperty(window Window, property, typ Atom, longOffset, longLength uint32) (PropertyReply, error) {
	reply, err := xproto.GetProperty(c.conn, false, window, property, typ, longOffset, longLength).Reply()
	if err != nil {
		return PropertyReply{}, err
	}
	return PropertyReply{
		Format:     reply.Format,
		Type:       reply.Type,
		BytesAfter: reply.BytesAfter,
		Value:      reply.Value,
	}, nil
}

func (c *xgbConn) SendSelectionNotify(destination Window, ev SelectionNotifyEvent) error {
	wire := xproto.SelectionNotifyEvent{
		Time:      ev.Time,
		Requestor: ev.Requestor,
		Selection: ev.Selection,
		Target:    ev.Target,
		Property:  ev.Property,
	}
	return xproto.SendEventChecked(c.conn, false, destination, 0, string(wire.Bytes())).Check()
}

func (c *xgbConn) SelectPropertyChangeInput(window Window) error {
	return xproto.ChangeWindowAttributesChecked(
		c.conn,
		window,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange},
	).Check()
}

func (c *xgbConn) WaitForEvent() (Event, error) {
	raw, err := c.conn.WaitForEvent()
	if raw == nil && err == nil {
		return TerminateEvent{}, nil
	}
	if err != nil {
		return nil, err
	}
	return convertEvent(raw), nil
}

func (c *xgbConn) PollForEvent() (Event, error) {
	raw, err := c.conn.PollForEvent()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return convertEvent(raw), nil
}

func (c *xgbConn) MaxRequestSize() uint32 {
	return c.maxReq
}

func (c *xgbConn) Flush() error {
	return nil
}

func (c *xgbConn) Close() error {
	c.conn.Close()
	return nil
}

func convertEvent(raw xgb.Event) Event {
	switch e := raw.(type) {
	case xproto.SelectionRequestEvent:
		return SelectionRequestEvent{
			Time:      e.Time,
			Owner:     e.Owner,
			Requestor: e.Requestor,
			Selection: e.Selection,
			Target:    e.Target,
			Property:  e.Property,
		}
	case xproto.SelectionNotifyEvent:
		return SelectionNotifyEvent{
			Time:      e.Time,
			Requestor: e.Requestor,
			Selection: e.Selection,
			Target:    e.Target,
			Property:  e.Property,
		}
	case xproto.SelectionClearEvent:
		return SelectionClearEvent{
			Time:      e.Time,
			Owner:     e.Owner,
			Selection: e.Selection,
		}
	case xproto.PropertyNotifyEvent:
		return PropertyNotifyEvent{
			Window: e.Window,
			Atom:   e.Atom,
			Time:   e.Time,
			State:  e.State,
		}
	default:
		// An event type this library doesn't act on (e.g. window-manager
		// traffic this connection was never meant to see). The owner
		// loop and loader both ignore event types they don't recognize.
		return unrecognizedEvent{}
	}
}

// unrecognizedEvent satisfies Event but matches no case in the core's
// type switches, so it is a silent no-op for one iteration.
type unrecognizedEvent struct{}

func (unrecognizedEvent) isEvent() {}
