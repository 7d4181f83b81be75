// Package xconntest provides an in-memory fake of an X server, just
// enough of one to drive the owner loop and loader against each other
// without a real display. It implements xconn.Conn once per simulated
// client connection (Client), all sharing one Hub that plays the part
// of the server: atom interning, selection ownership, and per-window
// properties.
package xconntest

import (
	"sync"

	"x11clip/internal/xconn"
)

type propValue struct {
	typ    xconn.Atom
	format byte
	data   []byte
}

type window struct {
	self       *Client
	properties map[xconn.Atom]propValue
	watchers   map[*Client]bool
}

// Hub is the shared server state behind every Client created from it.
type Hub struct {
	mu sync.Mutex

	atomNames  map[string]xconn.Atom
	nextAtomID xconn.Atom

	owners map[xconn.Atom]xconn.Window

	windows      map[xconn.Window]*window
	nextWindowID xconn.Window

	maxRequestSize uint32
}

// NewHub returns a Hub. maxRequestSize is reported back by every
// Client's MaxRequestSize. The owner loop floors that value at 65536
// units (owner.MaxDirectPayload), so a smaller value does not lower the
// INCR threshold.
func NewHub(maxRequestSize uint32) *Hub {
	return &Hub{
		atomNames:      make(map[string]xconn.Atom),
		nextAtomID:     1,
		owners:         make(map[xconn.Atom]xconn.Window),
		windows:        make(map[xconn.Window]*window),
		nextWindowID:   1,
		maxRequestSize: maxRequestSize,
	}
}

// Client is one simulated X connection, satisfying xconn.Conn.
type Client struct {
	hub    *Hub
	window xconn.Window
	events chan xconn.Event
}

// NewClient opens a fresh connection against h, with its own window
// (implicitly watching its own property changes, the way a real
// connection's window does once created with PropertyChangeMask set).
func (h *Hub) NewClient() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextWindowID
	h.nextWindowID++
	w := &window{
		properties: make(map[xconn.Atom]propValue),
		watchers:   make(map[*Client]bool),
	}
	h.windows[id] = w

	c := &Client{hub: h, window: id, events: make(chan xconn.Event, 256)}
	w.self = c
	w.watchers[c] = true
	return c
}

func (h *Hub) internLocked(name string) xconn.Atom {
	if a, ok := h.atomNames[name]; ok {
		return a
	}
	a := h.nextAtomID
	h.nextAtomID++
	h.atomNames[name] = a
	return a
}

// InternAtom resolves name to a stable per-Hub atom id.
func (c *Client) InternAtom(name string) (xconn.Atom, error) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	return c.hub.internLocked(name), nil
}

func (c *Client) ConvertSelection(requestor xconn.Window, selection, target, property xconn.Atom, t xconn.Timestamp) error {
	c.hub.mu.Lock()
	owner, ok := c.hub.owners[selection]
	var ownerWin *window
	if ok {
		ownerWin = c.hub.windows[owner]
	}
	c.hub.mu.Unlock()

	if !ok || ownerWin == nil {
		// No owner: deliberately do not synthesize a SelectionNotify
		// here. A real X server would bounce back property=None
		// immediately, but the fake instead leaves the requestor
		// waiting, so tests exercising Load's timeout path still
		// observe a real elapsed deadline rather than an instant
		// BadTarget.
		return nil
	}

	ev := xconn.SelectionRequestEvent{
		Time:      t,
		Owner:     owner,
		Requestor: requestor,
		Selection: selection,
		Target:    target,
		Property:  property,
	}
	c.deliverTo(owner, ev)
	return nil
}

func (c *Client) SetSelectionOwner(owner xconn.Window, selection xconn.Atom, t xconn.Timestamp) error {
	c.hub.mu.Lock()
	prev, had := c.hub.owners[selection]
	c.hub.owners[selection] = owner
	c.hub.mu.Unlock()

	if had && prev != owner && prev != 0 {
		c.deliverTo(prev, xconn.SelectionClearEvent{Time: t, Owner: prev, Selection: selection})
	}
	return nil
}

func (c *Client) GetSelectionOwner(selection xconn.Atom) (xconn.Window, error) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	return c.hub.owners[selection], nil
}

func (c *Client) ChangeProperty(win xconn.Window, property, typ xconn.Atom, format byte, data []byte) error {
	c.hub.mu.Lock()
	w, ok := c.hub.windows[win]
	if !ok {
		c.hub.mu.Unlock()
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	w.properties[property] = propValue{typ: typ, format: format, data: cp}
	watchers := watcherList(w)
	c.hub.mu.Unlock()

	for _, watcher := range watchers {
		watcher.deliverSelf(xconn.PropertyNotifyEvent{Window: win, Atom: property, State: xconn.PropertyNewValue})
	}
	return nil
}

func (c *Client) DeleteProperty(win xconn.Window, property xconn.Atom) error {
	c.hub.mu.Lock()
	w, ok := c.hub.windows[win]
	if !ok {
		c.hub.mu.Unlock()
		return nil
	}
	_, existed := w.properties[property]
	delete(w.properties, property)
	watchers := watcherList(w)
	c.hub.mu.Unlock()

	if !existed {
		return nil
	}
	for _, watcher := range watchers {
		watcher.deliverSelf(xconn.PropertyNotifyEvent{Window: win, Atom: property, State: xconn.PropertyDelete})
	}
	return nil
}

func (c *Client) GetProperty(win xconn.Window, property, typ xconn.Atom, longOffset, longLength uint32) (xconn.PropertyReply, error) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()

	w, ok := c.hub.windows[win]
	if !ok {
		return xconn.PropertyReply{}, nil
	}
	pv, ok := w.properties[property]
	if !ok {
		return xconn.PropertyReply{}, nil
	}

	offset := int(longOffset) * 4
	if offset > len(pv.data) {
		offset = len(pv.data)
	}
	end := len(pv.data)
	if longLength > 0 {
		want := offset + int(longLength)*4
		if want < end {
			end = want
		}
	} else {
		end = offset
	}

	value := append([]byte(nil), pv.data[offset:end]...)
	return xconn.PropertyReply{
		Format:     pv.format,
		Type:       pv.typ,
		BytesAfter: uint32(len(pv.data) - end),
		Value:      value,
	}, nil
}

func (c *Client) SendSelectionNotify(destination xconn.Window, ev xconn.SelectionNotifyEvent) error {
	c.deliverTo(destination, ev)
	return nil
}

func (c *Client) SelectPropertyChangeInput(win xconn.Window) error {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	w, ok := c.hub.windows[win]
	if !ok {
		return nil
	}
	w.watchers[c] = true
	return nil
}

func (c *Client) WaitForEvent() (xconn.Event, error) {
	ev, ok := <-c.events
	if !ok {
		return xconn.TerminateEvent{}, nil
	}
	return ev, nil
}

func (c *Client) PollForEvent() (xconn.Event, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			return xconn.TerminateEvent{}, nil
		}
		return ev, nil
	default:
		return nil, nil
	}
}

func (c *Client) MaxRequestSize() uint32 {
	return c.hub.maxRequestSize
}

func (c *Client) Flush() error { return nil }

func (c *Client) Close() error {
	c.hub.mu.Lock()
	w, ok := c.hub.windows[c.window]
	if ok {
		delete(w.watchers, c)
	}
	c.hub.mu.Unlock()
	close(c.events)
	return nil
}

// Window returns the connection's own window id, for tests that need
// to assert against it directly.
func (c *Client) Window() xconn.Window { return c.window }

func watcherList(w *window) []*Client {
	out := make([]*Client, 0, len(w.watchers))
	for watcher := range w.watchers {
		out = append(out, watcher)
	}
	return out
}

// deliverTo sends a point-to-point event (SelectionRequest,
// SelectionNotify, SelectionClear) to the single client that owns win,
// as opposed to every client watching win for property changes.
func (c *Client) deliverTo(win xconn.Window, ev xconn.Event) {
	c.hub.mu.Lock()
	w, ok := c.hub.windows[win]
	c.hub.mu.Unlock()
	if !ok || w.self == nil {
		return
	}
	w.self.deliverSelf(ev)
}

func (c *Client) deliverSelf(ev xconn.Event) {
	select {
	case c.events <- ev:
	default:
		// Buffer exhausted: drop rather than block the deliverer. Real
		// tests keep well under 256 in-flight events per connection.
	}
}
