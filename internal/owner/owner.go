// Package owner implements the background actor that serves
// SelectionRequest events, drives INCR transmission, and relinquishes
// ownership on SelectionClear.
package owner

import (
	"log"

	"x11clip/internal/store"
	"x11clip/internal/xconn"
)

// IncrChunkSize is the number of bytes sent per INCR chunk.
const IncrChunkSize = 4000

// incrState tracks one in-flight outgoing INCR transfer.
type incrState struct {
	selection xconn.Atom
	requestor xconn.Window
	property  xconn.Atom
	pos       int
}

// Loop is the owner-side background actor. It talks to the X server only
// over its own Handle (the "setter"); the only other user of that handle
// is Clipboard.Store, which claims and checks selection ownership on it.
type Loop struct {
	handle *xconn.Handle
	store  *store.Store
	max    int

	// incrIndex maps selection -> property for any in-flight INCR
	// transfer on that selection, so a SelectionClear can find and tear
	// down the matching incrState. Every value here is a key in states,
	// and vice versa.
	incrIndex map[xconn.Atom]xconn.Atom
	states    map[xconn.Atom]*incrState
}

// MaxDirectPayload returns the largest payload, in bytes, that may be
// sent as a single ChangeProperty rather than via INCR, for a server
// advertising serverMaxRequestSize as its maximum request length (in
// 4-byte units, the same quantity XMaxRequestSize reports):
// (max(65536, serverMaxRequestSize) << 2) - 100.
func MaxDirectPayload(serverMaxRequestSize uint32) int {
	if serverMaxRequestSize < 65536 {
		serverMaxRequestSize = 65536
	}
	return int(serverMaxRequestSize)<<2 - 100
}

// New returns a Loop bound to handle and st.
func New(handle *xconn.Handle, st *store.Store) *Loop {
	return &Loop{
		handle:    handle,
		store:     st,
		max:       MaxDirectPayload(handle.Conn.MaxRequestSize()),
		incrIndex: make(map[xconn.Atom]xconn.Atom),
		states:    make(map[xconn.Atom]*incrState),
	}
}

// Run services X events on the loop's handle until the connection is
// closed. notify carries selection atoms that store is about to
// overwrite, so the loop can discard any in-flight INCR state for that
// selection before serving the next SelectionRequest; it is fully
// drained each time an event arrives, before that event is dispatched,
// since notify is backed by an unbounded queue that may have
// accumulated more than one pending invalidation.
func (l *Loop) Run(notify <-chan xconn.Atom) {
	for {
		ev, err := l.handle.Conn.WaitForEvent()
		if err != nil {
			log.Printf("x11clip: owner loop: %v", err)
			continue
		}

		l.drainNotify(notify)

		switch e := ev.(type) {
		case xconn.TerminateEvent:
			return
		case xconn.SelectionRequestEvent:
			l.handleSelectionRequest(e)
		case xconn.PropertyNotifyEvent:
			l.handlePropertyNotify(e)
		case xconn.SelectionClearEvent:
			l.handleSelectionClear(e)
		}
	}
}

func (l *Loop) drainNotify(notify <-chan xconn.Atom) {
	for {
		select {
		case selection, ok := <-notify:
			if !ok {
				return
			}
			if property, ok := l.incrIndex[selection]; ok {
				delete(l.incrIndex, selection)
				delete(l.states, property)
			}
		default:
			return
		}
	}
}

func (l *Loop) handleSelectionRequest(ev xconn.SelectionRequestEvent) {
	entry, ok := l.store.Read(ev.Selection)
	if !ok {
		// No owned entry for this selection: drop the request rather
		// than sending an ICCCM refusal SelectionNotify.
		return
	}

	atoms := l.handle.Atoms
	switch {
	case ev.Target == atoms.Targets:
		data := encodeAtoms(atoms.Targets, entry.Target)
		if err := l.handle.Conn.ChangeProperty(ev.Requestor, ev.Property, xconn.AtomAtom, 32, data); err != nil {
			log.Printf("x11clip: owner loop: write TARGETS property: %v", err)
			return
		}
	case ev.Target == entry.Target:
		if len(entry.Data) < l.max {
			if err := l.handle.Conn.ChangeProperty(ev.Requestor, ev.Property, entry.Target, 8, entry.Data); err != nil {
				log.Printf("x11clip: owner loop: write property: %v", err)
				return
			}
		} else {
			l.beginIncr(ev)
		}
	default:
		// Unsupported target: no property write, no notify, move on.
		return
	}

	notifyEv := xconn.SelectionNotifyEvent{
		Time:      ev.Time,
		Requestor: ev.Requestor,
		Selection: ev.Selection,
		Target:    ev.Target,
		Property:  ev.Property,
	}
	if err := l.handle.Conn.SendSelectionNotify(ev.Requestor, notifyEv); err != nil {
		log.Printf("x11clip: owner loop: send SelectionNotify: %v", err)
		return
	}
	if err := l.handle.Conn.Flush(); err != nil {
		log.Printf("x11clip: owner loop: flush: %v", err)
	}
}

func (l *Loop) beginIncr(ev xconn.SelectionRequestEvent) {
	if err := l.handle.Conn.SelectPropertyChangeInput(ev.Requestor); err != nil {
		log.Printf("x11clip: owner loop: watch requestor property: %v", err)
		return
	}
	if err := l.handle.Conn.ChangeProperty(ev.Requestor, ev.Property, l.handle.Atoms.Incr, 32, nil); err != nil {
		log.Printf("x11clip: owner loop: begin INCR: %v", err)
		return
	}
	l.incrIndex[ev.Selection] = ev.Property
	l.states[ev.Property] = &incrState{
		selection: ev.Selection,
		requestor: ev.Requestor,
		property:  ev.Property,
	}
}

func (l *Loop) handlePropertyNotify(ev xconn.PropertyNotifyEvent) {
	if ev.State != xconn.PropertyDelete {
		return
	}
	state, ok := l.states[ev.Atom]
	if !ok {
		return
	}
	entry, ok := l.store.Read(state.selection)
	if !ok {
		delete(l.states, ev.Atom)
		delete(l.incrIndex, state.selection)
		return
	}

	// A Store may have replaced the payload with a shorter one while
	// this transfer's invalidation was still queued; clamp rather than
	// slice past the new end.
	if state.pos > len(entry.Data) {
		state.pos = len(entry.Data)
	}
	remaining := len(entry.Data) - state.pos
	chunk := IncrChunkSize
	if remaining < chunk {
		chunk = remaining
	}

	data := entry.Data[state.pos : state.pos+chunk]
	if err := l.handle.Conn.ChangeProperty(state.requestor, state.property, entry.Target, 8, data); err != nil {
		log.Printf("x11clip: owner loop: write INCR chunk: %v", err)
		return
	}
	state.pos += chunk

	if chunk == 0 {
		delete(l.states, ev.Atom)
		delete(l.incrIndex, state.selection)
	}
	if err := l.handle.Conn.Flush(); err != nil {
		log.Printf("x11clip: owner loop: flush: %v", err)
	}
}

func (l *Loop) handleSelectionClear(ev xconn.SelectionClearEvent) {
	if property, ok := l.incrIndex[ev.Selection]; ok {
		delete(l.incrIndex, ev.Selection)
		delete(l.states, property)
	}
	l.store.Erase(ev.Selection)
}

func encodeAtoms(atoms ...xconn.Atom) []byte {
	out := make([]byte, 0, len(atoms)*4)
	for _, a := range atoms {
		out = append(out,
			byte(a), byte(a>>8), byte(a>>16), byte(a>>24),
		)
	}
	return out
}
