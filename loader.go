package x11clip

import (
	"fmt"
	"time"

	"x11clip/internal/xconn"
)

// pollDuration is how long Load parks between polls of its connection
// while waiting for a SelectionNotify or PropertyNotify. X11 selection
// conversion has no blocking wait primitive of its own, so callers
// poll.
const pollDuration = 50 * time.Millisecond

// Load converts selection to target and returns the owner's reply, or
// ErrBadTarget if a SelectionNotify with property None arrives (the
// owner declined, or an X server answered for a selection with no
// owner), or ErrTimeout if no reply arrives within timeout. property
// names the window property the reply is staged through; callers
// ordinarily pass
// GetterAtoms().Property.
func (c *Clipboard) Load(selection, target, property Atom, timeout time.Duration) ([]byte, error) {
	h := c.getter
	deadline := time.Now().Add(timeout)

	if err := h.Conn.ConvertSelection(h.Window, selection, target, property, xconn.Timestamp(0)); err != nil {
		return nil, fmt.Errorf("convert selection: %w", err)
	}
	if err := h.Conn.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	var (
		buf       []byte
		incr      bool
		incrProp  Atom
		gotNotify bool
	)

	for {
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		ev, err := h.Conn.PollForEvent()
		if err != nil {
			return nil, fmt.Errorf("poll for event: %w", err)
		}
		if ev == nil {
			time.Sleep(pollDuration)
			continue
		}

		switch e := ev.(type) {
		case xconn.SelectionNotifyEvent:
			if gotNotify || e.Selection != selection {
				continue
			}
			if e.Property == xconn.AtomNone {
				return nil, ErrBadTarget
			}
			gotNotify = true

			reply, err := h.Conn.GetProperty(h.Window, e.Property, xconn.AtomNone, 0, 0)
			if err != nil {
				return nil, fmt.Errorf("get property: %w", err)
			}
			if reply.Type == h.Atoms.Incr {
				incr = true
				incrProp = e.Property
				// The initial INCR property carries a lower-bound size
				// hint, not data (some owners, including this library's
				// own loop, send it empty). Reserve capacity for it,
				// then acknowledge so the owner starts sending chunks.
				hint, err := h.Conn.GetProperty(h.Window, e.Property, h.Atoms.Incr, 0, 1)
				if err != nil {
					return nil, fmt.Errorf("get property: %w", err)
				}
				if len(hint.Value) >= 4 {
					size := uint32(hint.Value[0]) | uint32(hint.Value[1])<<8 | uint32(hint.Value[2])<<16 | uint32(hint.Value[3])<<24
					buf = make([]byte, 0, size)
				}
				if err := h.Conn.DeleteProperty(h.Window, e.Property); err != nil {
					return nil, fmt.Errorf("delete property: %w", err)
				}
				if err := h.Conn.Flush(); err != nil {
					return nil, fmt.Errorf("flush: %w", err)
				}
				continue
			}

			full, err := h.Conn.GetProperty(h.Window, e.Property, reply.Type, 0, (reply.BytesAfter+3)/4)
			if err != nil {
				return nil, fmt.Errorf("get property: %w", err)
			}
			buf = append(buf, full.Value...)
			if err := h.Conn.DeleteProperty(h.Window, e.Property); err != nil {
				return nil, fmt.Errorf("delete property: %w", err)
			}
			return buf, nil

		case xconn.PropertyNotifyEvent:
			if !incr || e.Window != h.Window || e.Atom != incrProp || e.State != xconn.PropertyNewValue {
				continue
			}
			peek, err := h.Conn.GetProperty(h.Window, incrProp, xconn.AtomNone, 0, 0)
			if err != nil {
				return nil, fmt.Errorf("get property: %w", err)
			}
			if peek.BytesAfter == 0 {
				// Zero-length property marks end of transfer.
				if err := h.Conn.DeleteProperty(h.Window, incrProp); err != nil {
					return nil, fmt.Errorf("delete property: %w", err)
				}
				return buf, nil
			}
			full, err := h.Conn.GetProperty(h.Window, incrProp, peek.Type, 0, (peek.BytesAfter+3)/4)
			if err != nil {
				return nil, fmt.Errorf("get property: %w", err)
			}
			buf = append(buf, full.Value...)
			if err := h.Conn.DeleteProperty(h.Window, incrProp); err != nil {
				return nil, fmt.Errorf("delete property: %w", err)
			}
		}
	}
}
