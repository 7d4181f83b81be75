// Package x11clip exposes X11 clipboard (and primary-selection) read and
// write operations to applications running on an X Window System
// display. Loading a selection ("Load") and claiming ownership of one
// ("Store") are each a multi-party protocol between a requestor, an
// owner, and the X server acting as broker; large payloads are streamed
// with the INCR convention.
package x11clip
