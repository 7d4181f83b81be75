package x11clip

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"x11clip/internal/notify"
	"x11clip/internal/owner"
	"x11clip/internal/store"
	"x11clip/internal/xconn"
	"x11clip/internal/xconntest"
)

func internTestAtoms(t *testing.T, c *xconntest.Client) xconn.Atoms {
	t.Helper()
	names := map[string]*xconn.Atom{}
	var clipboard, targets, utf8, incr, property xconn.Atom
	names["CLIPBOARD"] = &clipboard
	names["TARGETS"] = &targets
	names["UTF8_STRING"] = &utf8
	names["INCR"] = &incr
	names["THIS_CLIPBOARD_OUT"] = &property

	for name, dst := range names {
		a, err := c.InternAtom(name)
		if err != nil {
			t.Fatalf("intern %q: %v", name, err)
		}
		*dst = a
	}

	return xconn.Atoms{
		Primary:    9001,
		Clipboard:  clipboard,
		Targets:    targets,
		String:     9002,
		Utf8String: utf8,
		Incr:       incr,
		Property:   property,
	}
}

func newTestClipboard(t *testing.T, hub *xconntest.Hub) *Clipboard {
	t.Helper()

	getterClient := hub.NewClient()
	setterClient := hub.NewClient()

	getter := &xconn.Handle{Conn: getterClient, Window: getterClient.Window(), Atoms: internTestAtoms(t, getterClient)}
	setter := &xconn.Handle{Conn: setterClient, Window: setterClient.Window(), Atoms: internTestAtoms(t, setterClient)}

	st := store.New()
	queue := notify.NewQueue()
	loop := owner.New(setter, st)
	go loop.Run(queue.C())

	c := &Clipboard{getter: getter, setter: setter, store: st, notify: queue}
	t.Cleanup(func() { c.Close() })
	return c
}

// decodeAtoms parses a format-32 ATOM list property value the way a
// TARGETS reply encodes it: little-endian uint32 per atom.
func decodeAtoms(data []byte) []xconn.Atom {
	atoms := make([]xconn.Atom, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		atoms = append(atoms, xconn.Atom(data[i])|xconn.Atom(data[i+1])<<8|xconn.Atom(data[i+2])<<16|xconn.Atom(data[i+3])<<24)
	}
	return atoms
}

func TestStoreThenLoadRoundTrip(t *testing.T) {
	hub := xconntest.NewHub(1 << 20)
	c := newTestClipboard(t, hub)
	selection := c.GetterAtoms().Clipboard
	target := c.GetterAtoms().Utf8String

	if err := c.Store(selection, target, []byte("hello, clipboard")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := c.Load(selection, target, c.GetterAtoms().Property, time.Second)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "hello, clipboard" {
		t.Fatalf("Load = %q", got)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	hub := xconntest.NewHub(1 << 20)
	c := newTestClipboard(t, hub)
	selection := c.GetterAtoms().Clipboard
	target := c.GetterAtoms().Utf8String

	if err := c.Store(selection, target, []byte("stable")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := c.Load(selection, target, c.GetterAtoms().Property, time.Second)
		if err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
		if string(got) != "stable" {
			t.Fatalf("Load #%d = %q", i, got)
		}
	}
}

// TestOverwriteReplacesValue checks that a second Store on the same
// selection, issued with no intervening X event, does not deadlock the
// notify queue (it used to, against a bounded channel) and leaves the
// second value visible to Load.
func TestOverwriteReplacesValue(t *testing.T) {
	hub := xconntest.NewHub(1 << 20)
	c := newTestClipboard(t, hub)
	selection := c.GetterAtoms().Clipboard
	target := c.GetterAtoms().Utf8String

	if err := c.Store(selection, target, []byte("first")); err != nil {
		t.Fatalf("Store 1: %v", err)
	}
	if err := c.Store(selection, target, []byte("second")); err != nil {
		t.Fatalf("Store 2: %v", err)
	}

	got, err := c.Load(selection, target, c.GetterAtoms().Property, time.Second)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("Load = %q, want %q", got, "second")
	}
}

// TestEmptyPayloadRoundTrip checks that storing and loading a
// zero-length selection is not mistaken for "no entry" or for an INCR
// end-of-transfer marker.
func TestEmptyPayloadRoundTrip(t *testing.T) {
	hub := xconntest.NewHub(1 << 20)
	c := newTestClipboard(t, hub)
	selection := c.GetterAtoms().Clipboard
	target := c.GetterAtoms().Utf8String

	if err := c.Store(selection, target, []byte{}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := c.Load(selection, target, c.GetterAtoms().Property, time.Second)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Load = %q, want empty", got)
	}
}

// TestLoadTargetsListsStoredTarget checks that converting to TARGETS
// lists TARGETS itself plus whatever target the current entry was
// stored under, exercising loader.go's non-INCR branch for a reply type
// other than the stored payload's own target.
func TestLoadTargetsListsStoredTarget(t *testing.T) {
	hub := xconntest.NewHub(1 << 20)
	c := newTestClipboard(t, hub)
	atoms := c.GetterAtoms()
	selection := atoms.Clipboard
	target := atoms.Utf8String

	if err := c.Store(selection, target, []byte("payload")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := c.Load(selection, atoms.Targets, atoms.Property, time.Second)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []xconn.Atom{atoms.Targets, target}
	gotAtoms := decodeAtoms(got)
	if len(gotAtoms) != len(want) || gotAtoms[0] != want[0] || gotAtoms[1] != want[1] {
		t.Fatalf("TARGETS = %v, want %v", gotAtoms, want)
	}
}

// TestSingleShotRoundTripAtChunkBoundaries covers the payload sizes
// around IncrChunkSize multiples that stay under the single-shot
// ceiling and therefore
// travel as one ChangeProperty: the chunk-size arithmetic must not leak
// into the single-shot path.
func TestSingleShotRoundTripAtChunkBoundaries(t *testing.T) {
	sizes := []int{
		owner.IncrChunkSize - 1,
		owner.IncrChunkSize,
		owner.IncrChunkSize + 1,
		2 * owner.IncrChunkSize,
		3 * owner.IncrChunkSize,
	}

	for _, size := range sizes {
		size := size
		t.Run("", func(t *testing.T) {
			hub := xconntest.NewHub(1 << 20)
			c := newTestClipboard(t, hub)
			selection := c.GetterAtoms().Clipboard
			target := c.GetterAtoms().Utf8String

			payload := make([]byte, size)
			for i := range payload {
				payload[i] = byte(i)
			}

			if err := c.Store(selection, target, payload); err != nil {
				t.Fatalf("Store: %v", err)
			}

			got, err := c.Load(selection, target, c.GetterAtoms().Property, 5*time.Second)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip mismatch at size %d: got %d bytes", size, len(got))
			}
		})
	}
}

// TestIncrRoundTripAtChunkBoundaries round-trips payloads sized
// relative to the real single-shot ceiling (owner.MaxDirectPayload)
// rather than an arbitrary small number, so it actually exercises
// beginIncr/handlePropertyNotify and the loader's INCR branch instead
// of the single-shot ChangeProperty path. Because the ceiling is
// floored at 65536 server-request units regardless of what the fake hub
// reports, these cases transfer roughly a quarter megabyte at
// IncrChunkSize=4000 per chunk, so each subtest takes a few seconds of
// real wall-clock
// time (the loader's poll cadence, not CPU work) — generous timeouts
// are given accordingly.
func TestIncrRoundTripAtChunkBoundaries(t *testing.T) {
	const serverMax = 65536 // at MaxDirectPayload's floor
	max := owner.MaxDirectPayload(serverMax)

	sizes := []int{
		max - 1, // still the single-shot path
		max,     // smallest size that must go via INCR
		max + 1,
		max + 3*owner.IncrChunkSize,
	}

	for _, size := range sizes {
		size := size
		t.Run("", func(t *testing.T) {
			hub := xconntest.NewHub(serverMax)
			c := newTestClipboard(t, hub)
			selection := c.GetterAtoms().Clipboard
			target := c.GetterAtoms().Utf8String

			payload := make([]byte, size)
			for i := range payload {
				payload[i] = byte(i)
			}

			if err := c.Store(selection, target, payload); err != nil {
				t.Fatalf("Store: %v", err)
			}

			got, err := c.Load(selection, target, c.GetterAtoms().Property, 30*time.Second)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip mismatch at size %d: got %d bytes, want %d", size, len(got), len(payload))
			}
		})
	}
}

// TestIncrRoundTripLargePayload moves 1,000,000 bytes, well past the
// single-shot ceiling, so the transfer spans many chunks.
func TestIncrRoundTripLargePayload(t *testing.T) {
	hub := xconntest.NewHub(65536)
	c := newTestClipboard(t, hub)
	selection := c.GetterAtoms().Clipboard
	target := c.GetterAtoms().Utf8String

	payload := make([]byte, 1_000_000)
	for i := range payload {
		payload[i] = byte(i)
	}

	if err := c.Store(selection, target, payload); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := c.Load(selection, target, c.GetterAtoms().Property, 60*time.Second)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestLoadTimesOutWithNoOwner(t *testing.T) {
	hub := xconntest.NewHub(1 << 20)
	getterClient := hub.NewClient()
	getter := &xconn.Handle{Conn: getterClient, Window: getterClient.Window(), Atoms: internTestAtoms(t, getterClient)}
	c := &Clipboard{getter: getter}

	start := time.Now()
	_, err := c.Load(getter.Atoms.Clipboard, getter.Atoms.Utf8String, getter.Atoms.Property, 100*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	elapsed := time.Since(start)
	if elapsed < 100*time.Millisecond {
		t.Fatalf("returned after %v, before the deadline", elapsed)
	}
	// Deadline plus at most one poll park, with scheduler slack.
	if elapsed > time.Second {
		t.Fatalf("returned after %v, long past deadline+poll", elapsed)
	}
}

func TestLoadBadTargetOnExplicitRefusal(t *testing.T) {
	hub := xconntest.NewHub(1 << 20)
	getterClient := hub.NewClient()
	foreignClient := hub.NewClient()
	getter := &xconn.Handle{Conn: getterClient, Window: getterClient.Window(), Atoms: internTestAtoms(t, getterClient)}

	selection := getter.Atoms.Clipboard
	target := getter.Atoms.Utf8String
	if err := foreignClient.SetSelectionOwner(foreignClient.Window(), selection, 0); err != nil {
		t.Fatalf("SetSelectionOwner: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ev, err := foreignClient.WaitForEvent()
		if err != nil {
			t.Errorf("foreign WaitForEvent: %v", err)
			return
		}
		req, ok := ev.(xconn.SelectionRequestEvent)
		if !ok {
			t.Errorf("foreign got %T, want SelectionRequestEvent", ev)
			return
		}
		// Classic ICCCM refusal: reply with property=None.
		notifyErr := foreignClient.SendSelectionNotify(req.Requestor, xconn.SelectionNotifyEvent{
			Selection: req.Selection,
			Target:    req.Target,
			Property:  xconn.AtomNone,
		})
		if notifyErr != nil {
			t.Errorf("SendSelectionNotify: %v", notifyErr)
		}
	}()

	c := &Clipboard{getter: getter}
	_, err := c.Load(selection, target, getter.Atoms.Property, 2*time.Second)
	<-done
	if !errors.Is(err, ErrBadTarget) {
		t.Fatalf("err = %v, want ErrBadTarget", err)
	}
}

type fixedOwnerConn struct {
	xconn.Conn
	owner xconn.Window
}

func (f fixedOwnerConn) SetSelectionOwner(owner xconn.Window, selection xconn.Atom, t xconn.Timestamp) error {
	return nil
}

func (f fixedOwnerConn) GetSelectionOwner(selection xconn.Atom) (xconn.Window, error) {
	return f.owner, nil
}

func TestStoreReturnsBadOwnerWhenOwnershipDoesNotStick(t *testing.T) {
	setter := &xconn.Handle{Conn: fixedOwnerConn{owner: 999}, Window: 1}
	c := &Clipboard{
		setter: setter,
		store:  store.New(),
		notify: notify.NewQueue(),
	}
	t.Cleanup(func() { c.notify.Close() })

	err := c.Store(1, 2, []byte("x"))
	if !errors.Is(err, ErrBadOwner) {
		t.Fatalf("err = %v, want ErrBadOwner", err)
	}
}
