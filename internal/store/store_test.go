package store

import (
	"sync"
	"testing"

	"x11clip/internal/xconn"
)

func TestReadAfterWrite(t *testing.T) {
	s := New()
	s.Write(1, 2, []byte("hello"))

	e, ok := s.Read(1)
	if !ok {
		t.Fatal("expected entry after write")
	}
	if e.Target != 2 || string(e.Data) != "hello" {
		t.Fatalf("got %+v", e)
	}
}

func TestReadMissing(t *testing.T) {
	s := New()
	if _, ok := s.Read(99); ok {
		t.Fatal("expected no entry for unwritten selection")
	}
}

func TestWriteOverwrites(t *testing.T) {
	s := New()
	s.Write(1, 2, []byte("first"))
	s.Write(1, 3, []byte("second"))

	e, ok := s.Read(1)
	if !ok || e.Target != 3 || string(e.Data) != "second" {
		t.Fatalf("got %+v, ok=%v", e, ok)
	}
}

func TestErase(t *testing.T) {
	s := New()
	s.Write(1, 2, []byte("x"))
	s.Erase(1)
	if _, ok := s.Read(1); ok {
		t.Fatal("expected entry to be gone after erase")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Write(xconn.Atom(i%3), xconn.Atom(i), []byte{byte(i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			s.Read(xconn.Atom(i % 3))
		}(i)
	}
	wg.Wait()
}
