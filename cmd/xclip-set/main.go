// Command xclip-set claims ownership of an X11 selection and serves the
// given text to future requestors for as long as the process runs, the
// same lifetime contract xclip and xsel use for their -set modes.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"x11clip"
)

var (
	flagDisplay   = flag.String("display", "", "X11 display (auto-detected from $DISPLAY if empty)")
	flagSelection = flag.String("selection", "clipboard", "selection to own: clipboard or primary")
)

func main() {
	flag.Parse()

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("xclip-set: read stdin: %v", err)
	}

	c, err := x11clip.New(*flagDisplay)
	if err != nil {
		log.Fatalf("xclip-set: %v", err)
	}
	defer c.Close()

	atoms := c.SetterAtoms()
	selection := atoms.Clipboard
	if *flagSelection == "primary" {
		selection = atoms.Primary
	}

	if err := c.Store(selection, atoms.Utf8String, data); err != nil {
		log.Fatalf("xclip-set: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
