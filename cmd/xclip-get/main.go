// Command xclip-get loads the current contents of an X11 selection and
// writes them to stdout, in the spirit of xclip's -o mode.
package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"x11clip"
)

var (
	flagDisplay   = flag.String("display", "", "X11 display (auto-detected from $DISPLAY if empty)")
	flagSelection = flag.String("selection", "clipboard", "selection to read: clipboard or primary")
	flagTarget    = flag.String("target", "utf8", "target format: utf8 or string")
	flagTimeout   = flag.Duration("timeout", 5*time.Second, "how long to wait for the owner to respond")
)

func main() {
	flag.Parse()

	c, err := x11clip.New(*flagDisplay)
	if err != nil {
		log.Fatalf("xclip-get: %v", err)
	}
	defer c.Close()

	atoms := c.GetterAtoms()
	selection := atoms.Clipboard
	if *flagSelection == "primary" {
		selection = atoms.Primary
	}
	target := atoms.Utf8String
	if *flagTarget == "string" {
		target = atoms.String
	}

	data, err := c.Load(selection, target, atoms.Property, *flagTimeout)
	if err != nil {
		if errors.Is(err, x11clip.ErrTimeout) {
			log.Fatalf("xclip-get: timed out waiting for the selection owner")
		}
		if errors.Is(err, x11clip.ErrBadTarget) {
			log.Fatalf("xclip-get: owner does not support target %q", *flagTarget)
		}
		log.Fatalf("xclip-get: %v", err)
	}

	os.Stdout.Write(data)
}
