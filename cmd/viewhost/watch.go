package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/1broseidon/viewhost/internal/ipc"
	"github.com/1broseidon/viewhost/internal/tui"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: viewhost watch [--interval D]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Live view of the daemon's views, windows, transition queue and conversions.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  tab/shift-tab, 1-4  Switch tabs")
		fmt.Fprintln(os.Stderr, "  n                   Create a view")
		fmt.Fprintln(os.Stderr, "  x / v / c           Remove, toggle visibility, cancel conversion (views tab)")
		fmt.Fprintln(os.Stderr, "  r                   Refresh now")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C           Quit")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	interval := fs.Duration("interval", time.Second, "Poll interval")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	if err := tui.Watch(ipc.NewClient(), *interval); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
