package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/1broseidon/viewhost/internal/ipc"
	"github.com/1broseidon/viewhost/internal/layout"
)

func printLayoutUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  viewhost layout save <name>")
	fmt.Fprintln(w, "  viewhost layout load <name> [--replace] [--animate]")
	fmt.Fprintln(w, "  viewhost layout list")
	fmt.Fprintln(w, "  viewhost layout delete <name>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Layouts are stored in ~/.config/viewhost/layouts/<name>.json. Add a")
	fmt.Fprintln(w, "\"command\" to a view entry to launch it when the layout is loaded.")
}

func runLayout(args []string) int {
	if len(args) == 0 {
		printLayoutUsage(os.Stderr)
		return 2
	}

	sub := args[0]
	fs := flag.NewFlagSet("layout "+sub, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		printLayoutUsage(os.Stderr)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}

	switch sub {
	case "help", "-h", "--help":
		printLayoutUsage(os.Stdout)
		return 0

	case "save":
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 1 {
			fs.Usage()
			return 2
		}
		dump, err := ipc.NewClient().Dump()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		prev, _ := layout.Read(pos[0])
		l, err := layout.Capture(pos[0], dump, prev)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := layout.Write(l); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		path, _ := layout.Path(l.Name)
		fmt.Printf("saved %d views to %s\n", len(l.Views), path)
		return 0

	case "load":
		replace := fs.Bool("replace", false, "Remove views the layout does not name")
		animate := fs.Bool("animate", false, "Launch commands as animated conversions")
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 1 {
			fs.Usage()
			return 2
		}
		l, err := layout.Read(pos[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		if err := layout.Apply(ipc.NewClient(), l, layout.LoadOptions{
			Replace: *replace,
			Animate: *animate,
			Logger:  logger,
		}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("loaded layout %s\n", l.Name)
		return 0

	case "list":
		names, err := layout.List()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return 0

	case "delete":
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 1 {
			fs.Usage()
			return 2
		}
		return report(layout.Delete(pos[0]))

	default:
		fmt.Fprintf(os.Stderr, "Unknown layout command: %s\n\n", sub)
		printLayoutUsage(os.Stderr)
		return 2
	}
}
