package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/viewhost/internal/ipc"
)

func printViewUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  viewhost view create <name> [--bounds WxH+X+Y]")
	fmt.Fprintln(w, "  viewhost view remove <name>")
	fmt.Fprintln(w, "  viewhost view launch <name> [--animate] [--expand] [--wait] [--token T] [-- command...]")
	fmt.Fprintln(w, "  viewhost view convert <name> <window-id> [--wait]")
	fmt.Fprintln(w, "  viewhost view exit <name> [--bounds WxH+X+Y] [--wait]")
	fmt.Fprintln(w, "  viewhost view bounds <name> <WxH+X+Y>")
	fmt.Fprintln(w, "  viewhost view visible <name> <true|false> [--reorder]")
	fmt.Fprintln(w, "  viewhost view expand <name>")
	fmt.Fprintln(w, "  viewhost view cancel <name>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'viewhost view <command> --help' for command-specific options.")
}

// viewFlags parses flags that may follow the positional arguments, as in
// "view launch side --animate". Everything after "--" is returned as rest.
func viewFlags(fs *flag.FlagSet, args []string) (positional, rest []string, code int, ok bool) {
	for i, a := range args {
		if a == "--" {
			rest = args[i+1:]
			args = args[:i]
			break
		}
	}
	for len(args) > 0 {
		if code, ok := parseFlags(fs, args); !ok {
			return nil, nil, code, false
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	return positional, rest, 0, true
}

func runView(args []string) int {
	if len(args) == 0 {
		printViewUsage(os.Stderr)
		return 2
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printViewUsage(os.Stdout)
		return 0
	}

	client := ipc.NewClient()
	sub := args[0]
	fs := flag.NewFlagSet(sub, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	usage := func(line, desc string) {
		fs.Usage = func() {
			fmt.Fprintln(os.Stderr, "Usage: viewhost view "+line)
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, desc)
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Flags:")
			fs.PrintDefaults()
		}
	}

	switch sub {
	case "create":
		usage("create <name> [--bounds WxH+X+Y]", "Create a view container. Without bounds it covers the display.")
		bounds := fs.String("bounds", "", "Container geometry (WxH+X+Y)")
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 1 {
			fs.Usage()
			return 2
		}
		return report(client.CreateView(pos[0], *bounds))

	case "remove":
		usage("remove <name>", "Close the view's window and release the view once it is gone.")
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 1 {
			fs.Usage()
			return 2
		}
		return report(client.RemoveView(pos[0]))

	case "launch":
		usage("launch <name> [flags] [-- command...]", "Launch a new window into the view.")
		animate := fs.Bool("animate", false, "Run the launch as an animated conversion")
		expand := fs.Bool("expand", false, "Signal ready-to-expand immediately")
		wait := fs.Bool("wait", false, "Wait until an animated launch finished (implies --animate)")
		token := fs.String("token", "", "Use this launch token instead of a generated one")
		timeout := fs.Duration("timeout", 0, "Request timeout when waiting (default 30s)")
		pos, rest, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 1 {
			fs.Usage()
			return 2
		}
		if *wait {
			*animate = true
			if *timeout > 0 {
				client.SetTimeout(*timeout)
			}
		}
		data, err := client.Launch(ipc.ViewLaunchPayload{
			Name:    pos[0],
			Command: strings.Join(rest, " "),
			Token:   *token,
			Animate: *animate,
			Expand:  *expand,
			Wait:    *wait,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("token: %s\n", data.Token)
		if *wait {
			fmt.Printf("done:  %v\n", data.Done)
		}
		return 0

	case "convert":
		usage("convert <name> <window-id> [--wait]", "Move a fullscreen window into the view.")
		wait := fs.Bool("wait", false, "Wait until the conversion finished")
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 2 {
			fs.Usage()
			return 2
		}
		id, err := strconv.ParseUint(pos[1], 0, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid window id %q\n", pos[1])
			return 2
		}
		return report(client.Convert(pos[0], uint32(id), *wait))

	case "exit":
		usage("exit <name> [--bounds WxH+X+Y] [--wait]", "Move the view's window back to fullscreen.")
		bounds := fs.String("bounds", "", "Final geometry (default: the display)")
		wait := fs.Bool("wait", false, "Wait until the conversion finished")
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 1 {
			fs.Usage()
			return 2
		}
		return report(client.Exit(pos[0], *bounds, *wait))

	case "bounds":
		usage("bounds <name> <WxH+X+Y>", "Move or resize the view and its window.")
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 2 {
			fs.Usage()
			return 2
		}
		return report(client.SetBounds(pos[0], pos[1]))

	case "visible":
		usage("visible <name> <true|false> [--reorder]", "Show or hide the view's window.")
		reorder := fs.Bool("reorder", false, "Also raise or lower the window")
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 2 {
			fs.Usage()
			return 2
		}
		visible, err := strconv.ParseBool(pos[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid visibility %q\n", pos[1])
			return 2
		}
		return report(client.SetVisible(pos[0], visible, *reorder))

	case "expand", "cancel":
		desc := "Signal ready-to-expand for the view's pending launch."
		if sub == "cancel" {
			desc = "Unwind whatever conversion is in flight for the view."
		}
		usage(sub+" <name>", desc)
		pos, _, code, ok := viewFlags(fs, args[1:])
		if !ok {
			return code
		}
		if len(pos) != 1 {
			fs.Usage()
			return 2
		}
		if sub == "expand" {
			return report(client.Expand(pos[0]))
		}
		return report(client.Cancel(pos[0]))

	default:
		fmt.Fprintf(os.Stderr, "Unknown view command: %s\n\n", sub)
		printViewUsage(os.Stderr)
		return 2
	}
}

func report(err error) int {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func printSimUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: viewhost sim <action> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Actions (sim compositor only):")
	fmt.Fprintln(w, "  add          Add a window (--mode --bounds --title --parent --locus --home --hidden)")
	fmt.Fprintln(w, "  update <id>  Change a window (--mode --bounds --title --hidden)")
	fmt.Fprintln(w, "  remove <id>  Remove a window")
	fmt.Fprintln(w, "  back <id>    Press back on a window's root")
	fmt.Fprintln(w, "  front <id>   Bring a window to front as the user would")
	fmt.Fprintln(w, "  fail-launch  Fail the launch carrying --token")
}

func runSim(args []string) int {
	if len(args) == 0 {
		printSimUsage(os.Stderr)
		return 2
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printSimUsage(os.Stdout)
		return 0
	}

	action := args[0]
	fs := flag.NewFlagSet("sim "+action, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		printSimUsage(os.Stderr)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	mode := fs.String("mode", "", "Windowing mode: fullscreen, multi-window, pinned, freeform")
	bounds := fs.String("bounds", "", "Geometry (WxH+X+Y)")
	title := fs.String("title", "", "Window title")
	parent := fs.Uint("parent", 0, "Parent window id")
	locus := fs.String("locus", "", "Locus key")
	home := fs.Bool("home", false, "Mark as home window")
	hidden := fs.Bool("hidden", false, "Hidden")
	token := fs.String("token", "", "Launch token")

	pos, _, code, ok := viewFlags(fs, args[1:])
	if !ok {
		return code
	}
	p := ipc.SimWindowPayload{
		Action:   action,
		ParentID: uint32(*parent),
		Mode:     *mode,
		Bounds:   *bounds,
		Title:    *title,
		Locus:    *locus,
		Home:     *home,
		Hidden:   *hidden,
		Token:    *token,
	}
	switch action {
	case ipc.SimAdd, ipc.SimFailLaunch:
		if len(pos) != 0 {
			fs.Usage()
			return 2
		}
	default:
		if len(pos) != 1 {
			fs.Usage()
			return 2
		}
		id, err := strconv.ParseUint(pos[0], 0, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid window id %q\n", pos[0])
			return 2
		}
		p.WindowID = uint32(id)
	}

	client := ipc.NewClient()
	client.SetTimeout(10 * time.Second)
	data, err := client.SimWindow(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if data.WindowID != 0 {
		fmt.Printf("window_id: %d\n", data.WindowID)
	}
	return 0
}
