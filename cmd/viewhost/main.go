package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1broseidon/viewhost/internal/config"
	"github.com/1broseidon/viewhost/internal/daemon"
	"github.com/1broseidon/viewhost/internal/ipc"
	"github.com/1broseidon/viewhost/internal/runtimepath"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "dump":
		os.Exit(runDump(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "view":
		os.Exit(runView(os.Args[2:]))
	case "sim":
		os.Exit(runSim(os.Args[2:]))
	case "layout":
		os.Exit(runLayout(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: viewhost <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the viewhost daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  dump                Print windows, views, queue and conversions as JSON")
	fmt.Fprintln(w, "  reload              Reload the daemon configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  view create         Create a view container")
	fmt.Fprintln(w, "  view remove         Close a view's window and release the view")
	fmt.Fprintln(w, "  view launch         Launch a new window into a view")
	fmt.Fprintln(w, "  view convert        Move a fullscreen window into a view")
	fmt.Fprintln(w, "  view exit           Move a view's window back to fullscreen")
	fmt.Fprintln(w, "  view bounds         Move or resize a view")
	fmt.Fprintln(w, "  view visible        Show or hide a view's window")
	fmt.Fprintln(w, "  view expand         Signal ready-to-expand for a pending launch")
	fmt.Fprintln(w, "  view cancel         Unwind the conversion in flight for a view")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  sim <action>        Drive the simulated compositor")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  layout save         Save the current views as a named layout")
	fmt.Fprintln(w, "  layout load         Recreate the views of a saved layout")
	fmt.Fprintln(w, "  layout list         List saved layouts")
	fmt.Fprintln(w, "  layout delete       Delete a saved layout")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  watch               Open the interactive watch screen")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'viewhost <command> --help' for command-specific options.")
}

// newLogger builds the daemon logger from the configured level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// parseFlags parses args and reports the exit code when parsing stopped.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: viewhost daemon")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the daemon in the foreground. SIGHUP reloads the configuration;")
		fmt.Fprintln(os.Stderr, "SIGINT/SIGTERM write a state snapshot and shut down.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	logger := newLogger(cfg)
	logger.Info("configuration loaded", "compositor", cfg.Compositor, "log_level", cfg.LogLevel)

	d, err := daemon.New(daemon.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Error("failed to start daemon", "error", err)
		return 1
	}

	// Create config reload channel
	reloadChan := make(chan struct{}, 1)

	ipcServer, err := ipc.NewServer(cfg, d, reloadChan, logger)
	if err != nil {
		logger.Error("failed to create IPC server", "error", err)
		return 1
	}
	if err := ipcServer.Start(); err != nil {
		logger.Error("failed to start IPC server", "error", err)
		return 1
	}
	defer ipcServer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	go func() {
		for {
			select {
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGHUP:
					logger.Info("received SIGHUP, reloading config")
					newCfg, err := config.Load()
					if err != nil {
						logger.Error("config reload failed", "error", err)
						continue
					}
					if err := d.ApplyConfig(ctx, newCfg); err != nil {
						logger.Error("config apply failed", "error", err)
						continue
					}
					ipcServer.UpdateConfig(newCfg)
					logger.Info("config reloaded successfully")

				case os.Interrupt, syscall.SIGTERM:
					logger.Info("shutting down viewhost daemon", "signal", sig.String())
					saveCtx, saveCancel := context.WithTimeout(ctx, 2*time.Second)
					if err := d.SaveState(saveCtx); err != nil {
						logger.Warn("failed to save state snapshot", "error", err)
					}
					saveCancel()
					ipcServer.Stop()
					cancel()
					return
				}

			case <-reloadChan:
				// The IPC server already applied the config to the daemon.
				logger.Debug("config reloaded via IPC")

			case <-ctx.Done():
				return
			}
		}
	}()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon stopped with error", "error", err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: viewhost status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("compositor:     %s\n", status.Compositor)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	fmt.Printf("windows:        %d\n", status.Windows)
	fmt.Printf("views:          %d\n", status.Views)
	fmt.Printf("queue_length:   %d\n", status.QueueLength)
	fmt.Printf("conversions:    %d\n", status.Conversions)
	return 0
}

func runDump(args []string) int {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: viewhost dump [--saved]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Print the daemon's windows, views, transition queue and conversions as JSON.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	saved := fs.Bool("saved", false, "Print the snapshot written at the last daemon shutdown instead")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "dump takes no arguments")
		fs.Usage()
		return 2
	}

	if *saved {
		path, err := runtimepath.StatePath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		os.Stdout.Write(data)
		return 0
	}

	client := ipc.NewClient()
	dump, err := client.Dump()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return printJSON(dump)
}

func runReload(args []string) int {
	fs := flag.NewFlagSet("reload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: viewhost reload")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Ask the daemon to reload its configuration file.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("config: reloaded")
	return 0
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}
