package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dooshek/multiboxer/internal/config"
	"github.com/dooshek/multiboxer/internal/core"
	"github.com/dooshek/multiboxer/internal/dbus"
	"github.com/dooshek/multiboxer/internal/fileops"
	"github.com/dooshek/multiboxer/internal/inject"
	"github.com/dooshek/multiboxer/internal/keyboard"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/notification"
	"github.com/dooshek/multiboxer/internal/stats"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/dooshek/multiboxer/internal/windowctl"
	"github.com/dooshek/multiboxer/internal/windowdetect"
	"github.com/dooshek/multiboxer/internal/wizard"
	"github.com/dooshek/multiboxer/internal/x11"
	"github.com/dooshek/multiboxer/internal/xdotool"
	"github.com/fatih/color"
)

func init() {
	// Set custom usage message to show -- prefix
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(out, "  --%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if len(name) > 0 {
				fmt.Fprintf(out, " %s", name)
			}
			fmt.Fprintf(out, "\n    \t%s", usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(out, " (default %q)", f.DefValue)
			}
			fmt.Fprintf(out, "\n")
		})
	}
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to the config file (default ~/.config/multiboxer/multiboxer.yaml)")
	runWizard := flag.Bool("wizard", false, "Run the configuration wizard")
	showStatus := flag.Bool("status", false, "Show the state of the running instance")
	toggle := flag.Bool("toggle-broadcast", false, "Toggle broadcasting in the running instance")
	refresh := flag.Bool("refresh", false, "Rescan and renumber the windows of the running instance")
	layout := flag.String("layout", "", "Arrange the windows of the running instance (maximize|tile_horizontal|main_left|grid)")
	gridSize := flag.String("grid-size", "800x600", "Window size for the grid layout")
	pattern := flag.String("pattern", "", "Window title pattern, overrides the config file")
	mode := flag.String("mode", "", "Broadcast mode (focus_sweep|background), overrides the config file")
	logLevel := flag.String("log-level", "info", "Set log level (debug|info|warn|error)")
	logFilename := flag.String("log-filename", "", "Log to file instead of stdout")
	flag.Parse()

	// Set up logging level and output
	logger.SetLevel(*logLevel)
	if *logFilename != "" {
		if err := logger.SetOutputFile(*logFilename); err != nil {
			fmt.Printf("Error setting log file: %v\n", err)
			os.Exit(1)
		}
		defer logger.CloseLogFile()
	}

	path, err := config.Path(*configPath)
	if err != nil {
		logger.Error("Failed to resolve config path", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *runWizard:
		if err := wizard.New(path, wizardSource(), os.Stdin, os.Stdout).Run(ctx); err != nil {
			logger.Error("Error running wizard", err)
			os.Exit(1)
		}
		return
	case *showStatus:
		if err := printStatus(); err != nil {
			logger.Error("Failed to get status", err)
			os.Exit(1)
		}
		return
	case *toggle:
		if err := toggleBroadcast(); err != nil {
			logger.Error("Failed to toggle broadcasting", err)
			os.Exit(1)
		}
		return
	case *refresh:
		if err := refreshWindows(); err != nil {
			logger.Error("Failed to refresh windows", err)
			os.Exit(1)
		}
		return
	case *layout != "":
		if err := applyLayout(types.LayoutMode(*layout), *gridSize); err != nil {
			logger.Error("Failed to apply layout", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Error("Error loading config", err)
		os.Exit(1)
	}
	if *pattern != "" {
		cfg.Pattern = *pattern
	}
	if *mode != "" {
		m := types.BroadcastMode(*mode)
		if !m.Valid() {
			logger.Errorf("Invalid --mode %q", errors.New("unknown broadcast mode"), *mode)
			os.Exit(1)
		}
		cfg.BroadcastMode = m
	}

	// Initialize fileops
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		logger.Error("Failed to initialize file operations", err)
		os.Exit(1)
	}
	if err := fileOps.EnsureDirectories(); err != nil {
		logger.Error("Failed to create necessary directories", err)
		os.Exit(1)
	}

	// Check if another instance is running
	if err := fileOps.CheckPID(); err != nil {
		if errors.Is(err, fileops.ErrProcessAlreadyRunning) {
			logger.Error("Another instance of multiboxer is already running", err)
			os.Exit(1)
		}
		logger.Warnf("Ignoring unreadable PID file: %v", err)
	}
	if err := fileOps.SavePID(); err != nil {
		logger.Error("Failed to save PID file", err)
		os.Exit(1)
	}
	defer fileOps.HandleExit()

	if err := run(ctx, cfg, path, fileOps); err != nil {
		logger.Error("multiboxer failed", err)
		fileOps.HandleExit()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *types.Config, path string, fileOps fileops.FileOps) error {
	if err := xdotool.Check(); err != nil {
		return err
	}
	if err := xdotool.CheckWmctrl(); err != nil {
		logger.Warnf("%v", err)
	}

	conn, err := x11.Connect()
	if err != nil {
		logger.Warnf("No X connection, falling back to xdotool queries: %v", err)
	} else {
		defer conn.Close()
	}

	source, err := keyboard.CreateSource(cfg.InputSource, conn)
	if err != nil {
		return fmt.Errorf("failed to create input source: %w", err)
	}
	injector, err := inject.New(cfg.Injector, nil)
	if err != nil {
		return err
	}

	var ewmh windowdetect.EWMH
	if conn != nil {
		ewmh = conn
	}
	detector := windowdetect.New(ewmh, nil)
	windows := windowctl.New(nil)
	st := stats.NewStatsManager()

	deps := core.Deps{
		Source:   source,
		Finder:   detector,
		Windows:  windows,
		Focus:    detector,
		Titles:   detector,
		Injector: injector,
		Notifier: notification.New(cfg.Notifications.Enabled),
		Stats:    st,
		Store:    fileOps,
	}
	if conn != nil {
		deps.Screen = conn
	}
	if cfg.InputSource == types.SourceX11 {
		deps.Grabber = conn
		deps.GrabMods = x11.AnyModifier
	}

	ctrl := core.New(cfg, deps)
	ctrl.OnVisibility(func(active types.WindowID, managed, overlay bool) {
		logger.Debugf("Overlay: window %s managed=%v visible=%v", active, managed, managed && overlay)
	})

	var srv *dbus.Server
	if cfg.DBus.Enabled {
		srv = dbus.NewServer(ctrl, st)
		if err := srv.Start(); err != nil {
			logger.Warnf("D-Bus service unavailable: %v", err)
			srv = nil
		}
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	watcher, err := config.NewWatcher(path, ctrl.ApplyConfig)
	if err != nil {
		logger.Warnf("Config changes will not be picked up: %v", err)
		close(watchDone)
	} else {
		go func() {
			defer close(watchDone)
			watcher.Run(watchCtx)
		}()
	}

	if err := ctrl.Start(ctx); err != nil {
		stopWatch()
		<-watchDone
		if srv != nil {
			srv.Stop()
		}
		return err
	}
	logger.Infof("Broadcasting to windows matching %q", cfg.Pattern)
	logger.Info("💡 Note: You can run `multiboxer --wizard` to change the shortcuts")

	<-ctx.Done()
	logger.Info("Shutting down...")
	// Nothing may reach the controller once it has released the keyboard.
	stopWatch()
	<-watchDone
	if srv != nil {
		srv.Stop()
	}
	ctrl.Stop()
	logger.Debugf("Stats: %s", statsLine(st))
	return nil
}

// wizardSource listens without grabbing: the wizard must see every key.
func wizardSource() wizard.Source {
	if keyboard.DefaultSourceKind() == types.SourceX11 {
		return keyboard.NewHookSource()
	}
	return keyboard.NewEvdevSource()
}

func statsLine(st *stats.StatsManager) string {
	s, err := st.GetStatsJSON()
	if err != nil {
		return err.Error()
	}
	return s
}

func printStatus() error {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	client, err := dbus.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		red.Println("multiboxer is not running")
		return printLastWindows()
	}

	bold.Println("multiboxer is running")
	fmt.Print("Broadcast: ")
	if status.Broadcast {
		green.Println("on")
	} else {
		red.Println("off")
	}
	fmt.Printf("Overlay:   %v\n", status.Overlay)
	fmt.Printf("Active:    %s\n", status.Active)
	for i, id := range status.Windows {
		marker := " "
		if id == status.Active {
			marker = "*"
		}
		fmt.Printf("  %s window %d: %s\n", marker, i+1, id)
	}

	raw, err := client.Stats()
	if err != nil {
		return err
	}
	var parsed stats.Stats
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("failed to parse stats: %w", err)
	}
	modes := make([]string, 0, len(parsed.Modes))
	for m := range parsed.Modes {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	for _, m := range modes {
		ms := parsed.Modes[m]
		fmt.Printf("%s: %d bursts, %d deliveries, %d failures, avg %.1f ms, slowest %.1f ms\n",
			m, ms.Bursts, ms.Deliveries, ms.Failures, ms.AverageMillis(), ms.SlowestMillis)
	}
	return nil
}

func printLastWindows() error {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return err
	}
	ids, err := fileOps.LoadWindows()
	if err != nil {
		return fmt.Errorf("failed to read last window list: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	fmt.Println("Last window group:")
	for i, id := range ids {
		fmt.Printf("  window %d: %s\n", i+1, id)
	}
	return nil
}

func toggleBroadcast() error {
	client, err := dbus.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	on, err := client.ToggleBroadcast()
	if err != nil {
		return err
	}
	state := "off"
	if on {
		state = "on"
	}
	fmt.Printf("Broadcasting %s\n", state)
	return nil
}

func refreshWindows() error {
	client, err := dbus.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	ids, err := client.RefreshWindows("")
	if err != nil {
		return err
	}
	fmt.Printf("Managing %d windows\n", len(ids))
	for i, id := range ids {
		fmt.Printf("  window %d: %s\n", i+1, id)
	}
	return nil
}

func applyLayout(mode types.LayoutMode, gridSize string) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown layout %q", mode)
	}
	var width, height int
	if _, err := fmt.Sscanf(gridSize, "%dx%d", &width, &height); err != nil {
		return fmt.Errorf("invalid --grid-size %q: %w", gridSize, err)
	}

	client, err := dbus.Dial()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.ApplyLayout(mode, width, height)
}
