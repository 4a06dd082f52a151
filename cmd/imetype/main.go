// imetype types into a gamescope session from the terminal.
//
// Every key read from stdin is sent to the compositor's input method as
// text or as an edit action (backspace, delete, arrows, enter):
//
//	imetype                       Type into gamescope-0 until EOF
//	imetype -display gamescope-1  Use another gamescope socket
//	imetype -dbus                 Also publish status on the session bus
//	cat notes.txt | imetype       Type a file
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"imetype/internal/config"
	"imetype/internal/ime"
	"imetype/internal/ipc"
	"imetype/internal/keystroke"
	"imetype/internal/logging"
	"imetype/internal/metrics"
	"imetype/internal/tty"
)

// Set at link time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	configPath  string
	display     string
	logLevel    string
	dbus        bool
	showVersion bool
	writeConfig bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var opts options
	fs := flag.NewFlagSet("imetype", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }

	fs.StringVar(&opts.configPath, "config", "", "path to config file")
	fs.StringVar(&opts.display, "display", "", "gamescope socket name or path")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&opts.dbus, "dbus", false, "publish session status on the D-Bus session bus")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	fs.BoolVar(&opts.writeConfig, "write-config", false, "write the effective config to -config and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		usage(stderr)
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return &opts, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `imetype - type into a gamescope session from the terminal

Usage: imetype [options]

Reads stdin until EOF. Printable keys are typed as text; Backspace,
Delete, Enter and the arrow keys become edit actions. Ctrl-C quits.

Options:
  -config <path>      Path to config file (default: ~/.config/imetype/config.toml)
  -display <name>     gamescope socket name or absolute path (default: gamescope-0)
  -log-level <level>  debug, info, warn or error
  -dbus               Publish session status on the D-Bus session bus
  -write-config       Write the effective config to -config and exit
  -version            Print version and exit`)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "imetype: %v\n", err)
		return exitUsage
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "imetype %s\n", version)
		return exitOK
	}

	loader := config.NewLoader(opts.configPath)
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(stderr, "imetype: load config %s: %v\n", loader.Path(), err)
		return exitError
	}
	if err := applyFlags(cfg, opts); err != nil {
		fmt.Fprintf(stderr, "imetype: %v\n", err)
		return exitUsage
	}

	if opts.writeConfig {
		if err := config.Save(cfg, loader.Path()); err != nil {
			fmt.Fprintf(stderr, "imetype: %v\n", err)
			return exitError
		}
		fmt.Fprintf(stdout, "wrote %s\n", loader.Path())
		return exitOK
	}

	log, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "imetype: %v\n", err)
		return exitError
	}
	defer log.Close()

	for _, w := range config.Check(cfg).Warnings() {
		log.Warn("config", "field", w.Field, "issue", w.Message)
	}
	watchConfig(loader, opts, log)

	crash := logging.NewCrashHandler(&logging.CrashHandlerConfig{
		Version:   version,
		Component: "imetype",
	})
	if err := crash.CleanupOldCrashReports(30 * 24 * time.Hour); err != nil {
		log.Debug("crash report cleanup", "error", err)
	}

	m := metrics.NewSessionMetrics(nil)
	conn, err := ime.Open(ime.Options{
		Display:        cfg.Wayland.Display,
		RuntimeDir:     cfg.Wayland.RuntimeDir,
		ManagerVersion: cfg.Wayland.ManagerVersion,
		Logger:         log.WithComponent("ime"),
		Metrics:        m,
	})
	if err != nil {
		log.Error("open input method", "display", cfg.Wayland.Display, "error", err)
		fmt.Fprintf(stderr, "imetype: %v\n", err)
		return exitError
	}
	defer conn.Close()

	restore := enterInputMode(stdin, cfg, log)
	defer restore()
	crash.SetOnCrash(func(logging.CrashReport) { restore() })

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()
	go func() {
		sig, ok := <-sigs
		if !ok {
			return
		}
		// The compositor may be stalled; leave the socket to the OS.
		restore()
		log.Info("interrupted", "signal", sig.String())
		logSummary(log, m)
		log.Close()
		code := 128 + int(syscall.SIGINT)
		if s, ok := sig.(syscall.Signal); ok {
			code = 128 + int(s)
		}
		os.Exit(code)
	}()

	if cfg.DBus.Enabled {
		svc, err := ipc.ServeSessionBus(ipc.NewObject(conn.Session(), m), ipc.Options{
			BusName:    cfg.DBus.BusName,
			ObjectPath: cfg.DBus.ObjectPath,
			Logger:     log.WithComponent("ipc"),
		})
		if err != nil {
			log.Warn("status service disabled", "error", err)
		} else {
			svc.Watch(conn.Session())
			defer svc.Close()
		}
	}

	var loopErr error
	panicked := crash.Recover(map[string]interface{}{"display": cfg.Wayland.Display}, func() {
		loopErr = typeLoop(keystroke.NewReader(bufio.NewReader(stdin)), conn.Client, log)
	})
	logSummary(log, m)

	switch {
	case panicked:
		return exitError
	case loopErr != nil:
		restore()
		log.Error("typing stopped", "error", loopErr)
		fmt.Fprintf(stderr, "imetype: %v\n", loopErr)
		return exitError
	}
	return exitOK
}

// applyFlags lays command-line flags over cfg and revalidates it.
func applyFlags(cfg *config.Config, opts *options) error {
	if opts.display != "" {
		cfg.Wayland.Display = opts.display
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.dbus {
		cfg.DBus.Enabled = true
	}
	return cfg.Validate()
}

func newLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	lc, err := cfg.Logging.LoggerConfig()
	if err != nil {
		return nil, err
	}
	if lc.Output == "stderr" {
		lc.Writer = stderr
	}
	return logging.New(lc)
}

// watchConfig follows log level changes in the config file unless the
// level was fixed on the command line.
func watchConfig(loader *config.Loader, opts *options, log *logging.Logger) {
	loader.OnChange(func(c *config.Config) {
		if opts.logLevel != "" {
			return
		}
		level, err := logging.ParseLevel(c.Logging.Level)
		if err != nil {
			return
		}
		log.SetLevel(level)
		log.Info("config reloaded", "log_level", logging.LevelString(level))
	})
	if err := loader.Watch(); err != nil {
		log.Debug("config watch disabled", "path", loader.Path(), "error", err)
		return
	}
	go func() {
		for err := range loader.Errors() {
			log.Warn("config reload rejected", "error", err)
		}
	}()
}

// enterInputMode switches a terminal stdin to keystroke mode. The
// returned function is always safe to call.
func enterInputMode(stdin io.Reader, cfg *config.Config, log *logging.Logger) func() {
	noop := func() {}
	if !cfg.Input.RawMode {
		return noop
	}
	f, ok := stdin.(*os.File)
	if !ok || !tty.IsTerminal(int(f.Fd())) {
		return noop
	}

	restore, err := tty.MakeInput(int(f.Fd()))
	if err != nil {
		log.Warn("terminal left in line mode", "error", err)
		return noop
	}
	return func() {
		if err := restore(); err != nil {
			log.Warn("restore terminal", "error", err)
		}
	}
}

// typeLoop applies every action read from r until the input ends.
func typeLoop(r *keystroke.Reader, client *ime.Client, log *logging.Logger) error {
	for {
		a, err := r.Next()
		if errors.Is(err, io.EOF) {
			log.Debug("end of input", "bytes", r.Consumed())
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if err := client.Apply(a); err != nil {
			return err
		}
		if !client.Session().State().Available {
			return ime.ErrUnavailable
		}
	}
}

func logSummary(log *logging.Logger, m *metrics.SessionMetrics) {
	snap := m.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		attrs = append(attrs, k, snap[k])
	}
	log.Info("session summary", attrs...)
}
