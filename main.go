// ABOUTME: Entry point for the DAB ensemble capture tool
// ABOUTME: Parses CLI flags, sets up logging and runs the capture session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dabdump/dabdump/internal/app"
	"github.com/dabdump/dabdump/internal/config"
	"github.com/dabdump/dabdump/internal/input"
	"github.com/dabdump/dabdump/internal/version"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configFile     = flag.String("config", "", "YAML configuration file")
	channel        = flag.String("c", "10B", "Channel to tune to")
	dumpDir        = flag.String("o", ".", "Directory to write per-service dumps to")
	gain           = flag.Int("g", -1, "Gain value (-1 enables AGC)")
	noCoarse       = flag.Bool("u", false, "Disable the coarse frequency corrector")
	decodeTII      = flag.Bool("tii", false, "Decode transmitter identification")
	replayFile     = flag.String("iq", "", "Replay manifest used instead of a live device")
	frontend       = flag.String("frontend", input.AutoFrontend, "Receiver front-end driver")
	frontendArgs   = flag.String("frontend-args", "", "Arguments passed to the front-end driver")
	playService    = flag.String("play", "", "Service id to monitor through the sound card (e.g. 0xd210)")
	printTime      = flag.Bool("print-time", false, "Print UTCTime telemetry records")
	startupTimeout = flag.Duration("startup-timeout", 0, "Give up if sync or the service list takes longer (0 waits forever)")
	logFile        = flag.String("log-file", "dabdump.log", "Log file path")
	noTUI          = flag.Bool("no-tui", false, "Disable TUI, use the line console and streaming logs")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// TUI needs an interactive terminal on both ends
	useTUI := !cfg.NoTUI &&
		term.IsTerminal(int(os.Stdin.Fd())) &&
		term.IsTerminal(int(os.Stdout.Fd()))

	rotator := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	defer func() { _ = rotator.Close() }()

	opts := app.Options{
		In:          os.Stdin,
		Out:         os.Stdout,
		Telemetry:   os.Stdout,
		Diagnostics: os.Stderr,
		UseTUI:      useTUI,
	}

	if useTUI {
		// TUI mode: log, telemetry and diagnostics go only to the file
		log.SetOutput(rotator)
		opts.Telemetry = rotator
		opts.Diagnostics = rotator
	} else {
		log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	}

	log.Printf("Starting %s", version.String())
	cfg.Print()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err = app.New(cfg, opts).Run(ctx)
	if errors.Is(err, app.ErrStartDevice) {
		log.Printf("%v", err)
		fmt.Fprintln(os.Stderr, "Could not start device")
		os.Exit(1)
	}
	if err != nil {
		log.Printf("Capture failed: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.Printf("Session lasted %v", time.Since(start).Round(time.Second))
}

// applyFlags overrides config file values with explicitly set flags
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "c":
			cfg.Channel = *channel
		case "o":
			cfg.DumpDir = *dumpDir
		case "g":
			cfg.Gain = *gain
		case "u":
			cfg.Frontend.DisableCoarseCorrector = *noCoarse
		case "tii":
			cfg.Frontend.DecodeTII = *decodeTII
		case "iq":
			cfg.Replay = *replayFile
		case "frontend":
			cfg.Frontend.Driver = *frontend
		case "frontend-args":
			cfg.Frontend.Args = *frontendArgs
		case "play":
			cfg.Monitor.Service = *playService
		case "print-time":
			cfg.PrintTime = *printTime
		case "startup-timeout":
			cfg.Startup.Timeout = *startupTimeout
		case "log-file":
			cfg.Log.File = *logFile
		case "no-tui":
			cfg.NoTUI = *noTUI
		}
	})
}
