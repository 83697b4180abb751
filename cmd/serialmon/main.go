package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/serialmon/internal/config"
	"codeberg.org/mutker/serialmon/internal/errors"
	"codeberg.org/mutker/serialmon/internal/logger"
	"codeberg.org/mutker/serialmon/internal/pid"
	"codeberg.org/mutker/serialmon/internal/transport"
	"github.com/spf13/pflag"
)

const (
	exitOK     = 0
	exitError  = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitConfig
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Str("config_file", cfg.ConfigFile).Msg("Config loaded")

	if cfg.ListPorts {
		return listPorts()
	}

	source := cfg.Port
	if cfg.Simulate {
		source = "simulator"
	}
	lock := pid.New("", source)
	if err := lock.Write(); err != nil {
		fatal(err, "Failed to acquire PID file")
		return exitError
	}
	defer func() {
		if err := lock.Remove(); err != nil {
			logError(err, "Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	toggles := handleSignals(ctx, cancel)

	a, err := newApp(ctx, cfg, logger.New())
	if err != nil {
		if errors.HasCode(err, errors.ErrCanceled) {
			return exitOK
		}
		logError(err, "Failed to initialize")
		return exitError
	}

	if err := a.start(ctx); err != nil {
		logError(err, "Failed to start capture")
		_ = a.shutdown()
		return exitError
	}

	logger.Info().
		Str("source", source).
		Int("max_memory", cfg.MaxMemory).
		Msg("Capturing. Send SIGUSR1 to start or stop a recording")

	a.wait(ctx, toggles)

	if err := a.shutdown(); err != nil {
		return exitError
	}

	return exitOK
}

// handleSignals cancels on SIGINT or SIGTERM and forwards SIGUSR1 as a
// recording toggle.
func handleSignals(ctx context.Context, cancel context.CancelFunc) <-chan struct{} {
	toggles := make(chan struct{}, 1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				if sig == syscall.SIGUSR1 {
					select {
					case toggles <- struct{}{}:
					default:
					}
					continue
				}
				logger.Info().Str("signal", sig.String()).Msg("Received termination signal.")
				cancel()
				return
			}
		}
	}()

	return toggles
}

func listPorts() int {
	ports, err := transport.ListPorts()
	if err != nil {
		logError(err, "Failed to list serial ports")
		return exitError
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return exitOK
	}

	for _, port := range ports {
		fmt.Println(port)
	}

	return exitOK
}

// fatal logs err and exits. Only used before any cleanup is deferred.
func fatal(err error, msg string) {
	var coded errors.Error
	if errors.As(err, &coded) {
		logger.FatalWithCode(coded).Msg(msg)
		return
	}
	logger.Fatal().Err(err).Msg(msg)
}
