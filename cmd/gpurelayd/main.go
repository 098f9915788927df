package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/gpurelay/gpurelay/internal/common/logging"
	"github.com/gpurelay/gpurelay/internal/device/simdev"
	"github.com/gpurelay/gpurelay/internal/worker"
	"github.com/gpurelay/gpurelay/internal/worker/config"
)

func init() {
	logging.InitLogger()
}

type cmdoptions struct {
	configFile string
}

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}

func run() error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	if opt.configFile != "" {
		slog.Info().Str("config_file", opt.configFile).Msg("loading config file")
	}
	if err := config.LoadConfig(opt.configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	cfg := config.Config()
	logging.SetLevel(cfg.LogLevel)

	srv, err := createWorker(cfg)
	if err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Serve()
	}()

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		srv.Shutdown()
	}

	slog.Info().Msg("worker stopped")
	return nil
}

// createWorker builds the device backend from the configured profiles and
// binds the listen socket.
func createWorker(cfg *config.ConfigParam) (*worker.Server, error) {
	specs := make([]simdev.DeviceSpec, 0, len(cfg.Devices))
	for _, p := range cfg.Devices {
		specs = append(specs, simdev.DeviceSpec{
			Name:         p.Name,
			Arch:         p.Arch,
			VramBytes:    p.VramMB << 20,
			ComputeUnits: p.ComputeUnits,
		})
	}
	backend := simdev.New(specs...)

	srv := worker.New(backend, backend, worker.Options{
		Addr:        cfg.ListenAddr(),
		IdleTimeout: cfg.IdleTimeout(),
	})
	if err := srv.Listen(); err != nil {
		return nil, fmt.Errorf("binding listen socket: %w", err)
	}
	return srv, nil
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", "", "Path to the config file (built-in defaults when omitted)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
