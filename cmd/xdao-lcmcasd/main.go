// Command xdao-lcmcasd serves a content-addressable store over gRPC for
// provenance evidence blobs (anchor records, receipts, checkpoints, audit
// reports).
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"gopkg.in/yaml.v3"

	"xdao.co/lcm/storage"
	"xdao.co/lcm/storage/casconfig"
	"xdao.co/lcm/storage/casregistry"
	"xdao.co/lcm/storage/grpccas"

	_ "xdao.co/lcm/storage/ipfs"
	_ "xdao.co/lcm/storage/localfs"
)

// config is the daemon's YAML configuration. Flags override file values.
type config struct {
	Listen   string `yaml:"listen"`
	Backend  string `yaml:"backend"`
	LogLevel string `yaml:"log_level"`

	// CASConfig points at a casconfig JSON file for multi-backend setups.
	// When set it takes precedence over Backend.
	CASConfig string `yaml:"cas_config"`
}

func defaultConfig() config {
	return config{
		Listen:   "127.0.0.1:7777",
		Backend:  "localfs",
		LogLevel: "info",
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	fs := flag.NewFlagSet("xdao-lcmcasd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "YAML config file")
	listen := fs.String("listen", "", "listen address (overrides config)")
	backend := fs.String("backend", "", "CAS backend name (overrides config)")
	logLevel := fs.String("log-level", "", "zerolog level: trace..error (overrides config)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	logger := zerolog.New(errOut).Level(level).With().Timestamp().Str("daemon", "xdao-lcmcasd").Logger()

	var (
		cas     storage.CAS
		closeFn func() error
	)
	if cfg.CASConfig != "" {
		cc, err := casconfig.LoadFile(cfg.CASConfig)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.CASConfig).Msg("load cas config")
			return 2
		}
		// Only an explicit --backend reorders the config's backends.
		cas, closeFn, err = cc.Open(casregistry.UsageDaemon, *backend)
		if err != nil {
			logger.Error().Err(err).Msg("open cas backends")
			return 2
		}
	} else {
		cas, closeFn, err = casregistry.Open(cfg.Backend, casregistry.UsageDaemon)
		if err != nil {
			logger.Error().Err(err).Str("backend", cfg.Backend).Msg("open cas backend")
			return 2
		}
	}
	if closeFn != nil {
		defer func() {
			if err := closeFn(); err != nil {
				logger.Warn().Err(err).Msg("close cas backend")
			}
		}()
	}

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Error().Err(err).Str("listen", cfg.Listen).Msg("listen")
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas})

	done := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		got := <-sig
		logger.Info().Str("signal", got.String()).Msg("shutting down")
		s.GracefulStop()
		close(done)
	}()

	logger.Info().Str("listen", lis.Addr().String()).Str("backend", cfg.Backend).Msg("serving")
	if err := s.Serve(lis); err != nil {
		logger.Error().Err(err).Msg("serve")
		return 1
	}
	<-done
	return 0
}
