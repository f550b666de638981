package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cirello.io/oversight"
	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/config"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/metrics"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/registry"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/server"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

type CLI struct {
	Debug    bool     `arg:"--debug" help:"debugging output"`
	HTTPAddr string   `arg:"--http-addr" help:"HTTP listen address (default: HTTP_ADDR)"`
	GRPCAddr string   `arg:"--grpc-addr" help:"gRPC health listen address (default: GRPC_ADDR)"`
	Watch    []string `arg:"--watch" help:"paths that trigger a model reload (default: MODELS_DIR)"`
	NoWatch  bool     `arg:"--no-watch" help:"disable automatic reloads"`
}

// #region main
func main() {
	args := &CLI{}
	parser, err := arg.NewParser(arg.Config{Program: "server"}, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := parser.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		parser.WriteUsage(os.Stderr)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	logger := config.ConfigureLogger(args.Debug)
	if err := run(args, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// #endregion main

// #region run
func run(args *CLI, logger *zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if args.HTTPAddr != "" {
		cfg.Server.HTTPAddr = args.HTTPAddr
	}
	if args.GRPCAddr != "" {
		cfg.Server.GRPCAddr = args.GRPCAddr
	}
	watch := args.Watch
	if len(watch) == 0 {
		watch = []string{cfg.Paths.ModelsDir}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.DBPath), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	st, err := store.NewStore(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	metrics.Init()
	reg := registry.New(st, logger)
	reg.OnReload(func(info registry.ModelInfo, err error) {
		metrics.ObserveReload(info.Version.Metrics.Accuracy, err)
	})
	hs := server.NewHealthServer(reg)

	if info, err := reg.Reload(); err != nil {
		logger.Warn().Err(err).Msg("no model loaded at startup")
	} else {
		logger.Info().Str("version", info.Version.VersionID).Str("origin", string(info.Origin)).Msg("model loaded")
	}

	httpServer := server.New(server.Options{
		Store:    st,
		Registry: reg,
		Gate:     cfg.Gate,
		DataPath: cfg.Paths.DataPath,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := oversight.New(
		oversight.WithLogger(&config.SupervisorLogger{Logger: logger}),
		oversight.WithSpecification(
			10,                    // number of restarts
			1*time.Minute,         // within this time period
			oversight.OneForOne(), // restart every task on its own
		),
	)

	tasks := []func(context.Context) error{
		func(ctx context.Context) error { return httpServer.Start(ctx, cfg.Server.HTTPAddr) },
		func(ctx context.Context) error {
			return server.ListenAndServeHealth(ctx, cfg.Server.GRPCAddr, hs, logger)
		},
	}
	if !args.NoWatch {
		if err := os.MkdirAll(cfg.Paths.ModelsDir, 0o755); err != nil {
			return fmt.Errorf("create models directory: %w", err)
		}
		tasks = append(tasks, func(ctx context.Context) error { return reg.Watch(ctx, watch...) })
	}
	for _, task := range tasks {
		if err := supervisor.Add(task); err != nil {
			return err
		}
	}

	logger.Info().
		Str("app", cfg.App.Name).
		Str("http", cfg.Server.HTTPAddr).
		Str("grpc", cfg.Server.GRPCAddr).
		Strs("watch", watch).
		Msg("starting")

	if err := supervisor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	<-ctx.Done()
	return nil
}

// #endregion run
