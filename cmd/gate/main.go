package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/config"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/signals"
)

type CLI struct {
	Dir   string `arg:"--dir,env:SENTINEL_DIR" help:"directory holding improvement.txt and accuracy.txt (default: config SENTINEL_DIR)"`
	Out   string `arg:"--out" help:"directory for should_deploy.txt and deployment_score.txt (default: --dir)"`
	Debug bool   `arg:"--debug" help:"debugging output"`
}

// #region main
func main() {
	args := &CLI{}
	parser, err := arg.NewParser(arg.Config{Program: "gate"}, args)
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

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("load config")
		os.Exit(1)
	}
	if args.Dir == "" {
		args.Dir = cfg.Paths.SentinelDir
	}
	if args.Out == "" {
		args.Out = args.Dir
	}

	sig, err := signals.ReadSentinels(args.Dir)
	if err == nil {
		err = sig.Validate()
	}
	if err != nil {
		var missing *signals.MissingInputError
		var outOfRange *signals.OutOfRangeError
		switch {
		case errors.As(err, &missing):
			logger.Error().Str("input", missing.Name).Str("path", missing.Path).Err(missing.Err).Msg("missing gate input")
		case errors.As(err, &outOfRange):
			logger.Error().Str("input", outOfRange.Name).Float64("value", outOfRange.Value).Msg("gate input out of range")
		default:
			logger.Error().Err(err).Msg("read gate input")
		}
		os.Exit(1)
	}

	res := gate.NewGate(cfg.Gate).Decide(sig.Improvement, sig.AbsoluteAccuracy)
	logger.Info().
		Float64("improvement", sig.Improvement).
		Float64("accuracy", sig.AbsoluteAccuracy).
		Int("score", res.Score).
		Str("decision", string(res.Decision)).
		Msg(res.Reason)

	if err := (signals.FileSink{Dir: args.Out}).WriteDecision(res); err != nil {
		logger.Error().Err(err).Msg("write decision")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error().Err(err).Msg("write result")
		os.Exit(1)
	}
}

// #endregion main
