package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/config"
)

type CLI struct {
	Debug     bool          `arg:"--debug" help:"debugging output"`
	Run       *RunCmd       `arg:"subcommand:run" help:"score a trained candidate and deploy it when the gate allows"`
	Promote   *PromoteCmd   `arg:"subcommand:promote" help:"point an environment at a registered version"`
	Rollback  *RollbackCmd  `arg:"subcommand:rollback" help:"restore the previously active version"`
	CheckData *CheckDataCmd `arg:"subcommand:check-data" help:"report whether enough new rows arrived to retrain"`
	Probe     *ProbeCmd     `arg:"subcommand:probe" help:"query the gRPC health service of a running server"`
}

// #region main
func main() {
	args := &CLI{}
	parser, err := parseArgs(args)
	abort(parser, err, 2)

	logger := config.ConfigureLogger(args.Debug)
	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("load config")
		os.Exit(1)
	}

	abort(parser, run(parser, args, cfg, logger), 1)
}

func run(parser *arg.Parser, args *CLI, cfg *config.Config, logger *zerolog.Logger) error {
	switch {
	case args.Run != nil:
		return args.Run.Run(cfg, logger)
	case args.Promote != nil:
		return args.Promote.Run(cfg, logger)
	case args.Rollback != nil:
		return args.Rollback.Run(cfg, logger)
	case args.CheckData != nil:
		return args.CheckData.Run(cfg, logger)
	case args.Probe != nil:
		return args.Probe.Run(cfg, logger)
	default:
		parser.WriteHelp(os.Stderr)
		os.Exit(2)
	}
	return nil
}

// #endregion main

func abort(parser *arg.Parser, err error, code int) {
	switch {
	case err == nil:
		return
	case errors.Is(err, arg.ErrHelp):
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	default:
		if code == 2 && parser != nil {
			parser.WriteUsage(os.Stderr)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(code)
	}
}

func parseArgs(args *CLI) (parser *arg.Parser, err error) {
	parser, err = arg.NewParser(arg.Config{Program: "controller"}, args)
	if err != nil {
		return
	}

	err = parser.Parse(os.Args[1:])
	return
}
