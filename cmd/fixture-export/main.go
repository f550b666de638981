package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/audit"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/pipeline"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

type CLI struct {
	DB          string `arg:"--db,required,env:DB_PATH" help:"registry database"`
	Out         string `arg:"--out,required" help:"output fixture JSON path"`
	Last        int    `arg:"--last" default:"10" help:"number of most recent decisions to export"`
	Description string `arg:"--description" help:"fixture description"`
}

// #region main

func main() {
	args := &CLI{}
	parser, err := arg.NewParser(arg.Config{Program: "fixture-export"}, args)
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

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(args *CLI) error {
	st, err := store.NewStore(args.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	entries, err := audit.ListDecisions(st.DB(), args.Last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no decisions logged in %s", args.DB)
	}

	desc := args.Description
	if desc == "" {
		desc = fmt.Sprintf("last %d gate decisions exported from %s", len(entries), args.DB)
	}
	f, err := pipeline.FixtureFromDecisions(entries, desc)
	if err != nil {
		return fmt.Errorf("build fixture: %w", err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(args.Out, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}

	fmt.Printf("Exported %d decisions to %s\n", len(f.Candidates), args.Out)
	return nil
}

// #endregion export
