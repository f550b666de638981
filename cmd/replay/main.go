package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/audit"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/config"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/pipeline"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

type CLI struct {
	DB      string `arg:"--db" help:"registry database (DB mode: re-decide logged signals with the configured thresholds)"`
	Fixture string `arg:"--fixture" help:"fixture JSON (fixture mode)"`
	Last    int    `arg:"--last" default:"50" help:"DB mode: number of logged decisions to replay"`
	JSON    bool   `arg:"--json" help:"output as JSON instead of table"`
}

// #region main

func main() {
	args := &CLI{}
	parser, err := arg.NewParser(arg.Config{Program: "replay"}, args)
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

	if (args.DB == "") == (args.Fixture == "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/registry.db [--last N]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if args.Fixture != "" {
		exitCode = runFixtureMode(args.Fixture, args.JSON)
	} else {
		exitCode = runDBMode(args.DB, args.Last, args.JSON)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string, jsonOut bool) int {
	f, err := pipeline.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	results := pipeline.Replay(f.Baseline, f.Runs(), f.Config())
	mismatches := f.Check(results)

	if jsonOut {
		err := printJSON(struct {
			Results    []pipeline.ReplayResult `json:"results"`
			Summary    pipeline.ReplaySummary  `json:"summary"`
			Mismatches []pipeline.Mismatch     `json:"mismatches"`
		}{results, pipeline.Summarize(results), mismatches})
		if err != nil {
			fmt.Fprintf(os.Stderr, "write json: %v\n", err)
			return 1
		}
	} else {
		expected := make(map[string]string, len(f.ExpectedResults))
		for _, e := range f.ExpectedResults {
			expected[e.RunID] = e.Decision
		}
		diff := make(map[string]bool, len(mismatches))
		for _, m := range mismatches {
			diff[m.RunID] = true
		}

		fmt.Printf("%-12s| %-15s| %-15s| %6s| %s\n", "Run", "Expected", "Replayed", "Score", "Match")
		fmt.Printf("%-12s+%-15s+%-15s+%6s+%s\n",
			"------------", "----------------", "----------------", "-------", "------")
		for _, r := range results {
			got, score := string(r.Action), "-"
			if r.Result != nil {
				got = string(r.Result.Decision)
				score = fmt.Sprint(r.Result.Score)
			}
			exp, ok := expected[r.RunID]
			match := "OK"
			switch {
			case !ok:
				exp, match = "-", "-"
			case diff[r.RunID]:
				match = "DIFF"
			}
			fmt.Printf("%-12s| %-15s| %-15s| %6s| %s\n", r.RunID, exp, got, score, match)
		}
		for _, m := range mismatches {
			if m.Got == "missing" {
				fmt.Printf("%-12s| %-15s| %-15s| %6s| %s\n", m.RunID, m.Expected, "missing", "-", "DIFF")
			}
		}

		s := pipeline.Summarize(results)
		fmt.Printf("\nSummary: %d total, %d promoted, %d review, %d rejected, %d invalid, %d diverge\n",
			s.Total, s.Promoted, s.PendingReview, s.Rejected, s.Invalid, len(mismatches))
		if s.FinalBaseline != nil {
			fmt.Printf("Final baseline accuracy: %.4f\n", *s.FinalBaseline)
		}
	}

	if len(mismatches) > 0 {
		return 1
	}
	return 0
}

// #endregion fixture-mode

// #region db-mode

func runDBMode(dbPath string, last int, jsonOut bool) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 1
	}
	defer st.Close()

	entries, err := audit.ListDecisions(st.DB(), last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list decisions: %v\n", err)
		return 1
	}
	redecisions := pipeline.Redecide(entries, cfg.Gate)

	changed := 0
	for _, r := range redecisions {
		if r.Changed {
			changed++
		}
	}

	if jsonOut {
		if err := printJSON(redecisions); err != nil {
			fmt.Fprintf(os.Stderr, "write json: %v\n", err)
			return 1
		}
	} else {
		fmt.Printf("%-12s| %-15s| %-15s| %11s| %s\n", "Run", "Logged", "Now", "Score", "Match")
		fmt.Printf("%-12s+%-15s+%-15s+%11s+%s\n",
			"------------", "----------------", "----------------", "------------", "------")
		// oldest first
		for i := len(redecisions) - 1; i >= 0; i-- {
			r := redecisions[i]
			match := "OK"
			if r.Changed {
				match = "DIFF"
			}
			fmt.Printf("%-12s| %-15s| %-15s| %4d -> %3d| %s\n",
				shortID(r.Entry.RunID), r.Then.Decision, r.Now.Decision, r.Then.Score, r.Now.Score, match)
		}
		fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", len(redecisions), len(redecisions)-changed, changed)
		if skipped := len(entries) - len(redecisions); skipped > 0 {
			fmt.Printf("Skipped %d entries without a gate record\n", skipped)
		}
	}

	if changed > 0 {
		return 1
	}
	return 0
}

// #endregion db-mode

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
