package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/audit"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

type CLI struct {
	DB         string `arg:"--db,required,env:DB_PATH" help:"path to the registry database"`
	Last       int    `arg:"--last" default:"20" help:"show N most recent rows"`
	Version    string `arg:"--version" help:"show single version detail"`
	Decisions  bool   `arg:"--decisions" help:"list gate decisions instead of versions"`
	Promotions bool   `arg:"--promotions" help:"list deployment history instead of versions"`
	JSON       bool   `arg:"--json" help:"output as JSON instead of table"`
}

// #region main

func main() {
	args := &CLI{}
	parser, err := arg.NewParser(arg.Config{Program: "inspect"}, args)
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
	if args.Decisions && args.Promotions {
		parser.WriteUsage(os.Stderr)
		fmt.Fprintln(os.Stderr, "error: --decisions and --promotions are exclusive")
		os.Exit(2)
	}

	st, err := store.NewStore(args.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch {
	case args.Version != "":
		err = runDetailMode(st, args.Version, args.JSON)
	case args.Decisions:
		err = runDecisionMode(st, args.Last, args.JSON)
	case args.Promotions:
		err = runPromotionMode(st, args.Last, args.JSON)
	default:
		err = runListMode(st, args.Last, args.JSON)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string   `json:"version_id"`
	ModelName string   `json:"model_name"`
	Accuracy  float64  `json:"accuracy"`
	F1Score   float64  `json:"f1_score"`
	Active    []string `json:"active,omitempty"`
	CreatedAt string   `json:"created_at"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	versions, err := st.ListVersions(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}
	pointers, err := st.ActivePointers()
	if err != nil {
		return err
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		r := listRow{
			VersionID: v.VersionID,
			ModelName: v.ModelName,
			Accuracy:  v.Metrics.Accuracy,
			F1Score:   v.Metrics.F1Score,
			CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		for _, env := range []store.Environment{store.EnvStaging, store.EnvCanary, store.EnvProduction} {
			if pointers[env] == v.VersionID {
				r.Active = append(r.Active, string(env))
			}
		}
		rows[len(versions)-1-i] = r
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-20s  %8s  %8s  %-22s  %s\n", "Version", "Model", "Accuracy", "F1", "Active", "Time")
	fmt.Printf("%-12s+-%-20s+-%8s+-%8s+-%-22s+-%s\n",
		"------------", "--------------------", "--------", "--------", "----------------------", "--------------------")
	for _, r := range rows {
		active := "-"
		if len(r.Active) > 0 {
			active = fmt.Sprint(r.Active)
		}
		fmt.Printf("%-12s  %-20s  %8.4f  %8.4f  %-22s  %s\n",
			shortID(r.VersionID), r.ModelName, r.Accuracy, r.F1Score, active, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Version    store.ModelVersion    `json:"version"`
	Promotions []store.Promotion     `json:"promotions"`
	Decisions  []audit.DecisionEntry `json:"decisions"`
}

func runDetailMode(st *store.Store, versionID string, jsonOut bool) error {
	v, err := st.GetVersion(versionID)
	if err != nil {
		return err
	}
	out := detailOutput{Version: v}

	promotions, err := st.ListPromotions(-1)
	if err != nil {
		return err
	}
	for _, p := range promotions {
		if p.VersionID == versionID || p.PreviousID == versionID {
			out.Promotions = append(out.Promotions, p)
		}
	}
	decisions, err := audit.ListDecisions(st.DB(), -1)
	if err != nil {
		return err
	}
	for _, d := range decisions {
		if d.VersionID == versionID {
			out.Decisions = append(out.Decisions, d)
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:    %s\n", v.VersionID)
	fmt.Printf("Parent:     %s\n", orDash(v.ParentID))
	fmt.Printf("Model:      %s\n", v.ModelName)
	fmt.Printf("Artifact:   %s\n", v.ArtifactPath)
	fmt.Printf("Digest:     %s\n", orDash(v.ArtifactDigest))
	fmt.Printf("Created:    %s\n", v.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("\nMetrics:\n")
	fmt.Printf("  accuracy        %.4f\n", v.Metrics.Accuracy)
	fmt.Printf("  f1_score        %.4f\n", v.Metrics.F1Score)
	fmt.Printf("  cv_mean         %.4f\n", v.Metrics.CVMean)
	fmt.Printf("  cv_std          %.4f\n", v.Metrics.CVStd)
	fmt.Printf("  combined_score  %.4f\n", v.Metrics.CombinedScore)

	if len(out.Decisions) > 0 {
		fmt.Printf("\nGate:\n")
		for _, d := range out.Decisions {
			fmt.Printf("  %s  score=%d  %s  (%s)\n", d.Decision, d.Score, d.Action, d.Reason)
		}
	}
	if len(out.Promotions) > 0 {
		fmt.Printf("\nHistory:\n")
		for _, p := range out.Promotions {
			fmt.Printf("  #%d %-10s %-10s %s -> %s\n", p.ID, p.Kind, p.Environment, orDash(shortID(p.PreviousID)), shortID(p.VersionID))
		}
	}
	return nil
}

// #endregion detail-mode

// #region decision-mode

func runDecisionMode(st *store.Store, last int, jsonOut bool) error {
	entries, err := audit.ListDecisions(st.DB(), last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions found")
		return nil
	}

	fmt.Printf("%-12s  %-12s  %8s  %8s  %5s  %-14s  %-14s  %s\n",
		"Run", "Version", "Improve", "Accuracy", "Score", "Decision", "Action", "Time")
	fmt.Printf("%-12s+-%-12s+-%8s+-%8s+-%5s+-%-14s+-%-14s+-%s\n",
		"------------", "------------", "--------", "--------", "-----", "--------------", "--------------", "--------------------")
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Printf("%-12s  %-12s  %+8.4f  %8.4f  %5d  %-14s  %-14s  %s\n",
			shortID(e.RunID), shortID(e.VersionID), e.Improvement, e.Accuracy, e.Score,
			e.Decision, e.Action, e.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion decision-mode

// #region promotion-mode

func runPromotionMode(st *store.Store, last int, jsonOut bool) error {
	history, err := st.ListPromotions(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(history)
	}
	if len(history) == 0 {
		fmt.Fprintln(os.Stderr, "no deployments found")
		return nil
	}

	fmt.Printf("%5s  %-10s  %-10s  %6s  %-12s  %-12s  %s\n", "ID", "Kind", "Env", "Canary", "Version", "Previous", "Time")
	fmt.Printf("%5s+-%-10s+-%-10s+-%6s+-%-12s+-%-12s+-%s\n",
		"-----", "----------", "----------", "------", "------------", "------------", "--------------------")
	for i := len(history) - 1; i >= 0; i-- {
		p := history[i]
		fmt.Printf("%5d  %-10s  %-10s  %6.2f  %-12s  %-12s  %s\n",
			p.ID, p.Kind, p.Environment, p.Canary, shortID(p.VersionID), orDash(shortID(p.PreviousID)),
			p.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion promotion-mode

// #region helpers

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
