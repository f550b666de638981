package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// Report is the JSON summary written after each run.
type Report struct {
	Timestamp   time.Time      `json:"timestamp"`
	RunID       string         `json:"run_id"`
	Version     string         `json:"version"`
	Metrics     store.Metrics  `json:"metrics"`
	Baseline    *store.Metrics `json:"baseline,omitempty"`
	Improvement float64        `json:"improvement"`
	Score       int            `json:"score"`
	Decision    string         `json:"decision"`
	Reason      string         `json:"reason"`
	Action      Action         `json:"action"`
	EvalReason  string         `json:"eval_reason,omitempty"`
}

// WriteReport writes reports/report_<timestamp>_<run>.json and returns its path.
func WriteReport(dir string, out Outcome) (string, error) {
	now := time.Now().UTC()
	rep := Report{
		Timestamp:   now,
		RunID:       out.RunID,
		Version:     out.Version.VersionID,
		Metrics:     out.Version.Metrics,
		Improvement: out.Signal.Improvement,
		Score:       out.Result.Score,
		Decision:    string(out.Result.Decision),
		Reason:      out.Result.Reason,
		Action:      out.Action,
	}
	if out.Baseline != nil {
		rep.Baseline = &out.Baseline.Metrics
	}
	if out.Eval != nil {
		rep.EvalReason = out.Eval.Reason
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	short := out.RunID
	if len(short) > 8 {
		short = short[:8]
	}
	path := filepath.Join(dir, fmt.Sprintf("report_%s_%s.json", now.Format("20060102_150405"), short))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
