package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/audit"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Baseline        *store.Metrics          `json:"baseline,omitempty"`
	GateConfig      *gate.GateConfig        `json:"gate_config,omitempty"` // defaults when absent
	Candidates      []FixtureCandidate      `json:"candidates"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureCandidate is one recorded training run.
type FixtureCandidate struct {
	RunID       string        `json:"run_id"`
	Metrics     store.Metrics `json:"metrics"`
	Improvement *float64      `json:"improvement,omitempty"`
}

// FixtureExpectedResult captures the expected decision per run.
type FixtureExpectedResult struct {
	RunID    string `json:"run_id"`
	Decision string `json:"decision"`
	Score    *int   `json:"score,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Runs converts the fixture candidates to replay input.
func (f *Fixture) Runs() []ReplayRun {
	runs := make([]ReplayRun, len(f.Candidates))
	for i, c := range f.Candidates {
		runs[i] = ReplayRun{RunID: c.RunID, Metrics: c.Metrics, Improvement: c.Improvement}
	}
	return runs
}

// Config returns the fixture thresholds, or the defaults.
func (f *Fixture) Config() gate.GateConfig {
	if f.GateConfig != nil {
		return *f.GateConfig
	}
	return gate.DefaultGateConfig()
}

// Mismatch is an expected result the replay did not reproduce.
type Mismatch struct {
	RunID    string
	Expected string
	Got      string
}

// Check compares replay results against the expected decisions by run ID.
func (f *Fixture) Check(results []ReplayResult) []Mismatch {
	byRun := make(map[string]ReplayResult, len(results))
	for _, r := range results {
		byRun[r.RunID] = r
	}

	var out []Mismatch
	for _, exp := range f.ExpectedResults {
		r, ok := byRun[exp.RunID]
		switch {
		case !ok:
			out = append(out, Mismatch{RunID: exp.RunID, Expected: exp.Decision, Got: "missing"})
		case r.Result == nil:
			if exp.Decision != string(ActionInvalid) {
				out = append(out, Mismatch{RunID: exp.RunID, Expected: exp.Decision, Got: string(ActionInvalid)})
			}
		case string(r.Result.Decision) != exp.Decision:
			out = append(out, Mismatch{RunID: exp.RunID, Expected: exp.Decision, Got: string(r.Result.Decision)})
		case exp.Score != nil && *exp.Score != r.Result.Score:
			out = append(out, Mismatch{RunID: exp.RunID, Expected: fmt.Sprintf("score %d", *exp.Score), Got: fmt.Sprintf("score %d", r.Result.Score)})
		}
	}
	return out
}

// #endregion fixture-loader

// #region fixture-export

// FixtureFromDecisions builds a fixture from audited decisions, oldest first.
// Recorded improvements are pinned so the replay does not depend on the baseline.
func FixtureFromDecisions(entries []audit.DecisionEntry, description string) (*Fixture, error) {
	f := &Fixture{Description: description}
	for i := len(entries) - 1; i >= 0; i-- {
		rec, err := entries[i].Record()
		if err != nil {
			return nil, err
		}
		improvement := rec.Signals.Improvement
		score := rec.Result.Score
		if f.GateConfig == nil {
			cfg := rec.Thresholds
			f.GateConfig = &cfg
		}
		f.Candidates = append(f.Candidates, FixtureCandidate{
			RunID:       rec.RunID,
			Metrics:     store.Metrics{Accuracy: rec.Signals.AbsoluteAccuracy},
			Improvement: &improvement,
		})
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			RunID:    rec.RunID,
			Decision: string(rec.Result.Decision),
			Score:    &score,
		})
	}
	return f, nil
}

// #endregion fixture-export
