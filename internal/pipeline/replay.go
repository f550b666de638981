package pipeline

import (
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/audit"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/signals"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// #region types
// ReplayRun is one recorded candidate. When Improvement is set it is used as-is;
// otherwise it is computed against the replay's moving baseline.
type ReplayRun struct {
	RunID       string
	Metrics     store.Metrics
	Improvement *float64
}

// ReplayResult captures the outcome of replaying one candidate.
type ReplayResult struct {
	RunID  string
	Action Action // promoted | pending_review | rejected | invalid_input
	Reason string
	Signal signals.PerformanceSignal

	// nil when the signal was out of range
	Result *gate.DecisionResult

	// Production accuracy after this run (nil while nothing is deployed)
	BaselineAccuracy *float64
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Total         int
	Promoted      int
	PendingReview int
	Rejected      int
	Invalid       int
	FinalBaseline *float64
}

// #endregion types

// #region replay
// Replay runs the candidates through compare, validate and gate in order, entirely
// in memory. An auto-deploy decision makes the candidate the new baseline.
func Replay(baseline *store.Metrics, runs []ReplayRun, cfg gate.GateConfig) []ReplayResult {
	g := gate.NewGate(cfg)
	var current *store.Metrics
	if baseline != nil {
		b := *baseline
		current = &b
	}

	results := make([]ReplayResult, 0, len(runs))
	for _, run := range runs {
		sig := signals.Compare(run.Metrics, current)
		if run.Improvement != nil {
			sig.Improvement = signals.Round(*run.Improvement)
		}

		r := ReplayResult{RunID: run.RunID, Signal: sig}
		if err := sig.Validate(); err != nil {
			r.Action = ActionInvalid
			r.Reason = err.Error()
			r.BaselineAccuracy = accuracyOf(current)
			results = append(results, r)
			continue
		}

		res := g.Decide(sig.Improvement, sig.AbsoluteAccuracy)
		r.Result = &res
		r.Reason = res.Reason
		switch res.Decision {
		case gate.DecisionAutoDeploy:
			r.Action = ActionPromoted
			m := run.Metrics
			current = &m
		case gate.DecisionManualReview:
			r.Action = ActionPendingReview
		default:
			r.Action = ActionRejected
		}
		r.BaselineAccuracy = accuracyOf(current)
		results = append(results, r)
	}
	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{Total: len(results)}
	for _, r := range results {
		switch r.Action {
		case ActionPromoted:
			s.Promoted++
		case ActionPendingReview:
			s.PendingReview++
		case ActionRejected:
			s.Rejected++
		case ActionInvalid:
			s.Invalid++
		}
	}
	if len(results) > 0 {
		s.FinalBaseline = results[len(results)-1].BaselineAccuracy
	}
	return s
}

func accuracyOf(m *store.Metrics) *float64 {
	if m == nil {
		return nil
	}
	a := m.Accuracy
	return &a
}

// #endregion replay

// #region redecide
// Redecision compares a logged decision with the one current thresholds produce.
type Redecision struct {
	Entry   audit.DecisionEntry
	Then    gate.DecisionResult
	Now     gate.DecisionResult
	Changed bool
}

// Redecide re-evaluates audited gate records with cfg. Entries without a
// record are skipped.
func Redecide(entries []audit.DecisionEntry, cfg gate.GateConfig) []Redecision {
	g := gate.NewGate(cfg)
	out := make([]Redecision, 0, len(entries))
	for _, e := range entries {
		rec, err := e.Record()
		if err != nil {
			continue
		}
		now := g.Decide(rec.Signals.Improvement, rec.Signals.AbsoluteAccuracy)
		out = append(out, Redecision{
			Entry:   e,
			Then:    rec.Result,
			Now:     now,
			Changed: now.Decision != rec.Result.Decision,
		})
	}
	return out
}

// #endregion redecide
