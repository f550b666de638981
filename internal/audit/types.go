package audit

import (
	"time"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/signals"
)

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	VersionID   string    `json:"version_id"`
	Improvement float64   `json:"improvement"`
	Accuracy    float64   `json:"accuracy"`
	Score       int       `json:"score"`
	Decision    string    `json:"decision"` // "auto_deploy" | "manual_review" | "reject"
	Reason      string    `json:"reason"`
	Action      string    `json:"action"` // what the pipeline did with the decision
	SignalsJSON string    `json:"signals_json,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// #endregion decision-entry

// #region gate-record
// GateRecord captures the complete gate evaluation for one run.
// Serialized as JSON into decision_log.signals_json for deterministic replay.
type GateRecord struct {
	RunID     string `json:"run_id"`
	VersionID string `json:"version_id"`

	// Exact signals as evaluated at runtime
	Signals signals.PerformanceSignal `json:"signals"`

	// Thresholds active at decision time
	Thresholds gate.GateConfig `json:"thresholds"`

	Result gate.DecisionResult `json:"result"`

	// Set when the run failed after the decision
	Error string `json:"error,omitempty"`
}

// #endregion gate-record
