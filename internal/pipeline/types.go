package pipeline

import (
	"time"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/eval"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/signals"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// #region action
// Action is what the pipeline did with a gate decision.
type Action string

const (
	ActionPromoted      Action = "promoted"
	ActionEvalRollback  Action = "eval_rollback"
	ActionPendingReview Action = "pending_review"
	ActionRejected      Action = "rejected"
	ActionInvalid       Action = "invalid_input"
	// ActionFailed marks a registered candidate whose run stopped on an error;
	// the production pointer may still reference it.
	ActionFailed Action = "failed"
)

// #endregion action

// #region stages
// CandidateRun is the output of a training run handed to the pipeline.
type CandidateRun struct {
	RunID        string
	ModelName    string
	ArtifactPath string
	Metrics      store.Metrics
	TrainedAt    time.Time
}

// Outcome is the result of one pipeline run.
type Outcome struct {
	RunID     string                    `json:"run_id"`
	Version   store.ModelVersion        `json:"version"`
	Baseline  *store.ModelVersion       `json:"baseline,omitempty"`
	Signal    signals.PerformanceSignal `json:"signal"`
	Result    gate.DecisionResult       `json:"result"`
	Action    Action                    `json:"action"`
	Promotion *store.Promotion          `json:"promotion,omitempty"`
	Eval      *eval.EvalResult          `json:"eval,omitempty"`
	Restored  string                    `json:"restored,omitempty"` // version active again after an eval rollback
	Error     string                    `json:"error,omitempty"`
}

// Config bundles the thresholds and output locations of a pipeline.
type Config struct {
	Gate        gate.GateConfig
	Eval        eval.EvalConfig
	Environment store.Environment
	ReportsDir  string // empty disables JSON reports
}

// DefaultConfig targets production with the default thresholds.
func DefaultConfig() Config {
	return Config{
		Gate:        gate.DefaultGateConfig(),
		Eval:        eval.DefaultEvalConfig(),
		Environment: store.EnvProduction,
	}
}

// #endregion stages
