package eval

// #region eval-config
// EvalConfig holds thresholds for post-promotion smoke checks.
type EvalConfig struct {
	MaxCVStd       float64 `yaml:"max_cv_std" json:"max_cv_std"`         // reject if cross-validation spread exceeds this
	RequireDigest  bool    `yaml:"require_digest" json:"require_digest"` // fail when no digest was recorded
	MinArtifactLen int64   `yaml:"min_artifact_len" json:"min_artifact_len"`
}

// DefaultEvalConfig returns the thresholds used by the controller.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxCVStd:       0.05,
		RequireDigest:  false,
		MinArtifactLen: 1,
	}
}

// #endregion eval-config

// #region eval-check
// Check captures a single smoke check result.
type Check struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Pass   bool    `json:"pass"`
	Detail string  `json:"detail,omitempty"`
}

// #endregion eval-check

// #region eval-result
// EvalResult is the output of the smoke checks.
type EvalResult struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
	Reason string  `json:"reason"`
}

// #endregion eval-result
