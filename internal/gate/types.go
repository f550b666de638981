package gate

// #region decision
// Decision is the deployment outcome produced by the gate.
type Decision string

const (
	DecisionAutoDeploy   Decision = "auto_deploy"
	DecisionManualReview Decision = "manual_review"
	DecisionReject       Decision = "reject"
)

// Reasons handed to the downstream deployment step, one per decision.
const (
	ReasonAutoDeploy   = "Score suffisant pour déploiement automatique"
	ReasonManualReview = "Score modéré - revue humaine nécessaire"
	ReasonReject       = "Score insuffisant"
)

// #endregion decision

// #region gate-config
// GateConfig holds the bucket boundaries and point values of the scoring function.
// Lower bounds of buckets are exclusive ("improvement > SignificantImprovement").
type GateConfig struct {
	SignificantImprovement float64 `yaml:"significant_improvement" json:"significant_improvement"` // > this earns SignificantPoints
	ToleratedRegression    float64 `yaml:"tolerated_regression" json:"tolerated_regression"`       // > this (and <= 0) earns SimilarPoints
	SignificantPoints      int     `yaml:"significant_points" json:"significant_points"`
	SlightPoints           int     `yaml:"slight_points" json:"slight_points"`
	SimilarPoints          int     `yaml:"similar_points" json:"similar_points"`
	RegressionPoints       int     `yaml:"regression_points" json:"regression_points"`

	ExcellentAccuracy float64 `yaml:"excellent_accuracy" json:"excellent_accuracy"`
	GoodAccuracy      float64 `yaml:"good_accuracy" json:"good_accuracy"`
	ExcellentPoints   int     `yaml:"excellent_points" json:"excellent_points"`
	GoodPoints        int     `yaml:"good_points" json:"good_points"`
	AcceptablePoints  int     `yaml:"acceptable_points" json:"acceptable_points"`

	StabilityPlaceholder int `yaml:"stability_placeholder" json:"stability_placeholder"`

	AutoDeployScore   int `yaml:"auto_deploy_score" json:"auto_deploy_score"`     // inclusive
	ManualReviewScore int `yaml:"manual_review_score" json:"manual_review_score"` // inclusive
}

// DefaultGateConfig returns the thresholds the deployment pipeline has always used.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SignificantImprovement: 0.01,
		ToleratedRegression:    -0.005,
		SignificantPoints:      40,
		SlightPoints:           20,
		SimilarPoints:          5,
		RegressionPoints:       -50,

		ExcellentAccuracy: 0.9,
		GoodAccuracy:      0.8,
		ExcellentPoints:   30,
		GoodPoints:        20,
		AcceptablePoints:  10,

		StabilityPlaceholder: 30,

		AutoDeployScore:   70,
		ManualReviewScore: 50,
	}
}

// #endregion gate-config

// #region decision-result
// Components breaks the final score down per criterion.
type Components struct {
	Improvement int `json:"improvement"`
	Quality     int `json:"quality"`
	Stability   int `json:"stability"`
}

// DecisionResult is the output of a gate evaluation.
type DecisionResult struct {
	Score      int        `json:"score"` // not clamped; -10..100 with DefaultGateConfig
	Decision   Decision   `json:"decision"`
	Reason     string     `json:"reason"`
	Components Components `json:"components"`
}

// ShouldDeploy reports whether the pipeline may proceed without a human.
func (r DecisionResult) ShouldDeploy() bool {
	return r.Decision == DecisionAutoDeploy
}

// #endregion decision-result
