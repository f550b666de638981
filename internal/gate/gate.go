package gate

// #region gate
// Gate scores a candidate model against the deployed one and maps the score to a decision.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the thresholds the gate evaluates with.
func (g *Gate) Config() GateConfig {
	return g.config
}

// Decide computes the deployment score for a candidate.
// improvement is candidate accuracy minus production accuracy (or the raw candidate
// accuracy on a first deployment); accuracy is the candidate's absolute accuracy.
// Inputs are not validated here.
func (g *Gate) Decide(improvement, accuracy float64) DecisionResult {
	c := Components{
		Improvement: g.improvementPoints(improvement),
		Quality:     g.qualityPoints(accuracy),
		// TODO: replace with a score derived from cv_std once the training step
		// reports cross-validation spread for every candidate.
		Stability: g.config.StabilityPlaceholder,
	}
	score := c.Improvement + c.Quality + c.Stability

	res := DecisionResult{Score: score, Components: c}
	switch {
	case score >= g.config.AutoDeployScore:
		res.Decision = DecisionAutoDeploy
		res.Reason = ReasonAutoDeploy
	case score >= g.config.ManualReviewScore:
		res.Decision = DecisionManualReview
		res.Reason = ReasonManualReview
	default:
		res.Decision = DecisionReject
		res.Reason = ReasonReject
	}
	return res
}

// Decide evaluates with DefaultGateConfig.
func Decide(improvement, accuracy float64) DecisionResult {
	return NewGate(DefaultGateConfig()).Decide(improvement, accuracy)
}

// #endregion gate

// #region helpers
func (g *Gate) improvementPoints(improvement float64) int {
	switch {
	case improvement > g.config.SignificantImprovement:
		return g.config.SignificantPoints
	case improvement > 0:
		return g.config.SlightPoints
	case improvement > g.config.ToleratedRegression:
		return g.config.SimilarPoints
	default:
		return g.config.RegressionPoints
	}
}

func (g *Gate) qualityPoints(accuracy float64) int {
	switch {
	case accuracy > g.config.ExcellentAccuracy:
		return g.config.ExcellentPoints
	case accuracy > g.config.GoodAccuracy:
		return g.config.GoodPoints
	default:
		return g.config.AcceptablePoints
	}
}

// #endregion helpers
