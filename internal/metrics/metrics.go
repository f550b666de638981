package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
)

var (
	// Gate decisions by outcome
	GateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployment_gate_decisions_total",
		Help: "Deployment gate decisions by outcome",
	}, []string{"decision"})

	GateScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deployment_gate_score",
		Help:    "Distribution of deployment gate scores",
		Buckets: []float64{-10, 0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	// Pipeline runs by the action taken
	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Pipeline runs by resulting action",
	}, []string{"action"})

	RegistryReloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "model_registry_reloads_total",
		Help: "Model registry reloads by result",
	}, []string{"result"})

	DeployedAccuracy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deployed_model_accuracy",
		Help: "Accuracy of the model currently served",
	})
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			GateDecisions,
			GateScore,
			PipelineRuns,
			RegistryReloads,
			DeployedAccuracy,
		)
	})
}

// ObserveDecision records one gate evaluation.
func ObserveDecision(res gate.DecisionResult) {
	GateDecisions.WithLabelValues(string(res.Decision)).Inc()
	GateScore.Observe(float64(res.Score))
}

// ObserveReload records a registry reload and the accuracy now served.
func ObserveReload(accuracy float64, err error) {
	if err != nil {
		RegistryReloads.WithLabelValues("failure").Inc()
		return
	}
	RegistryReloads.WithLabelValues("success").Inc()
	DeployedAccuracy.Set(accuracy)
}
