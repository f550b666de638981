package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/signals"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// trainingTimeLayout is how the training step stamps candidate_metrics.json.
const trainingTimeLayout = "2006-01-02 15:04:05"

// candidateFile is the layout of the metrics file written next to a trained model.
type candidateFile struct {
	ModelName string `json:"model_name"`
	store.Metrics
	Accuracy  *float64 `json:"accuracy"` // shadows Metrics.Accuracy so absence is visible
	Timestamp string   `json:"timestamp"`
}

// LoadCandidate reads a candidate metrics file and pairs it with its artifact.
func LoadCandidate(metricsPath, artifactPath string) (CandidateRun, error) {
	raw, err := os.ReadFile(metricsPath)
	if err != nil {
		return CandidateRun{}, &signals.MissingInputError{Name: "candidate metrics", Path: metricsPath, Err: err}
	}
	var f candidateFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return CandidateRun{}, &signals.MissingInputError{Name: "candidate metrics", Path: metricsPath, Err: err}
	}
	if f.ModelName == "" {
		return CandidateRun{}, &signals.MissingInputError{Name: "model_name", Path: metricsPath, Err: fmt.Errorf("field is empty")}
	}
	if f.Accuracy == nil {
		return CandidateRun{}, &signals.MissingInputError{Name: "accuracy", Path: metricsPath, Err: fmt.Errorf("field is absent")}
	}
	f.Metrics.Accuracy = *f.Accuracy

	run := CandidateRun{
		ModelName:    f.ModelName,
		ArtifactPath: artifactPath,
		Metrics:      f.Metrics,
	}
	if f.Timestamp != "" {
		t, err := time.ParseInLocation(trainingTimeLayout, f.Timestamp, time.Local)
		if err != nil {
			return CandidateRun{}, &signals.MissingInputError{Name: "timestamp", Path: metricsPath, Err: err}
		}
		run.TrainedAt = t.UTC()
	}
	return run, nil
}
