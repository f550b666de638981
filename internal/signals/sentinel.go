package signals

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
)

// File names shared with the shell-driven CI steps.
const (
	ImprovementFile  = "improvement.txt"
	AccuracyFile     = "accuracy.txt"
	ShouldDeployFile = "should_deploy.txt"
	ScoreFile        = "deployment_score.txt"
)

// #region read

// ReadSentinels loads a PerformanceSignal from the plain-text files in dir.
// Values are not range-checked; call Validate.
func ReadSentinels(dir string) (PerformanceSignal, error) {
	improvement, err := readFloat(dir, ImprovementFile, "improvement")
	if err != nil {
		return PerformanceSignal{}, err
	}
	accuracy, err := readFloat(dir, AccuracyFile, "accuracy")
	if err != nil {
		return PerformanceSignal{}, err
	}
	return PerformanceSignal{Improvement: improvement, AbsoluteAccuracy: accuracy}, nil
}

func readFloat(dir, file, name string) (float64, error) {
	path := filepath.Join(dir, file)
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, &MissingInputError{Name: name, Path: path, Err: err}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, &MissingInputError{Name: name, Path: path, Err: err}
	}
	return v, nil
}

// #endregion read

// #region write

// WriteSentinels writes the gate inputs the way the training step hands them over.
func WriteSentinels(dir string, sig PerformanceSignal) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sentinel dir: %w", err)
	}
	if err := writeFile(dir, ImprovementFile, strconv.FormatFloat(sig.Improvement, 'f', 4, 64)); err != nil {
		return err
	}
	return writeFile(dir, AccuracyFile, strconv.FormatFloat(sig.AbsoluteAccuracy, 'f', 4, 64))
}

// DecisionSink receives the gate result of a run.
type DecisionSink interface {
	WriteDecision(res gate.DecisionResult) error
}

// FileSink writes should_deploy.txt ("true"/"false") and deployment_score.txt.
type FileSink struct {
	Dir string
}

// WriteDecision implements DecisionSink.
func (s FileSink) WriteDecision(res gate.DecisionResult) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create sink dir: %w", err)
	}
	if err := writeFile(s.Dir, ShouldDeployFile, strconv.FormatBool(res.ShouldDeploy())); err != nil {
		return err
	}
	return writeFile(s.Dir, ScoreFile, strconv.Itoa(res.Score))
}

func writeFile(dir, name, content string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// #endregion write
