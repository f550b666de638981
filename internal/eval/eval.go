package eval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// #region eval-harness
// Harness runs smoke checks on a freshly promoted model version.
type Harness struct {
	config EvalConfig
}

// NewHarness creates a harness with the given configuration.
func NewHarness(config EvalConfig) *Harness {
	return &Harness{config: config}
}

// Run checks the artifact on disk and the recorded metrics of v.
func (h *Harness) Run(v store.ModelVersion) EvalResult {
	var checks []Check
	var failReasons []string
	fail := func(reason string) { failReasons = append(failReasons, reason) }

	// 1. Artifact loads: present and non-trivial
	info, statErr := os.Stat(v.ArtifactPath)
	artifact := Check{Name: "artifact_present"}
	switch {
	case statErr != nil:
		artifact.Detail = statErr.Error()
		fail(fmt.Sprintf("artifact %s unreadable", v.ArtifactPath))
	case info.IsDir() || info.Size() < h.config.MinArtifactLen:
		artifact.Value = float64(info.Size())
		artifact.Detail = "empty or not a file"
		fail(fmt.Sprintf("artifact %s is empty", v.ArtifactPath))
	default:
		artifact.Value = float64(info.Size())
		artifact.Pass = true
	}
	checks = append(checks, artifact)

	// 2. Digest matches what was registered
	digest := Check{Name: "artifact_digest"}
	switch {
	case v.ArtifactDigest == "":
		digest.Pass = !h.config.RequireDigest
		digest.Detail = "no digest recorded"
		if !digest.Pass {
			fail("no artifact digest recorded")
		}
	case statErr != nil:
		digest.Detail = "artifact unreadable"
		fail("digest not verifiable")
	default:
		got, err := FileDigest(v.ArtifactPath)
		if err != nil {
			digest.Detail = err.Error()
			fail("digest not verifiable")
		} else if got != v.ArtifactDigest {
			digest.Detail = fmt.Sprintf("expected %s, got %s", v.ArtifactDigest, got)
			fail("artifact digest mismatch")
		} else {
			digest.Pass = true
		}
	}
	checks = append(checks, digest)

	// 3. Recorded metrics are probabilities
	m := v.Metrics
	for _, metric := range []struct {
		name  string
		value float64
	}{
		{"accuracy", m.Accuracy},
		{"f1_score", m.F1Score},
		{"cv_mean", m.CVMean},
		{"combined_score", m.CombinedScore},
	} {
		ok := metric.value >= 0 && metric.value <= 1
		checks = append(checks, Check{Name: "metric_" + metric.name, Value: metric.value, Pass: ok})
		if !ok {
			fail(fmt.Sprintf("%s %.4f outside [0,1]", metric.name, metric.value))
		}
	}

	// 4. Cross-validation spread
	stable := m.CVStd >= 0 && m.CVStd <= h.config.MaxCVStd
	checks = append(checks, Check{Name: "cv_std", Value: m.CVStd, Pass: stable})
	if !stable {
		fail(fmt.Sprintf("cv_std %.4f exceeds %.4f", m.CVStd, h.config.MaxCVStd))
	}

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed: len(failReasons) == 0,
		Checks: checks,
		Reason: reason,
	}
}

// #endregion eval-harness

// #region helpers
// FileDigest returns the hex SHA-256 of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash artifact: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// #endregion helpers
