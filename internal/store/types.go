package store

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound   = errors.New("model version not found")
	ErrNoActive   = errors.New("no active model")
	ErrNoPrevious = errors.New("no previous model to roll back to")
)

// #region environment
// Environment names a deployment target holding one active model pointer.
type Environment string

const (
	EnvStaging    Environment = "staging"
	EnvCanary     Environment = "canary"
	EnvProduction Environment = "production"
)

// ParseEnvironment validates an environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(s); env {
	case EnvStaging, EnvCanary, EnvProduction:
		return env, nil
	}
	return "", fmt.Errorf("unknown environment %q", s)
}

// #endregion environment

// #region model-version
// Metrics are the evaluation scores reported by the training step.
type Metrics struct {
	Accuracy      float64 `json:"accuracy"`
	F1Score       float64 `json:"f1_score"`
	CVMean        float64 `json:"cv_mean"`
	CVStd         float64 `json:"cv_std"`
	CombinedScore float64 `json:"combined_score"`
}

// ModelVersion is one trained model registered in the ledger.
type ModelVersion struct {
	VersionID      string    `json:"version_id"`
	ParentID       string    `json:"parent_id,omitempty"` // production version when the candidate was trained
	ModelName      string    `json:"model_name"`
	ArtifactPath   string    `json:"artifact_path"`
	ArtifactDigest string    `json:"artifact_digest,omitempty"` // hex sha256
	Metrics        Metrics   `json:"metrics"`
	CreatedAt      time.Time `json:"created_at"`
}

// #endregion model-version

// #region promotion
// PromotionKind distinguishes forward promotions from rollbacks in the history.
type PromotionKind string

const (
	KindPromote  PromotionKind = "promote"
	KindRollback PromotionKind = "rollback"
	// KindDeactivate clears the pointer when there is nothing to roll back to.
	KindDeactivate PromotionKind = "deactivate"
)

// Promotion is one row of the deployment history.
type Promotion struct {
	ID          int64         `json:"id"`
	VersionID   string        `json:"version_id"`
	Environment Environment   `json:"environment"`
	Canary      float64       `json:"canary"`
	Kind        PromotionKind `json:"kind"`
	PreviousID  string        `json:"previous_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// #endregion promotion
