package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/audit"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/eval"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/metrics"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/notify"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/signals"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// #region pipeline-struct

// Pipeline takes a trained candidate through comparison, gating, promotion and
// smoke checks, recording every decision.
type Pipeline struct {
	store    *store.Store
	gate     *gate.Gate
	harness  *eval.Harness
	config   Config
	notifier notify.Notifier
	sink     signals.DecisionSink
	logger   *zerolog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithNotifier sends an event for every completed run.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithSink hands every gate result to sink (e.g. sentinel files for CI steps).
func WithSink(sink signals.DecisionSink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// #endregion pipeline-struct

// #region constructor

func New(st *store.Store, cfg Config, logger *zerolog.Logger, opts ...Option) *Pipeline {
	if cfg.Environment == "" {
		cfg.Environment = store.EnvProduction
	}
	p := &Pipeline{
		store:   st,
		gate:    gate.NewGate(cfg.Gate),
		harness: eval.NewHarness(cfg.Eval),
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// #endregion constructor

// #region run

// Run evaluates one candidate. Out-of-range signals abort the run before anything
// is registered; the returned error then wraps *signals.OutOfRangeError.
func (p *Pipeline) Run(ctx context.Context, run CandidateRun) (Outcome, error) {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	log := p.logger.With().Str("run", run.RunID).Logger()
	out := Outcome{RunID: run.RunID}

	// 1. Baseline
	var baseMetrics *store.Metrics
	baseline, err := p.store.GetActive(p.config.Environment)
	switch {
	case err == nil:
		out.Baseline = &baseline
		baseMetrics = &baseline.Metrics
	case errors.Is(err, store.ErrNoActive):
		log.Info().Msg("no model in production, first deployment")
	default:
		return out, fmt.Errorf("read baseline: %w", err)
	}

	// 2. Signals
	out.Signal = signals.Compare(run.Metrics, baseMetrics)
	if err := out.Signal.Validate(); err != nil {
		out.Action = ActionInvalid
		metrics.PipelineRuns.WithLabelValues(string(ActionInvalid)).Inc()
		return out, fmt.Errorf("candidate %s: %w", run.RunID, err)
	}

	// 3. Register
	digest, err := eval.FileDigest(run.ArtifactPath)
	if err != nil {
		return out, &signals.MissingInputError{Name: "artifact", Path: run.ArtifactPath, Err: err}
	}
	v := store.ModelVersion{
		ModelName:      run.ModelName,
		ArtifactPath:   run.ArtifactPath,
		ArtifactDigest: digest,
		Metrics:        run.Metrics,
		CreatedAt:      run.TrainedAt,
	}
	if out.Baseline != nil {
		v.ParentID = out.Baseline.VersionID
	}
	if out.Version, err = p.store.RegisterVersion(v); err != nil {
		return out, fmt.Errorf("register candidate: %w", err)
	}

	// 4. Gate
	out.Result = p.gate.Decide(out.Signal.Improvement, out.Signal.AbsoluteAccuracy)
	metrics.ObserveDecision(out.Result)
	log.Info().
		Str("version", out.Version.VersionID).
		Float64("improvement", out.Signal.Improvement).
		Float64("accuracy", out.Signal.AbsoluteAccuracy).
		Int("score", out.Result.Score).
		Str("decision", string(out.Result.Decision)).
		Msg(out.Result.Reason)

	if p.sink != nil {
		if err := p.sink.WriteDecision(out.Result); err != nil {
			err = p.fail(ctx, &out, log, fmt.Errorf("write decision: %w", err))
			return out, err
		}
	}

	// 5. Act
	switch out.Result.Decision {
	case gate.DecisionAutoDeploy:
		if err := p.deploy(&out, log); err != nil {
			err = p.fail(ctx, &out, log, err)
			return out, err
		}
	case gate.DecisionManualReview:
		out.Action = ActionPendingReview
	default:
		out.Action = ActionRejected
	}
	metrics.PipelineRuns.WithLabelValues(string(out.Action)).Inc()

	// 6. Record
	if err := p.record(out); err != nil {
		return out, err
	}
	p.notify(ctx, out, log)
	if p.config.ReportsDir != "" {
		path, err := WriteReport(p.config.ReportsDir, out)
		if err != nil {
			log.Warn().Err(err).Msg("report not written")
		} else {
			log.Debug().Str("path", path).Msg("report written")
		}
	}
	return out, nil
}

// fail records and announces a run that stopped after its version was
// registered, then returns err.
func (p *Pipeline) fail(ctx context.Context, out *Outcome, log zerolog.Logger, err error) error {
	out.Action = ActionFailed
	out.Error = err.Error()
	metrics.PipelineRuns.WithLabelValues(string(ActionFailed)).Inc()
	log.Error().Err(err).Str("version", out.Version.VersionID).Msg("pipeline run failed")

	if recErr := p.record(*out); recErr != nil {
		err = errors.Join(err, recErr)
	}
	p.notify(ctx, *out, log)
	return err
}

// #endregion run

// #region deploy

// deploy promotes the candidate and rolls it back when the smoke checks fail.
func (p *Pipeline) deploy(out *Outcome, log zerolog.Logger) error {
	env := p.config.Environment
	promo, err := p.store.Promote(out.Version.VersionID, env, 1.0)
	if err != nil {
		return fmt.Errorf("promote %s: %w", out.Version.VersionID, err)
	}
	out.Promotion = &promo

	res := p.harness.Run(out.Version)
	out.Eval = &res
	if res.Passed {
		out.Action = ActionPromoted
		log.Info().Str("version", out.Version.VersionID).Str("env", string(env)).Msg("candidate promoted")
		return nil
	}

	out.Action = ActionEvalRollback
	log.Warn().Str("version", out.Version.VersionID).Str("reason", res.Reason).Msg("smoke checks failed, rolling back")

	restored, err := p.store.Rollback(env)
	if errors.Is(err, store.ErrNoPrevious) {
		if err := p.store.Deactivate(env); err != nil {
			return fmt.Errorf("deactivate %s: %w", env, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("rollback %s: %w", env, err)
	}
	out.Restored = restored.VersionID
	return nil
}

// #endregion deploy

// #region record

func (p *Pipeline) record(out Outcome) error {
	entry, err := audit.EntryFromRecord(audit.GateRecord{
		RunID:      out.RunID,
		VersionID:  out.Version.VersionID,
		Signals:    out.Signal,
		Thresholds: p.gate.Config(),
		Result:     out.Result,
		Error:      out.Error,
	}, string(out.Action))
	if err != nil {
		return err
	}
	return audit.LogDecision(p.store.DB(), entry)
}

func (p *Pipeline) notify(ctx context.Context, out Outcome, log zerolog.Logger) {
	if p.notifier == nil {
		return
	}
	ev := EventFor(out)
	if err := p.notifier.Notify(ctx, ev); err != nil {
		log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("notification failed")
	}
}

// EventFor maps an outcome to the notification sent for it.
func EventFor(out Outcome) notify.Event {
	ev := notify.Event{
		VersionID:   out.Version.VersionID,
		Accuracy:    out.Signal.AbsoluteAccuracy,
		Improvement: out.Signal.Improvement,
		Score:       out.Result.Score,
		Reason:      out.Result.Reason,
		Time:        out.Version.CreatedAt,
	}
	switch out.Action {
	case ActionPromoted:
		ev.Kind = notify.KindDeployed
	case ActionEvalRollback:
		ev.Kind = notify.KindRollback
		if out.Eval != nil {
			ev.Reason = out.Eval.Reason
		}
	case ActionPendingReview:
		ev.Kind = notify.KindReview
	case ActionFailed:
		ev.Kind = notify.KindFailed
		ev.Reason = out.Error
	default:
		ev.Kind = notify.KindRejected
	}
	return ev
}

// #endregion record
