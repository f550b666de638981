package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/config"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/notify"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/pipeline"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/server"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/signals"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/trigger"
)

// #region run
type RunCmd struct {
	Metrics   string `arg:"--metrics,required" help:"candidate metrics JSON written by training"`
	Artifact  string `arg:"--artifact,required" help:"trained model artifact"`
	Env       string `arg:"--env" default:"production" help:"environment to deploy to"`
	Sentinels bool   `arg:"--sentinels" help:"also write should_deploy.txt and deployment_score.txt"`
	NoReport  bool   `arg:"--no-report" help:"skip the JSON report"`
}

func (cmd RunCmd) Run(cfg *config.Config, logger *zerolog.Logger) error {
	env, err := store.ParseEnvironment(cmd.Env)
	if err != nil {
		return err
	}
	candidate, err := pipeline.LoadCandidate(cmd.Metrics, cmd.Artifact)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	notifiers := notify.Multi{notify.LogNotifier{Logger: logger}}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.RetryMax, logger))
	}
	opts := []pipeline.Option{pipeline.WithNotifier(notifiers)}
	if cmd.Sentinels {
		opts = append(opts, pipeline.WithSink(signals.FileSink{Dir: cfg.Paths.SentinelDir}))
	}

	pcfg := pipeline.Config{
		Gate:        cfg.Gate,
		Eval:        cfg.Eval,
		Environment: env,
		ReportsDir:  cfg.Paths.ReportsDir,
	}
	if cmd.NoReport {
		pcfg.ReportsDir = ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	out, err := pipeline.New(st, pcfg, logger, opts...).Run(ctx, candidate)
	if err != nil {
		return err
	}
	return printJSON(out)
}

// #endregion run

// #region promote
type PromoteCmd struct {
	Version string  `arg:"positional,required" help:"version id"`
	Env     string  `arg:"--env" default:"production"`
	Canary  float64 `arg:"--canary" default:"1.0" help:"traffic ratio in (0,1]"`
}

func (cmd PromoteCmd) Run(cfg *config.Config, logger *zerolog.Logger) error {
	env, err := store.ParseEnvironment(cmd.Env)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.Promote(cmd.Version, env, cmd.Canary)
	if err != nil {
		return err
	}
	logger.Info().Str("version", p.VersionID).Str("env", string(env)).Float64("canary", p.Canary).Str("previous", p.PreviousID).Msg("promoted")
	return printJSON(p)
}

// #endregion promote

// #region rollback
type RollbackCmd struct {
	Env string `arg:"--env" default:"production"`
	To  string `arg:"--to" help:"version to restore instead of the previous one"`
}

func (cmd RollbackCmd) Run(cfg *config.Config, logger *zerolog.Logger) error {
	env, err := store.ParseEnvironment(cmd.Env)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if cmd.To != "" {
		if err := st.RollbackTo(env, cmd.To); err != nil {
			return err
		}
	} else if _, err := st.Rollback(env); err != nil {
		return err
	}

	active, err := st.GetActive(env)
	if err != nil {
		return err
	}
	logger.Info().Str("version", active.VersionID).Str("env", string(env)).Msg("rolled back")
	return printJSON(active)
}

// #endregion rollback

// #region check-data
type CheckDataCmd struct {
	Threshold int  `arg:"--threshold" help:"new rows required to retrain (default: RETRAIN_THRESHOLD)"`
	Sentinels bool `arg:"--sentinels" help:"write has_new_data.txt and new_data_count.txt"`
	Mark      bool `arg:"--mark" help:"record the current row count as trained"`
}

func (cmd CheckDataCmd) Run(cfg *config.Config, logger *zerolog.Logger) error {
	threshold := cfg.Trigger.Threshold
	if cmd.Threshold > 0 {
		threshold = cmd.Threshold
	}

	res, err := trigger.CheckNewData(cfg.Paths.DataPath, cfg.Trigger.MarkerPath, threshold)
	if err != nil {
		return err
	}
	logger.Info().
		Int("rows", res.CurrentRows).
		Int("new_rows", res.NewRows).
		Bool("first_run", res.FirstRun).
		Bool("retrain", res.HasNewData).
		Msg("dataset checked")

	if cmd.Sentinels {
		if err := res.WriteSentinels(cfg.Paths.SentinelDir); err != nil {
			return err
		}
	}
	if cmd.Mark {
		if err := trigger.MarkTrained(cfg.Trigger.MarkerPath, res.CurrentRows); err != nil {
			return err
		}
	}
	return printJSON(res)
}

// #endregion check-data

// #region probe
type ProbeCmd struct {
	Addr    string        `arg:"--addr" help:"gRPC address (default: GRPC_ADDR)"`
	Timeout time.Duration `arg:"--timeout" default:"5s"`
}

func (cmd ProbeCmd) Run(cfg *config.Config, logger *zerolog.Logger) error {
	addr := cmd.Addr
	if addr == "" {
		addr = cfg.Server.GRPCAddr
	}
	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	status, err := server.Probe(ctx, addr)
	if err != nil {
		return err
	}
	logger.Info().Str("addr", addr).Str("status", status.String()).Msg("health probed")
	fmt.Println(status.String())
	if status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("model registry is %s", status)
	}
	return nil
}

// #endregion probe

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	st, err := store.NewStore(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.DBPath, err)
	}
	return st, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
