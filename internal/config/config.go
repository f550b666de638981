package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/eval"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
)

type Config struct {
	App     AppConfig
	Server  ServerConfig
	Store   StoreConfig
	Paths   PathsConfig
	Notify  NotifyConfig
	Trigger TriggerConfig
	Gate    gate.GateConfig
	Eval    eval.EvalConfig
}

type AppConfig struct {
	Name        string `validate:"required"`
	Environment string `validate:"oneof=development staging production"`
}

type ServerConfig struct {
	HTTPAddr string `validate:"required"`
	GRPCAddr string `validate:"required"`
}

type StoreConfig struct {
	DBPath string `validate:"required"`
}

type PathsConfig struct {
	ModelsDir   string `validate:"required"`
	DataPath    string `validate:"required"`
	ReportsDir  string
	SentinelDir string `validate:"required"`
}

type NotifyConfig struct {
	WebhookURL string `validate:"omitempty,url"`
	RetryMax   int    `validate:"gte=0,lte=10"`
}

type TriggerConfig struct {
	Threshold  int    `validate:"gt=0"`
	MarkerPath string `validate:"required"`
}

// thresholdsFile is the layout of the GATE_CONFIG yaml file.
type thresholdsFile struct {
	Gate gate.GateConfig `yaml:"gate"`
	Eval eval.EvalConfig `yaml:"eval"`
}

// Load reads .env (when present), the environment and the optional GATE_CONFIG file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	retryMax, err := getEnvInt("WEBHOOK_RETRY_MAX", 3)
	if err != nil {
		return nil, fmt.Errorf("WEBHOOK_RETRY_MAX: %w", err)
	}
	threshold, err := getEnvInt("RETRAIN_THRESHOLD", 100)
	if err != nil {
		return nil, fmt.Errorf("RETRAIN_THRESHOLD: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "playstore-mlops"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":5000"),
			GRPCAddr: getEnv("GRPC_ADDR", ":50051"),
		},
		Store: StoreConfig{
			DBPath: getEnv("DB_PATH", "models/registry.db"),
		},
		Paths: PathsConfig{
			ModelsDir:   getEnv("MODELS_DIR", "models"),
			DataPath:    getEnv("DATA_PATH", "data/raw/googleplaystore.csv"),
			ReportsDir:  getEnv("REPORTS_DIR", "reports"),
			SentinelDir: getEnv("SENTINEL_DIR", os.TempDir()),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnv("WEBHOOK_URL", ""),
			RetryMax:   retryMax,
		},
		Trigger: TriggerConfig{
			Threshold:  threshold,
			MarkerPath: getEnv("TRAINING_MARKER", "models/last_training_rows.txt"),
		},
		Gate: gate.DefaultGateConfig(),
		Eval: eval.DefaultEvalConfig(),
	}

	if path := getEnv("GATE_CONFIG", ""); path != "" {
		if err := cfg.loadThresholds(path); err != nil {
			return nil, err
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadThresholds overlays the yaml file on the defaults; absent keys keep their value.
func (c *Config) loadThresholds(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read gate config: %w", err)
	}
	file := thresholdsFile{Gate: c.Gate, Eval: c.Eval}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse gate config %s: %w", path, err)
	}
	c.Gate = file.Gate
	c.Eval = file.Eval
	return nil
}

// Validate checks struct tags and the ordering of the gate thresholds.
func Validate(cfg *Config) error {
	validate := validator.New()
	validate.RegisterStructValidation(gateOrdering, gate.GateConfig{})
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func gateOrdering(sl validator.StructLevel) {
	g := sl.Current().Interface().(gate.GateConfig)
	if g.ManualReviewScore > g.AutoDeployScore {
		sl.ReportError(g.ManualReviewScore, "ManualReviewScore", "ManualReviewScore", "ltefield", "AutoDeployScore")
	}
	if g.GoodAccuracy > g.ExcellentAccuracy {
		sl.ReportError(g.GoodAccuracy, "GoodAccuracy", "GoodAccuracy", "ltefield", "ExcellentAccuracy")
	}
	if g.ToleratedRegression > 0 {
		sl.ReportError(g.ToleratedRegression, "ToleratedRegression", "ToleratedRegression", "lte", "0")
	}
	if g.SignificantImprovement < 0 {
		sl.ReportError(g.SignificantImprovement, "SignificantImprovement", "SignificantImprovement", "gte", "0")
	}

	// Points must not decrease as a bucket gets better, or the score stops being monotone.
	if g.SlightPoints > g.SignificantPoints {
		sl.ReportError(g.SlightPoints, "SlightPoints", "SlightPoints", "ltefield", "SignificantPoints")
	}
	if g.SimilarPoints > g.SlightPoints {
		sl.ReportError(g.SimilarPoints, "SimilarPoints", "SimilarPoints", "ltefield", "SlightPoints")
	}
	if g.RegressionPoints > g.SimilarPoints {
		sl.ReportError(g.RegressionPoints, "RegressionPoints", "RegressionPoints", "ltefield", "SimilarPoints")
	}
	if g.GoodPoints > g.ExcellentPoints {
		sl.ReportError(g.GoodPoints, "GoodPoints", "GoodPoints", "ltefield", "ExcellentPoints")
	}
	if g.AcceptablePoints > g.GoodPoints {
		sl.ReportError(g.AcceptablePoints, "AcceptablePoints", "AcceptablePoints", "ltefield", "GoodPoints")
	}
}
