package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/audit"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/registry"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/signals"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/trigger"
)

type (
	ResponseError struct {
		Message string `json:"message"`
	}

	StatusResponse struct {
		Status      string              `json:"status"`
		ModelLoaded bool                `json:"model_loaded"`
		ModelInfo   *registry.ModelInfo `json:"model_info"`
		Timestamp   time.Time           `json:"timestamp"`
	}

	ReloadResponse struct {
		Success   bool                `json:"success"`
		Message   string              `json:"message"`
		ModelInfo *registry.ModelInfo `json:"model_info,omitempty"`
		Error     string              `json:"error,omitempty"`
	}

	DecideRequest struct {
		Improvement *float64 `json:"improvement" validate:"required"`
		Accuracy    *float64 `json:"accuracy" validate:"required"`
	}

	DecideResponse struct {
		gate.DecisionResult
		ShouldDeploy bool `json:"should_deploy"`
	}

	ModelResponse struct {
		Deployed bool                `json:"deployed"`
		Version  *store.ModelVersion `json:"version,omitempty"`
	}

	HistoryQuery struct {
		Limit int `query:"limit" validate:"gte=0,lte=500"`
	}

	HistoryResponse struct {
		Decisions  []audit.DecisionEntry `json:"decisions"`
		Promotions []store.Promotion     `json:"promotions"`
	}

	ComparisonResponse struct {
		HasBoth    bool           `json:"has_both"`
		Production *store.Metrics `json:"production,omitempty"`
		Candidate  *store.Metrics `json:"candidate,omitempty"`
		Winner     *string        `json:"winner"`
	}
)

func (s *Server) Health(c echo.Context) error {
	if _, ok := s.registry.Current(); !ok {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "model_loaded": false})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "model_loaded": true})
}

func (s *Server) Status(c echo.Context) error {
	resp := StatusResponse{Status: "running", Timestamp: time.Now().UTC()}
	if info, ok := s.registry.Current(); ok {
		resp.ModelLoaded = true
		resp.ModelInfo = &info
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) ReloadModel(c echo.Context) error {
	info, err := s.registry.Reload()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ReloadResponse{
			Success: false,
			Message: "Échec du rechargement du modèle",
			Error:   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, ReloadResponse{
		Success:   true,
		Message:   "Modèle rechargé avec succès",
		ModelInfo: &info,
	})
}

// Decide scores a candidate without side effects.
func (s *Server) Decide(c echo.Context) error {
	var req DecideRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	sig := signals.PerformanceSignal{Improvement: *req.Improvement, AbsoluteAccuracy: *req.Accuracy}
	if err := sig.Validate(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ResponseError{Message: err.Error()})
	}

	res := s.gate.Decide(sig.Improvement, sig.AbsoluteAccuracy)
	return c.JSON(http.StatusOK, DecideResponse{DecisionResult: res, ShouldDeploy: res.ShouldDeploy()})
}

func (s *Server) Model(c echo.Context) error {
	v, err := s.store.GetActive(store.EnvProduction)
	if errors.Is(err, store.ErrNoActive) {
		return c.JSON(http.StatusOK, ModelResponse{Deployed: false})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	return c.JSON(http.StatusOK, ModelResponse{Deployed: true, Version: &v})
}

func (s *Server) History(c echo.Context) error {
	var q HistoryQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := s.validate.Struct(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if q.Limit == 0 {
		q.Limit = 20
	}

	decisions, err := audit.ListDecisions(s.store.DB(), q.Limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	promotions, err := s.store.ListPromotions(q.Limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	if decisions == nil {
		decisions = []audit.DecisionEntry{}
	}
	if promotions == nil {
		promotions = []store.Promotion{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{Decisions: decisions, Promotions: promotions})
}

// Comparison pits the production model against the newest registered version
// that is not in production.
func (s *Server) Comparison(c echo.Context) error {
	var resp ComparisonResponse

	prod, err := s.store.GetActive(store.EnvProduction)
	if err != nil && !errors.Is(err, store.ErrNoActive) {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	if err == nil {
		resp.Production = &prod.Metrics
	}

	cand, err := s.store.LatestVersionExcept(prod.VersionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	if err == nil {
		resp.Candidate = &cand.Metrics
	}

	if resp.Production != nil && resp.Candidate != nil {
		resp.HasBoth = true
		winner := "production"
		if resp.Candidate.Accuracy > resp.Production.Accuracy {
			winner = "candidate"
		}
		resp.Winner = &winner
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) Stats(c echo.Context) error {
	stats, err := trigger.DatasetStats(s.dataPath)
	if err != nil {
		return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}
