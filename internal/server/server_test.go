package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/audit"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/registry"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

type fixture struct {
	dir      string
	store    *store.Store
	registry *registry.Registry
	server   *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewStore(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zerolog.Nop()
	reg := registry.New(st, &logger)
	srv := New(Options{
		Store:    st,
		Registry: reg,
		Gate:     gate.DefaultGateConfig(),
		DataPath: filepath.Join(dir, "apps.csv"),
		Logger:   &logger,
	})
	return &fixture{dir: dir, store: st, registry: reg, server: srv}
}

func (f *fixture) version(t *testing.T, id string, accuracy float64) store.ModelVersion {
	t.Helper()
	artifact := filepath.Join(f.dir, id+".pkl")
	require.NoError(t, os.WriteFile(artifact, []byte("model"), 0o644))
	v, err := f.store.RegisterVersion(store.ModelVersion{
		VersionID:    id,
		ModelName:    "rating_classifier",
		ArtifactPath: artifact,
		Metrics:      store.Metrics{Accuracy: accuracy},
	})
	require.NoError(t, err)
	return v
}

func decodeInto(v any) func(*http.Response, *http.Request) error {
	return func(res *http.Response, _ *http.Request) error {
		return json.NewDecoder(res.Body).Decode(v)
	}
}

func TestHealthWithoutModel(t *testing.T) {
	f := newFixture(t)
	apitest.New().Handler(f.server.Handler()).
		Get("/health").
		Expect(t).
		Status(http.StatusServiceUnavailable).
		End()
}

func TestHealthAndStatusAfterReload(t *testing.T) {
	f := newFixture(t)
	f.version(t, "v1", 0.87)
	_, err := f.store.Promote("v1", store.EnvProduction, 1.0)
	require.NoError(t, err)

	var reload ReloadResponse
	apitest.New().Handler(f.server.Handler()).
		Post("/api/reload_model").
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&reload)).
		End()
	assert.True(t, reload.Success)
	assert.Equal(t, "Modèle rechargé avec succès", reload.Message)
	require.NotNil(t, reload.ModelInfo)
	assert.Equal(t, "v1", reload.ModelInfo.Version.VersionID)
	assert.Equal(t, registry.OriginProduction, reload.ModelInfo.Origin)

	apitest.New().Handler(f.server.Handler()).
		Get("/health").
		Expect(t).
		Status(http.StatusOK).
		End()

	var status StatusResponse
	apitest.New().Handler(f.server.Handler()).
		Get("/api/status").
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&status)).
		End()
	assert.Equal(t, "running", status.Status)
	assert.True(t, status.ModelLoaded)
}

func TestReloadFailure(t *testing.T) {
	f := newFixture(t)

	var reload ReloadResponse
	apitest.New().Handler(f.server.Handler()).
		Post("/api/reload_model").
		Expect(t).
		Status(http.StatusInternalServerError).
		Assert(decodeInto(&reload)).
		End()
	assert.False(t, reload.Success)
	assert.Equal(t, "Échec du rechargement du modèle", reload.Message)
	assert.NotEmpty(t, reload.Error)
}

func TestDecide(t *testing.T) {
	f := newFixture(t)

	var resp DecideResponse
	apitest.New().Handler(f.server.Handler()).
		Post("/api/decide").
		JSON(`{"improvement": 0.02, "accuracy": 0.95}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&resp)).
		End()
	assert.Equal(t, 100, resp.Score)
	assert.Equal(t, gate.DecisionAutoDeploy, resp.Decision)
	assert.True(t, resp.ShouldDeploy)

	apitest.New().Handler(f.server.Handler()).
		Post("/api/decide").
		JSON(`{"improvement": 0.0, "accuracy": 0.95}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&resp)).
		End()
	assert.Equal(t, 65, resp.Score)
	assert.False(t, resp.ShouldDeploy)
}

func TestDecideRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		body   string
		status int
	}{
		{`{"accuracy": 0.9}`, http.StatusBadRequest},
		{`{"improvement": 0.01}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
		{`{"improvement": 0.01, "accuracy": 1.5}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		var resp ResponseError
		apitest.New().Handler(f.server.Handler()).
			Post("/api/decide").
			JSON(tc.body).
			Expect(t).
			Status(tc.status).
			Assert(decodeInto(&resp)).
			End()
		assert.NotEmpty(t, resp.Message, tc.body)
	}
}

func TestModelAndComparison(t *testing.T) {
	f := newFixture(t)

	var model ModelResponse
	apitest.New().Handler(f.server.Handler()).
		Get("/api/model").
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&model)).
		End()
	assert.False(t, model.Deployed)

	f.version(t, "v1", 0.85)
	_, err := f.store.Promote("v1", store.EnvProduction, 1.0)
	require.NoError(t, err)

	var cmp ComparisonResponse
	apitest.New().Handler(f.server.Handler()).
		Get("/api/comparison").
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&cmp)).
		End()
	assert.False(t, cmp.HasBoth, "the deployed version is not its own candidate")
	assert.Nil(t, cmp.Winner)

	f.version(t, "v2", 0.88)
	cmp = ComparisonResponse{}
	apitest.New().Handler(f.server.Handler()).
		Get("/api/comparison").
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&cmp)).
		End()
	assert.True(t, cmp.HasBoth)
	require.NotNil(t, cmp.Winner)
	assert.Equal(t, "candidate", *cmp.Winner)

	model = ModelResponse{}
	apitest.New().Handler(f.server.Handler()).
		Get("/api/model").
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&model)).
		End()
	assert.True(t, model.Deployed)
	assert.Equal(t, "v1", model.Version.VersionID)
}

func TestComparisonSkipsNewerProductionVersion(t *testing.T) {
	f := newFixture(t)
	f.version(t, "v1", 0.85)
	f.version(t, "v2", 0.88)
	_, err := f.store.Promote("v2", store.EnvProduction, 1.0)
	require.NoError(t, err)

	var cmp ComparisonResponse
	apitest.New().Handler(f.server.Handler()).
		Get("/api/comparison").
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&cmp)).
		End()
	assert.True(t, cmp.HasBoth)
	require.NotNil(t, cmp.Candidate)
	assert.Equal(t, 0.85, cmp.Candidate.Accuracy)
	require.NotNil(t, cmp.Winner)
	assert.Equal(t, "production", *cmp.Winner)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.version(t, "v1", 0.85)
	_, err := f.store.Promote("v1", store.EnvProduction, 1.0)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, audit.LogDecision(f.store.DB(), audit.DecisionEntry{
			RunID:     fmt.Sprintf("run-%d", i),
			VersionID: "v1",
			Score:     70,
			Decision:  string(gate.DecisionAutoDeploy),
			Reason:    gate.ReasonAutoDeploy,
			Action:    "promoted",
		}))
	}

	var hist HistoryResponse
	apitest.New().Handler(f.server.Handler()).
		Get("/api/history").
		Query("limit", "2").
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&hist)).
		End()
	assert.Len(t, hist.Decisions, 2)
	assert.Equal(t, "run-2", hist.Decisions[0].RunID)
	assert.Len(t, hist.Promotions, 1)

	apitest.New().Handler(f.server.Handler()).
		Get("/api/history").
		Query("limit", "10000").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	apitest.New().Handler(f.server.Handler()).
		Get("/api/stats").
		Expect(t).
		Status(http.StatusNotFound).
		End()

	csv := "App,Category,Rating\nA,GAME,4.1\nB,TOOLS,3.9\nC,GAME,4.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "apps.csv"), []byte(csv), 0o644))

	var stats map[string]any
	apitest.New().Handler(f.server.Handler()).
		Get("/api/stats").
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeInto(&stats)).
		End()
	assert.EqualValues(t, 3, stats["total_apps"])
	assert.EqualValues(t, 2, stats["categories"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	apitest.New().Handler(f.server.Handler()).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		End()
}
