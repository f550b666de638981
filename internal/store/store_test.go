package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func register(t *testing.T, s *Store, id string, accuracy float64) ModelVersion {
	t.Helper()
	v, err := s.RegisterVersion(ModelVersion{
		VersionID:    id,
		ModelName:    "rating_classifier",
		ArtifactPath: "models/" + id + ".pkl",
		Metrics:      Metrics{Accuracy: accuracy, F1Score: accuracy - 0.01, CVMean: accuracy, CVStd: 0.01},
	})
	if err != nil {
		t.Fatalf("RegisterVersion %s: %v", id, err)
	}
	return v
}

func TestRegisterAndGetVersion(t *testing.T) {
	s := tempDB(t)

	v, err := s.RegisterVersion(ModelVersion{
		ModelName:      "rating_classifier",
		ArtifactPath:   "models/candidate.pkl",
		ArtifactDigest: "abc123",
		Metrics:        Metrics{Accuracy: 0.87, F1Score: 0.85, CVMean: 0.86, CVStd: 0.02, CombinedScore: 0.86},
	})
	if err != nil {
		t.Fatalf("RegisterVersion: %v", err)
	}
	if v.VersionID == "" {
		t.Fatal("expected generated version ID")
	}
	if v.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	got, err := s.GetVersion(v.VersionID)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if got.Metrics != v.Metrics {
		t.Fatalf("metrics mismatch: %+v vs %+v", got.Metrics, v.Metrics)
	}
	if got.ArtifactDigest != "abc123" {
		t.Fatalf("expected digest abc123, got %q", got.ArtifactDigest)
	}
	if got.ParentID != "" {
		t.Fatalf("expected empty parent, got %q", got.ParentID)
	}
	if !got.CreatedAt.Equal(v.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, v.CreatedAt)
	}
}

func TestRegisterRequiresModelName(t *testing.T) {
	s := tempDB(t)
	if _, err := s.RegisterVersion(ModelVersion{ArtifactPath: "x.pkl"}); err == nil {
		t.Fatal("expected error for missing model name")
	}
}

func TestGetVersionNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetVersion("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetActiveEmpty(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetActive(EnvProduction)
	if !errors.Is(err, ErrNoActive) {
		t.Fatalf("expected ErrNoActive, got %v", err)
	}
}

func TestPromoteMovesPointer(t *testing.T) {
	s := tempDB(t)
	v1 := register(t, s, "v1", 0.85)
	v2 := register(t, s, "v2", 0.88)

	p1, err := s.Promote(v1.VersionID, EnvProduction, 1.0)
	if err != nil {
		t.Fatalf("Promote v1: %v", err)
	}
	if p1.PreviousID != "" {
		t.Fatalf("first promotion should have no previous, got %q", p1.PreviousID)
	}

	p2, err := s.Promote(v2.VersionID, EnvProduction, 1.0)
	if err != nil {
		t.Fatalf("Promote v2: %v", err)
	}
	if p2.PreviousID != "v1" {
		t.Fatalf("expected previous v1, got %q", p2.PreviousID)
	}
	if p2.ID <= p1.ID {
		t.Fatalf("expected increasing promotion IDs, got %d then %d", p1.ID, p2.ID)
	}

	active, err := s.GetActive(EnvProduction)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.VersionID != "v2" {
		t.Fatalf("expected v2 active, got %s", active.VersionID)
	}

	// Other environments are independent.
	if _, err := s.GetActive(EnvStaging); !errors.Is(err, ErrNoActive) {
		t.Fatalf("expected staging to be empty, got %v", err)
	}
}

func TestPromoteCanaryBounds(t *testing.T) {
	s := tempDB(t)
	register(t, s, "v1", 0.85)

	for _, ratio := range []float64{0, -0.1, 1.01} {
		if _, err := s.Promote("v1", EnvCanary, ratio); err == nil {
			t.Fatalf("expected error for canary %v", ratio)
		}
	}
	p, err := s.Promote("v1", EnvCanary, 0.1)
	if err != nil {
		t.Fatalf("Promote canary: %v", err)
	}
	if p.Canary != 0.1 {
		t.Fatalf("expected canary 0.1, got %v", p.Canary)
	}
}

func TestPromoteUnknownVersion(t *testing.T) {
	s := tempDB(t)
	_, err := s.Promote("ghost", EnvProduction, 1.0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRollbackWalksHistory(t *testing.T) {
	s := tempDB(t)
	register(t, s, "v1", 0.80)
	register(t, s, "v2", 0.82)
	register(t, s, "v3", 0.85)

	for _, id := range []string{"v1", "v2", "v3"} {
		if _, err := s.Promote(id, EnvProduction, 1.0); err != nil {
			t.Fatalf("Promote %s: %v", id, err)
		}
	}

	restored, err := s.Rollback(EnvProduction)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if restored.VersionID != "v2" {
		t.Fatalf("expected v2 after first rollback, got %s", restored.VersionID)
	}

	restored, err = s.Rollback(EnvProduction)
	if err != nil {
		t.Fatalf("second Rollback: %v", err)
	}
	if restored.VersionID != "v1" {
		t.Fatalf("expected v1 after second rollback, got %s", restored.VersionID)
	}

	if _, err := s.Rollback(EnvProduction); !errors.Is(err, ErrNoPrevious) {
		t.Fatalf("expected ErrNoPrevious, got %v", err)
	}

	history, err := s.ListPromotions(10)
	if err != nil {
		t.Fatalf("ListPromotions: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("expected 5 history rows, got %d", len(history))
	}
	if history[0].Kind != KindRollback || history[0].VersionID != "v1" || history[0].PreviousID != "v2" {
		t.Fatalf("unexpected newest history row: %+v", history[0])
	}
}

func TestRollbackWithoutActive(t *testing.T) {
	s := tempDB(t)
	if _, err := s.Rollback(EnvProduction); !errors.Is(err, ErrNoActive) {
		t.Fatalf("expected ErrNoActive, got %v", err)
	}
}

func TestRollbackTo(t *testing.T) {
	s := tempDB(t)
	register(t, s, "v1", 0.80)
	register(t, s, "v2", 0.82)
	s.Promote("v2", EnvProduction, 1.0)

	if err := s.RollbackTo(EnvProduction, "v1"); err != nil {
		t.Fatalf("RollbackTo: %v", err)
	}
	active, _ := s.GetActive(EnvProduction)
	if active.VersionID != "v1" {
		t.Fatalf("expected v1, got %s", active.VersionID)
	}

	if err := s.RollbackTo(EnvProduction, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	s := tempDB(t)
	register(t, s, "v1", 0.80)
	if err := s.Deactivate(EnvProduction); !errors.Is(err, ErrNoActive) {
		t.Fatalf("expected ErrNoActive, got %v", err)
	}

	s.Promote("v1", EnvProduction, 1.0)
	if err := s.Deactivate(EnvProduction); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := s.GetActive(EnvProduction); !errors.Is(err, ErrNoActive) {
		t.Fatalf("expected no active model, got %v", err)
	}

	history, _ := s.ListPromotions(1)
	if history[0].Kind != KindDeactivate || history[0].VersionID != "v1" {
		t.Fatalf("unexpected history row %+v", history[0])
	}
}

func TestLatestCandidateAndListVersions(t *testing.T) {
	s := tempDB(t)
	if _, err := s.LatestCandidate(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		_, err := s.RegisterVersion(ModelVersion{
			VersionID:    id,
			ModelName:    "rating_classifier",
			ArtifactPath: id + ".pkl",
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("RegisterVersion: %v", err)
		}
	}

	latest, err := s.LatestCandidate()
	if err != nil {
		t.Fatalf("LatestCandidate: %v", err)
	}
	if latest.VersionID != "c" {
		t.Fatalf("expected c, got %s", latest.VersionID)
	}

	versions, err := s.ListVersions(2)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 || versions[0].VersionID != "c" || versions[1].VersionID != "b" {
		t.Fatalf("unexpected order: %+v", versions)
	}
}

func TestLatestVersionExcept(t *testing.T) {
	s := tempDB(t)
	if _, err := s.LatestVersionExcept(""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	register(t, s, "v1", 0.80)
	if _, err := s.LatestVersionExcept("v1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound when only the excluded version exists, got %v", err)
	}

	register(t, s, "v2", 0.82)
	for exclude, want := range map[string]string{"": "v2", "v2": "v1", "v1": "v2"} {
		v, err := s.LatestVersionExcept(exclude)
		if err != nil {
			t.Fatalf("LatestVersionExcept(%q): %v", exclude, err)
		}
		if v.VersionID != want {
			t.Fatalf("LatestVersionExcept(%q): expected %s, got %s", exclude, want, v.VersionID)
		}
	}
}

func TestActivePointers(t *testing.T) {
	s := tempDB(t)
	register(t, s, "v1", 0.80)
	register(t, s, "v2", 0.82)
	s.Promote("v1", EnvProduction, 1.0)
	s.Promote("v2", EnvCanary, 0.2)

	ptrs, err := s.ActivePointers()
	if err != nil {
		t.Fatalf("ActivePointers: %v", err)
	}
	if ptrs[EnvProduction] != "v1" || ptrs[EnvCanary] != "v2" {
		t.Fatalf("unexpected pointers: %v", ptrs)
	}
	if _, ok := ptrs[EnvStaging]; ok {
		t.Fatal("staging should have no pointer")
	}
}

func TestParseEnvironment(t *testing.T) {
	if env, err := ParseEnvironment("production"); err != nil || env != EnvProduction {
		t.Fatalf("expected production, got %q / %v", env, err)
	}
	if _, err := ParseEnvironment("prod"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	register(t, s, "v1", 0.9)
	s.Promote("v1", EnvProduction, 1.0)
	s.Close()

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	active, err := s2.GetActive(EnvProduction)
	if err != nil {
		t.Fatalf("GetActive after reopen: %v", err)
	}
	if active.VersionID != "v1" {
		t.Fatalf("expected v1, got %s", active.VersionID)
	}
}
