package audit

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/signals"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.DB()
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)

	entry := DecisionEntry{
		RunID:       "run-1",
		VersionID:   "v1",
		Improvement: 0.02,
		Accuracy:    0.95,
		Score:       100,
		Decision:    "auto_deploy",
		Reason:      gate.ReasonAutoDeploy,
		Action:      "promoted",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM decision_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var signalsJSON sql.NullString
	db.QueryRow("SELECT signals_json FROM decision_log").Scan(&signalsJSON)
	if signalsJSON.Valid {
		t.Errorf("expected NULL signals_json for empty string, got %q", signalsJSON.String)
	}
}

func TestLogDecision_DefaultsCreatedAt(t *testing.T) {
	db := setupDB(t)
	before := time.Now().UTC().Add(-time.Second)

	if err := LogDecision(db, DecisionEntry{RunID: "r", VersionID: "v", Decision: "reject", Action: "rejected"}); err != nil {
		t.Fatalf("LogDecision: %v", err)
	}
	entries, err := ListDecisions(db, 1)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if entries[0].CreatedAt.Before(before) {
		t.Fatalf("expected created_at near now, got %v", entries[0].CreatedAt)
	}
}

// #endregion log-decision-tests

// #region list-decisions-tests
func TestListDecisions_NewestFirst(t *testing.T) {
	db := setupDB(t)
	for _, run := range []string{"r1", "r2", "r3"} {
		if err := LogDecision(db, DecisionEntry{RunID: run, VersionID: "v-" + run, Decision: "reject", Action: "rejected"}); err != nil {
			t.Fatalf("LogDecision %s: %v", run, err)
		}
	}

	entries, err := ListDecisions(db, 2)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "r3" || entries[1].RunID != "r2" {
		t.Fatalf("unexpected order: %s, %s", entries[0].RunID, entries[1].RunID)
	}
}

func TestGateRecordRoundTrip(t *testing.T) {
	db := setupDB(t)

	sig := signals.PerformanceSignal{Improvement: 0.005, AbsoluteAccuracy: 0.85}
	cfg := gate.DefaultGateConfig()
	rec := GateRecord{
		RunID:      "run-7",
		VersionID:  "v7",
		Signals:    sig,
		Thresholds: cfg,
		Result:     gate.NewGate(cfg).Decide(sig.Improvement, sig.AbsoluteAccuracy),
	}
	entry, err := EntryFromRecord(rec, "promoted")
	if err != nil {
		t.Fatalf("EntryFromRecord: %v", err)
	}
	if entry.Score != 70 || entry.Decision != "auto_deploy" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("LogDecision: %v", err)
	}

	entries, err := ListDecisions(db, 10)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	got, err := entries[0].Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got.Signals != sig || got.Thresholds != cfg || got.Result != rec.Result {
		t.Fatalf("record mismatch: %+v", got)
	}
}

func TestRecordWithoutSignals(t *testing.T) {
	if _, err := (DecisionEntry{ID: 3}).Record(); err == nil {
		t.Fatal("expected error for entry without gate record")
	}
}

// #endregion list-decisions-tests
