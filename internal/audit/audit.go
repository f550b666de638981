package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// #region log-decision
// LogDecision writes an entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (run_id, version_id, improvement, accuracy, score, decision, reason, action, signals_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.VersionID,
		entry.Improvement,
		entry.Accuracy,
		entry.Score,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.Action,
		nullIfEmpty(entry.SignalsJSON),
		entry.CreatedAt.UTC().Format(store.TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// EntryFromRecord builds the log row for a gate evaluation, embedding the record as JSON.
func EntryFromRecord(rec GateRecord, action string) (DecisionEntry, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return DecisionEntry{}, fmt.Errorf("marshal gate record: %w", err)
	}
	return DecisionEntry{
		RunID:       rec.RunID,
		VersionID:   rec.VersionID,
		Improvement: rec.Signals.Improvement,
		Accuracy:    rec.Signals.AbsoluteAccuracy,
		Score:       rec.Result.Score,
		Decision:    string(rec.Result.Decision),
		Reason:      rec.Result.Reason,
		Action:      action,
		SignalsJSON: string(raw),
	}, nil
}

// #endregion log-decision

// #region list-decisions
// ListDecisions returns the most recent entries, newest first.
func ListDecisions(db *sql.DB, limit int) ([]DecisionEntry, error) {
	rows, err := db.Query(
		`SELECT id, run_id, version_id, improvement, accuracy, score, decision, reason, action, signals_json, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var entries []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var reason, signalsJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.RunID, &e.VersionID, &e.Improvement, &e.Accuracy, &e.Score,
			&e.Decision, &reason, &e.Action, &signalsJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Reason = reason.String
		e.SignalsJSON = signalsJSON.String
		e.CreatedAt, _ = time.Parse(store.TimeLayout, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Record decodes the GateRecord stored with the entry.
func (e DecisionEntry) Record() (GateRecord, error) {
	var rec GateRecord
	if e.SignalsJSON == "" {
		return rec, fmt.Errorf("decision %d has no gate record", e.ID)
	}
	if err := json.Unmarshal([]byte(e.SignalsJSON), &rec); err != nil {
		return rec, fmt.Errorf("unmarshal gate record: %w", err)
	}
	return rec, nil
}

// #endregion list-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
