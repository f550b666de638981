package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS model_versions (
	version_id      TEXT PRIMARY KEY,
	parent_id       TEXT,
	model_name      TEXT NOT NULL,
	artifact_path   TEXT NOT NULL,
	artifact_digest TEXT,
	accuracy        REAL NOT NULL,
	metrics_json    TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_models (
	environment TEXT PRIMARY KEY,
	version_id  TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES model_versions(version_id)
);

CREATE TABLE IF NOT EXISTS promotions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id  TEXT NOT NULL,
	environment TEXT NOT NULL,
	canary      REAL NOT NULL,
	kind        TEXT NOT NULL,
	previous_id TEXT,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES model_versions(version_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	version_id   TEXT NOT NULL,
	improvement  REAL NOT NULL,
	accuracy     REAL NOT NULL,
	score        INTEGER NOT NULL,
	decision     TEXT NOT NULL,
	reason       TEXT,
	action       TEXT NOT NULL,
	signals_json TEXT,
	created_at   TEXT NOT NULL
);
`

// #endregion schema

// TimeLayout is fixed-width so created_at columns sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store manages registered model versions and their deployment pointers in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. audit).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region register
// RegisterVersion records a trained model. It does not activate it anywhere.
// An empty VersionID is replaced with a fresh UUID and a zero CreatedAt with now.
func (s *Store) RegisterVersion(v ModelVersion) (ModelVersion, error) {
	if v.VersionID == "" {
		v.VersionID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.ModelName == "" {
		return ModelVersion{}, errors.New("register version: model name is required")
	}

	metricsJSON, err := json.Marshal(v.Metrics)
	if err != nil {
		return ModelVersion{}, fmt.Errorf("marshal metrics: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO model_versions (version_id, parent_id, model_name, artifact_path, artifact_digest, accuracy, metrics_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VersionID, nullIfEmpty(v.ParentID), v.ModelName, v.ArtifactPath, nullIfEmpty(v.ArtifactDigest),
		v.Metrics.Accuracy, string(metricsJSON), v.CreatedAt.UTC().Format(TimeLayout),
	)
	if err != nil {
		return ModelVersion{}, fmt.Errorf("insert version: %w", err)
	}
	return v, nil
}

// #endregion register

// #region get-version
// GetVersion retrieves a registered version by ID.
func (s *Store) GetVersion(id string) (ModelVersion, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, model_name, artifact_path, artifact_digest, metrics_json, created_at
		 FROM model_versions WHERE version_id = ?`, id,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelVersion{}, fmt.Errorf("get version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ModelVersion{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}

// GetActive returns the version currently active in env.
func (s *Store) GetActive(env Environment) (ModelVersion, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_models WHERE environment = ?`, string(env)).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelVersion{}, fmt.Errorf("get active %s: %w", env, ErrNoActive)
	}
	if err != nil {
		return ModelVersion{}, fmt.Errorf("get active %s: %w", env, err)
	}
	return s.GetVersion(versionID)
}

// LatestCandidate returns the most recently registered version, active or not.
func (s *Store) LatestCandidate() (ModelVersion, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, model_name, artifact_path, artifact_digest, metrics_json, created_at
		 FROM model_versions ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelVersion{}, fmt.Errorf("latest candidate: %w", ErrNotFound)
	}
	if err != nil {
		return ModelVersion{}, fmt.Errorf("latest candidate: %w", err)
	}
	return v, nil
}

// LatestVersionExcept returns the most recently registered version whose ID is
// not versionID. An empty versionID excludes nothing.
func (s *Store) LatestVersionExcept(versionID string) (ModelVersion, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, model_name, artifact_path, artifact_digest, metrics_json, created_at
		 FROM model_versions WHERE version_id != ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		versionID,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelVersion{}, fmt.Errorf("latest version except %q: %w", versionID, ErrNotFound)
	}
	if err != nil {
		return ModelVersion{}, fmt.Errorf("latest version except %q: %w", versionID, err)
	}
	return v, nil
}

// #endregion get-version

// #region promote
// Promote makes versionID the active model of env and appends a history row.
// canary is the share of traffic the version receives, in (0, 1].
func (s *Store) Promote(versionID string, env Environment, canary float64) (Promotion, error) {
	if canary <= 0 || canary > 1 {
		return Promotion{}, fmt.Errorf("promote %s: canary ratio %.2f outside (0, 1]", versionID, canary)
	}
	if _, err := s.GetVersion(versionID); err != nil {
		return Promotion{}, fmt.Errorf("promote: %w", err)
	}
	return s.movePointer(versionID, env, canary, KindPromote)
}

// #endregion promote

// #region rollback
// Rollback restores the version that was active in env before the current one was promoted.
func (s *Store) Rollback(env Environment) (ModelVersion, error) {
	current, err := s.GetActive(env)
	if err != nil {
		return ModelVersion{}, fmt.Errorf("rollback: %w", err)
	}

	var previous sql.NullString
	err = s.db.QueryRow(
		`SELECT previous_id FROM promotions
		 WHERE environment = ? AND version_id = ? AND kind = ?
		 ORDER BY id DESC LIMIT 1`,
		string(env), current.VersionID, string(KindPromote),
	).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !previous.Valid) {
		return ModelVersion{}, fmt.Errorf("rollback %s from %s: %w", env, current.VersionID, ErrNoPrevious)
	}
	if err != nil {
		return ModelVersion{}, fmt.Errorf("find previous: %w", err)
	}

	if _, err := s.movePointer(previous.String, env, 1.0, KindRollback); err != nil {
		return ModelVersion{}, err
	}
	return s.GetVersion(previous.String)
}

// RollbackTo sets the active pointer of env to a specific registered version.
func (s *Store) RollbackTo(env Environment, targetVersionID string) error {
	if _, err := s.GetVersion(targetVersionID); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	_, err := s.movePointer(targetVersionID, env, 1.0, KindRollback)
	return err
}

// Deactivate removes the active pointer of env. The history row records the
// version that was taken out of service.
func (s *Store) Deactivate(env Environment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRow(`SELECT version_id FROM active_models WHERE environment = ?`, string(env)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("deactivate %s: %w", env, ErrNoActive)
	}
	if err != nil {
		return fmt.Errorf("read active: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM active_models WHERE environment = ?`, string(env)); err != nil {
		return fmt.Errorf("clear active: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO promotions (version_id, environment, canary, kind, previous_id, created_at)
		 VALUES (?, ?, 0, ?, ?, ?)`,
		current, string(env), string(KindDeactivate), current, time.Now().UTC().Format(TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert promotion: %w", err)
	}
	return tx.Commit()
}

// #endregion rollback

// movePointer updates the active pointer and records the move atomically.
func (s *Store) movePointer(versionID string, env Environment, canary float64, kind PromotionKind) (Promotion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Promotion{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var previous sql.NullString
	err = tx.QueryRow(`SELECT version_id FROM active_models WHERE environment = ?`, string(env)).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Promotion{}, fmt.Errorf("read active: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_models (environment, version_id) VALUES (?, ?)
		 ON CONFLICT(environment) DO UPDATE SET version_id = excluded.version_id`,
		string(env), versionID,
	)
	if err != nil {
		return Promotion{}, fmt.Errorf("set active: %w", err)
	}

	p := Promotion{
		VersionID:   versionID,
		Environment: env,
		Canary:      canary,
		Kind:        kind,
		PreviousID:  previous.String,
		CreatedAt:   time.Now().UTC(),
	}
	res, err := tx.Exec(
		`INSERT INTO promotions (version_id, environment, canary, kind, previous_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.VersionID, string(p.Environment), p.Canary, string(p.Kind), nullIfEmpty(p.PreviousID),
		p.CreatedAt.Format(TimeLayout),
	)
	if err != nil {
		return Promotion{}, fmt.Errorf("insert promotion: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return Promotion{}, fmt.Errorf("promotion id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Promotion{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// #region list
// ListVersions returns the most recently registered versions, newest first.
func (s *Store) ListVersions(limit int) ([]ModelVersion, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, model_name, artifact_path, artifact_digest, metrics_json, created_at
		 FROM model_versions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []ModelVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// ListPromotions returns the deployment history, newest first.
func (s *Store) ListPromotions(limit int) ([]Promotion, error) {
	rows, err := s.db.Query(
		`SELECT id, version_id, environment, canary, kind, previous_id, created_at
		 FROM promotions ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var out []Promotion
	for rows.Next() {
		var p Promotion
		var env, kind, createdStr string
		var previous sql.NullString
		if err := rows.Scan(&p.ID, &p.VersionID, &env, &p.Canary, &kind, &previous, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		p.Environment = Environment(env)
		p.Kind = PromotionKind(kind)
		p.PreviousID = previous.String
		p.CreatedAt, _ = time.Parse(TimeLayout, createdStr)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ActivePointers returns the active version ID of every environment that has one.
func (s *Store) ActivePointers() (map[Environment]string, error) {
	rows, err := s.db.Query(`SELECT environment, version_id FROM active_models`)
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	defer rows.Close()

	out := make(map[Environment]string)
	for rows.Next() {
		var env, id string
		if err := rows.Scan(&env, &id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out[Environment(env)] = id
	}
	return out, rows.Err()
}

// #endregion list

// #region helpers
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(r rowScanner) (ModelVersion, error) {
	var v ModelVersion
	var parentID, digest sql.NullString
	var metricsJSON, createdStr string

	if err := r.Scan(&v.VersionID, &parentID, &v.ModelName, &v.ArtifactPath, &digest, &metricsJSON, &createdStr); err != nil {
		return ModelVersion{}, err
	}
	v.ParentID = parentID.String
	v.ArtifactDigest = digest.String
	if err := json.Unmarshal([]byte(metricsJSON), &v.Metrics); err != nil {
		return ModelVersion{}, fmt.Errorf("unmarshal metrics: %w", err)
	}
	v.CreatedAt, _ = time.Parse(TimeLayout, createdStr)
	return v, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
