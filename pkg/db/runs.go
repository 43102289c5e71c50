package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateRun registers a new staging run.
func CreateRun(db DBExecutor, runID string, candidateCount int) error {
	_, err := db.Exec(`INSERT INTO resolver_runs (id, status, candidate_count, started_at) VALUES (?, ?, ?, ?)`,
		runID, string(RunStaging), candidateCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create run %s: %w", runID, err)
	}
	return nil
}

// InsertRelationship stages one canonical edge under runID.
func InsertRelationship(db DBExecutor, runID string, r Relationship) error {
	if r.SenseA >= r.SenseB {
		return fmt.Errorf("relationship %d-%d is not canonical", r.SenseA, r.SenseB)
	}
	if len(r.Sources) == 0 {
		return fmt.Errorf("relationship %d-%d has no sources", r.SenseA, r.SenseB)
	}
	_, err := db.Exec(`INSERT INTO relationships
		(run_id, sense_a_id, sense_b_id, score, bucket, source_ids, merge_status, low_precision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.SenseA, r.SenseB, r.Score, string(r.Bucket), strings.Join(r.Sources, ","),
		string(r.Status), boolToInt(r.LowPrecision))
	if err != nil {
		return fmt.Errorf("insert relationship %d-%d: %w", r.SenseA, r.SenseB, err)
	}
	return nil
}

// InsertPhraseLink stages one phrase-to-word link under runID.
func InsertPhraseLink(db DBExecutor, runID string, l PhraseLink) error {
	var sense interface{}
	if !l.Ambiguous && l.SenseID != 0 {
		sense = l.SenseID
	}
	_, err := db.Exec(`INSERT INTO phrase_links (run_id, phrase_id, word_id, sense_id, ambiguous)
		VALUES (?, ?, ?, ?, ?)`,
		runID, l.PhraseID, l.WordID, sense, boolToInt(l.Ambiguous))
	if err != nil {
		return fmt.Errorf("insert phrase link %d-%d: %w", l.PhraseID, l.WordID, err)
	}
	return nil
}

// InsertPhraseState stages the derived flags of one phrase under runID.
func InsertPhraseState(db DBExecutor, runID string, s PhraseState) error {
	_, err := db.Exec(`INSERT INTO phrase_states (run_id, phrase_id, orphaned) VALUES (?, ?, ?)`,
		runID, s.PhraseID, boolToInt(s.Orphaned))
	if err != nil {
		return fmt.Errorf("insert phrase state %d: %w", s.PhraseID, err)
	}
	return nil
}

// ActivateRun makes a staging run the one readers see and retires the
// previously active run. Call it inside a transaction: readers observe either
// the old run or the new one, never a mix.
func ActivateRun(tx *sql.Tx, runID string, partial bool, relationshipCount int) error {
	if _, err := tx.Exec(`UPDATE resolver_runs SET status = ? WHERE status = ?`,
		string(RunRetired), string(RunActive)); err != nil {
		return fmt.Errorf("retire active run: %w", err)
	}

	res, err := tx.Exec(`UPDATE resolver_runs
		SET status = ?, partial = ?, relationship_count = ?, finished_at = ?
		WHERE id = ? AND status = ?`,
		string(RunActive), boolToInt(partial), relationshipCount, time.Now().UTC(), runID, string(RunStaging))
	if err != nil {
		return fmt.Errorf("activate run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("activate run %s: not a staging run", runID)
	}

	if _, err := tx.Exec(`INSERT INTO active_run (id, run_id) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`, runID); err != nil {
		return fmt.Errorf("point active run at %s: %w", runID, err)
	}
	return nil
}

// FailRun marks a staging run failed so its rows are purged.
func FailRun(db DBExecutor, runID string) error {
	_, err := db.Exec(`UPDATE resolver_runs SET status = ?, finished_at = ? WHERE id = ? AND status = ?`,
		string(RunFailed), time.Now().UTC(), runID, string(RunStaging))
	if err != nil {
		return fmt.Errorf("fail run %s: %w", runID, err)
	}
	return nil
}

// PurgeRuns deletes the derived rows of retired and failed runs and returns
// the number of relationships removed. Run records are kept as history.
func PurgeRuns(db DBExecutor) (int64, error) {
	dead := `SELECT id FROM resolver_runs WHERE status IN ('retired', 'failed')`

	res, err := db.Exec(`DELETE FROM relationships WHERE run_id IN (` + dead + `)`)
	if err != nil {
		return 0, fmt.Errorf("purge relationships: %w", err)
	}
	removed, _ := res.RowsAffected()

	if _, err := db.Exec(`DELETE FROM phrase_links WHERE run_id IN (` + dead + `)`); err != nil {
		return removed, fmt.Errorf("purge phrase links: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM phrase_states WHERE run_id IN (` + dead + `)`); err != nil {
		return removed, fmt.Errorf("purge phrase states: %w", err)
	}
	return removed, nil
}

// ActiveRunID returns the id of the run readers should see, or "" before the
// first successful resolution.
func ActiveRunID(db DBExecutor) (string, error) {
	var id string
	err := db.QueryRow(`SELECT run_id FROM active_run WHERE id = 1`).Scan(&id)
	if isNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get active run: %w", err)
	}
	return id, nil
}

// GetRun returns the run record, or nil if it does not exist.
func GetRun(db DBExecutor, runID string) (*Run, error) {
	var r Run
	var status string
	var partial int
	var finished sql.NullTime
	err := db.QueryRow(`SELECT id, status, partial, candidate_count, relationship_count, started_at, finished_at
		FROM resolver_runs WHERE id = ?`, runID).
		Scan(&r.ID, &status, &partial, &r.CandidateCount, &r.RelationshipCount, &r.StartedAt, &finished)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	r.Status = RunStatus(status)
	r.Partial = partial != 0
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
