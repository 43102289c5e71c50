// Package ingest runs source adapters, persists their candidates and rebuilds
// the relationship view as a staged, atomically activated run.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/capnteebs/parlance/pkg/apperrors"
	"github.com/capnteebs/parlance/pkg/config"
	"github.com/capnteebs/parlance/pkg/db"
	"github.com/capnteebs/parlance/pkg/lexicon"
	"github.com/capnteebs/parlance/pkg/linker"
	"github.com/capnteebs/parlance/pkg/logging"
	"github.com/capnteebs/parlance/pkg/metrics"
	"github.com/capnteebs/parlance/pkg/resolver"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// SourceFailure names an adapter that failed during a run.
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// RunReport summarises one pipeline run.
type RunReport struct {
	RunID         string                 `json:"run_id"`
	Partial       bool                   `json:"partial"`
	Sources       []lexicon.Report       `json:"sources,omitempty"`
	Failures      []SourceFailure        `json:"failures,omitempty"`
	SensesCreated int                    `json:"senses_created"`
	Candidates    int                    `json:"candidates"`
	Unresolvable  int                    `json:"unresolvable"`
	Writes        int64                  `json:"writes"`
	Relationships map[lexicon.Bucket]int `json:"relationships"`
	PhraseLinks   map[string]int         `json:"phrase_links"`
	Duration      time.Duration          `json:"duration"`
}

// Pipeline ingests sources and rebuilds the relationship view. Only one run
// may execute at a time per Pipeline.
type Pipeline struct {
	DB            *sql.DB
	Policy        resolver.Policy
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	MaxExamples   int
	Logger        *zap.Logger
	Metrics       *metrics.Collector

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface

	running sync.Mutex
}

// NewPipeline creates a pipeline configured from cfg. logger and m may be nil.
func NewPipeline(conn *sql.DB, cfg *config.Config, logger *zap.Logger, m *metrics.Collector) (*Pipeline, error) {
	policy, err := resolver.PolicyFromConfig(cfg.Policy)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.NewCollector("parlance")
	}
	return &Pipeline{
		DB:            conn,
		Policy:        policy,
		Workers:       cfg.Ingest.Workers,
		BatchSize:     cfg.Ingest.BatchSize,
		FlushInterval: cfg.Ingest.FlushInterval,
		MaxExamples:   cfg.Ingest.MaxExamples,
		Logger:        logging.OrNop(logger),
		Metrics:       m,
	}, nil
}

type sourceResult struct {
	batch *lexicon.Batch
	err   error
}

// Run ingests every source in parallel, persists what they produced and
// rebuilds the relationship view. A failing source marks the run partial;
// its previously stored candidates stay in effect.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*RunReport, error) {
	if !p.running.TryLock() {
		return nil, apperrors.ErrRunInProgress
	}
	defer p.running.Unlock()

	start := time.Now()
	logger := p.logger()

	results, err := p.runAdapters(ctx, sources)
	if err != nil {
		return nil, err
	}

	report := &RunReport{}
	var batches []*lexicon.Batch
	for i, r := range results {
		name := sources[i].Adapter.Source()
		if r.err != nil {
			report.Partial = true
			report.Failures = append(report.Failures, SourceFailure{Source: name, Error: r.err.Error()})
			p.metrics().AdapterFailures.WithLabelValues(name).Inc()
			logger.Warn("source failed, run degraded", zap.String("source", name), zap.Error(r.err))
			continue
		}
		batches = append(batches, r.batch)
		report.Sources = append(report.Sources, r.batch.Report)
		p.observeBatch(r.batch)
	}

	created, writes, err := p.persist(ctx, batches)
	if err != nil {
		return nil, fmt.Errorf("persist candidates: %w", err)
	}
	report.SensesCreated = created
	report.Writes = writes

	if err := p.rebuild(ctx, report); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

// Resolve rebuilds the relationship view from stored state only.
func (p *Pipeline) Resolve(ctx context.Context) (*RunReport, error) {
	if !p.running.TryLock() {
		return nil, apperrors.ErrRunInProgress
	}
	defer p.running.Unlock()

	start := time.Now()
	report := &RunReport{}
	if err := p.rebuild(ctx, report); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

// runAdapters parses every source on the worker pool. Each job writes only
// its own result slot.
func (p *Pipeline) runAdapters(ctx context.Context, sources []Source) ([]sourceResult, error) {
	results := make([]sourceResult, len(sources))
	if len(sources) == 0 {
		return results, nil
	}

	workers := max(1, min(p.Workers, len(sources)))
	var wp WorkerPoolInterface
	if p.PoolFactory != nil {
		wp = p.PoolFactory(workers, len(sources))
	} else {
		wp = NewWorkerPool(workers, len(sources))
	}
	wp.Start(ctx)

	for i, src := range sources {
		job := func(ctx context.Context) error {
			results[i] = p.runSource(ctx, src)
			return results[i].err
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			wp.Close()
			return nil, fmt.Errorf("submit %s: %w", src.Adapter.Source(), err)
		}
	}
	wp.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) runSource(ctx context.Context, src Source) sourceResult {
	name := src.Adapter.Source()
	rc, err := src.Open(ctx)
	if err != nil {
		var se *apperrors.SourceError
		if !errors.As(err, &se) {
			err = &apperrors.SourceError{Source: name, Err: err}
		}
		return sourceResult{err: err}
	}
	defer rc.Close()

	batch, err := src.Adapter.Ingest(ctx, rc)
	if err != nil {
		return sourceResult{err: fmt.Errorf("%s: %w", name, err)}
	}
	return sourceResult{batch: batch}
}

func (p *Pipeline) observeBatch(b *lexicon.Batch) {
	m := p.metrics()
	m.RecordsProcessed.WithLabelValues(b.Source).Add(float64(b.Report.Processed))
	m.RecordsSkipped.WithLabelValues(b.Source, "malformed").Add(float64(b.Report.Malformed))
	m.RecordsSkipped.WithLabelValues(b.Source, "filtered").Add(float64(b.Report.Filtered))
	m.Candidates.WithLabelValues(b.Source).Add(float64(len(b.Relationships)))
}

// persist writes lexical candidates through the batch writer and replaces
// each successful source's relationship candidates. It returns the number of
// new senses, counted from committed state, and the number of committed writes.
func (p *Pipeline) persist(ctx context.Context, batches []*lexicon.Batch) (created int, writes int64, err error) {
	before, err := db.CountSenses(p.DB)
	if err != nil {
		return 0, 0, err
	}

	bw := NewBatchWriter(p.DB, p.batchSize(), p.FlushInterval)
	bw.Logger = p.logger()

	submit := func(w WriteFunc) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return bw.Submit(w)
	}

	for _, b := range batches {
		for _, s := range b.Senses {
			if err := submit(func(ctx context.Context, tx *sql.Tx) error {
				_, _, err := db.UpsertSense(tx, s, p.MaxExamples)
				return err
			}); err != nil {
				bw.Close()
				return 0, 0, err
			}
		}
		for _, ph := range b.Phrases {
			if err := submit(func(ctx context.Context, tx *sql.Tx) error {
				_, err := db.UpsertPhrase(tx, ph)
				return err
			}); err != nil {
				bw.Close()
				return 0, 0, err
			}
		}
		if err := submit(func(ctx context.Context, tx *sql.Tx) error {
			return db.ReplaceCandidates(tx, b.Source, b.Relationships)
		}); err != nil {
			bw.Close()
			return 0, 0, err
		}
	}

	if err := bw.Close(); err != nil {
		return 0, bw.Committed(), err
	}
	after, err := db.CountSenses(p.DB)
	if err != nil {
		return 0, bw.Committed(), err
	}
	return after - before, bw.Committed(), nil
}

type snapshot struct {
	inv     *resolver.Inventory
	cands   []lexicon.RelationshipCandidate
	phrases []db.Phrase
}

// loadSnapshot reads the inventory, candidates and phrases in one read
// transaction.
func (p *Pipeline) loadSnapshot(ctx context.Context) (*snapshot, error) {
	tx, err := p.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	inv, err := resolver.LoadInventory(tx)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	cands, err := db.LoadCandidates(tx)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	phrases, err := db.LoadPhrases(tx)
	if err != nil {
		return nil, fmt.Errorf("load phrases: %w", err)
	}
	return &snapshot{inv: inv, cands: cands, phrases: phrases}, nil
}

// rebuild resolves and links a fresh snapshot, stages the output under a new
// run id and activates it.
func (p *Pipeline) rebuild(ctx context.Context, report *RunReport) error {
	logger := p.logger()
	m := p.metrics()

	snap, err := p.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	if snap.inv.Len() == 0 {
		return apperrors.ErrEmptyInventory
	}

	start := time.Now()
	res := resolver.Resolve(p.Policy, snap.inv, snap.cands)
	links := linker.Link(snap.inv, snap.phrases, res.Relationships)
	m.ResolveDuration.Observe(time.Since(start).Seconds())

	for _, u := range res.Unresolvable {
		logger.Debug("dropping candidate", zap.String("source", u.Candidate.Source), zap.Error(u.Err))
	}
	m.UnresolvableSenses.Add(float64(len(res.Unresolvable)))

	runID := uuid.NewString()
	report.RunID = runID
	report.Candidates = len(snap.cands)
	report.Unresolvable = len(res.Unresolvable)
	report.Relationships = res.Counts()
	report.PhraseLinks = links.Counts()

	if err := db.CreateRun(p.DB, runID, len(snap.cands)); err != nil {
		return err
	}
	staged, err := p.stage(ctx, runID, res, links)
	if err != nil {
		p.failRun(runID, err)
		return fmt.Errorf("stage run %s: %w", runID, err)
	}
	report.Writes += staged

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		p.failRun(runID, err)
		return fmt.Errorf("activate run %s: %w", runID, err)
	}
	if err := db.ActivateRun(tx, runID, report.Partial, len(res.Relationships)); err != nil {
		tx.Rollback()
		p.failRun(runID, err)
		return err
	}
	if err := tx.Commit(); err != nil {
		p.failRun(runID, err)
		return fmt.Errorf("activate run %s: %w", runID, err)
	}

	if removed, err := db.PurgeRuns(p.DB); err != nil {
		logger.Warn("failed to purge retired runs", zap.Error(err))
	} else if removed > 0 {
		logger.Debug("purged retired runs", zap.Int64("relationships", removed))
	}

	for bucket, n := range report.Relationships {
		m.Relationships.WithLabelValues(string(bucket)).Set(float64(n))
	}
	for state, n := range report.PhraseLinks {
		m.PhraseLinks.WithLabelValues(state).Set(float64(n))
	}

	logger.Info("run activated",
		zap.String("run_id", runID),
		zap.Bool("partial", report.Partial),
		zap.Int("candidates", len(snap.cands)),
		zap.Int("relationships", len(res.Relationships)),
		zap.Int("unresolvable", len(res.Unresolvable)),
		zap.Int("self_pairs", res.SelfPairs),
		zap.Int("below_floor", res.BelowFloor))
	return nil
}

// stage writes the run's derived rows through the batch writer and returns
// the number of committed writes.
func (p *Pipeline) stage(ctx context.Context, runID string, res resolver.Result, links linker.Result) (int64, error) {
	bw := NewBatchWriter(p.DB, p.batchSize(), p.FlushInterval)
	bw.Logger = p.logger()

	var writes []WriteFunc
	for _, r := range res.Relationships {
		writes = append(writes, func(ctx context.Context, tx *sql.Tx) error {
			return db.InsertRelationship(tx, runID, r)
		})
	}
	for _, l := range links.Links {
		writes = append(writes, func(ctx context.Context, tx *sql.Tx) error {
			return db.InsertPhraseLink(tx, runID, l)
		})
	}
	for _, s := range links.States {
		writes = append(writes, func(ctx context.Context, tx *sql.Tx) error {
			return db.InsertPhraseState(tx, runID, s)
		})
	}

	for _, w := range writes {
		if err := ctx.Err(); err != nil {
			bw.Close()
			return 0, err
		}
		if err := bw.Submit(w); err != nil {
			bw.Close()
			return 0, err
		}
	}
	err := bw.Close()
	return bw.Committed(), err
}

func (p *Pipeline) failRun(runID string, cause error) {
	p.logger().Warn("run failed", zap.String("run_id", runID), zap.Error(cause))
	if err := db.FailRun(p.DB, runID); err != nil {
		p.logger().Warn("failed to mark run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (p *Pipeline) batchSize() int {
	if p.BatchSize <= 0 {
		return 200
	}
	return p.BatchSize
}

func (p *Pipeline) logger() *zap.Logger {
	return logging.OrNop(p.Logger)
}

func (p *Pipeline) metrics() *metrics.Collector {
	if p.Metrics == nil {
		p.Metrics = metrics.NewCollector("parlance")
	}
	return p.Metrics
}
