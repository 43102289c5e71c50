// Package query serves read-only lookups against the active run.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/capnteebs/parlance/pkg/db"
	"github.com/capnteebs/parlance/pkg/lexicon"
	"github.com/capnteebs/parlance/pkg/logging"
)

// Filters restrict which senses and relationship endpoints a lookup reports.
// Each non-empty category requires at least one tag of that category from the
// allowed names. MinBucket drops weaker tiers.
type Filters struct {
	Register  []string
	Region    []string
	Era       []string
	MinBucket lexicon.Bucket
}

func (f Filters) allowed() map[lexicon.TagCategory]map[string]bool {
	out := make(map[lexicon.TagCategory]map[string]bool)
	add := func(cat lexicon.TagCategory, names []string) {
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				continue
			}
			if out[cat] == nil {
				out[cat] = make(map[string]bool)
			}
			out[cat][n] = true
		}
	}
	add(lexicon.CategoryRegister, f.Register)
	add(lexicon.CategoryRegion, f.Region)
	add(lexicon.CategoryEra, f.Era)
	return out
}

// matches reports whether tags satisfy every non-empty category of allowed.
func matches(allowed map[lexicon.TagCategory]map[string]bool, tags []lexicon.Tag) bool {
	for cat, names := range allowed {
		ok := false
		for _, t := range tags {
			if t.Category == cat && names[t.Name] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Target is the far endpoint of a relationship.
type Target struct {
	WordID     int64         `json:"word_id"`
	Word       string        `json:"word"`
	SenseID    int64         `json:"sense_id"`
	POS        string        `json:"pos,omitempty"`
	Definition string        `json:"definition"`
	Tags       []lexicon.Tag `json:"tags,omitempty"`
}

// Relation is one relationship seen from the looked-up sense.
type Relation struct {
	Target       Target         `json:"target"`
	Score        float64        `json:"score"`
	Bucket       lexicon.Bucket `json:"bucket"`
	Sources      []string       `json:"sources"`
	Status       db.MergeStatus `json:"merge_status"`
	LowPrecision bool           `json:"low_precision,omitempty"`
}

// Relations partitions a sense's relationships by bucket.
type Relations struct {
	Direct     []Relation `json:"direct"`
	Related    []Relation `json:"related"`
	Contextual []Relation `json:"contextual"`
}

// Len counts relationships across buckets.
func (r Relations) Len() int { return len(r.Direct) + len(r.Related) + len(r.Contextual) }

// Phrase is a phrase attached to a sense, or to the word when Ambiguous.
type Phrase struct {
	Text       string             `json:"text"`
	Type       lexicon.PhraseType `json:"type"`
	Definition string             `json:"definition"`
	POS        string             `json:"pos,omitempty"`
	Tags       []lexicon.Tag      `json:"tags,omitempty"`
	Ambiguous  bool               `json:"ambiguous,omitempty"`
}

// Sense is one meaning of the looked-up word.
type Sense struct {
	ID             int64         `json:"id"`
	Source         string        `json:"source"`
	POS            string        `json:"pos,omitempty"`
	Definition     string        `json:"definition"`
	Index          int           `json:"index"`
	Etymology      string        `json:"etymology,omitempty"`
	Tags           []lexicon.Tag `json:"tags,omitempty"`
	Examples       []string      `json:"examples,omitempty"`
	MatchesFilters bool          `json:"matches_filters"`
	Relationships  Relations     `json:"relationships"`
	Phrases        []Phrase      `json:"phrases,omitempty"`
}

// Result is the answer to a lookup. Found is false for unknown terms.
type Result struct {
	Term    string   `json:"term"`
	Found   bool     `json:"found"`
	Word    string   `json:"word,omitempty"`
	WordID  int64    `json:"word_id,omitempty"`
	RunID   string   `json:"run_id,omitempty"`
	Senses  []Sense  `json:"senses,omitempty"`
	Phrases []Phrase `json:"phrases,omitempty"`
}

// Engine answers lookups. It never writes.
type Engine struct {
	DB     *sql.DB
	Logger *zap.Logger
}

func NewEngine(conn *sql.DB, logger *zap.Logger) *Engine {
	return &Engine{DB: conn, Logger: logging.OrNop(logger)}
}

func (e *Engine) logger() *zap.Logger { return logging.OrNop(e.Logger) }

// readTx runs fn inside one read-only transaction so every read sees the
// same active run.
func (e *Engine) readTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()
	return fn(tx)
}

// Lookup finds term by exact case-insensitive surface form.
func (e *Engine) Lookup(ctx context.Context, term string, f Filters) (*Result, error) {
	if f.MinBucket != lexicon.BucketNone && f.MinBucket.Rank() == 0 {
		return nil, fmt.Errorf("unknown bucket %q", f.MinBucket)
	}
	allowed := f.allowed()
	res := &Result{Term: term}

	err := e.readTx(ctx, func(tx *sql.Tx) error {
		w, err := db.FindWord(tx, term)
		if err != nil || w == nil {
			return err
		}
		res.Found = true
		res.Word = w.Word
		res.WordID = w.ID

		if res.RunID, err = db.ActiveRunID(tx); err != nil {
			return err
		}
		senses, err := db.SensesForWord(tx, w.ID)
		if err != nil {
			return err
		}

		for _, s := range senses {
			view := Sense{
				ID:             s.ID,
				Source:         s.SourceID,
				POS:            s.POS,
				Definition:     s.Definition,
				Index:          s.Index,
				Etymology:      s.Etymology,
				Tags:           s.Tags,
				Examples:       s.Examples,
				MatchesFilters: matches(allowed, s.Tags),
			}
			if res.RunID != "" {
				if view.MatchesFilters {
					if view.Relationships, err = relationsFor(tx, res.RunID, s.ID, allowed, f.MinBucket); err != nil {
						return err
					}
				}
				phrases, err := db.PhrasesForSense(tx, res.RunID, s.ID)
				if err != nil {
					return err
				}
				view.Phrases = phraseViews(phrases, false)
			}
			res.Senses = append(res.Senses, view)
		}

		if res.RunID != "" {
			ambiguous, err := db.AmbiguousPhrasesForWord(tx, res.RunID, w.ID)
			if err != nil {
				return err
			}
			res.Phrases = phraseViews(ambiguous, true)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", term, err)
	}

	e.logger().Debug("lookup",
		zap.String("term", term),
		zap.Bool("found", res.Found),
		zap.Int("senses", len(res.Senses)))
	return res, nil
}

func relationsFor(tx db.DBExecutor, runID string, senseID int64, allowed map[lexicon.TagCategory]map[string]bool, minBucket lexicon.Bucket) (Relations, error) {
	edges, err := db.EdgesForSense(tx, runID, senseID)
	if err != nil {
		return Relations{}, err
	}

	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Target.WordID != b.Target.WordID {
			return a.Target.WordID < b.Target.WordID
		}
		return a.Target.ID < b.Target.ID
	})

	var out Relations
	for _, e := range edges {
		if e.Bucket.Rank() < minBucket.Rank() || !matches(allowed, e.Target.Tags) {
			continue
		}
		rel := Relation{
			Target: Target{
				WordID:     e.Target.WordID,
				Word:       e.Target.Word,
				SenseID:    e.Target.ID,
				POS:        e.Target.POS,
				Definition: e.Target.Definition,
				Tags:       e.Target.Tags,
			},
			Score:        e.Score,
			Bucket:       e.Bucket,
			Sources:      e.Sources,
			Status:       e.Status,
			LowPrecision: e.LowPrecision,
		}
		switch e.Bucket {
		case lexicon.BucketDirect:
			out.Direct = append(out.Direct, rel)
		case lexicon.BucketRelated:
			out.Related = append(out.Related, rel)
		case lexicon.BucketContextual:
			out.Contextual = append(out.Contextual, rel)
		}
	}
	return out, nil
}

func phraseViews(phrases []db.Phrase, ambiguous bool) []Phrase {
	var out []Phrase
	for _, p := range phrases {
		out = append(out, Phrase{
			Text:       p.Text,
			Type:       p.Type,
			Definition: p.Definition,
			POS:        p.POS,
			Tags:       p.Tags,
			Ambiguous:  ambiguous,
		})
	}
	return out
}

// Stats counts entities; relationships are those of the active run.
func (e *Engine) Stats(ctx context.Context) (db.Stats, error) {
	var s db.Stats
	err := e.readTx(ctx, func(tx *sql.Tx) error {
		runID, err := db.ActiveRunID(tx)
		if err != nil {
			return err
		}
		s, err = db.GetStats(tx, runID)
		return err
	})
	return s, err
}

// Tags lists every tag with its usage count, ordered by category then name.
func (e *Engine) Tags(ctx context.Context) ([]db.TagUsage, error) {
	var tags []db.TagUsage
	err := e.readTx(ctx, func(tx *sql.Tx) error {
		var err error
		tags, err = db.ListTags(tx)
		return err
	})
	return tags, err
}
