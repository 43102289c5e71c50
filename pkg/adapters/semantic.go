package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/capnteebs/parlance/pkg/lexicon"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SimilarityFunc scores two embedding vectors of equal length.
type SimilarityFunc func(a, b []float64) float64

// Cosine is the cosine similarity of a and b, 0 when either is a zero vector.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SemanticConfig tunes the similarity pass.
type SemanticConfig struct {
	MinSimilarity float64
	MaxPerSense   int
	Concurrency   int
	Similarity    SimilarityFunc
}

// embedding is one JSON line of the embeddings export.
type embedding struct {
	Word     string    `json:"word"`
	SenseKey string    `json:"sense_key"`
	Vector   []float64 `json:"vector"`
}

// Semantic proposes computed relationships between senses whose embeddings
// are close. Each sense keeps its strongest neighbours only.
type Semantic struct {
	cfg    SemanticConfig
	logger *zap.Logger
}

func NewSemantic(cfg SemanticConfig, logger *zap.Logger) *Semantic {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Similarity == nil {
		cfg.Similarity = Cosine
	}
	if cfg.MaxPerSense <= 0 {
		cfg.MaxPerSense = 30
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Semantic{cfg: cfg, logger: logger}
}

func (s *Semantic) Source() string { return lexicon.SourceSemantic }

type neighbour struct {
	index int
	score float64
}

func (s *Semantic) Ingest(ctx context.Context, r io.Reader) (*lexicon.Batch, error) {
	batch := lexicon.NewBatch(lexicon.SourceSemantic)

	var vecs []embedding
	dim := 0
	err := eachLine(ctx, r, batch, s.logger, func(line []byte) error {
		var e embedding
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("decode embedding: %w", err)
		}
		e.Word = lexicon.NormalizeWord(e.Word)
		if e.Word == "" {
			return errMissingWord
		}
		if len(e.Vector) == 0 {
			return errors.New("embedding has no vector")
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("vector has %d dimensions, want %d", len(e.Vector), dim)
		}
		vecs = append(vecs, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	neighbours, err := s.neighbours(ctx, vecs)
	if err != nil {
		return nil, err
	}

	type pair struct{ a, b int }
	emitted := make(map[pair]bool)
	for i, ns := range neighbours {
		for _, n := range ns {
			p := pair{min(i, n.index), max(i, n.index)}
			if emitted[p] {
				continue
			}
			emitted[p] = true
			a, b := vecs[p.a], vecs[p.b]
			batch.Relationships = append(batch.Relationships, lexicon.RelationshipCandidate{
				Source: lexicon.SourceSemantic,
				Kind:   lexicon.KindComputed,
				A:      lexicon.SenseRef{Word: a.Word, Key: a.SenseKey},
				B:      lexicon.SenseRef{Word: b.Word, Key: b.SenseKey},
				Score:  math.Min(1, n.score),
			})
		}
	}

	s.logger.Info("semantic similarity computed",
		zap.Int("embeddings", len(vecs)),
		zap.Int("candidates", len(batch.Relationships)),
		zap.Int("malformed", batch.Report.Malformed))
	return batch, nil
}

// neighbours scores every pair in parallel; each goroutine owns one row.
func (s *Semantic) neighbours(ctx context.Context, vecs []embedding) ([][]neighbour, error) {
	out := make([][]neighbour, len(vecs))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.cfg.Concurrency)

	for i := range vecs {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := gctx.Err(); err != nil {
				return err
			}
			var row []neighbour
			for j := range vecs {
				if j == i || sameSense(vecs[i], vecs[j]) {
					continue
				}
				score := s.cfg.Similarity(vecs[i].Vector, vecs[j].Vector)
				if score >= s.cfg.MinSimilarity {
					row = append(row, neighbour{index: j, score: score})
				}
			}
			sort.Slice(row, func(a, b int) bool {
				if row[a].score != row[b].score {
					return row[a].score > row[b].score
				}
				return row[a].index < row[b].index
			})
			if len(row) > s.cfg.MaxPerSense {
				row = row[:s.cfg.MaxPerSense]
			}
			out[i] = row
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("semantic similarity: %w", err)
	}
	return out, nil
}

func sameSense(a, b embedding) bool {
	return a.Word == b.Word && a.SenseKey == b.SenseKey
}
