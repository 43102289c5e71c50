package adapters

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/capnteebs/parlance/pkg/lexicon"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	explicitBaseScore = 0.90
	explicitMinScore  = 0.5
	explicitMaxScore  = 1.0
)

// Dictionary reads English senses and their listed synonyms from a
// wiktextract JSON lines dump. Multi-word entries are left to Phrases.
type Dictionary struct {
	MaxExamples int
	logger      *zap.Logger
}

// NewDictionary returns a dictionary adapter keeping up to maxExamples
// examples per sense.
func NewDictionary(maxExamples int, logger *zap.Logger) *Dictionary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dictionary{MaxExamples: maxExamples, logger: logger}
}

func (d *Dictionary) Source() string { return lexicon.SourceDictionary }

func (d *Dictionary) Ingest(ctx context.Context, r io.Reader) (*lexicon.Batch, error) {
	batch := lexicon.NewBatch(lexicon.SourceDictionary)
	err := eachLine(ctx, r, batch, d.logger, func(line []byte) error {
		entry, err := decodeWiktextract(line)
		if err != nil {
			return err
		}
		if !entry.english() || lexicon.IsMultiWord(entry.Word) {
			batch.Report.Filtered++
			return nil
		}
		d.addEntry(batch, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("dictionary parsed",
		zap.Int("processed", batch.Report.Processed),
		zap.Int("senses", len(batch.Senses)),
		zap.Int("candidates", len(batch.Relationships)),
		zap.Int("malformed", batch.Report.Malformed),
		zap.Int("filtered", batch.Report.Filtered))
	return batch, nil
}

func (d *Dictionary) addEntry(batch *lexicon.Batch, e *WiktextractEntry) {
	word := lexicon.NormalizeWord(e.Word)
	pos := strings.ToLower(strings.TrimSpace(e.POS))

	for i, s := range e.Senses {
		if len(s.Glosses) == 0 || strings.TrimSpace(s.Glosses[0]) == "" {
			continue
		}
		index := i + 1
		etymology := strings.TrimSpace(e.EtymologyText)
		gloss := strings.TrimSpace(s.Glosses[0])
		key := SenseKey(word, pos, etymology, gloss)

		var examples []string
		for _, ex := range s.Examples {
			if len(examples) >= d.MaxExamples {
				break
			}
			if text := strings.TrimSpace(string(ex)); text != "" {
				examples = append(examples, text)
			}
		}

		batch.Senses = append(batch.Senses, lexicon.SenseCandidate{
			Source:     lexicon.SourceDictionary,
			Key:        key,
			Word:       word,
			POS:        pos,
			Definition: gloss,
			Index:      index,
			Etymology:  etymology,
			Examples:   examples,
			Tags:       lexicon.CategorizeTags(s.Tags),
		})

		for _, syn := range s.Synonyms {
			target := lexicon.NormalizeWord(syn.Word)
			if target == "" || target == word {
				continue
			}
			score, override := ExplicitScore(syn.Tags)
			batch.Relationships = append(batch.Relationships, lexicon.RelationshipCandidate{
				Source:          lexicon.SourceDictionary,
				Kind:            lexicon.KindExplicit,
				A:               lexicon.SenseRef{Word: word, Key: key},
				B:               lexicon.SenseRef{Word: target, POS: pos},
				Score:           score,
				CuratorOverride: override,
			})
		}
	}
}

// dictionaryNamespace seeds the name-based uuids of dictionary sense keys.
var dictionaryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("parlance:wiktextract"))

// SenseKey is the stable key of a dictionary sense. Wiktextract writes one
// line per etymology, so homographs share word, part of speech and sense
// index; the key hashes the etymology and gloss to keep them apart.
func SenseKey(word, pos, etymology, gloss string) string {
	id := uuid.NewSHA1(dictionaryNamespace,
		[]byte(lexicon.NormalizeWord(word)+"\x00"+pos+"\x00"+etymology+"\x00"+gloss))
	return fmt.Sprintf("%s:%s:%s:%s", lexicon.SourceDictionary, lexicon.NormalizeWord(word), pos, id)
}

// ExplicitScore scores a curated synonym from its qualifier tags. Any
// qualifier lowers the score from 0.90 and marks the score as curator-set.
func ExplicitScore(tags []string) (score float64, override bool) {
	score = explicitBaseScore
	if hasTag(tags, "rare", "archaic", "obsolete") {
		score -= 0.15
		override = true
	}
	if hasTag(tags, "informal", "slang") {
		score -= 0.05
		override = true
	}
	if hasTag(tags, "figuratively") {
		score -= 0.10
		override = true
	}
	return max(explicitMinScore, min(explicitMaxScore, score)), override
}
