package adapters

import (
	"context"
	"io"
	"strings"

	"github.com/capnteebs/parlance/pkg/lexicon"
	"go.uber.org/zap"
)

// Phrases reads idioms, proverbs and collocations from a wiktextract dump.
type Phrases struct {
	logger *zap.Logger
}

func NewPhrases(logger *zap.Logger) *Phrases {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Phrases{logger: logger}
}

func (p *Phrases) Source() string { return lexicon.SourcePhrases }

func (p *Phrases) Ingest(ctx context.Context, r io.Reader) (*lexicon.Batch, error) {
	batch := lexicon.NewBatch(lexicon.SourcePhrases)
	err := eachLine(ctx, r, batch, p.logger, func(line []byte) error {
		entry, err := decodeWiktextract(line)
		if err != nil {
			return err
		}
		if !entry.english() || !isPhrase(entry) {
			batch.Report.Filtered++
			return nil
		}
		def := firstGloss(entry)
		if def == "" {
			batch.Report.Filtered++
			return nil
		}

		var rawTags []string
		for _, s := range entry.Senses {
			rawTags = append(rawTags, s.Tags...)
		}
		batch.Phrases = append(batch.Phrases, lexicon.PhraseCandidate{
			Source:     lexicon.SourcePhrases,
			Text:       strings.ToLower(strings.Join(strings.Fields(entry.Word), " ")),
			Type:       phraseType(entry),
			Definition: def,
			POS:        strings.ToLower(strings.TrimSpace(entry.POS)),
			Tags:       lexicon.CategorizeTags(rawTags),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("phrases parsed",
		zap.Int("processed", batch.Report.Processed),
		zap.Int("phrases", len(batch.Phrases)),
		zap.Int("malformed", batch.Report.Malformed),
		zap.Int("filtered", batch.Report.Filtered))
	return batch, nil
}

// isPhrase: the headword has a space, or any sense is tagged idiomatic.
func isPhrase(e *WiktextractEntry) bool {
	if strings.Contains(e.Word, " ") {
		return true
	}
	for _, s := range e.Senses {
		if hasTag(s.Tags, "idiomatic") {
			return true
		}
	}
	return false
}

func phraseType(e *WiktextractEntry) lexicon.PhraseType {
	for _, s := range e.Senses {
		if hasTag(s.Tags, "idiomatic") {
			return lexicon.PhraseIdiom
		}
		if hasTag(s.Tags, "proverb") {
			return lexicon.PhraseProverb
		}
	}
	switch strings.ToLower(e.POS) {
	case "noun", "verb", "adj":
		if strings.Contains(e.Word, " ") {
			return lexicon.PhraseCollocation
		}
	}
	return lexicon.PhraseOther
}

func firstGloss(e *WiktextractEntry) string {
	if len(e.Senses) == 0 || len(e.Senses[0].Glosses) == 0 {
		return ""
	}
	return strings.TrimSpace(e.Senses[0].Glosses[0])
}
