package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/capnteebs/parlance/pkg/lexicon"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	slangMinDefinition = 10
	slangMaxDefinition = 500
	slangUnvotedScore  = 0.5
)

var (
	internetMarkers = []string{"internet", "meme", "viral", "online", "twitter",
		"tiktok", "instagram", "reddit", "social media"}
	modernMarkers = []string{"gen z", "zoomer", "tiktok", "no cap", "fr fr"}
	aaveMarkers   = []string{"aave", "black", "african american", "hood"}
	vulgarMarkers = []string{"sex", "fuck", "shit"}
)

// slangNamespace seeds the name-based uuids of slang sense keys.
var slangNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("parlance:slang"))

// SlangEntry is one community definition.
type SlangEntry struct {
	Word       string   `json:"word"`
	Definition string   `json:"definition"`
	Example    string   `json:"example"`
	ThumbsUp   int      `json:"thumbs_up"`
	ThumbsDown int      `json:"thumbs_down"`
	Synonyms   []string `json:"synonyms"`
	Tags       []string `json:"tags"`
}

// Slang reads community slang definitions, given as a JSON array or as an
// object with a "list" array.
type Slang struct {
	MaxDefinitions int
	logger         *zap.Logger
}

func NewSlang(maxDefinitions int, logger *zap.Logger) *Slang {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDefinitions <= 0 {
		maxDefinitions = 3
	}
	return &Slang{MaxDefinitions: maxDefinitions, logger: logger}
}

func (s *Slang) Source() string { return lexicon.SourceSlang }

func (s *Slang) Ingest(ctx context.Context, r io.Reader) (*lexicon.Batch, error) {
	batch := lexicon.NewBatch(lexicon.SourceSlang)

	raw, err := decodeSlangList(r)
	if err != nil {
		return nil, fmt.Errorf("read slang input: %w", err)
	}

	byWord := make(map[string][]SlangEntry)
	var order []string
	for i, item := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch.Report.Processed++

		var e SlangEntry
		if err := json.Unmarshal(item, &e); err != nil {
			skip(batch, s.logger, i+1, err)
			continue
		}
		word := lexicon.NormalizeWord(e.Word)
		if word == "" {
			skip(batch, s.logger, i+1, errMissingWord)
			continue
		}
		e.Definition = lexicon.CleanDefinition(e.Definition)
		e.Example = lexicon.CleanDefinition(e.Example)
		if !validSlang(e) {
			batch.Report.Filtered++
			continue
		}
		if _, ok := byWord[word]; !ok {
			order = append(order, word)
		}
		byWord[word] = append(byWord[word], e)
	}

	for _, word := range order {
		entries := byWord[word]
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ThumbsUp > entries[j].ThumbsUp })
		if len(entries) > s.MaxDefinitions {
			batch.Report.Filtered += len(entries) - s.MaxDefinitions
			entries = entries[:s.MaxDefinitions]
		}
		for i, e := range entries {
			s.addEntry(batch, word, i+1, e)
		}
	}

	s.logger.Info("slang parsed",
		zap.Int("processed", batch.Report.Processed),
		zap.Int("senses", len(batch.Senses)),
		zap.Int("candidates", len(batch.Relationships)),
		zap.Int("malformed", batch.Report.Malformed),
		zap.Int("filtered", batch.Report.Filtered))
	return batch, nil
}

func (s *Slang) addEntry(batch *lexicon.Batch, word string, index int, e SlangEntry) {
	key := SlangKey(word, e.Definition)

	var examples []string
	if e.Example != "" {
		examples = append(examples, e.Example)
	}
	batch.Senses = append(batch.Senses, lexicon.SenseCandidate{
		Source:     lexicon.SourceSlang,
		Key:        key,
		Word:       word,
		Definition: e.Definition,
		Index:      index,
		Examples:   examples,
		Tags:       lexicon.CategorizeTags(slangTags(e)),
	})

	score := VoteScore(e.ThumbsUp, e.ThumbsDown)
	seen := make(map[string]bool)
	for _, syn := range e.Synonyms {
		target := lexicon.NormalizeWord(syn)
		if target == "" || target == word || seen[target] {
			continue
		}
		seen[target] = true
		batch.Relationships = append(batch.Relationships, lexicon.RelationshipCandidate{
			Source: lexicon.SourceSlang,
			Kind:   lexicon.KindCommunity,
			A:      lexicon.SenseRef{Word: word, Key: key},
			B:      lexicon.SenseRef{Word: target},
			Score:  score,
		})
	}
}

// SlangKey derives a stable sense key from the word and cleaned definition,
// so re-ingesting a feed enriches rather than duplicates.
func SlangKey(word, definition string) string {
	id := uuid.NewSHA1(slangNamespace, []byte(lexicon.NormalizeWord(word)+"\x00"+definition))
	return lexicon.SourceSlang + ":" + id.String()
}

// VoteScore normalises community votes to [0,1]; unvoted entries score 0.5.
func VoteScore(up, down int) float64 {
	if up < 0 {
		up = 0
	}
	if down < 0 {
		down = 0
	}
	if up+down == 0 {
		return slangUnvotedScore
	}
	return float64(up) / float64(up+down)
}

func validSlang(e SlangEntry) bool {
	n := len([]rune(e.Definition))
	if n < slangMinDefinition || n > slangMaxDefinition {
		return false
	}
	return e.ThumbsDown <= e.ThumbsUp*2
}

// slangTags labels an entry: always slang, plus markers found in its text.
func slangTags(e SlangEntry) []string {
	def := strings.ToLower(e.Definition)
	ex := strings.ToLower(e.Example)

	tags := []string{"slang"}
	if containsAny(def, internetMarkers) || containsAny(ex, internetMarkers) {
		tags = append(tags, "internet")
	}
	if containsAny(def, modernMarkers) || containsAny(ex, modernMarkers) {
		tags = append(tags, "modern")
	}
	if containsAny(def, aaveMarkers) {
		tags = append(tags, "aave")
	}
	if e.ThumbsUp > 100 && containsAny(def, vulgarMarkers) {
		tags = append(tags, "vulgar")
	}
	return append(tags, e.Tags...)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// decodeSlangList accepts [...] or {"list": [...]}.
func decodeSlangList(r io.Reader) ([]json.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapper struct {
		List []json.RawMessage `json:"list"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.List == nil {
		return nil, errors.New(`expected a JSON array or an object with a "list" array`)
	}
	return wrapper.List, nil
}
