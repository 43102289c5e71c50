package adapters

import (
	"context"
	"strings"
	"testing"

	"github.com/capnteebs/parlance/pkg/lexicon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const wiktextractSample = `{"word":"cool","pos":"adj","lang_code":"en","etymology_text":"From Old English col.","senses":[{"glosses":["Having a slightly low temperature."],"examples":[{"text":"a cool evening"},"cool water"]},{"glosses":["Fashionable, hip."],"tags":["informal","US"],"synonyms":[{"word":"hip"},{"word":"groovy","tags":["dated","slang"]},{"word":"cool"}]}]}
{"word":"froid","pos":"adj","lang_code":"fr","senses":[{"glosses":["cold"]}]}
{"word":"kick the bucket","pos":"verb","lang_code":"en","senses":[{"glosses":["To die."],"tags":["idiomatic"]}]}
not json
{"pos":"noun","senses":[]}

{"word":"Rain","pos":"noun","lang_code":"en","senses":[{"glosses":["Water falling from clouds."],"tags":["countable"]},{"tags":["obsolete"]}]}
`

func TestDictionaryIngest(t *testing.T) {
	batch, err := NewDictionary(5, nil).Ingest(context.Background(), strings.NewReader(wiktextractSample))
	require.NoError(t, err)

	assert.Equal(t, lexicon.SourceDictionary, batch.Source)
	assert.Equal(t, 6, batch.Report.Processed)
	assert.Equal(t, 2, batch.Report.Malformed)
	assert.Equal(t, 2, batch.Report.Filtered)

	require.Len(t, batch.Senses, 3)
	first := batch.Senses[0]
	assert.Equal(t, SenseKey("cool", "adj", "From Old English col.", "Having a slightly low temperature."), first.Key)
	assert.True(t, strings.HasPrefix(first.Key, "wiktextract:cool:adj:"))
	assert.Equal(t, "cool", first.Word)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "From Old English col.", first.Etymology)
	assert.Equal(t, []string{"a cool evening", "cool water"}, first.Examples)

	second := batch.Senses[1]
	assert.Equal(t, SenseKey("cool", "adj", "From Old English col.", "Fashionable, hip."), second.Key)
	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, 2, second.Index)
	assert.ElementsMatch(t, []lexicon.Tag{
		{Name: "informal", Category: lexicon.CategoryRegister},
		{Name: "us", Category: lexicon.CategoryRegion},
	}, second.Tags)

	rain := batch.Senses[2]
	assert.Equal(t, "rain", rain.Word)
	assert.Empty(t, rain.Tags, "grammar labels are not stored")

	require.Len(t, batch.Relationships, 2, "self-synonym is dropped")
	hip := batch.Relationships[0]
	assert.Equal(t, lexicon.KindExplicit, hip.Kind)
	assert.Equal(t, lexicon.SenseRef{Word: "cool", Key: second.Key}, hip.A)
	assert.Equal(t, lexicon.SenseRef{Word: "hip", POS: "adj"}, hip.B)
	assert.InDelta(t, 0.90, hip.Score, 1e-9)
	assert.False(t, hip.CuratorOverride)

	groovy := batch.Relationships[1]
	assert.InDelta(t, 0.85, groovy.Score, 1e-9)
	assert.True(t, groovy.CuratorOverride)
}

func TestDictionaryKeepsHomographsApart(t *testing.T) {
	input := `{"word":"bank","pos":"noun","lang_code":"en","etymology_text":"From Italian banca.","senses":[{"glosses":["a financial institution"],"synonyms":[{"word":"lender"}]}]}
{"word":"bank","pos":"noun","lang_code":"en","etymology_text":"From Old Norse bakki.","senses":[{"glosses":["the edge of a river"],"synonyms":[{"word":"shore"}]}]}
`
	batch, err := NewDictionary(5, nil).Ingest(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, batch.Senses, 2)
	money, river := batch.Senses[0], batch.Senses[1]
	assert.Equal(t, 1, money.Index)
	assert.Equal(t, 1, river.Index)
	assert.NotEqual(t, money.Key, river.Key)

	require.Len(t, batch.Relationships, 2)
	assert.Equal(t, money.Key, batch.Relationships[0].A.Key)
	assert.Equal(t, "lender", batch.Relationships[0].B.Word)
	assert.Equal(t, river.Key, batch.Relationships[1].A.Key)
	assert.Equal(t, "shore", batch.Relationships[1].B.Word)
}

func TestSenseKeyIsStable(t *testing.T) {
	a := SenseKey("Bank", "noun", "", "the edge of a river")
	assert.Equal(t, a, SenseKey("bank", "noun", "", "the edge of a river"))
	assert.NotEqual(t, a, SenseKey("bank", "verb", "", "the edge of a river"))
	assert.NotEqual(t, a, SenseKey("bank", "noun", "From Old Norse bakki.", "the edge of a river"))
}

func TestDictionaryCapsExamples(t *testing.T) {
	line := `{"word":"run","pos":"verb","senses":[{"glosses":["move fast"],"examples":["a","b","c"]}]}`
	batch, err := NewDictionary(2, nil).Ingest(context.Background(), strings.NewReader(line))
	require.NoError(t, err)
	require.Len(t, batch.Senses, 1)
	assert.Equal(t, []string{"a", "b"}, batch.Senses[0].Examples)
}

func TestDictionaryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDictionary(5, nil).Ingest(ctx, strings.NewReader(wiktextractSample))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExplicitScore(t *testing.T) {
	tests := []struct {
		tags     []string
		want     float64
		override bool
	}{
		{nil, 0.90, false},
		{[]string{"transitive"}, 0.90, false},
		{[]string{"archaic"}, 0.75, true},
		{[]string{"informal"}, 0.85, true},
		{[]string{"figuratively"}, 0.80, true},
		{[]string{"rare", "slang", "figuratively"}, 0.60, true},
	}
	for _, tt := range tests {
		got, override := ExplicitScore(tt.tags)
		assert.InDelta(t, tt.want, got, 1e-9, "tags %v", tt.tags)
		assert.Equal(t, tt.override, override, "tags %v", tt.tags)
	}
}

func TestPhrasesIngest(t *testing.T) {
	input := `{"word":"rain cats and dogs","pos":"verb","lang_code":"en","senses":[{"glosses":["To rain very heavily."],"tags":["idiomatic","informal"]}]}
{"word":"early bird","pos":"noun","lang_code":"en","senses":[{"glosses":["One who rises early."]}]}
{"word":"a stitch in time saves nine","pos":"phrase","lang_code":"en","senses":[{"glosses":["Fix it early."],"tags":["proverb"]}]}
{"word":"by and large","pos":"adv","lang_code":"en","senses":[{"glosses":["On the whole."]}]}
{"word":"cool","pos":"adj","lang_code":"en","senses":[{"glosses":["Fashionable."]}]}
{"word":"no gloss here","pos":"noun","lang_code":"en","senses":[{}]}
`
	batch, err := NewPhrases(nil).Ingest(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, batch.Phrases, 4)
	assert.Equal(t, 2, batch.Report.Filtered)

	rain := batch.Phrases[0]
	assert.Equal(t, "rain cats and dogs", rain.Text)
	assert.Equal(t, lexicon.PhraseIdiom, rain.Type)
	assert.Equal(t, "verb", rain.POS)
	assert.Equal(t, "To rain very heavily.", rain.Definition)
	assert.Equal(t, []lexicon.Tag{{Name: "informal", Category: lexicon.CategoryRegister}}, rain.Tags)

	assert.Equal(t, lexicon.PhraseCollocation, batch.Phrases[1].Type)
	assert.Equal(t, lexicon.PhraseProverb, batch.Phrases[2].Type)
	assert.Equal(t, lexicon.PhraseOther, batch.Phrases[3].Type)
}

func TestDictionaryLogsTruncatedMalformedRecord(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	bad := "{" + strings.Repeat("x", 300)

	batch, err := NewDictionary(5, zap.New(core)).Ingest(context.Background(), strings.NewReader(bad+"\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Report.Malformed)

	entries := logs.FilterMessage("skipping malformed record").All()
	require.Len(t, entries, 1)
	record := entries[0].ContextMap()["record"].(string)
	assert.Len(t, record, 123)
	assert.True(t, strings.HasSuffix(record, "..."))
}
