package query

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capnteebs/parlance/pkg/db"
	"github.com/capnteebs/parlance/pkg/lexicon"
)

var (
	slangTag    = lexicon.Tag{Name: "slang", Category: lexicon.CategoryRegister}
	informalTag = lexicon.Tag{Name: "informal", Category: lexicon.CategoryRegister}
	britishTag  = lexicon.Tag{Name: "british", Category: lexicon.CategoryRegion}
)

type fixture struct {
	conn                         *sql.DB
	engine                       *Engine
	cold, stylish, hip, chill    int64
	neat                         int64
	keepCool, coolOff, lostCause int64
}

func sense(t *testing.T, conn db.DBExecutor, word, key, def string, tags ...lexicon.Tag) int64 {
	t.Helper()
	id, _, err := db.UpsertSense(conn, lexicon.SenseCandidate{
		Source: lexicon.SourceDictionary, Key: key, Word: word, POS: "adj", Definition: def, Index: 1, Tags: tags,
	}, 3)
	require.NoError(t, err)
	return id
}

func rel(a, b int64, score float64, bucket lexicon.Bucket, sources ...string) db.Relationship {
	status := db.MergeSingle
	if len(sources) > 1 {
		status = db.MergeCorroborated
	}
	return db.Relationship{SenseA: a, SenseB: b, Score: score, Bucket: bucket, Sources: sources, Status: status}
}

// newFixture seeds cool (a plain and a slang sense) with neighbours and
// phrases, and activates one run.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "query.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := &fixture{conn: conn, engine: NewEngine(conn, nil)}
	f.cold = sense(t, conn, "cool", "wiktextract:cool:adj:1", "moderately cold")
	f.stylish = sense(t, conn, "cool", "wiktextract:cool:adj:2", "fashionable, stylish", slangTag)
	f.hip = sense(t, conn, "hip", "wiktextract:hip:adj:1", "aware of the latest trends", slangTag, britishTag)
	f.chill = sense(t, conn, "chill", "wiktextract:chill:adj:1", "relaxed, easygoing", informalTag)
	f.neat = sense(t, conn, "neat", "wiktextract:neat:adj:1", "good, excellent", slangTag)

	phrase := func(text string) int64 {
		id, err := db.UpsertPhrase(conn, lexicon.PhraseCandidate{
			Source: lexicon.SourcePhrases, Text: text, Type: lexicon.PhraseIdiom, Definition: "meaning of " + text, POS: "verb",
		})
		require.NoError(t, err)
		return id
	}
	f.keepCool = phrase("keep cool")
	f.coolOff = phrase("cool off")
	f.lostCause = phrase("cool as a cucumber")

	coolWord, err := db.FindWord(conn, "cool")
	require.NoError(t, err)

	tx, err := conn.Begin()
	require.NoError(t, err)
	require.NoError(t, db.CreateRun(tx, "run-1", 4))
	for _, r := range []db.Relationship{
		rel(f.stylish, f.hip, 0.92, lexicon.BucketDirect, "ai", "explicit"),
		rel(f.stylish, f.neat, 0.92, lexicon.BucketDirect, "slang"),
		rel(f.stylish, f.chill, 0.75, lexicon.BucketRelated, "slang"),
		rel(f.cold, f.chill, 0.6, lexicon.BucketContextual, "semantic"),
	} {
		require.NoError(t, db.InsertRelationship(tx, "run-1", r))
	}
	require.NoError(t, db.InsertPhraseLink(tx, "run-1", db.PhraseLink{PhraseID: f.keepCool, WordID: coolWord.ID, SenseID: f.stylish}))
	require.NoError(t, db.InsertPhraseLink(tx, "run-1", db.PhraseLink{PhraseID: f.coolOff, WordID: coolWord.ID, Ambiguous: true}))
	require.NoError(t, db.InsertPhraseLink(tx, "run-1", db.PhraseLink{PhraseID: f.lostCause, WordID: coolWord.ID, SenseID: f.stylish}))
	require.NoError(t, db.InsertPhraseState(tx, "run-1", db.PhraseState{PhraseID: f.keepCool}))
	require.NoError(t, db.InsertPhraseState(tx, "run-1", db.PhraseState{PhraseID: f.coolOff}))
	require.NoError(t, db.InsertPhraseState(tx, "run-1", db.PhraseState{PhraseID: f.lostCause, Orphaned: true}))
	require.NoError(t, db.ActivateRun(tx, "run-1", false, 4))
	require.NoError(t, tx.Commit())
	return f
}

func senseByID(t *testing.T, res *Result, id int64) Sense {
	t.Helper()
	for _, s := range res.Senses {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("sense %d not in result", id)
	return Sense{}
}

func targetIDs(rels []Relation) []int64 {
	var ids []int64
	for _, r := range rels {
		ids = append(ids, r.Target.SenseID)
	}
	return ids
}

func TestLookupNotFound(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Lookup(context.Background(), "zyx123", Filters{})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Senses)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Lookup(context.Background(), "  COOL ", Filters{})
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "cool", res.Word)
	assert.Equal(t, "run-1", res.RunID)
	assert.Len(t, res.Senses, 2)
}

func TestLookupPartitionsAndOrders(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Lookup(context.Background(), "cool", Filters{})
	require.NoError(t, err)

	stylish := senseByID(t, res, f.stylish)
	assert.True(t, stylish.MatchesFilters)
	// equal scores fall back to target word insertion order
	assert.Equal(t, []int64{f.hip, f.neat}, targetIDs(stylish.Relationships.Direct))
	assert.Equal(t, []int64{f.chill}, targetIDs(stylish.Relationships.Related))
	assert.Empty(t, stylish.Relationships.Contextual)
	assert.Equal(t, []string{"ai", "explicit"}, stylish.Relationships.Direct[0].Sources)
	assert.Equal(t, db.MergeCorroborated, stylish.Relationships.Direct[0].Status)

	cold := senseByID(t, res, f.cold)
	assert.Equal(t, []int64{f.chill}, targetIDs(cold.Relationships.Contextual))
}

func TestLookupIsSymmetric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fromCool, err := f.engine.Lookup(ctx, "cool", Filters{})
	require.NoError(t, err)
	fromHip, err := f.engine.Lookup(ctx, "hip", Filters{})
	require.NoError(t, err)

	forward := senseByID(t, fromCool, f.stylish).Relationships.Direct[0]
	backward := senseByID(t, fromHip, f.hip).Relationships.Direct
	require.Len(t, backward, 1)
	assert.Equal(t, f.stylish, backward[0].Target.SenseID)
	assert.Equal(t, forward.Score, backward[0].Score)
	assert.Equal(t, forward.Bucket, backward[0].Bucket)
}

func TestLookupRegisterFilter(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Lookup(context.Background(), "cool", Filters{Register: []string{"Slang"}})
	require.NoError(t, err)

	cold := senseByID(t, res, f.cold)
	assert.False(t, cold.MatchesFilters)
	assert.Zero(t, cold.Relationships.Len())

	stylish := senseByID(t, res, f.stylish)
	assert.True(t, stylish.MatchesFilters)
	assert.Equal(t, []int64{f.hip, f.neat}, targetIDs(stylish.Relationships.Direct))
	assert.Empty(t, stylish.Relationships.Related, "chill is informal, not slang")
}

func TestLookupFiltersCombineAcrossCategories(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Lookup(context.Background(), "cool", Filters{
		Register: []string{"slang"},
		Region:   []string{"british"},
	})
	require.NoError(t, err)

	// cool#2 carries no region tag
	stylish := senseByID(t, res, f.stylish)
	assert.False(t, stylish.MatchesFilters)
	assert.Zero(t, stylish.Relationships.Len())

	res, err = f.engine.Lookup(context.Background(), "hip", Filters{Register: []string{"slang"}, Region: []string{"british"}})
	require.NoError(t, err)
	hip := senseByID(t, res, f.hip)
	assert.True(t, hip.MatchesFilters)
	assert.Equal(t, []int64{f.stylish}, targetIDs(hip.Relationships.Direct))
}

func TestLookupMinBucket(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Lookup(context.Background(), "cool", Filters{MinBucket: lexicon.BucketDirect})
	require.NoError(t, err)

	stylish := senseByID(t, res, f.stylish)
	assert.Len(t, stylish.Relationships.Direct, 2)
	assert.Empty(t, stylish.Relationships.Related)
	assert.Zero(t, senseByID(t, res, f.cold).Relationships.Len())

	_, err = f.engine.Lookup(context.Background(), "cool", Filters{MinBucket: "strong"})
	assert.Error(t, err)
}

func TestLookupPhrases(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Lookup(context.Background(), "cool", Filters{})
	require.NoError(t, err)

	stylish := senseByID(t, res, f.stylish)
	require.Len(t, stylish.Phrases, 1, "orphaned phrases are never attached")
	assert.Equal(t, "keep cool", stylish.Phrases[0].Text)
	assert.False(t, stylish.Phrases[0].Ambiguous)

	require.Len(t, res.Phrases, 1)
	assert.Equal(t, "cool off", res.Phrases[0].Text)
	assert.True(t, res.Phrases[0].Ambiguous)
}

func TestLookupWithoutActiveRun(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "empty.db"), 0)
	require.NoError(t, err)
	defer conn.Close()
	sense(t, conn, "cool", "wiktextract:cool:adj:1", "moderately cold")

	res, err := NewEngine(conn, nil).Lookup(context.Background(), "cool", Filters{})
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Empty(t, res.RunID)
	require.Len(t, res.Senses, 1)
	assert.Zero(t, res.Senses[0].Relationships.Len())
}

func TestStatsAndTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stats, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, db.Stats{WordCount: 4, SenseCount: 5, RelationshipCount: 4, PhraseCount: 3, TagCount: 3}, stats)

	tags, err := f.engine.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []db.TagUsage{
		{Name: "british", Category: lexicon.CategoryRegion, Count: 1},
		{Name: "informal", Category: lexicon.CategoryRegister, Count: 1},
		{Name: "slang", Category: lexicon.CategoryRegister, Count: 3},
	}, tags)
}

func openEmpty(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "order.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func activate(t *testing.T, conn *sql.DB, runID string, write func(tx *sql.Tx)) {
	t.Helper()
	tx, err := conn.Begin()
	require.NoError(t, err)
	require.NoError(t, db.CreateRun(tx, runID, 0))
	write(tx)
	require.NoError(t, db.ActivateRun(tx, runID, false, 0))
	require.NoError(t, tx.Commit())
}

func TestLookupTiesFollowWordInsertionOrder(t *testing.T) {
	conn := openEmpty(t)

	// zesty's word row precedes apt's, while apt's sense is created first.
	_, err := db.CreateOrGetWord(conn, "zesty")
	require.NoError(t, err)
	fresh := sense(t, conn, "fresh", "wiktextract:fresh:adj:a", "new and lively")
	apt := sense(t, conn, "apt", "wiktextract:apt:adj:a", "fitting, lively")
	zesty := sense(t, conn, "zesty", "wiktextract:zesty:adj:a", "piquant, lively")
	require.Less(t, apt, zesty)

	activate(t, conn, "run-order", func(tx *sql.Tx) {
		require.NoError(t, db.InsertRelationship(tx, "run-order", rel(fresh, apt, 0.8, lexicon.BucketRelated, "semantic")))
		require.NoError(t, db.InsertRelationship(tx, "run-order", rel(fresh, zesty, 0.8, lexicon.BucketRelated, "semantic")))
	})

	res, err := NewEngine(conn, nil).Lookup(context.Background(), "fresh", Filters{})
	require.NoError(t, err)
	rels := senseByID(t, res, fresh).Relationships.Related
	require.Len(t, rels, 2)
	assert.Equal(t, []string{"zesty", "apt"}, []string{rels[0].Target.Word, rels[1].Target.Word})
}

func TestLookupPhrasesOrderByTypeThenText(t *testing.T) {
	conn := openEmpty(t)
	cool := sense(t, conn, "cool", "wiktextract:cool:adj:a", "fashionable, stylish")
	word, err := db.FindWord(conn, "cool")
	require.NoError(t, err)

	var ids []int64
	for _, p := range []struct {
		text  string
		ptype lexicon.PhraseType
	}{
		{"play it cool", lexicon.PhraseIdiom},
		{"cool customer", lexicon.PhraseCollocation},
		{"keep your cool", lexicon.PhraseIdiom},
		{"cool heads prevail", lexicon.PhraseProverb},
		{"be cool", lexicon.PhraseIdiom},
	} {
		id, err := db.UpsertPhrase(conn, lexicon.PhraseCandidate{
			Source: lexicon.SourcePhrases, Text: p.text, Type: p.ptype, Definition: "meaning of " + p.text,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	activate(t, conn, "run-phrases", func(tx *sql.Tx) {
		for _, id := range ids {
			require.NoError(t, db.InsertPhraseLink(tx, "run-phrases", db.PhraseLink{PhraseID: id, WordID: word.ID, SenseID: cool}))
			require.NoError(t, db.InsertPhraseState(tx, "run-phrases", db.PhraseState{PhraseID: id}))
		}
	})

	res, err := NewEngine(conn, nil).Lookup(context.Background(), "cool", Filters{})
	require.NoError(t, err)

	var got []string
	for _, p := range senseByID(t, res, cool).Phrases {
		got = append(got, string(p.Type)+":"+p.Text)
	}
	assert.Equal(t, []string{
		"collocation:cool customer",
		"idiom:be cool",
		"idiom:keep your cool",
		"idiom:play it cool",
		"proverb:cool heads prevail",
	}, got)
}
