package db

import (
	"time"

	"github.com/capnteebs/parlance/pkg/lexicon"
)

// Word is a canonical lemma.
type Word struct {
	ID   int64
	Word string
}

// Sense is one meaning of a Word.
type Sense struct {
	ID         int64
	WordID     int64
	Word       string
	SourceKey  string
	SourceID   string
	POS        string
	Definition string
	Index      int
	Etymology  string
	Tags       []lexicon.Tag
	Examples   []string
}

// Phrase is a stored multi-word expression.
type Phrase struct {
	ID         int64
	Text       string
	Type       lexicon.PhraseType
	Definition string
	POS        string
	SourceID   string
	Tags       []lexicon.Tag
}

// MergeStatus records whether more than one source proposed a relationship.
type MergeStatus string

const (
	MergeSingle       MergeStatus = "single"
	MergeCorroborated MergeStatus = "corroborated"
)

// Relationship is one canonical edge of a resolver run. SenseA < SenseB.
type Relationship struct {
	SenseA       int64
	SenseB       int64
	Score        float64
	Bucket       lexicon.Bucket
	Sources      []string
	Status       MergeStatus
	LowPrecision bool
}

// PhraseLink binds a phrase to a component word. SenseID is zero when the
// link is ambiguous and stays at word level.
type PhraseLink struct {
	PhraseID  int64
	WordID    int64
	SenseID   int64
	Ambiguous bool
}

// PhraseState records derived per-phrase flags of a run.
type PhraseState struct {
	PhraseID int64
	Orphaned bool
}

// RunStatus is the lifecycle state of a resolver run.
type RunStatus string

const (
	RunStaging RunStatus = "staging"
	RunActive  RunStatus = "active"
	RunRetired RunStatus = "retired"
	RunFailed  RunStatus = "failed"
)

// Run is a staged rebuild of the derived relationship view.
type Run struct {
	ID                string
	Status            RunStatus
	Partial           bool
	CandidateCount    int
	RelationshipCount int
	StartedAt         time.Time
	FinishedAt        *time.Time
}

// Stats are entity counts for the active store.
type Stats struct {
	WordCount         int `json:"word_count"`
	SenseCount        int `json:"sense_count"`
	RelationshipCount int `json:"relationship_count"`
	PhraseCount       int `json:"phrase_count"`
	TagCount          int `json:"tag_count"`
}

// TagUsage is a tag with the number of senses and phrases carrying it.
type TagUsage struct {
	Name     string              `json:"name"`
	Category lexicon.TagCategory `json:"category"`
	Count    int                 `json:"count"`
}

// Edge is a relationship seen from one of its endpoints; Target is the other
// endpoint with its word and tags.
type Edge struct {
	Relationship
	Target Sense
}
