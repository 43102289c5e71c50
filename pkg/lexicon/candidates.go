package lexicon

// Source identifiers stamped on every candidate.
const (
	SourceDictionary = "wiktextract"
	SourceSlang      = "slang"
	SourcePhrases    = "phrases"
	SourceSemantic   = "semantic"
)

// CandidateKind says how a source arrived at a relationship.
type CandidateKind string

const (
	// KindExplicit is a synonym listed by a curated dictionary.
	KindExplicit CandidateKind = "explicit"
	// KindCommunity is a synonym proposed through community votes.
	KindCommunity CandidateKind = "community"
	// KindComputed is a similarity computed from embeddings.
	KindComputed CandidateKind = "computed"
)

// SenseRef names one endpoint of a relationship candidate. Key is the
// source-native sense key; an empty Key refers to the word as a whole, and POS
// is then a hint for choosing among its senses.
type SenseRef struct {
	Word string
	Key  string
	POS  string
}

// WordLevel reports whether the reference names no specific sense.
func (r SenseRef) WordLevel() bool { return r.Key == "" }

// SenseCandidate is one meaning proposed by a source.
type SenseCandidate struct {
	Source     string
	Key        string
	Word       string
	POS        string
	Definition string
	Index      int
	Etymology  string
	Examples   []string
	Tags       []Tag
}

// PhraseCandidate is a multi-word expression proposed by a source.
type PhraseCandidate struct {
	Source     string
	Text       string
	Type       PhraseType
	Definition string
	POS        string
	Tags       []Tag
}

// RelationshipCandidate proposes that A and B can substitute for each other
// with the given source-native confidence.
type RelationshipCandidate struct {
	Source string
	Kind   CandidateKind
	A      SenseRef
	B      SenseRef
	Score  float64
	// CuratorOverride marks an explicit candidate whose score was set by
	// curator qualifiers; the explicit floor does not apply to it.
	CuratorOverride bool
}

// Report counts what an adapter did with its raw records.
type Report struct {
	Source    string
	Processed int
	Malformed int
	Filtered  int
}

// Batch is everything one adapter produced from one raw input.
type Batch struct {
	Source        string
	Senses        []SenseCandidate
	Phrases       []PhraseCandidate
	Relationships []RelationshipCandidate
	Report        Report
}

// NewBatch returns an empty batch stamped with source.
func NewBatch(source string) *Batch {
	return &Batch{Source: source, Report: Report{Source: source}}
}
