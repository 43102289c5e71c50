package lexicon

import (
	"fmt"
	"strings"
)

// Bucket is a named confidence tier derived from a fused score.
type Bucket string

const (
	BucketDirect     Bucket = "direct"
	BucketRelated    Bucket = "related"
	BucketContextual Bucket = "contextual"
	BucketNone       Bucket = ""
)

// Buckets lists the tiers from strongest to weakest.
var Buckets = []Bucket{BucketDirect, BucketRelated, BucketContextual}

// Rank orders buckets; a higher rank is a stronger tier.
func (b Bucket) Rank() int {
	switch b {
	case BucketDirect:
		return 3
	case BucketRelated:
		return 2
	case BucketContextual:
		return 1
	}
	return 0
}

// ParseBucket accepts "", "direct", "related" or "contextual".
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	if b == BucketNone || b.Rank() > 0 {
		return b, nil
	}
	return BucketNone, fmt.Errorf("unknown bucket %q", s)
}

// TagCategory groups tags for filtering.
type TagCategory string

const (
	CategoryRegister TagCategory = "register"
	CategoryRegion   TagCategory = "region"
	CategoryEra      TagCategory = "era"
)

// Tag is a shared label on senses and phrases.
type Tag struct {
	Name     string      `json:"name"`
	Category TagCategory `json:"category"`
}

// PhraseType classifies a multi-word expression.
type PhraseType string

const (
	PhraseIdiom       PhraseType = "idiom"
	PhraseCollocation PhraseType = "collocation"
	PhraseProverb     PhraseType = "proverb"
	PhraseOther       PhraseType = "other"
)

var (
	registerTags = map[string]bool{
		"slang": true, "informal": true, "formal": true, "colloquial": true,
		"vulgar": true, "poetic": true, "literary": true, "internet": true,
		"humorous": true, "euphemistic": true,
	}
	eraTags = map[string]bool{
		"archaic": true, "obsolete": true, "dated": true, "historical": true,
		"modern": true, "neologism": true,
	}
	regionMarkers = []string{
		"british", "uk", "us", "american", "australian", "canadian", "irish",
		"scottish", "new-zealand", "south-african", "indian", "aave",
	}
)

// CategorizeTag maps a raw source label onto the filterable taxonomy.
// Labels outside register, region and era (grammar notes, topical labels)
// return false.
func CategorizeTag(name string) (Tag, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Tag{}, false
	}
	switch {
	case registerTags[n]:
		return Tag{Name: n, Category: CategoryRegister}, true
	case eraTags[n]:
		return Tag{Name: n, Category: CategoryEra}, true
	}
	for _, r := range regionMarkers {
		if n == r || strings.HasPrefix(n, r+"-") || strings.HasSuffix(n, "-"+r) {
			return Tag{Name: n, Category: CategoryRegion}, true
		}
	}
	return Tag{}, false
}

// CategorizeTags keeps the categorisable labels, deduplicated, in input order.
func CategorizeTags(names []string) []Tag {
	var out []Tag
	seen := make(map[string]bool)
	for _, n := range names {
		tag, ok := CategorizeTag(n)
		if !ok || seen[tag.Name] {
			continue
		}
		seen[tag.Name] = true
		out = append(out, tag)
	}
	return out
}
