// Package resolver reconciles relationship candidates from every source into
// one deduplicated, scored and bucketed set of sense-to-sense edges.
package resolver

import (
	"fmt"
	"math"
	"sort"

	"github.com/capnteebs/parlance/pkg/apperrors"
	"github.com/capnteebs/parlance/pkg/db"
	"github.com/capnteebs/parlance/pkg/lexicon"
)

// Unresolved is a candidate dropped because an endpoint names no stored sense.
type Unresolved struct {
	Candidate lexicon.RelationshipCandidate
	Err       error
}

// Result is the output of one resolution pass.
type Result struct {
	Relationships []db.Relationship
	Unresolvable  []Unresolved
	SelfPairs     int
	BelowFloor    int
}

// Counts returns the number of relationships per bucket.
func (r Result) Counts() map[lexicon.Bucket]int {
	out := make(map[lexicon.Bucket]int, len(lexicon.Buckets))
	for _, b := range lexicon.Buckets {
		out[b] = 0
	}
	for _, rel := range r.Relationships {
		out[rel.Bucket]++
	}
	return out
}

type pairKey struct{ a, b int64 }

type group struct {
	score   float64
	sources map[string]bool
	// precise is set once any contribution named both endpoints by key.
	precise bool
}

// Resolve turns candidates into canonical relationships. It is a pure
// function of its inputs: the same inventory and candidates always yield the
// same slice, sorted by (SenseA, SenseB).
func Resolve(p Policy, inv *Inventory, cands []lexicon.RelationshipCandidate) Result {
	var res Result
	groups := make(map[pairKey]*group)

	for _, c := range cands {
		a, lowA, okA := inv.Locate(c.A)
		b, lowB, okB := inv.Locate(c.B)
		if !okA || !okB {
			missing := c.A
			if okA {
				missing = c.B
			}
			res.Unresolvable = append(res.Unresolvable, Unresolved{
				Candidate: c,
				Err:       fmt.Errorf("%w: %s %q key %q", apperrors.ErrUnresolvableSense, c.Source, missing.Word, missing.Key),
			})
			continue
		}
		if a.ID == b.ID {
			res.SelfPairs++
			continue
		}

		key := pairKey{min(a.ID, b.ID), max(a.ID, b.ID)}
		g, ok := groups[key]
		if !ok {
			g = &group{sources: make(map[string]bool)}
			groups[key] = g
		}
		if s := candidateScore(p, c); s > g.score {
			g.score = s
		}
		g.sources[c.Source] = true
		if !lowA && !lowB {
			g.precise = true
		}
	}

	for key, g := range groups {
		bucket := p.Bucket(g.score)
		if bucket == lexicon.BucketNone {
			res.BelowFloor++
			continue
		}
		sources := make([]string, 0, len(g.sources))
		for s := range g.sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)

		status := db.MergeSingle
		if len(sources) > 1 {
			status = db.MergeCorroborated
		}
		res.Relationships = append(res.Relationships, db.Relationship{
			SenseA:       key.a,
			SenseB:       key.b,
			Score:        g.score,
			Bucket:       bucket,
			Sources:      sources,
			Status:       status,
			LowPrecision: !g.precise,
		})
	}

	sort.Slice(res.Relationships, func(i, j int) bool {
		ri, rj := res.Relationships[i], res.Relationships[j]
		if ri.SenseA != rj.SenseA {
			return ri.SenseA < rj.SenseA
		}
		return ri.SenseB < rj.SenseB
	})
	return res
}

// candidateScore clamps a source-native confidence to [0,1] and lifts
// uncurated explicit synonyms to the floor.
func candidateScore(p Policy, c lexicon.RelationshipCandidate) float64 {
	if math.IsNaN(c.Score) {
		return 0
	}
	s := max(0, min(1, c.Score))
	if c.Kind == lexicon.KindExplicit && !c.CuratorOverride && s < p.ExplicitFloor {
		s = p.ExplicitFloor
	}
	return s
}
