// Package linker binds phrases to the senses of their component words.
package linker

import (
	"strings"

	"github.com/capnteebs/parlance/pkg/db"
	"github.com/capnteebs/parlance/pkg/lexicon"
	"github.com/capnteebs/parlance/pkg/resolver"
)

// Link states reported by Result.Counts.
const (
	StateLinked    = "linked"
	StateAmbiguous = "ambiguous"
	StateOrphaned  = "orphaned"
)

// Result holds the links and per-phrase states of one pass.
type Result struct {
	Links  []db.PhraseLink
	States []db.PhraseState
}

// Counts returns the number of sense links, word-level ambiguous links and
// orphaned phrases.
func (r Result) Counts() map[string]int {
	out := map[string]int{StateLinked: 0, StateAmbiguous: 0, StateOrphaned: 0}
	for _, l := range r.Links {
		if l.Ambiguous {
			out[StateAmbiguous]++
		} else {
			out[StateLinked]++
		}
	}
	for _, s := range r.States {
		if s.Orphaned {
			out[StateOrphaned]++
		}
	}
	return out
}

// Link disambiguates every phrase against the inventory. rels are the
// relationships of the same run and feed the final tie-break.
func Link(inv *resolver.Inventory, phrases []db.Phrase, rels []db.Relationship) Result {
	edges := make(map[int64]map[int64]float64)
	addEdge := func(a, b int64, score float64) {
		if edges[a] == nil {
			edges[a] = make(map[int64]float64)
		}
		edges[a][b] = score
	}
	for _, r := range rels {
		addEdge(r.SenseA, r.SenseB, r.Score)
		addEdge(r.SenseB, r.SenseA, r.Score)
	}

	var res Result
	for _, p := range phrases {
		links := linkPhrase(inv, p, edges)
		res.Links = append(res.Links, links...)
		res.States = append(res.States, db.PhraseState{PhraseID: p.ID, Orphaned: len(links) == 0})
	}
	return res
}

func linkPhrase(inv *resolver.Inventory, p db.Phrase, edges map[int64]map[int64]float64) []db.PhraseLink {
	words := lexicon.ComponentWords(p.Text)

	var links []db.PhraseLink
	for _, w := range words {
		senses := inv.SensesOf(w)
		if len(senses) == 0 {
			continue
		}
		wordID, _ := inv.WordID(w)

		var others []*db.Sense
		for _, o := range words {
			if o != w {
				others = append(others, inv.SensesOf(o)...)
			}
		}

		best := pick(senses, p, others, edges)
		if len(best) == 1 {
			links = append(links, db.PhraseLink{PhraseID: p.ID, WordID: wordID, SenseID: best[0].ID})
		} else {
			links = append(links, db.PhraseLink{PhraseID: p.ID, WordID: wordID, Ambiguous: true})
		}
	}
	return links
}

// pick narrows the candidate senses of one component word. The tie-break
// order is tag overlap with the phrase, then part-of-speech agreement, then
// aggregate relationship score to the other component words' senses. More
// than one survivor means the link stays at word level.
func pick(senses []*db.Sense, p db.Phrase, others []*db.Sense, edges map[int64]map[int64]float64) []*db.Sense {
	if len(senses) <= 1 {
		return senses
	}

	phraseTags := make(map[string]bool, len(p.Tags))
	for _, t := range p.Tags {
		phraseTags[t.Name] = true
	}
	cands := keepMax(senses, func(s *db.Sense) float64 {
		n := 0
		for _, t := range s.Tags {
			if phraseTags[t.Name] {
				n++
			}
		}
		return float64(n)
	})
	if len(cands) == 1 {
		return cands
	}

	if p.POS != "" {
		var agree []*db.Sense
		for _, s := range cands {
			if strings.EqualFold(s.POS, p.POS) {
				agree = append(agree, s)
			}
		}
		if len(agree) > 0 {
			cands = agree
		}
		if len(cands) == 1 {
			return cands
		}
	}

	return keepMax(cands, func(s *db.Sense) float64 {
		var total float64
		for _, o := range others {
			total += edges[s.ID][o.ID]
		}
		return total
	})
}

// keepMax returns the senses sharing the highest score, in input order.
func keepMax(senses []*db.Sense, score func(*db.Sense) float64) []*db.Sense {
	var out []*db.Sense
	var best float64
	for i, s := range senses {
		v := score(s)
		switch {
		case i == 0 || v > best:
			best = v
			out = []*db.Sense{s}
		case v == best:
			out = append(out, s)
		}
	}
	return out
}
