package resolver

import (
	"sort"
	"strings"

	"github.com/capnteebs/parlance/pkg/db"
	"github.com/capnteebs/parlance/pkg/lexicon"
)

// Inventory is an in-memory index of the stored senses, built once per run.
// It is read-only after construction.
type Inventory struct {
	byKey  map[string]*db.Sense
	byWord map[string][]*db.Sense
	words  map[string]int64
	senses []db.Sense
}

// NewInventory indexes senses by source key and word. Senses of a word
// keep creation (id) order.
func NewInventory(senses []db.Sense) *Inventory {
	sorted := make([]db.Sense, len(senses))
	copy(sorted, senses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	inv := &Inventory{
		byKey:  make(map[string]*db.Sense, len(sorted)),
		byWord: make(map[string][]*db.Sense),
		words:  make(map[string]int64),
		senses: sorted,
	}
	for i := range sorted {
		s := &sorted[i]
		inv.byKey[s.SourceKey] = s
		w := lexicon.NormalizeWord(s.Word)
		inv.byWord[w] = append(inv.byWord[w], s)
		inv.words[w] = s.WordID
	}
	return inv
}

// LoadInventory reads every stored sense.
func LoadInventory(exec db.DBExecutor) (*Inventory, error) {
	senses, err := db.LoadSenses(exec)
	if err != nil {
		return nil, err
	}
	return NewInventory(senses), nil
}

// Len is the number of senses.
func (inv *Inventory) Len() int { return len(inv.senses) }

// SensesOf returns the senses of a word in creation order.
func (inv *Inventory) SensesOf(word string) []*db.Sense {
	return inv.byWord[lexicon.NormalizeWord(word)]
}

// WordID returns the id of a word that has at least one sense.
func (inv *Inventory) WordID(word string) (int64, bool) {
	id, ok := inv.words[lexicon.NormalizeWord(word)]
	return id, ok
}

// Locate maps a candidate endpoint to a sense. A keyed reference must name a
// stored sense of the same word. A word-level reference picks the word's
// first-created sense whose part of speech matches the hint, else its first
// sense, and reports lowPrecision.
func (inv *Inventory) Locate(ref lexicon.SenseRef) (s *db.Sense, lowPrecision bool, ok bool) {
	if !ref.WordLevel() {
		s, ok = inv.byKey[ref.Key]
		if !ok {
			return nil, false, false
		}
		if ref.Word != "" && lexicon.NormalizeWord(ref.Word) != lexicon.NormalizeWord(s.Word) {
			return nil, false, false
		}
		return s, false, true
	}

	senses := inv.SensesOf(ref.Word)
	if len(senses) == 0 {
		return nil, false, false
	}
	if ref.POS != "" {
		for _, cand := range senses {
			if strings.EqualFold(cand.POS, ref.POS) {
				return cand, true, true
			}
		}
	}
	return senses[0], true, true
}
