package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/capnteebs/parlance/pkg/lexicon"
)

// FindWord looks up a word by its lowercased surface form. It returns nil when
// the word is unknown.
func FindWord(db DBExecutor, term string) (*Word, error) {
	w := lexicon.NormalizeWord(term)
	if w == "" {
		return nil, nil
	}
	var out Word
	err := db.QueryRow(`SELECT id, word FROM words WHERE word = ?`, w).Scan(&out.ID, &out.Word)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find word %q: %w", w, err)
	}
	return &out, nil
}

// SensesForWord returns the word's senses in creation order with tags and
// examples attached.
func SensesForWord(db DBExecutor, wordID int64) ([]Sense, error) {
	rows, err := db.Query(`SELECT s.id, s.word_id, w.word, s.source_key, s.source_id, s.pos, s.definition, s.sense_index, s.etymology
		FROM senses s JOIN words w ON w.id = s.word_id
		WHERE s.word_id = ?
		ORDER BY s.id`, wordID)
	if err != nil {
		return nil, err
	}
	var out []Sense
	for rows.Next() {
		s, err := scanSense(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(out))
	for i, s := range out {
		ids[i] = s.ID
	}
	tags, err := TagsForSenses(db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
		if out[i].Examples, err = ExamplesForSense(db, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TagsForSenses returns the tags of each given sense, sorted by name.
func TagsForSenses(db DBExecutor, senseIDs []int64) (map[int64][]lexicon.Tag, error) {
	if len(senseIDs) == 0 {
		return map[int64][]lexicon.Tag{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(senseIDs)), ",")
	args := make([]interface{}, len(senseIDs))
	for i, id := range senseIDs {
		args[i] = id
	}
	return loadTagMap(db, `SELECT st.sense_id, t.name, t.category
		FROM sense_tags st JOIN tags t ON t.id = st.tag_id
		WHERE st.sense_id IN (`+placeholders+`)
		ORDER BY st.sense_id, t.name`, args...)
}

// ExamplesForSense returns usage examples in insertion order.
func ExamplesForSense(db DBExecutor, senseID int64) ([]string, error) {
	rows, err := db.Query(`SELECT text FROM examples WHERE sense_id = ? ORDER BY id`, senseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// EdgesForSense returns every relationship of the run that touches senseID,
// oriented so Target is the other endpoint.
func EdgesForSense(db DBExecutor, runID string, senseID int64) ([]Edge, error) {
	rows, err := db.Query(`SELECT r.sense_a_id, r.sense_b_id, r.score, r.bucket, r.source_ids, r.merge_status, r.low_precision,
			s.id, s.word_id, w.word, s.source_key, s.source_id, s.pos, s.definition, s.sense_index, s.etymology
		FROM relationships r
		JOIN senses s ON s.id = CASE WHEN r.sense_a_id = ? THEN r.sense_b_id ELSE r.sense_a_id END
		JOIN words w ON w.id = s.word_id
		WHERE r.run_id = ? AND (r.sense_a_id = ? OR r.sense_b_id = ?)`,
		senseID, runID, senseID, senseID)
	if err != nil {
		return nil, err
	}

	var out []Edge
	for rows.Next() {
		var e Edge
		var bucket, sources, status string
		var low int
		var pos, etym sql.NullString
		if err := rows.Scan(&e.SenseA, &e.SenseB, &e.Score, &bucket, &sources, &status, &low,
			&e.Target.ID, &e.Target.WordID, &e.Target.Word, &e.Target.SourceKey, &e.Target.SourceID,
			&pos, &e.Target.Definition, &e.Target.Index, &etym); err != nil {
			rows.Close()
			return nil, err
		}
		e.Bucket = lexicon.Bucket(bucket)
		e.Sources = strings.Split(sources, ",")
		e.Status = MergeStatus(status)
		e.LowPrecision = low != 0
		e.Target.POS = pos.String
		e.Target.Etymology = etym.String
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(out))
	for i, e := range out {
		ids[i] = e.Target.ID
	}
	tags, err := TagsForSenses(db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Target.Tags = tags[out[i].Target.ID]
	}
	return out, nil
}

// PhrasesForSense returns the non-orphaned phrases of the run linked to the
// sense, ordered by type then text.
func PhrasesForSense(db DBExecutor, runID string, senseID int64) ([]Phrase, error) {
	return queryPhrases(db, `SELECT p.id, p.phrase_text, p.phrase_type, p.definition, p.pos, p.source_id
		FROM phrase_links l
		JOIN phrases p ON p.id = l.phrase_id
		LEFT JOIN phrase_states ps ON ps.run_id = l.run_id AND ps.phrase_id = p.id
		WHERE l.run_id = ? AND l.sense_id = ? AND l.ambiguous = 0 AND COALESCE(ps.orphaned, 0) = 0
		ORDER BY p.phrase_type, p.phrase_text`, runID, senseID)
}

// AmbiguousPhrasesForWord returns the phrases of the run linked to the word
// at word level only, ordered by type then text.
func AmbiguousPhrasesForWord(db DBExecutor, runID string, wordID int64) ([]Phrase, error) {
	return queryPhrases(db, `SELECT p.id, p.phrase_text, p.phrase_type, p.definition, p.pos, p.source_id
		FROM phrase_links l
		JOIN phrases p ON p.id = l.phrase_id
		WHERE l.run_id = ? AND l.word_id = ? AND l.ambiguous = 1
		ORDER BY p.phrase_type, p.phrase_text`, runID, wordID)
}

func queryPhrases(db DBExecutor, query string, args ...interface{}) ([]Phrase, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	var out []Phrase
	for rows.Next() {
		p, err := scanPhrase(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		tags, err := loadTagMap(db, `SELECT pt.phrase_id, t.name, t.category
			FROM phrase_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.phrase_id = ?
			ORDER BY t.name`, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tags = tags[out[i].ID]
	}
	return out, nil
}

// GetStats counts entities; relationships are counted for runID only.
func GetStats(db DBExecutor, runID string) (Stats, error) {
	var s Stats
	err := db.QueryRow(`SELECT
			(SELECT COUNT(*) FROM words),
			(SELECT COUNT(*) FROM senses),
			(SELECT COUNT(*) FROM relationships WHERE run_id = ?),
			(SELECT COUNT(*) FROM phrases),
			(SELECT COUNT(*) FROM tags)`, runID).
		Scan(&s.WordCount, &s.SenseCount, &s.RelationshipCount, &s.PhraseCount, &s.TagCount)
	if err != nil {
		return Stats{}, fmt.Errorf("get stats: %w", err)
	}
	return s, nil
}

// ListTags returns every tag with its usage count over senses and phrases,
// ordered by category then name.
func ListTags(db DBExecutor) ([]TagUsage, error) {
	rows, err := db.Query(`SELECT t.name, t.category,
			(SELECT COUNT(*) FROM sense_tags st WHERE st.tag_id = t.id) +
			(SELECT COUNT(*) FROM phrase_tags pt WHERE pt.tag_id = t.id)
		FROM tags t
		ORDER BY t.category, t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TagUsage
	for rows.Next() {
		var u TagUsage
		var category string
		if err := rows.Scan(&u.Name, &category, &u.Count); err != nil {
			return nil, err
		}
		u.Category = lexicon.TagCategory(category)
		out = append(out, u)
	}
	return out, rows.Err()
}
