package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/capnteebs/parlance/pkg/lexicon"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// CreateOrGetWord returns the id of the normalized word, inserting it if new.
func CreateOrGetWord(db DBExecutor, word string) (int64, error) {
	w := lexicon.NormalizeWord(word)
	if w == "" {
		return 0, fmt.Errorf("word must be non-empty")
	}

	var id int64
	err := db.QueryRow(`INSERT INTO words (word) VALUES (?)
			  ON CONFLICT(word) DO UPDATE SET word = excluded.word
			  RETURNING id`, w).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert word: %w", err)
	}
	return id, nil
}

// CreateOrGetTag returns the id of the named tag. A tag keeps the category it
// was first created with.
func CreateOrGetTag(db DBExecutor, tag lexicon.Tag) (int64, error) {
	name := strings.TrimSpace(tag.Name)
	if name == "" {
		return 0, fmt.Errorf("tag name must be non-empty")
	}

	var id int64
	err := db.QueryRow(`INSERT INTO tags (name, category) VALUES (?, ?)
			  ON CONFLICT(name) DO UPDATE SET name = excluded.name
			  RETURNING id`, name, string(tag.Category)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert tag %s: %w", name, err)
	}
	return id, nil
}

// UpsertSense stores a sense candidate. A sense is created once per source
// key; later calls only enrich it with new examples and tags. created reports
// whether a new row was inserted.
func UpsertSense(db DBExecutor, c lexicon.SenseCandidate, maxExamples int) (id int64, created bool, err error) {
	if strings.TrimSpace(c.Key) == "" {
		return 0, false, fmt.Errorf("sense source key must be non-empty")
	}
	if strings.TrimSpace(c.Definition) == "" {
		return 0, false, fmt.Errorf("sense %s: definition must be non-empty", c.Key)
	}

	wordID, err := CreateOrGetWord(db, c.Word)
	if err != nil {
		return 0, false, err
	}

	res, err := db.Exec(`INSERT INTO senses (word_id, source_key, source_id, pos, definition, sense_index, etymology)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_key) DO NOTHING`,
		wordID, c.Key, c.Source, nullableString(c.POS), c.Definition, c.Index, nullableString(c.Etymology))
	if err != nil {
		return 0, false, fmt.Errorf("insert sense %s: %w", c.Key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		created = true
	}

	if err := db.QueryRow(`SELECT id FROM senses WHERE source_key = ?`, c.Key).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("get sense %s: %w", c.Key, err)
	}

	if err := addExamples(db, id, c.Examples, maxExamples); err != nil {
		return 0, false, err
	}
	for _, tag := range c.Tags {
		tagID, err := CreateOrGetTag(db, tag)
		if err != nil {
			return 0, false, err
		}
		if _, err := db.Exec(`INSERT OR IGNORE INTO sense_tags (sense_id, tag_id) VALUES (?, ?)`, id, tagID); err != nil {
			return 0, false, fmt.Errorf("link sense %d to tag %d: %w", id, tagID, err)
		}
	}
	return id, created, nil
}

// addExamples appends new examples while the sense holds fewer than limit.
func addExamples(db DBExecutor, senseID int64, examples []string, limit int) error {
	for _, ex := range examples {
		ex = strings.TrimSpace(ex)
		if ex == "" {
			continue
		}
		_, err := db.Exec(`
			INSERT INTO examples (sense_id, text)
			SELECT ?, ?
			WHERE (SELECT COUNT(*) FROM examples WHERE sense_id = ?) < ?
			ON CONFLICT DO NOTHING`,
			senseID, ex, senseID, limit)
		if err != nil {
			return fmt.Errorf("add example to sense %d: %w", senseID, err)
		}
	}
	return nil
}

// UpsertPhrase stores a phrase candidate once per phrase text and attaches
// its tags.
func UpsertPhrase(db DBExecutor, c lexicon.PhraseCandidate) (int64, error) {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return 0, fmt.Errorf("phrase text must be non-empty")
	}
	ptype := c.Type
	if ptype == "" {
		ptype = lexicon.PhraseOther
	}

	if _, err := db.Exec(`INSERT INTO phrases (phrase_text, phrase_type, definition, pos, source_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phrase_text) DO NOTHING`,
		text, string(ptype), c.Definition, nullableString(c.POS), c.Source); err != nil {
		return 0, fmt.Errorf("insert phrase %q: %w", text, err)
	}

	var id int64
	if err := db.QueryRow(`SELECT id FROM phrases WHERE phrase_text = ?`, text).Scan(&id); err != nil {
		return 0, fmt.Errorf("get phrase %q: %w", text, err)
	}
	for _, tag := range c.Tags {
		tagID, err := CreateOrGetTag(db, tag)
		if err != nil {
			return 0, err
		}
		if _, err := db.Exec(`INSERT OR IGNORE INTO phrase_tags (phrase_id, tag_id) VALUES (?, ?)`, id, tagID); err != nil {
			return 0, fmt.Errorf("link phrase %d to tag %d: %w", id, tagID, err)
		}
	}
	return id, nil
}

// ReplaceCandidates swaps the stored relationship candidates of one source.
// Run it inside a transaction so a refresh never leaves a source half-written.
func ReplaceCandidates(db DBExecutor, source string, cands []lexicon.RelationshipCandidate) error {
	if _, err := db.Exec(`DELETE FROM relationship_candidates WHERE source_id = ?`, source); err != nil {
		return fmt.Errorf("clear candidates for %s: %w", source, err)
	}
	for _, c := range cands {
		_, err := db.Exec(`INSERT INTO relationship_candidates
			(source_id, kind, a_word, a_key, a_pos, b_word, b_key, b_pos, score, curator_override)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			source, string(c.Kind),
			lexicon.NormalizeWord(c.A.Word), c.A.Key, c.A.POS,
			lexicon.NormalizeWord(c.B.Word), c.B.Key, c.B.POS,
			c.Score, boolToInt(c.CuratorOverride))
		if err != nil {
			return fmt.Errorf("insert candidate for %s: %w", source, err)
		}
	}
	return nil
}

// LoadCandidates returns every stored relationship candidate in insertion order.
func LoadCandidates(db DBExecutor) ([]lexicon.RelationshipCandidate, error) {
	rows, err := db.Query(`SELECT source_id, kind, a_word, a_key, a_pos, b_word, b_key, b_pos, score, curator_override
		FROM relationship_candidates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lexicon.RelationshipCandidate
	for rows.Next() {
		var c lexicon.RelationshipCandidate
		var kind string
		var override int
		if err := rows.Scan(&c.Source, &kind, &c.A.Word, &c.A.Key, &c.A.POS,
			&c.B.Word, &c.B.Key, &c.B.POS, &c.Score, &override); err != nil {
			return nil, err
		}
		c.Kind = lexicon.CandidateKind(kind)
		c.CuratorOverride = override != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountSenses returns the number of stored senses.
func CountSenses(db DBExecutor) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM senses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count senses: %w", err)
	}
	return n, nil
}

// LoadSenses returns every sense with its word and tags, ordered by id.
func LoadSenses(db DBExecutor) ([]Sense, error) {
	rows, err := db.Query(`SELECT s.id, s.word_id, w.word, s.source_key, s.source_id, s.pos, s.definition, s.sense_index, s.etymology
		FROM senses s JOIN words w ON w.id = s.word_id
		ORDER BY s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sense
	for rows.Next() {
		s, err := scanSense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := loadTagMap(db, `SELECT st.sense_id, t.name, t.category
		FROM sense_tags st JOIN tags t ON t.id = st.tag_id
		ORDER BY st.sense_id, t.name`)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
	}
	return out, nil
}

// LoadPhrases returns every phrase with its tags, ordered by id.
func LoadPhrases(db DBExecutor) ([]Phrase, error) {
	rows, err := db.Query(`SELECT id, phrase_text, phrase_type, definition, pos, source_id FROM phrases ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Phrase
	for rows.Next() {
		p, err := scanPhrase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := loadTagMap(db, `SELECT pt.phrase_id, t.name, t.category
		FROM phrase_tags pt JOIN tags t ON t.id = pt.tag_id
		ORDER BY pt.phrase_id, t.name`)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSense(r rowScanner) (Sense, error) {
	var s Sense
	var pos, etym sql.NullString
	if err := r.Scan(&s.ID, &s.WordID, &s.Word, &s.SourceKey, &s.SourceID, &pos, &s.Definition, &s.Index, &etym); err != nil {
		return Sense{}, err
	}
	if pos.Valid {
		s.POS = pos.String
	}
	if etym.Valid {
		s.Etymology = etym.String
	}
	return s, nil
}

func scanPhrase(r rowScanner) (Phrase, error) {
	var p Phrase
	var ptype string
	var pos sql.NullString
	if err := r.Scan(&p.ID, &p.Text, &ptype, &p.Definition, &pos, &p.SourceID); err != nil {
		return Phrase{}, err
	}
	p.Type = lexicon.PhraseType(ptype)
	if pos.Valid {
		p.POS = pos.String
	}
	return p, nil
}

// loadTagMap runs a (owner id, name, category) query and groups the tags.
func loadTagMap(db DBExecutor, query string, args ...interface{}) (map[int64][]lexicon.Tag, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]lexicon.Tag)
	for rows.Next() {
		var owner int64
		var name, category string
		if err := rows.Scan(&owner, &name, &category); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], lexicon.Tag{Name: name, Category: lexicon.TagCategory(category)})
	}
	return out, rows.Err()
}

// nullableString returns nil for "" else the value.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
