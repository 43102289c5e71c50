package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// WiktextractEntry is one JSON line of a wiktextract dump.
type WiktextractEntry struct {
	Word          string             `json:"word"`
	POS           string             `json:"pos"`
	LangCode      string             `json:"lang_code"`
	EtymologyText string             `json:"etymology_text"`
	Senses        []WiktextractSense `json:"senses"`
}

type WiktextractSense struct {
	Glosses  []string         `json:"glosses"`
	Tags     []string         `json:"tags"`
	Examples []textItem       `json:"examples"`
	Synonyms []WiktextractRef `json:"synonyms"`
}

type WiktextractRef struct {
	Word string   `json:"word"`
	Tags []string `json:"tags"`
}

// UnmarshalJSON accepts both {"word": ...} objects and bare strings.
func (r *WiktextractRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = WiktextractRef{Word: s}
		return nil
	}
	type plain WiktextractRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = WiktextractRef(p)
	return nil
}

// textItem is an example given either as {"text": ...} or a bare string.
type textItem string

func (t *textItem) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = textItem(s)
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*t = textItem(obj.Text)
	return nil
}

var errMissingWord = errors.New("entry has no word")

// decodeWiktextract parses one dump line.
func decodeWiktextract(line []byte) (*WiktextractEntry, error) {
	var e WiktextractEntry
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	e.Word = strings.TrimSpace(e.Word)
	if e.Word == "" {
		return nil, errMissingWord
	}
	return &e, nil
}

// english reports whether the entry is English; entries without a language
// code are assumed English.
func (e *WiktextractEntry) english() bool {
	return e.LangCode == "" || e.LangCode == "en"
}

func hasTag(tags []string, names ...string) bool {
	for _, t := range tags {
		for _, n := range names {
			if strings.EqualFold(t, n) {
				return true
			}
		}
	}
	return false
}
