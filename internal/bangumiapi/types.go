package bangumiapi

import (
	"bytes"
	"encoding/json"
)

// Subject types and categories used by the collection endpoints.
const (
	SubjectTypeBook = 1
	CategoryComic   = 1001
	SortByDate      = "date"
)

// SubjectPage is one page of the paginated subject collection.
type SubjectPage struct {
	Data   []Subject `json:"data"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// Subject represents a catalog entry (a manga work).
type Subject struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	NameCN   string   `json:"name_cn"`
	Tags     TagList  `json:"tags"`
	Infobox  Infobox  `json:"infobox"`
	Date     string   `json:"date"`
	Summary  string   `json:"summary"`
	NSFW     bool     `json:"nsfw"`
	MetaTags []string `json:"meta_tags"`
}

// Person is the summary form returned when listing a subject's contributors.
type Person struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Relation string   `json:"relation"`
	Careers  []string `json:"career"`
}

// PersonDetail is the full contributor record.
type PersonDetail struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Type    int      `json:"type"`
	Career  []string `json:"career"`
	Infobox Infobox  `json:"infobox"`
}

// Tag is a single tag attached to a subject.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TagList tolerates the tags field not being an array at all; anything
// that is not list-shaped decodes to an empty list.
type TagList []Tag

func (t *TagList) UnmarshalJSON(b []byte) error {
	*t = nil
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	var tags []Tag
	if err := json.Unmarshal(trimmed, &tags); err != nil {
		return nil
	}
	*t = tags
	return nil
}

// Infobox is the ordered key/value property list attached to subjects and
// person details.
type Infobox []InfoboxItem

type InfoboxItem struct {
	Key   string       `json:"key"`
	Value InfoboxValue `json:"value"`
}

// InfoboxEntry is one element of a list-valued infobox property.
type InfoboxEntry struct {
	K string `json:"k,omitempty"`
	V string `json:"v"`
}

type infoboxKind int

const (
	infoboxNone infoboxKind = iota
	infoboxScalar
	infoboxList
)

// InfoboxValue is a tagged union: either a scalar string or a list of
// entries. Unrecognized shapes decode to the empty value rather than
// failing, since infobox contents are user-edited and loosely structured.
type InfoboxValue struct {
	kind   infoboxKind
	scalar string
	list   []InfoboxEntry
}

func ScalarValue(s string) InfoboxValue {
	return InfoboxValue{kind: infoboxScalar, scalar: s}
}

func ListValue(entries ...InfoboxEntry) InfoboxValue {
	return InfoboxValue{kind: infoboxList, list: entries}
}

func (v InfoboxValue) IsScalar() bool { return v.kind == infoboxScalar }
func (v InfoboxValue) IsList() bool   { return v.kind == infoboxList }

// Scalar returns the scalar value, or "" when the value is not a scalar.
func (v InfoboxValue) Scalar() string {
	if v.kind != infoboxScalar {
		return ""
	}
	return v.scalar
}

// List returns the entry list, or nil when the value is not a list.
func (v InfoboxValue) List() []InfoboxEntry {
	if v.kind != infoboxList {
		return nil
	}
	return v.list
}

func (v *InfoboxValue) UnmarshalJSON(b []byte) error {
	*v = InfoboxValue{}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		*v = InfoboxValue{kind: infoboxScalar, scalar: s}
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil
		}
		entries := make([]InfoboxEntry, 0, len(raws))
		for _, raw := range raws {
			var e InfoboxEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				continue
			}
			entries = append(entries, e)
		}
		*v = InfoboxValue{kind: infoboxList, list: entries}
	case 'n', '{':
		// null and object values carry nothing we extract.
	default:
		// Numbers and booleans behave as scalars.
		*v = InfoboxValue{kind: infoboxScalar, scalar: string(trimmed)}
	}
	return nil
}

func (v InfoboxValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case infoboxScalar:
		return json.Marshal(v.scalar)
	case infoboxList:
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// SearchFilter narrows the POST search endpoints.
type SearchFilter struct {
	Careers []string `json:"career,omitempty"`
	Types   []int    `json:"type,omitempty"`
}

type SubjectSearchRequest struct {
	Keyword string        `json:"keyword,omitempty"`
	Filter  *SearchFilter `json:"filter,omitempty"`
	Sort    string        `json:"sort,omitempty"`
	NSFW    bool          `json:"nsfw,omitempty"`
}

type PersonSearchRequest struct {
	Keyword string        `json:"keyword,omitempty"`
	Filter  *SearchFilter `json:"filter,omitempty"`
}

type SubjectSearchResponse struct {
	Data   []Subject `json:"data"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

type PersonSearchResponse struct {
	Data   []PersonDetail `json:"data"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
