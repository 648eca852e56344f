// Package extract turns raw API records into the flat records persisted by
// the harvest. All functions are pure: no I/O, deterministic for a given
// input, and tolerant of malformed infobox entries.
package extract

import (
	"strings"

	"github.com/amberdev/bangumi-harvest/internal/bangumiapi"
)

// Infobox keys carrying localized names.
const (
	keyChineseName = "简体中文名"
	keyAliases     = "别名"
)

// Relation/career markers identifying a contributor as an author.
const (
	relationAuthor = "作者"
	careerMangaka  = "mangaka"
)

// PersonRecord is the persisted form of one author.
type PersonRecord struct {
	OriginalName string   `json:"originalName"`
	ChineseName  *string  `json:"chineseName"`
	Aliases      []string `json:"aliases"`
	ID           int      `json:"id"`
}

// MangaRecord is the persisted form of one manga work. AuthorNames and
// AuthorIDs are parallel: AuthorNames[i] belongs to AuthorIDs[i].
type MangaRecord struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	NameCN      string   `json:"name_cn"`
	AuthorNames []string `json:"authorNames"`
	AuthorIDs   []int    `json:"authorIds"`
	Tags        []string `json:"tags"`
	Date        string   `json:"date"`
	NSFW        bool     `json:"nsfw"`
	Aliases     []string `json:"aliases"`
	MetaTags    []string `json:"meta_tags"`
}

// NewPersonRecord builds the save record for one person detail.
func NewPersonRecord(detail *bangumiapi.PersonDetail) PersonRecord {
	return PersonRecord{
		OriginalName: detail.Name,
		ChineseName:  chineseName(detail.Infobox),
		Aliases:      aliases(detail.Infobox),
		ID:           detail.ID,
	}
}

// NewMangaRecord builds the save record for one subject and the author list
// kept for it, preserving the order in which authors were supplied.
func NewMangaRecord(subject *bangumiapi.Subject, authors []bangumiapi.Person) MangaRecord {
	names := make([]string, 0, len(authors))
	ids := make([]int, 0, len(authors))
	for _, a := range authors {
		names = append(names, a.Name)
		ids = append(ids, a.ID)
	}

	tags := make([]string, 0, len(subject.Tags))
	for _, t := range subject.Tags {
		tags = append(tags, t.Name)
	}

	metaTags := subject.MetaTags
	if metaTags == nil {
		metaTags = []string{}
	}

	return MangaRecord{
		ID:          subject.ID,
		Name:        subject.Name,
		NameCN:      subject.NameCN,
		AuthorNames: names,
		AuthorIDs:   ids,
		Tags:        tags,
		Date:        subject.Date,
		NSFW:        subject.NSFW,
		Aliases:     aliases(subject.Infobox),
		MetaTags:    metaTags,
	}
}

// FilterAuthors keeps the persons credited as authors: relation 作者, or any
// career tag containing "mangaka".
func FilterAuthors(persons []bangumiapi.Person) []bangumiapi.Person {
	authors := make([]bangumiapi.Person, 0, len(persons))
	for _, p := range persons {
		if isAuthor(p) {
			authors = append(authors, p)
		}
	}
	return authors
}

func isAuthor(p bangumiapi.Person) bool {
	if p.Relation == relationAuthor {
		return true
	}
	for _, c := range p.Careers {
		if strings.Contains(c, careerMangaka) {
			return true
		}
	}
	return false
}

// chineseName returns the scalar value of the first 简体中文名 entry, or nil
// when absent or not a scalar.
func chineseName(box bangumiapi.Infobox) *string {
	for _, item := range box {
		if item.Key != keyChineseName {
			continue
		}
		if item.Value.IsScalar() {
			s := item.Value.Scalar()
			return &s
		}
		return nil
	}
	return nil
}

// aliases flattens every list-valued 别名 entry, dropping blanks and
// preserving order.
func aliases(box bangumiapi.Infobox) []string {
	out := []string{}
	for _, item := range box {
		if item.Key != keyAliases || !item.Value.IsList() {
			continue
		}
		for _, e := range item.Value.List() {
			if strings.TrimSpace(e.V) == "" {
				continue
			}
			out = append(out, e.V)
		}
	}
	return out
}
