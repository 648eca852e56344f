// Package authors resolves artist names against a bundled reference
// dataset, case-insensitively and by any known alias. It is a standalone
// lookup facility with no dependency on the harvest pipeline.
package authors

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

//go:embed data/authors.json
var bundledAuthors []byte

// Author is one reference record: a canonical name plus its known aliases.
type Author struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Repository indexes authors by normalized name and alias.
type Repository struct {
	authors []Author
	byName  map[string]*Author
	allKeys []string
}

// NewRepository builds the index over the bundled dataset.
func NewRepository() (*Repository, error) {
	return newFromJSON(bundledAuthors)
}

// NewRepositoryFromFile builds the index over an external dataset file with
// the same shape as the bundled one.
func NewRepositoryFromFile(path string) (*Repository, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authors file %s: %w", path, err)
	}
	return newFromJSON(b)
}

func newFromJSON(b []byte) (*Repository, error) {
	var list []Author
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("parse authors dataset: %w", err)
	}

	r := &Repository{
		authors: list,
		byName:  make(map[string]*Author),
	}
	for i := range r.authors {
		a := &r.authors[i]
		r.index(a.Name, a)
		for _, alias := range a.Aliases {
			r.index(alias, a)
		}
	}
	return r, nil
}

func (r *Repository) index(name string, a *Author) {
	key := normalizeName(name)
	if key == "" {
		return
	}
	if _, exists := r.byName[key]; !exists {
		r.byName[key] = a
		r.allKeys = append(r.allKeys, key)
	}
}

// FindByName resolves a name or alias, case-insensitively.
func (r *Repository) FindByName(name string) (*Author, bool) {
	a, ok := r.byName[normalizeName(name)]
	return a, ok
}

// Search resolves a name exactly first, then falls back to the closest
// fuzzy match within a small edit distance.
func (r *Repository) Search(name string) (*Author, bool) {
	if a, ok := r.FindByName(name); ok {
		return a, true
	}

	key := normalizeName(name)
	if key == "" {
		return nil, false
	}
	ranks := fuzzy.RankFindNormalizedFold(key, r.allKeys)
	if len(ranks) == 0 {
		return nil, false
	}
	best := ranks[0]
	for _, rk := range ranks[1:] {
		if rk.Distance < best.Distance {
			best = rk
		}
	}
	if best.Distance > distanceThreshold(len(key)) {
		return nil, false
	}
	return r.byName[best.Target], true
}

// All returns every reference record.
func (r *Repository) All() []Author {
	return r.authors
}

// distanceThreshold caps the acceptable edit distance at ~20% of length.
func distanceThreshold(n int) int {
	th := n / 5
	if th < 1 {
		return 1
	}
	if th > 3 {
		return 3
	}
	return th
}
