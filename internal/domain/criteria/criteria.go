package criteria

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ID identifies one of the ten evidentiary criteria ("C1".."C10").
type ID string

const (
	C1  ID = "C1"
	C2  ID = "C2"
	C3  ID = "C3"
	C4  ID = "C4"
	C5  ID = "C5"
	C6  ID = "C6"
	C7  ID = "C7"
	C8  ID = "C8"
	C9  ID = "C9"
	C10 ID = "C10"
)

// Count is the fixed number of criteria.
const Count = 10

// Strength is the coarse verdict for a criterion.
type Strength string

const (
	StrengthStrong Strength = "Strong"
	StrengthWeak   Strength = "Weak"
	StrengthNone   Strength = "None"
)

// ParseStrength normalizes generator output; unknown values map to None.
func ParseStrength(s string) Strength {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strong":
		return StrengthStrong
	case "weak":
		return StrengthWeak
	default:
		return StrengthNone
	}
}

type Criterion struct {
	ID            ID       `yaml:"id" json:"id"`
	Key           string   `yaml:"key" json:"key"`
	Title         string   `yaml:"title" json:"title"`
	Weight        float64  `yaml:"weight" json:"weight"`
	Categories    []string `yaml:"categories" json:"categories"`
	SearchEnabled bool     `yaml:"search_enabled" json:"search_enabled"`
}

//go:embed catalog.yaml
var catalogYAML []byte

var (
	loadOnce sync.Once
	catalog  []Criterion
	byID     map[ID]Criterion
	byKey    map[string]Criterion
)

func load() {
	loadOnce.Do(func() {
		var doc struct {
			Criteria []Criterion `yaml:"criteria"`
		}
		if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
			panic(fmt.Sprintf("criteria: bad embedded catalog: %v", err))
		}
		if len(doc.Criteria) != Count {
			panic(fmt.Sprintf("criteria: catalog has %d entries, want %d", len(doc.Criteria), Count))
		}
		byID = make(map[ID]Criterion, Count)
		byKey = make(map[string]Criterion, Count)
		for _, c := range doc.Criteria {
			byID[c.ID] = c
			byKey[c.Key] = c
		}
		catalog = doc.Criteria
		sort.SliceStable(catalog, func(i, j int) bool { return catalog[i].ID.Ordinal() < catalog[j].ID.Ordinal() })
	})
}

// All returns the catalog in C1..C10 order.
func All() []Criterion {
	load()
	out := make([]Criterion, len(catalog))
	copy(out, catalog)
	return out
}

// IDs returns C1..C10 in order.
func IDs() []ID {
	load()
	out := make([]ID, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c.ID)
	}
	return out
}

func Get(id ID) (Criterion, bool) {
	load()
	c, ok := byID[id]
	return c, ok
}

// Parse accepts an id ("C3", "c3") or a catalog key ("published_material").
func Parse(raw string) (ID, error) {
	load()
	s := strings.TrimSpace(raw)
	if c, ok := byID[ID(strings.ToUpper(s))]; ok {
		return c.ID, nil
	}
	if c, ok := byKey[strings.ToLower(s)]; ok {
		return c.ID, nil
	}
	return "", fmt.Errorf("unknown criterion %q", raw)
}

func (id ID) Valid() bool {
	_, ok := Get(id)
	return ok
}

// Ordinal returns 1..10 for valid ids and 0 otherwise.
func (id ID) Ordinal() int {
	s := strings.TrimPrefix(string(id), "C")
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	if n < 1 || n > Count {
		return 0
	}
	return n
}

// ForCategory returns the criteria an extraction category supports by default.
func ForCategory(category string) []ID {
	load()
	var out []ID
	for _, c := range catalog {
		for _, cat := range c.Categories {
			if cat == category {
				out = append(out, c.ID)
			}
		}
	}
	return out
}

// SearchCriterion is the single criterion whose evaluation may use the
// scholarly search tool.
func SearchCriterion() ID {
	load()
	for _, c := range catalog {
		if c.SearchEnabled {
			return c.ID
		}
	}
	return C6
}
