// Package catalog holds the read-only set of known diseases with their
// medicines and doctors, and the exact and approximate name lookups over it.
package catalog

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"mindcare-chatbot-backend/apperrors"
)

// FuzzyThreshold is the minimum similarity ratio accepted by FindFuzzy.
const FuzzyThreshold = 0.6

var severityPrefixes = []string{"acute ", "chronic ", "severe ", "mild "}

// Doctor is either a structured record or an opaque string kept in Raw.
type Doctor struct {
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
	Specialization string `json:"specialization,omitempty" yaml:"specialization,omitempty"`
	Hospital       string `json:"hospital,omitempty" yaml:"hospital,omitempty"`
	Raw            string `json:"raw,omitempty" yaml:"raw,omitempty"`
}

func (d Doctor) Structured() bool {
	return d.Raw == ""
}

type Disease struct {
	Name      string   `json:"name"`
	Medicines []string `json:"medicines"`
	Doctors   []Doctor `json:"doctors"`
}

// Index is immutable after construction and safe for concurrent readers.
type Index struct {
	records []Disease
	folded  []string
	byName  map[string]int
}

// NewIndex validates records and builds the lookup tables. Names must be
// non-empty and unique ignoring case.
func NewIndex(records []Disease) (*Index, error) {
	if len(records) == 0 {
		return nil, apperrors.Configuration(nil, "catalog is empty")
	}

	idx := &Index{
		records: make([]Disease, len(records)),
		folded:  make([]string, len(records)),
		byName:  make(map[string]int, len(records)),
	}
	for i, rec := range records {
		key := fold(rec.Name)
		if key == "" {
			return nil, apperrors.Configuration(nil, "catalog entry %d has no name", i)
		}
		if prev, dup := idx.byName[key]; dup {
			return nil, apperrors.Configuration(nil, "duplicate disease name %q (entries %d and %d)", rec.Name, prev, i)
		}
		rec.Name = strings.TrimSpace(rec.Name)
		idx.records[i] = rec
		idx.folded[i] = key
		idx.byName[key] = i
	}
	return idx, nil
}

// Normalize strips one leading severity qualifier and any parenthetical
// suffix. Case is preserved.
func Normalize(name string) string {
	n := strings.TrimSpace(name)
	lower := strings.ToLower(n)
	for _, prefix := range severityPrefixes {
		if strings.HasPrefix(lower, prefix) {
			n = strings.TrimSpace(n[len(prefix):])
			break
		}
	}
	if i := strings.Index(n, "("); i >= 0 {
		n = strings.TrimSpace(n[:i])
	}
	return n
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindExact returns the record whose name equals the normalized query,
// ignoring case, or nil.
func (ix *Index) FindExact(query string) *Disease {
	q := fold(Normalize(query))
	if q == "" {
		return nil
	}
	if i, ok := ix.byName[q]; ok {
		return ix.record(i)
	}
	return nil
}

// FindFuzzy tries FindExact first, then picks the catalog name with the
// highest similarity ratio to the normalized query. Ratios below
// FuzzyThreshold are rejected; equal ratios keep the earlier entry.
func (ix *Index) FindFuzzy(query string) *Disease {
	if rec := ix.FindExact(query); rec != nil {
		return rec
	}
	q := fold(Normalize(query))
	if q == "" {
		return nil
	}

	best, bestRatio := -1, 0.0
	for i, name := range ix.folded {
		ratio := Similarity(name, q)
		if ratio >= FuzzyThreshold && ratio > bestRatio {
			best, bestRatio = i, ratio
		}
	}
	if best < 0 {
		return nil
	}
	return ix.record(best)
}

// FindMentioned returns the first record, in catalog order, whose name
// appears anywhere in text.
func (ix *Index) FindMentioned(text string) *Disease {
	t := strings.ToLower(text)
	for i, name := range ix.folded {
		if strings.Contains(t, name) {
			return ix.record(i)
		}
	}
	return nil
}

// Similarity is the difflib ratio 2*M/T between two strings compared rune
// by rune.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func (ix *Index) record(i int) *Disease {
	rec := ix.records[i]
	return &rec
}

// Names returns the display names in catalog order.
func (ix *Index) Names() []string {
	names := make([]string, len(ix.records))
	for i, rec := range ix.records {
		names[i] = rec.Name
	}
	return names
}

func (ix *Index) Records() []Disease {
	out := make([]Disease, len(ix.records))
	copy(out, ix.records)
	return out
}

func (ix *Index) Len() int {
	return len(ix.records)
}
