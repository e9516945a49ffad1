// Package knowledge defines the retrieval contract agents consult for
// references, plus a small in-memory keyword store.
package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/agentcore/core"
)

// Knowledge retrieves documents relevant to a query.
type Knowledge interface {
	Search(ctx context.Context, query string, numDocuments int) ([]core.Document, error)
}

// Writer is implemented by knowledge bases that accept new documents.
type Writer interface {
	Add(ctx context.Context, docs ...core.Document) error
}

// InMemory scores documents by query term overlap. It is safe for concurrent
// use.
type InMemory struct {
	mu   sync.RWMutex
	docs []core.Document
}

var (
	_ Knowledge = (*InMemory)(nil)
	_ Writer    = (*InMemory)(nil)
)

// NewInMemory creates a store seeded with docs.
func NewInMemory(docs ...core.Document) *InMemory {
	kb := &InMemory{}
	_ = kb.Add(context.Background(), docs...)
	return kb
}

// Add implements Writer. Documents without an id get one; a document with an
// existing id replaces the stored one.
func (kb *InMemory) Add(_ context.Context, docs ...core.Document) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = core.NewID()
		}
		d.Metadata = core.CloneData(d.Metadata)
		replaced := false
		for i := range kb.docs {
			if kb.docs[i].ID == d.ID {
				kb.docs[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			kb.docs = append(kb.docs, d)
		}
	}
	return nil
}

// Len returns the number of stored documents.
func (kb *InMemory) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.docs)
}

// Search implements Knowledge. The score is the fraction of distinct query
// terms found in the document; documents scoring zero are omitted. Ties keep
// insertion order. numDocuments <= 0 returns every match.
func (kb *InMemory) Search(ctx context.Context, query string, numDocuments int) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := uniqueTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	kb.mu.RLock()
	var hits []core.Document
	for _, d := range kb.docs {
		words := make(map[string]struct{})
		for _, w := range tokenize(d.Name + " " + d.Content) {
			words[w] = struct{}{}
		}
		matched := 0
		for _, t := range terms {
			if _, ok := words[t]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hit := d
		hit.Metadata = core.CloneData(d.Metadata)
		hit.Score = float64(matched) / float64(len(terms))
		hits = append(hits, hit)
	}
	kb.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if numDocuments > 0 && len(hits) > numDocuments {
		hits = hits[:numDocuments]
	}
	return hits, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func uniqueTerms(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tokenize(s) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
