// Package corpus holds the session cross-reference corpus.
package corpus

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"anonlab/internal/domain"
)

// Memory is an append-only in-memory corpus. Writers are serialized and
// readers work on snapshots.
type Memory struct {
	mu   sync.RWMutex
	docs []domain.CorpusDocument
	ids  map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{ids: make(map[string]struct{})}
}

// Add appends doc. An empty ID is replaced with a fresh UUID; a duplicate
// ID is rejected.
func (m *Memory) Add(doc domain.CorpusDocument) error {
	if strings.TrimSpace(doc.Text) == "" {
		return errors.New("corpus document has no text")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[doc.ID]; ok {
		return errors.New("corpus document already present: " + doc.ID)
	}
	m.ids[doc.ID] = struct{}{}
	m.docs = append(m.docs, doc)
	return nil
}

// Snapshot returns the documents added so far. Later writes do not affect
// the returned slice.
func (m *Memory) Snapshot() []domain.CorpusDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CorpusDocument, len(m.docs))
	copy(out, m.docs)
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Match is a corpus document paired with its similarity to a query text.
type Match struct {
	Doc   domain.CorpusDocument
	Score float64
}

// Rank orders docs by score, highest first, and keeps the best topK.
func Rank(docs []domain.CorpusDocument, scores []float64, topK int) []Match {
	n := min(len(docs), len(scores))
	if topK <= 0 || topK > n {
		topK = n
	}
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	// ties keep insertion order
	slices.SortStableFunc(idxs, func(a, b int) int { return cmp.Compare(scores[b], scores[a]) })
	out := make([]Match, 0, topK)
	for _, j := range idxs[:topK] {
		out = append(out, Match{Doc: docs[j], Score: scores[j]})
	}
	return out
}
