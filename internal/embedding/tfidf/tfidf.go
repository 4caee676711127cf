// Package tfidf scores lexical similarity between documents with sparse
// TF-IDF vectors over content words.
package tfidf

import (
	"errors"
	"math"
	"sort"

	"anonlab/internal/textutil"
)

var (
	ErrNotFitted  = errors.New("tfidf vectorizer not fitted")
	ErrEmptyTerms = errors.New("no content words in corpus")
)

// Vector is a sparse L2-normalized term vector keyed by vocabulary index.
type Vector map[int]float64

// Vectorizer holds a vocabulary and smoothed IDF weights.
type Vectorizer struct {
	index map[string]int
	idf   []float64
}

// Fit builds the vocabulary from corpus. Terms are indexed in sorted order
// so repeated fits over the same corpus give identical vectors.
func Fit(corpus []string) (*Vectorizer, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyTerms
	}
	df := make(map[string]int)
	for _, text := range corpus {
		for term := range textutil.Set(textutil.ContentWords(text)) {
			df[term]++
		}
	}
	if len(df) == 0 {
		return nil, ErrEmptyTerms
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &Vectorizer{index: make(map[string]int, len(terms)), idf: make([]float64, len(terms))}
	n := float64(len(corpus))
	for i, term := range terms {
		v.index[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v, nil
}

// Size is the vocabulary size.
func (v *Vectorizer) Size() int {
	if v == nil {
		return 0
	}
	return len(v.idf)
}

// Transform returns the vector of text. Unknown terms are ignored, so text
// without known terms yields an empty vector.
func (v *Vectorizer) Transform(text string) (Vector, error) {
	if v == nil || v.index == nil {
		return nil, ErrNotFitted
	}
	counts := make(map[int]int)
	total := 0
	for _, term := range textutil.ContentWords(text) {
		if i, ok := v.index[term]; ok {
			counts[i]++
			total++
		}
	}
	vec := make(Vector, len(counts))
	if total == 0 {
		return vec, nil
	}
	var norm float64
	for i, c := range counts {
		w := float64(c) / float64(total) * v.idf[i]
		vec[i] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

// Cosine is the dot product of two normalized vectors.
func Cosine(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for i, w := range a {
		sum += w * b[i]
	}
	return sum
}

// Similarities fits a vectorizer over query and docs together and returns
// the cosine of query to each document.
func Similarities(query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	v, err := Fit(append([]string{query}, docs...))
	if err != nil {
		return nil, err
	}
	pv, err := v.Transform(query)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(docs))
	for i, d := range docs {
		dv, err := v.Transform(d)
		if err != nil {
			return nil, err
		}
		out[i] = Cosine(pv, dv)
	}
	return out, nil
}
