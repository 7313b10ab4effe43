package duplicate

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// Match is the outcome of a duplicate check. When Duplicate is false,
// Similarity still carries the maximum similarity observed, which is useful
// for diagnostics, and Matched is empty.
type Match struct {
	Duplicate  bool
	Similarity float64
	Matched    string
}

// Index holds a TF-IDF vector space over a corpus of vacancy texts and
// answers near-duplicate queries against it. An index is built for a snapshot
// of the corpus and is not safe for concurrent use.
type Index struct {
	threshold float64
	vocab     map[string]int
	idf       []float64
	texts     []string
	vectors   [][]float64
}

// NewIndex builds an index over the provided texts. The threshold must lie in
// (0, 1]. An index over an empty corpus holds no vectors and reports every
// candidate as unique.
func NewIndex(texts []string, threshold float64) (*Index, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in (0, 1], got %v", threshold)
	}

	ix := &Index{threshold: threshold}
	ix.fit(texts)
	return ix, nil
}

// Len returns the number of indexed texts.
func (ix *Index) Len() int {
	return len(ix.texts)
}

// Check projects the candidate into the existing vector space and compares it
// against every indexed text. Terms unknown to the vocabulary are ignored.
// Ties resolve to the earliest corpus entry.
func (ix *Index) Check(candidate string) Match {
	if len(ix.vectors) == 0 {
		return Match{}
	}

	vec := ix.vectorize(candidate)

	best := -1
	max := 0.0
	for i, doc := range ix.vectors {
		if sim := dot(doc, vec); sim > max {
			max = sim
			best = i
		}
	}

	if best >= 0 && max >= ix.threshold {
		return Match{Duplicate: true, Similarity: max, Matched: ix.texts[best]}
	}

	return Match{Similarity: max}
}

// Add incorporates the candidate into the live vector space unless it is a
// near-duplicate of an already indexed text. The new text is projected into
// the existing vocabulary rather than re-fitted, so its out-of-vocabulary
// terms do not become searchable until the index is rebuilt.
func (ix *Index) Add(candidate string) (bool, float64) {
	m := ix.Check(candidate)
	if m.Duplicate {
		return false, m.Similarity
	}

	if len(ix.texts) == 0 {
		ix.fit([]string{candidate})
		return true, m.Similarity
	}

	ix.texts = append(ix.texts, candidate)
	ix.vectors = append(ix.vectors, ix.vectorize(candidate))
	return true, m.Similarity
}

// fit builds the vocabulary and smoothed IDF weights from the corpus and
// vectorizes every document.
func (ix *Index) fit(texts []string) {
	df := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	ix.vocab = make(map[string]int, len(terms))
	ix.idf = make([]float64, len(terms))
	n := float64(len(texts))
	for i, term := range terms {
		ix.vocab[term] = i
		ix.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	ix.texts = append([]string(nil), texts...)
	ix.vectors = make([][]float64, len(texts))
	for i, text := range texts {
		ix.vectors[i] = ix.vectorize(text)
	}
}

// vectorize computes the L2-normalised TF-IDF vector for a text within the
// current vocabulary. Texts with no known terms map to the zero vector.
func (ix *Index) vectorize(text string) []float64 {
	vec := make([]float64, len(ix.idf))

	tf := make(map[int]int)
	total := 0
	for _, tok := range tokenize(text) {
		if idx, ok := ix.vocab[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}

	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * ix.idf[idx]
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// dot computes cosine similarity for L2-normalised vectors.
func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
