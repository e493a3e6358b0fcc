package titleindex

import (
	"math"
	"sort"
)

// Index is an immutable TF-IDF index over a fixed list of titles. It is safe
// for concurrent queries.
type Index struct {
	numDocs  int
	termIDs  map[string]int
	terms    []string
	idf      []float64
	postings []PostingList
}

// Build tokenizes every title and computes
//
//	w(t, d) = count(t, d) * ln(N / df(t))
//
// for each document, L2-normalized. Term ids follow sorted term order, so two
// builds over the same titles are identical.
func Build(titles []string) *Index {
	docCounts := make([]map[string]int, len(titles))
	docFreq := make(map[string]int)
	for i, title := range titles {
		counts := termCounts(title)
		docCounts[i] = counts
		for term := range counts {
			docFreq[term]++
		}
	}

	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	idx := &Index{
		numDocs:  len(titles),
		termIDs:  make(map[string]int, len(terms)),
		terms:    terms,
		idf:      make([]float64, len(terms)),
		postings: make([]PostingList, len(terms)),
	}
	n := float64(len(titles))
	for id, term := range terms {
		idx.termIDs[term] = id
		idx.idf[id] = math.Log(n / float64(docFreq[term]))
	}

	for doc, counts := range docCounts {
		vec := idx.weigh(counts)
		for _, e := range vec {
			idx.postings[e.term] = append(idx.postings[e.term], Posting{Doc: doc, Weight: e.weight})
		}
	}
	return idx
}

// entry is one non-zero component of a sparse vector.
type entry struct {
	term   int
	weight float64
}

// weigh turns raw counts into an L2-normalized sparse vector ordered by term
// id. Unknown terms and zero-idf terms are omitted; an all-zero vector is
// returned empty.
func (idx *Index) weigh(counts map[string]int) []entry {
	vec := make([]entry, 0, len(counts))
	for term, c := range counts {
		id, ok := idx.termIDs[term]
		if !ok {
			continue
		}
		w := float64(c) * idx.idf[id]
		if w == 0 {
			continue
		}
		vec = append(vec, entry{term: id, weight: w})
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].term < vec[j].term })

	var sum float64
	for _, e := range vec {
		sum += e.weight * e.weight
	}
	if sum == 0 {
		return vec[:0]
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i].weight /= norm
	}
	return vec
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return idx.numDocs }

// VocabularySize returns the number of distinct indexed terms.
func (idx *Index) VocabularySize() int { return len(idx.terms) }

// Vector returns the normalized TF-IDF vector of doc keyed by term.
func (idx *Index) Vector(doc int) map[string]float64 {
	vec := make(map[string]float64)
	for id, postings := range idx.postings {
		i := sort.Search(len(postings), func(i int) bool { return postings[i].Doc >= doc })
		if i < len(postings) && postings[i].Doc == doc {
			vec[idx.terms[id]] = postings[i].Weight
		}
	}
	return vec
}

// QueryVector vectorizes query against the closed vocabulary.
func (idx *Index) QueryVector(query string) map[string]float64 {
	vec := make(map[string]float64)
	for _, e := range idx.weigh(termCounts(query)) {
		vec[idx.terms[e.term]] = e.weight
	}
	return vec
}

// Scores returns the cosine similarity of query against every document.
// Query terms are accumulated in term-id order, which yields the same sums
// as a dense dot product over the vocabulary.
func (idx *Index) Scores(query string) []float64 {
	scores := make([]float64, idx.numDocs)
	for _, e := range idx.weigh(termCounts(query)) {
		for _, p := range idx.postings[e.term] {
			scores[p.Doc] += e.weight * p.Weight
		}
	}
	return scores
}

// Search returns the limit best-matching documents by descending cosine
// similarity; equal scores keep document order. A query with no known terms
// still returns limit zero-score hits.
func (idx *Index) Search(query string, limit int) []Hit {
	if limit <= 0 || idx.numDocs == 0 {
		return []Hit{}
	}
	return TopK(idx.Scores(query), limit)
}
