// Package clustering groups near-duplicate articles by TF-IDF cosine similarity.
package clustering

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// DefaultThreshold is the similarity above which two articles are linked.
const DefaultThreshold = 0.75

// Config is the immutable clustering configuration.
type Config struct {
	Threshold float64 `json:"threshold"`
}

// DefaultConfig returns the configuration used by the pipeline.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold}
}

// Clusterer partitions article batches into connected components of similar text.
type Clusterer struct {
	cfg Config
}

// New validates cfg and returns a Clusterer bound to it.
func New(cfg Config) (*Clusterer, error) {
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("clustering threshold must be in (0, 1), got %v", cfg.Threshold)
	}
	return &Clusterer{cfg: cfg}, nil
}

// Threshold returns the configured similarity threshold.
func (c *Clusterer) Threshold() float64 {
	return c.cfg.Threshold
}

// Cluster groups articles describing the same announcement. Clusters are ordered
// by their lowest member index and members keep batch order.
func (c *Clusterer) Cluster(articles []types.Article) []types.Cluster {
	if len(articles) == 0 {
		return nil
	}

	docs := make([]string, len(articles))
	for i, a := range articles {
		docs[i] = a.Content
	}

	components := Components(SimilarityMatrix(Vectorize(docs)), c.cfg.Threshold)
	clusters := make([]types.Cluster, 0, len(components))
	for _, members := range components {
		group := make([]types.Article, 0, len(members))
		for _, idx := range members {
			group = append(group, articles[idx])
		}
		clusters = append(clusters, types.Cluster{Articles: group})
	}
	return clusters
}

// Term is one non-zero TF-IDF weight. Index refers to the sorted vocabulary of the batch.
type Term struct {
	Index  int
	Weight float64
}

// Vector is an L2-normalized sparse TF-IDF vector with terms sorted by Index.
type Vector []Term

var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// Tokenize lower-cases text and returns word tokens of at least two characters
// with English stop words removed.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := englishStopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Vectorize builds TF-IDF vectors for docs using raw term counts and the smoothed
// inverse document frequency ln((1+n)/(1+df))+1. A document with no tokens yields
// an empty vector.
func Vectorize(docs []string) []Vector {
	n := len(docs)
	counts := make([]map[string]int, n)
	df := make(map[string]int)
	for i, doc := range docs {
		tf := make(map[string]int)
		for _, tok := range Tokenize(doc) {
			tf[tok]++
		}
		for term := range tf {
			df[term]++
		}
		counts[i] = tf
	}

	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)
	index := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		index[term] = i
		idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	vectors := make([]Vector, n)
	for i, tf := range counts {
		vec := make(Vector, 0, len(tf))
		for term, count := range tf {
			j := index[term]
			vec = append(vec, Term{Index: j, Weight: float64(count) * idf[j]})
		}
		sort.Slice(vec, func(a, b int) bool { return vec[a].Index < vec[b].Index })

		var norm float64
		for _, t := range vec {
			norm += t.Weight * t.Weight
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for k := range vec {
				vec[k].Weight /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors
}

// Cosine returns the cosine similarity of two normalized vectors. Empty vectors score 0.
func Cosine(a, b Vector) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Index == b[j].Index:
			dot += a[i].Weight * b[j].Weight
			i++
			j++
		case a[i].Index < b[j].Index:
			i++
		default:
			j++
		}
	}
	return dot
}

// SimilarityMatrix returns the symmetric pairwise cosine similarity of vectors.
func SimilarityMatrix(vectors []Vector) [][]float64 {
	n := len(vectors)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		if len(vectors[i]) > 0 {
			sim[i][i] = 1
		}
		for j := i + 1; j < n; j++ {
			s := Cosine(vectors[i], vectors[j])
			sim[i][j] = s
			sim[j][i] = s
		}
	}
	return sim
}

// Components partitions indices 0..n-1 into connected components where i and j
// are adjacent when sim[i][j] > threshold. Traversal is breadth-first, seeded from
// the lowest unvisited index. Members of each component are sorted ascending.
func Components(sim [][]float64, threshold float64) [][]int {
	n := len(sim)
	visited := make([]bool, n)
	var components [][]int

	for seed := 0; seed < n; seed++ {
		if visited[seed] {
			continue
		}
		visited[seed] = true
		queue := []int{seed}
		var members []int
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			members = append(members, node)
			for next := 0; next < n; next++ {
				if visited[next] || next == node {
					continue
				}
				if sim[node][next] > threshold {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Ints(members)
		components = append(components, members)
	}
	return components
}
