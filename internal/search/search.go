// Package search implements keyword and hybrid (keyword+vector)
// search over memory snapshots handed to it by the store. It holds no
// lock of its own: it is a pure function over already-copied records,
// matching the store's "reads produce independent copies" ownership
// rule.
package search

import (
	"sort"
	"strings"

	"github.com/hivemindhq/hivemind/internal/types"
)

// Query narrows and scores a keyword search.
type Query struct {
	Text    string
	AgentID string
	UserID  string
	Tags    []string
	Limit   int
}

// Result pairs a memory with its relevance score.
type Result struct {
	Memory *types.Memory
	Score  float64
}

// VectorScorer looks up the memories whose indexed vectors are most
// similar to a query; ids with no indexed vector are never returned.
type VectorScorer interface {
	// TopK returns up to k (id, similarity) pairs for the query text.
	TopK(query string, k int) []VectorHit
}

// VectorHit is one (memory id, similarity) pair from a vector index.
type VectorHit struct {
	ID         int64
	Similarity float64
}

// Keyword runs the always-available base search: the query is
// lowercased, a memory is a candidate when current, scope-matching,
// tag-matching, and containing the query in content or a tag;
// candidates are scored by word-overlap ratio and truncated to limit.
func Keyword(memories []*types.Memory, q Query) []Result {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	lowerQuery := strings.ToLower(q.Text)
	queryTokens := strings.Fields(lowerQuery)

	results := make([]Result, 0, len(memories))
	for _, m := range memories {
		if !candidateMatches(m, q, lowerQuery) {
			continue
		}
		results = append(results, Result{Memory: m, Score: keywordScore(m.Content, lowerQuery, queryTokens)})
	}

	sortByScoreStable(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func candidateMatches(m *types.Memory, q Query, lowerQuery string) bool {
	if m.ValidUntil != nil {
		return false
	}
	if q.AgentID != "" && m.AgentID != "" && m.AgentID != q.AgentID {
		return false
	}
	if q.UserID != "" && m.UserID != "" && m.UserID != q.UserID {
		return false
	}
	for _, tag := range q.Tags {
		if !containsTagFold(m.Tags, tag) {
			return false
		}
	}

	lowerContent := strings.ToLower(m.Content)
	if strings.Contains(lowerContent, lowerQuery) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			return true
		}
	}
	return false
}

func containsTagFold(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// keywordScore is 1.0 when the whole content equals the query,
// otherwise the fraction of whitespace-split query tokens that appear
// in the lowercased content.
func keywordScore(content, lowerQuery string, queryTokens []string) float64 {
	lowerContent := strings.ToLower(content)
	if lowerContent == lowerQuery {
		return 1.0
	}
	if len(queryTokens) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range queryTokens {
		if strings.Contains(lowerContent, tok) {
			hits++
		}
	}
	denom := len(queryTokens)
	if denom < 1 {
		denom = 1
	}
	return float64(hits) / float64(denom)
}

// sortByScoreStable sorts by score descending, preserving insertion
// order (the order memories were appended to the slice) for ties.
func sortByScoreStable(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// Hybrid blends keyword results with vector similarity when an
// embedding index is available and non-empty. The keyword result set
// is computed first; for ids present in both, score becomes
// 0.3*keyword + 0.7*vector. Vector-only ids are lifted in when their
// similarity exceeds 0.3 and they pass the same validity/scope filter.
func Hybrid(memories []*types.Memory, q Query, scorer VectorScorer) []Result {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	keywordResults := Keyword(memories, Query{
		Text:    q.Text,
		AgentID: q.AgentID,
		UserID:  q.UserID,
		Tags:    q.Tags,
		Limit:   len(memories), // unclipped, we truncate after blending
	})

	byID := make(map[int64]*types.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	vectorHits := scorer.TopK(q.Text, 2*limit)
	vectorScore := make(map[int64]float64, len(vectorHits))
	for _, h := range vectorHits {
		vectorScore[h.ID] = h.Similarity
	}

	merged := make(map[int64]Result, len(keywordResults)+len(vectorHits))
	for _, r := range keywordResults {
		score := r.Score
		if v, ok := vectorScore[r.Memory.ID]; ok {
			score = 0.3*r.Score + 0.7*v
		}
		merged[r.Memory.ID] = Result{Memory: r.Memory, Score: score}
	}

	for id, sim := range vectorScore {
		if _, already := merged[id]; already {
			continue
		}
		if sim <= 0.3 {
			continue
		}
		m, found := byID[id]
		if !found {
			continue
		}
		if m.ValidUntil != nil {
			continue
		}
		if q.AgentID != "" && m.AgentID != "" && m.AgentID != q.AgentID {
			continue
		}
		if q.UserID != "" && m.UserID != "" && m.UserID != q.UserID {
			continue
		}
		merged[id] = Result{Memory: m, Score: 0.7 * sim}
	}

	ids := make([]int64, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Result, 0, len(merged))
	for _, id := range ids {
		out = append(out, merged[id])
	}
	sortByScoreStable(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
