package memory

import "sort"

// Hybrid merge weights: vector similarity dominates, keyword rank breaks
// topical ties.
const (
	hybridVectorWeight  = 0.7
	hybridKeywordWeight = 0.3
)

// mergeScored combines keyword and semantic result lists into a single
// ranking. Each list's scores are normalized by its own maximum before the
// weighted sum, so backends with different score scales merge sanely.
func mergeScored(keyword, semantic []ScoredChunk, limit int) []ScoredChunk {
	if len(keyword) == 0 {
		return capResults(semantic, limit)
	}
	if len(semantic) == 0 {
		return capResults(keyword, limit)
	}

	type entry struct {
		chunk    Chunk
		keyword  float64
		semantic float64
	}
	byID := make(map[string]*entry, len(keyword)+len(semantic))

	kwMax := maxScore(keyword)
	for _, r := range keyword {
		byID[r.ID] = &entry{chunk: r.Chunk, keyword: r.Score / kwMax}
	}
	semMax := maxScore(semantic)
	for _, r := range semantic {
		if e, ok := byID[r.ID]; ok {
			e.semantic = r.Score / semMax
			continue
		}
		byID[r.ID] = &entry{chunk: r.Chunk, semantic: r.Score / semMax}
	}

	merged := make([]ScoredChunk, 0, len(byID))
	for _, e := range byID {
		merged = append(merged, ScoredChunk{
			Chunk: e.chunk,
			Score: hybridVectorWeight*e.semantic + hybridKeywordWeight*e.keyword,
		})
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return capResults(merged, limit)
}

func maxScore(results []ScoredChunk) float64 {
	max := 0.0
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	if max == 0 {
		return 1
	}
	return max
}

func capResults(results []ScoredChunk, limit int) []ScoredChunk {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
