// Package fusion merges ranked candidate lists from the dense and sparse
// retrievers into a single ranked list.
package fusion

import (
	"sort"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

// Method selects how candidate lists are combined.
type Method string

const (
	// ReciprocalRank needs no score calibration across sources and is the
	// default.
	ReciprocalRank Method = "rrf"
	WeightedSum    Method = "weighted_sum"
	MaxScore       Method = "max_score"
)

// DefaultRRFK is reciprocal rank fusion's conventional rank-smoothing
// constant.
const DefaultRRFK = 60

// Fuse merges dense and sparse candidate lists (each already ranked
// best-first) using method, returning a single list ranked best-first with
// non-NaN, monotonically non-increasing scores.
func Fuse(method Method, dense, sparse []models.SearchResult, rrfK int) []models.SearchResult {
	switch method {
	case WeightedSum:
		return weightedSum(dense, sparse)
	case MaxScore:
		return maxScore(dense, sparse)
	default:
		if rrfK <= 0 {
			rrfK = DefaultRRFK
		}
		return reciprocalRankFusion(dense, sparse, rrfK)
	}
}

func reciprocalRankFusion(dense, sparse []models.SearchResult, k int) []models.SearchResult {
	scores := make(map[string]float32)
	meta := make(map[string]models.SearchResult)

	apply := func(list []models.SearchResult, assign func(*models.SearchResult, float32)) {
		for rank, r := range list {
			contribution := float32(1.0 / float64(k+rank+1))
			scores[r.ID] += contribution
			m := meta[r.ID]
			m.ID = r.ID
			assign(&m, r.Score)
			if r.Metadata != nil {
				m.Metadata = r.Metadata
			}
			meta[r.ID] = m
		}
	}
	apply(dense, func(m *models.SearchResult, score float32) { m.DenseScore = &score })
	apply(sparse, func(m *models.SearchResult, score float32) { m.SparseScore = &score })

	return collect(scores, meta)
}

func weightedSum(dense, sparse []models.SearchResult) []models.SearchResult {
	denseNorm := minMaxNormalize(dense)
	sparseNorm := minMaxNormalize(sparse)

	scores := make(map[string]float32)
	meta := make(map[string]models.SearchResult)
	for id, s := range denseNorm {
		scores[id] += 0.5 * s
	}
	for id, s := range sparseNorm {
		scores[id] += 0.5 * s
	}
	for _, r := range dense {
		m := meta[r.ID]
		m.ID = r.ID
		score := r.Score
		m.DenseScore = &score
		if r.Metadata != nil {
			m.Metadata = r.Metadata
		}
		meta[r.ID] = m
	}
	for _, r := range sparse {
		m := meta[r.ID]
		m.ID = r.ID
		score := r.Score
		m.SparseScore = &score
		if r.Metadata != nil {
			m.Metadata = r.Metadata
		}
		meta[r.ID] = m
	}
	return collect(scores, meta)
}

func maxScore(dense, sparse []models.SearchResult) []models.SearchResult {
	scores := make(map[string]float32)
	meta := make(map[string]models.SearchResult)
	apply := func(list []models.SearchResult, assign func(*models.SearchResult, float32)) {
		for _, r := range list {
			if r.Score > scores[r.ID] {
				scores[r.ID] = r.Score
			}
			m := meta[r.ID]
			m.ID = r.ID
			assign(&m, r.Score)
			if r.Metadata != nil {
				m.Metadata = r.Metadata
			}
			meta[r.ID] = m
		}
	}
	apply(dense, func(m *models.SearchResult, score float32) { m.DenseScore = &score })
	apply(sparse, func(m *models.SearchResult, score float32) { m.SparseScore = &score })
	return collect(scores, meta)
}

func minMaxNormalize(list []models.SearchResult) map[string]float32 {
	out := make(map[string]float32, len(list))
	if len(list) == 0 {
		return out
	}
	min, max := list[0].Score, list[0].Score
	for _, r := range list {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	spread := max - min
	for _, r := range list {
		if spread == 0 {
			out[r.ID] = 1
			continue
		}
		out[r.ID] = (r.Score - min) / spread
	}
	return out
}

func collect(scores map[string]float32, meta map[string]models.SearchResult) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(scores))
	for id, score := range scores {
		m := meta[id]
		m.ID = id
		m.Score = score
		results = append(results, m)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
