package retrieval

import (
	"context"
	"sort"
	"time"

	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/rs/zerolog/log"
)

// ApplyDynamicThreshold drops weak candidates when the top match is strong.
// When the top similarity exceeds trigger only candidates at or above floor
// survive; the top candidate is always kept. Otherwise the list is returned
// unchanged.
func ApplyDynamicThreshold(candidates []domain.RetrievalCandidate, trigger, floor float64) []domain.RetrievalCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	top := candidates[0]
	if top.Similarity <= trigger {
		return candidates
	}

	kept := make([]domain.RetrievalCandidate, 0, len(candidates))
	for i, c := range candidates {
		if c.Similarity >= floor || i == 0 || c.ID == top.ID {
			kept = append(kept, c)
		}
	}
	return kept
}

// ApplyDiversity caps how many candidates one source document and one entity
// type may contribute, in a single pass over the existing rank order.
func ApplyDiversity(candidates []domain.RetrievalCandidate, maxPerSource, maxPerType int) []domain.RetrievalCandidate {
	perSource := make(map[string]int)
	perType := make(map[domain.EntityType]int)

	kept := make([]domain.RetrievalCandidate, 0, len(candidates))
	for _, c := range candidates {
		if perSource[c.DocumentID] >= maxPerSource || perType[c.EntityType] >= maxPerType {
			continue
		}
		perSource[c.DocumentID]++
		perType[c.EntityType]++
		kept = append(kept, c)
	}
	return kept
}

// ShouldSkipRerank reports whether the top similarity is confident enough to
// use the similarity order as-is
func ShouldSkipRerank(topSimilarity, trigger float64) bool {
	return topSimilarity > trigger
}

// Result describes what the guardrail did to one candidate list
type Result struct {
	Candidates    []domain.RetrievalCandidate
	Found         int
	AfterFilter   int
	RerankSkipped bool
	Reranked      bool
	RerankLatency time.Duration
}

// Guardrail filters similarity results before they reach the generator
type Guardrail struct {
	cfg      config.RetrievalConfig
	enabled  bool
	reranker Reranker
}

// NewGuardrail creates a guardrail. Filtering and the rerank-skip heuristic
// apply only when enabled; a nil reranker leaves similarity order in place.
func NewGuardrail(cfg config.RetrievalConfig, enabled bool, reranker Reranker) *Guardrail {
	return &Guardrail{
		cfg:      cfg,
		enabled:  enabled,
		reranker: reranker,
	}
}

// Apply runs threshold, diversity and the rerank decision, then truncates to
// the configured top-k. Rerank failures fall back to the filtered order.
func (g *Guardrail) Apply(ctx context.Context, query string, candidates []domain.RetrievalCandidate) Result {
	res := Result{Found: len(candidates)}
	if len(candidates) == 0 {
		return res
	}

	// skip is decided on the raw top score, before any filtering
	topSimilarity := candidates[0].Similarity

	filtered := candidates
	if g.enabled {
		filtered = ApplyDynamicThreshold(filtered, g.cfg.DynamicThresholdTrigger, g.cfg.DynamicThresholdFloor)
		filtered = ApplyDiversity(filtered, g.cfg.DiversityMaxPerSource, g.cfg.DiversityMaxPerType)
		res.RerankSkipped = ShouldSkipRerank(topSimilarity, g.cfg.RerankSkipTrigger)
	}
	res.AfterFilter = len(filtered)

	final := filtered
	if !res.RerankSkipped && g.reranker != nil && len(filtered) > 0 {
		start := time.Now()
		reranked, err := g.reranker.Rerank(ctx, query, filtered, g.cfg.TopK)
		res.RerankLatency = time.Since(start)
		if err != nil {
			log.Warn().Err(err).Int("candidates", len(filtered)).Msg("rerank failed, keeping similarity order")
		} else {
			final = reranked
			res.Reranked = true
		}
	}

	if !res.Reranked {
		final = sortBySimilarity(final)
	}
	if g.cfg.TopK > 0 && len(final) > g.cfg.TopK {
		final = final[:g.cfg.TopK]
	}
	res.Candidates = final

	log.Debug().
		Bool("enabled", g.enabled).
		Int("found", res.Found).
		Int("after_filter", res.AfterFilter).
		Int("final", len(final)).
		Float64("top_similarity", topSimilarity).
		Bool("rerank_skipped", res.RerankSkipped).
		Bool("reranked", res.Reranked).
		Msg("retrieval guardrail applied")

	return res
}

func sortBySimilarity(in []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}
