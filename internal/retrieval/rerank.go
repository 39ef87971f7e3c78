package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	rerankPassageChars = 300
	missingScore       = 5.0
)

// Generator sends a single prompt to a language model
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMReranker scores candidates 0-10 with a language model and blends the
// score with the original similarity
type LLMReranker struct {
	generator        Generator
	similarityWeight float64
	scoreWeight      float64
}

// NewLLMReranker creates a reranker with the given blend weights
func NewLLMReranker(generator Generator, similarityWeight, scoreWeight float64) *LLMReranker {
	return &LLMReranker{
		generator:        generator,
		similarityWeight: similarityWeight,
		scoreWeight:      scoreWeight,
	}
}

var scoreArrayPattern = regexp.MustCompile(`(?s)\[.*?\]`)

// Rerank returns at most finalK candidates ordered by blended score. Lists
// that already fit finalK pass through untouched. Unparseable model output
// counts every passage as a neutral score.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate, finalK int) ([]domain.RetrievalCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if finalK <= 0 || len(candidates) <= finalK {
		return candidates, nil
	}

	content, err := r.generator.Generate(ctx, BuildRerankPrompt(query, candidates))
	if err != nil {
		return nil, fmt.Errorf("failed to score candidates: %w", err)
	}

	scores, err := ParseScores(content)
	if err != nil {
		log.Warn().Err(err).Str("content", content).Msg("failed to parse rerank scores, using similarity only")
	}

	type scored struct {
		c     domain.RetrievalCandidate
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		s := missingScore
		if i < len(scores) {
			s = scores[i]
		}
		ranked[i] = scored{c: c, score: r.similarityWeight*c.Similarity + r.scoreWeight*s/10}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]domain.RetrievalCandidate, 0, finalK)
	for _, s := range ranked[:finalK] {
		out = append(out, s.c)
	}

	log.Debug().
		Int("candidates", len(candidates)).
		Int("final", len(out)).
		Float64("top_score", ranked[0].score).
		Float64("bottom_score", ranked[finalK-1].score).
		Msg("rerank complete")

	return out, nil
}

// BuildRerankPrompt renders the scoring instruction, query and numbered passages
func BuildRerankPrompt(query string, candidates []domain.RetrievalCandidate) string {
	var sb strings.Builder
	sb.WriteString("You are a relevance scorer. Given a user query and a list of text passages, rate each passage's relevance to the query on a scale of 0-10 (10 = perfectly relevant, 0 = completely irrelevant).\n")
	sb.WriteString("Respond ONLY with a JSON array of scores in order, like: [8, 3, 9, 1, 5]\n")
	sb.WriteString("No explanations, just the array.\n\n")
	fmt.Fprintf(&sb, "Query: %q\n\nPassages:\n", query)

	for i, c := range candidates {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		text := c.Text
		if utf8.RuneCountInString(text) > rerankPassageChars {
			text = string([]rune(text)[:rerankPassageChars])
		}
		fmt.Fprintf(&sb, "[%d] %s", i, text)
	}

	sb.WriteString("\n\nRate each passage (0-10):")
	return sb.String()
}

// ParseScores extracts the first JSON number array from model output
func ParseScores(content string) ([]float64, error) {
	match := scoreArrayPattern.FindString(content)
	if match == "" {
		return nil, fmt.Errorf("no score array in response")
	}

	var scores []float64
	if err := json.Unmarshal([]byte(match), &scores); err != nil {
		return nil, fmt.Errorf("failed to decode scores: %w", err)
	}
	return scores, nil
}
