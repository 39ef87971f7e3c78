package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/Rrens/chat-memory/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReranker struct {
	mock.Mock
}

func (m *mockReranker) Rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate, finalK int) ([]domain.RetrievalCandidate, error) {
	args := m.Called(ctx, query, candidates, finalK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalCandidate), args.Error(1)
}

// withScores builds candidates from distinct documents and types
func withScores(scores ...float64) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, len(scores))
	types := []domain.EntityType{
		domain.EntityPost, domain.EntityCoupon, domain.EntityHighlight, domain.EntityWebsite,
		domain.EntityDocument, domain.EntityPartnership, domain.EntityTranscription, domain.EntityKnowledgeBase,
	}
	for i, s := range scores {
		out[i] = domain.RetrievalCandidate{
			ID:         fmt.Sprintf("c%d", i),
			DocumentID: fmt.Sprintf("doc%d", i),
			EntityType: types[i%len(types)],
			Similarity: s,
		}
	}
	return out
}

func similarities(cs []domain.RetrievalCandidate) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Similarity
	}
	return out
}

func ids(cs []domain.RetrievalCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestApplyDynamicThreshold(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []float64
	}{
		{"strong top filters weak", []float64{0.9, 0.6, 0.3, 0.1}, []float64{0.9, 0.6}},
		{"weak top keeps all", []float64{0.7, 0.4, 0.3}, []float64{0.7, 0.4, 0.3}},
		{"trigger is exclusive", []float64{0.8, 0.2}, []float64{0.8, 0.2}},
		{"floor is inclusive", []float64{0.95, 0.5, 0.49}, []float64{0.95, 0.5}},
		{"single", []float64{0.99}, []float64{0.99}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retrieval.ApplyDynamicThreshold(withScores(tt.scores...), 0.8, 0.5)
			assert.Equal(t, len(tt.want), len(got))
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, similarities(got))
			}
		})
	}
}

func TestApplyDynamicThreshold_KeepsTopBelowFloor(t *testing.T) {
	// with a floor above the trigger the top candidate would fail its own rule
	got := retrieval.ApplyDynamicThreshold(withScores(0.85, 0.95, 0.7), 0.8, 0.9)
	assert.Equal(t, []string{"c0", "c1"}, ids(got))
}

func TestApplyDiversity(t *testing.T) {
	t.Run("same document keeps two", func(t *testing.T) {
		cs := withScores(0.9, 0.8, 0.7, 0.6)
		for i := range cs {
			cs[i].DocumentID = "doc"
			cs[i].EntityType = domain.EntityPost
		}

		got := retrieval.ApplyDiversity(cs, 2, 3)
		assert.Equal(t, []string{"c0", "c1"}, ids(got))
	})

	t.Run("same type keeps three", func(t *testing.T) {
		cs := withScores(0.9, 0.8, 0.7, 0.6, 0.5)
		for i := range cs {
			cs[i].EntityType = domain.EntityCoupon
		}

		got := retrieval.ApplyDiversity(cs, 2, 3)
		assert.Equal(t, []string{"c0", "c1", "c2"}, ids(got))
	})

	t.Run("rejected candidates do not count", func(t *testing.T) {
		cs := []domain.RetrievalCandidate{
			{ID: "a", DocumentID: "d1", EntityType: domain.EntityPost},
			{ID: "b", DocumentID: "d1", EntityType: domain.EntityPost},
			{ID: "c", DocumentID: "d1", EntityType: domain.EntityPost},
			{ID: "d", DocumentID: "d2", EntityType: domain.EntityPost},
			{ID: "e", DocumentID: "d3", EntityType: domain.EntityPost},
			{ID: "f", DocumentID: "d4", EntityType: domain.EntityCoupon},
		}

		got := retrieval.ApplyDiversity(cs, 2, 3)
		assert.Equal(t, []string{"a", "b", "d", "f"}, ids(got))
	})

	t.Run("distinct sources and types keep all", func(t *testing.T) {
		cs := withScores(0.9, 0.8, 0.7, 0.6)
		assert.Len(t, retrieval.ApplyDiversity(cs, 2, 3), 4)
	})
}

func TestShouldSkipRerank(t *testing.T) {
	assert.True(t, retrieval.ShouldSkipRerank(0.9, 0.85))
	assert.False(t, retrieval.ShouldSkipRerank(0.85, 0.85))
	assert.False(t, retrieval.ShouldSkipRerank(0.8, 0.85))
}

func TestGuardrail_Apply(t *testing.T) {
	cfg := config.DefaultRetrievalConfig()
	ctx := context.Background()

	t.Run("confident top skips rerank", func(t *testing.T) {
		reranker := new(mockReranker)
		g := retrieval.NewGuardrail(cfg, true, reranker)

		res := g.Apply(ctx, "q", withScores(0.9, 0.6, 0.3, 0.1))

		assert.True(t, res.RerankSkipped)
		assert.False(t, res.Reranked)
		assert.Equal(t, 4, res.Found)
		assert.Equal(t, 2, res.AfterFilter)
		assert.Equal(t, []float64{0.9, 0.6}, similarities(res.Candidates))
		reranker.AssertNotCalled(t, "Rerank", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("uncertain top reranks filtered set", func(t *testing.T) {
		in := withScores(0.82, 0.7, 0.6, 0.55, 0.52, 0.51, 0.2)
		filtered := in[:6]
		reranked := []domain.RetrievalCandidate{in[2], in[0], in[1], in[3], in[4]}

		reranker := new(mockReranker)
		reranker.On("Rerank", ctx, "q", filtered, cfg.TopK).Return(reranked, nil).Once()

		g := retrieval.NewGuardrail(cfg, true, reranker)
		res := g.Apply(ctx, "q", in)

		assert.False(t, res.RerankSkipped)
		assert.True(t, res.Reranked)
		assert.Equal(t, reranked, res.Candidates)
		reranker.AssertExpectations(t)
	})

	t.Run("skip uses original top score", func(t *testing.T) {
		// diversity removes the top candidate's companions, not the decision
		in := withScores(0.9, 0.88, 0.87)
		for i := range in {
			in[i].DocumentID = "same"
		}

		g := retrieval.NewGuardrail(cfg, true, nil)
		res := g.Apply(ctx, "q", in)

		assert.True(t, res.RerankSkipped)
		assert.Equal(t, []string{"c0", "c1"}, ids(res.Candidates))
	})

	t.Run("rerank error keeps filtered order", func(t *testing.T) {
		in := withScores(0.7, 0.65, 0.6, 0.5, 0.45, 0.4, 0.3)
		reranker := new(mockReranker)
		reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("llm down"))

		g := retrieval.NewGuardrail(cfg, true, reranker)
		res := g.Apply(ctx, "q", in)

		assert.False(t, res.Reranked)
		require.Len(t, res.Candidates, cfg.TopK)
		assert.Equal(t, []float64{0.7, 0.65, 0.6, 0.5, 0.45}, similarities(res.Candidates))
	})

	t.Run("disabled applies no filtering and never skips", func(t *testing.T) {
		in := withScores(0.95, 0.3, 0.1)
		for i := range in {
			in[i].DocumentID = "same"
		}
		reranker := new(mockReranker)
		reranker.On("Rerank", ctx, "q", in, cfg.TopK).Return(in, nil).Once()

		g := retrieval.NewGuardrail(cfg, false, reranker)
		res := g.Apply(ctx, "q", in)

		assert.False(t, res.RerankSkipped)
		assert.Equal(t, 3, res.AfterFilter)
		assert.Equal(t, in, res.Candidates)
		reranker.AssertExpectations(t)
	})

	t.Run("truncates to top k", func(t *testing.T) {
		g := retrieval.NewGuardrail(cfg, false, nil)
		res := g.Apply(ctx, "q", withScores(0.5, 0.45, 0.4, 0.35, 0.3, 0.25, 0.2, 0.15))
		assert.Len(t, res.Candidates, cfg.TopK)
	})

	t.Run("empty", func(t *testing.T) {
		g := retrieval.NewGuardrail(cfg, true, nil)
		res := g.Apply(ctx, "q", nil)
		assert.Empty(t, res.Candidates)
		assert.Zero(t, res.Found)
	})
}
