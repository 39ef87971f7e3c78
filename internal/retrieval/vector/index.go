package vector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// Metadata keys stored alongside each chunk
const (
	metaDocumentID = "document_id"
	metaEntityType = "entity_type"
)

// ErrNoEmbeddingFunc is returned when no embedding provider is configured
var ErrNoEmbeddingFunc = errors.New("no embedding function configured")

// Index is a chromem-go backed similarity index with one collection per account
type Index struct {
	db          *chromem.DB
	embed       chromem.EmbeddingFunc
	collections sync.Map // collection name -> *chromem.Collection
}

// New creates an index. An empty persistPath keeps everything in memory.
func New(persistPath string, embed chromem.EmbeddingFunc) (*Index, error) {
	if embed == nil {
		return nil, ErrNoEmbeddingFunc
	}

	var (
		db  *chromem.DB
		err error
	)
	if persistPath != "" {
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	log.Info().Str("path", persistPath).Msg("Vector store initialized")

	return &Index{db: db, embed: embed}, nil
}

// EmbeddingFunc builds the embedding function for the configured provider
func EmbeddingFunc(idx config.IndexConfig, llm config.LLMConfig) chromem.EmbeddingFunc {
	switch idx.EmbeddingProvider {
	case "openai":
		if llm.OpenAI.APIKey == "" {
			return nil
		}
		model := idx.EmbeddingModel
		if model == "" {
			model = string(chromem.EmbeddingModelOpenAI3Small)
		}
		return chromem.NewEmbeddingFuncOpenAI(llm.OpenAI.APIKey, chromem.EmbeddingModelOpenAI(model))

	case "ollama":
		host := llm.Ollama.Host
		if host == "" {
			host = "http://localhost:11434"
		}
		model := idx.EmbeddingModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return chromem.NewEmbeddingFuncOllama(model, host+"/api")

	default:
		return nil
	}
}

// Search queries the account's collection. k is clamped to the collection size.
func (i *Index) Search(ctx context.Context, accountID uuid.UUID, query string, k int) ([]domain.RetrievalCandidate, error) {
	col, err := i.collection(accountID)
	if err != nil {
		return nil, err
	}

	n := min(k, col.Count())
	if n <= 0 {
		return []domain.RetrievalCandidate{}, nil
	}

	results, err := col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	candidates := make([]domain.RetrievalCandidate, 0, len(results))
	for _, r := range results {
		meta := make(map[string]string, len(r.Metadata))
		for key, v := range r.Metadata {
			if key != metaDocumentID && key != metaEntityType {
				meta[key] = v
			}
		}
		candidates = append(candidates, domain.RetrievalCandidate{
			ID:         r.ID,
			DocumentID: r.Metadata[metaDocumentID],
			EntityType: domain.EntityType(r.Metadata[metaEntityType]),
			Similarity: clampSimilarity(r.Similarity),
			Text:       r.Content,
			Metadata:   meta,
		})
	}
	return candidates, nil
}

// Upsert embeds and stores chunks. Re-adding an id replaces it.
func (i *Index) Upsert(ctx context.Context, accountID uuid.UUID, chunks []domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	col, err := i.collection(accountID)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		meta := make(map[string]string, len(c.Metadata)+2)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		meta[metaDocumentID] = c.DocumentID
		meta[metaEntityType] = string(c.EntityType)

		docs = append(docs, chromem.Document{
			ID:       c.ID,
			Content:  c.Text,
			Metadata: meta,
		})
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Count returns the number of chunks stored for an account
func (i *Index) Count(accountID uuid.UUID) (int, error) {
	col, err := i.collection(accountID)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

func (i *Index) collection(accountID uuid.UUID) (*chromem.Collection, error) {
	name := "acct_" + accountID.String()

	if col, ok := i.collections.Load(name); ok {
		return col.(*chromem.Collection), nil
	}

	col, err := i.db.GetOrCreateCollection(name, nil, i.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	actual, _ := i.collections.LoadOrStore(name, col)
	return actual.(*chromem.Collection), nil
}

// clampSimilarity maps cosine similarity onto [0,1]; opposed vectors score 0
func clampSimilarity(sim float32) float64 {
	return min(max(float64(sim), 0), 1)
}
