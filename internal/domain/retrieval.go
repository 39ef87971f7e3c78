package domain

// EntityType is the content category of a knowledge snippet
type EntityType string

const (
	EntityPost          EntityType = "post"
	EntityTranscription EntityType = "transcription"
	EntityHighlight     EntityType = "highlight"
	EntityPartnership   EntityType = "partnership"
	EntityCoupon        EntityType = "coupon"
	EntityKnowledgeBase EntityType = "knowledge_base"
	EntityDocument      EntityType = "document"
	EntityWebsite       EntityType = "website"
)

// RetrievalCandidate is one ranked snippet returned by the similarity index.
// It lives only for the duration of a single turn.
type RetrievalCandidate struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	EntityType EntityType        `json:"entity_type"`
	Similarity float64           `json:"similarity"`
	Text       string            `json:"text,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// KnowledgeChunk is a unit of content added to the similarity index
type KnowledgeChunk struct {
	ID         string            `json:"id" validate:"required"`
	DocumentID string            `json:"document_id" validate:"required"`
	EntityType EntityType        `json:"entity_type" validate:"required"`
	Text       string            `json:"text" validate:"required"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
