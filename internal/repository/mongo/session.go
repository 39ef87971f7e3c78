package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sessionDoc struct {
	ID                  string    `bson:"_id"`
	AccountID           string    `bson:"account_id"`
	Title               string    `bson:"title"`
	MessageCount        int       `bson:"message_count"`
	RollingSummary      string    `bson:"rolling_summary"`
	SummaryMessageCount int       `bson:"summary_message_count"`
	CreatedAt           time.Time `bson:"created_at"`
	UpdatedAt           time.Time `bson:"updated_at"`
}

func (d sessionDoc) toDomain() (*domain.ChatSession, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", d.ID, err)
	}
	accountID, err := uuid.Parse(d.AccountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", d.AccountID, err)
	}
	return &domain.ChatSession{
		ID:                  id,
		AccountID:           accountID,
		Title:               d.Title,
		MessageCount:        d.MessageCount,
		RollingSummary:      d.RollingSummary,
		SummaryMessageCount: d.SummaryMessageCount,
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}, nil
}

// SessionRepository implements domain.SessionRepository on MongoDB
type SessionRepository struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	_, err := r.sessions.InsertOne(ctx, sessionDoc{
		ID:        session.ID.String(),
		AccountID: session.AccountID.String(),
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	var doc sessionDoc
	err := r.sessions.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return doc.toDomain()
}

func (r *SessionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]domain.ChatSession, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cur, err := r.sessions.Find(ctx, bson.M{"account_id": accountID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cur.Close(ctx)

	var docs []sessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	sessions := make([]domain.ChatSession, 0, len(docs))
	for _, d := range docs {
		s, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, nil
}

func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID, title string, at time.Time) error {
	// Pipeline update so the title is only set when still empty
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"updated_at": at,
			"title": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$title", ""}}, bson.M{"$literal": title}, "$title",
			}},
		}}},
	}

	res, err := r.sessions.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.sessions.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrSessionNotFound
	}

	if _, err := r.messages.DeleteMany(ctx, bson.M{"session_id": id.String()}); err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}
	return nil
}

func (r *SessionRepository) LoadSummary(ctx context.Context, id uuid.UUID) (string, error) {
	var doc struct {
		RollingSummary string `bson:"rolling_summary"`
	}
	opts := options.FindOne().SetProjection(bson.M{"rolling_summary": 1})

	err := r.sessions.FindOne(ctx, bson.M{"_id": id.String()}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to load summary: %w", err)
	}
	return doc.RollingSummary, nil
}

func (r *SessionRepository) SaveSummary(ctx context.Context, id uuid.UUID, summary string, atMessageCount int) error {
	filter := bson.M{
		"_id":                   id.String(),
		"summary_message_count": bson.M{"$lte": atMessageCount},
	}
	update := bson.M{"$set": bson.M{
		"rolling_summary":       summary,
		"summary_message_count": atMessageCount,
	}}

	if _, err := r.sessions.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}
