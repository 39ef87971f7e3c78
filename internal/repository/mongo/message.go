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

type messageDoc struct {
	ID        string    `bson:"_id"`
	SessionID string    `bson:"session_id"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	Sequence  int       `bson:"sequence"`
	CreatedAt time.Time `bson:"created_at"`
}

// MessageRepository implements domain.MessageRepository on MongoDB
type MessageRepository struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

// Append reserves a sequence number with $inc on the session, then inserts the message
func (r *MessageRepository) Append(ctx context.Context, message *domain.Message) (int, error) {
	var counter struct {
		MessageCount int `bson:"message_count"`
	}

	err := r.sessions.FindOneAndUpdate(ctx,
		bson.M{"_id": message.SessionID.String()},
		bson.M{
			"$inc": bson.M{"message_count": 1},
			"$set": bson.M{"updated_at": message.CreatedAt},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"message_count": 1}),
	).Decode(&counter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to bump message count: %w", err)
	}

	message.Sequence = counter.MessageCount

	_, err = r.messages.InsertOne(ctx, messageDoc{
		ID:        message.ID.String(),
		SessionID: message.SessionID.String(),
		Role:      string(message.Role),
		Content:   message.Content,
		Sequence:  message.Sequence,
		CreatedAt: message.CreatedAt,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create message: %w", err)
	}

	return counter.MessageCount, nil
}

func (r *MessageRepository) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sequence", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.messages.Find(ctx, bson.M{"session_id": sessionID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cur.Close(ctx)

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	messages := make([]domain.Message, len(docs))
	for i, d := range docs {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid message id %q: %w", d.ID, err)
		}
		// reverse into chronological order while converting
		messages[len(docs)-1-i] = domain.Message{
			ID:        id,
			SessionID: sessionID,
			Role:      domain.MessageRole(d.Role),
			Content:   d.Content,
			Sequence:  d.Sequence,
			CreatedAt: d.CreatedAt.UTC(),
		}
	}
	return messages, nil
}
