package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	sessionsCollection = "chat_sessions"
	messagesCollection = "chat_messages"
)

// Store keeps sessions and messages in two MongoDB collections
type Store struct {
	client   *mongo.Client
	sessions *mongo.Collection
	messages *mongo.Collection
}

// Connect dials MongoDB and ensures the indexes exist
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	clientOpts := options.Client().ApplyURI(uri).SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		sessions: db.Collection(sessionsCollection),
		messages: db.Collection(messagesCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}

	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "sequence", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// Ping verifies the server is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Sessions returns the session repository backed by this store
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{sessions: s.sessions, messages: s.messages}
}

// Messages returns the message repository backed by this store
func (s *Store) Messages() *MessageRepository {
	return &MessageRepository{sessions: s.sessions, messages: s.messages}
}
