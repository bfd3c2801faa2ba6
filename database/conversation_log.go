package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mindcare-chatbot-backend/models"
)

const conversationsCollection = "conversations"

// MongoLogStore keeps conversation logs in the document store.
type MongoLogStore struct {
	coll *mongo.Collection
}

func NewMongoLogStore(db *mongo.Database) *MongoLogStore {
	return &MongoLogStore{coll: db.Collection(conversationsCollection)}
}

func (s *MongoLogStore) Save(ctx context.Context, log models.ConversationLog) error {
	if !conversationIDPattern.MatchString(log.ID) {
		return ErrInvalidConversationID
	}

	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": log.ID}, conversationUpdate(log), options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// conversationUpdate is the upsert document for a log. created_at is only
// written when the document is first inserted.
func conversationUpdate(log models.ConversationLog) bson.M {
	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return bson.M{
		"$set": bson.M{
			"session_id":    log.SessionID,
			"username":      log.Username,
			"messages":      log.Messages,
			"message_count": len(log.Messages),
			"updated_at":    log.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": createdAt,
		},
	}
}

func (s *MongoLogStore) Get(ctx context.Context, id string) (*models.ConversationLog, error) {
	var log models.ConversationLog
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&log)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &log, nil
}

// List returns the user's logs, newest id first.
func (s *MongoLogStore) List(ctx context.Context, username string, limit int) ([]models.ConversationSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetProjection(bson.M{"messages": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := []models.ConversationSummary{}
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return summaries, nil
}
