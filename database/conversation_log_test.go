package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"mindcare-chatbot-backend/models"
)

func TestConversationLog_BSONRoundTrip(t *testing.T) {
	log := sampleLog("20240502_093000_ab12cd34", 3)
	log.Messages[1].Timestamp = log.Messages[1].Timestamp.Add(250 * time.Millisecond)

	raw, err := bson.Marshal(log)
	require.NoError(t, err)

	assert.Equal(t, log.ID, bson.Raw(raw).Lookup("_id").StringValue())
	assert.Equal(t, "user", bson.Raw(raw).Lookup("messages", "0", "role").StringValue())
	assert.Equal(t, "assistant", bson.Raw(raw).Lookup("messages", "1", "role").StringValue())
	assert.Equal(t, "message", bson.Raw(raw).Lookup("messages", "1", "text").StringValue())

	var got models.ConversationLog
	require.NoError(t, bson.Unmarshal(raw, &got))

	assert.Equal(t, log.ID, got.ID)
	assert.Equal(t, log.SessionID, got.SessionID)
	assert.Equal(t, log.Username, got.Username)
	require.Len(t, got.Messages, len(log.Messages))
	for i, m := range log.Messages {
		assert.Equal(t, m.Role, got.Messages[i].Role)
		assert.Equal(t, m.Text, got.Messages[i].Text)
		assert.True(t, m.Timestamp.Equal(got.Messages[i].Timestamp), "timestamp %d", i)
	}
	assert.True(t, log.CreatedAt.Equal(got.CreatedAt))
}

func TestConversationUpdate(t *testing.T) {
	log := sampleLog("20240502_093000_ab12cd34", 4)

	update := conversationUpdate(log)

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, log.SessionID, set["session_id"])
	assert.Equal(t, "alice", set["username"])
	assert.Equal(t, 4, set["message_count"])
	assert.Equal(t, log.Messages, set["messages"])
	assert.NotContains(t, set, "created_at")

	onInsert, ok := update["$setOnInsert"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, log.CreatedAt, onInsert["created_at"])

	log.CreatedAt = time.Time{}
	onInsert = conversationUpdate(log)["$setOnInsert"].(bson.M)
	assert.False(t, onInsert["created_at"].(time.Time).IsZero())
}

func TestMongoLogStore_RejectsBadID(t *testing.T) {
	store := &MongoLogStore{}
	err := store.Save(context.Background(), sampleLog("../escape", 1))
	assert.ErrorIs(t, err, ErrInvalidConversationID)
}
