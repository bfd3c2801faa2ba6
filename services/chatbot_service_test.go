package services

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-chatbot-backend/apperrors"
	"mindcare-chatbot-backend/database"
	"mindcare-chatbot-backend/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TurnEvent
}

func (p *recordingPublisher) PublishTurn(_ context.Context, e models.TurnEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type chatbotFixture struct {
	svc       *ChatbotService
	completer *fakeCompleter
	sessions  *database.MemorySessionStore
	logs      *database.FileLogStore
	events    *recordingPublisher
}

func newChatbotFixture(t *testing.T) *chatbotFixture {
	t.Helper()
	completer := newFakeCompleter()
	logs, err := database.NewFileLogStore(t.TempDir())
	require.NoError(t, err)

	f := &chatbotFixture{
		completer: completer,
		sessions:  database.NewMemorySessionStore(time.Hour),
		logs:      logs,
		events:    &recordingPublisher{},
	}
	f.svc = NewChatbotService(
		newTestDialogue(t, completer),
		NewCompanionService(completer),
		f.sessions,
		f.logs,
		f.events,
		nil,
	)
	return f
}

func TestProcessMessage_UnknownWebSessionIsUnauthorized(t *testing.T) {
	f := newChatbotFixture(t)

	_, err := f.svc.ProcessMessage(context.Background(), models.ChatRequest{SessionID: "missing", Message: "hello"})

	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
}

func TestProcessMessage_EmptyMessage(t *testing.T) {
	f := newChatbotFixture(t)

	_, err := f.svc.ProcessMessage(context.Background(), models.ChatRequest{SessionID: "s", Message: "  "})

	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestProcessMessage_WhatsAppCreatesSession(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	resp, err := f.svc.ProcessMessage(ctx, models.ChatRequest{
		SessionID: "whatsapp_15550001111",
		Message:   "medicine for fever",
		Channel:   models.ChannelWhatsApp,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReplyMedicines, resp.Kind)

	state, err := f.sessions.Get(ctx, "whatsapp_15550001111")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelWhatsApp, state.Channel)
	assert.Len(t, state.History, 2)
}

func TestProcessMessage_PredictionThenSlotAnswer(t *testing.T) {
	f := newChatbotFixture(t)
	f.completer.answers["classify"] = "Fever"
	f.completer.answers["remedies"] = "- Rest\n- Fluids"
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, "alice", models.ChannelWeb)
	require.NoError(t, err)

	resp, err := f.svc.ProcessMessage(ctx, models.ChatRequest{SessionID: session.SessionID, Message: "I feel hot and shivery"})
	require.NoError(t, err)
	assert.Equal(t, models.ReplyPrediction, resp.Kind)
	assert.True(t, resp.NeedsInteractiveFormat())
	require.Len(t, resp.Actions, 3)
	assert.Equal(t, "medicine", resp.Actions[0].ID)
	assert.Equal(t, true, resp.Data["awaiting_slot"])
	assert.Equal(t, "Fever", resp.Data["disease"])

	logID, ok := resp.Data["conversation_id"].(string)
	require.True(t, ok)
	assert.Regexp(t, regexp.MustCompile(`^\d{8}_\d{6}_[0-9a-f]{8}$`), logID)

	resp, err = f.svc.ProcessMessage(ctx, models.ChatRequest{SessionID: session.SessionID, Message: "medicine"})
	require.NoError(t, err)
	assert.Equal(t, models.ReplyMedicines, resp.Kind)
	assert.Equal(t, false, resp.Data["awaiting_slot"])
	assert.Empty(t, resp.Actions)
	assert.Equal(t, logID, resp.Data["conversation_id"])

	log, err := f.logs.Get(ctx, logID)
	require.NoError(t, err)
	require.Len(t, log.Messages, 4)
	assert.Equal(t, "alice", log.Username)
	assert.Equal(t, "medicine", log.Messages[2].Text)

	require.Len(t, f.events.events, 2)
	assert.Equal(t, models.ReplyPrediction, f.events.events[0].Kind)
	assert.Equal(t, "Fever", f.events.events[0].Disease)
	assert.Equal(t, models.ReplyMedicines, f.events.events[1].Kind)
}

func TestProcessMessage_SameSessionTurnsAreSerialized(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, "", models.ChannelWeb)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.ProcessMessage(ctx, models.ChatRequest{
				SessionID: session.SessionID,
				Message:   fmt.Sprintf("doctor for asthma %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := f.svc.History(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 20)
	assert.Empty(t, f.svc.locks.locks)
}

func messageTexts(log *models.ConversationLog) []string {
	texts := make([]string, 0, len(log.Messages))
	for _, m := range log.Messages {
		texts = append(texts, m.Text)
	}
	return texts
}

func TestRestoreConversation_SessionsKeepSeparateLogs(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	first, err := f.svc.StartSession(ctx, "alice", models.ChannelWeb)
	require.NoError(t, err)
	resp, err := f.svc.ProcessMessage(ctx, models.ChatRequest{SessionID: first.SessionID, Message: "medicine for fever"})
	require.NoError(t, err)
	sourceID := resp.Data["conversation_id"].(string)

	second, err := f.svc.StartSession(ctx, "alice", models.ChannelWeb)
	require.NoError(t, err)
	disease := "Fever"
	second.PendingDisease = &disease
	require.NoError(t, f.sessions.Save(ctx, second))

	restored, err := f.svc.RestoreConversation(ctx, second.SessionID, sourceID)
	require.NoError(t, err)
	assert.Nil(t, restored.PendingDisease)
	assert.Len(t, restored.History, 2)
	require.NotEmpty(t, restored.LogID)
	assert.NotEqual(t, sourceID, restored.LogID)

	seeded, err := f.logs.Get(ctx, restored.LogID)
	require.NoError(t, err)
	assert.Equal(t, second.SessionID, seeded.SessionID)
	assert.Len(t, seeded.Messages, 2)

	// both sessions keep chatting after the restore
	_, err = f.svc.ProcessMessage(ctx, models.ChatRequest{SessionID: first.SessionID, Message: "doctor for asthma"})
	require.NoError(t, err)
	resp, err = f.svc.ProcessMessage(ctx, models.ChatRequest{SessionID: second.SessionID, Message: "medicine for insomnia"})
	require.NoError(t, err)
	assert.Equal(t, restored.LogID, resp.Data["conversation_id"])

	source, err := f.logs.Get(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, source.SessionID)
	require.Len(t, source.Messages, 4)
	assert.Contains(t, messageTexts(source), "doctor for asthma")
	assert.NotContains(t, messageTexts(source), "medicine for insomnia")

	branch, err := f.logs.Get(ctx, restored.LogID)
	require.NoError(t, err)
	require.Len(t, branch.Messages, 4)
	assert.Equal(t, "medicine for fever", branch.Messages[0].Text)
	assert.Equal(t, "medicine for insomnia", branch.Messages[2].Text)
	assert.NotContains(t, messageTexts(branch), "doctor for asthma")
}

func TestRestoreConversation_Errors(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, "bob", models.ChannelWeb)
	require.NoError(t, err)

	_, err = f.svc.RestoreConversation(ctx, session.SessionID, "20000101_000000_deadbeef")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.svc.RestoreConversation(ctx, session.SessionID, "../x")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = f.svc.RestoreConversation(ctx, "missing", "20000101_000000_deadbeef")
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
}

func TestConversations_ScopedToOwner(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	alice, err := f.svc.StartSession(ctx, "alice", models.ChannelWeb)
	require.NoError(t, err)
	resp, err := f.svc.ProcessMessage(ctx, models.ChatRequest{SessionID: alice.SessionID, Message: "doctor for asthma"})
	require.NoError(t, err)
	aliceLog := resp.Data["conversation_id"].(string)

	mallory, err := f.svc.StartSession(ctx, "mallory", models.ChannelWeb)
	require.NoError(t, err)

	list, err := f.svc.ListConversations(ctx, mallory.SessionID, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.GetConversation(ctx, mallory.SessionID, aliceLog)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.svc.RestoreConversation(ctx, mallory.SessionID, aliceLog)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	history, err := f.svc.History(ctx, mallory.SessionID)
	require.NoError(t, err)
	assert.Empty(t, history)

	log, err := f.svc.GetConversation(ctx, alice.SessionID, aliceLog)
	require.NoError(t, err)
	assert.Equal(t, "alice", log.Username)
}

func TestConversations_RequireLoggedInWebSession(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	anonymous, err := f.svc.StartSession(ctx, "", models.ChannelWeb)
	require.NoError(t, err)
	_, err = f.svc.ProcessMessage(ctx, models.ChatRequest{
		SessionID: "whatsapp_15550001111",
		Message:   "medicine for fever",
		Channel:   models.ChannelWhatsApp,
	})
	require.NoError(t, err)

	for _, sessionID := range []string{"", "missing", anonymous.SessionID, "whatsapp_15550001111"} {
		_, err := f.svc.ListConversations(ctx, sessionID, 10)
		assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized), sessionID)

		_, err = f.svc.GetConversation(ctx, sessionID, "20000101_000000_deadbeef")
		assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized), sessionID)
	}
}

func TestWebChannelRejectsWhatsAppSession(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()
	const sessionID = "whatsapp_15550001111"

	_, err := f.svc.ProcessMessage(ctx, models.ChatRequest{SessionID: sessionID, Message: "medicine for fever", Channel: models.ChannelWhatsApp})
	require.NoError(t, err)

	_, err = f.svc.ProcessMessage(ctx, models.ChatRequest{SessionID: sessionID, Message: "doctor for asthma"})
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	_, err = f.svc.History(ctx, sessionID)
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
}

func TestResetSlot(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, "", models.ChannelWeb)
	require.NoError(t, err)
	disease := "Fever"
	session.PendingDisease = &disease
	require.NoError(t, f.sessions.Save(ctx, session))

	require.NoError(t, f.svc.ResetSlot(ctx, session.SessionID))
	state, err := f.sessions.Get(ctx, session.SessionID)
	require.NoError(t, err)
	assert.False(t, state.Awaiting())

	require.NoError(t, f.svc.ResetSlot(ctx, "never-seen"))
	_, err = f.sessions.Get(ctx, "never-seen")
	assert.ErrorIs(t, err, database.ErrSessionNotFound)
}

func TestListConversations(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, "alice", models.ChannelWeb)
	require.NoError(t, err)

	_, err = f.svc.ProcessMessage(ctx, models.ChatRequest{SessionID: session.SessionID, Message: "both for fever"})
	require.NoError(t, err)

	list, err := f.svc.ListConversations(ctx, session.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, session.SessionID, list[0].SessionID)
	assert.Equal(t, 2, list[0].MessageCount)
}

func TestLookup(t *testing.T) {
	f := newChatbotFixture(t)

	rec, err := f.svc.Lookup("astma")
	require.NoError(t, err)
	assert.Equal(t, "Asthma", rec.Name)

	_, err = f.svc.Lookup("zzzz")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.svc.Lookup(" ")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestConverse_KeepsPendingSlot(t *testing.T) {
	f := newChatbotFixture(t)
	f.completer.answers["companion"] = "You are doing great."
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, "", models.ChannelWeb)
	require.NoError(t, err)
	disease := "Fever"
	session.PendingDisease = &disease
	require.NoError(t, f.sessions.Save(ctx, session))

	resp, err := f.svc.Converse(ctx, models.CompanionRequest{SessionID: session.SessionID, Message: "thanks", Mood: "Happy"})
	require.NoError(t, err)
	assert.Equal(t, models.ReplyCompanion, resp.Kind)
	assert.Contains(t, resp.Response, "You are doing great.")
	assert.NotEmpty(t, resp.Data["affirmation"])

	state, err := f.sessions.Get(ctx, session.SessionID)
	require.NoError(t, err)
	require.NotNil(t, state.PendingDisease)
	assert.Len(t, state.History, 2)
}

func TestEndSession(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, "", models.ChannelWeb)
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.ActiveSessions(ctx))

	require.NoError(t, f.svc.EndSession(ctx, session.SessionID))
	_, err = f.svc.History(ctx, session.SessionID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Equal(t, 0, f.svc.ActiveSessions(ctx))
}

func TestConversationLogID(t *testing.T) {
	at := time.Date(2024, 7, 9, 8, 7, 6, 0, time.UTC)

	a := conversationLogID(at, "session-a")
	b := conversationLogID(at, "session-b")

	assert.Regexp(t, `^20240709_080706_[0-9a-f]{8}$`, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, conversationLogID(at, "session-a"))
}
