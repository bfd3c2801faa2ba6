package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mindcare-chatbot-backend/apperrors"
	"mindcare-chatbot-backend/catalog"
	"mindcare-chatbot-backend/database"
	"mindcare-chatbot-backend/logger"
	"mindcare-chatbot-backend/metrics"
	"mindcare-chatbot-backend/models"
)

type SessionStore interface {
	Get(ctx context.Context, id string) (models.ConversationState, error)
	Save(ctx context.Context, state models.ConversationState) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// ConversationLogStore is the conversation log sink.
type ConversationLogStore interface {
	Save(ctx context.Context, log models.ConversationLog) error
	Get(ctx context.Context, id string) (*models.ConversationLog, error)
	List(ctx context.Context, username string, limit int) ([]models.ConversationSummary, error)
}

type TurnPublisher interface {
	PublishTurn(ctx context.Context, event models.TurnEvent) error
}

const logIDLayout = "20060102_150405"

type ChatbotService struct {
	dialogue  *Dialogue
	companion *CompanionService
	sessions  SessionStore
	logs      ConversationLogStore
	publisher TurnPublisher
	metrics   *metrics.Metrics
	locks     *sessionLocks
	now       func() time.Time
}

func NewChatbotService(
	dialogue *Dialogue,
	companion *CompanionService,
	sessions SessionStore,
	logs ConversationLogStore,
	publisher TurnPublisher,
	m *metrics.Metrics,
) *ChatbotService {
	return &ChatbotService{
		dialogue:  dialogue,
		companion: companion,
		sessions:  sessions,
		logs:      logs,
		publisher: publisher,
		metrics:   m,
		locks:     newSessionLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ChatbotService) Catalog() *catalog.Index {
	return s.dialogue.catalog
}

func (s *ChatbotService) Companion() *CompanionService {
	return s.companion
}

func (s *ChatbotService) SupportedIntents() []map[string]interface{} {
	return s.dialogue.classifier.SupportedIntents()
}

// ProcessMessage runs one dialogue turn for the session. Turns of the same
// session are serialized; different sessions run concurrently.
func (s *ChatbotService) ProcessMessage(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, apperrors.Validation("message", "message is required")
	}
	channel := req.Channel
	if channel == "" {
		channel = models.ChannelWeb
	}

	unlock := s.locks.lock(req.SessionID)
	defer unlock()

	state, err := s.loadState(ctx, req.SessionID, channel)
	if err != nil {
		return nil, err
	}

	reply, next := s.dialogue.Step(ctx, state, text)
	next = s.persist(ctx, next)
	s.emit(ctx, next, reply.Intent, reply.Kind, reply.Disease)

	logger.WithFields(map[string]interface{}{
		"session_id": next.SessionID,
		"channel":    channel,
		"intent":     reply.Intent,
		"kind":       reply.Kind,
	}).Info("Chat turn processed")

	return buildChatResponse(reply, next), nil
}

// Converse runs one companion turn. The pending slot is left untouched.
func (s *ChatbotService) Converse(ctx context.Context, req models.CompanionRequest) (*models.ChatResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, apperrors.Validation("message", "message is required")
	}

	unlock := s.locks.lock(req.SessionID)
	defer unlock()

	state, err := s.loadState(ctx, req.SessionID, models.ChannelWeb)
	if err != nil {
		return nil, err
	}

	answer, err := s.companion.Reply(ctx, req.Mood, text)
	if err != nil {
		return nil, err
	}

	next := state
	next.History = append(append([]models.Message(nil), state.History...),
		models.Message{Role: models.RoleUser, Text: text, Timestamp: s.stamp()},
		models.Message{Role: models.RoleAssistant, Text: answer, Timestamp: s.stamp()},
	)
	next = s.persist(ctx, next)
	s.emit(ctx, next, models.IntentNone, models.ReplyCompanion, "")

	return &models.ChatResponse{
		Response:     answer,
		Intent:       models.IntentNone,
		Kind:         models.ReplyCompanion,
		ResponseType: models.ResponseTypeText,
		Data: map[string]interface{}{
			"affirmation":     s.companion.Affirmation(),
			"conversation_id": next.LogID,
		},
	}, nil
}

// StartSession creates an empty IDLE session.
func (s *ChatbotService) StartSession(ctx context.Context, username string, channel models.MessageChannel) (models.ConversationState, error) {
	state := models.ConversationState{
		SessionID: uuid.New().String(),
		Username:  username,
		Channel:   channel,
		History:   []models.Message{},
		CreatedAt: s.now(),
	}
	if err := s.sessions.Save(ctx, state); err != nil {
		return models.ConversationState{}, apperrors.Collaborator(err, "failed to create session")
	}
	return state, nil
}

func (s *ChatbotService) EndSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperrors.Collaborator(err, "failed to end session")
	}
	return nil
}

func (s *ChatbotService) Session(ctx context.Context, sessionID string) (models.ConversationState, error) {
	state, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, database.ErrSessionNotFound) {
		return models.ConversationState{}, apperrors.NotFound("session %s not found", sessionID)
	}
	if err != nil {
		return models.ConversationState{}, apperrors.Collaborator(err, "failed to load session")
	}
	return state, nil
}

// History returns the transcript of a web session.
func (s *ChatbotService) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	state, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Channel == models.ChannelWhatsApp {
		return nil, apperrors.Unauthorized("session is not a web session")
	}
	return state.History, nil
}

// owner resolves the logged-in user behind a web session. Saved
// conversations are only reachable through it.
func (s *ChatbotService) owner(ctx context.Context, sessionID string) (models.ConversationState, error) {
	if strings.TrimSpace(sessionID) == "" {
		return models.ConversationState{}, apperrors.Unauthorized("session_id is required")
	}
	state, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, database.ErrSessionNotFound) {
		return models.ConversationState{}, apperrors.Unauthorized("unknown or expired session")
	}
	if err != nil {
		return models.ConversationState{}, apperrors.Collaborator(err, "failed to load session")
	}
	if state.Channel == models.ChannelWhatsApp || state.Username == "" {
		return models.ConversationState{}, apperrors.Unauthorized("login required")
	}
	return state, nil
}

// ListConversations returns the caller's saved logs, newest first.
func (s *ChatbotService) ListConversations(ctx context.Context, sessionID string, limit int) ([]models.ConversationSummary, error) {
	caller, err := s.owner(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	list, err := s.logs.List(ctx, caller.Username, limit)
	if err != nil {
		return nil, apperrors.Collaborator(err, "failed to list conversations")
	}
	return list, nil
}

// GetConversation loads a saved log owned by the caller. Logs of other users
// are reported as missing.
func (s *ChatbotService) GetConversation(ctx context.Context, sessionID, id string) (*models.ConversationLog, error) {
	caller, err := s.owner(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.ownedConversation(ctx, caller.Username, id)
}

func (s *ChatbotService) ownedConversation(ctx context.Context, username, id string) (*models.ConversationLog, error) {
	log, err := s.logs.Get(ctx, id)
	switch {
	case errors.Is(err, database.ErrConversationNotFound):
		return nil, apperrors.NotFound("conversation %s not found", id)
	case errors.Is(err, database.ErrInvalidConversationID):
		return nil, apperrors.Validation("id", "invalid conversation id")
	case err != nil:
		return nil, apperrors.Collaborator(err, "failed to load conversation")
	}
	if log.Username != username {
		return nil, apperrors.NotFound("conversation %s not found", id)
	}
	return log, nil
}

// RestoreConversation seeds the session with a saved log's messages. The
// session continues under a fresh log id so the source log is never written
// by two sessions. The pending slot is never restored, so the session
// returns to IDLE.
func (s *ChatbotService) RestoreConversation(ctx context.Context, sessionID, logID string) (models.ConversationState, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	state, err := s.owner(ctx, sessionID)
	if err != nil {
		return models.ConversationState{}, err
	}
	log, err := s.ownedConversation(ctx, state.Username, logID)
	if err != nil {
		return models.ConversationState{}, err
	}

	state.History = append([]models.Message{}, log.Messages...)
	state.PendingDisease = nil
	state.LogID = conversationLogID(s.now(), state.SessionID+":"+log.ID)
	if state.LogID == log.ID {
		state.LogID = conversationLogID(s.now(), state.SessionID+":"+log.ID+":restored")
	}
	state = s.persist(ctx, state)

	logger.WithFields(map[string]interface{}{
		"session_id":      state.SessionID,
		"source_id":       log.ID,
		"conversation_id": state.LogID,
	}).Info("Conversation restored")
	return state, nil
}

// ResetSlot drops a pending slot so the session is IDLE again. Missing
// sessions are left alone.
func (s *ChatbotService) ResetSlot(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	state, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, database.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Collaborator(err, "failed to load session")
	}
	if state.PendingDisease == nil {
		return nil
	}
	state.PendingDisease = nil
	if err := s.sessions.Save(ctx, state); err != nil {
		return apperrors.Collaborator(err, "failed to save session")
	}
	return nil
}

// Lookup is the quick disease lookup: exact first, then fuzzy.
func (s *ChatbotService) Lookup(name string) (*catalog.Disease, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.Validation("q", "disease name is required")
	}
	rec := s.dialogue.catalog.FindFuzzy(name)
	if rec == nil {
		return nil, apperrors.NotFound("no catalog entry matches %q", name)
	}
	return rec, nil
}

func (s *ChatbotService) ActiveSessions(ctx context.Context) int {
	n, err := s.sessions.Count(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to count sessions")
		return 0
	}
	return n
}

// loadState returns the stored session. WhatsApp senders get a session on
// first contact; web sessions must come from login.
func (s *ChatbotService) loadState(ctx context.Context, sessionID string, channel models.MessageChannel) (models.ConversationState, error) {
	state, err := s.sessions.Get(ctx, sessionID)
	if err == nil {
		if channel != models.ChannelWhatsApp && state.Channel == models.ChannelWhatsApp {
			return models.ConversationState{}, apperrors.Unauthorized("session is not a web session")
		}
		return state, nil
	}
	if !errors.Is(err, database.ErrSessionNotFound) {
		return models.ConversationState{}, apperrors.Collaborator(err, "failed to load session")
	}
	if channel != models.ChannelWhatsApp {
		return models.ConversationState{}, apperrors.Unauthorized("unknown or expired session")
	}
	return models.ConversationState{
		SessionID: sessionID,
		Channel:   channel,
		History:   []models.Message{},
		CreatedAt: s.now(),
	}, nil
}

// persist assigns the log id on first use, saves the session and appends
// the log. Failures are logged; the turn's reply is still delivered.
func (s *ChatbotService) persist(ctx context.Context, state models.ConversationState) models.ConversationState {
	now := s.now()
	if state.LogID == "" {
		state.LogID = conversationLogID(now, state.SessionID)
	}

	if err := s.sessions.Save(ctx, state); err != nil {
		logger.WithError(err).WithField("session_id", state.SessionID).Error("Failed to save session")
	}

	createdAt := state.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	err := s.logs.Save(ctx, models.ConversationLog{
		ID:        state.LogID,
		SessionID: state.SessionID,
		Username:  state.Username,
		Messages:  state.History,
		CreatedAt: createdAt,
		UpdatedAt: now,
	})
	if err != nil {
		logger.WithError(err).WithField("conversation_id", state.LogID).Error("Failed to save conversation log")
	}
	return state
}

func (s *ChatbotService) emit(ctx context.Context, state models.ConversationState, intent models.MessageIntent, kind models.ReplyKind, disease string) {
	s.metrics.ObserveTurn(string(intent), string(kind))

	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishTurn(ctx, models.TurnEvent{
		ID:        uuid.New().String(),
		SessionID: state.SessionID,
		Channel:   state.Channel,
		Intent:    intent,
		Kind:      kind,
		Disease:   disease,
		Timestamp: s.now(),
	})
	if err != nil {
		logger.WithError(err).WithField("session_id", state.SessionID).Warn("Failed to publish turn event")
	}
}

func (s *ChatbotService) stamp() time.Time {
	return s.now().Truncate(time.Millisecond)
}

// conversationLogID is "YYYYMMDD_HHMMSS_<8 hex>"; the suffix keeps ids of
// sessions started in the same second apart.
func conversationLogID(at time.Time, sessionID string) string {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return fmt.Sprintf("%s_%08x", at.Format(logIDLayout), h.Sum32())
}

func buildChatResponse(reply *Reply, state models.ConversationState) *models.ChatResponse {
	resp := &models.ChatResponse{
		Response:     reply.Text,
		Intent:       reply.Intent,
		Kind:         reply.Kind,
		ResponseType: models.ResponseTypeText,
		Data: map[string]interface{}{
			"awaiting_slot":   state.Awaiting(),
			"conversation_id": state.LogID,
		},
	}
	if reply.Disease != "" {
		resp.Data["disease"] = reply.Disease
	}
	if reply.Medicines != nil {
		resp.Data["medicines"] = reply.Medicines
	}
	if reply.Doctors != nil {
		resp.Data["doctors"] = reply.Doctors
	}
	if reply.Remedies != nil {
		resp.Data["remedies"] = reply.Remedies
	}

	if reply.Kind == models.ReplyPrediction {
		resp.ResponseType = models.ResponseTypeInteractive
		resp.Actions = []models.Action{
			{Type: "quick_reply", ID: string(models.IntentMedicine), Label: "Medicine"},
			{Type: "quick_reply", ID: string(models.IntentDoctor), Label: "Doctor"},
			{Type: "quick_reply", ID: string(models.IntentBoth), Label: "Both"},
		}
	}
	return resp
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks hands out one mutex per session id and forgets it once no
// caller holds or waits on it.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
