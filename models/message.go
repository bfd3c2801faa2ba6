package models

import (
	"time"
)

type MessageIntent string

const (
	IntentMedicine MessageIntent = "medicine"
	IntentDoctor   MessageIntent = "doctor"
	IntentBoth     MessageIntent = "both"
	IntentNone     MessageIntent = "none"
)

// ReplyKind names which dialogue branch produced a reply.
type ReplyKind string

const (
	ReplyMedicines      ReplyKind = "medicines"
	ReplyDoctors        ReplyKind = "doctors"
	ReplyBoth           ReplyKind = "both"
	ReplyPrediction     ReplyKind = "prediction"
	ReplySlotClarify    ReplyKind = "slot_clarify"
	ReplyAskDisease     ReplyKind = "ask_disease"
	ReplyUnidentified   ReplyKind = "unidentified"
	ReplyDiseaseMissing ReplyKind = "disease_missing"
	ReplyCompanion      ReplyKind = "companion"
)

// MessageChannel represents the communication channel
type MessageChannel string

const (
	ChannelWeb      MessageChannel = "web"
	ChannelWhatsApp MessageChannel = "whatsapp"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session's ordered history.
type Message struct {
	Role      Role      `bson:"role" json:"role"`
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// ConversationState is everything the dialogue needs between turns.
// PendingDisease is non-nil exactly while the slot question is open.
type ConversationState struct {
	SessionID      string         `json:"session_id"`
	Username       string         `json:"username,omitempty"`
	Channel        MessageChannel `json:"channel,omitempty"`
	PendingDisease *string        `json:"pending_disease,omitempty"`
	History        []Message      `json:"history"`
	LogID          string         `json:"log_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Awaiting reports whether the session is waiting for the medicine/doctor/both answer.
func (s ConversationState) Awaiting() bool {
	return s.PendingDisease != nil
}

// ConversationLog is the persisted form of a session's history. The pending
// slot is never part of it.
type ConversationLog struct {
	ID        string    `bson:"_id" json:"id"`
	SessionID string    `bson:"session_id" json:"session_id"`
	Username  string    `bson:"username,omitempty" json:"username,omitempty"`
	Messages  []Message `bson:"messages" json:"messages"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ConversationSummary is a log listing entry without the messages.
type ConversationSummary struct {
	ID           string    `bson:"_id" json:"id"`
	SessionID    string    `bson:"session_id" json:"session_id"`
	Username     string    `bson:"username,omitempty" json:"username,omitempty"`
	MessageCount int       `bson:"message_count" json:"message_count"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

type ChatRequest struct {
	Message   string                 `json:"message" binding:"required"`
	SessionID string                 `json:"session_id" binding:"required"`
	UserID    string                 `json:"user_id,omitempty"`
	Channel   MessageChannel         `json:"channel,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type CompanionRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
	Mood      string `json:"mood,omitempty"`
}

type ChatResponse struct {
	Response     string                 `json:"response"`
	Intent       MessageIntent          `json:"intent"`
	Kind         ReplyKind              `json:"kind"`
	Actions      []Action               `json:"actions,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	ResponseType ResponseType           `json:"response_type,omitempty"`
}

// ResponseType for different message types
type ResponseType string

const (
	ResponseTypeText        ResponseType = "text"
	ResponseTypeInteractive ResponseType = "interactive"
)

// Action is a quick reply a client can offer; WhatsApp renders it as a button.
type Action struct {
	Type        string                 `json:"type"`
	Label       string                 `json:"label"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Description string                 `json:"description,omitempty"`
	ID          string                 `json:"id,omitempty"`
}

func (cr ChatResponse) NeedsInteractiveFormat() bool {
	return len(cr.Actions) > 0 || cr.ResponseType == ResponseTypeInteractive
}

// TurnEvent is published once per processed utterance.
type TurnEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Channel   MessageChannel `json:"channel,omitempty"`
	Intent    MessageIntent  `json:"intent"`
	Kind      ReplyKind      `json:"kind"`
	Disease   string         `json:"disease,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
