package models

import "time"

// InteractiveMessage for WhatsApp interactive messages
type InteractiveMessage struct {
	Type   string             `json:"type"` // "list" or "button"
	Header *MessageHeader     `json:"header,omitempty"`
	Body   *InteractiveBody   `json:"body"`
	Footer *InteractiveFooter `json:"footer,omitempty"`
	Action *InteractiveAction `json:"action"`
}

type InteractiveBody struct {
	Text string `json:"text"`
}

type InteractiveFooter struct {
	Text string `json:"text"`
}

type MessageHeader struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type InteractiveAction struct {
	Buttons  []InteractiveButton `json:"buttons,omitempty"`
	Button   string              `json:"button,omitempty"` // For list messages
	Sections []Section           `json:"sections,omitempty"`
}

type InteractiveButton struct {
	Type  string       `json:"type"` // "reply"
	Reply *ButtonReply `json:"reply"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Section struct {
	Title string     `json:"title,omitempty"`
	Rows  []ListItem `json:"rows"`
}

type ListItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// WhatsApp Webhook Models
type WhatsAppWebhookData struct {
	Object string          `json:"object"`
	Entry  []WhatsAppEntry `json:"entry"`
}

type WhatsAppEntry struct {
	ID      string           `json:"id"`
	Changes []WhatsAppChange `json:"changes"`
}

type WhatsAppChange struct {
	Field string        `json:"field"`
	Value WhatsAppValue `json:"value"`
}

type WhatsAppValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WhatsAppMetadata  `json:"metadata"`
	Messages         []WhatsAppMessage `json:"messages,omitempty"`
	Statuses         []WhatsAppStatus  `json:"statuses,omitempty"`
	Contacts         []WhatsAppContact `json:"contacts,omitempty"`
}

type WhatsAppMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WhatsAppMessage struct {
	From        string                    `json:"from"`
	ID          string                    `json:"id"`
	Timestamp   string                    `json:"timestamp"`
	Type        string                    `json:"type"`
	Text        *WhatsAppText             `json:"text,omitempty"`
	Interactive *WhatsAppInteractiveReply `json:"interactive,omitempty"`
	Button      *WhatsAppButtonReply      `json:"button,omitempty"`
}

// Utterance extracts the user text from any supported message type.
// Button replies carry the button id, which doubles as the slot answer.
func (m WhatsAppMessage) Utterance() (string, bool) {
	switch m.Type {
	case "text":
		if m.Text != nil {
			return m.Text.Body, true
		}
	case "interactive":
		if m.Interactive != nil {
			if m.Interactive.ButtonReply != nil {
				return m.Interactive.ButtonReply.ID, true
			}
			if m.Interactive.ListReply != nil {
				return m.Interactive.ListReply.ID, true
			}
		}
	case "button":
		if m.Button != nil {
			return m.Button.ID, true
		}
	}
	return "", false
}

type WhatsAppText struct {
	Body string `json:"body"`
}

type WhatsAppInteractiveReply struct {
	Type        string               `json:"type"`
	ListReply   *WhatsAppListReply   `json:"list_reply,omitempty"`
	ButtonReply *WhatsAppButtonReply `json:"button_reply,omitempty"`
}

type WhatsAppListReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type WhatsAppButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type WhatsAppContact struct {
	Profile WhatsAppProfile `json:"profile"`
	WaID    string          `json:"wa_id"`
}

type WhatsAppProfile struct {
	Name string `json:"name"`
}

type WhatsAppStatus struct {
	ID          string          `json:"id"`
	RecipientID string          `json:"recipient_id"`
	Status      string          `json:"status"`
	Timestamp   string          `json:"timestamp"`
	Errors      []WhatsAppError `json:"errors,omitempty"`
}

type WhatsAppError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// WhatsApp Send Message Models
type WhatsAppSendMessage struct {
	MessagingProduct string              `json:"messaging_product"`
	RecipientType    string              `json:"recipient_type"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	Text             *WhatsAppText       `json:"text,omitempty"`
	Interactive      *InteractiveMessage `json:"interactive,omitempty"`
}

type WhatsAppServiceStatus struct {
	Enabled             bool      `json:"enabled"`
	LastMessageReceived time.Time `json:"last_message_received"`
	LastMessageSent     time.Time `json:"last_message_sent"`
	MessageCountToday   int       `json:"message_count_today"`
	ActiveSessions      int       `json:"active_sessions"`
}

func (a Action) ToWhatsAppButton() InteractiveButton {
	return InteractiveButton{
		Type: "reply",
		Reply: &ButtonReply{
			ID:    a.ID,
			Title: a.Label,
		},
	}
}

func (a Action) ToWhatsAppListItem() ListItem {
	return ListItem{
		ID:          a.ID,
		Title:       a.Label,
		Description: a.Description,
	}
}
