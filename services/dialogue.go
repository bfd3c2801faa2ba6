package services

import (
	"context"
	"fmt"
	"time"

	"mindcare-chatbot-backend/catalog"
	"mindcare-chatbot-backend/models"
	"mindcare-chatbot-backend/utils"
)

// Dialogue is the two-state conversation policy. It holds no per-session
// data; every call receives the session state and returns the next one.
//
//	IDLE --symptoms resolved--> AWAITING_SLOT(disease)
//	AWAITING_SLOT(disease) --any utterance--> IDLE
//
// The slot is asked once. An answer that names neither medicine nor doctor
// gets a clarification and the slot is dropped (ReplySlotClarify).
type Dialogue struct {
	catalog    *catalog.Index
	classifier *utils.IntentClassifier
	predictor  *Predictor
	now        func() time.Time
}

func NewDialogue(idx *catalog.Index, classifier *utils.IntentClassifier, predictor *Predictor) *Dialogue {
	return &Dialogue{
		catalog:    idx,
		classifier: classifier,
		predictor:  predictor,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Step handles one utterance. Both the utterance and the reply text are
// appended to the returned state's history; the input state is not modified.
func (d *Dialogue) Step(ctx context.Context, state models.ConversationState, utterance string) (*Reply, models.ConversationState) {
	next := state
	next.History = make([]models.Message, len(state.History), len(state.History)+2)
	copy(next.History, state.History)
	next.History = append(next.History, models.Message{Role: models.RoleUser, Text: utterance, Timestamp: d.now()})

	var reply *Reply
	switch {
	case state.PendingDisease != nil:
		next.PendingDisease = nil
		reply = d.answerSlot(*state.PendingDisease, utterance)

	case d.classifier.HasRequestKeyword(utterance):
		reply = d.answerRequest(utterance)

	default:
		var pending *string
		reply, pending = d.predict(ctx, utterance)
		next.PendingDisease = pending
	}

	next.History = append(next.History, models.Message{Role: models.RoleAssistant, Text: reply.Text, Timestamp: d.now()})
	return reply, next
}

func (d *Dialogue) answerSlot(disease, utterance string) *Reply {
	rec := d.catalog.FindExact(disease)
	if rec == nil {
		return MessageReply(models.ReplyDiseaseMissing, models.IntentNone, fmt.Sprintf(DiseaseMissingFormat, disease))
	}

	intent := d.classifier.ClassifyIntent(utterance)
	if intent == models.IntentNone {
		r := MessageReply(models.ReplySlotClarify, intent, SlotClarifyMessage)
		r.Disease = rec.Name
		return r
	}
	return LookupReply(rec, intent)
}

func (d *Dialogue) answerRequest(utterance string) *Reply {
	intent := d.classifier.ClassifyIntent(utterance)
	rec := d.catalog.FindMentioned(utterance)
	if rec == nil {
		return MessageReply(models.ReplyAskDisease, intent, AskDiseaseMessage)
	}
	return LookupReply(rec, intent)
}

func (d *Dialogue) predict(ctx context.Context, utterance string) (*Reply, *string) {
	rec := d.predictor.Resolve(ctx, utterance)
	if rec == nil {
		return MessageReply(models.ReplyUnidentified, models.IntentNone, UnidentifiedMessage), nil
	}

	remedies := d.predictor.Remedies(ctx, rec.Name)
	name := rec.Name
	return PredictionReply(rec, remedies), &name
}
