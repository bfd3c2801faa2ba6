package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-chatbot-backend/models"
)

func pending(name string) *string { return &name }

func TestStep_SymptomsPredictAndOpenSlot(t *testing.T) {
	completer := newFakeCompleter()
	completer.answers["classify"] = "Fever"
	completer.answers["remedies"] = "**Rest** well\n• Drink fluids\n- Cool compress"
	d := newTestDialogue(t, completer)

	reply, next := d.Step(context.Background(), models.ConversationState{SessionID: "s1"}, "I have a fever")

	assert.Equal(t, models.ReplyPrediction, reply.Kind)
	assert.Equal(t, "Fever", reply.Disease)
	assert.Contains(t, reply.Text, "Predicted Condition: Fever")
	assert.Contains(t, reply.Text, "- Drink fluids")
	assert.Contains(t, reply.Text, SlotQuestion)
	assert.Equal(t, []string{"Rest well", "Drink fluids", "Cool compress"}, reply.Remedies.Items)

	require.NotNil(t, next.PendingDisease)
	assert.Equal(t, "Fever", *next.PendingDisease)
	assert.True(t, next.Awaiting())
	assert.Equal(t, 1, completer.callCount("classify"))
	assert.Equal(t, 1, completer.callCount("remedies"))
}

func TestStep_SlotMedicineListsMedicinesOnly(t *testing.T) {
	d := newTestDialogue(t, newFakeCompleter())
	state := models.ConversationState{PendingDisease: pending("Fever")}

	reply, next := d.Step(context.Background(), state, "medicine")

	assert.Equal(t, models.ReplyMedicines, reply.Kind)
	require.NotNil(t, reply.Medicines)
	assert.Equal(t, []string{"Paracetamol", "Ibuprofen"}, reply.Medicines.Items)
	assert.Nil(t, reply.Doctors)
	assert.NotContains(t, reply.Text, "Dr. Rao")
	assert.Nil(t, next.PendingDisease)
}

func TestStep_SlotDoctorAndBoth(t *testing.T) {
	d := newTestDialogue(t, newFakeCompleter())

	reply, _ := d.Step(context.Background(), models.ConversationState{PendingDisease: pending("Fever")}, "a doctor please")
	assert.Equal(t, models.ReplyDoctors, reply.Kind)
	assert.Equal(t, []string{"Dr. Rao — General Physician (City Hospital)", "Dr. Kumar, MGM Hospital"}, reply.Doctors.Items)

	reply, _ = d.Step(context.Background(), models.ConversationState{PendingDisease: pending("Fever")}, "both")
	assert.Equal(t, models.ReplyBoth, reply.Kind)
	assert.NotNil(t, reply.Medicines)
	assert.NotNil(t, reply.Doctors)
}

func TestStep_SlotIsNotRetried(t *testing.T) {
	d := newTestDialogue(t, newFakeCompleter())

	reply, next := d.Step(context.Background(), models.ConversationState{PendingDisease: pending("Fever")}, "banana")

	assert.Equal(t, models.ReplySlotClarify, reply.Kind)
	assert.Equal(t, SlotClarifyMessage, reply.Text)
	assert.Nil(t, next.PendingDisease)
}

func TestStep_EmptyDoctorListRendersNoneListed(t *testing.T) {
	d := newTestDialogue(t, newFakeCompleter())

	reply, _ := d.Step(context.Background(), models.ConversationState{}, "doctor for insomnia")

	assert.Equal(t, models.ReplyDoctors, reply.Kind)
	require.NotNil(t, reply.Doctors)
	assert.True(t, reply.Doctors.NoneListed)
	assert.Contains(t, reply.Text, "Doctors for Insomnia:\n- "+NoneListed)
}

func TestStep_RequestWithDiseaseSkipsPrediction(t *testing.T) {
	completer := newFakeCompleter()
	d := newTestDialogue(t, completer)

	reply, next := d.Step(context.Background(), models.ConversationState{}, "medicine for fever")

	assert.Equal(t, models.ReplyMedicines, reply.Kind)
	assert.Equal(t, "Fever", reply.Disease)
	assert.Nil(t, next.PendingDisease)
	assert.Empty(t, completer.calls)
}

func TestStep_RequestWithoutDiseaseAsksForIt(t *testing.T) {
	d := newTestDialogue(t, newFakeCompleter())

	reply, next := d.Step(context.Background(), models.ConversationState{}, "which doctor should I see")

	assert.Equal(t, models.ReplyAskDisease, reply.Kind)
	assert.Equal(t, AskDiseaseMessage, reply.Text)
	assert.Nil(t, next.PendingDisease)
}

func TestStep_CollaboratorFailureIsRecovered(t *testing.T) {
	completer := newFakeCompleter()
	completer.errs["classify"] = errors.New("connection reset")
	d := newTestDialogue(t, completer)

	reply, next := d.Step(context.Background(), models.ConversationState{}, "my chest feels tight")

	assert.Equal(t, models.ReplyUnidentified, reply.Kind)
	assert.Equal(t, UnidentifiedMessage, reply.Text)
	assert.Nil(t, next.PendingDisease)
}

func TestStep_RemedyFailureStillPredicts(t *testing.T) {
	completer := newFakeCompleter()
	completer.errs["remedies"] = errors.New("quota exceeded")
	d := newTestDialogue(t, completer)

	reply, next := d.Step(context.Background(), models.ConversationState{}, "asthma")

	assert.Equal(t, models.ReplyPrediction, reply.Kind)
	assert.True(t, reply.Remedies.Unavailable)
	assert.Contains(t, reply.Text, RemediesUnavailable)
	require.NotNil(t, next.PendingDisease)
	assert.Equal(t, "Asthma", *next.PendingDisease)
	assert.Zero(t, completer.callCount("classify"))
}

func TestStep_PendingDiseaseNoLongerInCatalog(t *testing.T) {
	d := newTestDialogue(t, newFakeCompleter())

	reply, next := d.Step(context.Background(), models.ConversationState{PendingDisease: pending("Malaria")}, "medicine")

	assert.Equal(t, models.ReplyDiseaseMissing, reply.Kind)
	assert.Contains(t, reply.Text, "Malaria")
	assert.Nil(t, next.PendingDisease)
}

func TestStep_AppendsHistoryWithoutMutatingInput(t *testing.T) {
	d := newTestDialogue(t, newFakeCompleter())
	state := models.ConversationState{
		SessionID: "s1",
		History:   []models.Message{{Role: models.RoleUser, Text: "hello"}},
	}

	reply, next := d.Step(context.Background(), state, "medicine for fever")

	assert.Len(t, state.History, 1)
	require.Len(t, next.History, 3)
	assert.Equal(t, models.RoleUser, next.History[1].Role)
	assert.Equal(t, "medicine for fever", next.History[1].Text)
	assert.Equal(t, models.RoleAssistant, next.History[2].Role)
	assert.Equal(t, reply.Text, next.History[2].Text)
	assert.Equal(t, "s1", next.SessionID)
}

func TestStep_FullConversation(t *testing.T) {
	completer := newFakeCompleter()
	completer.answers["classify"] = "\"fever\""
	completer.answers["remedies"] = "Rest and hydrate."
	d := newTestDialogue(t, completer)

	state := models.ConversationState{SessionID: "s1"}
	reply, state := d.Step(context.Background(), state, "hot and shivering all night")
	assert.Equal(t, models.ReplyPrediction, reply.Kind)
	assert.Equal(t, []string{"Rest and hydrate."}, reply.Remedies.Paragraphs)

	reply, state = d.Step(context.Background(), state, "medicines and doctors")
	assert.Equal(t, models.ReplyBoth, reply.Kind)
	assert.False(t, state.Awaiting())

	reply, state = d.Step(context.Background(), state, "medicine")
	assert.Equal(t, models.ReplyAskDisease, reply.Kind)
	assert.Len(t, state.History, 6)
}
