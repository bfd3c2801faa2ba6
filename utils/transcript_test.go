package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-chatbot-backend/models"
)

func transcriptFixture() []models.Message {
	ts := time.Date(2024, 6, 1, 14, 5, 9, 0, time.UTC)
	return []models.Message{
		{Role: models.RoleUser, Text: "I feel anxious", Timestamp: ts},
		{Role: models.RoleAssistant, Text: "Let's take a deep breath.", Timestamp: ts.Add(time.Second)},
	}
}

func TestTranscriptText(t *testing.T) {
	got := TranscriptText(transcriptFixture())

	assert.Equal(t,
		"[2024-06-01 14:05:09] User: I feel anxious\n"+
			"[2024-06-01 14:05:10] Assistant: Let's take a deep breath.\n",
		got)
	assert.Empty(t, TranscriptText(nil))
}

func TestTranscriptPDF(t *testing.T) {
	out, err := TranscriptPDF("Conversation 20240601_140509", transcriptFixture())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Greater(t, len(out), 500)
}

func TestTranscriptPDF_Empty(t *testing.T) {
	out, err := TranscriptPDF("Empty", nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
