package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"mindcare-chatbot-backend/apperrors"
	"mindcare-chatbot-backend/logger"
)

const companionSystemPrompt = "You are a kind, compassionate, and supportive mental health assistant.\n" +
	"Your goal is to uplift, encourage, and provide clear, practical advice to users in distress.\n" +
	"Start with a reassuring sentence in CAPITALS and bold. Provide empowering solutions. " +
	"Offer achievable steps. Remind users of their strength."

const CompanionUnavailable = "I'm sorry, I'm having trouble responding right now. Please try again in a moment. You are not alone."

var moodAdjustments = map[string]string{
	"happy":   "I'm glad you're feeling good! Here's how to stay positive:",
	"sad":     "I'm really sorry you're feeling this way. Please know things can get better.",
	"angry":   "I understand you're feeling frustrated. Let's work through it calmly.",
	"anxious": "It's okay to feel anxious. Let's take a deep breath and talk about it.",
}

var affirmations = []string{
	"You are stronger than you think",
	"Every day is a new beginning",
	"You are not alone",
	"You are doing your best, and that's enough",
}

// CompanionService is the free-form supportive chat mode. It shares the
// completer with the predictor but none of the dialogue state.
type CompanionService struct {
	completer TextCompleter
	pick      func(n int) int
}

func NewCompanionService(completer TextCompleter) *CompanionService {
	return &CompanionService{completer: completer, pick: rand.IntN}
}

// Reply asks the completer for a supportive answer and prefixes the mood
// sentence. A completer failure yields CompanionUnavailable, not an error.
func (s *CompanionService) Reply(ctx context.Context, mood, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.Validation("message", "message is required")
	}

	mood = normalizeMood(mood)
	prompt := fmt.Sprintf("%s\nUser's mood: %s\nUser: %s", companionSystemPrompt, moodLabel(mood), text)

	answer, err := s.completer.Complete(ctx, prompt, CompletionOptions{
		Operation:   "companion",
		Temperature: 0.7,
		MaxTokens:   400,
	})
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			logger.WithError(err).Warn("Companion reply unavailable")
		}
		return CompanionUnavailable, nil
	}

	return strings.TrimSpace(moodAdjustments[mood] + " " + strings.TrimSpace(answer)), nil
}

// Greeting picks the salutation for the local hour of now.
func (s *CompanionService) Greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good Morning"
	case h < 17:
		return "Good Afternoon"
	default:
		return "Good Evening"
	}
}

func (s *CompanionService) Affirmation() string {
	return affirmations[s.pick(len(affirmations))]
}

// normalizeMood keeps the first word that starts with a letter, lower-cased,
// so "Sad 😢", "😢 sad" and "sad" select the same adjustment.
func normalizeMood(mood string) string {
	fields := strings.Fields(strings.ToLower(mood))
	if len(fields) == 0 {
		return "neutral"
	}
	for _, f := range fields {
		if r, _ := utf8.DecodeRuneInString(f); unicode.IsLetter(r) {
			return f
		}
	}
	return fields[0]
}

func moodLabel(mood string) string {
	r, size := utf8.DecodeRuneInString(mood)
	if r == utf8.RuneError {
		return mood
	}
	return string(unicode.ToUpper(r)) + mood[size:]
}
