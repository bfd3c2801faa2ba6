package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mindcare-chatbot-backend/apperrors"
	"mindcare-chatbot-backend/config"
	"mindcare-chatbot-backend/logger"
	"mindcare-chatbot-backend/metrics"
)

// CompletionOptions tunes a single completion call. Operation labels the
// call in logs and metrics.
type CompletionOptions struct {
	Operation   string
	Temperature float64
	MaxTokens   int
}

// TextCompleter is the text-completion collaborator: one blocking round
// trip, no retry.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

var ErrCompletionDisabled = errors.New("text completion is disabled")

var providerDefaults = map[string]struct{ baseURL, model string }{
	"gemini":   {"https://generativelanguage.googleapis.com/v1beta", "gemini-1.5-flash"},
	"cohere":   {"https://api.cohere.ai/v1", "command-a-03-2025"},
	"openai":   {"https://api.openai.com/v1", "gpt-4o-mini"},
	"together": {"https://api.together.xyz/v1", "meta-llama/Llama-3-8b-chat-hf"},
}

type AIService struct {
	provider   string
	apiKey     string
	model      string
	apiURL     string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

func NewAIService(cfg config.AIConfig, m *metrics.Metrics) *AIService {
	s := &AIService{
		provider: cfg.Provider,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		apiURL:   strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		metrics: m,
	}
	if d, ok := providerDefaults[cfg.Provider]; ok {
		if s.apiURL == "" {
			s.apiURL = d.baseURL
		}
		if s.model == "" {
			s.model = d.model
		}
	}
	return s
}

func (s *AIService) Provider() string {
	return s.provider
}

// Complete sends prompt to the configured provider and returns the trimmed
// text of the first candidate.
func (s *AIService) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	start := time.Now()
	text, err := s.complete(ctx, prompt, opts)
	s.metrics.ObserveCollaborator(opts.Operation, err, time.Since(start))

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"provider":  s.provider,
			"operation": opts.Operation,
		}).WithError(err).Warn("Text completion failed")
		return "", apperrors.Collaborator(err, "%s completion failed", s.provider)
	}
	return strings.TrimSpace(text), nil
}

func (s *AIService) complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	switch s.provider {
	case "gemini":
		return s.completeGemini(ctx, prompt, opts)
	case "cohere":
		return s.completeCohere(ctx, prompt, opts)
	case "openai", "together":
		return s.completeChat(ctx, prompt, opts)
	case "none", "":
		return "", ErrCompletionDisabled
	default:
		return "", fmt.Errorf("unsupported AI provider: %s", s.provider)
	}
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (s *AIService) completeGemini(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", s.apiURL, s.model)

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     opts.Temperature,
			"maxOutputTokens": opts.MaxTokens,
		},
		"safetySettings": []map[string]interface{}{
			{
				"category":  "HARM_CATEGORY_HARASSMENT",
				"threshold": "BLOCK_ONLY_HIGH",
			},
			{
				"category":  "HARM_CATEGORY_HATE_SPEECH",
				"threshold": "BLOCK_ONLY_HIGH",
			},
		},
	}

	var result geminiResponse
	headers := map[string]string{"x-goog-api-key": s.apiKey}
	if err := s.postJSON(ctx, endpoint, headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response generated")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func (s *AIService) completeCohere(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	payload := map[string]interface{}{
		"model":       s.model,
		"message":     prompt,
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
	}

	var result struct {
		Text string `json:"text"`
	}
	headers := map[string]string{"Authorization": "Bearer " + s.apiKey}
	if err := s.postJSON(ctx, s.apiURL+"/chat", headers, payload, &result); err != nil {
		return "", err
	}
	if result.Text == "" {
		return "", fmt.Errorf("no response generated")
	}
	return result.Text, nil
}

// completeChat speaks the OpenAI-compatible chat completions API.
func (s *AIService) completeChat(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	payload := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + s.apiKey}
	if err := s.postJSON(ctx, s.apiURL+"/chat/completions", headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no response generated")
	}
	return result.Choices[0].Message.Content, nil
}

func (s *AIService) postJSON(ctx context.Context, url string, headers map[string]string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("AI API error (%d): %s", resp.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}
