package services

import (
	"context"
	"fmt"
	"strings"

	"mindcare-chatbot-backend/catalog"
	"mindcare-chatbot-backend/logger"
)

const (
	classifyTemperature = 0.15
	classifyMaxTokens   = 30
	remedyTemperature   = 0.6
	remedyMaxTokens     = 220
)

// Predictor resolves free text to a catalog disease, asking the completion
// collaborator only when the text is not itself a disease name.
type Predictor struct {
	catalog   *catalog.Index
	completer TextCompleter
}

func NewPredictor(idx *catalog.Index, completer TextCompleter) *Predictor {
	return &Predictor{catalog: idx, completer: completer}
}

// Resolve returns the matched disease or nil. Collaborator failures and
// "unknown" answers are both reported as nil.
func (p *Predictor) Resolve(ctx context.Context, utterance string) *catalog.Disease {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return nil
	}

	if tokens := strings.Fields(text); len(tokens) == 1 {
		if rec := p.catalog.FindExact(tokens[0]); rec != nil {
			return rec
		}
	}
	if rec := p.catalog.FindExact(text); rec != nil {
		return rec
	}

	answer, err := p.completer.Complete(ctx, p.classificationPrompt(text), CompletionOptions{
		Operation:   "classify",
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
	})
	if err != nil {
		return nil
	}

	predicted := cleanPrediction(answer)
	if predicted == "" || strings.EqualFold(predicted, "unknown") {
		logger.WithField("answer", answer).Debug("Classifier returned no condition")
		return nil
	}
	if rec := p.catalog.FindExact(catalog.Normalize(predicted)); rec != nil {
		return rec
	}
	return p.catalog.FindFuzzy(predicted)
}

func (p *Predictor) classificationPrompt(symptoms string) string {
	return fmt.Sprintf(`You are a cautious clinical classifier. Based on the user's symptoms below, return EXACTLY one disease name from the provided list or 'unknown'.

Symptoms:
%s

Possible conditions:
%s

Return exactly one value (disease name) or 'unknown'.`, symptoms, strings.Join(p.catalog.Names(), ", "))
}

// cleanPrediction keeps the first line of the answer without surrounding
// quotes or trailing punctuation.
func cleanPrediction(answer string) string {
	line := strings.TrimSpace(answer)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.Trim(strings.TrimSpace(line), `"'`+"`")
	line = strings.TrimRight(line, ".")
	return strings.TrimSpace(line)
}

// Remedies asks the collaborator for home remedies and normalizes the
// answer; a failure yields the unavailable marker.
func (p *Predictor) Remedies(ctx context.Context, disease string) *RemedyText {
	prompt := fmt.Sprintf("Give 5 simple, safe home remedies for %s. Use short bullet points, each on a new line. Keep them non-prescriptive.", disease)
	text, err := p.completer.Complete(ctx, prompt, CompletionOptions{
		Operation:   "remedies",
		Temperature: remedyTemperature,
		MaxTokens:   remedyMaxTokens,
	})
	if err != nil {
		return UnavailableRemedies()
	}
	return NormalizeRemedies(text)
}
