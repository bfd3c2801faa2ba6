package utils

import (
	"strings"

	"mindcare-chatbot-backend/models"
)

// IntentClassifier maps an utterance to the medicine/doctor/both request it
// makes, using case-insensitive substring matches against fixed keyword sets.
type IntentClassifier struct {
	patterns map[models.MessageIntent][]string
}

func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{
		patterns: map[models.MessageIntent][]string{
			models.IntentMedicine: {
				"medicine", "medicines", "tablet", "tablets", "dose",
				"treatment", "drug", "meds",
			},
			models.IntentDoctor: {
				"doctor", "doctors", "specialist", "hospital", "clinic",
				"consult", "see a doctor",
			},
			models.IntentBoth: {
				"both", "both please", "medicine and doctor",
				"medicine & doctor", "medicines and doctors",
			},
		},
	}
}

// ClassifyIntent returns IntentBoth when a BOTH phrase is present or both a
// medicine and a doctor keyword are; otherwise the single matching intent,
// or IntentNone.
func (ic *IntentClassifier) ClassifyIntent(message string) models.MessageIntent {
	message = strings.ToLower(message)

	med := ic.containsAnyKeyword(message, ic.patterns[models.IntentMedicine])
	doc := ic.containsAnyKeyword(message, ic.patterns[models.IntentDoctor])

	switch {
	case ic.containsAnyKeyword(message, ic.patterns[models.IntentBoth]) || (med && doc):
		return models.IntentBoth
	case med:
		return models.IntentMedicine
	case doc:
		return models.IntentDoctor
	default:
		return models.IntentNone
	}
}

// HasRequestKeyword reports whether the message contains any keyword at all.
func (ic *IntentClassifier) HasRequestKeyword(message string) bool {
	return ic.ClassifyIntent(message) != models.IntentNone
}

func (ic *IntentClassifier) containsAnyKeyword(message string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}

// SupportedIntents describes the request intents for API clients.
func (ic *IntentClassifier) SupportedIntents() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"intent":      models.IntentMedicine,
			"description": "Medicines listed for a disease",
			"keywords":    ic.patterns[models.IntentMedicine],
			"examples":    []string{"medicine for fever", "which tablets for migraine"},
		},
		{
			"intent":      models.IntentDoctor,
			"description": "Doctors and hospitals for a disease",
			"keywords":    ic.patterns[models.IntentDoctor],
			"examples":    []string{"doctor for asthma", "specialist for depression"},
		},
		{
			"intent":      models.IntentBoth,
			"description": "Medicines and doctors together",
			"keywords":    ic.patterns[models.IntentBoth],
			"examples":    []string{"medicine and doctor for anxiety", "both"},
		},
		{
			"intent":      "prediction",
			"description": "Describe symptoms without a keyword to get a predicted condition and home remedies",
			"examples":    []string{"I have a headache and feel dizzy", "I can't sleep at night"},
		},
	}
}
