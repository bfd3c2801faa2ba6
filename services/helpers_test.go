package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mindcare-chatbot-backend/catalog"
	"mindcare-chatbot-backend/utils"
)

// fakeCompleter answers by operation and records every call.
type fakeCompleter struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   []CompletionOptions
	prompts []string
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{answers: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, opts CompletionOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	f.prompts = append(f.prompts, prompt)
	if err := f.errs[opts.Operation]; err != nil {
		return "", err
	}
	return f.answers[opts.Operation], nil
}

func (f *fakeCompleter) callCount(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Operation == operation {
			n++
		}
	}
	return n
}

func testCatalog(t *testing.T) *catalog.Index {
	t.Helper()
	idx, err := catalog.NewIndex([]catalog.Disease{
		{
			Name:      "Fever",
			Medicines: []string{"Paracetamol", "Ibuprofen"},
			Doctors: []catalog.Doctor{
				{Name: "Dr. Rao", Specialization: "General Physician", Hospital: "City Hospital"},
				{Raw: "Dr. Kumar, MGM Hospital"},
			},
		},
		{
			Name:      "Insomnia",
			Medicines: []string{"Melatonin"},
		},
		{
			Name: "Asthma",
			Doctors: []catalog.Doctor{
				{Name: "Dr. Reddy", Specialization: "Pulmonologist"},
			},
		},
	})
	require.NoError(t, err)
	return idx
}

func newTestDialogue(t *testing.T, completer TextCompleter) *Dialogue {
	t.Helper()
	idx := testCatalog(t)
	return NewDialogue(idx, utils.NewIntentClassifier(), NewPredictor(idx, completer))
}
