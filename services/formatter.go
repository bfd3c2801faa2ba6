package services

import (
	"fmt"
	"strings"

	"mindcare-chatbot-backend/catalog"
	"mindcare-chatbot-backend/models"
)

const (
	NoneListed           = "None listed"
	NoRemediesAvailable  = "No remedies available."
	RemediesUnavailable  = "Sorry, I couldn't fetch home remedies right now."
	SlotQuestion         = "Would you like medicine, doctor, or both?"
	SlotClarifyMessage   = "Please type medicine, doctor, or both (or include the disease name)."
	AskDiseaseMessage    = "I didn't detect the disease name. Please include the disease (e.g., 'medicine for fever') or describe your symptoms so I can predict."
	UnidentifiedMessage  = "I couldn't identify the condition. Please describe your symptoms more clearly or name the disease."
	DiseaseMissingFormat = "Sorry, I couldn't find details for %s. Please try again."
)

var bulletSymbols = []string{"• ", "•", "–", "—"}

// Section is one titled list in a reply. NoneListed marks an empty list so
// the section is still rendered.
type Section struct {
	Title      string   `json:"title"`
	Items      []string `json:"items"`
	NoneListed bool     `json:"none_listed,omitempty"`
}

// RemedyText is collaborator output after normalization: either bullet
// items or plain paragraphs.
type RemedyText struct {
	Items       []string `json:"items,omitempty"`
	Paragraphs  []string `json:"paragraphs,omitempty"`
	Unavailable bool     `json:"unavailable,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// Reply is the structured result of one dialogue step.
type Reply struct {
	Kind      models.ReplyKind     `json:"kind"`
	Intent    models.MessageIntent `json:"intent"`
	Disease   string               `json:"disease,omitempty"`
	Medicines *Section             `json:"medicines,omitempty"`
	Doctors   *Section             `json:"doctors,omitempty"`
	Remedies  *RemedyText          `json:"remedies,omitempty"`
	Question  string               `json:"question,omitempty"`
	Text      string               `json:"text"`
}

func MedicineSection(rec *catalog.Disease) *Section {
	s := &Section{
		Title: fmt.Sprintf("Medicines for %s", rec.Name),
		Items: append([]string{}, rec.Medicines...),
	}
	s.NoneListed = len(s.Items) == 0
	return s
}

func DoctorSection(rec *catalog.Disease) *Section {
	s := &Section{
		Title: fmt.Sprintf("Doctors for %s", rec.Name),
		Items: make([]string, 0, len(rec.Doctors)),
	}
	for _, d := range rec.Doctors {
		s.Items = append(s.Items, FormatDoctor(d))
	}
	s.NoneListed = len(s.Items) == 0
	return s
}

// FormatDoctor renders a structured doctor as "Name — Specialization
// (Hospital)", omitting empty parts; opaque entries are returned verbatim.
func FormatDoctor(d catalog.Doctor) string {
	if !d.Structured() {
		return d.Raw
	}
	name := d.Name
	if name == "" {
		name = "Unknown"
	}
	var b strings.Builder
	b.WriteString(name)
	if d.Specialization != "" {
		b.WriteString(" — ")
		b.WriteString(d.Specialization)
	}
	if d.Hospital != "" {
		fmt.Fprintf(&b, " (%s)", d.Hospital)
	}
	return b.String()
}

// NormalizeRemedies strips emphasis markers, unifies bullet symbols and
// re-segments the text. If any line is dash-prefixed every line becomes an
// item; otherwise the lines are kept as paragraphs.
func NormalizeRemedies(raw string) *RemedyText {
	text := strings.TrimSpace(raw)
	if text == "" {
		return &RemedyText{Note: NoRemediesAvailable}
	}

	text = strings.ReplaceAll(text, "**", "")
	for _, sym := range bulletSymbols {
		text = strings.ReplaceAll(text, sym, "\n- ")
	}

	var lines []string
	bulleted := false
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		if strings.HasPrefix(ln, "-") {
			bulleted = true
		}
		lines = append(lines, ln)
	}
	if len(lines) == 0 {
		return &RemedyText{Note: NoRemediesAvailable}
	}

	if !bulleted {
		return &RemedyText{Paragraphs: lines}
	}

	items := make([]string, 0, len(lines))
	for _, ln := range lines {
		if item := strings.TrimSpace(strings.TrimLeft(ln, "- ")); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return &RemedyText{Note: NoRemediesAvailable}
	}
	return &RemedyText{Items: items}
}

func UnavailableRemedies() *RemedyText {
	return &RemedyText{Unavailable: true, Note: RemediesUnavailable}
}

func renderSection(b *strings.Builder, s *Section) {
	b.WriteString(s.Title)
	b.WriteString(":\n")
	if s.NoneListed {
		b.WriteString("- ")
		b.WriteString(NoneListed)
		b.WriteString("\n")
		return
	}
	for _, item := range s.Items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func renderRemedies(b *strings.Builder, r *RemedyText) {
	switch {
	case len(r.Items) > 0:
		for _, item := range r.Items {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	case len(r.Paragraphs) > 0:
		b.WriteString(strings.Join(r.Paragraphs, "\n"))
		b.WriteString("\n")
	default:
		b.WriteString(r.Note)
		b.WriteString("\n")
	}
}

// Render fills r.Text with the plain-text form shared by every channel.
func (r *Reply) Render(message string) *Reply {
	if message != "" {
		r.Text = message
		return r
	}

	var b strings.Builder
	if r.Kind == models.ReplyPrediction {
		fmt.Fprintf(&b, "Predicted Condition: %s\n\n", r.Disease)
		b.WriteString("Remedies:\n")
		renderRemedies(&b, r.Remedies)
		b.WriteString("\n")
		b.WriteString(r.Question)
		r.Text = b.String()
		return r
	}

	if r.Medicines != nil {
		renderSection(&b, r.Medicines)
	}
	if r.Doctors != nil {
		if r.Medicines != nil {
			b.WriteString("\n")
		}
		renderSection(&b, r.Doctors)
	}
	r.Text = strings.TrimRight(b.String(), "\n")
	return r
}

// LookupReply answers a direct disease request with the sections the
// intent asks for. Anything other than medicine or doctor gets both.
func LookupReply(rec *catalog.Disease, intent models.MessageIntent) *Reply {
	r := &Reply{Disease: rec.Name, Intent: intent}
	switch intent {
	case models.IntentMedicine:
		r.Kind = models.ReplyMedicines
		r.Medicines = MedicineSection(rec)
	case models.IntentDoctor:
		r.Kind = models.ReplyDoctors
		r.Doctors = DoctorSection(rec)
	default:
		r.Kind = models.ReplyBoth
		r.Intent = models.IntentBoth
		r.Medicines = MedicineSection(rec)
		r.Doctors = DoctorSection(rec)
	}
	return r.Render("")
}

func PredictionReply(rec *catalog.Disease, remedies *RemedyText) *Reply {
	r := &Reply{
		Kind:     models.ReplyPrediction,
		Intent:   models.IntentNone,
		Disease:  rec.Name,
		Remedies: remedies,
		Question: SlotQuestion,
	}
	return r.Render("")
}

func MessageReply(kind models.ReplyKind, intent models.MessageIntent, message string) *Reply {
	r := &Reply{Kind: kind, Intent: intent}
	return r.Render(message)
}
