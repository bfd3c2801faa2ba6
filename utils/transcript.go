package utils

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"mindcare-chatbot-backend/models"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

// TranscriptText renders one "[timestamp] Role: text" line per message.
func TranscriptText(messages []models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(transcriptLine(m))
		b.WriteByte('\n')
	}
	return b.String()
}

// TranscriptPDF renders the same lines as an A4 document using the core
// Helvetica font, so no font files are needed at runtime.
func TranscriptPDF(title string, messages []models.Message) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	if len(messages) == 0 {
		pdf.MultiCell(0, 6, "No messages.", "", "L", false)
	}
	for _, m := range messages {
		pdf.MultiCell(0, 6, tr(transcriptLine(m)), "", "L", false)
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func transcriptLine(m models.Message) string {
	return fmt.Sprintf("[%s] %s: %s", m.Timestamp.Format(transcriptTimeLayout), roleLabel(m.Role), m.Text)
}

func roleLabel(role models.Role) string {
	s := string(role)
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
