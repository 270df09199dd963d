package ollama

import (
	"github.com/kirillkom/doc-triage/internal/core/domain"
)

const resultShape = `Return ONLY a JSON object with keys:
summary (string), document_type (string), key_findings (array of strings),
urgency_score (number 0-100), importance_score (number 0-100),
departments_responsible (array of department names), confidence (number 0-100).
No markdown, no extra keys.`

func buildTextPrompt(text string, maxChars int) string {
	return `You are a document triage assistant for an organization.
Analyze the document below. ` + resultShape + `

Document text:
` + truncateRunes(text, maxChars)
}

func buildImagePrompt(hint domain.TaskHint) string {
	if hint == domain.TaskOCRScannedPDF {
		return `You are a document triage assistant for an organization.
The attached images are the pages of one scanned PDF, in order.
Perform OCR on every page and analyze the whole document. ` + resultShape
	}
	return `You are a document triage assistant for an organization.
Analyze the attached image, reading any text in it (OCR if needed). ` + resultShape
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
