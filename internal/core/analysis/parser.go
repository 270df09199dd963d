// Package analysis turns raw model output into a domain.AnalysisResult.
// All leniency toward malformed output lives here; callers only ever see
// the strict structure.
package analysis

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

const (
	DefaultSummary      = "No summary available."
	DefaultDocumentType = "Unknown"
	DefaultDepartment   = "General"
	DefaultUrgency      = 50
	DefaultImportance   = 50
	DefaultConfidence   = 70

	fallbackSummaryRunes = 200
)

var (
	fencePattern   = regexp.MustCompile("```(?:json|JSON)?\\s*|\\s*```")
	objectPattern  = regexp.MustCompile(`(?s)\{.*\}`)
	summaryPattern = regexp.MustCompile(`"summary"\s*:\s*"([^"]+)"`)
)

// Parse never fails: output that is not a JSON object degrades to a
// default-filled result.
func Parse(raw string) domain.AnalysisResult {
	clean := strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))

	if obj, ok := decodeObject(clean); ok {
		return fromObject(obj)
	}
	return Fallback(raw)
}

// Fallback builds the deterministic result used when no JSON object can be
// decoded from raw.
func Fallback(raw string) domain.AnalysisResult {
	var summary string
	if m := summaryPattern.FindStringSubmatch(raw); m != nil {
		summary = m[1]
	} else {
		summary = truncateRunes(raw, fallbackSummaryRunes) + "..."
	}
	return domain.AnalysisResult{
		Summary:                summary,
		DocumentType:           DefaultDocumentType,
		UrgencyScore:           DefaultUrgency,
		ImportanceScore:        DefaultImportance,
		DepartmentsResponsible: []string{DefaultDepartment},
		KeyFindings:            []string{},
		Confidence:             DefaultConfidence,
	}
}

func decodeObject(clean string) (map[string]any, bool) {
	if match := objectPattern.FindString(clean); match != "" {
		if obj, ok := strictObject(match); ok {
			return obj, true
		}
	}
	return strictObject(clean)
}

func strictObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func fromObject(obj map[string]any) domain.AnalysisResult {
	result := domain.AnalysisResult{
		Summary:                stringField(obj, "summary"),
		DocumentType:           stringField(obj, "document_type"),
		UrgencyScore:           scoreField(obj, "urgency_score", DefaultUrgency),
		ImportanceScore:        scoreField(obj, "importance_score", DefaultImportance),
		DepartmentsResponsible: listField(obj, "departments_responsible"),
		KeyFindings:            listField(obj, "key_findings"),
		Confidence:             scoreField(obj, "confidence", DefaultConfidence),
	}
	if result.Summary == "" {
		result.Summary = DefaultSummary
	}
	if result.DocumentType == "" {
		result.DocumentType = DefaultDocumentType
	}
	if len(result.DepartmentsResponsible) == 0 {
		result.DepartmentsResponsible = []string{DefaultDepartment}
	}
	return result
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// scoreField accepts numbers or numeric strings, clamped to [0,100].
func scoreField(obj map[string]any, key string, fallback float64) float64 {
	var score float64
	switch v := obj[key].(type) {
	case float64:
		score = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		if err != nil {
			return fallback
		}
		score = parsed
	default:
		return fallback
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fallback
	}
	return math.Max(0, math.Min(100, score))
}

func listField(obj map[string]any, key string) []string {
	out := []string{}
	switch v := obj[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
