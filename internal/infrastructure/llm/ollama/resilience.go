package ollama

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx reply from the Ollama API.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("ollama %s: http %d", e.Operation, e.StatusCode)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

// statusErrors retries overload and gateway replies. Other statuses mean
// the request itself is wrong (unknown model, bad payload) and must not trip
// the breaker.
func statusErrors(err error) (resilience.ErrorClassification, bool) {
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return resilience.ErrorClassification{}, false
	}
	switch statusErr.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return resilience.Transient, true
	default:
		return resilience.Rejected, true
	}
}

func classifyOllamaError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, statusErrors, resilience.NetworkErrors)
}

// wrapAnalysisError marks every invoker failure as an analysis error and
// additionally as temporary when another attempt could succeed.
func wrapAnalysisError(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrAnalysis) {
		return err
	}
	return domain.WrapError(domain.ErrAnalysis, operation,
		resilience.MarkTemporary(operation, err, statusErrors, resilience.NetworkErrors))
}
