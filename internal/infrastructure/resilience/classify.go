package resilience

import (
	"context"
	"errors"
	"net"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

var (
	// Transient failures are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Permanent failures count against the breaker but are not retried.
	Permanent = ErrorClassification{RecordFailure: true}
	// Rejected failures are the caller's fault: no retry, breaker untouched.
	Rejected = ErrorClassification{}
)

// Rule classifies the errors it recognizes and reports ok=false otherwise.
type Rule func(err error) (class ErrorClassification, ok bool)

// Classify applies the rules in order. Cancellation and an open breaker are
// handled before any rule; an error no rule recognizes is Permanent.
func Classify(err error, rules ...Rule) ErrorClassification {
	switch {
	case err == nil:
		return Rejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Rejected
	case IsCircuitOpen(err):
		return Transient
	}
	for _, rule := range rules {
		if class, ok := rule(err); ok {
			return class
		}
	}
	return Permanent
}

// NetworkErrors treats dial and socket failures as transient.
func NetworkErrors(err error) (ErrorClassification, bool) {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient, true
	}
	return ErrorClassification{}, false
}

// MarkTemporary adds the temporary kind to err when the rules say another
// attempt could succeed.
func MarkTemporary(operation string, err error, rules ...Rule) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if !Classify(err, rules...).Retryable {
		return err
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}
