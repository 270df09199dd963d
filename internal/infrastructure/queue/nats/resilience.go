package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/doc-triage/internal/infrastructure/resilience"
)

// connectionErrors are the client states a reconnect can clear.
func connectionErrors(err error) (resilience.ErrorClassification, bool) {
	for _, target := range []error{nats.ErrNoServers, nats.ErrTimeout, nats.ErrConnectionClosed, nats.ErrDisconnected, nats.ErrConnectionReconnecting} {
		if errors.Is(err, target) {
			return resilience.Transient, true
		}
	}
	return resilience.ErrorClassification{}, false
}

func classifyNATSError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, connectionErrors)
}
