package domain

import (
	"fmt"
	"time"
)

// CanStartAnalysis reports whether a document in status s may move to
// processing. A processing document whose lease is older than staleBefore is
// considered abandoned and may be taken over.
func CanStartAnalysis(s DocumentStatus, updatedAt, staleBefore time.Time) bool {
	switch s {
	case StatusPending:
		return true
	case StatusProcessing:
		return updatedAt.Before(staleBefore)
	default:
		return false
	}
}

func CanAssign(s DocumentStatus) bool {
	return s == StatusAnalyzed || s == StatusAssigned
}

// AdminTargetStatuses are the statuses an admin may set explicitly.
func IsAdminTargetStatus(s DocumentStatus) bool {
	return s == StatusCompleted || s == StatusDeleted || s == StatusIgnored
}

// AllowedSourcesFor lists the statuses from which an explicit admin
// transition to target is permitted.
func AllowedSourcesFor(target DocumentStatus) []DocumentStatus {
	switch target {
	case StatusCompleted:
		return []DocumentStatus{StatusPending, StatusProcessing, StatusAnalyzed, StatusAssigned, StatusIgnored, StatusCompleted}
	case StatusIgnored:
		return []DocumentStatus{StatusPending, StatusProcessing, StatusAnalyzed, StatusAssigned, StatusIgnored}
	case StatusDeleted:
		return []DocumentStatus{StatusPending, StatusProcessing, StatusAnalyzed, StatusAssigned, StatusIgnored, StatusCompleted}
	default:
		return nil
	}
}

func CheckAdminTransition(from, to DocumentStatus) error {
	if !IsAdminTargetStatus(to) {
		return WrapError(ErrInvalidInput, "check transition", fmt.Errorf("status %q cannot be set explicitly", to))
	}
	for _, s := range AllowedSourcesFor(to) {
		if s == from {
			return nil
		}
	}
	return WrapError(ErrConflict, "check transition", fmt.Errorf("%s -> %s is not allowed", from, to))
}
