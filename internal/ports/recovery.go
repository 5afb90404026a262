package ports

import (
	"github.com/flowforge-io/flowforge/internal/domain"
)

// ErrorHandlerPort classifies node failures and selects the recovery
// action. Both methods are pure decisions; the scheduler applies them.
type ErrorHandlerPort interface {
	Classify(err error) (domain.ErrorCategory, domain.ErrorLevel)
	Decide(category domain.ErrorCategory, level domain.ErrorLevel, attempt int) domain.RecoveryStrategy
}
