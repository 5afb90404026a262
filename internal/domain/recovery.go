package domain

// ErrorCategory groups node failures by their origin. The error handler
// maps every failure to exactly one category.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryResource   ErrorCategory = "resource"
	CategoryExternal   ErrorCategory = "external"
)

type ErrorLevel string

const (
	LevelWarning  ErrorLevel = "warning"
	LevelError    ErrorLevel = "error"
	LevelCritical ErrorLevel = "critical"
)

// RecoveryStrategy is the action the scheduler takes after a classified
// node failure.
type RecoveryStrategy string

const (
	RecoveryRetry RecoveryStrategy = "retry"
	RecoverySkip  RecoveryStrategy = "skip"
	RecoveryAbort RecoveryStrategy = "abort"
)

// RecoveryDecision is the structured record of one classify/decide round.
// Every decision is kept on the run handle, recovered or not.
type RecoveryDecision struct {
	NodeID   string           `json:"node_id"`
	Category ErrorCategory    `json:"category"`
	Level    ErrorLevel       `json:"level"`
	Strategy RecoveryStrategy `json:"strategy"`
	Attempt  int              `json:"attempt"`
	Message  string           `json:"message"`
}
