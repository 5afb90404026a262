package recovery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flowforge-io/flowforge/internal/domain"
)

// Rule maps a class of errors onto a category and severity. Rules are
// consulted in registration order; the first match wins.
type Rule struct {
	Match    func(err error) bool
	Category domain.ErrorCategory
	Level    domain.ErrorLevel
}

// Policy bounds the retry behaviour the handler may select.
type Policy struct {
	MaxRetries int
}

// Handler is the pure classify/decide pair behind every recovery choice.
// It holds no per-run state; the scheduler records and logs the outcome
// per node.
type Handler struct {
	rules  []Rule
	policy Policy
	logger *slog.Logger
}

func New(policy Policy, logger *slog.Logger) *Handler {
	h := &Handler{
		policy: policy,
		logger: logger.With("component", "error-handler"),
	}
	h.rules = defaultRules()
	return h
}

// RegisterRule prepends a custom classification rule so callers can
// override the defaults for their own error types.
func (h *Handler) RegisterRule(rule Rule) {
	h.rules = append([]Rule{rule}, h.rules...)
}

func defaultRules() []Rule {
	return []Rule{
		{
			Match: func(err error) bool {
				var pe *domain.NodePanicError
				return errors.As(err, &pe)
			},
			Category: domain.CategoryRuntime,
			Level:    domain.LevelCritical,
		},
		{
			Match: func(err error) bool {
				return errors.Is(err, domain.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
			},
			Category: domain.CategoryResource,
			Level:    domain.LevelError,
		},
		{
			Match: func(err error) bool {
				var pve *domain.ParameterValidationError
				var dve *domain.DataValidationError
				return domain.IsValidationError(err) ||
					errors.Is(err, domain.ErrInvalidInput) ||
					errors.Is(err, domain.ErrBufferedMissing) ||
					errors.As(err, &pve) ||
					errors.As(err, &dve)
			},
			Category: domain.CategoryValidation,
			Level:    domain.LevelError,
		},
	}
}

// Classify maps a node failure onto (category, level). Unmatched errors
// default to a runtime error.
func (h *Handler) Classify(err error) (domain.ErrorCategory, domain.ErrorLevel) {
	for _, rule := range h.rules {
		if rule.Match(err) {
			return rule.Category, rule.Level
		}
	}
	return domain.CategoryRuntime, domain.LevelError
}

// Decide selects the recovery action. Critical failures always abort the
// run; resource and runtime failures retry while attempts remain; every
// other failure skips the node so independent branches can proceed.
func (h *Handler) Decide(category domain.ErrorCategory, level domain.ErrorLevel, attempt int) domain.RecoveryStrategy {
	if level == domain.LevelCritical {
		return domain.RecoveryAbort
	}
	if (category == domain.CategoryResource || category == domain.CategoryRuntime) && attempt < h.policy.MaxRetries {
		return domain.RecoveryRetry
	}
	return domain.RecoverySkip
}
