package recovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowforge-io/flowforge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify(t *testing.T) {
	h := New(Policy{MaxRetries: 3}, testLogger())

	tests := []struct {
		name     string
		err      error
		category domain.ErrorCategory
		level    domain.ErrorLevel
	}{
		{
			name:     "panic is critical runtime",
			err:      domain.NewNodePanicError("run_1", "node-a", "nil map write"),
			category: domain.CategoryRuntime,
			level:    domain.LevelCritical,
		},
		{
			name:     "timeout is a resource error",
			err:      fmt.Errorf("node node-a exceeded 5s: %w", domain.ErrTimeout),
			category: domain.CategoryResource,
			level:    domain.LevelError,
		},
		{
			name:     "deadline exceeded is a resource error",
			err:      context.DeadlineExceeded,
			category: domain.CategoryResource,
			level:    domain.LevelError,
		},
		{
			name:     "parameter validation",
			err:      &domain.ParameterValidationError{NodeID: "node-a", Parameter: "limit", Message: "must be a number"},
			category: domain.CategoryValidation,
			level:    domain.LevelError,
		},
		{
			name: "data validation",
			err: &domain.DataValidationError{
				NodeID: "node-a", Port: "rows",
				Expected: domain.DataTypeTable, Actual: domain.DataTypeText,
			},
			category: domain.CategoryValidation,
			level:    domain.LevelError,
		},
		{
			name:     "rejected inputs",
			err:      fmt.Errorf("node node-a rejected inputs: %w", domain.ErrInvalidInput),
			category: domain.CategoryValidation,
			level:    domain.LevelError,
		},
		{
			name:     "missing buffered input",
			err:      fmt.Errorf("input node-a.rows: %w", domain.ErrBufferedMissing),
			category: domain.CategoryValidation,
			level:    domain.LevelError,
		},
		{
			name:     "anything else is a runtime error",
			err:      errors.New("connection reset by peer"),
			category: domain.CategoryRuntime,
			level:    domain.LevelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, level := h.Classify(tt.err)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.level, level)
		})
	}
}

func TestDecide(t *testing.T) {
	h := New(Policy{MaxRetries: 3}, testLogger())

	// critical always aborts, regardless of attempt count
	assert.Equal(t, domain.RecoveryAbort, h.Decide(domain.CategoryRuntime, domain.LevelCritical, 1))
	assert.Equal(t, domain.RecoveryAbort, h.Decide(domain.CategoryValidation, domain.LevelCritical, 1))

	// runtime and resource errors retry while under the ceiling
	assert.Equal(t, domain.RecoveryRetry, h.Decide(domain.CategoryRuntime, domain.LevelError, 1))
	assert.Equal(t, domain.RecoveryRetry, h.Decide(domain.CategoryResource, domain.LevelError, 2))

	// at the ceiling they skip
	assert.Equal(t, domain.RecoverySkip, h.Decide(domain.CategoryRuntime, domain.LevelError, 3))
	assert.Equal(t, domain.RecoverySkip, h.Decide(domain.CategoryResource, domain.LevelError, 4))

	// validation and external failures never retry
	assert.Equal(t, domain.RecoverySkip, h.Decide(domain.CategoryValidation, domain.LevelError, 1))
	assert.Equal(t, domain.RecoverySkip, h.Decide(domain.CategoryExternal, domain.LevelWarning, 1))
}

func TestDecideNoRetryBudget(t *testing.T) {
	h := New(Policy{MaxRetries: 0}, testLogger())
	assert.Equal(t, domain.RecoverySkip, h.Decide(domain.CategoryRuntime, domain.LevelError, 1))
}

func TestRegisterRuleTakesPrecedence(t *testing.T) {
	h := New(Policy{MaxRetries: 3}, testLogger())

	sentinel := errors.New("quota exhausted")
	h.RegisterRule(Rule{
		Match:    func(err error) bool { return errors.Is(err, sentinel) },
		Category: domain.CategoryExternal,
		Level:    domain.LevelWarning,
	})

	category, level := h.Classify(fmt.Errorf("calling api: %w", sentinel))
	assert.Equal(t, domain.CategoryExternal, category)
	assert.Equal(t, domain.LevelWarning, level)
}
