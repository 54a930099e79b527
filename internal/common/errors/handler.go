// internal/common/errors/handler.go
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Presenter turns errors into the single user-visible banner line and logs
// them with their standardized code.
type Presenter struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewPresenter(logger Logger) *Presenter {
	return &Presenter{logger: logger}
}

// Banner logs err and returns the dismissible one-line message for it.
func (p *Presenter) Banner(op string, err error) string {
	stdErr := p.normalizeError(err)
	p.logError(op, stdErr)

	if stdErr.Details != "" && stdErr.Code != ErrCodeInternal {
		return fmt.Sprintf("%s failed: %s (%s)", op, stdErr.Message, stdErr.Details)
	}
	if stdErr.Code == ErrCodeInternal {
		return fmt.Sprintf("%s failed: %s", op, stdErr.Details)
	}
	return fmt.Sprintf("%s failed: %s", op, stdErr.Message)
}

// normalizeError ensures we always have a StandardError
func (p *Presenter) normalizeError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func (p *Presenter) logError(op string, stdErr *StandardError) {
	if p.logger == nil {
		return
	}
	p.logger.Error("operation failed", map[string]interface{}{
		"op":        op,
		"errorCode": string(stdErr.Code),
		"message":   stdErr.Message,
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
		"fatal":     IsFatal(stdErr.Code),
	})
}
