package accountmerge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/lib/pq"
)

// ErrorCode tags every error the engine returns
type ErrorCode string

const (
	CodeSameUser               ErrorCode = "SAME_USER"
	CodeTargetNotFound         ErrorCode = "TARGET_NOT_FOUND"
	CodeSourceNotFound         ErrorCode = "SOURCE_NOT_FOUND"
	CodeAdminNotFound          ErrorCode = "ADMIN_NOT_FOUND"
	CodeAdminNotAuthorized     ErrorCode = "ADMIN_NOT_AUTHORIZED"
	CodeUserDeletedDuringMerge ErrorCode = "USER_DELETED_DURING_MERGE"
	CodeTransactionFailed      ErrorCode = "TRANSACTION_FAILED"
)

// postgres SQLSTATE codes the classifier recognises
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
	pqQueryCanceled       = "57014"
	pqSerializationFailed = "40001"
	pqDeadlockDetected    = "40P01"
)

// MergeError is returned by Preview and Execute. Codes other than TRANSACTION_FAILED are
// expected outcomes detected before or instead of a mutation; TRANSACTION_FAILED wraps a
// storage fault and keeps it as Cause.
type MergeError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

var (
	ErrSameUser               = &MergeError{Code: CodeSameUser, Message: "cannot merge an account into itself"}
	ErrTargetNotFound         = &MergeError{Code: CodeTargetNotFound, Message: "target account not found"}
	ErrSourceNotFound         = &MergeError{Code: CodeSourceNotFound, Message: "source account not found"}
	ErrAdminNotFound          = &MergeError{Code: CodeAdminNotFound, Message: "acting admin account not found"}
	ErrAdminNotAuthorized     = &MergeError{Code: CodeAdminNotAuthorized, Message: "acting account is not an admin"}
	ErrUserDeletedDuringMerge = &MergeError{Code: CodeUserDeletedDuringMerge, Message: "an account was deleted while the merge was starting, please retry"}
	ErrTransactionFailed      = &MergeError{Code: CodeTransactionFailed, Message: "merge transaction failed"}
)

func newMergeError(sentinel *MergeError, message string) *MergeError {
	if message == "" {
		message = sentinel.Message
	}
	return &MergeError{Code: sentinel.Code, Message: message}
}

func newTransactionFailed(message string, cause error) *MergeError {
	return &MergeError{Code: CodeTransactionFailed, Message: message, Cause: cause}
}

func (e *MergeError) Error() string {
	return e.Message
}

func (e *MergeError) Unwrap() error {
	return e.Cause
}

// Is matches any MergeError with the same code, so errors.Is(err, ErrSameUser) works on fresh instances.
func (e *MergeError) Is(target error) bool {
	t, ok := target.(*MergeError)
	return ok && t.Code == e.Code
}

// IsInfrastructure reports whether the error wraps a storage fault rather than an expected outcome.
func (e *MergeError) IsInfrastructure() bool {
	return e.Code == CodeTransactionFailed
}

// Retryable reports whether retrying the same request without human review is reasonable.
func (e *MergeError) Retryable() bool {
	return e.Code == CodeUserDeletedDuringMerge
}

// StatusCode maps the error code onto an HTTP status
func (e *MergeError) StatusCode() int {
	switch e.Code {
	case CodeSameUser:
		return http.StatusBadRequest
	case CodeTargetNotFound, CodeSourceNotFound:
		return http.StatusNotFound
	case CodeAdminNotFound, CodeAdminNotAuthorized:
		return http.StatusForbidden
	case CodeUserDeletedDuringMerge:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (e *MergeError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(e.StatusCode(), e.Error()).AddMetaValue("code", string(e.Code))
}

// AsMergeError returns the MergeError in err's chain, if any
func AsMergeError(err error) (*MergeError, bool) {
	var mergeErr *MergeError
	if errors.As(err, &mergeErr) {
		return mergeErr, true
	}
	return nil, false
}

// ErrorCodeOf returns the code of err, or "" for nil and "TRANSACTION_FAILED" for untyped errors.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if mergeErr, ok := AsMergeError(err); ok {
		return mergeErr.Code
	}
	return CodeTransactionFailed
}

// classifyError turns anything raised while talking to the store into a MergeError.
// MergeErrors raised on purpose pass through unchanged.
func classifyError(err error) *MergeError {
	if err == nil {
		return nil
	}

	if mergeErr, ok := AsMergeError(err); ok {
		return mergeErr
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqForeignKeyViolation:
			return foreignKeyFailure(err)
		case pqUniqueViolation:
			return uniqueFailure(err)
		case pqQueryCanceled:
			return timeoutFailure(err)
		case pqSerializationFailed, pqDeadlockDetected:
			return newTransactionFailed("merge failed: the accounts changed while merging, please retry", err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutFailure(err)
	}

	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "foreign key"):
		return foreignKeyFailure(err)
	case strings.Contains(message, "unique constraint"), strings.Contains(message, "duplicate key"):
		return uniqueFailure(err)
	case strings.Contains(message, "timeout"), strings.Contains(message, "timed out"), strings.Contains(message, "canceling statement"):
		return timeoutFailure(err)
	}

	return newTransactionFailed(fmt.Sprintf("merge transaction failed: %s", err.Error()), err)
}

func foreignKeyFailure(err error) *MergeError {
	return newTransactionFailed("merge failed: some references could not be transferred", err)
}

func uniqueFailure(err error) *MergeError {
	return newTransactionFailed("merge failed: duplicate conflict detected, please retry", err)
}

func timeoutFailure(err error) *MergeError {
	return newTransactionFailed("merge failed: the accounts have too much data to merge in time, contact support", err)
}
