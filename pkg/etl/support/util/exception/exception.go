// Package exception provides the custom error type and error classification
// utilities for the PreDMS migration pipeline. Every failure raised while
// executing a pipeline step carries an explicit classification (transient,
// permanent or configuration) which the retry machinery consults instead of
// matching on raw driver errors.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"sync"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Classification is the failure category of an error raised during a
// pipeline run.
type Classification string

const (
	// ClassTransient marks errors expected to resolve on retry: lock waits,
	// deadlocks, dropped connections.
	ClassTransient Classification = "TRANSIENT"
	// ClassPermanent marks errors retry cannot fix: syntax errors, constraint
	// violations, missing tables, authentication failures.
	ClassPermanent Classification = "PERMANENT"
	// ClassConfig marks malformed or missing configuration detected before
	// any step executes.
	ClassConfig Classification = "CONFIG"
)

// String returns the string representation of the Classification.
func (c Classification) String() string {
	return string(c)
}

// ETLError is a custom error raised during pipeline execution. It holds the
// module where the error occurred, a message, the wrapped original error and
// the failure classification.
type ETLError struct {
	// Module indicates the component where the error occurred
	// (e.g. "step", "retry", "orchestrator", "config").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// class is the failure classification of this error.
	class Classification
}

// NewETLError creates a new ETLError instance.
func NewETLError(module, message string, originalErr error, class Classification) *ETLError {
	return &ETLError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		class:       class,
	}
}

// NewConfigError creates an ETLError with the CONFIG classification.
// Configuration errors abort a run before any step executes.
func NewConfigError(module, format string, a ...interface{}) *ETLError {
	return &ETLError{
		Module:  module,
		Message: fmt.Sprintf(format, a...),
		class:   ClassConfig,
	}
}

// Error implements the error interface.
func (e *ETLError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *ETLError) Unwrap() error {
	return e.OriginalErr
}

// Class returns the failure classification of this error.
func (e *ETLError) Class() Classification {
	return e.class
}

// IsTransient reports whether this error is classified as transient.
func (e *ETLError) IsTransient() bool {
	return e.class == ClassTransient
}

// errorRegistry maps error names referenced in configuration to concrete Go
// error instances, compared with errors.Is.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers an error prototype under a name. Registered
// names may be listed in the retry policy's retryable_exceptions setting.
// Panics if name is empty or prototype is nil.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// IsErrorOfType checks if an error matches a named type. The name can be a
// registered sentinel (compared with errors.Is), a substring of an error
// message, or a Go type name. The whole error chain is traversed.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()

	if ok && errors.Is(err, targetError) {
		return true
	}

	currentErr := err
	for currentErr != nil {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}

		errType := reflect.TypeOf(currentErr)
		if errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}

		currentErr = errors.Unwrap(currentErr)
	}

	return false
}

// Classifier decides the failure classification of an arbitrary error.
// The retry policy holds one, so retry behavior is testable without a real
// database driver.
type Classifier func(err error) Classification

// transientMySQLCodes are MySQL server error numbers expected to resolve on
// retry: lock wait timeout, deadlock, server gone away, lost connection.
var transientMySQLCodes = map[uint16]bool{
	1205: true,
	1213: true,
	2006: true,
	2013: true,
}

// transientPgCodes are Postgres SQLSTATE codes expected to resolve on retry:
// serialization failure, deadlock detected, lock not available.
var transientPgCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
}

// DefaultClassifier is the standard Classifier. An existing ETLError keeps
// its classification; driver errors are classified by error code; network
// errors are transient; everything unknown is permanent so that a novel
// failure is never retried blindly.
func DefaultClassifier(err error) Classification {
	if err == nil {
		return ClassPermanent
	}

	var etlErr *ETLError
	if errors.As(err, &etlErr) {
		return etlErr.Class()
	}

	// Statement timeouts are classified by the retry policy, which knows
	// whether the run opted into retrying them. Default to permanent here.
	if IsStatementTimeout(err) {
		return ClassPermanent
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		if transientMySQLCodes[myErr.Number] {
			return ClassTransient
		}
		return ClassPermanent
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientPgCodes[pgErr.Code] {
			return ClassTransient
		}
		return ClassPermanent
	}

	if errors.Is(err, mysqldriver.ErrInvalidConn) {
		return ClassTransient
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") {
		return ClassTransient
	}

	return ClassPermanent
}

// IsStatementTimeout reports whether an error represents a statement-level
// timeout: a cancelled statement context, or the Postgres query_canceled
// SQLSTATE raised when statement_timeout fires server side.
func IsStatementTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "57014" {
		return true
	}
	return false
}

// IsConfigError reports whether an error carries the CONFIG classification.
func IsConfigError(err error) bool {
	var etlErr *ETLError
	if errors.As(err, &etlErr) {
		return etlErr.Class() == ClassConfig
	}
	return false
}

// ExtractErrorMessage extracts a display message from an error. For ETLError
// it returns the cleaner Message field; otherwise the standard Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var etlErr *ETLError
	if errors.As(err, &etlErr) {
		return etlErr.Message
	}
	return err.Error()
}

func init() {
	// Register sentinel errors so configuration can name them.
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
	RegisterErrorType("sql.ErrConnDone", sql.ErrConnDone)
	RegisterErrorType("mysql.ErrInvalidConn", mysqldriver.ErrInvalidConn)
}
