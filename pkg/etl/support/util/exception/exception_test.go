// Package exception_test provides unit tests for error classification and
// the error type registry.
package exception_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
)

func TestETLError_WrapsAndClassifies(t *testing.T) {
	cause := errors.New("duplicate entry '42' for key 'PRIMARY'")
	err := exception.NewETLError("step", "batch 2/3 failed", cause, exception.ClassPermanent)

	assert.Equal(t, exception.ClassPermanent, err.Class())
	assert.False(t, err.IsTransient())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[step]")
	assert.Contains(t, err.Error(), "batch 2/3 failed")
}

func TestNewConfigError(t *testing.T) {
	err := exception.NewConfigError("config", "retry.max_attempts must be >= 1, got %d", 0)
	assert.Equal(t, exception.ClassConfig, err.Class())
	assert.True(t, exception.IsConfigError(err))
	assert.True(t, exception.IsConfigError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, exception.IsConfigError(errors.New("plain")))
}

func TestDefaultClassifier_PreservesETLErrorClass(t *testing.T) {
	inner := exception.NewETLError("retry", "exhausted", errors.New("deadlock"), exception.ClassTransient)
	wrapped := fmt.Errorf("run failed: %w", inner)
	assert.Equal(t, exception.ClassTransient, exception.DefaultClassifier(wrapped))
}

func TestDefaultClassifier_MySQLCodes(t *testing.T) {
	cases := map[uint16]exception.Classification{
		1205: exception.ClassTransient, // lock wait timeout
		1213: exception.ClassTransient, // deadlock
		2006: exception.ClassTransient, // server has gone away
		2013: exception.ClassTransient, // lost connection
		1064: exception.ClassPermanent, // syntax error
		1062: exception.ClassPermanent, // duplicate entry
		1146: exception.ClassPermanent, // table doesn't exist
		1045: exception.ClassPermanent, // access denied
	}
	for code, want := range cases {
		err := &mysqldriver.MySQLError{Number: code}
		assert.Equal(t, want, exception.DefaultClassifier(err), "MySQL code %d", code)
	}
}

func TestDefaultClassifier_PostgresCodes(t *testing.T) {
	cases := map[string]exception.Classification{
		"40001": exception.ClassTransient,
		"40P01": exception.ClassTransient,
		"55P03": exception.ClassTransient,
		"42601": exception.ClassPermanent,
		"23505": exception.ClassPermanent,
		"28P01": exception.ClassPermanent,
	}
	for code, want := range cases {
		err := &pgconn.PgError{Code: code}
		assert.Equal(t, want, exception.DefaultClassifier(err), "SQLSTATE %s", code)
	}
}

func TestDefaultClassifier_NetworkErrorsTransient(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	assert.Equal(t, exception.ClassTransient, exception.DefaultClassifier(opErr))
	assert.Equal(t, exception.ClassTransient, exception.DefaultClassifier(errors.New("read tcp: connection reset by peer")))
	assert.Equal(t, exception.ClassTransient, exception.DefaultClassifier(mysqldriver.ErrInvalidConn))
}

func TestDefaultClassifier_UnknownErrorsPermanent(t *testing.T) {
	assert.Equal(t, exception.ClassPermanent, exception.DefaultClassifier(errors.New("something novel")))
}

func TestDefaultClassifier_StatementTimeoutPermanentByDefault(t *testing.T) {
	assert.Equal(t, exception.ClassPermanent, exception.DefaultClassifier(context.DeadlineExceeded))
	assert.Equal(t, exception.ClassPermanent, exception.DefaultClassifier(&pgconn.PgError{Code: "57014"}))
}

func TestIsStatementTimeout(t *testing.T) {
	assert.True(t, exception.IsStatementTimeout(context.DeadlineExceeded))
	assert.True(t, exception.IsStatementTimeout(fmt.Errorf("exec: %w", context.DeadlineExceeded)))
	assert.True(t, exception.IsStatementTimeout(&pgconn.PgError{Code: "57014"}))
	assert.False(t, exception.IsStatementTimeout(context.Canceled))
	assert.False(t, exception.IsStatementTimeout(nil))
}

func TestErrorRegistry(t *testing.T) {
	assert.True(t, exception.IsErrorTypeRegistered("sql.ErrConnDone"))
	assert.True(t, exception.IsErrorTypeRegistered("mysql.ErrInvalidConn"))
	assert.False(t, exception.IsErrorTypeRegistered("no.SuchError"))

	sentinel := errors.New("custom sentinel")
	exception.RegisterErrorType("test.Sentinel", sentinel)
	require.True(t, exception.IsErrorTypeRegistered("test.Sentinel"))
	assert.True(t, exception.IsErrorOfType(fmt.Errorf("wrapped: %w", sentinel), "test.Sentinel"))
}

func TestIsErrorOfType_ChainTraversal(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", sql.ErrConnDone)
	assert.True(t, exception.IsErrorOfType(wrapped, "sql.ErrConnDone"))
	assert.False(t, exception.IsErrorOfType(nil, "sql.ErrConnDone"))

	// Matching by Go type name works for driver error structs.
	myErr := &mysqldriver.MySQLError{Number: 1205, Message: "lock wait timeout"}
	assert.True(t, exception.IsErrorOfType(myErr, "mysql.MySQLError"))
}

func TestExtractErrorMessage(t *testing.T) {
	etlErr := exception.NewETLError("step", "batch failed", errors.New("boom"), exception.ClassPermanent)
	assert.Equal(t, "batch failed", exception.ExtractErrorMessage(fmt.Errorf("w: %w", etlErr)))
	assert.Equal(t, "plain", exception.ExtractErrorMessage(errors.New("plain")))
	assert.Equal(t, "", exception.ExtractErrorMessage(nil))
}
