// Package sqlutil provides helpers for preparing SQL batch text before
// execution: identifier validation, control-character sanitation, target
// database substitution and batch splitting.
package sqlutil

import (
	"regexp"
	"strings"

	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
)

const moduleName = "sqlutil"

// identifierPattern matches a safe SQL identifier: alphanumerics and
// underscores, not starting with a digit.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// controlCharPattern matches control characters that must never reach the
// server inside SQL text. Tabs, newlines and carriage returns are kept.
var controlCharPattern = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")

// databasePlaceholderPattern matches the {{database}} placeholder that step
// SQL uses to reference the target database by name.
var databasePlaceholderPattern = regexp.MustCompile(`\{\{\s*database\s*\}\}`)

// ValidateIdentifier validates a string for use as a SQL identifier.
// Returns the identifier unchanged, or a CONFIG-classified error.
func ValidateIdentifier(identifier string) (string, error) {
	if !identifierPattern.MatchString(identifier) {
		return "", exception.NewConfigError(moduleName, "invalid SQL identifier: %q", identifier)
	}
	return identifier, nil
}

// Sanitize strips problematic control characters from SQL text. Statement
// text loaded from external files occasionally carries stray bytes from
// editor round-trips; they would otherwise fail mid-batch with an opaque
// driver error.
func Sanitize(sqlText string) string {
	return controlCharPattern.ReplaceAllString(sqlText, "")
}

// ResolveDatabase replaces every {{database}} placeholder in the SQL text
// with the supplied target database name. The name is validated as an
// identifier first so the substitution can never smuggle in arbitrary SQL.
func ResolveDatabase(sqlText, dbName string) (string, error) {
	if !databasePlaceholderPattern.MatchString(sqlText) {
		return sqlText, nil
	}
	validated, err := ValidateIdentifier(dbName)
	if err != nil {
		return "", err
	}
	return databasePlaceholderPattern.ReplaceAllString(sqlText, validated), nil
}

// SplitBatches splits a SQL script into executable statements. Scripts are
// first split on GO batch separators (a line holding only "GO", the T-SQL
// convention the legacy scripts use), then each batch on semicolons.
// Comment-only and empty statements are dropped.
func SplitBatches(script string) []string {
	var statements []string
	for _, batch := range splitOnGo(script) {
		for _, stmt := range strings.Split(batch, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" || isCommentOnly(stmt) {
				continue
			}
			statements = append(statements, stmt)
		}
	}
	return statements
}

// splitOnGo splits a script on lines consisting solely of the GO keyword.
func splitOnGo(script string) []string {
	var batches []string
	var current strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.EqualFold(strings.TrimSpace(line), "GO") {
			batches = append(batches, current.String())
			current.Reset()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	batches = append(batches, current.String())
	return batches
}

// isCommentOnly reports whether every line of the statement is a -- comment.
func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
