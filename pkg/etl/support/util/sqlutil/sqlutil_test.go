// Package sqlutil_test provides unit tests for SQL text preparation helpers.
package sqlutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
	sqlutil "github.com/ejcourts/predms/pkg/etl/support/util/sqlutil"
)

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"ElPaso_TX", "CasesToConvert", "_private", "t1"}
	for _, id := range valid {
		got, err := sqlutil.ValidateIdentifier(id)
		require.NoError(t, err, "identifier %q should validate", id)
		assert.Equal(t, id, got)
	}

	invalid := []string{"", "1table", "El Paso", "x;DROP TABLE y", "a-b", "db.table"}
	for _, id := range invalid {
		_, err := sqlutil.ValidateIdentifier(id)
		require.Error(t, err, "identifier %q should be rejected", id)
		assert.True(t, exception.IsConfigError(err))
	}
}

func TestResolveDatabase(t *testing.T) {
	sql := "SELECT * FROM {{database}}.dbo.SUPCASEHDR JOIN {{ database }}.dbo.CLKCASEHDR ON 1=1"
	resolved, err := sqlutil.ResolveDatabase(sql, "ElPaso_TX")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM ElPaso_TX.dbo.SUPCASEHDR JOIN ElPaso_TX.dbo.CLKCASEHDR ON 1=1", resolved)
}

func TestResolveDatabase_NoPlaceholderPassesThrough(t *testing.T) {
	sql := "SELECT 1"
	resolved, err := sqlutil.ResolveDatabase(sql, "whatever&&invalid")
	require.NoError(t, err, "the database name is only validated when a placeholder is present")
	assert.Equal(t, sql, resolved)
}

func TestResolveDatabase_RejectsUnsafeName(t *testing.T) {
	_, err := sqlutil.ResolveDatabase("USE {{database}}", "x; DROP DATABASE y")
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}

func TestSanitize(t *testing.T) {
	dirty := "SELECT 1\x00\x08;\nSELECT\t2\x7f"
	assert.Equal(t, "SELECT 1;\nSELECT\t2", sqlutil.Sanitize(dirty))
}

func TestSplitBatches_GoSeparators(t *testing.T) {
	script := "CREATE TABLE t (id INT)\nGO\nINSERT INTO t VALUES (1)\ngo\nINSERT INTO t VALUES (2)"
	batches := sqlutil.SplitBatches(script)
	require.Len(t, batches, 3)
	assert.Equal(t, "CREATE TABLE t (id INT)", batches[0])
	assert.Equal(t, "INSERT INTO t VALUES (1)", batches[1])
	assert.Equal(t, "INSERT INTO t VALUES (2)", batches[2])
}

func TestSplitBatches_Semicolons(t *testing.T) {
	script := "DELETE FROM a; DELETE FROM b;\n-- trailing comment only\n;"
	batches := sqlutil.SplitBatches(script)
	require.Len(t, batches, 2)
	assert.Equal(t, "DELETE FROM a", batches[0])
	assert.Equal(t, "DELETE FROM b", batches[1])
}

func TestSplitBatches_DropsCommentOnlyAndEmpty(t *testing.T) {
	script := "-- header comment\n-- more comment\nGO\n\nGO\nSELECT 1"
	batches := sqlutil.SplitBatches(script)
	require.Len(t, batches, 1)
	assert.Equal(t, "SELECT 1", batches[0])
}

func TestSplitBatches_GoInsideLineIsNotASeparator(t *testing.T) {
	script := "SELECT 'GO' FROM t WHERE name = 'GOMEZ'"
	batches := sqlutil.SplitBatches(script)
	require.Len(t, batches, 1)
}
