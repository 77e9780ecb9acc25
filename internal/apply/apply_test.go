package apply

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScript = `-- Cascade restoration script
-- Subject: entity 1
--
-- Review the statements below, then change ROLLBACK to COMMIT to apply.

BEGIN;

-- app.entity: 1 records
INSERT INTO app.entity (entity_id, name) VALUES (1, 'Acme');

-- app.person: 1 records
INSERT INTO app.person (person_id, entity_id, email) VALUES (10, 1, 'ten@example.com');
UPDATE app.person SET buddy_person_id = 11 WHERE person_id = 10 AND email = 'ten@example.com';

ROLLBACK;
`

func TestParseStatements(t *testing.T) {
	a := NewApplier(Options{})
	statements := a.ParseStatements(sampleScript)

	require.Len(t, statements, 3, "comments and transaction control are stripped")
	assert.Contains(t, statements[0], "INSERT INTO app.entity")
	assert.Contains(t, statements[1], "INSERT INTO app.person")
	assert.Contains(t, statements[2], "UPDATE app.person SET")
}

func TestParseStatementsMultiline(t *testing.T) {
	a := NewApplier(Options{})
	statements := a.ParseStatements(`INSERT INTO app.entity (entity_id, name)
VALUES
(1, 'Acme');`)

	require.Len(t, statements, 1)
	assert.Contains(t, statements[0], "VALUES")
}

func TestParseStatementsMultilineLiteral(t *testing.T) {
	a := NewApplier(Options{})
	statements := a.ParseStatements(`INSERT INTO app.note (note_id, body) VALUES (1, 'first line;
-- still the note, not a comment
don''t stop here;
last line');
INSERT INTO app.note (note_id, body) VALUES (2, 'plain');`)

	require.Len(t, statements, 2, "literal-embedded newlines, semicolons, and dashes must not split")
	assert.Contains(t, statements[0], "-- still the note, not a comment")
	assert.Contains(t, statements[0], "don''t stop here;")
	assert.Contains(t, statements[1], "'plain'")
}

func TestAnalyzeScriptCleanRestoration(t *testing.T) {
	a := NewApplier(Options{})
	statements := a.ParseStatements(sampleScript)

	result := AnalyzeScript(statements, EndsWithRollback(sampleScript))
	assert.False(t, HasDestructiveOperations(result))
	assert.True(t, result.EndsRollback)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, WarnCaution, result.Warnings[0].Level)
	assert.Contains(t, result.Warnings[0].Message, "still ends with ROLLBACK")
}

func TestAnalyzeScriptFlagsDestructive(t *testing.T) {
	result := AnalyzeScript([]string{
		"INSERT INTO app.entity (entity_id) VALUES (1);",
		"DELETE FROM app.person WHERE person_id = 10;",
		"DROP TABLE app.account;",
		"SELECT 1;",
	}, false)

	assert.True(t, HasDestructiveOperations(result))
	require.Len(t, result.Warnings, 3)
	assert.Equal(t, WarnDanger, result.Warnings[0].Level)
	assert.Equal(t, WarnDanger, result.Warnings[1].Level)
	assert.Equal(t, WarnCaution, result.Warnings[2].Level)
}

func TestEndsWithRollback(t *testing.T) {
	assert.True(t, EndsWithRollback(sampleScript))

	committed := bytes.ReplaceAll([]byte(sampleScript), []byte("ROLLBACK;"), []byte("COMMIT;"))
	assert.False(t, EndsWithRollback(string(committed)))
	assert.False(t, EndsWithRollback("INSERT INTO t (a) VALUES (1);"))
}

func TestDryRunRefusesDestructive(t *testing.T) {
	var out bytes.Buffer
	a := NewApplier(Options{DryRun: true, Out: &out})

	statements := []string{"DROP TABLE app.account;"}
	err := a.Apply(t.Context(), statements, AnalyzeScript(statements, false))
	assert.ErrorContains(t, err, "without --unsafe")
	assert.Contains(t, out.String(), "=== DRY RUN MODE ===")
	assert.Contains(t, out.String(), "[DANGER]")
}

func TestDryRunPassesCleanScript(t *testing.T) {
	var out bytes.Buffer
	a := NewApplier(Options{DryRun: true, Out: &out})

	statements := []string{"INSERT INTO app.entity (entity_id) VALUES (1);"}
	err := a.Apply(t.Context(), statements, AnalyzeScript(statements, false))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "=== DRY RUN COMPLETE ===")
}

func TestApplyRefusesDestructiveWithoutUnsafe(t *testing.T) {
	a := NewApplier(Options{})
	statements := []string{"TRUNCATE app.position;"}
	err := a.Apply(t.Context(), statements, AnalyzeScript(statements, false))
	assert.ErrorContains(t, err, "use --unsafe")
}
