package apply

import (
	"fmt"
	"strings"
)

// destructiveKeywords are statement-leading keywords a restoration script
// must never contain. Their presence means the file is not a generated
// restoration script, or has been edited into something else.
var destructiveKeywords = map[string]string{
	"DELETE":   "DELETE permanently removes rows",
	"DROP":     "DROP permanently removes schema objects and their data",
	"TRUNCATE": "TRUNCATE permanently removes all rows of a table",
	"ALTER":    "ALTER changes the schema",
	"CREATE":   "CREATE changes the schema",
	"UPSERT":   "UPSERT overwrites existing rows",
	"GRANT":    "GRANT changes privileges",
	"REVOKE":   "REVOKE changes privileges",
}

// AnalyzeScript classifies every statement of a parsed script. Restoration
// scripts consist of INSERTs and the UPDATEs restoring deferred references;
// anything else is flagged as dangerous, and unrecognized statements as a
// caution.
func AnalyzeScript(statements []string, endsRollback bool) *PreflightResult {
	result := &PreflightResult{EndsRollback: endsRollback}

	for _, stmt := range statements {
		keyword := leadingKeyword(stmt)
		switch keyword {
		case "INSERT", "UPDATE":
			continue
		}
		if reason, ok := destructiveKeywords[keyword]; ok {
			result.Warnings = append(result.Warnings, Warning{
				Level:   WarnDanger,
				Message: reason,
				SQL:     truncateSQL(stmt),
			})
			continue
		}
		result.Warnings = append(result.Warnings, Warning{
			Level:   WarnCaution,
			Message: fmt.Sprintf("unrecognized statement kind %q", keyword),
			SQL:     truncateSQL(stmt),
		})
	}

	if endsRollback {
		result.Warnings = append(result.Warnings, Warning{
			Level:   WarnCaution,
			Message: "script still ends with ROLLBACK; the applier commits on success regardless",
		})
	}
	return result
}

// EndsWithRollback reports whether the script's last transaction control
// statement is a ROLLBACK, i.e. the generated default was never flipped to
// COMMIT during review.
func EndsWithRollback(content string) bool {
	last := ""
	for line := range strings.SplitSeq(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if isTransactionControl(trimmed) {
			last = leadingKeyword(trimmed)
		}
	}
	return last == "ROLLBACK"
}

func isTransactionControl(stmt string) bool {
	switch leadingKeyword(stmt) {
	case "BEGIN", "COMMIT", "ROLLBACK", "START":
		return true
	}
	return false
}

func leadingKeyword(stmt string) string {
	fields := strings.Fields(strings.TrimSpace(stmt))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.TrimSuffix(fields[0], ";"))
}
