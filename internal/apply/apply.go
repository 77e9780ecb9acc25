// Package apply connects to the target database and executes a generated
// restoration script. Scripts are reviewed by an operator before they run, so
// the applier performs preflight checks first and refuses anything that does
// not look like a pure restoration: only INSERT and UPDATE statements, always
// inside a single transaction.
package apply

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
)

// PreflightResult contains the warnings and errors found in a script before
// execution, plus whether the script still carries its default ROLLBACK.
type PreflightResult struct {
	Warnings     []Warning
	Errors       []string
	EndsRollback bool
}

// Warning contains a Level of a warning, message, and actual SQL from the script.
type Warning struct {
	Level   WarningLevel
	Message string
	SQL     string
}

// WarningLevel is a const that is expandable for later and contains different levels of danger.
type WarningLevel string

const (
	WarnCaution WarningLevel = "CAUTION"
	WarnDanger  WarningLevel = "DANGER"
)

// Options struct contains all settings available for a user to choose during the apply command.
type Options struct {
	DSN      string
	FilePath string
	DryRun   bool
	// Unsafe executes the script even when preflight finds statements that
	// are not INSERT or UPDATE.
	Unsafe bool
	Out    io.Writer
}

// Applier is a struct that contains data from a user to apply a restoration script.
type Applier struct {
	db      *sql.DB
	options Options
	out     io.Writer
}

// NewApplier returns a pointer to Applier for user use, with provided options.
func NewApplier(options Options) *Applier {
	out := options.Out
	if out == nil {
		out = io.Discard
	}
	return &Applier{options: options, out: out}
}

func (a *Applier) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

func (a *Applier) println(args ...any) {
	_, _ = fmt.Fprintln(a.out, args...)
}

// Connect establishes a connection with the target database and pings it to test the connection.
// If something went wrong, returns an error, otherwise nil.
func (a *Applier) Connect(ctx context.Context) error {
	db, err := sql.Open("pgx", a.options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			return fmt.Errorf("failed to ping database: %v; additionally failed to close connection: %w", pingErr, closeErr)
		}
		return fmt.Errorf("failed to ping database: %w", pingErr)
	}

	a.db = db
	return nil
}

// Close closes the database connection held by the applier.
// If something went wrong, returns an error, otherwise nil.
func (a *Applier) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// ParseStatements splits a script into statements, dropping comments and the
// transaction control lines; the applier manages its own transaction. A
// restored text value may carry embedded newlines, so comment and terminator
// handling only applies outside single-quoted literals.
func (a *Applier) ParseStatements(content string) []string {
	var statements []string
	var current strings.Builder
	inLiteral := false

	for line := range strings.SplitSeq(strings.TrimSpace(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if !inLiteral && (strings.HasPrefix(trimmed, "--") || trimmed == "") {
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")
		inLiteral = literalState(inLiteral, line)

		if !inLiteral && strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			current.Reset()
			if stmt == "" || isTransactionControl(stmt) {
				continue
			}
			statements = append(statements, stmt)
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" && !isTransactionControl(remaining) {
		statements = append(statements, remaining)
	}
	return statements
}

// literalState reports whether the scanner is inside a single-quoted literal
// after consuming line. A doubled quote inside a literal toggles twice and
// cancels out.
func literalState(inLiteral bool, line string) bool {
	for _, r := range line {
		if r == '\'' {
			inLiteral = !inLiteral
		}
	}
	return inLiteral
}

// Apply runs the script. With DryRun set, only the preflight outcome is
// reported. Destructive statements abort unless Unsafe was given.
func (a *Applier) Apply(ctx context.Context, statements []string, preflight *PreflightResult) error {
	if a.options.DryRun {
		return a.dryRun(statements, preflight)
	}

	if HasDestructiveOperations(preflight) && !a.options.Unsafe {
		return fmt.Errorf("script contains statements beyond INSERT/UPDATE; use --unsafe to run them")
	}

	return a.applyWithTransaction(ctx, statements)
}

func truncateSQL(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if len(stmt) > 80 {
		return stmt[:77] + "..."
	}
	return stmt
}

func (a *Applier) dryRun(statements []string, preflight *PreflightResult) error {
	a.println("=== DRY RUN MODE ===")

	a.println("--- Preflight Checks ---")
	if len(preflight.Warnings) == 0 {
		a.println("No warnings")
	} else {
		for _, w := range preflight.Warnings {
			a.printf("[%s] %s\n", w.Level, w.Message)
			if w.SQL != "" {
				a.printf("    SQL: %s\n", w.SQL)
			}
		}
	}

	a.println("--- Statements to Execute ---")
	for i, stmt := range statements {
		a.printf("%d. %s\n\n", i+1, stmt)
	}

	if HasDestructiveOperations(preflight) && !a.options.Unsafe {
		return fmt.Errorf("preflight checks failed: non-restoration statements detected without --unsafe flag")
	}

	a.println("=== DRY RUN COMPLETE ===")
	a.println("All preflight checks passed. Run without --dry-run to apply.")
	return nil
}

func (a *Applier) applyWithTransaction(ctx context.Context, statements []string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for i, stmt := range statements {
		a.printf("Executing statement %d/%d...\n", i+1, len(statements))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("execute failed: %w; rollback also failed: %v", err, rbErr)
			}
			return fmt.Errorf("execute failed (rolled back): %w\n  Statement: %s", err, truncateSQL(stmt))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	a.printf("Successfully applied %d statements\n", len(statements))
	return nil
}

// HasDestructiveOperations checks if there is a dangerous warning inside the
// preflight analysis of a script. If there is, returns true, otherwise false.
func HasDestructiveOperations(preflight *PreflightResult) bool {
	for _, w := range preflight.Warnings {
		if w.Level == WarnDanger {
			return true
		}
	}
	return false
}
