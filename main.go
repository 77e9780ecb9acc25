package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"refill/internal/apply"
	"refill/internal/catalog"
	"refill/internal/config"
	"refill/internal/graph"
	"refill/internal/output"
	"refill/internal/render"
	"refill/internal/restore"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "refill",
		Short: "Cascade impact analysis and restoration script generator",
	}

	var genConfigFile string
	var genSourceDSN string
	var genTargetDSN string
	var genTable string
	var genAllFKs bool
	var genOnConflict bool
	var genOutFile string
	var genReportFile string
	var genFormat string
	var genLabel string

	generateCmd := &cobra.Command{
		Use:   "generate <subject-id | predicate>",
		Short: "Generate a restoration script for a cascade-deleted subject",
		Long: `Generate walks every ON DELETE CASCADE relationship from the root table,
collects the rows a delete matching the given predicate would have removed
from the source, and emits a single transactional script that restores them
on the target. A bare identifier is expanded into a predicate on the
configured key column.

Examples:
  refill generate 12345 --source-dsn "postgres://root@src:26257/app" --target-dsn "postgres://root@tgt:26257/app"
  refill generate "entity_id IN (1, 2)" --config refill.toml -o restore.sql
  refill generate 12345 --config refill.toml --on-conflict --all-fks`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(genConfigFile)
			if err != nil {
				return err
			}
			if genSourceDSN != "" {
				cfg.Source.URL = genSourceDSN
			}
			if genTargetDSN != "" {
				cfg.Target.URL = genTargetDSN
			}
			if genTable != "" {
				cfg.Root.Table = genTable
			}
			if cfg.Source.URL == "" {
				return fmt.Errorf("--source-dsn is required")
			}

			ctx := cmd.Context()
			source, err := openDB(ctx, cfg.Source.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to source: %w", err)
			}
			defer source.Close()

			var target *sql.DB
			if cfg.Target.URL != "" {
				target, err = openDB(ctx, cfg.Target.URL)
				if err != nil {
					return fmt.Errorf("failed to connect to target: %w", err)
				}
				defer target.Close()
			} else {
				fmt.Fprintln(os.Stderr, "no target connection; existence and uniqueness checks disabled")
			}

			predicate := args[0]
			bareID := !strings.ContainsAny(predicate, "=<> ")
			if bareID {
				predicate = fmt.Sprintf("%s = '%s'", cfg.Root.KeyColumn, args[0])
			}

			subject := args[0]
			if bareID && cfg.Subject.Query != "" {
				if label, err := lookupSubject(ctx, source, cfg.Subject.Query, args[0]); err == nil {
					subject = label
				} else {
					fmt.Fprintf(os.Stderr, "subject lookup failed: %v\n", err)
				}
			}

			mode := catalog.CascadeOnly
			if genAllFKs {
				mode = catalog.AllKeys
			}
			intr := catalog.NewIntrospector(source, os.Stderr)
			g, err := graph.Build(ctx, intr, mode, os.Stderr)
			if err != nil {
				return err
			}

			engine := restore.NewEngine(source, target, intr, g, restore.Options{
				Rules:      cfg.Rules,
				OnConflict: genOnConflict,
				Out:        os.Stderr,
			})
			report, err := engine.Run(ctx, cfg.Root.Table, predicate)
			if err != nil {
				return err
			}

			hdr := render.Header{Subject: subject, Label: genLabel, GeneratedAt: time.Now()}
			if genOutFile == "" {
				if err := render.WriteScript(os.Stdout, hdr, engine.Buffer()); err != nil {
					return err
				}
			} else {
				f, err := os.Create(genOutFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				if err := render.WriteScript(f, hdr, engine.Buffer()); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Script saved to %s\n", genOutFile)
			}

			formatter, err := output.NewFormatter(genFormat)
			if err != nil {
				return err
			}
			formatted, err := formatter.FormatReport(report)
			if err != nil {
				return fmt.Errorf("failed to format report: %w", err)
			}
			if genReportFile != "" {
				if err := os.WriteFile(genReportFile, []byte(formatted), 0644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Report saved to %s\n", genReportFile)
				return nil
			}
			// The script owns stdout when it is not redirected to a file.
			if genOutFile == "" {
				fmt.Fprint(os.Stderr, formatted)
				return nil
			}
			fmt.Print(formatted)
			return nil
		},
	}

	generateCmd.Flags().StringVarP(&genConfigFile, "config", "c", "", "TOML config file")
	generateCmd.Flags().StringVar(&genSourceDSN, "source-dsn", "", "Source database URL (rows are read from here)")
	generateCmd.Flags().StringVar(&genTargetDSN, "target-dsn", "", "Target database URL (existence checks run here)")
	generateCmd.Flags().StringVarP(&genTable, "table", "t", "", "Root table override (schema-qualified)")
	generateCmd.Flags().BoolVar(&genAllFKs, "all-fks", false, "Traverse every foreign key, not only ON DELETE CASCADE")
	generateCmd.Flags().BoolVar(&genOnConflict, "on-conflict", false, "Emit ON CONFLICT DO NOTHING inserts instead of pre-checking existence")
	generateCmd.Flags().StringVarP(&genOutFile, "output", "o", "", "Output file for the restoration script")
	generateCmd.Flags().StringVar(&genReportFile, "report", "", "Output file for the impact report")
	generateCmd.Flags().StringVarP(&genFormat, "format", "f", "", "Report format: text, json, or summary")
	generateCmd.Flags().StringVar(&genLabel, "label", "", "Free-form label recorded in the script header")

	var graphConfigFile string
	var graphSourceDSN string
	var graphAllFKs bool
	var graphOutFile string
	var graphFormat string

	graphCmd := &cobra.Command{
		Use:   "graph <table>",
		Short: "List every table a delete on the given table cascades into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(graphConfigFile)
			if err != nil {
				return err
			}
			if graphSourceDSN != "" {
				cfg.Source.URL = graphSourceDSN
			}
			if cfg.Source.URL == "" {
				return fmt.Errorf("--source-dsn is required")
			}
			if _, err := catalog.ParseTableName(args[0]); err != nil {
				return err
			}

			ctx := cmd.Context()
			source, err := openDB(ctx, cfg.Source.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to source: %w", err)
			}
			defer source.Close()

			mode := catalog.CascadeOnly
			if graphAllFKs {
				mode = catalog.AllKeys
			}
			g, err := graph.Build(ctx, catalog.NewIntrospector(source, os.Stderr), mode, os.Stderr)
			if err != nil {
				return err
			}

			formatter, err := output.NewFormatter(graphFormat)
			if err != nil {
				return err
			}
			formatted, err := formatter.FormatDescendants(args[0], graph.Sorted(g.Descendants(args[0])))
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			if graphOutFile == "" {
				fmt.Print(formatted)
				return nil
			}
			if err := os.WriteFile(graphOutFile, []byte(formatted), 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Output saved to %s\n", graphOutFile)
			return nil
		},
	}

	graphCmd.Flags().StringVarP(&graphConfigFile, "config", "c", "", "TOML config file")
	graphCmd.Flags().StringVar(&graphSourceDSN, "source-dsn", "", "Source database URL")
	graphCmd.Flags().BoolVar(&graphAllFKs, "all-fks", false, "Traverse every foreign key, not only ON DELETE CASCADE")
	graphCmd.Flags().StringVarP(&graphOutFile, "output", "o", "", "Output file for the listing")
	graphCmd.Flags().StringVarP(&graphFormat, "format", "f", "", "Output format: text, json, or summary")

	var applyDSN string
	var applyFile string
	var applyDryRun bool
	var applyUnsafe bool

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a generated restoration script to the target database",
		Long: `Connects to the target database and executes a restoration script inside a
single transaction.

This command performs preflight checks before execution:
- Refuses statements other than INSERT and UPDATE unless --unsafe is given
- Warns when the script still ends with its generated ROLLBACK

Examples:
  refill apply --dsn "postgres://root@tgt:26257/app" --file restore.sql
  refill apply --dsn "postgres://root@tgt:26257/app" --file restore.sql --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if applyDSN == "" {
				return fmt.Errorf("--dsn is required")
			}
			if applyFile == "" {
				return fmt.Errorf("--file is required")
			}

			content, err := os.ReadFile(applyFile)
			if err != nil {
				return fmt.Errorf("failed to read script file: %w", err)
			}

			applier := apply.NewApplier(apply.Options{
				DSN:      applyDSN,
				FilePath: applyFile,
				DryRun:   applyDryRun,
				Unsafe:   applyUnsafe,
				Out:      os.Stdout,
			})

			statements := applier.ParseStatements(string(content))
			if len(statements) == 0 {
				fmt.Println("No SQL statements found in script file")
				return nil
			}
			fmt.Printf("Found %d statement(s) in %s\n\n", len(statements), applyFile)

			preflight := apply.AnalyzeScript(statements, apply.EndsWithRollback(string(content)))
			if apply.HasDestructiveOperations(preflight) && !applyUnsafe && !applyDryRun {
				fmt.Println("--- Preflight Warnings ---")
				for _, w := range preflight.Warnings {
					if w.Level == apply.WarnDanger {
						fmt.Printf("✗ [%s] %s\n", w.Level, w.Message)
						if w.SQL != "" {
							fmt.Printf("    SQL: %s\n", w.SQL)
						}
					}
				}
				return fmt.Errorf("non-restoration statements detected; use --unsafe to allow them")
			}

			ctx := cmd.Context()
			if !applyDryRun {
				if err := applier.Connect(ctx); err != nil {
					return err
				}
				defer applier.Close()
			}
			return applier.Apply(ctx, statements, preflight)
		},
	}

	applyCmd.Flags().StringVar(&applyDSN, "dsn", "", "Target database URL")
	applyCmd.Flags().StringVar(&applyFile, "file", "", "Restoration script to apply")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Run preflight checks and print statements without executing")
	applyCmd.Flags().BoolVar(&applyUnsafe, "unsafe", false, "Execute statements other than INSERT/UPDATE")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(applyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// lookupSubject runs the configured subject query with the bare identifier as
// its single parameter and returns the resulting label.
func lookupSubject(ctx context.Context, db *sql.DB, query, id string) (string, error) {
	var label string
	if err := db.QueryRowContext(ctx, query, id).Scan(&label); err != nil {
		return "", err
	}
	return label, nil
}
