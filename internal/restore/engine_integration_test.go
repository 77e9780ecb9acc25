package restore

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/cockroachdb"

	"refill/internal/catalog"
	"refill/internal/config"
	"refill/internal/graph"
	"refill/internal/plan"
	"refill/internal/render"
)

type testCluster struct {
	source *sql.DB
	target *sql.DB
}

const testSchema = `
CREATE SCHEMA app;
CREATE TABLE app.entity (
	entity_id INT PRIMARY KEY,
	name STRING NOT NULL
);
CREATE TABLE app.person (
	person_id INT PRIMARY KEY,
	entity_id INT NOT NULL REFERENCES app.entity (entity_id) ON DELETE CASCADE,
	mentor_entity_id INT REFERENCES app.entity (entity_id),
	buddy_person_id INT REFERENCES app.person (person_id),
	email STRING
);
CREATE TABLE app.account (
	account_id INT PRIMARY KEY,
	person_id INT NOT NULL REFERENCES app.person (person_id) ON DELETE CASCADE,
	custodian_account_id STRING,
	custodian_id STRING
);
CREATE TABLE app.position (
	position_id INT PRIMARY KEY,
	account_id INT NOT NULL REFERENCES app.account (account_id) ON DELETE CASCADE,
	symbol STRING
);`

func TestEngineRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupCockroach(t, "refill")
	ctx := context.Background()

	// Source: one entity whose deletion cascades into two persons, three
	// accounts, and two positions, plus an out-of-cascade mentor entity.
	mustExec(t, tc.source,
		`INSERT INTO app.entity VALUES (1, 'Acme'), (2, 'Mentor Co')`,
		`INSERT INTO app.person VALUES
			(10, 1, NULL, 11, 'ten@example.com'),
			(11, 1, 2, 10, 'eleven@example.com')`,
		`INSERT INTO app.account VALUES
			(100, 10, 'CUST-1', 'FID'),
			(101, 10, 'CUST-2', 'FID'),
			(102, 11, 'CUST-3', 'FID')`,
		`INSERT INTO app.position VALUES (1000, 100, 'AAPL'), (1001, 101, 'MSFT')`,
	)
	// Target: an unrelated account already holding the CUST-1/FID pair, so
	// restoring account 100 would violate the uniqueness rule.
	mustExec(t, tc.target,
		`INSERT INTO app.entity VALUES (900, 'Other')`,
		`INSERT INTO app.person VALUES (900, 900, NULL, NULL, 'other@example.com')`,
		`INSERT INTO app.account VALUES (900, 900, 'CUST-1', 'FID')`,
	)

	var out bytes.Buffer
	intr := catalog.NewIntrospector(tc.source, &out)
	g, err := graph.Build(ctx, intr, catalog.CascadeOnly, &out)
	require.NoError(t, err)
	require.Contains(t, g, "app.entity")
	require.Contains(t, g, "app.person")
	require.Contains(t, g, "app.account")

	rules := config.Rules{
		Unique: []config.UniqueRule{
			{Table: "app.account", Columns: []string{"custodian_account_id", "custodian_id"}},
		},
	}
	engine := NewEngine(tc.source, tc.target, intr, g, Options{Rules: rules, Out: &out})
	report, err := engine.Run(ctx, "app.entity", "entity_id = 1")
	require.NoError(t, err)

	// The cascade reaches four tables; the mentor entity is picked up
	// afterwards as a missing parent.
	assert.Equal(t, 1, report.LevelTotals[0])
	assert.Equal(t, 2, report.LevelTotals[1])
	assert.Equal(t, 3, report.LevelTotals[2])
	assert.Equal(t, 2, report.LevelTotals[3])
	assert.Equal(t, 1, report.LevelTotals[-1])

	inserts := engine.Buffer().Inserts()
	require.Len(t, inserts, 7, "entity 2, entity 1, two persons, accounts 101+102, position 1001")
	assert.Equal(t, "app.entity", inserts[0].Table)
	assert.EqualValues(t, 2, asInt64(t, inserts[0].Values["entity_id"].V), "missing parent runs first")

	byTable := map[string]int{}
	for _, st := range inserts {
		byTable[st.Table]++
	}
	assert.Equal(t, map[string]int{
		"app.entity": 2, "app.person": 2, "app.account": 2, "app.position": 1,
	}, byTable)

	// Account 100 hit the uniqueness rule and its position cascaded into the
	// skip; the mutual buddy reference left one deferred UPDATE that the
	// optimizer folded back into its INSERT.
	log := out.String()
	assert.Contains(t, log, "would violate uniqueness on (custodian_account_id, custodian_id)")
	assert.Contains(t, log, "references skipped app.account row")

	optimized := 0
	for _, st := range engine.Buffer().Statements() {
		assert.NotEqual(t, plan.Update, st.Kind, "every deferred UPDATE should merge away")
		if st.Optimized {
			optimized++
		}
	}
	assert.Equal(t, 1, optimized)

	var script bytes.Buffer
	require.NoError(t, render.WriteScript(&script, render.Header{Subject: "entity 1"}, engine.Buffer()))
	assert.Contains(t, script.String(), "\nBEGIN;\n")
	assert.True(t, strings.HasSuffix(script.String(), "ROLLBACK;\n"))
	assert.NotContains(t, script.String(), "ON CONFLICT")
}

func TestEngineRoundTripIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupCockroach(t, "roundtrip")
	ctx := context.Background()

	// No mutual references between restored rows, so the emitted statement
	// order is directly executable: promoted parents first, then each BFS
	// level before its children.
	mustExec(t, tc.source,
		`INSERT INTO app.entity VALUES (1, 'Acme'), (2, 'Mentor Co')`,
		`INSERT INTO app.person VALUES
			(10, 1, NULL, NULL, 'ten@example.com'),
			(11, 1, 2, NULL, 'eleven@example.com')`,
		`INSERT INTO app.account VALUES
			(100, 10, 'CUST-1', 'FID'),
			(101, 10, 'CUST-2', 'FID'),
			(102, 11, 'CUST-3', 'FID')`,
		`INSERT INTO app.position VALUES (1000, 100, 'AAPL'), (1001, 101, 'MSFT')`,
	)

	var out bytes.Buffer
	intr := catalog.NewIntrospector(tc.source, &out)
	g, err := graph.Build(ctx, intr, catalog.CascadeOnly, &out)
	require.NoError(t, err)

	engine := NewEngine(tc.source, tc.target, intr, g, Options{Out: &out})
	_, err = engine.Run(ctx, "app.entity", "entity_id = 1")
	require.NoError(t, err)

	// The target is empty, so nothing is skipped and no reference defers.
	require.Len(t, engine.Buffer().Inserts(), 9)
	require.Equal(t, 9, engine.Buffer().Len())

	tx, err := tc.target.BeginTx(ctx, nil)
	require.NoError(t, err)
	for _, st := range engine.Buffer().Statements() {
		stmt := render.Statement(st)
		_, err := tx.ExecContext(ctx, stmt)
		require.NoError(t, err, "statement failed: %s", stmt)
	}
	require.NoError(t, tx.Commit())

	// One row per scheduled (table, primary key) pair.
	for table, want := range map[string]int{
		"app.entity":   2,
		"app.person":   2,
		"app.account":  3,
		"app.position": 2,
	} {
		var got int
		require.NoError(t, tc.target.QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&got))
		assert.Equal(t, want, got, table)
	}

	// Re-running against the now-populated target finds the same source rows
	// but drops every one as already present, including the mentor entity in
	// missing-parent discovery.
	second := NewEngine(tc.source, tc.target, intr, g, Options{Out: &out})
	report, err := second.Run(ctx, "app.entity", "entity_id = 1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Buffer().Len(), "re-run must schedule nothing")
	assert.Equal(t, 1, report.LevelTotals[0])
	assert.Equal(t, 2, report.LevelTotals[1])
	assert.Equal(t, 0, report.LevelTotals[-1])
}

func setupCockroach(t *testing.T, prefix string) *testCluster {
	t.Helper()
	ctx := context.Background()

	container, err := cockroachdb.Run(ctx, "cockroachdb/cockroach:latest-v24.3", cockroachdb.WithInsecure())
	require.NoError(t, err, "failed to start CockroachDB container")

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err, "failed to get connection string")

	admin, err := sql.Open("pgx", dsn)
	require.NoError(t, err, "failed to open admin connection")
	require.NoError(t, admin.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() {
		if err := admin.Close(); err != nil {
			t.Errorf("failed to close admin connection: %v", err)
		}
	})

	tc := &testCluster{}
	for name, db := range map[string]**sql.DB{prefix + "_source": &tc.source, prefix + "_target": &tc.target} {
		_, err = admin.ExecContext(ctx, "CREATE DATABASE "+name)
		require.NoError(t, err)

		conn, err := sql.Open("pgx", strings.Replace(dsn, "/defaultdb", "/"+name, 1))
		require.NoError(t, err)
		require.NoError(t, conn.PingContext(ctx))
		t.Cleanup(func() {
			if err := conn.Close(); err != nil {
				t.Errorf("failed to close connection: %v", err)
			}
		})

		mustExec(t, conn, testSchema)
		*db = conn
	}
	return tc
}

func mustExec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err, "statement failed: %s", stmt)
	}
}

func asInt64(t *testing.T, v any) int64 {
	t.Helper()
	n, ok := v.(int64)
	require.True(t, ok, "expected int64, got %T", v)
	return n
}
