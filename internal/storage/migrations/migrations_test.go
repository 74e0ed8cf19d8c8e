package migrations

import (
	"reflect"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second
CREATE TABLE b (y String)
ENGINE = Memory;
`
	got := splitStatements(input)
	want := []string{
		"CREATE TABLE a (x UInt8) ENGINE = Memory",
		"CREATE TABLE b (y String)\nENGINE = Memory",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitStatements() = %q, want %q", got, want)
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	if err := validateNoSemicolonInStrings("SELECT 'a''b'; SELECT 1;"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateNoSemicolonInStrings("SELECT 'a;b'"); err == nil {
		t.Error("expected error for semicolon inside literal")
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://user:pw@localhost:9000/botsim")
	if err != nil {
		t.Fatalf("databaseFromDSN failed: %v", err)
	}
	if db != "botsim" {
		t.Errorf("expected botsim, got %s", db)
	}

	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for DSN without database")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		t.Fatalf("read postgres migrations: %v", err)
	}
	wantPG := []string{"001_run_summaries.sql", "002_deals.sql"}
	if !reflect.DeepEqual(pg, wantPG) {
		t.Errorf("postgres migrations = %v, want %v", pg, wantPG)
	}

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		t.Fatalf("read clickhouse migrations: %v", err)
	}
	wantCH := []string{"001_candles.sql", "002_equity_curves.sql", "003_run_aggregates.sql"}
	if !reflect.DeepEqual(ch, wantCH) {
		t.Errorf("clickhouse migrations = %v, want %v", ch, wantCH)
	}
}
