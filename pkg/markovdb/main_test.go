package markovdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates a new SQLite database file and a Loader for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Loader) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	l, err := NewLoader(db)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	t.Cleanup(l.Close)

	return db, l
}

// edge is one weight row to seed into markov_weights.
type edge struct {
	kind   Kind
	source sql.NullString
	dest   string
	weight float64
}

func initialEdge(kind Kind, dest string, weight float64) edge {
	return edge{kind: kind, dest: dest, weight: weight}
}

func stateEdge(kind Kind, source, dest string, weight float64) edge {
	return edge{kind: kind, source: sql.NullString{String: source, Valid: true}, dest: dest, weight: weight}
}

// insertModel writes a model straight into the schema and returns its info.
func insertModel(t *testing.T, db *sql.DB, name string, states []string, edges []edge) ModelInfo {
	t.Helper()
	ctx := context.Background()

	res, err := db.ExecContext(ctx, "INSERT INTO markov_models (model_name) VALUES (?)", name)
	if err != nil {
		t.Fatalf("setup: insert model %q: %v", name, err)
	}
	id, _ := res.LastInsertId()

	for i, state := range states {
		if _, err := db.ExecContext(ctx, "INSERT INTO markov_states (model_id, position, state) VALUES (?, ?, ?)", id, i, state); err != nil {
			t.Fatalf("setup: insert state %q: %v", state, err)
		}
	}
	for i, e := range edges {
		if _, err := db.ExecContext(ctx, "INSERT INTO markov_weights (model_id, kind, source, dest, weight, position) VALUES (?, ?, ?, ?, ?, ?)",
			id, string(e.kind), e.source, e.dest, e.weight, i); err != nil {
			t.Fatalf("setup: insert edge %+v: %v", e, err)
		}
	}
	return ModelInfo{Id: int(id), Name: name}
}

// healthEdges is the two-state health model from the Viterbi article on
// Wikipedia.
var healthEdges = []edge{
	initialEdge(KindTransition, "healthy", 0.6),
	initialEdge(KindTransition, "sick", 0.4),
	stateEdge(KindTransition, "healthy", "healthy", 0.7),
	stateEdge(KindTransition, "healthy", "sick", 0.3),
	stateEdge(KindTransition, "sick", "healthy", 0.4),
	stateEdge(KindTransition, "sick", "sick", 0.6),
	stateEdge(KindEmission, "healthy", "normal", 0.5),
	stateEdge(KindEmission, "healthy", "cold", 0.4),
	stateEdge(KindEmission, "healthy", "dizzy", 0.1),
	stateEdge(KindEmission, "sick", "normal", 0.1),
	stateEdge(KindEmission, "sick", "cold", 0.3),
	stateEdge(KindEmission, "sick", "dizzy", 0.6),
}
