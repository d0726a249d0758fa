package markovdb

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/CTAG07/markovkit/pkg/markov"
)

func TestSetupSchemaIdempotent(t *testing.T) {
	db, _ := setupTestDB(t)
	if err := SetupSchema(db); err != nil {
		t.Fatalf("second SetupSchema() failed: %v", err)
	}
}

func TestGetModelInfo(t *testing.T) {
	db, l := setupTestDB(t)
	ctx := context.Background()

	want := insertModel(t, db, "health", []string{"healthy", "sick"}, healthEdges)

	got, err := l.GetModelInfo(ctx, "health")
	if err != nil {
		t.Fatalf("GetModelInfo() error = %v", err)
	}
	if got != want {
		t.Errorf("GetModelInfo() = %+v, want %+v", got, want)
	}

	_, err = l.GetModelInfo(ctx, "nonexistent_model")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel for nonexistent model, got %v", err)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for nonexistent model, got %v", err)
	}
}

func TestGetModelInfos(t *testing.T) {
	db, l := setupTestDB(t)
	ctx := context.Background()

	insertModel(t, db, "health", nil, nil)
	insertModel(t, db, "weather", nil, nil)

	models, err := l.GetModelInfos(ctx)
	if err != nil {
		t.Fatalf("GetModelInfos() failed: %v", err)
	}
	if len(models) != 2 {
		t.Errorf("expected 2 models, got %d", len(models))
	}
	for _, name := range []string{"health", "weather"} {
		if _, ok := models[name]; !ok {
			t.Errorf("expected to find %q", name)
		}
	}
}

func TestLoadTable(t *testing.T) {
	db, l := setupTestDB(t)
	ctx := context.Background()
	model := insertModel(t, db, "health", []string{"healthy", "sick"}, healthEdges)

	emissions, err := l.LoadTable(ctx, model, KindEmission)
	if err != nil {
		t.Fatalf("LoadTable(emission) error = %v", err)
	}
	if _, ok := emissions.Row(markov.Initial[string]()); ok {
		t.Error("emission table should have no initial row")
	}
	if p := emissions.Probability("dizzy", markov.From("sick")); math.Abs(p-0.6) > 1e-12 {
		t.Errorf("Probability(dizzy | sick) = %v, want 0.6", p)
	}
	row, _ := emissions.Row(markov.From("healthy"))
	if got := row.Items(); !slices.Equal(got, []string{"normal", "cold", "dizzy"}) {
		t.Errorf("healthy emission items = %v, want stored order", got)
	}

	transitions, err := l.LoadTable(ctx, model, KindTransition)
	if err != nil {
		t.Fatalf("LoadTable(transition) error = %v", err)
	}
	if p := transitions.Probability("sick", markov.Initial[string]()); math.Abs(p-0.4) > 1e-12 {
		t.Errorf("initial Probability(sick) = %v, want 0.4", p)
	}
	if got := transitions.Sources(); !slices.Equal(got, []string{"healthy", "sick"}) {
		t.Errorf("Sources() = %v, want [healthy sick]", got)
	}
}

func TestLoadTableUnknownModelIsEmpty(t *testing.T) {
	_, l := setupTestDB(t)

	table, err := l.LoadTable(context.Background(), ModelInfo{Id: 42, Name: "ghost"}, KindTransition)
	if err != nil {
		t.Fatalf("LoadTable() error = %v", err)
	}
	if len(table.Sources()) != 0 {
		t.Errorf("expected no rows, got sources %v", table.Sources())
	}
}

func TestLoadChain(t *testing.T) {
	db, l := setupTestDB(t)
	ctx := context.Background()
	model := insertModel(t, db, "cycle", nil, []edge{
		initialEdge(KindTransition, "a", 1),
		stateEdge(KindTransition, "a", "b", 1),
		stateEdge(KindTransition, "b", "c", 2),
	})

	chain, err := l.LoadChain(ctx, model)
	if err != nil {
		t.Fatalf("LoadChain() error = %v", err)
	}

	if got := chain.Generate(10); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Generate() = %v, want [a b c]", got)
	}
	if got := chain.Generate(10, markov.WithStart("b")); !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("Generate(start b) = %v, want [b c]", got)
	}
}

func TestLoadHMM(t *testing.T) {
	db, l := setupTestDB(t)
	ctx := context.Background()
	model := insertModel(t, db, "health", []string{"healthy", "sick"}, healthEdges)

	hmm, err := l.LoadHMM(ctx, model)
	if err != nil {
		t.Fatalf("LoadHMM() error = %v", err)
	}

	got := hmm.Decode([]string{"normal", "cold", "dizzy"})
	if !slices.Equal(got, []string{"healthy", "healthy", "sick"}) {
		t.Errorf("Decode() = %v, want [healthy healthy sick]", got)
	}
}

func TestLoadHMMWithoutStateList(t *testing.T) {
	db, l := setupTestDB(t)
	ctx := context.Background()
	model := insertModel(t, db, "health", nil, healthEdges)

	hmm, err := l.LoadHMM(ctx, model)
	if err != nil {
		t.Fatalf("LoadHMM() error = %v", err)
	}
	if got := hmm.States(); !slices.Equal(got, []string{"healthy", "sick"}) {
		t.Errorf("States() = %v, want transition sources [healthy sick]", got)
	}
}

func TestGetStats(t *testing.T) {
	db, l := setupTestDB(t)
	ctx := context.Background()
	health := insertModel(t, db, "health", []string{"healthy", "sick"}, healthEdges)
	empty := insertModel(t, db, "empty", nil, nil)

	stats, err := l.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if len(stats.Models) != 2 || stats.Models[0].Name != "health" {
		t.Fatalf("Models = %+v, want [health empty]", stats.Models)
	}

	want := ModelStats{States: 2, TransitionRows: 3, TransitionEdges: 6, EmissionRows: 2, EmissionEdges: 6}
	if got := stats.Stats[health.Id]; got != want {
		t.Errorf("health stats = %+v, want %+v", got, want)
	}
	if got := stats.Stats[empty.Id]; got != (ModelStats{}) {
		t.Errorf("empty stats = %+v, want zero", got)
	}
}
