package markovdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/CTAG07/markovkit/pkg/markov"
)

// Kind selects which table of a model a weight belongs to.
type Kind string

const (
	// KindTransition marks state-to-state weights. Its initial row (NULL
	// source) doubles as the prior distribution of a hidden Markov model.
	KindTransition Kind = "transition"
	// KindEmission marks state-to-observation weights.
	KindEmission Kind = "emission"
)

// ErrUnknownModel is returned when a model name is not in the database.
var ErrUnknownModel = errors.New("markovdb: unknown model")

// SetupSchema initializes the tables read by the Loader. It is idempotent and
// safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE
);
`
		schemaStates = `
CREATE TABLE IF NOT EXISTS markov_states (
    model_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    state TEXT NOT NULL,
    PRIMARY KEY (model_id, position)
);
`
		schemaWeights = `
CREATE TABLE IF NOT EXISTS markov_weights (
    model_id INTEGER NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('transition', 'emission')),
    source TEXT,
    dest TEXT NOT NULL,
    weight REAL NOT NULL,
    position INTEGER NOT NULL DEFAULT 0
);
`
		indexWeights = `CREATE INDEX IF NOT EXISTS markov_weights_model ON markov_weights (model_id, kind, position);`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, stmt := range []string{schemaModels, schemaStates, schemaWeights, indexWeights} {
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// ModelInfo identifies a model stored in the database.
type ModelInfo struct {
	Id   int
	Name string
}

// Loader reads tables, chains and hidden Markov models out of a database laid
// out by SetupSchema. It never writes model data.
type Loader struct {
	db               *sql.DB
	stmtGetModelInfo *sql.Stmt
	stmtGetModels    *sql.Stmt
	stmtGetStates    *sql.Stmt
	stmtGetWeights   *sql.Stmt
	stmtCountStates  *sql.Stmt
	stmtCountRows    *sql.Stmt
	logger           *slog.Logger
}

// NewLoader creates a Loader and prepares its statements, returning an error
// if any preparation fails.
func NewLoader(db *sql.DB) (*Loader, error) {
	stmtGetModelInfo, err := db.Prepare(`SELECT model_id FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_name FROM markov_models ORDER BY model_id;`)
	if err != nil {
		return nil, err
	}

	stmtGetStates, err := db.Prepare(`SELECT state FROM markov_states WHERE model_id = ? ORDER BY position;`)
	if err != nil {
		return nil, err
	}

	stmtGetWeights, err := db.Prepare(`SELECT source, dest, weight FROM markov_weights WHERE model_id = ? AND kind = ? ORDER BY position, rowid;`)
	if err != nil {
		return nil, err
	}

	stmtCountStates, err := db.Prepare(`SELECT COUNT(*) FROM markov_states WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtCountRows, err := db.Prepare(`SELECT COUNT(DISTINCT source) + coalesce(MAX(source IS NULL), 0), COUNT(*) FROM markov_weights WHERE model_id = ? AND kind = ?;`)
	if err != nil {
		return nil, err
	}

	return &Loader{
		db:               db,
		stmtGetModelInfo: stmtGetModelInfo,
		stmtGetModels:    stmtGetModels,
		stmtGetStates:    stmtGetStates,
		stmtGetWeights:   stmtGetWeights,
		stmtCountStates:  stmtCountStates,
		stmtCountRows:    stmtCountRows,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared statements held by the Loader.
func (l *Loader) Close() {
	_ = l.stmtGetModelInfo.Close()
	_ = l.stmtGetModels.Close()
	_ = l.stmtGetStates.Close()
	_ = l.stmtGetWeights.Close()
	_ = l.stmtCountStates.Close()
	_ = l.stmtCountRows.Close()
}

// SetLogger sets the logger for the Loader. By default, all logs are discarded.
func (l *Loader) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// GetModelInfos retrieves every model in the database, keyed by name.
func (l *Loader) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := l.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name); err != nil {
			return nil, err
		}
		models[model.Name] = model
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModelInfo retrieves a single model by name. A missing model yields an
// error matching both ErrUnknownModel and sql.ErrNoRows.
func (l *Loader) GetModelInfo(ctx context.Context, name string) (ModelInfo, error) {
	var id int
	err := l.stmtGetModelInfo.QueryRowContext(ctx, name).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ModelInfo{}, fmt.Errorf("%w %q: %w", ErrUnknownModel, name, err)
		}
		return ModelInfo{}, err
	}
	return ModelInfo{Id: id, Name: name}, nil
}

// States returns the ordered state list of a model.
func (l *Loader) States(ctx context.Context, model ModelInfo) ([]string, error) {
	rows, err := l.stmtGetStates.QueryContext(ctx, model.Id)
	if err != nil {
		return nil, fmt.Errorf("could not query states for model %d: %w", model.Id, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var states []string
	for rows.Next() {
		var state string
		if err = rows.Scan(&state); err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return states, nil
}

// LoadTable reads one table of a model. Rows and the destinations within them
// keep the order of their position column; a NULL source fills the initial row.
func (l *Loader) LoadTable(ctx context.Context, model ModelInfo, kind Kind) (*markov.Table[string, string], error) {
	rows, err := l.stmtGetWeights.QueryContext(ctx, model.Id, string(kind))
	if err != nil {
		return nil, fmt.Errorf("could not query %s weights for model %d: %w", kind, model.Id, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	table := markov.NewTable[string, string]()
	var edges int
	for rows.Next() {
		var (
			source sql.NullString
			dest   string
			weight float64
		)
		if err = rows.Scan(&source, &dest, &weight); err != nil {
			return nil, err
		}

		key := markov.Initial[string]()
		if source.Valid {
			key = markov.From(source.String)
		}
		row, ok := table.Row(key)
		if !ok {
			row = &markov.WeightedVector[string]{}
			table.SetRow(key, row)
		}
		row.SetWeight(dest, weight)
		edges++
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	l.logger.DebugContext(ctx, "Table loaded",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.String("kind", string(kind)),
		slog.Int("sources", len(table.Sources())),
		slog.Int("edges", edges),
	)
	return table, nil
}

// LoadChain reads the transition table of a model as a Markov chain.
func (l *Loader) LoadChain(ctx context.Context, model ModelInfo) (*markov.Chain[string], error) {
	table, err := l.LoadTable(ctx, model, KindTransition)
	if err != nil {
		return nil, err
	}
	chain := markov.NewChainFromTable(table)
	chain.SetLogger(l.logger)
	return chain, nil
}

// LoadHMM reads a complete hidden Markov model. The prior comes from the
// initial row of the transition table. When the model has no stored state
// list, the sources of the transition table are used in their stored order.
func (l *Loader) LoadHMM(ctx context.Context, model ModelInfo) (*markov.HiddenMarkovModel[string, string], error) {
	states, err := l.States(ctx, model)
	if err != nil {
		return nil, err
	}

	chain, err := l.LoadChain(ctx, model)
	if err != nil {
		return nil, err
	}

	emissions, err := l.LoadTable(ctx, model, KindEmission)
	if err != nil {
		return nil, err
	}

	if len(states) == 0 {
		states = chain.Sources()
		l.logger.DebugContext(ctx, "No stored state list, using transition sources",
			slog.String("model_name", model.Name),
			slog.Int("states", len(states)),
		)
	}

	initial, _ := chain.Row(markov.Initial[string]())
	hmm := markov.NewHiddenMarkovModel(states, initial, chain, emissions)
	hmm.SetLogger(l.logger)

	l.logger.InfoContext(ctx, "Hidden Markov model loaded",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("states", len(states)),
	)
	return hmm, nil
}
