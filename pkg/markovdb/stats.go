package markovdb

import (
	"context"
	"sort"
)

// DBStats holds aggregated statistics for the entire database, including a
// list of all models and their individual stats.
type DBStats struct {
	Models []ModelInfo        // All models, ordered by id
	Stats  map[int]ModelStats // A mapping of model ids to their stats
}

// ModelStats holds aggregated statistics for a single model.
type ModelStats struct {
	States          int // Length of the stored state list.
	TransitionRows  int // Rows of the transition table, the initial row included.
	TransitionEdges int // Stored transition weights.
	EmissionRows    int // Rows of the emission table.
	EmissionEdges   int // Stored emission weights.
}

// GetStats returns a snapshot of statistics for every model in the database.
func (l *Loader) GetStats(ctx context.Context) (*DBStats, error) {
	modelInfos, err := l.GetModelInfos(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(modelInfos))
	modelStats := make(map[int]ModelStats)
	for _, v := range modelInfos {
		models = append(models, v)
		var stats ModelStats
		if err = l.stmtCountStates.QueryRowContext(ctx, v.Id).Scan(&stats.States); err != nil {
			return nil, err
		}
		if err = l.stmtCountRows.QueryRowContext(ctx, v.Id, string(KindTransition)).Scan(&stats.TransitionRows, &stats.TransitionEdges); err != nil {
			return nil, err
		}
		if err = l.stmtCountRows.QueryRowContext(ctx, v.Id, string(KindEmission)).Scan(&stats.EmissionRows, &stats.EmissionEdges); err != nil {
			return nil, err
		}
		modelStats[v.Id] = stats
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].Id < models[j].Id
	})

	return &DBStats{
		Models: models,
		Stats:  modelStats,
	}, nil
}
