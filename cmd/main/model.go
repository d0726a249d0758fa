package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/CTAG07/markovkit/pkg/markov"
	"gopkg.in/yaml.v3"
)

// ModelDef is a model written out by hand in YAML:
//
//	states: [healthy, sick]
//	observations: [normal, cold, dizzy]
//	initial: {healthy: 0.6, sick: 0.4}
//	transitions:
//	  healthy: {healthy: 0.7, sick: 0.3}
//	  sick: "0.4,0.6"
//	emissions:
//	  healthy: {normal: 0.5, cold: 0.4, dizzy: 0.1}
//	  sick: "0.1,0.3,0.6"
//
// Mapping order is preserved. A row given as a string is read as CSV weights
// over states (transitions) or observations (emissions).
type ModelDef struct {
	States       []string   `yaml:"states"`
	Observations []string   `yaml:"observations"`
	Initial      weightsDef `yaml:"initial"`
	Transitions  rowsDef    `yaml:"transitions"`
	Emissions    rowsDef    `yaml:"emissions"`
}

// weightsDef is either an ordered item->weight mapping or a CSV line.
type weightsDef struct {
	items  []string
	values []float64
	csv    string
	isCSV  bool
	set    bool
}

func (w *weightsDef) UnmarshalYAML(node *yaml.Node) error {
	w.set = true
	switch node.Kind {
	case yaml.ScalarNode:
		w.isCSV = true
		w.csv = node.Value
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			var weight float64
			if err := node.Content[i+1].Decode(&weight); err != nil {
				return fmt.Errorf("line %d: weight of %q: %w", node.Content[i+1].Line, node.Content[i].Value, err)
			}
			w.items = append(w.items, node.Content[i].Value)
			w.values = append(w.values, weight)
		}
		return nil
	default:
		return fmt.Errorf("line %d: expected a mapping or a CSV string", node.Line)
	}
}

// vector builds the weights, reading a CSV line against domain.
func (w *weightsDef) vector(domain []string) (*markov.WeightedVector[string], error) {
	if !w.isCSV {
		return markov.NewWeightedVector(w.items, w.values...), nil
	}
	if len(domain) == 0 {
		return nil, errors.New("csv weights need a states or observations list")
	}
	return markov.NewWeightedVectorFromCSV(domain, w.csv), nil
}

type rowDef struct {
	source  string
	weights weightsDef
}

// rowsDef is an ordered mapping of source state to weights.
type rowsDef []rowDef

func (r *rowsDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of states to weights", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		row := rowDef{source: node.Content[i].Value}
		if err := node.Content[i+1].Decode(&row.weights); err != nil {
			return err
		}
		*r = append(*r, row)
	}
	return nil
}

func (r rowsDef) table(domain []string) (*markov.Table[string, string], error) {
	table := markov.NewTable[string, string]()
	for _, row := range r {
		v, err := row.weights.vector(domain)
		if err != nil {
			return nil, fmt.Errorf("row %q: %w", row.source, err)
		}
		table.SetRow(markov.From(row.source), v)
	}
	return table, nil
}

// ParseModelDef decodes a YAML model definition.
func ParseModelDef(data []byte) (*ModelDef, error) {
	var def ModelDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse model definition: %w", err)
	}
	return &def, nil
}

// LoadModelDef reads and decodes a YAML model definition file.
func LoadModelDef(path string) (*ModelDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model definition: %w", err)
	}
	return ParseModelDef(data)
}

// Chain builds the transition chain. The initial weights, when present, fill
// its initial row.
func (d *ModelDef) Chain() (*markov.Chain[string], error) {
	table, err := d.Transitions.table(d.States)
	if err != nil {
		return nil, fmt.Errorf("transitions: %w", err)
	}
	if d.Initial.set {
		initial, err := d.Initial.vector(d.States)
		if err != nil {
			return nil, fmt.Errorf("initial: %w", err)
		}
		table.SetRow(markov.Initial[string](), initial)
	}
	return markov.NewChainFromTable(table), nil
}

// HMM builds the hidden Markov model. Without a states list the transition
// sources are used, in definition order.
func (d *ModelDef) HMM() (*markov.HiddenMarkovModel[string, string], error) {
	chain, err := d.Chain()
	if err != nil {
		return nil, err
	}
	emissions, err := d.Emissions.table(d.Observations)
	if err != nil {
		return nil, fmt.Errorf("emissions: %w", err)
	}

	states := d.States
	if len(states) == 0 {
		states = chain.Sources()
	}
	initial, _ := chain.Row(markov.Initial[string]())
	return markov.NewHiddenMarkovModel(states, initial, chain, emissions), nil
}
