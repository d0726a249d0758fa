package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/CTAG07/markovkit/pkg/markov"
	"github.com/CTAG07/markovkit/pkg/markovdb"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const usage = `usage: markovkit [-config path] <command> [flags]

commands:
  init       write the default config file
  version    print build information
  models     list the models stored in the database
  generate   generate a state sequence from a chain
  decode     decode observations with a hidden Markov model
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "markovkit:", err)
		os.Exit(1)
	}
}

// app carries what every command needs once the config is loaded.
type app struct {
	configPath string
	config     *Config
	logger     *slog.Logger
	stdout     io.Writer
}

// run parses the global flags, loads the config and dispatches to a command.
// Logs go to stderr, results to stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("markovkit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "./config.json", "path to the JSON config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	config, err := LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parseLogLevel(config.LogLevel)}))

	a := &app{configPath: *configPath, config: config, logger: logger, stdout: stdout}
	command, rest := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "init":
		return a.initConfig()
	case "version":
		_, err = fmt.Fprintf(stdout, "markovkit %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return err
	case "models":
		return a.listModels(ctx)
	case "generate":
		return a.generate(ctx, rest, stderr)
	case "decode":
		return a.decode(ctx, rest, stderr)
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func (a *app) initConfig() error {
	if err := WriteConfig(a.configPath, DefaultConfig()); err != nil {
		return err
	}
	a.logger.Info("Wrote default config", "path", a.configPath)
	return nil
}

// withLoader opens the database, ensures the schema exists and hands a Loader
// to fn. Everything is closed again when fn returns.
func (a *app) withLoader(ctx context.Context, fn func(*markovdb.Loader) error) error {
	db, err := initDB(a.config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}()

	if err = markovdb.SetupSchema(db); err != nil {
		return fmt.Errorf("failed to setup markov schema: %w", err)
	}
	loader, err := markovdb.NewLoader(db)
	if err != nil {
		return fmt.Errorf("failed to prepare statements: %w", err)
	}
	defer loader.Close()
	loader.SetLogger(a.logger)

	a.logger.DebugContext(ctx, "Database opened", "path", a.config.DatabasePath, "driver", driverName)
	return fn(loader)
}

func (a *app) listModels(ctx context.Context) error {
	return a.withLoader(ctx, func(l *markovdb.Loader) error {
		stats, err := l.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATES\tTRANSITIONS\tEMISSIONS")
		for _, m := range stats.Models {
			s := stats.Stats[m.Id]
			_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d/%d\t%d/%d\n",
				m.Id, m.Name, s.States, s.TransitionRows, s.TransitionEdges, s.EmissionRows, s.EmissionEdges)
		}
		return w.Flush()
	})
}

// modelSource is the pair of flags naming where a model comes from.
type modelSource struct {
	name string
	def  string
}

func (m *modelSource) register(fs *flag.FlagSet) {
	fs.StringVar(&m.name, "model", "", "name of a model stored in the database")
	fs.StringVar(&m.def, "def", "", "path to a YAML model definition")
}

func (m *modelSource) validate() error {
	if (m.name == "") == (m.def == "") {
		return fmt.Errorf("%w: exactly one of -model and -def is required", errUsage)
	}
	return nil
}

func (a *app) loadChain(ctx context.Context, src modelSource) (*markov.Chain[string], error) {
	if src.def != "" {
		def, err := LoadModelDef(src.def)
		if err != nil {
			return nil, err
		}
		chain, err := def.Chain()
		if err != nil {
			return nil, err
		}
		chain.SetLogger(a.logger)
		return chain, nil
	}

	var chain *markov.Chain[string]
	err := a.withLoader(ctx, func(l *markovdb.Loader) error {
		model, err := l.GetModelInfo(ctx, src.name)
		if err != nil {
			return err
		}
		chain, err = l.LoadChain(ctx, model)
		return err
	})
	return chain, err
}

func (a *app) loadHMM(ctx context.Context, src modelSource) (*markov.HiddenMarkovModel[string, string], error) {
	if src.def != "" {
		def, err := LoadModelDef(src.def)
		if err != nil {
			return nil, err
		}
		hmm, err := def.HMM()
		if err != nil {
			return nil, err
		}
		hmm.SetLogger(a.logger)
		return hmm, nil
	}

	var hmm *markov.HiddenMarkovModel[string, string]
	err := a.withLoader(ctx, func(l *markovdb.Loader) error {
		model, err := l.GetModelInfo(ctx, src.name)
		if err != nil {
			return err
		}
		hmm, err = l.LoadHMM(ctx, model)
		return err
	})
	return hmm, err
}

func (a *app) generate(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var src modelSource
	src.register(fs)
	start := fs.String("start", "", "state to start from instead of sampling the initial row")
	maxLength := fs.Int("n", a.config.MaxLength, "maximum number of generated states")
	until := fs.String("until", "", "stop once this state has been generated")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := src.validate(); err != nil {
		return err
	}

	chain, err := a.loadChain(ctx, src)
	if err != nil {
		return err
	}
	if a.config.Seed != 0 {
		chain.SetRand(markov.NewSeededRand(a.config.Seed))
	}

	var opts []markov.GenerateOption[string]
	if *start != "" {
		opts = append(opts, markov.WithStart(*start))
	}
	if *until != "" {
		stop := *until
		opts = append(opts, markov.WithStopCondition(func(seq []string) bool {
			return len(seq) > 0 && seq[len(seq)-1] == stop
		}))
	}

	seq := chain.Generate(*maxLength, opts...)
	a.logger.Debug("Generated sequence", "length", len(seq))
	_, err = fmt.Fprintln(a.stdout, strings.Join(seq, " "))
	return err
}

func (a *app) decode(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var src modelSource
	src.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := src.validate(); err != nil {
		return err
	}

	hmm, err := a.loadHMM(ctx, src)
	if err != nil {
		return err
	}

	result := hmm.Viterbi(fs.Args())
	_, err = fmt.Fprintf(a.stdout, "path: %s\nprobability: %.6g\nlikelihood: %.6g\n",
		strings.Join(result.Path, " "), result.Probability, result.Likelihood)
	return err
}
