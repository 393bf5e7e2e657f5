// Command graph-of-thrones renders the relationships between characters of
// a chaptered corpus as an interactive chord diagram.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evnp/graph-of-thrones/pkg/config"
	"github.com/evnp/graph-of-thrones/pkg/corpus"
	"github.com/evnp/graph-of-thrones/pkg/diagram"
	"github.com/evnp/graph-of-thrones/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "graph-of-thrones",
		Short:         "Chord diagram of who shares chapters with whom",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(), newReportCmd())
	return root
}

// setup loads and validates the configuration and configures logging.
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Configure(os.Stderr, cfg.LogLevel(), cfg.JSONLogs)
	if cfg.File != "" {
		logging.Debug("loaded config file", "path", cfg.File)
	}
	return cfg, nil
}

// loadCorpus reads and indexes the data file named by cfg.
func loadCorpus(cfg *config.Config) (*corpus.Index, corpus.Diagnostics, error) {
	data, err := corpus.Load(cfg.Data)
	if err != nil {
		return nil, corpus.Diagnostics{}, fmt.Errorf("loading corpus: %w", err)
	}
	idx, diag := data.BuildIndex(cfg.CorpusOptions())
	for _, ref := range diag.Dangling {
		logging.Debug("skipped unknown participant", "event", ref.EventID, "entity", ref.EntityID)
	}
	logging.Info("corpus loaded",
		"path", cfg.Data,
		"events", len(idx.Events()),
		"entities", len(idx.EntityIDs()),
		"skippedRefs", diag.SkippedRefs)
	return idx, diag, nil
}

func newDiagram(cfg *config.Config, idx *corpus.Index) *diagram.Diagram {
	return diagram.New(idx, diagram.Options{Matrix: cfg.MatrixOptions()})
}
