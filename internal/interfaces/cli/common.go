package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deepdrugkit/deepdrugkit/internal/config"
	"github.com/deepdrugkit/deepdrugkit/internal/data/dataset"
	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/logging"
	monitoring "github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/prometheus"
	"github.com/deepdrugkit/deepdrugkit/internal/models"
	"github.com/deepdrugkit/deepdrugkit/internal/nn"
)

// datasetFlags are shared by every data-consuming subcommand.
type datasetFlags struct {
	Name string
	Path string
}

func (f *datasetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Name, "dataset", "d", "", "dataset name (e.g. davis, kiba, csv)")
	cmd.Flags().StringVarP(&f.Path, "path", "p", "", "dataset file path (default: <data.root>/<dataset>.csv)")
	_ = cmd.MarkFlagRequired("dataset")
}

func (f *datasetFlags) resolvedPath(cfg *config.Config) string {
	if f.Path != "" {
		return f.Path
	}
	return filepath.Join(cfg.Data.Root, f.Name+".csv")
}

// openCache opens the configured transform cache, or returns nil when
// caching is disabled.
func openCache(cfg *config.Config, log logging.Logger) (*preprocess.Cache, func()) {
	if cfg.Data.CachePath == "" {
		return nil, func() {}
	}
	cache, err := preprocess.OpenCache(cfg.Data.CachePath)
	if err != nil {
		log.Warn("transform cache unavailable, continuing without it",
			logging.String("path", cfg.Data.CachePath), logging.Err(err))
		return nil, func() {}
	}
	return cache, func() { _ = cache.Close() }
}

// loadDataset loads the named dataset, optionally through a preprocessing
// pipeline.
func loadDataset(ctx context.Context, cliCtx *CLIContext, flags datasetFlags, list *preprocess.List, cache *preprocess.Cache, tm monitoring.TrainingMetrics) (*dataset.Dataset, error) {
	cfg := cliCtx.Config
	factory := dataset.NewFactory()
	return factory.Load(ctx, flags.Name, dataset.LoadOptions{
		Path:        flags.resolvedPath(cfg),
		List:        list,
		SkipInvalid: cfg.Data.SkipInvalid,
		Workers:     cfg.Data.NumWorkers,
		Cache:       cache,
		Metrics:     tm,
		Logger:      cliCtx.Logger,
	})
}

// collateFunc adapts a model's typed Collate to the loader contract.
func collateFunc(m models.Model) dataset.CollateFunc {
	return func(samples []preprocess.Record) (any, error) {
		return m.Collate(samples)
	}
}

// modelConfig maps the training configuration onto model construction.
func modelConfig(cfg *config.Config) models.Config {
	return models.Config{
		Seed:            cfg.Train.Seed,
		Hidden:          cfg.Train.Hidden,
		Dropout:         cfg.Train.Dropout,
		FingerprintBits: cfg.Train.FingerprintBits,
		KmerK:           cfg.Train.KmerK,
		MaxAtoms:        cfg.Train.MaxAtoms,
		LabelThreshold:  cfg.Train.LabelThreshold,
	}
}

// criterionFor picks the loss matching the model's output head.
func criterionFor(modelName string) nn.Loss {
	if modelName == models.NameAffinityMLP {
		return &nn.MSELoss{}
	}
	return &nn.BCELoss{}
}

// splitOptions maps the split configuration onto dataset splitting.
func splitOptions(cfg *config.Config) dataset.SplitOptions {
	return dataset.SplitOptions{
		Method:     cfg.Split.Method,
		Fractions:  cfg.Split.Fractions,
		Seed:       cfg.Split.Seed,
		SampleFrac: cfg.Split.SampleFrac,
		K:          cfg.Split.K,
		GroupAttr:  cfg.Split.GroupAttr,
	}
}

// printJSON writes v to stdout, indented for human consumption.
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	cmd.Println(string(out))
	return nil
}
