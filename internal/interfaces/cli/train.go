package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/deepdrugkit/deepdrugkit/internal/data/dataset"
	"github.com/deepdrugkit/deepdrugkit/internal/eval"
	"github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/logging"
	monitoring "github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/prometheus"
	"github.com/deepdrugkit/deepdrugkit/internal/interfaces/monitor"
	"github.com/deepdrugkit/deepdrugkit/internal/models"
	"github.com/deepdrugkit/deepdrugkit/internal/nn"
)

// trainResult is the stdout payload of the train command.
type trainResult struct {
	RunID      string      `json:"run_id"`
	Model      string      `json:"model"`
	Epochs     int         `json:"epochs"`
	TrainSize  int         `json:"train_size"`
	FinalLoss  float64     `json:"final_loss"`
	Validation eval.Report `json:"validation,omitempty"`
}

func newTrainCmd() *cobra.Command {
	flags := datasetFlags{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on a dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			log := cliCtx.Logger.With(logging.String("run_id", cliCtx.RunID))

			model, err := models.New(cfg.Train.Model, modelConfig(cfg))
			if err != nil {
				return err
			}

			// Optional telemetry surface for long runs.
			var srv *monitor.Server
			var tm monitoring.TrainingMetrics
			if cfg.Monitor.Enabled {
				registry := prometheus.NewRegistry()
				ptm, merr := monitoring.NewPrometheusTrainingMetrics(registry)
				if merr != nil {
					return merr
				}
				tm = ptm
				model = models.WithMetrics(model, tm)
				srv = monitor.New(cfg.Monitor, registry, tm, log)
				go func() {
					if serveErr := srv.Start(); serveErr != nil {
						log.Error("monitor server failed", logging.Err(serveErr))
					}
				}()
				defer func() { _ = srv.Stop(context.Background()) }()
			}

			list, err := model.DefaultPreprocess(dataset.AttrDrug, dataset.AttrTarget, dataset.AttrLabel)
			if err != nil {
				return err
			}
			cache, closeCache := openCache(cfg, log)
			defer closeCache()

			ds, err := loadDataset(cmd.Context(), cliCtx, flags, list, cache, tm)
			if err != nil {
				return err
			}

			parts, err := ds.Split(splitOptions(cfg))
			if err != nil {
				return err
			}
			train := parts[0]

			loader := dataset.NewLoader(train, collateFunc(model), dataset.LoaderOptions{
				BatchSize:  cfg.Train.BatchSize,
				Shuffle:    cfg.Train.Shuffle,
				Seed:       cfg.Train.Seed,
				NumWorkers: cfg.Train.NumWorkers,
			})

			opt, err := nn.NewOptimizer(cfg.Train.Optimizer, nn.OptimizerConfig{
				LR:          cfg.Train.LearningRate,
				WeightDecay: cfg.Train.WeightDecay,
			})
			if err != nil {
				return err
			}
			criterion := criterionFor(cfg.Train.Model)

			var loss float64
			for epoch := 1; epoch <= cfg.Train.Epochs; epoch++ {
				loss, err = model.TrainOneEpoch(cmd.Context(), loader, criterion, opt, models.TrainOptions{
					GradAccumSteps: cfg.Train.GradAccumSteps,
					Logger:         log,
				})
				if err != nil {
					return err
				}
				log.Info("epoch finished",
					logging.Int("epoch", epoch),
					logging.Float64("loss", loss),
				)
			}

			result := trainResult{
				RunID:     cliCtx.RunID,
				Model:     model.Name(),
				Epochs:    cfg.Train.Epochs,
				TrainSize: train.Len(),
				FinalLoss: loss,
			}

			// Score the held-out part when the split produced one.
			if len(parts) > 1 {
				val := parts[len(parts)-1]
				valLoader := dataset.NewLoader(val, collateFunc(model), dataset.LoaderOptions{
					BatchSize:  cfg.Train.BatchSize,
					NumWorkers: cfg.Train.NumWorkers,
				})
				evaluator, eerr := eval.New(cfg.Eval.Metrics, eval.Options{Threshold: cfg.Eval.Threshold})
				if eerr != nil {
					return eerr
				}
				report, eerr := model.Evaluate(cmd.Context(), valLoader, criterion, evaluator)
				if eerr != nil {
					return eerr
				}
				result.Validation = report
			}

			return printJSON(cmd, result)
		},
	}

	flags.register(cmd)
	return cmd
}
