package cli

import (
	"github.com/spf13/cobra"

	"github.com/deepdrugkit/deepdrugkit/internal/data/dataset"
	"github.com/deepdrugkit/deepdrugkit/internal/eval"
	"github.com/deepdrugkit/deepdrugkit/internal/models"
)

// evaluateResult is the stdout payload of the evaluate command.
type evaluateResult struct {
	RunID   string      `json:"run_id"`
	Model   string      `json:"model"`
	Dataset string      `json:"dataset"`
	Samples int         `json:"samples"`
	Report  eval.Report `json:"report"`
}

func newEvaluateCmd() *cobra.Command {
	flags := datasetFlags{}
	var modelName string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a model over a dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if modelName == "" {
				modelName = cfg.Train.Model
			}

			model, err := models.New(modelName, modelConfig(cfg))
			if err != nil {
				return err
			}
			list, err := model.DefaultPreprocess(dataset.AttrDrug, dataset.AttrTarget, dataset.AttrLabel)
			if err != nil {
				return err
			}

			cache, closeCache := openCache(cfg, cliCtx.Logger)
			defer closeCache()

			ds, err := loadDataset(cmd.Context(), cliCtx, flags, list, cache, nil)
			if err != nil {
				return err
			}

			loader := dataset.NewLoader(ds, collateFunc(model), dataset.LoaderOptions{
				BatchSize:  cfg.Train.BatchSize,
				NumWorkers: cfg.Train.NumWorkers,
			})
			evaluator, err := eval.New(cfg.Eval.Metrics, eval.Options{Threshold: cfg.Eval.Threshold})
			if err != nil {
				return err
			}

			report, err := model.Evaluate(cmd.Context(), loader, criterionFor(modelName), evaluator)
			if err != nil {
				return err
			}
			return printJSON(cmd, evaluateResult{
				RunID:   cliCtx.RunID,
				Model:   model.Name(),
				Dataset: flags.Name,
				Samples: evaluator.Count(),
				Report:  report,
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "model to evaluate (default: train.model)")
	return cmd
}
