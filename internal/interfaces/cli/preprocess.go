package cli

import (
	"github.com/spf13/cobra"

	"github.com/deepdrugkit/deepdrugkit/internal/data/dataset"
	"github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/logging"
	"github.com/deepdrugkit/deepdrugkit/internal/models"
)

// preprocessResult is the stdout payload of the preprocess command.
type preprocessResult struct {
	RunID      string   `json:"run_id"`
	Dataset    string   `json:"dataset"`
	Records    int      `json:"records"`
	Model      string   `json:"model"`
	Transforms []string `json:"transforms"`
}

func newPreprocessCmd() *cobra.Command {
	flags := datasetFlags{}
	var modelName string

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Run a model's preprocessing pipeline over a dataset",
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
			cliCtx.Logger.Info("dataset preprocessed",
				logging.String("dataset", flags.Name),
				logging.Int("records", ds.Len()),
			)

			transforms := make([]string, 0, len(list.Objects()))
			for _, o := range list.Objects() {
				transforms = append(transforms, o.Key())
			}
			return printJSON(cmd, preprocessResult{
				RunID:      cliCtx.RunID,
				Dataset:    flags.Name,
				Records:    ds.Len(),
				Model:      model.Name(),
				Transforms: transforms,
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "model whose pipeline to run (default: train.model)")
	return cmd
}
