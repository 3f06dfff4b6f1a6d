package cli

import (
	"github.com/spf13/cobra"
)

// splitResult is the stdout payload of the split command.
type splitResult struct {
	RunID  string      `json:"run_id"`
	Method string      `json:"method"`
	Seed   int64       `json:"seed"`
	Parts  []splitPart `json:"parts"`
}

type splitPart struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

func newSplitCmd() *cobra.Command {
	flags := datasetFlags{}

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a dataset and report the part sizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config

			// Splits group on raw attributes (sequences, SMILES), so load
			// without a pipeline.
			ds, err := loadDataset(cmd.Context(), cliCtx, flags, nil, nil, nil)
			if err != nil {
				return err
			}

			parts, err := ds.Split(splitOptions(cfg))
			if err != nil {
				return err
			}

			result := splitResult{
				RunID:  cliCtx.RunID,
				Method: cfg.Split.Method,
				Seed:   cfg.Split.Seed,
			}
			for _, p := range parts {
				result.Parts = append(result.Parts, splitPart{Name: p.Name(), Size: p.Len()})
			}
			return printJSON(cmd, result)
		},
	}

	flags.register(cmd)
	return cmd
}
