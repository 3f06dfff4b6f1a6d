package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/deepdrugkit/deepdrugkit/internal/chem"
	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/internal/nn"
)

func mustGraph(t *testing.T, smiles string) *chem.Graph {
	t.Helper()
	g, err := chem.SMILESToGraph(smiles, chem.GraphOptions{})
	require.NoError(t, err)
	return g
}

func TestNewGraphBatchBlockStructure(t *testing.T) {
	ethane := mustGraph(t, "CC")   // 2 atoms
	propane := mustGraph(t, "CCC") // 3 atoms

	gb, err := NewGraphBatch([]*chem.Graph{ethane, propane})
	require.NoError(t, err)

	rows, cols := gb.Nodes.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, chem.NodeFeatureDim, cols)
	assert.Equal(t, []int{0, 0, 1, 1, 1}, gb.BatchIndex)
	assert.Equal(t, 2, gb.NumGraphs)

	// Cross-graph entries stay zero.
	for i := 0; i < 2; i++ {
		for j := 2; j < 5; j++ {
			assert.Zero(t, gb.Adj.At(i, j))
			assert.Zero(t, gb.Adj.At(j, i))
		}
	}

	// Ethane block: both degrees are 2 with the self loop, so every entry
	// of the normalised block is 1/2.
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, 0.5, gb.Adj.At(i, j), 1e-12)
		}
	}

	// Normalised adjacency is symmetric.
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			assert.InDelta(t, gb.Adj.At(j, i), gb.Adj.At(i, j), 1e-12)
		}
	}
}

func TestGraphBatchReadoutMean(t *testing.T) {
	gb := &GraphBatch{
		BatchIndex: []int{0, 0, 1},
		NumGraphs:  2,
	}
	h := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})
	pooled := gb.ReadoutMean(h)
	assert.InDelta(t, 2.0, pooled.At(0, 0), 1e-12)
	assert.InDelta(t, 3.0, pooled.At(0, 1), 1e-12)
	assert.InDelta(t, 5.0, pooled.At(1, 0), 1e-12)
	assert.InDelta(t, 6.0, pooled.At(1, 1), 1e-12)

	// Backward spreads each graph gradient evenly over its nodes.
	grad := mat.NewDense(2, 2, []float64{2, 4, 3, 9})
	back := gb.readoutBackward(grad)
	assert.InDelta(t, 1.0, back.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0, back.At(1, 1), 1e-12)
	assert.InDelta(t, 3.0, back.At(2, 0), 1e-12)
	assert.InDelta(t, 9.0, back.At(2, 1), 1e-12)
}

func TestNewGraphBatchRejectsEmptyGraph(t *testing.T) {
	_, err := NewGraphBatch([]*chem.Graph{{}})
	require.Error(t, err)
}

func TestGCNDTICollate(t *testing.T) {
	m, err := New(NameGCNDTI, Config{Seed: 1, Hidden: []int{8}})
	require.NoError(t, err)

	list, err := m.DefaultPreprocess("drug", "target", "label")
	require.NoError(t, err)

	rec, err := list.Apply(map[string]any{
		"drug":   "c1ccccc1",
		"target": "MKTAYIAKQR",
		"label":  9.0,
	})
	require.NoError(t, err)

	batch, err := m.Collate([]preprocess.Record{rec, rec, rec})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Size)
	require.NotNil(t, batch.Graphs)
	assert.Equal(t, 18, len(batch.Graphs.BatchIndex)) // three benzenes
	_, tcols := batch.Target.Dims()
	assert.Equal(t, 20, tcols) // k=1 composition
}

func TestGCNDTITrainingReducesLoss(t *testing.T) {
	m, err := New(NameGCNDTI, Config{Seed: 13, Hidden: []int{8}})
	require.NoError(t, err)

	loader := preparedLoader(t, m, 4)
	criterion := &nn.BCELoss{}
	opt, err := nn.NewOptimizer(nn.OptAdam, nn.OptimizerConfig{LR: 0.005})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := m.TrainOneEpoch(ctx, loader, criterion, opt, TrainOptions{})
	require.NoError(t, err)
	var last float64
	for i := 0; i < 30; i++ {
		last, err = m.TrainOneEpoch(ctx, loader, criterion, opt, TrainOptions{})
		require.NoError(t, err)
	}
	assert.Less(t, last, first)
}

func TestGCNDTIMaxAtomsFlowsIntoPipeline(t *testing.T) {
	m, err := New(NameGCNDTI, Config{Seed: 1, MaxAtoms: 4, Hidden: []int{8}})
	require.NoError(t, err)

	list, err := m.DefaultPreprocess("drug", "target", "label")
	require.NoError(t, err)

	_, err = list.Apply(map[string]any{
		"drug":   "c1ccccc1", // 6 atoms, above the cap
		"target": "MKTAY",
		"label":  1.0,
	})
	require.Error(t, err)
}
