package models

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/deepdrugkit/deepdrugkit/internal/bio"
	"github.com/deepdrugkit/deepdrugkit/internal/chem"
	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/internal/nn"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

func init() {
	mustRegister(NameGCNDTI, newGCNDTI)
}

// GraphBatch packs several molecular graphs into one block-diagonal system
// so a whole batch runs through the convolutions as a single matrix product.
type GraphBatch struct {
	// Nodes stacks every graph's atom features, totalAtoms by NodeFeatureDim.
	Nodes *mat.Dense
	// Adj is the symmetrically normalised adjacency with self loops,
	// D^-1/2 (A+I) D^-1/2, block diagonal over the graphs.
	Adj *mat.Dense
	// BatchIndex maps each node row to its graph.
	BatchIndex []int
	NumGraphs  int
}

// NewGraphBatch builds the block-diagonal batch form of graphs.
func NewGraphBatch(graphs []*chem.Graph) (*GraphBatch, error) {
	total := 0
	for _, g := range graphs {
		if g.NumAtoms == 0 {
			return nil, errors.New(errors.ErrCodeInvalidParam, "cannot batch an empty graph")
		}
		total += g.NumAtoms
	}

	nodes := mat.NewDense(total, chem.NodeFeatureDim, nil)
	adj := mat.NewDense(total, total, nil)
	batchIndex := make([]int, total)

	offset := 0
	for gi, g := range graphs {
		for i, nf := range g.NodeFeatures {
			batchIndex[offset+i] = gi
			for j, f := range nf {
				nodes.Set(offset+i, j, float64(f))
			}
		}

		// A + I, then D^-1/2 (A+I) D^-1/2 within the block.  EdgeIndex
		// already carries both directions.
		for i := 0; i < g.NumAtoms; i++ {
			adj.Set(offset+i, offset+i, 1)
		}
		for _, e := range g.EdgeIndex {
			adj.Set(offset+e[0], offset+e[1], 1)
		}
		degree := make([]float64, g.NumAtoms)
		for i := 0; i < g.NumAtoms; i++ {
			for j := 0; j < g.NumAtoms; j++ {
				degree[i] += adj.At(offset+i, offset+j)
			}
		}
		for i := 0; i < g.NumAtoms; i++ {
			for j := 0; j < g.NumAtoms; j++ {
				v := adj.At(offset+i, offset+j)
				if v != 0 {
					adj.Set(offset+i, offset+j, v/math.Sqrt(degree[i]*degree[j]))
				}
			}
		}
		offset += g.NumAtoms
	}

	return &GraphBatch{
		Nodes:      nodes,
		Adj:        adj,
		BatchIndex: batchIndex,
		NumGraphs:  len(graphs),
	}, nil
}

// graphCounts returns the node count per graph.
func (gb *GraphBatch) graphCounts() []float64 {
	counts := make([]float64, gb.NumGraphs)
	for _, g := range gb.BatchIndex {
		counts[g]++
	}
	return counts
}

// ReadoutMean pools node states into one row per graph by mean.
func (gb *GraphBatch) ReadoutMean(h *mat.Dense) *mat.Dense {
	_, dim := h.Dims()
	out := mat.NewDense(gb.NumGraphs, dim, nil)
	counts := gb.graphCounts()
	for i, g := range gb.BatchIndex {
		for c := 0; c < dim; c++ {
			out.Set(g, c, out.At(g, c)+h.At(i, c)/counts[g])
		}
	}
	return out
}

// readoutBackward spreads a per-graph gradient back onto the nodes.
func (gb *GraphBatch) readoutBackward(grad *mat.Dense) *mat.Dense {
	_, dim := grad.Dims()
	out := mat.NewDense(len(gb.BatchIndex), dim, nil)
	counts := gb.graphCounts()
	for i, g := range gb.BatchIndex {
		for c := 0; c < dim; c++ {
			out.Set(i, c, grad.At(g, c)/counts[g])
		}
	}
	return out
}

// graphConv is one convolution: h' = Â h W.
type graphConv struct {
	W *nn.Param

	propagated *mat.Dense // Â h of the last forward
}

func newGraphConv(in, out int, seed int64) *graphConv {
	return &graphConv{W: nn.NewGlorotParam(in, out, seed)}
}

func (c *graphConv) forward(gb *GraphBatch, h *mat.Dense) *mat.Dense {
	var ah mat.Dense
	ah.Mul(gb.Adj, h)
	c.propagated = &ah
	var out mat.Dense
	out.Mul(&ah, c.W.Value)
	return &out
}

func (c *graphConv) backward(gb *GraphBatch, grad *mat.Dense) *mat.Dense {
	var dW mat.Dense
	dW.Mul(c.propagated.T(), grad)
	c.W.Grad.Add(c.W.Grad, &dW)

	var dah mat.Dense
	dah.Mul(grad, c.W.Value.T())
	var dh mat.Dense
	// Â is symmetric, so its transpose is itself.
	dh.Mul(gb.Adj, &dah)
	return &dh
}

// gcnNet is the two-branch network of the graph model: convolutions with
// mean readout on the drug side, one dense stage on the target side, and a
// joint MLP head.
type gcnNet struct {
	conv1, conv2 *graphConv
	relu1, relu2 *nn.ReLU

	targetFC   *nn.Dense
	targetReLU *nn.ReLU

	head *nn.Network

	embedDim  int
	lastBatch *GraphBatch
}

func newGCNNet(targetDim, embedDim int, hidden []int, dropout float64, seed int64) *gcnNet {
	return &gcnNet{
		conv1:      newGraphConv(chem.NodeFeatureDim, embedDim, seed),
		conv2:      newGraphConv(embedDim, embedDim, seed+1),
		relu1:      &nn.ReLU{},
		relu2:      &nn.ReLU{},
		targetFC:   nn.NewDense(targetDim, embedDim, seed+2),
		targetReLU: &nn.ReLU{},
		head:       buildMLP(2*embedDim, hidden, dropout, true, seed+3),
		embedDim:   embedDim,
	}
}

func (n *gcnNet) forward(b *Batch) *mat.Dense {
	gb := b.Graphs
	n.lastBatch = gb

	h := n.relu1.Forward(n.conv1.forward(gb, gb.Nodes))
	h = n.relu2.Forward(n.conv2.forward(gb, h))
	drug := gb.ReadoutMean(h)

	target := n.targetReLU.Forward(n.targetFC.Forward(b.Target))
	return n.head.Forward(hconcat(drug, target))
}

func (n *gcnNet) backward(grad *mat.Dense) {
	gx := n.head.Backward(grad)
	dDrug, dTarget := splitCols(gx, n.embedDim)

	n.targetFC.Backward(n.targetReLU.Backward(dTarget))

	gb := n.lastBatch
	dh := gb.readoutBackward(dDrug)
	dh = n.conv2.backward(gb, n.relu2.Backward(dh))
	n.conv1.backward(gb, n.relu1.Backward(dh))
}

func (n *gcnNet) params() []*nn.Param {
	params := []*nn.Param{n.conv1.W, n.conv2.W}
	params = append(params, n.targetFC.Params()...)
	params = append(params, n.head.Params()...)
	return params
}

func (n *gcnNet) setTraining(on bool) { n.head.SetTraining(on) }

// gcnModel predicts binary interaction from molecular graphs and target
// residue composition.
type gcnModel struct {
	base
	kmerK    int
	embedDim int
}

func newGCNDTI(cfg Config) (Model, error) {
	cfg = cfg.withDefaults()
	if cfg.KmerK <= 0 {
		cfg.KmerK = 1
	}
	hidden := cfg.Hidden
	if len(hidden) == 0 {
		hidden = []int{128}
	}
	const embedDim = 128
	targetDim := bio.KmerDim(bio.KmerOptions{K: cfg.KmerK})

	m := &gcnModel{kmerK: cfg.KmerK, embedDim: embedDim}
	m.base = base{
		name: NameGCNDTI,
		cfg:  cfg,
		net:  newGCNNet(targetDim, embedDim, hidden, cfg.Dropout, cfg.Seed),
	}
	return m, nil
}

func (m *gcnModel) DefaultPreprocess(drugAttr, targetAttr, labelAttr string) (*preprocess.List, error) {
	settings := preprocess.Settings{}
	if m.cfg.MaxAtoms > 0 {
		settings["max_atoms"] = m.cfg.MaxAtoms
	}
	drug, err := preprocess.NewObject(drugAttr, preprocess.DtypeSMILES, preprocess.DtypeGraph, settings)
	if err != nil {
		return nil, err
	}
	target, err := preprocess.NewObject(targetAttr, preprocess.DtypeSequence, preprocess.DtypeKmer,
		preprocess.Settings{"k": m.kmerK, "normalize": true})
	if err != nil {
		return nil, err
	}
	var labelSettings preprocess.Settings
	if m.cfg.LabelThreshold != 0 {
		labelSettings = preprocess.Settings{"threshold": m.cfg.LabelThreshold}
	}
	label, err := preprocess.NewObject(labelAttr, preprocess.DtypeLabel, preprocess.DtypeBinary, labelSettings)
	if err != nil {
		return nil, err
	}
	return preprocess.NewList(drug, target, label), nil
}

func (m *gcnModel) Collate(samples []preprocess.Record) (*Batch, error) {
	graphs := make([]*chem.Graph, len(samples))
	for i, rec := range samples {
		v, ok := rec[m.cfg.DrugAttr]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeMissingAttribute, "record has no attribute %q", m.cfg.DrugAttr)
		}
		g, ok := v.(*chem.Graph)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeMalformedRow,
				"attribute %q is %T, want *chem.Graph", m.cfg.DrugAttr, v)
		}
		graphs[i] = g
	}
	gb, err := NewGraphBatch(graphs)
	if err != nil {
		return nil, err
	}
	target, err := featureMatrix(samples, m.cfg.TargetAttr)
	if err != nil {
		return nil, err
	}
	labels, err := labelColumn(samples, m.cfg.LabelAttr)
	if err != nil {
		return nil, err
	}
	return &Batch{Target: target, Labels: labels, Graphs: gb, Size: len(samples)}, nil
}
