package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/deepdrugkit/deepdrugkit/internal/bio"
	"github.com/deepdrugkit/deepdrugkit/internal/chem"
	"github.com/deepdrugkit/deepdrugkit/internal/data/preprocess"
	"github.com/deepdrugkit/deepdrugkit/internal/nn"
)

func init() {
	mustRegister(NameMLPDTI, newMLPDTI)
	mustRegister(NameAffinityMLP, newAffinityMLP)
}

// mlpModel is a fingerprint-plus-composition MLP, shared between the
// classification and regression variants.
type mlpModel struct {
	base
	kmerK     int
	binaryOut bool
}

// buildMLP assembles Dense/ReLU/Dropout stages over the given layer sizes,
// ending in a single output unit.
func buildMLP(in int, hidden []int, dropout float64, sigmoid bool, seed int64) *nn.Network {
	var layers []nn.Layer
	prev := in
	for i, h := range hidden {
		layers = append(layers, nn.NewDense(prev, h, seed+int64(i)))
		layers = append(layers, &nn.ReLU{})
		if dropout > 0 {
			layers = append(layers, nn.NewDropout(dropout, seed+100+int64(i)))
		}
		prev = h
	}
	layers = append(layers, nn.NewDense(prev, 1, seed+int64(len(hidden))))
	if sigmoid {
		layers = append(layers, &nn.Sigmoid{})
	}
	return nn.NewNetwork(layers...)
}

func newMLPModel(name string, cfg Config, binaryOut bool) (Model, error) {
	cfg = cfg.withDefaults()
	if cfg.KmerK <= 0 {
		cfg.KmerK = 2
	}
	hidden := cfg.Hidden
	if len(hidden) == 0 {
		hidden = []int{256, 128}
	}
	in := cfg.FingerprintBits + bio.KmerDim(bio.KmerOptions{K: cfg.KmerK})
	m := &mlpModel{
		kmerK:     cfg.KmerK,
		binaryOut: binaryOut,
	}
	m.base = base{
		name: name,
		cfg:  cfg,
		net:  &mlpNet{net: buildMLP(in, hidden, cfg.Dropout, binaryOut, cfg.Seed)},
	}
	return m, nil
}

func newMLPDTI(cfg Config) (Model, error) {
	return newMLPModel(NameMLPDTI, cfg, true)
}

func newAffinityMLP(cfg Config) (Model, error) {
	return newMLPModel(NameAffinityMLP, cfg, false)
}

func (m *mlpModel) DefaultPreprocess(drugAttr, targetAttr, labelAttr string) (*preprocess.List, error) {
	drug, err := preprocess.NewObject(drugAttr, preprocess.DtypeSMILES, preprocess.DtypeFingerprint,
		preprocess.Settings{
			"method": string(chem.FPMorgan),
			"n_bits": m.cfg.FingerprintBits,
		})
	if err != nil {
		return nil, err
	}
	target, err := preprocess.NewObject(targetAttr, preprocess.DtypeSequence, preprocess.DtypeKmer,
		preprocess.Settings{"k": m.kmerK, "normalize": true})
	if err != nil {
		return nil, err
	}
	labelTo := preprocess.DtypeLog10Affinity
	var labelSettings preprocess.Settings
	if m.binaryOut {
		labelTo = preprocess.DtypeBinary
		if m.cfg.LabelThreshold != 0 {
			labelSettings = preprocess.Settings{"threshold": m.cfg.LabelThreshold}
		}
	}
	label, err := preprocess.NewObject(labelAttr, preprocess.DtypeLabel, labelTo, labelSettings)
	if err != nil {
		return nil, err
	}
	return preprocess.NewList(drug, target, label), nil
}

func (m *mlpModel) Collate(samples []preprocess.Record) (*Batch, error) {
	drug, err := featureMatrix(samples, m.cfg.DrugAttr)
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
	return &Batch{Drug: drug, Target: target, Labels: labels, Size: len(samples)}, nil
}

// mlpNet runs the concatenated drug and target features through the MLP.
type mlpNet struct {
	net *nn.Network
}

func (n *mlpNet) forward(b *Batch) *mat.Dense {
	return n.net.Forward(hconcat(b.Drug, b.Target))
}

func (n *mlpNet) backward(grad *mat.Dense) {
	n.net.Backward(grad)
}

func (n *mlpNet) params() []*nn.Param { return n.net.Params() }

func (n *mlpNet) setTraining(on bool) { n.net.SetTraining(on) }
