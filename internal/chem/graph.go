package chem

import (
	"fmt"
	"math"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Atom feature layout.  Total dimension = 78.
//
//	[0..43]   Atomic number one-hot (common organic atoms + "other" bin)
//	[44..48]  Degree one-hot (0,1,2,3,4+)
//	[49..53]  Formal charge one-hot (-2,-1,0,+1,+2)
//	[54..57]  Num H one-hot (0,1,2,3+)
//	[58..63]  Hybridization one-hot (s,sp,sp2,sp3,sp3d,sp3d2)
//	[64..67]  Chirality one-hot (none,R,S,other)
//	[68..73]  Ring size one-hot (0,3,4,5,6,7+)
//	[74]      Is aromatic
//	[75]      Is in ring
//	[76]      Atomic mass / 200
//	[77]      Electronegativity / 4
const (
	atomicNumberBins  = 44
	degreeBins        = 5
	formalChargeBins  = 5
	numHBins          = 4
	hybridizationBins = 6
	chiralityBins     = 4
	ringSizeBins      = 6
	atomBinaryFeats   = 2
	atomScalarFeats   = 2

	// NodeFeatureDim is the per-atom feature vector length.
	NodeFeatureDim = atomicNumberBins + degreeBins + formalChargeBins +
		numHBins + hybridizationBins + chiralityBins + ringSizeBins +
		atomBinaryFeats + atomScalarFeats // = 78
)

// Bond feature layout.  Total dimension = 12.
//
//	[0..3]  Bond order one-hot (single, double, triple, aromatic)
//	[4]     Is conjugated
//	[5]     Is in ring
//	[6..8]  Stereo one-hot (none, E, Z)
//	[9..11] Direction one-hot (none, up, down)
const (
	bondOrderBins   = 4
	bondBinaryFeats = 2
	stereoBins      = 3
	directionBins   = 3

	// EdgeFeatureDim is the per-bond feature vector length.
	EdgeFeatureDim = bondOrderBins + bondBinaryFeats + stereoBins + directionBins // = 12
)

// GlobalFeatureDim is the molecule-level feature vector length.
const GlobalFeatureDim = 6

// Graph is the tensor-ready representation of a molecule.  Edges appear in
// both directions so message passing over EdgeIndex is symmetric.
type Graph struct {
	NodeFeatures   [][]float32 `json:"node_features"`
	EdgeIndex      [][2]int    `json:"edge_index"`
	EdgeFeatures   [][]float32 `json:"edge_features"`
	GlobalFeatures []float32   `json:"global_features"`
	NumAtoms       int         `json:"num_atoms"`
	NumBonds       int         `json:"num_bonds"`
	SMILES         string      `json:"smiles"`
}

// GraphOptions controls SMILES→graph conversion.
type GraphOptions struct {
	// MaxAtoms rejects molecules above the size limit.  Zero disables the
	// check.
	MaxAtoms int
}

// SMILESToGraph parses smiles and featurises it into a Graph.
func SMILESToGraph(smiles string, opts GraphOptions) (*Graph, error) {
	mol, err := ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	return MoleculeToGraph(mol, opts)
}

// MoleculeToGraph featurises an already-parsed molecule.
func MoleculeToGraph(mol *Molecule, opts GraphOptions) (*Graph, error) {
	if opts.MaxAtoms > 0 && mol.NumAtoms() > opts.MaxAtoms {
		return nil, errors.New(errors.ErrCodeInvalidSMILES,
			fmt.Sprintf("molecule has %d atoms, exceeds max %d", mol.NumAtoms(), opts.MaxAtoms))
	}

	nodeFeatures := make([][]float32, mol.NumAtoms())
	for i, atom := range mol.Atoms {
		nodeFeatures[i] = encodeAtomFeatures(atom)
	}

	edgeIndex := make([][2]int, 0, 2*mol.NumBonds())
	edgeFeatures := make([][]float32, 0, 2*mol.NumBonds())
	for _, bond := range mol.Bonds {
		ef := encodeBondFeatures(bond)
		edgeIndex = append(edgeIndex, [2]int{bond.Src, bond.Dst})
		edgeFeatures = append(edgeFeatures, ef)
		edgeIndex = append(edgeIndex, [2]int{bond.Dst, bond.Src})
		edgeFeatures = append(edgeFeatures, ef)
	}

	return &Graph{
		NodeFeatures:   nodeFeatures,
		EdgeIndex:      edgeIndex,
		EdgeFeatures:   edgeFeatures,
		GlobalFeatures: computeGlobalFeatures(mol),
		NumAtoms:       mol.NumAtoms(),
		NumBonds:       mol.NumBonds(),
		SMILES:         mol.SMILES,
	}, nil
}

// commonAtoms get dedicated one-hot bins; everything else shares the last bin.
var commonAtoms = []int{1, 5, 6, 7, 8, 9, 14, 15, 16, 17, 26, 29, 30, 34, 35, 53}

func atomicNumToBin(atomicNum int) int {
	for i, a := range commonAtoms {
		if atomicNum == a {
			return i
		}
	}
	return atomicNumberBins - 1
}

// hybridizationBin estimates hybridization from aromaticity and bond orders.
// The parser does not track full orbital information, so sp3 is the default
// and sp2/sp are inferred from aromatic/multiple bonds via degree heuristics.
func hybridizationBin(atom Atom) int {
	if atom.IsAromatic {
		return 2 // sp2
	}
	switch {
	case atom.Degree+atom.NumH >= 4:
		return 3 // sp3
	case atom.Degree+atom.NumH == 2 && atom.NumH == 0:
		return 1 // sp, crude
	default:
		return 3
	}
}

func encodeAtomFeatures(atom Atom) []float32 {
	features := make([]float32, NodeFeatureDim)
	offset := 0

	features[offset+atomicNumToBin(atom.AtomicNum)] = 1.0
	offset += atomicNumberBins

	deg := atom.Degree
	if deg >= degreeBins {
		deg = degreeBins - 1
	}
	features[offset+deg] = 1.0
	offset += degreeBins

	chargeBin := atom.Charge + 2
	if chargeBin < 0 {
		chargeBin = 0
	}
	if chargeBin >= formalChargeBins {
		chargeBin = formalChargeBins - 1
	}
	features[offset+chargeBin] = 1.0
	offset += formalChargeBins

	hBin := atom.NumH
	if hBin >= numHBins {
		hBin = numHBins - 1
	}
	features[offset+hBin] = 1.0
	offset += numHBins

	features[offset+hybridizationBin(atom)] = 1.0
	offset += hybridizationBins

	// Chirality: parser drops stereo centres, so always "none".
	features[offset+0] = 1.0
	offset += chiralityBins

	ringBin := 0
	if atom.RingSize >= 3 {
		ringBin = atom.RingSize - 2 // 3→1, 4→2, 5→3, 6→4, 7+→5
		if ringBin >= ringSizeBins {
			ringBin = ringSizeBins - 1
		}
	}
	features[offset+ringBin] = 1.0
	offset += ringSizeBins

	if atom.IsAromatic {
		features[offset] = 1.0
	}
	offset++
	if atom.InRing {
		features[offset] = 1.0
	}
	offset++

	if mass, ok := atomicMassMap[atom.AtomicNum]; ok {
		features[offset] = float32(mass / 200)
	}
	offset++
	if en, ok := electronegativityMap[atom.AtomicNum]; ok {
		features[offset] = float32(en / 4)
	}

	return features
}

func encodeBondFeatures(bond Bond) []float32 {
	features := make([]float32, EdgeFeatureDim)
	offset := 0

	bt := bond.Order - 1
	if bt < 0 {
		bt = 0
	}
	if bt >= bondOrderBins {
		bt = bondOrderBins - 1
	}
	features[offset+bt] = 1.0
	offset += bondOrderBins

	if bond.Conjugated {
		features[offset] = 1.0
	}
	offset++
	if bond.InRing {
		features[offset] = 1.0
	}
	offset++

	// Stereo and direction: always "none" with this parser.
	features[offset+0] = 1.0
	offset += stereoBins
	features[offset+0] = 1.0

	return features
}

func computeGlobalFeatures(mol *Molecule) []float32 {
	numAtoms := float64(mol.NumAtoms())
	numBonds := float64(mol.NumBonds())

	var aromaticCount float64
	for _, a := range mol.Atoms {
		if a.IsAromatic {
			aromaticCount++
		}
	}
	aromaticFrac := 0.0
	if numAtoms > 0 {
		aromaticFrac = aromaticCount / numAtoms
	}

	bondDensity := 0.0
	if numAtoms > 1 {
		bondDensity = numBonds / (numAtoms * (numAtoms - 1) / 2)
	}

	return []float32{
		float32(numAtoms / 200),
		float32(numBonds / 200),
		float32(mol.MolecularWeight() / 1000),
		float32(aromaticFrac),
		float32(bondDensity),
		float32(math.Log1p(numAtoms) / 6),
	}
}
