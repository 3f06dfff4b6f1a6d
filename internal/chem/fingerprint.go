package chem

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/bits"
	"sort"
	"strings"
	"sync"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// FingerprintMethod selects a fingerprint algorithm.
type FingerprintMethod string

const (
	FPMorgan   FingerprintMethod = "morgan"
	FPRDKit    FingerprintMethod = "rdkit"
	FPDaylight FingerprintMethod = "daylight"
	FPMACCS    FingerprintMethod = "maccs"
	FPErG      FingerprintMethod = "erg"
	FPRDKit2D  FingerprintMethod = "rdkit2d"
	FPPubChem  FingerprintMethod = "pubchem"
	FPAMMVF    FingerprintMethod = "ammvf"
	FPCustom   FingerprintMethod = "custom"
)

// FingerprintOptions carries per-method settings.  Unused fields are ignored
// by methods that do not recognise them; zero values select the documented
// defaults.
type FingerprintOptions struct {
	// Radius is the neighborhood radius for morgan/ammvf.  Default 2.
	Radius int
	// NBits is the folded bit-vector length.  Default 2048 (morgan, rdkit,
	// daylight), fixed 166 for maccs and 881 for pubchem.
	NBits int
	// MinPath/MaxPath bound path lengths for rdkit/daylight.  Defaults 1/7.
	MinPath int
	MaxPath int
	// CustomName selects a registered custom fingerprint when Method is
	// "custom".
	CustomName string
}

// Fingerprint is a bit-packed molecular fingerprint.  Bit i lives in byte
// i/8 at position i%8.
type Fingerprint struct {
	Method    FingerprintMethod `json:"method"`
	Bits      []byte            `json:"bits"`
	Length    int               `json:"length"`
	NumOnBits int               `json:"num_on_bits"`
}

// NewFingerprint constructs a Fingerprint from packed bit data.
func NewFingerprint(method FingerprintMethod, data []byte, length int) *Fingerprint {
	onBits := 0
	for _, b := range data {
		onBits += bits.OnesCount8(b)
	}
	return &Fingerprint{Method: method, Bits: data, Length: length, NumOnBits: onBits}
}

// GetBit reports whether bit index is set.
func (fp *Fingerprint) GetBit(index int) bool {
	if index < 0 || index >= fp.Length {
		return false
	}
	return (fp.Bits[index/8] & (1 << uint(index%8))) != 0
}

// SetBit sets bit index.
func (fp *Fingerprint) SetBit(index int) {
	if index < 0 || index >= fp.Length {
		return
	}
	old := fp.Bits[index/8]
	fp.Bits[index/8] |= 1 << uint(index%8)
	if old != fp.Bits[index/8] {
		fp.NumOnBits++
	}
}

// ToFloat32 expands the bit vector to a dense 0/1 float vector.
func (fp *Fingerprint) ToFloat32() []float32 {
	out := make([]float32, fp.Length)
	for i := 0; i < fp.Length; i++ {
		if fp.GetBit(i) {
			out[i] = 1.0
		}
	}
	return out
}

// Tanimoto returns the Tanimoto similarity between two fingerprints of the
// same length, in [0,1].
func (fp *Fingerprint) Tanimoto(other *Fingerprint) float64 {
	if other == nil || fp.Length != other.Length {
		return 0
	}
	var inter, union int
	for i := range fp.Bits {
		inter += bits.OnesCount8(fp.Bits[i] & other.Bits[i])
		union += bits.OnesCount8(fp.Bits[i] | other.Bits[i])
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func setBit(data []byte, index int) {
	data[index/8] |= 1 << uint(index%8)
}

func hash64(parts ...string) uint64 {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return binary.BigEndian.Uint64(h[:8])
}

// CustomFingerprintFunc computes a caller-defined dense fingerprint.
type CustomFingerprintFunc func(mol *Molecule) ([]float32, error)

var (
	customMu  sync.RWMutex
	customFPs = map[string]CustomFingerprintFunc{}
)

// RegisterCustomFingerprint registers fn under name for the "custom" method.
// Registration happens at process start; re-registration replaces.
func RegisterCustomFingerprint(name string, fn CustomFingerprintFunc) {
	customMu.Lock()
	customFPs[name] = fn
	customMu.Unlock()
}

// ComputeFingerprint parses smiles and computes the dense fingerprint vector
// for the given method.  Bit-vector methods return 0/1 expansions; erg and
// rdkit2d return real-valued descriptor vectors.  An unknown method fails
// with an unsupported-method error.
func ComputeFingerprint(smiles string, method FingerprintMethod, opts FingerprintOptions) ([]float32, error) {
	mol, err := ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	return ComputeMoleculeFingerprint(mol, method, opts)
}

// ComputeMoleculeFingerprint is ComputeFingerprint for a parsed molecule.
func ComputeMoleculeFingerprint(mol *Molecule, method FingerprintMethod, opts FingerprintOptions) ([]float32, error) {
	switch method {
	case FPMorgan:
		return morganFingerprint(mol, opts).ToFloat32(), nil
	case FPRDKit:
		return pathFingerprint(mol, opts, FPRDKit).ToFloat32(), nil
	case FPDaylight:
		// Same path enumeration as rdkit with the Daylight folding default.
		if opts.NBits == 0 {
			opts.NBits = 1024
		}
		return pathFingerprint(mol, opts, FPDaylight).ToFloat32(), nil
	case FPMACCS:
		return maccsFingerprint(mol).ToFloat32(), nil
	case FPErG:
		return ergFingerprint(mol), nil
	case FPRDKit2D:
		return descriptor2D(mol), nil
	case FPPubChem:
		return pubchemFingerprint(mol).ToFloat32(), nil
	case FPAMMVF:
		// Multi-view: Morgan bits concatenated with MACCS keys.
		m := morganFingerprint(mol, FingerprintOptions{Radius: opts.Radius, NBits: 1024})
		k := maccsFingerprint(mol)
		return append(m.ToFloat32(), k.ToFloat32()...), nil
	case FPCustom:
		customMu.RLock()
		fn, ok := customFPs[opts.CustomName]
		customMu.RUnlock()
		if !ok {
			return nil, errors.UnsupportedMethod(errors.ErrCodeUnknownFingerprintMethod,
				fmt.Sprintf("custom:%s", opts.CustomName))
		}
		return fn(mol)
	default:
		return nil, errors.UnsupportedMethod(errors.ErrCodeUnknownFingerprintMethod, string(method))
	}
}

// FingerprintLength reports the output vector length for a method and
// options without computing anything.  Used by models to size input layers.
func FingerprintLength(method FingerprintMethod, opts FingerprintOptions) (int, error) {
	switch method {
	case FPMorgan:
		if opts.NBits == 0 {
			return 2048, nil
		}
		return opts.NBits, nil
	case FPRDKit:
		if opts.NBits == 0 {
			return 2048, nil
		}
		return opts.NBits, nil
	case FPDaylight:
		if opts.NBits == 0 {
			return 1024, nil
		}
		return opts.NBits, nil
	case FPMACCS:
		return maccsNumBits, nil
	case FPErG:
		return ergDim, nil
	case FPRDKit2D:
		return descriptor2DDim, nil
	case FPPubChem:
		return pubchemNumBits, nil
	case FPAMMVF:
		return 1024 + maccsNumBits, nil
	default:
		return 0, errors.UnsupportedMethod(errors.ErrCodeUnknownFingerprintMethod, string(method))
	}
}

// morganFingerprint implements an ECFP-style circular fingerprint: each atom
// starts from an invariant hash, then absorbs sorted neighbor identifiers
// per radius step; every (atom, radius) identifier is folded into the bit
// vector.
func morganFingerprint(mol *Molecule, opts FingerprintOptions) *Fingerprint {
	radius := opts.Radius
	if radius <= 0 {
		radius = 2
	}
	nBits := opts.NBits
	if nBits <= 0 {
		nBits = 2048
	}
	data := make([]byte, (nBits+7)/8)

	ids := make([]uint64, mol.NumAtoms())
	for i, a := range mol.Atoms {
		ids[i] = hash64("atom", a.Symbol,
			fmt.Sprint(a.Degree), fmt.Sprint(a.Charge), fmt.Sprint(a.NumH),
			fmt.Sprint(a.IsAromatic), fmt.Sprint(a.InRing))
		setBit(data, int(ids[i]%uint64(nBits)))
	}

	neighbors := make([][][2]int, mol.NumAtoms())
	for i := range neighbors {
		neighbors[i] = mol.Neighbors(i)
	}

	for r := 1; r <= radius; r++ {
		next := make([]uint64, len(ids))
		for i := range ids {
			parts := make([]string, 0, len(neighbors[i])+1)
			parts = append(parts, fmt.Sprint(ids[i]))
			env := make([]string, 0, len(neighbors[i]))
			for _, nb := range neighbors[i] {
				env = append(env, fmt.Sprintf("%d:%d", mol.Bonds[nb[1]].Order, ids[nb[0]]))
			}
			sort.Strings(env)
			parts = append(parts, env...)
			next[i] = hash64(append([]string{"env", fmt.Sprint(r)}, parts...)...)
			setBit(data, int(next[i]%uint64(nBits)))
		}
		ids = next
	}

	return NewFingerprint(FPMorgan, data, nBits)
}

// pathFingerprint enumerates simple bond paths up to MaxPath bonds and
// hashes the (symbol, order, symbol, ...) sequence of each path.  Both
// traversal directions hash identically, matching RDKit's canonical path
// direction behaviour.
func pathFingerprint(mol *Molecule, opts FingerprintOptions, method FingerprintMethod) *Fingerprint {
	minPath := opts.MinPath
	if minPath <= 0 {
		minPath = 1
	}
	maxPath := opts.MaxPath
	if maxPath < minPath {
		maxPath = 7
	}
	nBits := opts.NBits
	if nBits <= 0 {
		nBits = 2048
	}
	data := make([]byte, (nBits+7)/8)

	neighbors := make([][][2]int, mol.NumAtoms())
	for i := range neighbors {
		neighbors[i] = mol.Neighbors(i)
	}

	var walk func(atom int, usedBonds map[int]bool, tokens []string, depth int)
	walk = func(atom int, usedBonds map[int]bool, tokens []string, depth int) {
		if depth >= minPath {
			fwd := strings.Join(tokens, "-")
			rev := strings.Join(reverseTokens(tokens), "-")
			canonical := fwd
			if rev < fwd {
				canonical = rev
			}
			setBit(data, int(hash64("path", canonical)%uint64(nBits)))
		}
		if depth == maxPath {
			return
		}
		for _, nb := range neighbors[atom] {
			if usedBonds[nb[1]] {
				continue
			}
			usedBonds[nb[1]] = true
			next := make([]string, len(tokens), len(tokens)+2)
			copy(next, tokens)
			next = append(next, fmt.Sprint(mol.Bonds[nb[1]].Order), mol.Atoms[nb[0]].Symbol)
			walk(nb[0], usedBonds, next, depth+1)
			delete(usedBonds, nb[1])
		}
	}

	for i := range mol.Atoms {
		walk(i, map[int]bool{}, []string{mol.Atoms[i].Symbol}, 0)
	}
	return NewFingerprint(method, data, nBits)
}

func reverseTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[len(tokens)-1-i] = t
	}
	return out
}
