package preprocess

import (
	"fmt"
	"math"
	"strconv"

	"github.com/deepdrugkit/deepdrugkit/internal/bio"
	"github.com/deepdrugkit/deepdrugkit/internal/chem"
	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Dtype names used as registry endpoints.
const (
	DtypeSMILES        = "smiles"
	DtypeGraph         = "graph"
	DtypeFingerprint   = "fingerprint"
	DtypeScaffold      = "scaffold"
	DtypeSequence      = "sequence"
	DtypeOneHot        = "onehot"
	DtypeLabelEncoding = "label_encoding"
	DtypeKmer          = "kmer"
	DtypePDBID         = "pdb_id"
	DtypeContactMap    = "contact_map"
	DtypeLabel         = "label"
	DtypeBinary        = "binary"
	DtypeLog10Affinity = "log10_affinity"
)

func init() {
	MustRegister(DtypeSMILES, DtypeGraph, newSmilesToGraph)
	MustRegister(DtypeSMILES, DtypeFingerprint, newSmilesToFingerprint)
	MustRegister(DtypeSMILES, DtypeScaffold, newSmilesToScaffold)
	MustRegister(DtypeSequence, DtypeOneHot, newSequenceToOneHot)
	MustRegister(DtypeSequence, DtypeLabelEncoding, newSequenceToLabelEncoding)
	MustRegister(DtypeSequence, DtypeKmer, newSequenceToKmer)
	MustRegister(DtypePDBID, DtypeContactMap, newPDBToContactMap)
	MustRegister(DtypeLabel, DtypeBinary, newLabelToBinary)
	MustRegister(DtypeLabel, DtypeLog10Affinity, newLabelToLog10Affinity)
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New(errors.ErrCodeMalformedRow,
			fmt.Sprintf("transform %s expects a string value, got %T", key, v))
	}
	return s, nil
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, errors.New(errors.ErrCodeInvalidLabel,
				fmt.Sprintf("label %q is not numeric", n))
		}
		return f, nil
	default:
		return 0, errors.New(errors.ErrCodeInvalidLabel,
			fmt.Sprintf("label has unsupported type %T", v))
	}
}

// transformFunc adapts a closure into a Transform.
type transformFunc struct {
	key string
	fn  func(any) (any, error)
}

func (t *transformFunc) Key() string              { return t.key }
func (t *transformFunc) Apply(v any) (any, error) { return t.fn(v) }

func newSmilesToGraph(s Settings) (Transform, error) {
	key := TransformKey(DtypeSMILES, DtypeGraph)
	if err := s.checkKeys(key, "max_atoms"); err != nil {
		return nil, err
	}
	maxAtoms, err := s.intValue("max_atoms", 0)
	if err != nil {
		return nil, err
	}
	opts := chem.GraphOptions{MaxAtoms: maxAtoms}
	return &transformFunc{key: key, fn: func(v any) (any, error) {
		smiles, err := asString(key, v)
		if err != nil {
			return nil, err
		}
		return chem.SMILESToGraph(smiles, opts)
	}}, nil
}

func newSmilesToFingerprint(s Settings) (Transform, error) {
	key := TransformKey(DtypeSMILES, DtypeFingerprint)
	if err := s.checkKeys(key, "method", "radius", "n_bits", "min_path", "max_path", "custom_name"); err != nil {
		return nil, err
	}
	method, err := s.stringValue("method", string(chem.FPMorgan))
	if err != nil {
		return nil, err
	}
	radius, err := s.intValue("radius", 0)
	if err != nil {
		return nil, err
	}
	nBits, err := s.intValue("n_bits", 0)
	if err != nil {
		return nil, err
	}
	minPath, err := s.intValue("min_path", 0)
	if err != nil {
		return nil, err
	}
	maxPath, err := s.intValue("max_path", 0)
	if err != nil {
		return nil, err
	}
	customName, err := s.stringValue("custom_name", "")
	if err != nil {
		return nil, err
	}
	opts := chem.FingerprintOptions{
		Radius: radius, NBits: nBits,
		MinPath: minPath, MaxPath: maxPath,
		CustomName: customName,
	}
	// Unknown methods surface at construction, not mid-pipeline.
	if chem.FingerprintMethod(method) != chem.FPCustom {
		if _, err := chem.FingerprintLength(chem.FingerprintMethod(method), opts); err != nil {
			return nil, err
		}
	}
	return &transformFunc{key: key, fn: func(v any) (any, error) {
		smiles, err := asString(key, v)
		if err != nil {
			return nil, err
		}
		return chem.ComputeFingerprint(smiles, chem.FingerprintMethod(method), opts)
	}}, nil
}

func newSmilesToScaffold(s Settings) (Transform, error) {
	key := TransformKey(DtypeSMILES, DtypeScaffold)
	if err := s.checkKeys(key); err != nil {
		return nil, err
	}
	return &transformFunc{key: key, fn: func(v any) (any, error) {
		smiles, err := asString(key, v)
		if err != nil {
			return nil, err
		}
		scaf, err := chem.MurckoScaffold(smiles)
		if err != nil {
			return nil, err
		}
		return scaf.Key, nil
	}}, nil
}

func sequenceEncodeFactory(to string, encode func(string, bio.EncodeOptions) ([]float32, error)) Factory {
	return func(s Settings) (Transform, error) {
		key := TransformKey(DtypeSequence, to)
		if err := s.checkKeys(key, "max_length"); err != nil {
			return nil, err
		}
		maxLen, err := s.intValue("max_length", 0)
		if err != nil {
			return nil, err
		}
		opts := bio.EncodeOptions{MaxLength: maxLen}
		return &transformFunc{key: key, fn: func(v any) (any, error) {
			seq, err := asString(key, v)
			if err != nil {
				return nil, err
			}
			return encode(seq, opts)
		}}, nil
	}
}

func newSequenceToOneHot(s Settings) (Transform, error) {
	return sequenceEncodeFactory(DtypeOneHot, bio.OneHot)(s)
}

func newSequenceToLabelEncoding(s Settings) (Transform, error) {
	return sequenceEncodeFactory(DtypeLabelEncoding, bio.LabelEncode)(s)
}

func newSequenceToKmer(s Settings) (Transform, error) {
	key := TransformKey(DtypeSequence, DtypeKmer)
	if err := s.checkKeys(key, "k", "normalize"); err != nil {
		return nil, err
	}
	k, err := s.intValue("k", 0)
	if err != nil {
		return nil, err
	}
	normalize, err := s.boolValue("normalize", false)
	if err != nil {
		return nil, err
	}
	opts := bio.KmerOptions{K: k, Normalize: normalize}
	return &transformFunc{key: key, fn: func(v any) (any, error) {
		seq, err := asString(key, v)
		if err != nil {
			return nil, err
		}
		return bio.Kmer(seq, opts)
	}}, nil
}

func newPDBToContactMap(s Settings) (Transform, error) {
	key := TransformKey(DtypePDBID, DtypeContactMap)
	if err := s.checkKeys(key, "pdb_dir", "threshold", "chain"); err != nil {
		return nil, err
	}
	dir, err := s.stringValue("pdb_dir", "")
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, errors.New(errors.ErrCodeMalformedSettings,
			fmt.Sprintf("transform %s requires the pdb_dir setting", key))
	}
	threshold, err := s.floatValue("threshold", 0)
	if err != nil {
		return nil, err
	}
	chainStr, err := s.stringValue("chain", "")
	if err != nil {
		return nil, err
	}
	var chain byte
	if chainStr != "" {
		chain = chainStr[0]
	}
	opts := bio.ContactMapOptions{ThresholdAngstrom: threshold, Chain: chain}
	return &transformFunc{key: key, fn: func(v any) (any, error) {
		id, err := asString(key, v)
		if err != nil {
			return nil, err
		}
		structure, err := bio.ReadPDBFile(dir, id)
		if err != nil {
			return nil, err
		}
		return bio.ComputeContactMap(structure, opts), nil
	}}, nil
}

// newLabelToBinary thresholds affinity labels into {0, 1}.  Labels that are
// already exactly 0 or 1 pass through unchanged, so pre-binarised interaction
// datasets keep their labels whatever the threshold.  The default threshold
// of 7 is the pKd convention.
func newLabelToBinary(s Settings) (Transform, error) {
	key := TransformKey(DtypeLabel, DtypeBinary)
	if err := s.checkKeys(key, "threshold"); err != nil {
		return nil, err
	}
	threshold, err := s.floatValue("threshold", 7.0)
	if err != nil {
		return nil, err
	}
	return &transformFunc{key: key, fn: func(v any) (any, error) {
		f, err := asFloat(v)
		if err != nil {
			return nil, err
		}
		if f == 0 || f == 1 {
			return f, nil
		}
		if f >= threshold {
			return float64(1), nil
		}
		return float64(0), nil
	}}, nil
}

// newLabelToLog10Affinity converts a dissociation constant in nanomolar to
// the pKd scale: pKd = -log10(Kd * 1e-9).
func newLabelToLog10Affinity(s Settings) (Transform, error) {
	key := TransformKey(DtypeLabel, DtypeLog10Affinity)
	if err := s.checkKeys(key); err != nil {
		return nil, err
	}
	return &transformFunc{key: key, fn: func(v any) (any, error) {
		f, err := asFloat(v)
		if err != nil {
			return nil, err
		}
		if f <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidLabel,
				fmt.Sprintf("affinity must be positive, got %v", f))
		}
		return -math.Log10(f * 1e-9), nil
	}}, nil
}
