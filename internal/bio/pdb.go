package bio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Residue is one alpha-carbon position from a PDB structure.
type Residue struct {
	Name   string
	Chain  byte
	SeqNum int
	X, Y, Z float64
}

// Structure holds the alpha-carbon trace of a PDB entry.
type Structure struct {
	ID       string
	Residues []Residue
}

// ParsePDB reads alpha-carbon ATOM records from r using the fixed PDB column
// layout.  Only the first model and the first alternate location of each
// residue are kept.  Parsing stops at the first ENDMDL or END record.
func ParsePDB(id string, r io.Reader) (*Structure, error) {
	s := &Structure{ID: id}
	seen := map[string]bool{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "ENDMDL"), strings.HasPrefix(line, "END "):
			return finishStructure(s)
		case !strings.HasPrefix(line, "ATOM"):
			continue
		}
		if len(line) < 54 {
			return nil, errors.New(errors.ErrCodeUnreadablePDB,
				fmt.Sprintf("truncated ATOM record at line %d", lineNum)).WithDetail(id)
		}

		atomName := strings.TrimSpace(line[12:16])
		if atomName != "CA" {
			continue
		}
		altLoc := line[16]
		if altLoc != ' ' && altLoc != 'A' {
			continue
		}

		chain := line[21]
		seqKey := line[21:27] // chain + residue sequence number + insertion code
		if seen[seqKey] {
			continue
		}
		seen[seqKey] = true

		seqNum, err := strconv.Atoi(strings.TrimSpace(line[22:26]))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeUnreadablePDB,
				fmt.Sprintf("bad residue number at line %d", lineNum)).WithDetail(id)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(line[30:38]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(line[38:46]), 64)
		z, errZ := strconv.ParseFloat(strings.TrimSpace(line[46:54]), 64)
		if errX != nil || errY != nil || errZ != nil {
			return nil, errors.New(errors.ErrCodeUnreadablePDB,
				fmt.Sprintf("bad coordinates at line %d", lineNum)).WithDetail(id)
		}

		s.Residues = append(s.Residues, Residue{
			Name:   strings.TrimSpace(line[17:20]),
			Chain:  chain,
			SeqNum: seqNum,
			X:      x, Y: y, Z: z,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnreadablePDB, "reading PDB stream").WithDetail(id)
	}
	return finishStructure(s)
}

func finishStructure(s *Structure) (*Structure, error) {
	if len(s.Residues) == 0 {
		return nil, errors.New(errors.ErrCodeUnreadablePDB,
			"no alpha-carbon records found").WithDetail(s.ID)
	}
	return s, nil
}

// ReadPDBFile loads <dir>/<id>.pdb.  A missing file reports a resource error
// distinct from a parse failure.
func ReadPDBFile(dir, id string) (*Structure, error) {
	path := filepath.Join(dir, id+".pdb")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Resource(errors.ErrCodeFileNotFound,
				fmt.Sprintf("PDB file not found: %s", path), err)
		}
		return nil, errors.Resource(errors.ErrCodeFileUnreadable,
			fmt.Sprintf("opening PDB file %s", path), err)
	}
	defer f.Close()
	return ParsePDB(id, f)
}

// ContactMapOptions controls contact-map construction.
type ContactMapOptions struct {
	// ThresholdAngstrom is the CA-CA contact distance cutoff.  Default 8.0.
	ThresholdAngstrom float64
	// Chain restricts the map to one chain; zero uses all residues.
	Chain byte
}

func (o ContactMapOptions) threshold() float64 {
	if o.ThresholdAngstrom <= 0 {
		return 8.0
	}
	return o.ThresholdAngstrom
}

// ContactMap builds the binary residue contact matrix of s, row-major with
// Size rows of Size entries.
type ContactMap struct {
	Size int       `json:"size"`
	Data []float32 `json:"data"`
}

// At reports the contact flag for residue pair (i, j).
func (cm *ContactMap) At(i, j int) float32 { return cm.Data[i*cm.Size+j] }

// ComputeContactMap thresholds pairwise CA-CA distances.  The diagonal is
// always 1.
func ComputeContactMap(s *Structure, opts ContactMapOptions) *ContactMap {
	residues := s.Residues
	if opts.Chain != 0 {
		residues = nil
		for _, r := range s.Residues {
			if r.Chain == opts.Chain {
				residues = append(residues, r)
			}
		}
	}

	n := len(residues)
	threshold := opts.threshold()
	cm := &ContactMap{Size: n, Data: make([]float32, n*n)}
	for i := 0; i < n; i++ {
		cm.Data[i*n+i] = 1.0
		for j := i + 1; j < n; j++ {
			dx := residues[i].X - residues[j].X
			dy := residues[i].Y - residues[j].Y
			dz := residues[i].Z - residues[j].Z
			if math.Sqrt(dx*dx+dy*dy+dz*dz) <= threshold {
				cm.Data[i*n+j] = 1.0
				cm.Data[j*n+i] = 1.0
			}
		}
	}
	return cm
}
