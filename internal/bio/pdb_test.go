package bio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

func atomLine(serial int, atomName string, alt byte, chain byte, seq int, x, y, z float64) string {
	return fmt.Sprintf("ATOM  %5d %-4s%cGLY %c%4d    %8.3f%8.3f%8.3f  1.00  0.00",
		serial, " "+atomName, alt, chain, seq, x, y, z)
}

func TestParsePDBCATrace(t *testing.T) {
	pdb := strings.Join([]string{
		"HEADER    TEST STRUCTURE",
		atomLine(1, "N", ' ', 'A', 1, 0, 0, 0),
		atomLine(2, "CA", ' ', 'A', 1, 0, 0, 0),
		atomLine(3, "CA", ' ', 'A', 2, 0, 0, 5),
		atomLine(4, "CA", 'B', 'A', 2, 9, 9, 9), // alternate location, skipped
		atomLine(5, "CA", ' ', 'B', 3, 0, 0, 20),
	}, "\n")

	s, err := ParsePDB("test", strings.NewReader(pdb))
	require.NoError(t, err)

	require.Len(t, s.Residues, 3)
	assert.Equal(t, byte('A'), s.Residues[0].Chain)
	assert.Equal(t, 2, s.Residues[1].SeqNum)
	assert.Equal(t, 5.0, s.Residues[1].Z)
	assert.Equal(t, byte('B'), s.Residues[2].Chain)
}

func TestParsePDBStopsAtEndmdl(t *testing.T) {
	pdb := strings.Join([]string{
		atomLine(1, "CA", ' ', 'A', 1, 0, 0, 0),
		"ENDMDL",
		atomLine(2, "CA", ' ', 'A', 5, 1, 1, 1),
	}, "\n")

	s, err := ParsePDB("multi", strings.NewReader(pdb))
	require.NoError(t, err)
	assert.Len(t, s.Residues, 1)
}

func TestParsePDBErrors(t *testing.T) {
	_, err := ParsePDB("empty", strings.NewReader("HEADER    NOTHING"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnreadablePDB))

	_, err = ParsePDB("short", strings.NewReader("ATOM      1  CA  GLY A"))
	require.Error(t, err)
	assert.True(t, errors.IsResource(err))
}

func TestReadPDBFile(t *testing.T) {
	dir := t.TempDir()
	content := atomLine(1, "CA", ' ', 'A', 1, 1.5, 2.5, 3.5) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1abc.pdb"), []byte(content), 0o644))

	s, err := ReadPDBFile(dir, "1abc")
	require.NoError(t, err)
	assert.Equal(t, "1abc", s.ID)
	require.Len(t, s.Residues, 1)
	assert.Equal(t, 1.5, s.Residues[0].X)

	_, err = ReadPDBFile(dir, "zzzz")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFileNotFound))
}

func TestComputeContactMap(t *testing.T) {
	s := &Structure{ID: "cm", Residues: []Residue{
		{Chain: 'A', SeqNum: 1, X: 0, Y: 0, Z: 0},
		{Chain: 'A', SeqNum: 2, X: 0, Y: 0, Z: 5},
		{Chain: 'A', SeqNum: 3, X: 0, Y: 0, Z: 20},
	}}

	cm := ComputeContactMap(s, ContactMapOptions{})
	require.Equal(t, 3, cm.Size)
	assert.Equal(t, float32(1), cm.At(0, 0))
	assert.Equal(t, float32(1), cm.At(0, 1))
	assert.Equal(t, float32(1), cm.At(1, 0))
	assert.Equal(t, float32(0), cm.At(0, 2))
	assert.Equal(t, float32(0), cm.At(1, 2))
}

func TestComputeContactMapChainFilter(t *testing.T) {
	s := &Structure{ID: "chains", Residues: []Residue{
		{Chain: 'A', SeqNum: 1},
		{Chain: 'B', SeqNum: 1},
		{Chain: 'A', SeqNum: 2},
	}}
	cm := ComputeContactMap(s, ContactMapOptions{Chain: 'A', ThresholdAngstrom: 1})
	assert.Equal(t, 2, cm.Size)
}
