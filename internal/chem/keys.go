package chem

import "math"

// maccsNumBits is the fixed MACCS key count.
const maccsNumBits = 166

// maccsFingerprint computes a structural-key fingerprint over the parsed
// graph.  The key set is a representative subset of the 166 MACCS keys,
// evaluated on real graph properties (element presence, ring membership,
// bond orders, simple functional groups) rather than substring matching.
func maccsFingerprint(mol *Molecule) *Fingerprint {
	data := make([]byte, (maccsNumBits+7)/8)
	fp := NewFingerprint(FPMACCS, data, maccsNumBits)

	elemCount := map[int]int{}
	var ringAtoms, aromaticAtoms, chargedAtoms int
	for _, a := range mol.Atoms {
		elemCount[a.AtomicNum]++
		if a.InRing {
			ringAtoms++
		}
		if a.IsAromatic {
			aromaticAtoms++
		}
		if a.Charge != 0 {
			chargedAtoms++
		}
	}

	var doubleBonds, tripleBonds, ringBonds int
	for _, b := range mol.Bonds {
		switch b.Order {
		case 2:
			doubleBonds++
		case 3:
			tripleBonds++
		}
		if b.InRing {
			ringBonds++
		}
	}

	// Element keys.
	elementKeys := map[int]int{
		5: 18, 15: 29, 16: 88, 9: 42, 17: 103, 35: 46, 53: 27,
		7: 161, 8: 164, 14: 20, 26: 13, 29: 12, 30: 10,
	}
	for atomicNum, bit := range elementKeys {
		if elemCount[atomicNum] > 0 {
			fp.SetBit(bit)
		}
	}

	// Ring keys.
	ringSizeSeen := map[int]bool{}
	for _, a := range mol.Atoms {
		if a.RingSize > 0 {
			ringSizeSeen[a.RingSize] = true
		}
	}
	if ringSizeSeen[3] {
		fp.SetBit(7)
	}
	if ringSizeSeen[4] {
		fp.SetBit(11)
	}
	if ringSizeSeen[5] {
		fp.SetBit(96)
	}
	if ringSizeSeen[6] {
		fp.SetBit(163)
	}
	if ringSizeSeen[7] {
		fp.SetBit(19)
	}
	if aromaticAtoms > 0 {
		fp.SetBit(162)
	}
	if ringAtoms > 0 {
		fp.SetBit(165)
	}

	// Bond-order keys.
	if tripleBonds > 0 {
		fp.SetBit(14)
	}
	if doubleBonds > 0 {
		fp.SetBit(100)
	}
	if doubleBonds > 1 {
		fp.SetBit(71)
	}
	if chargedAtoms > 0 {
		fp.SetBit(49)
	}

	// Functional-group keys from local neighborhoods.
	for i, a := range mol.Atoms {
		if a.AtomicNum != 6 {
			continue
		}
		var hasDoubleO, hasSingleO, hasN, hasTripleN bool
		for _, nb := range mol.Neighbors(i) {
			nbAtom := mol.Atoms[nb[0]]
			order := mol.Bonds[nb[1]].Order
			switch {
			case nbAtom.AtomicNum == 8 && order == 2:
				hasDoubleO = true
			case nbAtom.AtomicNum == 8 && order == 1:
				hasSingleO = true
			case nbAtom.AtomicNum == 7 && order == 3:
				hasTripleN = true
			case nbAtom.AtomicNum == 7:
				hasN = true
			}
		}
		if hasDoubleO {
			fp.SetBit(154) // carbonyl
		}
		if hasDoubleO && hasSingleO {
			fp.SetBit(92) // carboxyl / ester
		}
		if hasDoubleO && hasN {
			fp.SetBit(84) // amide
		}
		if hasTripleN {
			fp.SetBit(44) // nitrile
		}
	}

	// Size keys.
	n := mol.NumAtoms()
	if n > 5 {
		fp.SetBit(124)
	}
	if n > 10 {
		fp.SetBit(129)
	}
	if n > 20 {
		fp.SetBit(134)
	}
	if n > 30 {
		fp.SetBit(140)
	}

	return fp
}

// pubchemNumBits is the PubChem CACTVS fingerprint length.
const pubchemNumBits = 881

// pubchemFingerprint computes the count-threshold section of the PubChem
// fingerprint (element counts and ring counts at graduated thresholds) plus
// hashed neighborhood bits in the substructure section.
func pubchemFingerprint(mol *Molecule) *Fingerprint {
	data := make([]byte, (pubchemNumBits+7)/8)
	fp := NewFingerprint(FPPubChem, data, pubchemNumBits)

	elemCount := map[int]int{}
	for _, a := range mol.Atoms {
		elemCount[a.AtomicNum]++
	}
	for _, a := range mol.Atoms {
		elemCount[1] += a.NumH
	}

	// Section 1: hierarchic element counts, bits 0..114 in the published
	// layout.  Each entry is (atomic number, threshold, bit).
	countKeys := []struct{ z, ge, bit int }{
		{1, 4, 0}, {1, 8, 1}, {1, 16, 2}, {1, 32, 3},
		{3, 1, 4}, {5, 1, 9}, {5, 2, 10},
		{6, 2, 11}, {6, 4, 12}, {6, 8, 13}, {6, 16, 14}, {6, 32, 15},
		{7, 1, 16}, {7, 2, 17}, {7, 4, 18}, {7, 8, 19},
		{8, 1, 20}, {8, 2, 21}, {8, 4, 22}, {8, 8, 23}, {8, 16, 24},
		{9, 1, 25}, {9, 2, 26}, {9, 4, 27},
		{14, 1, 31}, {15, 1, 33}, {15, 2, 34}, {15, 4, 35},
		{16, 1, 36}, {16, 2, 37}, {16, 4, 38}, {16, 8, 39},
		{17, 1, 40}, {17, 2, 41}, {17, 4, 42}, {17, 8, 43},
		{35, 1, 44}, {35, 2, 45}, {53, 1, 47},
	}
	for _, k := range countKeys {
		if elemCount[k.z] >= k.ge {
			fp.SetBit(k.bit)
		}
	}

	// Section 2: ring counts, bits 115..262.
	ringSizeCount := map[int]int{}
	for _, a := range mol.Atoms {
		if a.RingSize > 0 {
			ringSizeCount[a.RingSize]++
		}
	}
	ringKeys := []struct{ size, geAtoms, bit int }{
		{3, 3, 115}, {4, 4, 131}, {5, 5, 147}, {5, 10, 148},
		{6, 6, 179}, {6, 12, 180}, {7, 7, 211}, {8, 8, 227},
	}
	for _, k := range ringKeys {
		if ringSizeCount[k.size] >= k.geAtoms {
			fp.SetBit(k.bit)
		}
	}

	// Section 3+: hashed atom environments folded into the substructure
	// region (bits 263..880).
	const substructStart, substructLen = 263, pubchemNumBits - 263
	for i, a := range mol.Atoms {
		env := []string{"pc", a.Symbol}
		for _, nb := range mol.Neighbors(i) {
			env = append(env, mol.Atoms[nb[0]].Symbol)
		}
		h := hash64(env...)
		fp.SetBit(substructStart + int(h%uint64(substructLen)))
	}

	return fp
}

// ergDim is the ErG reduced-graph vector length: 6 pharmacophore point
// types pairwise (21 combinations) over 15 distance bins.
const ergDim = 21 * 15

// pharmacophore point types for the ErG reduced graph.
const (
	ppDonor = iota
	ppAcceptor
	ppPositive
	ppNegative
	ppAromatic
	ppHydrophobic
	numPointTypes
)

// ergFingerprint computes an extended-reduced-graph style vector: atoms are
// mapped to pharmacophore point types, then pairwise topological distances
// between points increment the (typePair, distance) slot.
func ergFingerprint(mol *Molecule) []float32 {
	out := make([]float32, ergDim)

	points := make([][]int, 0) // [atomIndex, pointType]
	for i, a := range mol.Atoms {
		for _, t := range pointTypes(mol, i, a) {
			points = append(points, []int{i, t})
		}
	}
	if len(points) < 2 {
		return out
	}

	dist := topologicalDistances(mol)
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			d := dist[points[i][0]][points[j][0]]
			if d <= 0 || d > 15 {
				continue
			}
			t1, t2 := points[i][1], points[j][1]
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			pair := pairIndex(t1, t2)
			out[pair*15+(d-1)] += 1.0
		}
	}
	return out
}

// pairIndex maps an ordered type pair (t1<=t2) to 0..20.
func pairIndex(t1, t2 int) int {
	idx := 0
	for a := 0; a < numPointTypes; a++ {
		for b := a; b < numPointTypes; b++ {
			if a == t1 && b == t2 {
				return idx
			}
			idx++
		}
	}
	return 0
}

func pointTypes(mol *Molecule, i int, a Atom) []int {
	var types []int
	switch {
	case a.Charge > 0:
		types = append(types, ppPositive)
	case a.Charge < 0:
		types = append(types, ppNegative)
	}
	if (a.AtomicNum == 7 || a.AtomicNum == 8) && a.NumH > 0 {
		types = append(types, ppDonor)
	}
	if a.AtomicNum == 7 || a.AtomicNum == 8 {
		types = append(types, ppAcceptor)
	}
	if a.IsAromatic {
		types = append(types, ppAromatic)
	}
	if a.AtomicNum == 6 && !a.IsAromatic {
		hetero := false
		for _, nb := range mol.Neighbors(i) {
			if z := mol.Atoms[nb[0]].AtomicNum; z != 6 && z != 1 {
				hetero = true
				break
			}
		}
		if !hetero {
			types = append(types, ppHydrophobic)
		}
	}
	return types
}

// topologicalDistances computes all-pairs shortest bond-path lengths via BFS
// from each atom.  -1 marks disconnected pairs.
func topologicalDistances(mol *Molecule) [][]int {
	n := mol.NumAtoms()
	adj := make([][]int, n)
	for _, b := range mol.Bonds {
		adj[b.Src] = append(adj[b.Src], b.Dst)
		adj[b.Dst] = append(adj[b.Dst], b.Src)
	}
	dist := make([][]int, n)
	for s := 0; s < n; s++ {
		d := make([]int, n)
		for i := range d {
			d[i] = -1
		}
		d[s] = 0
		queue := []int{s}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nxt := range adj[cur] {
				if d[nxt] < 0 {
					d[nxt] = d[cur] + 1
					queue = append(queue, nxt)
				}
			}
		}
		dist[s] = d
	}
	return dist
}

// descriptor2DDim is the rdkit2d descriptor vector length.
const descriptor2DDim = 16

// descriptor2D computes a fixed vector of 2D physicochemical descriptors,
// each scaled to a roughly unit range so models can consume it raw.
func descriptor2D(mol *Molecule) []float32 {
	n := float64(mol.NumAtoms())
	b := float64(mol.NumBonds())

	var aromatic, ring, hetero, donors, acceptors, charged, halogens float64
	for _, a := range mol.Atoms {
		if a.IsAromatic {
			aromatic++
		}
		if a.InRing {
			ring++
		}
		if a.AtomicNum != 6 && a.AtomicNum != 1 {
			hetero++
		}
		if (a.AtomicNum == 7 || a.AtomicNum == 8) && a.NumH > 0 {
			donors++
		}
		if a.AtomicNum == 7 || a.AtomicNum == 8 {
			acceptors++
		}
		if a.Charge != 0 {
			charged++
		}
		switch a.AtomicNum {
		case 9, 17, 35, 53:
			halogens++
		}
	}
	var rotatable, double, triple float64
	for _, bd := range mol.Bonds {
		if bd.Order == 1 && !bd.InRing &&
			mol.Atoms[bd.Src].Degree > 1 && mol.Atoms[bd.Dst].Degree > 1 {
			rotatable++
		}
		if bd.Order == 2 {
			double++
		}
		if bd.Order == 3 {
			triple++
		}
	}

	safeDiv := func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return a / b
	}

	return []float32{
		float32(mol.MolecularWeight() / 1000),
		float32(n / 100),
		float32(b / 100),
		float32(safeDiv(aromatic, n)),
		float32(safeDiv(ring, n)),
		float32(safeDiv(hetero, n)),
		float32(donors / 10),
		float32(acceptors / 10),
		float32(charged / 5),
		float32(halogens / 10),
		float32(rotatable / 20),
		float32(safeDiv(double, b)),
		float32(safeDiv(triple, b)),
		float32(math.Log1p(n) / 6),
		float32(safeDiv(b, n)),
		float32(safeDiv(donors+acceptors, n)),
	}
}
