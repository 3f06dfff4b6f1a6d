// Package chem provides self-contained cheminformatics primitives for the
// toolkit: a SMILES parser, molecular graph featurisation, fingerprint
// generation, and Bemis-Murcko scaffold extraction.  The implementations
// approximate RDKit behaviour closely enough for featurisation and grouping;
// they are not a substitute for a full chemistry kernel.
package chem

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// atomicNumberMap maps element symbols to atomic numbers.
var atomicNumberMap = map[string]int{
	"H": 1, "He": 2, "Li": 3, "Be": 4, "B": 5, "C": 6, "N": 7, "O": 8,
	"F": 9, "Ne": 10, "Na": 11, "Mg": 12, "Al": 13, "Si": 14, "P": 15,
	"S": 16, "Cl": 17, "Ar": 18, "K": 19, "Ca": 20, "Br": 35, "I": 53,
	"Fe": 26, "Cu": 29, "Zn": 30, "Se": 34, "Sn": 50, "Pt": 78, "As": 33,
	"Mn": 25, "Co": 27, "Ni": 28,
}

// atomicMassMap maps atomic number to atomic mass.
var atomicMassMap = map[int]float64{
	1: 1.008, 5: 10.81, 6: 12.011, 7: 14.007, 8: 15.999,
	9: 18.998, 14: 28.085, 15: 30.974, 16: 32.06, 17: 35.45,
	26: 55.845, 29: 63.546, 30: 65.38, 34: 78.971, 35: 79.904, 53: 126.90,
}

// electronegativityMap maps atomic number to Pauling electronegativity.
var electronegativityMap = map[int]float64{
	1: 2.20, 5: 2.04, 6: 2.55, 7: 3.04, 8: 3.44,
	9: 3.98, 14: 1.90, 15: 2.19, 16: 2.58, 17: 3.16,
	34: 2.55, 35: 2.96, 53: 2.66,
}

// smilesPattern is a structural pre-check; full validation happens in the
// parser where positions can be reported.
var smilesPattern = regexp.MustCompile(`^[A-Za-z0-9@+\-\[\]()=#$:/\\.%*]+$`)

// Atom is a parsed heavy atom.
type Atom struct {
	Symbol     string
	AtomicNum  int
	IsAromatic bool
	Charge     int
	NumH       int
	Degree     int
	InRing     bool
	RingSize   int // smallest ring containing the atom, 0 when acyclic
}

// Bond is a parsed bond.  Order is 1, 2, 3, or 4 for aromatic.
type Bond struct {
	Src        int
	Dst        int
	Order      int
	InRing     bool
	Conjugated bool
}

// Molecule is the parsed form of a SMILES string.
type Molecule struct {
	Atoms  []Atom
	Bonds  []Bond
	SMILES string
}

// NumAtoms returns the heavy-atom count.
func (m *Molecule) NumAtoms() int { return len(m.Atoms) }

// NumBonds returns the bond count.
func (m *Molecule) NumBonds() int { return len(m.Bonds) }

// Neighbors returns the indices of atoms bonded to atom i, with the
// connecting bond index.
func (m *Molecule) Neighbors(i int) [][2]int {
	var out [][2]int
	for bi, b := range m.Bonds {
		if b.Src == i {
			out = append(out, [2]int{b.Dst, bi})
		} else if b.Dst == i {
			out = append(out, [2]int{b.Src, bi})
		}
	}
	return out
}

// balancedBrackets checks that [ ] and ( ) are balanced and nested.
func balancedBrackets(s string) bool {
	var stack []rune
	for _, ch := range s {
		switch ch {
		case '[', '(':
			stack = append(stack, ch)
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != '[' {
				return false
			}
			stack = stack[:len(stack)-1]
		case ')':
			if len(stack) == 0 || stack[len(stack)-1] != '(' {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// ValidateSMILES performs structural validation without building a molecule.
func ValidateSMILES(smiles string) error {
	if smiles == "" {
		return errors.New(errors.ErrCodeInvalidSMILES, "SMILES string is empty")
	}
	if len(smiles) > 5000 {
		return errors.New(errors.ErrCodeInvalidSMILES, "SMILES string exceeds maximum length (5000)")
	}
	if !smilesPattern.MatchString(smiles) {
		return errors.New(errors.ErrCodeInvalidSMILES, "SMILES contains invalid characters").WithDetail(smiles)
	}
	if !balancedBrackets(smiles) {
		return errors.New(errors.ErrCodeInvalidSMILES, "SMILES has unbalanced brackets").WithDetail(smiles)
	}
	return nil
}

// ringBondRef tracks an open ring-closure digit.
type ringBondRef struct {
	atom  int
	order int
}

// ParseSMILES parses a SMILES string into a Molecule.  Branches, ring
// closures (single digit and %nn), bond orders, aromatic lowercase atoms,
// bracket atoms with charge and explicit H counts, and dot-separated
// fragments are handled.  Stereo markers are accepted and ignored.
func ParseSMILES(smiles string) (*Molecule, error) {
	if err := ValidateSMILES(smiles); err != nil {
		return nil, err
	}

	mol := &Molecule{SMILES: smiles}
	runes := []rune(smiles)

	var atomStack []int
	prevAtom := -1
	nextOrder := 0 // 0 means "unspecified": single, or aromatic between aromatic atoms
	open := map[int]ringBondRef{}

	addBond := func(src, dst, order int) {
		if order == 0 {
			order = 1
			if mol.Atoms[src].IsAromatic && mol.Atoms[dst].IsAromatic {
				order = 4
			}
		}
		mol.Bonds = append(mol.Bonds, Bond{Src: src, Dst: dst, Order: order})
		mol.Atoms[src].Degree++
		mol.Atoms[dst].Degree++
	}

	closeRing := func(num, order int) error {
		if ref, ok := open[num]; ok {
			o := order
			if o == 0 {
				o = ref.order
			}
			if ref.atom == prevAtom {
				return errors.New(errors.ErrCodeInvalidSMILES,
					fmt.Sprintf("ring bond %d closes on its own atom", num)).WithDetail(smiles)
			}
			addBond(ref.atom, prevAtom, o)
			delete(open, num)
			return nil
		}
		open[num] = ringBondRef{atom: prevAtom, order: order}
		return nil
	}

	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch {
		case ch == '(':
			if prevAtom < 0 {
				return nil, errors.New(errors.ErrCodeInvalidSMILES, "branch opens before any atom").WithDetail(smiles)
			}
			atomStack = append(atomStack, prevAtom)
			i++

		case ch == ')':
			if len(atomStack) == 0 {
				return nil, errors.New(errors.ErrCodeInvalidSMILES, "unmatched branch close").WithDetail(smiles)
			}
			prevAtom = atomStack[len(atomStack)-1]
			atomStack = atomStack[:len(atomStack)-1]
			i++

		case ch == '-':
			nextOrder = 1
			i++
		case ch == '=':
			nextOrder = 2
			i++
		case ch == '#':
			nextOrder = 3
			i++
		case ch == ':':
			nextOrder = 4
			i++

		case ch == '/' || ch == '\\':
			// Stereo bond markers: treated as plain single bonds.
			i++

		case ch == '.':
			prevAtom = -1
			nextOrder = 0
			i++

		case ch == '%':
			if i+2 >= len(runes) || !unicode.IsDigit(runes[i+1]) || !unicode.IsDigit(runes[i+2]) {
				return nil, errors.New(errors.ErrCodeInvalidSMILES, "malformed %nn ring closure").WithDetail(smiles)
			}
			if prevAtom < 0 {
				return nil, errors.New(errors.ErrCodeInvalidSMILES, "ring closure before any atom").WithDetail(smiles)
			}
			num := int(runes[i+1]-'0')*10 + int(runes[i+2]-'0')
			if err := closeRing(num, nextOrder); err != nil {
				return nil, err
			}
			nextOrder = 0
			i += 3

		case unicode.IsDigit(ch):
			if prevAtom < 0 {
				return nil, errors.New(errors.ErrCodeInvalidSMILES, "ring closure before any atom").WithDetail(smiles)
			}
			if err := closeRing(int(ch-'0'), nextOrder); err != nil {
				return nil, err
			}
			nextOrder = 0
			i++

		case ch == '[':
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				return nil, errors.New(errors.ErrCodeInvalidSMILES, "unclosed bracket atom").WithDetail(smiles)
			}
			atom, err := parseBracketAtom(string(runes[i+1 : j]))
			if err != nil {
				return nil, err
			}
			idx := len(mol.Atoms)
			mol.Atoms = append(mol.Atoms, atom)
			if prevAtom >= 0 {
				addBond(prevAtom, idx, nextOrder)
			}
			prevAtom = idx
			nextOrder = 0
			i = j + 1

		case ch == '*':
			// Wildcard atom: kept as a zero-numbered placeholder so Markush-like
			// inputs still produce a graph.
			idx := len(mol.Atoms)
			mol.Atoms = append(mol.Atoms, Atom{Symbol: "*", AtomicNum: 0})
			if prevAtom >= 0 {
				addBond(prevAtom, idx, nextOrder)
			}
			prevAtom = idx
			nextOrder = 0
			i++

		case unicode.IsLetter(ch):
			symbol, aromatic, advance := parseOrganicAtom(runes, i)
			idx := len(mol.Atoms)
			mol.Atoms = append(mol.Atoms, Atom{
				Symbol:     symbol,
				AtomicNum:  lookupAtomicNumber(symbol),
				IsAromatic: aromatic,
			})
			if prevAtom >= 0 {
				addBond(prevAtom, idx, nextOrder)
			}
			prevAtom = idx
			nextOrder = 0
			i += advance

		default:
			// @, $ and other decorations carry no graph information here.
			i++
		}
	}

	if len(open) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidSMILES,
			fmt.Sprintf("%d unclosed ring bond(s)", len(open))).WithDetail(smiles)
	}
	if len(mol.Atoms) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSMILES, "no atoms found").WithDetail(smiles)
	}

	mol.perceiveRings()
	mol.assignImplicitHydrogens()
	mol.perceiveConjugation()
	return mol, nil
}

// parseOrganicAtom extracts an organic-subset symbol starting at position i.
// Returns (symbol, isAromatic, runesConsumed).
func parseOrganicAtom(runes []rune, i int) (string, bool, int) {
	ch := runes[i]
	aromatic := unicode.IsLower(ch)
	upper := unicode.ToUpper(ch)

	// Two-letter elements (Cl, Br, Si, Se, ...) are never aromatic-lowercase
	// in the organic subset, so only probe when the current rune is uppercase.
	if !aromatic && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		twoLetter := string([]rune{upper, runes[i+1]})
		if _, ok := atomicNumberMap[twoLetter]; ok {
			return twoLetter, false, 2
		}
	}
	return string(upper), aromatic, 1
}

// parseBracketAtom parses the content inside [...].
func parseBracketAtom(content string) (Atom, error) {
	atom := Atom{}
	runes := []rune(content)
	idx := 0

	// Isotope prefix.
	for idx < len(runes) && unicode.IsDigit(runes[idx]) {
		idx++
	}
	if idx >= len(runes) || !unicode.IsLetter(runes[idx]) {
		return atom, errors.New(errors.ErrCodeInvalidSMILES, "bracket atom has no element symbol").WithDetail(content)
	}

	start := idx
	aromatic := unicode.IsLower(runes[idx])
	idx++
	for idx < len(runes) && unicode.IsLower(runes[idx]) && runes[idx] != 'h' {
		idx++
	}
	sym := string(runes[start:idx])
	if aromatic {
		sym = strings.ToUpper(sym[:1]) + sym[1:]
	}
	atom.Symbol = sym
	atom.IsAromatic = aromatic
	atom.AtomicNum = lookupAtomicNumber(sym)

	rest := string(runes[idx:])

	switch {
	case strings.Contains(rest, "++"), strings.Contains(rest, "+2"):
		atom.Charge = 2
	case strings.Contains(rest, "+"):
		atom.Charge = 1
	case strings.Contains(rest, "--"), strings.Contains(rest, "-2"):
		atom.Charge = -2
	case strings.Contains(rest, "-"):
		atom.Charge = -1
	}

	if hIdx := strings.Index(rest, "H"); hIdx >= 0 {
		atom.NumH = 1
		if hIdx+1 < len(rest) && rest[hIdx+1] >= '0' && rest[hIdx+1] <= '9' {
			atom.NumH = int(rest[hIdx+1] - '0')
		}
	}
	return atom, nil
}

func lookupAtomicNumber(symbol string) int {
	if n, ok := atomicNumberMap[symbol]; ok {
		return n
	}
	return 0
}

// defaultValence is the organic-subset valence table used for implicit H
// estimation on non-bracket atoms.
var defaultValence = map[int]int{
	5: 3, 6: 4, 7: 3, 8: 2, 9: 1, 15: 3, 16: 2, 17: 1, 35: 1, 53: 1,
}

// assignImplicitHydrogens fills NumH for atoms that did not carry an
// explicit bracket H count, using standard valences minus bond orders.
func (m *Molecule) assignImplicitHydrogens() {
	orderSum := make([]int, len(m.Atoms))
	for _, b := range m.Bonds {
		o := b.Order
		if o == 4 {
			o = 1 // aromatic bonds count roughly as 1.5; round down per atom
		}
		orderSum[b.Src] += o
		orderSum[b.Dst] += o
	}
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.NumH > 0 || a.Charge != 0 {
			continue
		}
		v, ok := defaultValence[a.AtomicNum]
		if !ok {
			continue
		}
		if a.IsAromatic {
			v-- // one valence consumed by the delocalised system
		}
		h := v - orderSum[i]
		if h > 0 {
			a.NumH = h
		}
	}
}

// perceiveRings marks ring bonds and atoms.  A bond is a ring bond when its
// endpoints stay connected after the bond is removed.  Molecules here are
// small (hundreds of atoms), so the per-bond BFS is acceptable.
func (m *Molecule) perceiveRings() {
	adj := make([][]int, len(m.Atoms)) // neighbor atom indices per bond
	for bi, b := range m.Bonds {
		adj[b.Src] = append(adj[b.Src], bi)
		adj[b.Dst] = append(adj[b.Dst], bi)
	}

	other := func(bi, from int) int {
		b := m.Bonds[bi]
		if b.Src == from {
			return b.Dst
		}
		return b.Src
	}

	// shortestCycleThrough returns the length of the shortest cycle using
	// bond bi, or 0 when bi is a bridge.
	shortestCycleThrough := func(bi int) int {
		src, dst := m.Bonds[bi].Src, m.Bonds[bi].Dst
		dist := make([]int, len(m.Atoms))
		for i := range dist {
			dist[i] = -1
		}
		dist[src] = 0
		queue := []int{src}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range adj[cur] {
				if nb == bi {
					continue
				}
				nxt := other(nb, cur)
				if dist[nxt] < 0 {
					dist[nxt] = dist[cur] + 1
					queue = append(queue, nxt)
				}
			}
		}
		if dist[dst] < 0 {
			return 0
		}
		return dist[dst] + 1
	}

	for bi := range m.Bonds {
		if size := shortestCycleThrough(bi); size > 0 {
			m.Bonds[bi].InRing = true
			for _, ai := range []int{m.Bonds[bi].Src, m.Bonds[bi].Dst} {
				m.Atoms[ai].InRing = true
				if m.Atoms[ai].RingSize == 0 || size < m.Atoms[ai].RingSize {
					m.Atoms[ai].RingSize = size
				}
			}
		}
	}
}

// perceiveConjugation flags bonds adjacent to two multiple bonds or inside
// an aromatic system.
func (m *Molecule) perceiveConjugation() {
	hasMultiple := make([]bool, len(m.Atoms))
	for _, b := range m.Bonds {
		if b.Order >= 2 {
			hasMultiple[b.Src] = true
			hasMultiple[b.Dst] = true
		}
	}
	for i := range m.Bonds {
		b := &m.Bonds[i]
		if b.Order == 4 {
			b.Conjugated = true
			continue
		}
		if hasMultiple[b.Src] && hasMultiple[b.Dst] {
			b.Conjugated = true
		}
	}
}

// MolecularWeight returns the approximate molecular weight including
// implicit hydrogens.
func (m *Molecule) MolecularWeight() float64 {
	var mw float64
	for _, a := range m.Atoms {
		if mass, ok := atomicMassMap[a.AtomicNum]; ok {
			mw += mass
		} else if a.AtomicNum > 0 {
			mw += 2 * float64(a.AtomicNum) // crude fallback for exotic atoms
		}
		mw += float64(a.NumH) * 1.008
	}
	return mw
}
