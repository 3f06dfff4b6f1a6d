package chem

import (
	"fmt"
	"sort"
	"strings"
)

// Scaffold is the Murcko framework of a molecule: its ring systems plus the
// linker atoms connecting them, with all side chains pruned.
type Scaffold struct {
	// AtomIndices are the indices into the source molecule that survive
	// pruning, in ascending order.
	AtomIndices []int
	// Key is a canonical string identifying the scaffold.  Two molecules
	// share a Key iff their frameworks are graph-isomorphic under element
	// and bond-order labels.  Acyclic molecules have an empty Key.
	Key string
}

// MurckoScaffold extracts the Murcko framework of smiles.
func MurckoScaffold(smiles string) (*Scaffold, error) {
	mol, err := ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	return MoleculeScaffold(mol), nil
}

// MoleculeScaffold extracts the Murcko framework of a parsed molecule.
func MoleculeScaffold(mol *Molecule) *Scaffold {
	n := mol.NumAtoms()
	keep := make([]bool, n)
	degree := make([]int, n)
	adj := make([][][2]int, n)
	for i := 0; i < n; i++ {
		adj[i] = mol.Neighbors(i)
		degree[i] = len(adj[i])
		keep[i] = true
	}

	// Iteratively prune non-ring terminal atoms.  What remains is the set
	// of ring atoms plus linkers between rings.
	for {
		pruned := false
		for i := 0; i < n; i++ {
			if !keep[i] || mol.Atoms[i].InRing || degree[i] > 1 {
				continue
			}
			keep[i] = false
			pruned = true
			for _, nb := range adj[i] {
				if keep[nb[0]] {
					degree[nb[0]]--
				}
			}
		}
		if !pruned {
			break
		}
	}

	var indices []int
	for i := 0; i < n; i++ {
		if keep[i] {
			indices = append(indices, i)
		}
	}

	hasRing := false
	for _, i := range indices {
		if mol.Atoms[i].InRing {
			hasRing = true
			break
		}
	}
	if !hasRing {
		return &Scaffold{AtomIndices: nil, Key: ""}
	}

	return &Scaffold{AtomIndices: indices, Key: canonicalKey(mol, indices, keep)}
}

// canonicalKey produces an order-independent identifier for the induced
// subgraph over indices.  Atom ranks are refined Morgan-style from element
// and aromaticity invariants until stable, then sorted atom and bond codes
// are joined.
func canonicalKey(mol *Molecule, indices []int, keep []bool) string {
	pos := make(map[int]int, len(indices))
	for p, i := range indices {
		pos[i] = p
	}

	type edge struct {
		a, b  int // positions in indices
		order int
	}
	var edges []edge
	adj := make([][]edge, len(indices))
	for _, b := range mol.Bonds {
		if !keep[b.Src] || !keep[b.Dst] {
			continue
		}
		e := edge{pos[b.Src], pos[b.Dst], b.Order}
		edges = append(edges, e)
		adj[e.a] = append(adj[e.a], e)
		adj[e.b] = append(adj[e.b], edge{e.b, e.a, e.order})
	}

	ranks := make([]uint64, len(indices))
	for p, i := range indices {
		a := mol.Atoms[i]
		ranks[p] = hash64("scaf", a.Symbol, fmt.Sprint(a.IsAromatic), fmt.Sprint(len(adj[p])))
	}
	for iter := 0; iter < len(indices); iter++ {
		next := make([]uint64, len(ranks))
		changed := false
		for p := range ranks {
			env := make([]string, 0, len(adj[p]))
			for _, e := range adj[p] {
				env = append(env, fmt.Sprintf("%d:%d", e.order, ranks[e.b]))
			}
			sort.Strings(env)
			next[p] = hash64(append([]string{fmt.Sprint(ranks[p])}, env...)...)
			if next[p] != ranks[p] {
				changed = true
			}
		}
		ranks = next
		if !changed {
			break
		}
	}

	atomCodes := make([]string, len(ranks))
	for p, r := range ranks {
		atomCodes[p] = fmt.Sprint(r)
	}
	sort.Strings(atomCodes)

	bondCodes := make([]string, 0, len(edges))
	for _, e := range edges {
		lo, hi := ranks[e.a], ranks[e.b]
		if lo > hi {
			lo, hi = hi, lo
		}
		bondCodes = append(bondCodes, fmt.Sprintf("%d-%d-%d", lo, e.order, hi))
	}
	sort.Strings(bondCodes)

	return fmt.Sprintf("%d|%s|%s", len(indices),
		strings.Join(atomCodes, ","), strings.Join(bondCodes, ","))
}
