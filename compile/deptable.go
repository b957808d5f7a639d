package compile

import "fmt"

// Dependency classifies why a later pass depends on an earlier one.
type Dependency uint8

const (
	// DepNone means no dependency exists.
	DepNone Dependency = iota
	// DepOrdering means the later pass need not run, but if it does its
	// write must be observed after the earlier pass's (write-after-write).
	DepOrdering
	// DepExecution means the later pass reads what the earlier pass
	// wrote; the earlier pass must run whenever the later one does.
	DepExecution
)

func (d Dependency) String() string {
	switch d {
	case DepOrdering:
		return "ordering"
	case DepExecution:
		return "execution"
	default:
		return "none"
	}
}

// DepTable is the lower-triangular N×N dependency matrix: entry (i,j),
// i>j, means "pass i depends on pass j". Only the lower
// triangle is ever populated; Get on the upper triangle or diagonal
// always returns DepNone.
type DepTable struct {
	n     int
	edges []Dependency
}

// NewDepTable returns an all-DepNone table sized for n passes.
func NewDepTable(n int) *DepTable {
	return &DepTable{n: n, edges: make([]Dependency, n*n)}
}

// N returns the table's dimension.
func (d *DepTable) N() int { return d.n }

func (d *DepTable) index(i, j int) int { return i*d.n + j }

// Get returns the dependency of pass i on pass j.
func (d *DepTable) Get(i, j int) Dependency {
	if i <= j || i >= d.n || j < 0 {
		return DepNone
	}
	return d.edges[d.index(i, j)]
}

// Set records that pass i depends on pass j (i must be > j).
func (d *DepTable) Set(i, j int, dep Dependency) {
	if i <= j {
		panic(fmt.Sprintf("compile: DepTable.Set(%d,%d): row must be > col", i, j))
	}
	d.edges[d.index(i, j)] = dep
}

// Dependencies returns every j < i with a non-DepNone entry for row i.
func (d *DepTable) Dependencies(i int) []int {
	var out []int
	for j := 0; j < i; j++ {
		if d.Get(i, j) != DepNone {
			out = append(out, j)
		}
	}
	return out
}

// Remap builds a new table over len(newIndex) surviving rows/cols,
// where newIndex maps an old pass index to its new index. Only entries
// between two surviving passes are kept.
func (d *DepTable) Remap(newIndex map[int]int, newN int) *DepTable {
	out := NewDepTable(newN)
	for i := 0; i < d.n; i++ {
		ni, ok := newIndex[i]
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			dep := d.Get(i, j)
			if dep == DepNone {
				continue
			}
			nj, ok := newIndex[j]
			if !ok {
				continue
			}
			if ni > nj {
				out.Set(ni, nj, dep)
			} else {
				out.Set(nj, ni, dep)
			}
		}
	}
	return out
}
