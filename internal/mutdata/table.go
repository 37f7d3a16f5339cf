// Package mutdata holds the flat evaluation table consumed by the
// auxiliary reports: one row per observed genomic site, with the site's
// k-mer context, the observed mutation type and the per-class predicted
// probabilities from an external model-inference pipeline.
package mutdata

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Table is a column-oriented view of an evaluation dataset.
//
// Up and Down are indexed [distance][row]: Up[0] is the base immediately
// upstream of each site (the us1 column), Up[1] the us2 column, and so on.
// Chrom and Pos are nil when the source had no coordinate columns; only
// the regional report needs them.
type Table struct {
	Chrom   []string
	Pos     []int64
	Up      [][]string
	Down    [][]string
	MutType []int
	Probs   *mat.Dense
}

// NumRows returns the number of sites in the table.
func (t *Table) NumRows() int {
	return len(t.MutType)
}

// NumClasses returns the number of mutation-type classes the probability
// columns cover.
func (t *Table) NumClasses() int {
	if t.Probs == nil {
		return 0
	}
	_, k := t.Probs.Dims()
	return k
}

// Flank returns how many context bases are available on each side.
func (t *Table) Flank() int {
	return len(t.Up)
}

// HasCoordinates reports whether chromosome/position columns are present.
func (t *Table) HasCoordinates() bool {
	return len(t.Chrom) == t.NumRows() && len(t.Pos) == t.NumRows() && t.NumRows() > 0
}

// Labels returns the observed mutation types, aliasing the table's slice.
func (t *Table) Labels() []int {
	return t.MutType
}

// KmerKey builds the grouping key for the k-mer context around row i:
// the k/2 upstream bases (outermost first) followed by the k/2 downstream
// bases, joined with '|'.
func (t *Table) KmerKey(i, k int) (string, error) {
	d := k / 2
	if d < 1 {
		return "", fmt.Errorf("k-mer size %d has no context bases", k)
	}
	if d > t.Flank() {
		return "", fmt.Errorf("k-mer size %d needs %d flanking bases but table has %d", k, d, t.Flank())
	}

	var b strings.Builder
	for j := d - 1; j >= 0; j-- {
		b.WriteString(t.Up[j][i])
		b.WriteByte('|')
	}
	for j := 0; j < d; j++ {
		if j > 0 {
			b.WriteByte('|')
		}
		b.WriteString(t.Down[j][i])
	}
	return b.String(), nil
}

// columnLayout records where each known column lives in a header.
type columnLayout struct {
	chrom, pos, mutType int   // -1 when absent
	up, down            []int // index d-1 -> column of us<d>/ds<d>
	probs               []int // index c -> column of prob<c>
}

func parseHeader(header []string) (*columnLayout, error) {
	layout := &columnLayout{chrom: -1, pos: -1, mutType: -1}
	up := map[int]int{}
	down := map[int]int{}
	probs := map[int]int{}

	for col, name := range header {
		switch {
		case name == "chrom":
			layout.chrom = col
		case name == "start":
			layout.pos = col
		case name == "mut_type":
			layout.mutType = col
		case strings.HasPrefix(name, "us"):
			d, err := strconv.Atoi(name[2:])
			if err != nil || d < 1 {
				return nil, fmt.Errorf("malformed upstream column %q", name)
			}
			up[d] = col
		case strings.HasPrefix(name, "ds"):
			d, err := strconv.Atoi(name[2:])
			if err != nil || d < 1 {
				return nil, fmt.Errorf("malformed downstream column %q", name)
			}
			down[d] = col
		case strings.HasPrefix(name, "prob"):
			c, err := strconv.Atoi(name[4:])
			if err != nil || c < 0 {
				return nil, fmt.Errorf("malformed probability column %q", name)
			}
			probs[c] = col
		}
	}

	if layout.mutType < 0 {
		return nil, fmt.Errorf("missing required column mut_type")
	}
	if len(probs) == 0 {
		return nil, fmt.Errorf("no probability columns (prob0..probK-1) found")
	}
	if len(up) != len(down) {
		return nil, fmt.Errorf("asymmetric context: %d upstream vs %d downstream columns", len(up), len(down))
	}

	layout.up = make([]int, len(up))
	layout.down = make([]int, len(down))
	for d := 1; d <= len(up); d++ {
		uc, ok := up[d]
		if !ok {
			return nil, fmt.Errorf("upstream columns are not contiguous: missing us%d", d)
		}
		dc, ok := down[d]
		if !ok {
			return nil, fmt.Errorf("downstream columns are not contiguous: missing ds%d", d)
		}
		layout.up[d-1] = uc
		layout.down[d-1] = dc
	}

	layout.probs = make([]int, len(probs))
	for c := 0; c < len(probs); c++ {
		col, ok := probs[c]
		if !ok {
			return nil, fmt.Errorf("probability columns are not contiguous: missing prob%d", c)
		}
		layout.probs[c] = col
	}

	return layout, nil
}
