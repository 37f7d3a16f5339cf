package report

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/seqlab/mutcal/internal/mutdata"
)

// windowKey identifies one genomic window. Windows never span chromosomes,
// so the chromosome is part of the key.
type windowKey struct {
	chrom string
	start int64
}

// windowStats holds per-window aggregates for every class.
type windowStats struct {
	count   int
	obs     []int
	predSum []float64
}

// degenerateWarnFraction is the share of all-zero/all-one windows for a
// class above which the correlation is logged as unreliable.
const degenerateWarnFraction = 0.5

// RegionalCorr computes, for each mutation-type class, the Pearson
// correlation between the per-window observed class frequency and the
// per-window mean predicted probability. Sites are grouped into
// fixed-width windows keyed by (chromosome, position/window).
func RegionalCorr(t *mutdata.Table, window int64) ([]float64, error) {
	windows, err := aggregateWindows(t, window)
	if err != nil {
		return nil, err
	}
	if len(windows) < 2 {
		return nil, fmt.Errorf("only %d windows of size %d; need at least 2 for a correlation", len(windows), window)
	}

	classes := t.NumClasses()
	corrs := make([]float64, classes)
	avgObs := make([]float64, len(windows))
	avgPred := make([]float64, len(windows))
	for c := 0; c < classes; c++ {
		degenerate := 0
		for i, w := range windows {
			avgObs[i] = float64(w.obs[c]) / float64(w.count)
			avgPred[i] = w.predSum[c] / float64(w.count)
			if avgObs[i] == 0 || avgObs[i] == 1 {
				degenerate++
			}
		}
		if frac := float64(degenerate) / float64(len(windows)); frac > degenerateWarnFraction {
			log.Warn().
				Int("class", c).
				Int64("window", window).
				Float64("degenerate_fraction", frac).
				Msg("most windows have all-zero or all-one observed frequency; correlation is unreliable")
		}
		corrs[c] = stat.Correlation(avgObs, avgPred, nil)
	}
	return corrs, nil
}

// aggregateWindows groups sites by window in one pass over the table.
func aggregateWindows(t *mutdata.Table, window int64) ([]*windowStats, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", window)
	}
	if !t.HasCoordinates() {
		return nil, fmt.Errorf("table has no chromosome/position columns")
	}

	classes := t.NumClasses()
	groups := make(map[windowKey]*windowStats)
	for i := 0; i < t.NumRows(); i++ {
		key := windowKey{
			chrom: t.Chrom[i],
			start: t.Pos[i] / window * window,
		}
		w := groups[key]
		if w == nil {
			w = &windowStats{
				obs:     make([]int, classes),
				predSum: make([]float64, classes),
			}
			groups[key] = w
		}
		mt := t.MutType[i]
		if mt < 0 || mt >= classes {
			return nil, fmt.Errorf("row %d: mutation type %d out of range for %d-class table", i, mt, classes)
		}
		w.count++
		w.obs[mt]++
		for c := 0; c < classes; c++ {
			w.predSum[c] += t.Probs.At(i, c)
		}
	}

	windows := make([]*windowStats, 0, len(groups))
	for _, w := range groups {
		windows = append(windows, w)
	}
	return windows, nil
}
