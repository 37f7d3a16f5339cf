package report

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/seqlab/mutcal/internal/mutdata"
)

// kmerAcc accumulates one k-mer context group.
type kmerAcc struct {
	n    int
	obs  float64
	pred float64
}

// FreqKmerCorr computes the Pearson correlation between observed and
// predicted mutation frequencies of one class, averaged per k-mer context:
// rows are grouped by their k-mer key, the observed frequency is the mean
// of the (mut_type == class) indicator and the predicted frequency the
// mean of the class's predicted probability.
func FreqKmerCorr(t *mutdata.Table, k, class int) (float64, error) {
	if class < 0 || class >= t.NumClasses() {
		return 0, fmt.Errorf("class %d out of range for %d-class table", class, t.NumClasses())
	}

	groups := make(map[string]*kmerAcc)
	for i := 0; i < t.NumRows(); i++ {
		key, err := t.KmerKey(i, k)
		if err != nil {
			return 0, err
		}
		acc := groups[key]
		if acc == nil {
			acc = &kmerAcc{}
			groups[key] = acc
		}
		acc.n++
		if t.MutType[i] == class {
			acc.obs++
		}
		acc.pred += t.Probs.At(i, class)
	}
	if len(groups) < 2 {
		return 0, fmt.Errorf("only %d distinct %d-mer contexts; need at least 2 for a correlation", len(groups), k)
	}

	obs := make([]float64, 0, len(groups))
	pred := make([]float64, 0, len(groups))
	for _, acc := range groups {
		obs = append(obs, acc.obs/float64(acc.n))
		pred = append(pred, acc.pred/float64(acc.n))
	}
	return stat.Correlation(obs, pred, nil), nil
}

// FreqKmerCorrMulti computes FreqKmerCorr for every class in the table.
func FreqKmerCorrMulti(t *mutdata.Table, k int) ([]float64, error) {
	corrs := make([]float64, t.NumClasses())
	for c := range corrs {
		corr, err := FreqKmerCorr(t, k, c)
		if err != nil {
			return nil, err
		}
		corrs[c] = corr
	}
	return corrs, nil
}

// F3merCorr is the 3-mer shortcut for a single class.
func F3merCorr(t *mutdata.Table, class int) (float64, error) {
	return FreqKmerCorr(t, 3, class)
}

// KmerSelfCorr estimates a sampling-noise ceiling for k-mer frequency
// correlation: it draws two independent subsamples of nRows sites,
// computes each subsample's observed class frequency per k-mer context,
// and correlates the two over the contexts they share. The mean over
// `times` resamples is returned; draws with fewer than two shared contexts
// are skipped.
func KmerSelfCorr(t *mutdata.Table, k, class, nRows, times int, rng *rand.Rand) (float64, error) {
	if class < 0 || class >= t.NumClasses() {
		return 0, fmt.Errorf("class %d out of range for %d-class table", class, t.NumClasses())
	}
	if nRows < 1 || nRows > t.NumRows() {
		return 0, fmt.Errorf("subsample of %d rows out of range for %d-row table", nRows, t.NumRows())
	}
	if times < 1 {
		return 0, fmt.Errorf("resample count must be positive, got %d", times)
	}

	sum := 0.0
	used := 0
	for i := 0; i < times; i++ {
		freq1, err := subsampleFreq(t, k, class, nRows, rng)
		if err != nil {
			return 0, err
		}
		freq2, err := subsampleFreq(t, k, class, nRows, rng)
		if err != nil {
			return 0, err
		}

		var obs1, obs2 []float64
		for key, f1 := range freq1 {
			if f2, ok := freq2[key]; ok {
				obs1 = append(obs1, f1)
				obs2 = append(obs2, f2)
			}
		}
		if len(obs1) < 2 {
			log.Debug().Int("draw", i).Int("shared_contexts", len(obs1)).
				Msg("skipping self-correlation draw with too few shared contexts")
			continue
		}

		corr := stat.Correlation(obs1, obs2, nil)
		log.Debug().Int("draw", i).Float64("corr", corr).Msg("k-mer self-correlation draw")
		sum += corr
		used++
	}
	if used == 0 {
		return 0, fmt.Errorf("no resample draw produced at least 2 shared %d-mer contexts", k)
	}
	return sum / float64(used), nil
}

// subsampleFreq draws nRows sites without replacement and returns the
// observed class frequency per k-mer context.
func subsampleFreq(t *mutdata.Table, k, class, nRows int, rng *rand.Rand) (map[string]float64, error) {
	counts := make(map[string]*kmerAcc)
	for _, i := range rng.Perm(t.NumRows())[:nRows] {
		key, err := t.KmerKey(i, k)
		if err != nil {
			return nil, err
		}
		acc := counts[key]
		if acc == nil {
			acc = &kmerAcc{}
			counts[key] = acc
		}
		acc.n++
		if t.MutType[i] == class {
			acc.obs++
		}
	}

	freq := make(map[string]float64, len(counts))
	for key, acc := range counts {
		freq[key] = acc.obs / float64(acc.n)
	}
	return freq, nil
}
