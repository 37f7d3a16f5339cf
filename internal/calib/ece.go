package calib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Estimator computes binned calibration-error statistics from predicted
// probability distributions and observed mutation-type labels. It carries
// no state besides its immutable BinConfig; every call is a pure function
// of its inputs.
type Estimator struct {
	bins BinConfig
}

// NewEstimator creates an estimator over the given bins.
func NewEstimator(bins BinConfig) *Estimator {
	return &Estimator{bins: bins}
}

// Bins returns the estimator's bin configuration.
func (e *Estimator) Bins() BinConfig {
	return e.bins
}

// checkShape validates that probs and labels describe the same batch:
// one label per row, every label inside the matrix's class range.
// Returns (rows, classes).
func checkShape(probs *mat.Dense, labels []int) (int, int, error) {
	n, k := probs.Dims()
	if n != len(labels) {
		return 0, 0, fmt.Errorf("probability matrix has %d rows but %d labels", n, len(labels))
	}
	for i, y := range labels {
		if y < 0 {
			return 0, 0, fmt.Errorf("label %d at row %d is negative", y, i)
		}
		if y >= k {
			return 0, 0, fmt.Errorf("labels imply at least %d classes but matrix has %d columns", y+1, k)
		}
	}
	return n, k, nil
}

// ECE computes the expected calibration error: samples are binned by their
// top-class confidence, and each non-empty bin contributes
// |avg confidence - accuracy| weighted by its occupancy fraction.
func (e *Estimator) ECE(probs *mat.Dense, labels []int) (float64, error) {
	n, k, err := checkShape(probs, labels)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("cannot compute ECE on an empty batch")
	}

	confidences := make([]float64, n)
	correct := make([]bool, n)
	for i := 0; i < n; i++ {
		row := probs.RawRowView(i)
		argmax := 0
		for j := 1; j < k; j++ {
			if row[j] > row[argmax] {
				argmax = j
			}
		}
		confidences[i] = row[argmax]
		correct[i] = argmax == labels[i]
	}

	return e.binnedError(confidences, correct), nil
}

// ClasswiseECE computes the unweighted mean of per-class calibration
// errors, treating each class's predicted probability as a binary
// confidence score against the indicator (label == class). The class count
// is inferred from the label batch as max(label)+1; checkShape guarantees
// it never exceeds the matrix's column count.
func (e *Estimator) ClasswiseECE(probs *mat.Dense, labels []int) (float64, error) {
	n, _, err := checkShape(probs, labels)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("cannot compute classwise ECE on an empty batch")
	}

	numClasses := 0
	for _, y := range labels {
		if y+1 > numClasses {
			numClasses = y + 1
		}
	}

	confidences := make([]float64, n)
	correct := make([]bool, n)
	sum := 0.0
	for c := 0; c < numClasses; c++ {
		for i := 0; i < n; i++ {
			confidences[i] = probs.At(i, c)
			correct[i] = labels[i] == c
		}
		sum += e.binnedError(confidences, correct)
	}

	return sum / float64(numClasses), nil
}

// binnedError is the shared bin loop: sum over non-empty bins of
// |avg confidence - avg correctness| * occupancy fraction. Empty bins are
// skipped so a class absent from every bin contributes exactly zero.
func (e *Estimator) binnedError(confidences []float64, correct []bool) float64 {
	n := float64(len(confidences))
	ece := 0.0
	for b := 0; b < e.bins.Len(); b++ {
		count := 0
		confSum := 0.0
		hitSum := 0.0
		for i, c := range confidences {
			if !e.bins.Contains(b, c) {
				continue
			}
			count++
			confSum += c
			if correct[i] {
				hitSum++
			}
		}
		if count == 0 {
			continue
		}
		avgConf := confSum / float64(count)
		accuracy := hitSum / float64(count)
		ece += math.Abs(avgConf-accuracy) * float64(count) / n
	}
	return ece
}
