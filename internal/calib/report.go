package calib

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Report holds the before/after calibration metrics for one evaluation run.
type Report struct {
	RunID   string `json:"run_id"`
	Method  Method `json:"method"`
	Samples int    `json:"samples"`
	Classes int    `json:"classes"`
	Bins    int    `json:"bins"`

	NLLBefore          float64 `json:"nll_before"`
	NLLAfter           float64 `json:"nll_after"`
	ECEBefore          float64 `json:"ece_before"`
	ECEAfter           float64 `json:"ece_after"`
	ClasswiseECEBefore float64 `json:"classwise_ece_before"`
	ClasswiseECEAfter  float64 `json:"classwise_ece_after"`
}

// Finite reports whether every metric in the report is finite. A non-finite
// NLL means a zero or negative probability reached the log and should be
// treated as a fatal data-quality signal, not silently accepted.
func (r *Report) Finite() bool {
	for _, v := range []float64{
		r.NLLBefore, r.NLLAfter,
		r.ECEBefore, r.ECEAfter,
		r.ClasswiseECEBefore, r.ClasswiseECEAfter,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NLL computes the mean negative log-likelihood of the true classes under
// the probability matrix. Probabilities must be strictly positive; a zero
// entry at a true label yields +Inf, which is surfaced rather than masked.
func NLL(probs *mat.Dense, labels []int) (float64, error) {
	n, _, err := checkShape(probs, labels)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("cannot compute NLL on an empty batch")
	}

	sum := 0.0
	for i, y := range labels {
		sum -= math.Log(probs.At(i, y))
	}
	return sum / float64(n), nil
}

// Evaluate fits a calibration map of the chosen method on (probs, labels),
// applies it, and reports NLL, ECE and classwise ECE before and after
// calibration. The fitted map is returned alongside the report so it can
// be reused on new probability matrices.
func Evaluate(method Method, probs *mat.Dense, labels []int, bins BinConfig) (*Report, *Map, error) {
	cmap, err := Fit(method, probs, labels)
	if err != nil {
		return nil, nil, err
	}

	calibrated, err := cmap.Apply(probs)
	if err != nil {
		return nil, nil, err
	}

	est := NewEstimator(bins)

	report := &Report{
		RunID:   uuid.NewString(),
		Method:  method,
		Samples: len(labels),
		Classes: cmap.NumClasses(),
		Bins:    bins.Len(),
	}
	if report.NLLBefore, err = NLL(probs, labels); err != nil {
		return nil, nil, err
	}
	if report.NLLAfter, err = NLL(calibrated, labels); err != nil {
		return nil, nil, err
	}
	if report.ECEBefore, err = est.ECE(probs, labels); err != nil {
		return nil, nil, err
	}
	if report.ECEAfter, err = est.ECE(calibrated, labels); err != nil {
		return nil, nil, err
	}
	if report.ClasswiseECEBefore, err = est.ClasswiseECE(probs, labels); err != nil {
		return nil, nil, err
	}
	if report.ClasswiseECEAfter, err = est.ClasswiseECE(calibrated, labels); err != nil {
		return nil, nil, err
	}

	return report, cmap, nil
}
