package calib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNLL_HandComputed(t *testing.T) {
	probs := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		0.25, 0.75,
	})
	labels := []int{0, 1}

	nll, err := NLL(probs, labels)
	require.NoError(t, err)
	assert.InDelta(t, -(math.Log(0.5)+math.Log(0.75))/2, nll, 1e-12)
}

func TestNLL_ZeroProbabilityIsNonFinite(t *testing.T) {
	probs := mat.NewDense(2, 2, []float64{
		1.0, 0.0,
		0.0, 1.0,
	})
	labels := []int{0, 0}

	nll, err := NLL(probs, labels)
	require.NoError(t, err)
	assert.True(t, math.IsInf(nll, 1), "zero probability at a true label must surface as +Inf, not be masked")
}

func TestNLL_ShapeMismatch(t *testing.T) {
	probs := mat.NewDense(2, 2, []float64{0.5, 0.5, 0.5, 0.5})
	_, err := NLL(probs, []int{0, 1, 0})
	assert.ErrorContains(t, err, "2 rows but 3 labels")
}

func TestEvaluate_SixScalars(t *testing.T) {
	probs, labels := makeOverconfident()
	bins := MustBinConfig(ReportBins)

	report, cmap, err := Evaluate(TemperatureScaling, probs, labels, bins)
	require.NoError(t, err)
	require.NotNil(t, cmap)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, TemperatureScaling, report.Method)
	assert.Equal(t, len(labels), report.Samples)
	assert.Equal(t, 2, report.Classes)
	assert.Equal(t, ReportBins, report.Bins)
	assert.True(t, report.Finite())

	// Before metrics must match direct computation on the raw matrix.
	est := NewEstimator(bins)
	wantECE, err := est.ECE(probs, labels)
	require.NoError(t, err)
	assert.InDelta(t, wantECE, report.ECEBefore, 1e-12)

	wantNLL, err := NLL(probs, labels)
	require.NoError(t, err)
	assert.InDelta(t, wantNLL, report.NLLBefore, 1e-12)

	// The fit minimizes NLL on this same data starting from the identity
	// transform, so it can only improve on the uncalibrated value.
	assert.LessOrEqual(t, report.NLLAfter, report.NLLBefore+1e-9)
	assert.LessOrEqual(t, report.ECEAfter, report.ECEBefore+1e-9)
}

func TestEvaluate_UnknownMethod(t *testing.T) {
	probs, labels := makeOverconfident()
	_, _, err := Evaluate(Method("IsoT"), probs, labels, MustBinConfig(ReportBins))
	assert.ErrorContains(t, err, "unknown calibration method")
}

func TestReport_Finite(t *testing.T) {
	r := &Report{NLLBefore: 0.5, NLLAfter: 0.4}
	assert.True(t, r.Finite())

	r.NLLAfter = math.Inf(1)
	assert.False(t, r.Finite())

	r.NLLAfter = math.NaN()
	assert.False(t, r.Finite())
}
