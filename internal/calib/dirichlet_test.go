package calib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"VectS", "TempS", "FullDiri", "FullDiriODIR"} {
		m, err := ParseMethod(name)
		require.NoError(t, err)
		assert.Equal(t, Method(name), m)
	}

	_, err := ParseMethod("PlattS")
	assert.ErrorContains(t, err, `unknown calibration method "PlattS"`)
}

func TestFit_UnknownMethod_FailsBeforeFitting(t *testing.T) {
	probs := mat.NewDense(1, 2, []float64{0.5, 0.5})
	_, err := Fit(Method("nope"), probs, []int{0})
	assert.ErrorContains(t, err, "unknown calibration method")
}

func TestFit_ShapeMismatch(t *testing.T) {
	probs := mat.NewDense(2, 2, []float64{0.9, 0.1, 0.2, 0.8})

	_, err := Fit(TemperatureScaling, probs, []int{0})
	assert.ErrorContains(t, err, "2 rows but 1 labels")

	_, err = Fit(TemperatureScaling, probs, []int{0, 2})
	assert.ErrorContains(t, err, "3 classes but matrix has 2 columns")
}

func TestFit_ParamCounts(t *testing.T) {
	probs, labels := makeOverconfident()
	k := 2

	cases := []struct {
		method Method
		want   int
	}{
		{TemperatureScaling, 1},
		{VectorScaling, 2 * k},
		{FullDirichlet, k*k + k},
		{FullDirichletODIR, k*k + k},
	}
	for _, tc := range cases {
		m, err := Fit(tc.method, probs, labels)
		require.NoError(t, err, "method %s", tc.method)
		assert.Equal(t, tc.want, m.ParamCount(), "method %s", tc.method)
		assert.Equal(t, tc.method, m.Method())
		assert.Equal(t, k, m.NumClasses())
	}
}

func TestMap_Apply_RowsSumToOne_AllVariants(t *testing.T) {
	probs, labels := makeOverconfident()

	for _, method := range []Method{TemperatureScaling, VectorScaling, FullDirichlet, FullDirichletODIR} {
		m, err := Fit(method, probs, labels)
		require.NoError(t, err, "method %s", method)

		calibrated, err := m.Apply(probs)
		require.NoError(t, err)

		rows, cols := calibrated.Dims()
		pr, pc := probs.Dims()
		assert.Equal(t, pr, rows)
		assert.Equal(t, pc, cols)

		for i := 0; i < rows; i++ {
			row := calibrated.RawRowView(i)
			assert.InDelta(t, 1.0, floats.Sum(row), 1e-9, "method %s row %d", method, i)
			for j, v := range row {
				assert.GreaterOrEqual(t, v, 0.0, "method %s row %d col %d", method, i, j)
			}
		}
	}
}

func TestFit_DoesNotIncreaseECEOnTrainingData(t *testing.T) {
	probs, labels := makeOverconfident()
	est := NewEstimator(MustBinConfig(DefaultBins))

	before, err := est.ECE(probs, labels)
	require.NoError(t, err)

	for _, method := range []Method{TemperatureScaling, VectorScaling, FullDirichlet, FullDirichletODIR} {
		m, err := Fit(method, probs, labels)
		require.NoError(t, err, "method %s", method)

		calibrated, err := m.Apply(probs)
		require.NoError(t, err)

		after, err := est.ECE(calibrated, labels)
		require.NoError(t, err)
		assert.LessOrEqual(t, after, before+1e-9, "method %s should not worsen ECE on its own training data", method)
	}
}

func TestFit_SmallBatchAllVariants(t *testing.T) {
	// A handful of rows puts the optimum within floating-point noise of a
	// few L-BFGS steps, where the linesearch can stall; that must surface
	// as a fitted map, not a convergence error.
	probs := mat.NewDense(4, 2, []float64{
		0.9, 0.1,
		0.8, 0.2,
		0.2, 0.8,
		0.3, 0.7,
	})
	labels := []int{0, 1, 1, 0}

	for _, method := range []Method{TemperatureScaling, VectorScaling, FullDirichlet, FullDirichletODIR} {
		m, err := Fit(method, probs, labels)
		require.NoError(t, err, "method %s", method)

		calibrated, err := m.Apply(probs)
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			assert.InDelta(t, 1.0, floats.Sum(calibrated.RawRowView(i)), 1e-9, "method %s row %d", method, i)
		}
	}
}

func TestFit_TemperatureFixesSystematicOverconfidence(t *testing.T) {
	// 90% claimed confidence against 75% accuracy: temperature scaling
	// should pull the top-class probability close to the empirical rate.
	probs, labels := makeOverconfident()

	m, err := Fit(TemperatureScaling, probs, labels)
	require.NoError(t, err)

	calibrated, err := m.Apply(probs)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, calibrated.At(0, 0), 0.02)

	est := NewEstimator(MustBinConfig(DefaultBins))
	after, err := est.ECE(calibrated, labels)
	require.NoError(t, err)
	assert.Less(t, after, 0.02)
}

func TestMap_Apply_ClassCountMismatch(t *testing.T) {
	probs, labels := makeOverconfident()
	m, err := Fit(TemperatureScaling, probs, labels)
	require.NoError(t, err)

	wide := mat.NewDense(1, 3, []float64{0.3, 0.3, 0.4})
	_, err = m.Apply(wide)
	assert.ErrorContains(t, err, "fitted for 2 classes")
}

func TestMap_AccessorsReturnCopies(t *testing.T) {
	probs, labels := makeOverconfident()
	m, err := Fit(VectorScaling, probs, labels)
	require.NoError(t, err)

	w1 := m.Weights()
	w1.Set(0, 0, 12345)
	w2 := m.Weights()
	assert.NotEqual(t, 12345.0, w2.At(0, 0), "Weights must return a copy")

	b1 := m.Intercepts()
	require.Len(t, b1, 2)
	b1[0] = 12345
	b2 := m.Intercepts()
	assert.NotEqual(t, 12345.0, b2[0], "Intercepts must return a copy")
}
