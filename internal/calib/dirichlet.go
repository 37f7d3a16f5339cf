package calib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Method selects one of the supported calibration transforms. The names
// follow the reference calibrator registry so configuration files stay
// interchangeable with it.
type Method string

const (
	// VectorScaling fits one multiplicative weight and one intercept per
	// class on the log-probabilities.
	VectorScaling Method = "VectS"

	// TemperatureScaling fits a single inverse-temperature weight shared by
	// all classes, with no intercept.
	TemperatureScaling Method = "TempS"

	// FullDirichlet fits an unregularized full weight matrix plus
	// intercepts on the log-probabilities.
	FullDirichlet Method = "FullDiri"

	// FullDirichletODIR is FullDirichlet with L2 regularization on the
	// off-diagonal weights and the intercepts; diagonal weights are left
	// unregularized.
	FullDirichletODIR Method = "FullDiriODIR"
)

// odirLambda is the fixed L2 strength applied to off-diagonal weights and
// intercepts by FullDirichletODIR.
const odirLambda = 1e-2

// gradTol stops the optimizer once the gradient infinity norm falls below
// it. gradStallTol is the gradient level at which a stalled linesearch
// still counts as converged: near the optimum the linesearch can fail on
// floating-point noise before the gradient threshold is reached.
const (
	gradTol      = 1e-6
	gradStallTol = 1e-4
)

// ParseMethod maps a configured name to a Method. Unknown names are a
// configuration error and are rejected before any fitting happens.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case VectorScaling, TemperatureScaling, FullDirichlet, FullDirichletODIR:
		return Method(name), nil
	}
	return "", fmt.Errorf("unknown calibration method %q (want %s, %s, %s or %s)",
		name, VectorScaling, TemperatureScaling, FullDirichlet, FullDirichletODIR)
}

// Map is a fitted calibration transform: calibrated logits are
// W*log(p) + b followed by a softmax. Immutable once fitted; Apply may be
// called any number of times.
type Map struct {
	method     Method
	classes    int
	weights    *mat.Dense // classes x classes
	intercepts []float64  // length classes
}

// ParamGroup describes one group of learned parameters, for diagnostic
// parameter-count tables.
type ParamGroup struct {
	Name  string
	Count int
}

// Fit learns a calibration map of the chosen method from held-out
// probabilities and labels by minimizing mean negative log-likelihood
// (plus the ODIR penalty where the method carries one) with L-BFGS.
//
// Callers own input validity: rows must be probability distributions with
// strictly positive entries. A zero probability feeds a -Inf
// log-probability into the objective and the fit will fail.
func Fit(method Method, probs *mat.Dense, labels []int) (*Map, error) {
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	n, k, err := checkShape(probs, labels)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("cannot fit calibration on an empty batch")
	}

	// Pseudo-logits: the transform operates on log-probabilities.
	logProbs := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			logProbs.Set(i, j, math.Log(probs.At(i, j)))
		}
	}

	obj := newObjective(method, logProbs, labels)
	problem := optimize.Problem{
		Func: obj.value,
		Grad: obj.gradient,
	}

	settings := &optimize.Settings{GradientThreshold: gradTol}
	result, err := optimize.Minimize(problem, obj.initial(), settings, &optimize.LBFGS{})
	switch {
	case err != nil && result != nil && obj.gradientNorm(result.X) <= gradStallTol:
		// Stalled within noise of the optimum; the best point found is a
		// converged fit.
	case err != nil:
		return nil, fmt.Errorf("calibration fit did not converge: %w", err)
	default:
		if err := result.Status.Err(); err != nil {
			return nil, fmt.Errorf("calibration fit ended with status %v: %w", result.Status, err)
		}
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("calibration fit produced non-finite parameters; check input probabilities are strictly positive")
		}
	}

	weights, intercepts := obj.expand(result.X)
	return &Map{
		method:     method,
		classes:    k,
		weights:    weights,
		intercepts: intercepts,
	}, nil
}

// Apply transforms a probability matrix through the fitted map. The output
// has the same shape and every row sums to 1 by softmax construction.
func (m *Map) Apply(probs *mat.Dense) (*mat.Dense, error) {
	n, k := probs.Dims()
	if k != m.classes {
		return nil, fmt.Errorf("probability matrix has %d columns but map was fitted for %d classes", k, m.classes)
	}

	out := mat.NewDense(n, k, nil)
	z := make([]float64, k)
	logits := make([]float64, k)
	for i := 0; i < n; i++ {
		row := probs.RawRowView(i)
		for j := 0; j < k; j++ {
			z[j] = math.Log(row[j])
		}
		for c := 0; c < k; c++ {
			l := m.intercepts[c]
			for j := 0; j < k; j++ {
				l += m.weights.At(c, j) * z[j]
			}
			logits[c] = l
		}
		softmax(logits, out.RawRowView(i))
	}
	return out, nil
}

// Method returns the variant this map was fitted with.
func (m *Map) Method() Method {
	return m.method
}

// NumClasses returns the class count the map was fitted for.
func (m *Map) NumClasses() int {
	return m.classes
}

// Weights returns a copy of the fitted weight matrix.
func (m *Map) Weights() *mat.Dense {
	return mat.DenseCopyOf(m.weights)
}

// Intercepts returns a copy of the fitted per-class intercepts.
func (m *Map) Intercepts() []float64 {
	out := make([]float64, len(m.intercepts))
	copy(out, m.intercepts)
	return out
}

// ParamGroups returns the learned parameter groups of the fitted variant.
func (m *Map) ParamGroups() []ParamGroup {
	k := m.classes
	switch m.method {
	case TemperatureScaling:
		return []ParamGroup{{Name: "weights", Count: 1}}
	case VectorScaling:
		return []ParamGroup{
			{Name: "weights", Count: k},
			{Name: "intercepts", Count: k},
		}
	default: // FullDirichlet, FullDirichletODIR
		return []ParamGroup{
			{Name: "weights", Count: k * k},
			{Name: "intercepts", Count: k},
		}
	}
}

// ParamCount returns the total number of learned parameters.
func (m *Map) ParamCount() int {
	total := 0
	for _, g := range m.ParamGroups() {
		total += g.Count
	}
	return total
}

// objective is the negative log-likelihood surface for one fit call. The
// parameter vector layout depends on the method:
//
//	TempS:  [w]                      shared inverse temperature
//	VectS:  [w_0..w_k-1 b_0..b_k-1]  per-class scale and intercept
//	Full*:  [W row-major, b]         full matrix and intercept
type objective struct {
	method   Method
	logProbs *mat.Dense
	labels   []int
	n, k     int

	// scratch reused across evaluations
	logits []float64
	smax   []float64
}

func newObjective(method Method, logProbs *mat.Dense, labels []int) *objective {
	n, k := logProbs.Dims()
	return &objective{
		method:   method,
		logProbs: logProbs,
		labels:   labels,
		n:        n,
		k:        k,
		logits:   make([]float64, k),
		smax:     make([]float64, k),
	}
}

// initial returns the identity transform for the method, so optimization
// starts from "no recalibration".
func (o *objective) initial() []float64 {
	switch o.method {
	case TemperatureScaling:
		return []float64{1}
	case VectorScaling:
		x := make([]float64, 2*o.k)
		for i := 0; i < o.k; i++ {
			x[i] = 1
		}
		return x
	default:
		x := make([]float64, o.k*o.k+o.k)
		for i := 0; i < o.k; i++ {
			x[i*o.k+i] = 1
		}
		return x
	}
}

// expand reconstructs the dense weight matrix and intercepts from a
// parameter vector.
func (o *objective) expand(x []float64) (*mat.Dense, []float64) {
	k := o.k
	weights := mat.NewDense(k, k, nil)
	intercepts := make([]float64, k)
	switch o.method {
	case TemperatureScaling:
		for i := 0; i < k; i++ {
			weights.Set(i, i, x[0])
		}
	case VectorScaling:
		for i := 0; i < k; i++ {
			weights.Set(i, i, x[i])
			intercepts[i] = x[k+i]
		}
	default:
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				weights.Set(i, j, x[i*k+j])
			}
		}
		copy(intercepts, x[k*k:])
	}
	return weights, intercepts
}

// rowLogits fills o.logits with W*z+b for sample i under parameters x.
func (o *objective) rowLogits(x []float64, i int) {
	k := o.k
	z := o.logProbs.RawRowView(i)
	switch o.method {
	case TemperatureScaling:
		for c := 0; c < k; c++ {
			o.logits[c] = x[0] * z[c]
		}
	case VectorScaling:
		for c := 0; c < k; c++ {
			o.logits[c] = x[c]*z[c] + x[k+c]
		}
	default:
		for c := 0; c < k; c++ {
			l := x[k*k+c]
			wRow := x[c*k : (c+1)*k]
			for j := 0; j < k; j++ {
				l += wRow[j] * z[j]
			}
			o.logits[c] = l
		}
	}
}

// value is the mean cross-entropy of softmax(W*z+b) against the labels,
// plus the ODIR penalty when the method carries one.
func (o *objective) value(x []float64) float64 {
	loss := 0.0
	for i := 0; i < o.n; i++ {
		o.rowLogits(x, i)
		loss += crossEntropy(o.logits, o.labels[i])
	}
	loss /= float64(o.n)
	return loss + o.penalty(x)
}

// gradient fills grad with the analytic gradient of value at x.
func (o *objective) gradient(grad, x []float64) {
	for i := range grad {
		grad[i] = 0
	}
	k := o.k
	invN := 1.0 / float64(o.n)

	for i := 0; i < o.n; i++ {
		o.rowLogits(x, i)
		softmax(o.logits, o.smax)
		z := o.logProbs.RawRowView(i)
		y := o.labels[i]
		for c := 0; c < k; c++ {
			// d(loss)/d(logit_c) for this sample
			g := o.smax[c] * invN
			if c == y {
				g -= invN
			}
			switch o.method {
			case TemperatureScaling:
				grad[0] += g * z[c]
			case VectorScaling:
				grad[c] += g * z[c]
				grad[k+c] += g
			default:
				wRow := grad[c*k : (c+1)*k]
				for j := 0; j < k; j++ {
					wRow[j] += g * z[j]
				}
				grad[k*k+c] += g
			}
		}
	}

	if o.method == FullDirichletODIR {
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				if i == j {
					continue
				}
				grad[i*k+j] += 2 * odirLambda * x[i*k+j]
			}
		}
		for c := 0; c < k; c++ {
			grad[k*k+c] += 2 * odirLambda * x[k*k+c]
		}
	}
}

// gradientNorm returns the infinity norm of the objective gradient at x.
func (o *objective) gradientNorm(x []float64) float64 {
	grad := make([]float64, len(x))
	o.gradient(grad, x)
	norm := 0.0
	for _, g := range grad {
		if math.Abs(g) > norm {
			norm = math.Abs(g)
		}
	}
	return norm
}

// penalty is the ODIR L2 term: off-diagonal weights and intercepts,
// diagonal excluded.
func (o *objective) penalty(x []float64) float64 {
	if o.method != FullDirichletODIR {
		return 0
	}
	k := o.k
	p := 0.0
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			p += x[i*k+j] * x[i*k+j]
		}
	}
	for c := 0; c < k; c++ {
		p += x[k*k+c] * x[k*k+c]
	}
	return odirLambda * p
}

// softmax writes the softmax of logits into out, shifting by the max for
// numerical stability.
func softmax(logits, out []float64) {
	max := logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}
	sum := 0.0
	for i, l := range logits {
		out[i] = math.Exp(l - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
}

// crossEntropy returns -log softmax(logits)[label].
func crossEntropy(logits []float64, label int) float64 {
	max := logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}
	sum := 0.0
	for _, l := range logits {
		sum += math.Exp(l - max)
	}
	return math.Log(sum) + max - logits[label]
}
