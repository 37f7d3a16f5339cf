package calib

import "fmt"

const (
	// DefaultBins is the bin count used when no configuration is supplied.
	DefaultBins = 15

	// ReportBins is the bin count used by the before/after metric report.
	ReportBins = 25
)

// BinConfig partitions [0,1] into equal-width confidence bins. Membership
// uses half-open intervals: a confidence c falls into bin i iff
// c > lower(i) and c <= upper(i). A confidence of exactly 0 therefore lands
// in no bin; this matches the reference binning and is kept until the
// intended semantics for that boundary are confirmed.
type BinConfig struct {
	lowers []float64
	uppers []float64
}

// NewBinConfig creates a configuration with n equal-width bins over [0,1].
func NewBinConfig(n int) (BinConfig, error) {
	if n <= 0 {
		return BinConfig{}, fmt.Errorf("bin count must be positive, got %d", n)
	}

	lowers := make([]float64, n)
	uppers := make([]float64, n)
	width := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		lowers[i] = float64(i) * width
		uppers[i] = float64(i+1) * width
	}
	// Keep the top boundary exact so a confidence of 1 is never lost to
	// floating-point rounding.
	uppers[n-1] = 1.0

	return BinConfig{lowers: lowers, uppers: uppers}, nil
}

// MustBinConfig is NewBinConfig for known-good bin counts.
func MustBinConfig(n int) BinConfig {
	bc, err := NewBinConfig(n)
	if err != nil {
		panic(err)
	}
	return bc
}

// Len returns the number of bins.
func (bc BinConfig) Len() int {
	return len(bc.lowers)
}

// Bounds returns the (lower, upper] boundaries of bin i.
func (bc BinConfig) Bounds(i int) (float64, float64) {
	return bc.lowers[i], bc.uppers[i]
}

// Contains reports whether confidence c falls into bin i.
func (bc BinConfig) Contains(i int, c float64) bool {
	return c > bc.lowers[i] && c <= bc.uppers[i]
}
