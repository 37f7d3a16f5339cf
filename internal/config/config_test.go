package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadDefault(t *testing.T) {
	l := NewLoader()
	require.NoError(t, l.LoadDefault())

	cfg, err := l.Config()
	require.NoError(t, err)
	assert.Equal(t, "FullDiri", cfg.Calibration.Method)
	assert.Equal(t, 25, cfg.Calibration.Bins)
	assert.Equal(t, []int{3, 5, 7}, cfg.Report.KmerSizes)
	assert.Equal(t, 10, cfg.Report.Resamples)
}

func TestLoader_ConfigBeforeLoad(t *testing.T) {
	_, err := NewLoader().Config()
	assert.ErrorContains(t, err, "config not loaded")
}

func TestLoader_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mutcal.yaml")
	body := `calibration:
  method: TempS
  bins: 15
report:
  kmer_sizes: [3, 5]
  windows: [50000]
  sample_rows: 2000
  resamples: 5
  seed: 42
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	l := NewLoader()
	require.NoError(t, l.LoadFromFile(path))

	cfg, err := l.Config()
	require.NoError(t, err)
	assert.Equal(t, "TempS", cfg.Calibration.Method)
	assert.Equal(t, 15, cfg.Calibration.Bins)
	assert.Equal(t, []int64{50000}, cfg.Report.Windows)
	assert.Equal(t, int64(42), cfg.Report.Seed)
}

func TestLoader_LoadFromFile_Missing(t *testing.T) {
	err := NewLoader().LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoader_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown method",
			body: "calibration:\n  method: Platt\n  bins: 25\nreport:\n  sample_rows: 1\n  resamples: 1\n",
			want: "unknown calibration method",
		},
		{
			name: "bad bins",
			body: "calibration:\n  method: TempS\n  bins: 0\nreport:\n  sample_rows: 1\n  resamples: 1\n",
			want: "calibration.bins must be positive",
		},
		{
			name: "even kmer",
			body: "calibration:\n  method: TempS\n  bins: 25\nreport:\n  kmer_sizes: [4]\n  sample_rows: 1\n  resamples: 1\n",
			want: "must be odd",
		},
		{
			name: "bad window",
			body: "calibration:\n  method: TempS\n  bins: 25\nreport:\n  windows: [-5]\n  sample_rows: 1\n  resamples: 1\n",
			want: "windows entries must be positive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o644))
			err := NewLoader().LoadFromFile(path)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
