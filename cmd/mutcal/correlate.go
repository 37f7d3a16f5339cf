package main

import (
	"math/rand"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seqlab/mutcal/internal/mutdata"
	"github.com/seqlab/mutcal/internal/report"
)

func newKmerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kmer",
		Short: "Correlate observed and predicted mutation frequencies per k-mer context",
		RunE:  runKmer,
	}
	cmd.Flags().Int("k", 0, "single k-mer size (default: all configured sizes)")
	cmd.Flags().Bool("self", false, "also estimate the subsampling noise ceiling per class")
	return cmd
}

func runKmer(cmd *cobra.Command, _ []string) error {
	cfg, input, err := setup(cmd)
	if err != nil {
		return err
	}

	tbl, err := mutdata.LoadTSV(input)
	if err != nil {
		return err
	}

	sizes := cfg.Report.KmerSizes
	if k, _ := cmd.Flags().GetInt("k"); k > 0 {
		sizes = []int{k}
	}
	runSelf, _ := cmd.Flags().GetBool("self")

	rng := rand.New(rand.NewSource(cfg.Report.Seed))
	sampleRows := cfg.Report.SampleRows
	if sampleRows > tbl.NumRows() {
		sampleRows = tbl.NumRows()
	}

	for _, k := range sizes {
		corrs, err := report.FreqKmerCorrMulti(tbl, k)
		if err != nil {
			return err
		}
		for c, corr := range corrs {
			log.Info().Int("k", k).Int("class", c).Float64("corr", corr).
				Msg("observed vs predicted k-mer frequency correlation")
		}

		if !runSelf {
			continue
		}
		for c := range corrs {
			selfCorr, err := report.KmerSelfCorr(tbl, k, c, sampleRows, cfg.Report.Resamples, rng)
			if err != nil {
				return err
			}
			log.Info().Int("k", k).Int("class", c).Int("rows", sampleRows).
				Float64("mean_corr", selfCorr).
				Msg("k-mer frequency self-correlation (noise ceiling)")
		}
	}
	return nil
}

func newRegionalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regional",
		Short: "Correlate observed and predicted mutation rates over genomic windows",
		RunE:  runRegional,
	}
	cmd.Flags().Int64("window", 0, "single window size in bases (default: all configured sizes)")
	return cmd
}

func runRegional(cmd *cobra.Command, _ []string) error {
	cfg, input, err := setup(cmd)
	if err != nil {
		return err
	}

	tbl, err := mutdata.LoadTSV(input)
	if err != nil {
		return err
	}

	windows := cfg.Report.Windows
	if w, _ := cmd.Flags().GetInt64("window"); w > 0 {
		windows = []int64{w}
	}

	for _, w := range windows {
		corrs, err := report.RegionalCorr(tbl, w)
		if err != nil {
			return err
		}
		for c, corr := range corrs {
			log.Info().Int64("window", w).Int("class", c).Float64("corr", corr).
				Msg("regional observed vs predicted correlation")
		}
	}
	return nil
}
