package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/biocoder/pkg/redundancy"
	"github.com/ssargent/biocoder/pkg/symbol"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the units of a unit log and the model they build",
	Long: `List the units of a unit log with their offsets, sizes and symbol counts.
With --decode every unit is decoded and the per-unit coding statistics and
the final adaptive model are shown as well.

Examples:
  biocoder inspect --log ./data/logs/cam.units
  biocoder inspect --decode`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := runtimeFrom(cmd)
		decode, _ := cmd.Flags().GetBool("decode")

		log, err := openUnitLog(cmd, rt)
		if err != nil {
			return err
		}
		defer log.Close()

		stats := log.Stats()
		cmd.Printf("Log: %s\n", unitLogPath(cmd, rt))
		cmd.Printf("Units: %d  Symbols: %d  Payload: %d bytes  File: %d bytes\n\n",
			stats.Units, stats.Symbols, stats.PayloadBytes, stats.FileSize)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tOFFSET\tSIZE\tSYMBOLS\tTIME")
		for _, e := range log.Entries() {
			ts := time.Unix(0, int64(e.Timestamp)).UTC().Format(time.RFC3339Nano)
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\n", e.Seq, e.Offset, e.Size, e.SymbolCount, ts)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if !decode {
			return nil
		}

		cfg, err := rt.config.CoderConfig()
		if err != nil {
			return err
		}
		res, err := decodeLog(log, cfg, rt.logger, 0, false)
		if err != nil {
			return err
		}

		cmd.Println()
		tw = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tSYMBOLS\tCODED\tELIMINATED\tHITS\tBYTES\tBITS/SYMBOL")
		for seq, s := range res.Stats {
			bps := 0.0
			if s.Symbols > 0 {
				bps = float64(8*s.Bytes) / float64(s.Symbols)
			}
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%.3f\n",
				seq, s.Symbols, s.Coded, s.Eliminated, s.PredictionHits, s.Bytes, bps)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		var patterns redundancy.Counts
		for _, s := range res.Stats {
			for p, n := range s.Patterns {
				patterns[p] += n
			}
		}
		if patterns.Total() > 0 {
			cmd.Printf("\nEliminated by pattern:\n")
			for p := redundancy.Pattern(0); p < redundancy.NumPatterns; p++ {
				if patterns[p] > 0 {
					cmd.Printf("  %-20s %d\n", p, patterns[p])
				}
			}
		}

		snap := res.Final
		cmd.Printf("\nContext frames: %d  Homeostatic scale: %.4f\n", snap.Frames, snap.Homeostatic)
		cmd.Printf("Synaptic weights:\n")
		for k := symbol.Kind(0); k < symbol.NumKinds; k++ {
			cmd.Printf("  %-20s %.4f\n", k, snap.SynapticWeights[k])
		}
		cmd.Printf("Predictor weights: %v\n", snap.PredictorWeights)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("log", "", "Unit log file (default <data-dir>/logs/default.units)")
	inspectCmd.Flags().Bool("decode", false, "Decode the units and show coding statistics")
}
