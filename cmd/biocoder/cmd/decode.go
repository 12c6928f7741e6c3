package cmd

import (
	"github.com/spf13/cobra"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a unit log into JSON-lines frames",
	Long: `Decode every unit of a unit log in order and write the frames as JSON lines.
The coder section of the configuration must match the one used to encode.

Examples:
  biocoder decode --log ./data/logs/cam.units --out frames.jsonl
  biocoder decode --from 100 --best-effort`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := runtimeFrom(cmd)
		outPath, _ := cmd.Flags().GetString("out")
		from, _ := cmd.Flags().GetUint64("from")
		bestEffort, _ := cmd.Flags().GetBool("best-effort")

		cfg, err := rt.config.CoderConfig()
		if err != nil {
			return err
		}

		log, err := openUnitLog(cmd, rt)
		if err != nil {
			return err
		}
		defer log.Close()

		res, err := decodeLog(log, cfg, rt.logger, from, bestEffort)
		if err != nil {
			return err
		}
		if res.Truncated {
			rt.logger.Warn("last unit decoded best effort", "frames", len(res.Frames))
		}

		out, closeOut, err := openOutput(outPath, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := writeFrames(out, res.Frames); err != nil {
			_ = closeOut()
			return err
		}
		return closeOut()
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().String("log", "", "Unit log file (default <data-dir>/logs/default.units)")
	decodeCmd.Flags().String("out", "", "Output file (default stdout)")
	decodeCmd.Flags().Uint64("from", 0, "First frame to output")
	decodeCmd.Flags().Bool("best-effort", false, "Decode the last unit until its data runs out")
}
