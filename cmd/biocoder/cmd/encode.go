package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/biocoder/pkg/store"
)

func unitLogPath(cmd *cobra.Command, rt *runtime) string {
	if path, _ := cmd.Flags().GetString("log"); path != "" {
		return path
	}
	return rt.config.UnitLogPath("default")
}

func openUnitLog(cmd *cobra.Command, rt *runtime) (*store.UnitLog, error) {
	path := unitLogPath(cmd, rt)
	log, res, err := store.OpenUnitLog(store.UnitLogConfig{FilePath: path})
	if err != nil {
		return nil, err
	}
	if res.BytesTruncated > 0 {
		rt.logger.Warn("recovered unit log", "path", path,
			"units", res.UnitsValidated, "bytes_truncated", res.BytesTruncated)
	}
	return log, nil
}

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode JSON-lines frames into a unit log",
	Long: `Encode frames, one JSON array of symbols per line, and append one coded
unit per frame to a unit log. An existing log is continued: its units are
replayed so the new frames are coded with the model they left behind.

Examples:
  biocoder encode --in frames.jsonl --log ./data/logs/cam.units
  cat frames.jsonl | biocoder encode`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := runtimeFrom(cmd)
		inPath, _ := cmd.Flags().GetString("in")

		cfg, err := rt.config.CoderConfig()
		if err != nil {
			return err
		}

		in, closeIn, err := openInput(inPath, cmd.InOrStdin())
		if err != nil {
			return err
		}
		defer closeIn()

		frames, err := readFrames(in)
		if err != nil {
			return err
		}

		log, err := openUnitLog(cmd, rt)
		if err != nil {
			return err
		}
		defer log.Close()

		stats, err := appendFrames(log, cfg, rt.logger, frames)
		if err != nil {
			return err
		}

		var symbols, eliminated, bytes int
		for _, s := range stats {
			symbols += s.Symbols
			eliminated += s.Eliminated
			bytes += s.Bytes
		}
		rt.logger.Info("encoded frames", "frames", len(stats), "symbols", symbols, "bytes", bytes)
		cmd.Printf("Encoded %d frames (%d symbols, %d eliminated) into %d bytes; log holds %d units\n",
			len(stats), symbols, eliminated, bytes, log.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().String("in", "", "Input file of JSON-lines frames (default stdin)")
	encodeCmd.Flags().String("log", "", "Unit log file (default <data-dir>/logs/default.units)")
}
