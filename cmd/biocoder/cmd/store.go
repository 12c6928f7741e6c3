package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/biocoder/pkg/storage"
)

// openStreams opens the stream store of the data directory through the container
func openStreams(rt *runtime) (*storage.StreamCoder, error) {
	if container == nil {
		return nil, fmt.Errorf("dependency container not initialized")
	}
	st, err := container.GetStoreFactory().OpenStreamStore(rt.config.StorePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open stream store: %w", err)
	}
	return storage.NewStreamCoder(st, rt.logger), nil
}

func parseStreamID(s string) (ksuid.KSUID, error) {
	id, err := ksuid.Parse(s)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("invalid stream id %q: %w", s, err)
	}
	return id, nil
}

// storeCmd represents the store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage coded streams in the stream store",
	Long: `Create, extend, read and delete coded streams kept in the stream store
under the data directory. A stream is created with the current coder section
of the configuration and keeps it for its whole life.`,
}

var storeCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := runtimeFrom(cmd)
		cfg, err := rt.config.CoderConfig()
		if err != nil {
			return err
		}

		sc, err := openStreams(rt)
		if err != nil {
			return err
		}
		defer sc.Store().Close()

		st, err := sc.Store().CreateStream(args[0], cfg)
		if err != nil {
			return err
		}
		cmd.Printf("Created stream %s (%s)\n", st.ID, st.Name)
		return nil
	},
}

var storePutCmd = &cobra.Command{
	Use:   "put <id>",
	Short: "Encode JSON-lines frames onto the end of a stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := runtimeFrom(cmd)
		inPath, _ := cmd.Flags().GetString("in")

		id, err := parseStreamID(args[0])
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

		sc, err := openStreams(rt)
		if err != nil {
			return err
		}
		defer sc.Store().Close()

		stats, err := sc.AppendFrames(id, frames)
		if err != nil {
			return err
		}

		bytes := 0
		for _, s := range stats {
			bytes += s.Bytes
		}
		cmd.Printf("Appended %d frames (%d bytes) to %s\n", len(stats), bytes, id)
		return nil
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Decode the frames of a stream as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := runtimeFrom(cmd)
		from, _ := cmd.Flags().GetUint64("from")
		outPath, _ := cmd.Flags().GetString("out")

		id, err := parseStreamID(args[0])
		if err != nil {
			return err
		}

		sc, err := openStreams(rt)
		if err != nil {
			return err
		}
		defer sc.Store().Close()

		frames, err := sc.ReadFrames(id, from)
		if err != nil {
			return err
		}

		out, closeOut, err := openOutput(outPath, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := writeFrames(out, frames); err != nil {
			_ = closeOut()
			return err
		}
		return closeOut()
	},
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List streams",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := openStreams(runtimeFrom(cmd))
		if err != nil {
			return err
		}
		defer sc.Store().Close()

		streams, err := sc.Store().ListStreams()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tUNITS\tSYMBOLS\tBYTES\tCREATED")
		for _, st := range streams {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
				st.ID, st.Name, st.Units, st.Symbols, st.Bytes, st.Created.UTC().Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stream and its units",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseStreamID(args[0])
		if err != nil {
			return err
		}

		sc, err := openStreams(runtimeFrom(cmd))
		if err != nil {
			return err
		}
		defer sc.Store().Close()

		if err := sc.DeleteStream(id); err != nil {
			return err
		}
		cmd.Printf("Deleted stream %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeCreateCmd, storePutCmd, storeGetCmd, storeListCmd, storeDeleteCmd)

	storePutCmd.Flags().String("in", "", "Input file of JSON-lines frames (default stdin)")
	storeGetCmd.Flags().Uint64("from", 0, "First frame to output")
	storeGetCmd.Flags().String("out", "", "Output file (default stdout)")
}
