package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/packetloom/capcore/convo"
	"github.com/packetloom/capcore/packet"
	"github.com/packetloom/capcore/printer"
	"github.com/packetloom/capcore/stats"
	"github.com/packetloom/capcore/util"
)

var (
	ingestInPath       string
	ingestStatsJSONOut string
	ingestStatsCSVOut  string
	ingestStreamOut    string
	ingestStreamIndex  uint32
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process a JSON-Lines packet record stream and print a summary.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestInPath, "in", "-", "Input file, or - for stdin.")
	ingestCmd.Flags().StringVar(&ingestStatsJSONOut, "stats-json", "", "Write the full statistics snapshot to this path as JSON.")
	ingestCmd.Flags().StringVar(&ingestStatsCSVOut, "stats-csv", "", "Write the per-protocol statistics table to this path as CSV.")
	ingestCmd.Flags().StringVar(&ingestStreamOut, "export-stream", "", "Write one TCP stream's reassembled bytes to this path.")
	ingestCmd.Flags().Uint32Var(&ingestStreamIndex, "stream-index", 0, "Stream index to export with --export-stream.")

	bindConfigFlags(ingestCmd)
}

// bindConfigFlags registers the convo/stats runtime-mutable settings as
// CLI flags, bound to the same viper keys convo.DefaultConfig and
// stats.DefaultConfig read from.
func bindConfigFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("max-conversations", viper.GetInt64(convo.MaxConversationsKey), "Cap-eviction threshold for tracked conversations.")
	viper.BindPFlag(convo.MaxConversationsKey, cmd.Flags().Lookup("max-conversations"))

	cmd.Flags().Int64("conversation-timeout-seconds", viper.GetInt64(convo.ConversationTimeoutKey), "Age, in seconds, after which an idle conversation is evicted. 0 disables.")
	viper.BindPFlag(convo.ConversationTimeoutKey, cmd.Flags().Lookup("conversation-timeout-seconds"))

	cmd.Flags().Bool("enable-stream-reassembly", viper.GetBool(convo.EnableStreamReassemblyKey), "Track per-conversation TCP stream reassembly state.")
	viper.BindPFlag(convo.EnableStreamReassemblyKey, cmd.Flags().Lookup("enable-stream-reassembly"))

	cmd.Flags().Int64("max-stream-size-bytes", viper.GetInt64(convo.MaxStreamSizeKey), "Per-direction cap on retained reassembled stream bytes.")
	viper.BindPFlag(convo.MaxStreamSizeKey, cmd.Flags().Lookup("max-stream-size-bytes"))

	cmd.Flags().Int64("stats-max-endpoints", viper.GetInt64(stats.MaxEndpointsKey), "Cap-eviction threshold for tracked endpoints.")
	viper.BindPFlag(stats.MaxEndpointsKey, cmd.Flags().Lookup("stats-max-endpoints"))

	cmd.Flags().Bool("stats-enable-prometheus", viper.GetBool(stats.EnablePrometheusKey), "Register Prometheus collectors for the statistics engine.")
	viper.BindPFlag(stats.EnablePrometheusKey, cmd.Flags().Lookup("stats-enable-prometheus"))
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	return f, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	in, err := openInput(ingestInPath)
	if err != nil {
		return util.ExitError{ExitCode: 1, Err: err}
	}
	defer in.Close()

	tracker := convo.NewTracker(convo.DefaultConfig())
	engine := stats.NewEngine(stats.DefaultConfig())

	count, err := feed(in, tracker, engine)
	if err != nil {
		return util.ExitError{ExitCode: 1, Err: err}
	}
	printer.Stdout.Infof("processed %d packet records\n", count)

	if ingestStatsJSONOut != "" {
		if err := engine.ExportJSON(ingestStatsJSONOut); err != nil {
			return util.ExitError{ExitCode: 1, Err: errors.Wrap(err, "failed to export JSON statistics")}
		}
	}
	if ingestStatsCSVOut != "" {
		if err := engine.ExportCSV(ingestStatsCSVOut); err != nil {
			return util.ExitError{ExitCode: 1, Err: errors.Wrap(err, "failed to export CSV statistics")}
		}
	}
	if ingestStreamOut != "" {
		if err := tracker.ExportStreamRaw(ingestStreamIndex, ingestStreamOut); err != nil {
			return util.ExitError{ExitCode: 1, Err: errors.Wrap(err, "failed to export stream")}
		}
	}

	return nil
}

// feed decodes every record in r and folds it into both tracker and
// engine, returning the number of records processed.
func feed(r io.Reader, tracker *convo.Tracker, engine *stats.Engine) (uint64, error) {
	reader := packet.NewReader(r)
	var count uint64
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}

		tracker.AddPacket(rec)
		engine.AddPacket(rec)
		engine.SetActiveConversations(tracker.Count())
		count++
	}
}
