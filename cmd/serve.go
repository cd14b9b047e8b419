package cmd

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/packetloom/capcore/convo"
	"github.com/packetloom/capcore/httpapi"
	"github.com/packetloom/capcore/printer"
	"github.com/packetloom/capcore/stats"
	"github.com/packetloom/capcore/util"
)

var (
	serveInPath string
	serveAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Ingest a JSON-Lines packet record stream and serve the query HTTP API.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveInPath, "in", "-", "Input file, or - for stdin.")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on.")

	bindConfigFlags(serveCmd)
}

// runServe ingests every record up front, then serves the query surface
// over the resulting Tracker/Engine state. A live-tailing variant would
// feed the same tracker/engine concurrently with the HTTP server already
// listening; that's a producer-side concern outside this package's scope.
func runServe(cmd *cobra.Command, args []string) error {
	in, err := openInput(serveInPath)
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
	printer.Stdout.Infof("processed %d packet records, serving on %s\n", count, serveAddr)

	server := httpapi.NewServer(tracker, engine)
	if err := http.ListenAndServe(serveAddr, server.Handler()); err != nil {
		return util.ExitError{ExitCode: 1, Err: errors.Wrap(err, "http server exited")}
	}
	return nil
}
