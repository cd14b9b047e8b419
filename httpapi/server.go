// Package httpapi exposes a read-only HTTP query surface over a
// convo.Tracker and a stats.Engine, the network-reachable rendering of the
// "Downstream (query)" contract: nothing in the query surface mutates
// either component.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/packetloom/capcore/convo"
	"github.com/packetloom/capcore/stats"
)

// Server wires a convo.Tracker and a stats.Engine into a gorilla/mux
// router. Construct with NewServer; Handler returns the http.Handler to
// mount (directly, or behind your own middleware chain).
type Server struct {
	tracker *convo.Tracker
	engine  *stats.Engine
	router  *mux.Router
}

// NewServer builds a Server and registers its routes.
func NewServer(tracker *convo.Tracker, engine *stats.Engine) *Server {
	s := &Server{tracker: tracker, engine: engine, router: mux.NewRouter()}
	s.routes()
	return s
}

// Handler returns the http.Handler to mount.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc("/conversations", s.handleConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", s.handleConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/packets", s.handleConversationPackets).Methods(http.MethodGet)

	r.HandleFunc("/streams", s.handleStreams).Methods(http.MethodGet)
	r.HandleFunc("/streams/{index}", s.handleStream).Methods(http.MethodGet)

	r.HandleFunc("/stats", s.handleStatsSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/stats/export.json", s.handleStatsExportJSON).Methods(http.MethodGet)
	r.HandleFunc("/stats/export.csv", s.handleStatsExportCSV).Methods(http.MethodGet)
	r.HandleFunc("/stats/protocols", s.handleProtocols).Methods(http.MethodGet)
	r.HandleFunc("/stats/protocols/{protocol}", s.handleProtocol).Methods(http.MethodGet)
	r.HandleFunc("/stats/endpoints", s.handleEndpoints).Methods(http.MethodGet)
	r.HandleFunc("/stats/rate", s.handleRateSeries).Methods(http.MethodGet)
	r.HandleFunc("/stats/ports", s.handlePorts).Methods(http.MethodGet)
	r.HandleFunc("/stats/size-histogram", s.handleSizeHistogram).Methods(http.MethodGet)
	r.HandleFunc("/stats/errors", s.handleErrors).Methods(http.MethodGet)
	r.HandleFunc("/stats/errors/by-type", s.handleErrorsByType).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	return uint16(v), err
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
