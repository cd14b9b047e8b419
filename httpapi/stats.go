package httpapi

import (
	"net/http"

	"github.com/gocarina/gocsv"
	"github.com/gorilla/mux"

	"github.com/packetloom/capcore/stats"
)

func (s *Server) handleStatsSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.BuildSnapshot())
}

func (s *Server) handleStatsExportJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="capcore-stats.json"`)
	writeJSON(w, http.StatusOK, s.engine.BuildSnapshot())
}

func (s *Server) handleStatsExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="capcore-protocols.csv"`)
	if err := gocsv.Marshal(s.engine.ProtocolStatsRows(), w); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleProtocols(w http.ResponseWriter, r *http.Request) {
	n := parseIntDefault(r.URL.Query().Get("top"), -1)
	if n >= 0 {
		writeJSON(w, http.StatusOK, s.engine.GetTopProtocols(n))
		return
	}
	writeJSON(w, http.StatusOK, s.engine.GetAllProtocolStats())
}

func (s *Server) handleProtocol(w http.ResponseWriter, r *http.Request) {
	protocol := mux.Vars(r)["protocol"]
	ps, ok := s.engine.GetProtocolStats(protocol)
	if !ok {
		writeError(w, http.StatusNotFound, "no such protocol")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("address") != "" {
		es, ok := s.engine.GetEndpointStats(q.Get("address"))
		if !ok {
			writeError(w, http.StatusNotFound, "no such endpoint")
			return
		}
		writeJSON(w, http.StatusOK, es.Snapshot())
		return
	}
	n := parseIntDefault(q.Get("top"), -1)
	var all []stats.EndpointStats
	if n >= 0 {
		all = s.engine.GetTopEndpoints(n)
	} else {
		all = s.engine.GetAllEndpointStats()
	}
	snaps := make([]stats.EndpointSnapshot, 0, len(all))
	for _, es := range all {
		snaps = append(snaps, es.Snapshot())
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleRateSeries(w http.ResponseWriter, r *http.Request) {
	if protocol := r.URL.Query().Get("protocol"); protocol != "" {
		writeJSON(w, http.StatusOK, s.engine.GetPacketRateForProtocol(protocol))
		return
	}
	writeJSON(w, http.StatusOK, s.engine.GetRateSeries())
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n := parseIntDefault(q.Get("top"), -1)
	switch q.Get("direction") {
	case "src":
		writeJSON(w, http.StatusOK, s.engine.GetTopSrcPorts(n))
	case "dst":
		writeJSON(w, http.StatusOK, s.engine.GetTopDstPorts(n))
	default:
		writeJSON(w, http.StatusOK, s.engine.GetTopPorts(n))
	}
}

func (s *Server) handleSizeHistogram(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetSizeHistogram())
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetErrorSamples())
}

func (s *Server) handleErrorsByType(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetErrorsByType())
}
