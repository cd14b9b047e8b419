package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.GetAllTcpStreams())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	index, err := parseUint32(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid stream index")
		return
	}
	stream, ok := s.tracker.GetTcpStream(index)
	if !ok {
		writeError(w, http.StatusNotFound, "no such stream")
		return
	}
	writeJSON(w, http.StatusOK, stream)
}
