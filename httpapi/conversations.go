package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("protocol") != "":
		writeJSON(w, http.StatusOK, s.tracker.GetConversationsByProtocol(q.Get("protocol")))
	case q.Get("address") != "":
		writeJSON(w, http.StatusOK, s.tracker.FilterConversations(q.Get("address")))
	case q.Get("port") != "":
		port, err := parseUint16(q.Get("port"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid port")
			return
		}
		writeJSON(w, http.StatusOK, s.tracker.FilterConversationsByPort(port))
	case q.Get("since") != "":
		since, err := time.Parse(time.RFC3339, q.Get("since"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since, expected RFC3339")
			return
		}
		writeJSON(w, http.StatusOK, s.tracker.GetActiveConversations(since))
	case q.Get("top") == "packets":
		writeJSON(w, http.StatusOK, s.tracker.GetTopConversationsByPackets(parseIntDefault(q.Get("n"), 10)))
	case q.Get("top") == "bytes":
		writeJSON(w, http.StatusOK, s.tracker.GetTopConversationsByBytes(parseIntDefault(q.Get("n"), 10)))
	default:
		writeJSON(w, http.StatusOK, s.tracker.GetAllConversations())
	}
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, ok := s.tracker.GetConversation(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no such conversation")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleConversationPackets(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	packets, ok := s.tracker.GetConversationPackets(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no such conversation")
		return
	}
	writeJSON(w, http.StatusOK, packets)
}
