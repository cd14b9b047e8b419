package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetloom/capcore/convo"
	"github.com/packetloom/capcore/packet"
	"github.com/packetloom/capcore/stats"
)

func TestServer_ConversationsRoundTrip(t *testing.T) {
	tracker := convo.NewTracker(convo.DefaultConfig())
	engine := stats.NewEngine(stats.DefaultConfig())

	now := time.Now()
	p := &packet.Record{
		Number: 1, Timestamp: now, Length: 64, Protocol: "UDP",
		SrcAddr: "10.0.0.1", SrcPort: 5000, DstAddr: "10.0.0.2", DstPort: 53,
	}
	tracker.AddPacket(p)
	engine.AddPacket(p)

	srv := NewServer(tracker, engine)

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "10.0.0.1")
}

func TestServer_UnknownConversation404s(t *testing.T) {
	tracker := convo.NewTracker(convo.DefaultConfig())
	engine := stats.NewEngine(stats.DefaultConfig())
	srv := NewServer(tracker, engine)

	req := httptest.NewRequest(http.MethodGet, "/conversations/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StatsSnapshot(t *testing.T) {
	tracker := convo.NewTracker(convo.DefaultConfig())
	engine := stats.NewEngine(stats.DefaultConfig())
	engine.AddPacket(&packet.Record{Number: 1, Timestamp: time.Now(), Length: 10, Protocol: "TCP", SrcAddr: "a", DstAddr: "b"})
	srv := NewServer(tracker, engine)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "totals")
}
