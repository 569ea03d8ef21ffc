package test_utils

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/lektio/lektio/internal/relay"
)

// StartRelay runs an in-process relay on an httptest server and returns the
// ws:// endpoint of its push channel. The server stops with the test.
func StartRelay(t *testing.T) (endpoint string, hub *relay.Hub) {
	t.Helper()

	hub = relay.NewHub()
	r := mux.NewRouter()
	r.HandleFunc("/ws", relay.NewHandler(hub).HandleChannel).Methods("GET")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws", hub
}
