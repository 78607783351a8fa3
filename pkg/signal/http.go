package signal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/droidstream/signal/pkg/api"
	"github.com/droidstream/signal/pkg/auth"
	"github.com/droidstream/signal/pkg/network/websocket"
	"github.com/goccy/go-json"
)

// Handler exposes the broker endpoints: the websocket entry point plus
// the health and stats probes.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleConnection)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/stats", h.handleStats)
	return mux
}

func (h *Hub) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Stats()); err != nil {
		h.log.Error().Err(err).Msg("couldn't write stats")
	}
}

func (h *Hub) handleConnection(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.URL.Query().Get("role") {
	case "worker":
		h.serveWorker(w, r)
	default:
		h.serveClient(w, r)
	}
}

// serveClient upgrades a browser connection, authorizes it, and pumps its
// messages into the hub until the socket dies.
func (h *Hub) serveClient(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.NewServer(w, r)
	if err != nil {
		h.log.Error().Err(err).Msg("client upgrade failed")
		return
	}

	usr, err := h.auth.Authorize(r.Context(), clientToken(r))
	if err != nil {
		code, msg := api.AuthFailed, "Invalid or expired token"
		switch {
		case errors.Is(err, auth.ErrNoSubscription):
			code, msg = api.NoSubscription, "An active subscription is required to play"
		case errors.Is(err, auth.ErrAuthFailed):
		default:
			h.log.Error().Err(err).Msg("auth service failure")
			msg = "Authentication is temporarily unavailable"
		}
		if data, err := api.Encode(api.NewError(code, msg)); err == nil {
			conn.Write(data)
		}
		conn.Close()
		return
	}

	// the socket may have died while authorization was in flight
	select {
	case <-conn.Done:
		return
	default:
	}

	c := h.ConnectClient(conn, usr)
	conn.OnMessage = func(data []byte, _ error) { h.HandleClientData(conn, data) }
	conn.Listen()
	<-conn.Done
	h.DisconnectClient(c, "connection_closed")
}

// serveWorker upgrades a worker connection. Workers live on a private
// network and carry no tokens; they stay unusable until they register.
func (h *Hub) serveWorker(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.NewServer(w, r)
	if err != nil {
		h.log.Error().Err(err).Msg("worker upgrade failed")
		return
	}
	wk := h.ConnectWorker(conn)
	conn.OnMessage = func(data []byte, _ error) { h.HandleWorkerData(conn, data) }
	conn.Listen()
	<-conn.Done
	h.DisconnectWorker(wk, "connection_closed")
}

// clientToken reads the bearer token from the query string or, as browsers
// can't set headers on websocket requests, from the Authorization header
// for non-browser clients.
func clientToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
