/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"
)

// lobbySummary is the JSON shape returned by the lobby listing/detail
// endpoints, grounded on router.py's lobby response model.
type lobbySummary struct {
	ID          uuid.UUID `json:"lobby_id"`
	JoinCode    string    `json:"join_code"`
	PlayerCount int       `json:"player_count"`
	Joinable    bool      `json:"joinable"`
	State       string    `json:"state"`
}

func summarize(l *Lobby) lobbySummary {
	l.mu.Lock()
	state := l.state
	l.mu.Unlock()

	return lobbySummary{
		ID:          l.ID(),
		JoinCode:    l.JoinCode(),
		PlayerCount: l.PlayerCount(),
		Joinable:    l.IsJoinable(),
		State:       state.String(),
	}
}

func writeJSON(w http.ResponseWriter, cfg *Config, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serveCreateLobby implements POST /lobby.
func serveCreateLobby(cfg *Config, mgr *LobbyManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		lobby := mgr.CreateLobby()

		writeJSON(w, cfg, http.StatusCreated, summarize(lobby))

		logf(cfg, "SERVE: created lobby %s to %s in %s", lobby.ID(), realIP(r), time.Since(startTime).Round(time.Microsecond))
	}
}

// serveListLobbies implements GET /lobby, grounded on router.py's
// list_lobbies.
func serveListLobbies(cfg *Config, mgr *LobbyManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		lobbies := mgr.List()
		out := make([]lobbySummary, 0, len(lobbies))
		for _, l := range lobbies {
			out = append(out, summarize(l))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].JoinCode < out[j].JoinCode })

		writeJSON(w, cfg, http.StatusOK, out)
	}
}

// serveLobbyDetail implements GET /lobby/{id}.
func serveLobbyDetail(cfg *Config, mgr *LobbyManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		lobby, ok := mgr.Resolve(p.ByName("id"))
		if !ok {
			writeJSON(w, cfg, http.StatusNotFound, ErrorPayload{Type: ErrProtocolFlow, Message: "lobby not found"})
			return
		}
		writeJSON(w, cfg, http.StatusOK, summarize(lobby))
	}
}

// serveLobbyQR implements GET /lobby/{id}/qr, encoding the lobby's join
// URL as a PNG QR code.
func serveLobbyQR(cfg *Config, mgr *LobbyManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		lobby, ok := mgr.Resolve(p.ByName("id"))
		if !ok {
			writeJSON(w, cfg, http.StatusNotFound, ErrorPayload{Type: ErrProtocolFlow, Message: "lobby not found"})
			return
		}

		joinURL := cfg.scheme() + "://" + r.Host + cfg.prefix + "/lobby/" + lobby.JoinCode() + "/join"

		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			errs <- err
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

// serveLobbyJoin implements GET /lobby/{idOrCode}/join, upgrading to a
// WebSocket and routing the new connection into Join or Reconnect
// depending on the optional session_id query parameter. Close codes follow
// spec.md §6.
func serveLobbyJoin(cfg *Config, mgr *LobbyManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		lobby, ok := mgr.Resolve(p.ByName("id"))
		if !ok {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			wrapped := NewConnection(conn)
			wrapped.Close(CloseLobbyNotFound, "lobby not found")
			return
		}

		if sessionParam := r.URL.Query().Get("session_id"); sessionParam != "" {
			sessionID, err := uuid.Parse(sessionParam)
			if err == nil {
				conn, upErr := upgrader.Upgrade(w, r, nil)
				if upErr != nil {
					return
				}
				wrapped := NewConnection(conn)
				if _, reconnected := lobby.Reconnect(sessionID, wrapped); reconnected {
					return
				}
				wrapped.Close(CloseSessionExpired, "session expired")
				return
			}
		}

		if !lobby.IsJoinable() {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			wrapped := NewConnection(conn)
			wrapped.Close(CloseLobbyNotJoinable, "lobby not joinable")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		lobby.Join(NewConnection(conn))
	}
}

func registerLobbySurface(cfg *Config, mgr *LobbyManager, prefix string, mux *httprouter.Router, errs chan<- error) {
	mux.POST(prefix+"/lobby", serveCreateLobby(cfg, mgr))
	mux.GET(prefix+"/lobby", serveListLobbies(cfg, mgr))
	mux.GET(prefix+"/lobby/:id", serveLobbyDetail(cfg, mgr))
	mux.GET(prefix+"/lobby/:id/qr", serveLobbyQR(cfg, mgr, errs))
	mux.GET(prefix+"/lobby/:id/join", serveLobbyJoin(cfg, mgr))
}
