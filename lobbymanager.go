/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LobbyManager owns every live Lobby, mints join codes, and periodically
// reaps stale ones. Grounded on celebrity.go's GameManager/reaperLoop,
// generalized from a single fixed game type to arbitrary lobbies, and on
// original_source/ld51_server/game/lobby_manager.py for the GC thresholds.
type LobbyManager struct {
	mu         sync.RWMutex
	lobbies    map[uuid.UUID]*Lobby
	byJoinCode map[string]uuid.UUID
	mint       *CodeMint
	cfg        *Config
}

func NewLobbyManager(cfg *Config) *LobbyManager {
	m := &LobbyManager{
		lobbies:    make(map[uuid.UUID]*Lobby),
		byJoinCode: make(map[string]uuid.UUID),
		mint:       NewCodeMint(cfg.joinCodeMinLen),
		cfg:        cfg,
	}
	return m
}

// CreateLobby mints a fresh lobby with a unique join code.
func (m *LobbyManager) CreateLobby() *Lobby {
	m.mu.Lock()
	defer m.mu.Unlock()

	var code string
	for {
		code = m.mint.Generate()
		if _, taken := m.byJoinCode[code]; !taken {
			break
		}
		m.mint.BumpLen()
	}

	id := uuid.New()
	lobby := NewLobby(id, code, m.cfg)
	m.lobbies[id] = lobby
	m.byJoinCode[code] = id

	logf(m.cfg, "lobbymanager: created lobby %s (code=%s)", id, code)

	return lobby
}

func (m *LobbyManager) GetLobby(id uuid.UUID) (*Lobby, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lobbies[id]
	return l, ok
}

func (m *LobbyManager) GetLobbyByCode(code string) (*Lobby, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byJoinCode[strings.ToUpper(code)]
	if !ok {
		return nil, false
	}
	l, ok := m.lobbies[id]
	return l, ok
}

// Resolve accepts either a lobby id or a join code.
func (m *LobbyManager) Resolve(idOrCode string) (*Lobby, bool) {
	if id, err := uuid.Parse(idOrCode); err == nil {
		return m.GetLobby(id)
	}
	return m.GetLobbyByCode(idOrCode)
}

// List returns every lobby still accepting joins, for the lobby listing
// endpoint (grounded on router.py's list_lobbies).
func (m *LobbyManager) List() []*Lobby {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Lobby, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		if l.IsJoinable() {
			out = append(out, l)
		}
	}
	return out
}

func (m *LobbyManager) removeLocked(l *Lobby) {
	delete(m.lobbies, l.id)
	delete(m.byJoinCode, l.joinCode)
}

// gc destroys lobbies that are either empty and past MIN_LOBBY_LIFESPAN, or
// any age and past MAX_LOBBY_LIFESPAN, mirroring lobby_manager.py's
// destroy condition.
func (m *LobbyManager) gc() {
	now := time.Now()

	m.mu.Lock()
	var stale []*Lobby
	for _, l := range m.lobbies {
		age := now.Sub(l.CreatedAt())
		empty := l.PlayerCount() == 0
		if age >= m.cfg.maxLobbyLifespan || (empty && age >= m.cfg.minLobbyLifespan) {
			stale = append(stale, l)
		}
	}
	for _, l := range stale {
		m.removeLocked(l)
	}
	if len(stale) > 0 {
		m.mint.ResetLen()
	}
	m.mu.Unlock()

	for _, l := range stale {
		logf(m.cfg, "lobbymanager: reaping lobby %s", l.ID())
		l.Shutdown()
	}
}

// Run starts the background GC sweep; it returns when ctx is cancelled.
func (m *LobbyManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.gc()
		}
	}
}

// ShutdownAll tears down every live lobby, used on server shutdown.
func (m *LobbyManager) ShutdownAll() {
	m.mu.Lock()
	lobbies := make([]*Lobby, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		lobbies = append(lobbies, l)
	}
	m.lobbies = make(map[uuid.UUID]*Lobby)
	m.byJoinCode = make(map[string]uuid.UUID)
	m.mu.Unlock()

	for _, l := range lobbies {
		l.Shutdown()
	}
}
