/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/binary"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LobbyState is one of the per-lobby finite-state-machine states.
type LobbyState int

const (
	StateEmpty LobbyState = iota
	StateLobby
	StateGameRoundStart
	StateGameGetPlayerMoves
	StateGameWaitPlayerReady
	StateShutdown
)

func (s LobbyState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLobby:
		return "lobby"
	case StateGameRoundStart:
		return "game_round_start"
	case StateGameGetPlayerMoves:
		return "game_get_player_moves"
	case StateGameWaitPlayerReady:
		return "game_wait_player_ready"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Player is one connected (or reconnect-pending) lobby participant.
type Player struct {
	ID        uuid.UUID
	Number    int
	SessionID uuid.UUID

	conn          *Connection
	cancelReceive context.CancelFunc
}

func (p *Player) info() PlayerInfo {
	return PlayerInfo{ID: p.ID, Number: p.Number}
}

// Lobby is an in-memory session that owns one game instance. All mutations
// of its fields are guarded by mu, the mutex-based equivalent to an actor
// loop that spec.md §5 explicitly permits for OS-thread implementations;
// the round loop and every player's receive task run on their own
// goroutines and serialize through this lock, releasing it before any
// blocking operation (collector waits, network sends) the way celebrity.go
// releases h.mu before sending on a possibly-full client.send channel.
type Lobby struct {
	mu sync.Mutex

	id        uuid.UUID
	joinCode  string
	createdAt time.Time
	cfg       *Config

	state        LobbyState
	hostPlayerID *uuid.UUID
	playersByID  map[uuid.UUID]*Player

	board       *Board
	roundNumber int

	movesCollector *Collector[[]PlayerMove]
	readyCollector *Collector[struct{}]

	cancelGameLoop context.CancelFunc
}

func NewLobby(id uuid.UUID, joinCode string, cfg *Config) *Lobby {
	return &Lobby{
		id:          id,
		joinCode:    joinCode,
		createdAt:   time.Now(),
		cfg:         cfg,
		state:       StateEmpty,
		playersByID: make(map[uuid.UUID]*Player),
	}
}

func (l *Lobby) ID() uuid.UUID { return l.id }

func (l *Lobby) JoinCode() string { return l.joinCode }

func (l *Lobby) CreatedAt() time.Time { return l.createdAt }

// IsJoinable reports whether new connections may attach to this lobby.
func (l *Lobby) IsJoinable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == StateEmpty || l.state == StateLobby
}

func (l *Lobby) PlayerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.playersByID)
}

func (l *Lobby) lowestUnusedNumberLocked() int {
	used := make(map[int]struct{}, len(l.playersByID))
	for _, p := range l.playersByID {
		used[p.Number] = struct{}{}
	}
	for n := 1; ; n++ {
		if _, ok := used[n]; !ok {
			return n
		}
	}
}

func (l *Lobby) sortedPlayersLocked() []*Player {
	out := make([]*Player, 0, len(l.playersByID))
	for _, p := range l.playersByID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Join accepts a fresh channel and onboards a new Player, per spec.md
// §4.G's Join operation.
func (l *Lobby) Join(conn *Connection) {
	l.mu.Lock()

	player := &Player{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		Number:    l.lowestUnusedNumberLocked(),
		conn:      conn,
	}

	others := make([]PlayerInfo, 0, len(l.playersByID))
	for _, p := range l.sortedPlayersLocked() {
		others = append(others, p.info())
	}

	isHost := l.hostPlayerID == nil
	if isHost {
		hostID := player.ID
		l.hostPlayerID = &hostID
		l.state = StateLobby
	}

	l.playersByID[player.ID] = player

	ctx, cancel := context.WithCancel(context.Background())
	player.cancelReceive = cancel

	l.mu.Unlock()

	logf(l.cfg, "lobby %s: player %s joined (host=%v)", l.id, player.ID, isHost)

	_ = player.conn.Send(MsgServerHello, ServerHelloPayload{
		SessionID:    player.SessionID,
		IsHost:       isHost,
		Player:       player.info(),
		OtherPlayers: others,
	})

	l.broadcastExcept(player.ID, MsgPlayerJoined, PlayerJoinedPayload{Player: player.info(), Reconnect: false})

	go l.receiveLoop(ctx, player)
}

// Reconnect looks up a player by session id and, on a hit, cancels its
// previous receive task, installs the new channel, and spawns a
// replacement task.
func (l *Lobby) Reconnect(sessionID uuid.UUID, conn *Connection) (*Player, bool) {
	l.mu.Lock()

	var found *Player
	for _, p := range l.playersByID {
		if p.SessionID == sessionID {
			found = p
			break
		}
	}
	if found == nil {
		l.mu.Unlock()
		return nil, false
	}

	if found.cancelReceive != nil {
		found.cancelReceive()
	}
	found.conn = conn
	ctx, cancel := context.WithCancel(context.Background())
	found.cancelReceive = cancel

	l.mu.Unlock()

	logf(l.cfg, "lobby %s: player %s reconnected", l.id, found.ID)

	l.broadcastExcept(found.ID, MsgPlayerJoined, PlayerJoinedPayload{Player: found.info(), Reconnect: true})

	go l.receiveLoop(ctx, found)

	return found, true
}

func (l *Lobby) receiveLoop(ctx context.Context, p *Player) {
	for {
		msgType, payload, err := p.conn.Receive()
		if err != nil {
			if isProtocolValidationErr(err) {
				p.conn.Close(CloseInvalidMessage, "invalid message")
				return
			}
			break
		}
		l.dispatch(p, msgType, payload)
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	timer := time.NewTimer(l.cfg.playerReconnect)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		l.playerLeave(p.ID)
	}
}

func (l *Lobby) playerLeave(playerID uuid.UUID) {
	l.mu.Lock()
	player, ok := l.playersByID[playerID]
	if !ok {
		l.mu.Unlock()
		return
	}
	delete(l.playersByID, playerID)

	if l.hostPlayerID != nil && *l.hostPlayerID == playerID {
		l.hostPlayerID = nil
		if next := l.sortedPlayersLocked(); len(next) > 0 {
			newHost := next[0].ID
			l.hostPlayerID = &newHost
		}
	}

	moves := l.movesCollector
	ready := l.readyCollector
	empty := len(l.playersByID) == 0 && l.state != StateShutdown
	if empty {
		l.state = StateEmpty
	}
	l.mu.Unlock()

	logf(l.cfg, "lobby %s: player %s left", l.id, playerID)

	if moves != nil {
		moves.RemovePlayer(playerID)
	}
	if ready != nil {
		ready.RemovePlayer(playerID)
	}

	l.broadcastExcept(playerID, MsgPlayerLeft, PlayerLeftPayload{Player: player.info()})
}

// broadcastExcept fans a message out to every connected player but
// exclude, isolating individual send failures from one another.
func (l *Lobby) broadcastExcept(exclude uuid.UUID, msgType string, payload any) {
	l.mu.Lock()
	recipients := make([]*Player, 0, len(l.playersByID))
	for id, p := range l.playersByID {
		if id == exclude {
			continue
		}
		recipients = append(recipients, p)
	}
	l.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range recipients {
		wg.Add(1)
		go func(p *Player) {
			defer wg.Done()
			if !p.conn.SendSilent(msgType, payload) {
				logf(l.cfg, "lobby %s: broadcast to player %s failed", l.id, p.ID)
			}
		}(p)
	}
	wg.Wait()
}

func (l *Lobby) broadcast(msgType string, payload any) {
	l.broadcastExcept(uuid.Nil, msgType, payload)
}

func (l *Lobby) replyError(p *Player, payload ErrorPayload) {
	_ = p.conn.Send(MsgError, payload)
}

func (l *Lobby) dispatch(p *Player, msgType string, payload []byte) {
	switch msgType {
	case MsgHostStartGame:
		l.handleHostStartGame(p, payload)
	case MsgPlayerMoves:
		l.handlePlayerMoves(p, payload)
	case MsgReadyForNextRound:
		l.handleReadyForNextRound(p)
	default:
		l.replyError(p, errUnhandledMessage())
	}
}

func (l *Lobby) handleHostStartGame(p *Player, raw []byte) {
	var payload HostStartGamePayload
	if err := unmarshalPayload(raw, &payload); err != nil {
		l.replyError(p, errUnhandledMessage())
		return
	}

	l.mu.Lock()
	isHost := l.hostPlayerID != nil && *l.hostPlayerID == p.ID
	wrongState := l.state != StateLobby
	if !isHost || wrongState {
		l.mu.Unlock()
		if !isHost {
			l.replyError(p, errMustBeHost())
		} else {
			l.replyError(p, errInvalidLobbyState())
		}
		return
	}

	platform := payload.Platform.toPlatform()
	board := NewBoard(platform)

	players := l.sortedPlayersLocked()
	playerIDs := make([]uuid.UUID, 0, len(players))
	playerInfos := make([]PlayerInfo, 0, len(players))
	for _, pl := range players {
		playerIDs = append(playerIDs, pl.ID)
		playerInfos = append(playerInfos, pl.info())
	}

	idSeed := binary.BigEndian.Uint64(l.id[:8])
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), idSeed))
	board.PlacePieces(rng, playerIDs, l.cfg.piecesPerPlayer)

	l.board = board
	l.state = StateGameRoundStart
	l.mu.Unlock()

	l.broadcast(MsgServerStartGame, ServerStartGamePayload{
		Platform:     platformToWire(platform),
		Players:      playerInfos,
		Pieces:       piecesToWire(board.Pieces()),
		RoundStartIn: l.cfg.preGameDuration.Seconds(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.cancelGameLoop = cancel
	l.mu.Unlock()

	go func() {
		time.Sleep(l.cfg.preGameDuration)
		l.runGameLoop(ctx)
	}()
}

func (l *Lobby) handlePlayerMoves(p *Player, raw []byte) {
	var payload PlayerMovesPayload
	if err := unmarshalPayload(raw, &payload); err != nil {
		l.replyError(p, errUnhandledMessage())
		return
	}

	l.mu.Lock()
	if l.state != StateGameGetPlayerMoves {
		l.mu.Unlock()
		l.replyError(p, errInvalidLobbyState())
		return
	}
	board := l.board
	collector := l.movesCollector
	l.mu.Unlock()

	if _, err := board.Validate(p.ID, payload.Moves); err != nil {
		if illegal, ok := err.(*IllegalMoveError); ok {
			l.replyError(p, errIllegalMove(illegal.PieceID, illegal.Reason))
			return
		}
		l.replyError(p, errUnhandledMessage())
		return
	}

	if collector != nil {
		collector.Collect(p.ID, payload.Moves)
	}
}

func (l *Lobby) handleReadyForNextRound(p *Player) {
	l.mu.Lock()
	if l.state != StateGameWaitPlayerReady {
		l.mu.Unlock()
		l.replyError(p, errInvalidLobbyState())
		return
	}
	collector := l.readyCollector
	l.mu.Unlock()

	if collector != nil {
		collector.Collect(p.ID, struct{}{})
	}
}

// runGameLoop is the per-lobby game-loop task: collect moves -> resolve ->
// broadcast result -> wait ready, repeating until game over.
func (l *Lobby) runGameLoop(ctx context.Context) {
	roundNumber := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		roundNumber++

		l.mu.Lock()
		l.state = StateGameGetPlayerMoves
		l.roundNumber = roundNumber
		board := l.board
		players := l.sortedPlayersLocked()
		playerIDs := make([]uuid.UUID, 0, len(players))
		for _, p := range players {
			playerIDs = append(playerIDs, p.ID)
		}
		collector := NewCollector[[]PlayerMove](playerIDs)
		l.movesCollector = collector
		l.mu.Unlock()

		l.broadcast(MsgRoundStart, RoundStartPayload{
			RoundNumber:   roundNumber,
			RoundDuration: l.cfg.roundDuration.Seconds(),
			BoardState:    piecesToWire(board.Pieces()),
		})

		result := collector.WaitWithGrace(l.cfg.roundDuration, l.cfg.roundGrace)

		for _, missing := range result.Missing {
			if p, ok := l.playerByID(missing); ok {
				p.conn.Close(CloseNoMovesSubmitted, "no moves submitted")
			}
		}

		var allMoves []PlayerMove
		submitters := make([]uuid.UUID, 0, len(result.Collected))
		for id := range result.Collected {
			submitters = append(submitters, id)
		}
		sort.Slice(submitters, func(i, j int) bool { return submitters[i].String() < submitters[j].String() })
		for _, id := range submitters {
			allMoves = append(allMoves, result.Collected[id]...)
		}

		timeline := board.PerformMoves(allMoves)

		gameOver, isOver := board.GameOverStatus()

		l.mu.Lock()
		l.state = StateGameWaitPlayerReady
		readyCollector := NewCollector[struct{}](playerIDs)
		l.readyCollector = readyCollector
		l.mu.Unlock()

		var gameOverPtr *GameOver
		if isOver {
			gameOverPtr = &gameOver
		}
		l.broadcast(MsgRoundResult, RoundResultPayload{Timeline: timeline, GameOver: gameOverPtr})

		readyCollector.WaitUpTo(time.Duration(len(timeline)) * l.cfg.durationPerEvent)

		if isOver {
			break
		}
	}

	l.mu.Lock()
	l.state = StateLobby
	l.board = nil
	l.movesCollector = nil
	l.readyCollector = nil
	l.mu.Unlock()
}

func (l *Lobby) playerByID(id uuid.UUID) (*Player, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.playersByID[id]
	return p, ok
}

// Shutdown cancels the game loop, marks the lobby terminal, and closes
// every player's channel with LOBBY_SHUTDOWN.
func (l *Lobby) Shutdown() {
	l.mu.Lock()
	if l.state == StateShutdown {
		l.mu.Unlock()
		return
	}
	if l.cancelGameLoop != nil {
		l.cancelGameLoop()
	}
	l.state = StateShutdown
	players := l.sortedPlayersLocked()
	l.mu.Unlock()

	for _, p := range players {
		p.conn.Close(CloseLobbyShuttingDown, "lobby shutting down")
	}
}
