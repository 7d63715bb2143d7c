package main

import (
	"testing"

	"github.com/google/uuid"
)

func TestLobbyLowestUnusedNumberFillsGaps(t *testing.T) {
	l := NewLobby(uuid.New(), "TEST", testConfig())

	l.playersByID[uuid.New()] = &Player{Number: 1}
	l.playersByID[uuid.New()] = &Player{Number: 3}

	if got := l.lowestUnusedNumberLocked(); got != 2 {
		t.Fatalf("expected lowest unused number 2, got %d", got)
	}
}

func TestLobbySortedPlayersOrdersByNumber(t *testing.T) {
	l := NewLobby(uuid.New(), "TEST", testConfig())

	l.playersByID[uuid.New()] = &Player{Number: 3}
	l.playersByID[uuid.New()] = &Player{Number: 1}
	l.playersByID[uuid.New()] = &Player{Number: 2}

	sorted := l.sortedPlayersLocked()
	for i, p := range sorted {
		if p.Number != i+1 {
			t.Fatalf("expected ascending player numbers, got %v", numbersOf(sorted))
		}
	}
}

func numbersOf(players []*Player) []int {
	out := make([]int, len(players))
	for i, p := range players {
		out[i] = p.Number
	}
	return out
}

func TestLobbyPlayerLeaveSoleHostEmptiesLobby(t *testing.T) {
	l := NewLobby(uuid.New(), "TEST", testConfig())

	hostID := uuid.New()
	l.playersByID[hostID] = &Player{ID: hostID, Number: 1, SessionID: uuid.New()}
	l.hostPlayerID = &hostID
	l.state = StateLobby

	l.playerLeave(hostID)

	if len(l.playersByID) != 0 {
		t.Fatalf("expected lobby to be empty after sole player left")
	}
	if l.hostPlayerID != nil {
		t.Fatalf("expected host to be cleared")
	}
	if l.state != StateEmpty {
		t.Fatalf("expected lobby state to become empty, got %v", l.state)
	}
}

func TestLobbyPlayerLeavePromotesNewHost(t *testing.T) {
	l := NewLobby(uuid.New(), "TEST", testConfig())

	hostID := uuid.New()
	otherID := uuid.New()
	l.playersByID[hostID] = &Player{ID: hostID, Number: 1, SessionID: uuid.New(), conn: &Connection{send: make(chan []byte, 16), done: make(chan struct{})}}
	l.playersByID[otherID] = &Player{ID: otherID, Number: 2, SessionID: uuid.New(), conn: &Connection{send: make(chan []byte, 16), done: make(chan struct{})}}
	l.hostPlayerID = &hostID
	l.state = StateLobby

	l.playerLeave(hostID)

	if l.hostPlayerID == nil || *l.hostPlayerID != otherID {
		t.Fatalf("expected remaining player to be promoted to host, got %+v", l.hostPlayerID)
	}
	if l.state != StateLobby {
		t.Fatalf("expected lobby to remain in lobby state with a player left, got %v", l.state)
	}
}
