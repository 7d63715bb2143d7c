/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PlayerMove is one client-submitted (piece, action) pair.
type PlayerMove struct {
	PieceID uuid.UUID   `json:"piece_id"`
	Action  PieceAction `json:"action"`
}

// PlayerPiecePosition is the wire shape of a piece: its owner, identity,
// and current position.
type PlayerPiecePosition struct {
	PlayerID uuid.UUID `json:"player_id"`
	PieceID  uuid.UUID `json:"piece_id"`
	Position Position  `json:"position"`
}

func piecesToWire(pieces []Piece) []PlayerPiecePosition {
	out := make([]PlayerPiecePosition, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, PlayerPiecePosition{PlayerID: p.PlayerID, PieceID: p.ID, Position: p.Position})
	}
	return out
}

// PlayerInfo identifies a player by opaque id and table-facing number.
type PlayerInfo struct {
	ID     uuid.UUID `json:"id"`
	Number int       `json:"number"`
}

// GameOver carries the winning player, or nil when the game ended with no
// player left on the board.
type GameOver struct {
	Winner *uuid.UUID `json:"winner_player_id"`
}

// TimelineEventAction is the intent description recorded for a piece in
// one resolution event.
type TimelineEventAction struct {
	PlayerID uuid.UUID   `json:"player_id"`
	PieceID  uuid.UUID   `json:"piece_id"`
	Action   PieceAction `json:"action"`
}

// Outcome is a closed, tagged union: exactly one of Push, MoveConflict, or
// PushConflict populates Payload, named by Type.
type Outcome struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type PushOutcomePayload struct {
	PusherPieceID  uuid.UUID   `json:"pusher_piece_id"`
	VictimPieceIDs []uuid.UUID `json:"victim_piece_ids"`
	Direction      Direction   `json:"direction"`
}

type MoveConflictOutcomePayload struct {
	PieceIDs       []uuid.UUID `json:"piece_ids"`
	CollisionPoint Position    `json:"collision_point"`
}

// PushConflictOutcomePayload's CollisionPoint is left absent per Open
// Question (a): the source implementation never computes one.
type PushConflictOutcomePayload struct {
	PieceIDs       []uuid.UUID `json:"piece_ids"`
	CollisionPoint *Position   `json:"collision_point,omitempty"`
}

func NewPushOutcome(p PushOutcomePayload) Outcome {
	return Outcome{Type: "push", Payload: p}
}

func NewMoveConflictOutcome(p MoveConflictOutcomePayload) Outcome {
	return Outcome{Type: "move_conflict", Payload: p}
}

func NewPushConflictOutcome(p PushConflictOutcomePayload) Outcome {
	return Outcome{Type: "push_conflict", Payload: p}
}

// UnmarshalJSON dispatches Outcome.Payload to its concrete type by Type,
// rejecting any tag outside the closed set.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	o.Type = env.Type
	switch env.Type {
	case "push":
		var p PushOutcomePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		o.Payload = p
	case "move_conflict":
		var p MoveConflictOutcomePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		o.Payload = p
	case "push_conflict":
		var p PushConflictOutcomePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		o.Payload = p
	default:
		return fmt.Errorf("unknown outcome type %q", env.Type)
	}
	return nil
}

// TimelineEvent is one resolution iteration's actions and outcomes.
type TimelineEvent struct {
	Actions  []TimelineEventAction `json:"actions"`
	Outcomes []Outcome             `json:"outcomes"`
}

// WirePlatform is the only platform representation that crosses the
// wire: a client always describes its board as an explicit tagged tile
// set, matching host_start_game's payload shape.
type WirePlatform struct {
	Tiles []PlatformTile `json:"tiles"`
}

func (w WirePlatform) toPlatform() *ClientDefinedPlatform {
	return NewClientDefinedPlatform(w.Tiles)
}

func platformToWire(p Platform) WirePlatform {
	if cdp, ok := p.(*ClientDefinedPlatform); ok {
		return WirePlatform{Tiles: cdp.Tiles()}
	}
	return WirePlatform{}
}

// ---- Message envelope ----

// Envelope is the top-level discriminated-union wire shape:
// { "type": "<tag>", "payload": { ... } }. The union is closed;
// parseClientMessage rejects any tag outside the known set.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encodeMessage(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Known server->client message types.
const (
	MsgServerHello     = "server_hello"
	MsgPlayerJoined    = "player_joined"
	MsgPlayerLeft      = "player_left"
	MsgServerStartGame = "server_start_game"
	MsgRoundStart      = "round_start"
	MsgRoundResult     = "round_result"
	MsgError           = "error"
)

// Known client->server message types.
const (
	MsgHostStartGame     = "host_start_game"
	MsgPlayerMoves       = "player_moves"
	MsgReadyForNextRound = "ready_for_next_round"
)

// Known error payload type tags.
const (
	ErrProtocolForbidden = "protocol:forbidden"
	ErrProtocolFlow      = "protocol:flow"
	ErrGameIllegalMove   = "game:illegal-move"
)

type ServerHelloPayload struct {
	SessionID    uuid.UUID    `json:"session_id"`
	IsHost       bool         `json:"is_host"`
	Player       PlayerInfo   `json:"player"`
	OtherPlayers []PlayerInfo `json:"other_players"`
}

type PlayerJoinedPayload struct {
	Player    PlayerInfo `json:"player"`
	Reconnect bool       `json:"reconnect"`
}

type PlayerLeftPayload struct {
	Player PlayerInfo `json:"player"`
}

type HostStartGamePayload struct {
	Platform WirePlatform `json:"platform"`
}

type ServerStartGamePayload struct {
	Platform     WirePlatform          `json:"platform"`
	Players      []PlayerInfo          `json:"players"`
	Pieces       []PlayerPiecePosition `json:"pieces"`
	RoundStartIn float64               `json:"round_start_in"`
}

type RoundStartPayload struct {
	RoundNumber   int                   `json:"round_number"`
	RoundDuration float64               `json:"round_duration"`
	BoardState    []PlayerPiecePosition `json:"board_state"`
}

type RoundResultPayload struct {
	Timeline []TimelineEvent `json:"timeline"`
	GameOver *GameOver       `json:"game_over,omitempty"`
}

type PlayerMovesPayload struct {
	Moves []PlayerMove `json:"moves"`
}

type ReadyForNextRoundPayload struct{}

type ErrorPayload struct {
	Type    string         `json:"type"`
	Message string         `json:"message,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

func errMustBeHost() ErrorPayload {
	return ErrorPayload{Type: ErrProtocolForbidden, Message: "only the host may perform this operation"}
}

func errInvalidLobbyState() ErrorPayload {
	return ErrorPayload{Type: ErrProtocolFlow, Message: "the lobby isn't in the correct state for this message"}
}

func errUnhandledMessage() ErrorPayload {
	return ErrorPayload{Type: ErrProtocolFlow, Message: "this message isn't handled by the server"}
}

func errIllegalMove(pieceID uuid.UUID, message string) ErrorPayload {
	return ErrorPayload{
		Type:    ErrGameIllegalMove,
		Message: message,
		Extra:   map[string]any{"piece_id": pieceID.String()},
	}
}

// protocolError marks a failure to parse or validate a client frame, as
// distinct from a transport-level disconnect; receiveLoop uses this
// distinction to choose between a 4102 close and a reconnect window.
type protocolError struct{ err error }

func (e *protocolError) Error() string { return e.err.Error() }
func (e *protocolError) Unwrap() error { return e.err }

func isProtocolValidationErr(err error) bool {
	var pe *protocolError
	return errors.As(err, &pe)
}

// parseClientMessage decodes a raw text frame into its type tag and raw
// payload, failing for any type outside the closed client->server set.
func parseClientMessage(data []byte) (string, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, &protocolError{fmt.Errorf("invalid message: %w", err)}
	}
	switch env.Type {
	case MsgHostStartGame, MsgPlayerMoves, MsgReadyForNextRound:
		return env.Type, env.Payload, nil
	default:
		return "", nil, &protocolError{fmt.Errorf("unknown message type %q", env.Type)}
	}
}

// unmarshalPayload decodes a raw payload into dst, wrapping failures as a
// protocolError.
func unmarshalPayload(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return &protocolError{fmt.Errorf("invalid payload: %w", err)}
	}
	return nil
}
