/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"
)

// IllegalMoveError is returned as a value, never panicked, so the lobby's
// message dispatch can translate it into a game:illegal-move reply.
type IllegalMoveError struct {
	PieceID uuid.UUID
	Reason  string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move for piece %s: %s", e.PieceID, e.Reason)
}

// Board owns piece storage, move validation, and push resolution for one
// lobby's active game.
type Board struct {
	platform   Platform
	pieceByPos map[Position]*Piece
	posByPiece map[uuid.UUID]Position
}

func NewBoard(platform Platform) *Board {
	return &Board{
		platform:   platform,
		pieceByPos: make(map[Position]*Piece),
		posByPiece: make(map[uuid.UUID]Position),
	}
}

func (b *Board) Platform() Platform {
	return b.platform
}

func (b *Board) pieceByID(id uuid.UUID) (Piece, bool) {
	pos, ok := b.posByPiece[id]
	if !ok {
		return Piece{}, false
	}
	p, ok := b.pieceByPos[pos]
	if !ok {
		return Piece{}, false
	}
	return *p, true
}

func (b *Board) pieceAt(pos Position) (Piece, bool) {
	p, ok := b.pieceByPos[pos]
	if !ok {
		return Piece{}, false
	}
	return *p, true
}

// Pieces returns a stable snapshot of every piece on the board, sorted by
// piece id.
func (b *Board) Pieces() []Piece {
	out := make([]Piece, 0, len(b.pieceByPos))
	for _, p := range b.pieceByPos {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (b *Board) addPiece(p Piece) {
	piece := p
	b.pieceByPos[p.Position] = &piece
	b.posByPiece[p.ID] = p.Position
}

// PlacePieces populates the board per spec.md §4.C: if the platform is
// finite with C available positions and there are P players, the requested
// per-player count is reduced to C/P; if that reduces to zero, min(P, C)
// players are sampled without replacement to receive a single piece each.
func (b *Board) PlacePieces(rng *rand.Rand, playerIDs []uuid.UUID, piecesPerPlayer int) {
	players := append([]uuid.UUID(nil), playerIDs...)
	sort.Slice(players, func(i, j int) bool { return players[i].String() < players[j].String() })

	requested := piecesPerPlayer
	if c := b.platform.OnBoardCount(); c >= 0 && len(players) > 0 && c/len(players) < requested {
		requested = c / len(players)
	}

	placed := make(map[Position]struct{}, len(b.pieceByPos))
	for pos := range b.pieceByPos {
		placed[pos] = struct{}{}
	}

	place := func(playerID uuid.UUID) bool {
		pos, ok := b.platform.RandomPosition(rng, placed)
		if !ok {
			return false
		}
		placed[pos] = struct{}{}
		b.addPiece(Piece{ID: uuid.New(), PlayerID: playerID, Position: pos})
		return true
	}

	if requested <= 0 {
		c := b.platform.OnBoardCount()
		n := len(players)
		if c >= 0 && c < n {
			n = c
		}
		chosen := append([]uuid.UUID(nil), players...)
		rng.Shuffle(len(chosen), func(i, j int) { chosen[i], chosen[j] = chosen[j], chosen[i] })
		for i := 0; i < n; i++ {
			place(chosen[i])
		}
		return
	}

	for _, playerID := range players {
		for i := 0; i < requested; i++ {
			if !place(playerID) {
				break
			}
		}
	}
}

// Validate converts a player's planned moves into TimelineEventActions,
// failing with IllegalMoveError when a piece doesn't exist or isn't owned
// by playerID. NO_ACTION is accepted and yields an action with no
// direction.
func (b *Board) Validate(playerID uuid.UUID, plannedMoves []PlayerMove) ([]TimelineEventAction, error) {
	actions := make([]TimelineEventAction, 0, len(plannedMoves))
	for _, move := range plannedMoves {
		piece, ok := b.pieceByID(move.PieceID)
		if !ok {
			return nil, &IllegalMoveError{PieceID: move.PieceID, Reason: "piece not found"}
		}
		if piece.PlayerID != playerID {
			return nil, &IllegalMoveError{PieceID: move.PieceID, Reason: "piece not owned by this player"}
		}
		actions = append(actions, TimelineEventAction{
			PlayerID: piece.PlayerID,
			PieceID:  move.PieceID,
			Action:   move.Action,
		})
	}
	return actions, nil
}

// GameOverStatus reports the outcome once no more than one player still
// owns a piece on the board.
func (b *Board) GameOverStatus() (GameOver, bool) {
	owners := make(map[uuid.UUID]struct{})
	for _, p := range b.pieceByPos {
		owners[p.PlayerID] = struct{}{}
	}
	switch len(owners) {
	case 0:
		return GameOver{Winner: nil}, true
	case 1:
		for id := range owners {
			winner := id
			return GameOver{Winner: &winner}, true
		}
	}
	return GameOver{}, false
}

type pushChain struct {
	pusher  uuid.UUID
	members []uuid.UUID // pusher followed by victims, in order
}

// sortedPieceIDs returns the keys of a dir_of-shaped map in a fixed,
// input-order-independent sequence so resolution is deterministic
// regardless of how the caller's move slice was ordered.
func sortedPieceIDs(m map[uuid.UUID]Direction) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// isolateCompletePushChains extends every still-moving pusher's victim
// chain one step at a time until at least one chain completes (its next
// step lands on a position holding no piece, on or off the board). It
// returns the iteration index (victim_chain_length) at which completion
// first occurred, or -1 if dirOf is empty on entry. Pushers whose piece no
// longer exists are dropped; if every pusher is dropped, complete stays
// empty.
func (b *Board) isolateCompletePushChains(dirOf map[uuid.UUID]Direction, complete map[uuid.UUID][]uuid.UUID) int {
	incomplete := make(map[uuid.UUID][]uuid.UUID)

	victimChainLength := -1
	for len(dirOf) > 0 {
		victimChainLength++
		finished := false

		for _, pusherID := range sortedPieceIDs(dirOf) {
			dir := dirOf[pusherID]
			pusher, ok := b.pieceByID(pusherID)
			if !ok {
				delete(dirOf, pusherID)
				continue
			}

			chain, ok := incomplete[pusherID]
			if !ok {
				chain = []uuid.UUID{pusherID}
			}

			victimPos := pusher.Position.Offset(dir, victimChainLength+1)
			victim, ok := b.pieceAt(victimPos)
			if ok {
				chain = append(chain, victim.ID)
				incomplete[pusherID] = chain
				continue
			}

			complete[pusherID] = chain
			finished = true
		}

		if finished {
			break
		}
	}
	return victimChainLength
}

// findPushConflicts scans completed chains at the shortest distance for
// head-on collisions and many-to-one victim conflicts. Head-on collisions
// take precedence: if any exist at the minimum distance, only head-on
// PushConflict outcomes are returned.
func (b *Board) findPushConflicts(complete map[uuid.UUID][]uuid.UUID, dirOf map[uuid.UUID]Direction, victimChainLength int) []PushConflictOutcomePayload {
	if victimChainLength == 0 {
		return nil
	}

	globalMinDistance := -1
	updateMin := func(d int) {
		if globalMinDistance == -1 || d < globalMinDistance {
			globalMinDistance = d
		}
	}

	var headOnOrder []pairKey
	headOn := make(map[pairKey]int)

	type victimEntry struct {
		minDistance int
		pushers     []uuid.UUID
	}
	victimToPushers := make(map[uuid.UUID]*victimEntry)

	pushers := make([]uuid.UUID, 0, len(complete))
	for id := range complete {
		pushers = append(pushers, id)
	}
	sort.Slice(pushers, func(i, j int) bool { return pushers[i].String() < pushers[j].String() })

	for _, pusherID := range pushers {
		chain := complete[pusherID]
		victims := chain[1:]

		for idx, pieceID := range victims {
			chainIdx := idx + 1

			if _, isPusher := complete[pieceID]; isPusher {
				complete[pusherID] = chain[:chainIdx]

				key := canonicalPair(pusherID, pieceID)
				if _, already := headOn[key]; already {
					break
				}
				dirA := dirOf[pusherID]
				dirB := dirOf[pieceID]
				if dirA != dirB.Opposite() {
					break
				}
				minDistance := victimChainLength / 2
				headOn[key] = minDistance
				headOnOrder = append(headOnOrder, key)
				updateMin(minDistance)
				break
			}

			entry, ok := victimToPushers[pieceID]
			if !ok {
				entry = &victimEntry{minDistance: -1}
				victimToPushers[pieceID] = entry
			}
			if entry.minDistance == -1 || chainIdx < entry.minDistance {
				entry.minDistance = chainIdx
				entry.pushers = []uuid.UUID{pusherID}
			} else if chainIdx == entry.minDistance {
				entry.pushers = append(entry.pushers, pusherID)
			}
			if len(entry.pushers) >= 2 {
				updateMin(entry.minDistance)
			}
		}
	}

	if globalMinDistance == -1 {
		return nil
	}

	var outcomes []PushConflictOutcomePayload
	for _, key := range headOnOrder {
		if headOn[key] != globalMinDistance {
			continue
		}
		outcomes = append(outcomes, PushConflictOutcomePayload{
			PieceIDs: []uuid.UUID{key.a, key.b},
		})
	}
	if len(outcomes) > 0 {
		return outcomes
	}

	victims := make([]uuid.UUID, 0, len(victimToPushers))
	for id := range victimToPushers {
		victims = append(victims, id)
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i].String() < victims[j].String() })

	for _, victimID := range victims {
		entry := victimToPushers[victimID]
		if entry.minDistance != globalMinDistance || len(entry.pushers) < 2 {
			continue
		}
		outcomes = append(outcomes, PushConflictOutcomePayload{PieceIDs: entry.pushers})
	}

	return outcomes
}

// pairKey is a canonical, order-independent key for an unordered pair of
// piece ids, resolving Open Question (b) by ordering on string form.
type pairKey struct {
	a, b uuid.UUID
}

func canonicalPair(x, y uuid.UUID) pairKey {
	if x.String() <= y.String() {
		return pairKey{a: x, b: y}
	}
	return pairKey{a: y, b: x}
}

// errPlayerMovesExhausted signals that no chain could complete this
// iteration: the resolution loop terminates.
type errPlayerMovesExhausted struct{}

func (errPlayerMovesExhausted) Error() string { return "no push chain could complete" }

func (b *Board) performPlayerMoveEvent(actionByPiece map[uuid.UUID]TimelineEventAction, dirOf map[uuid.UUID]Direction) (TimelineEvent, error) {
	event := TimelineEvent{Actions: []TimelineEventAction{}, Outcomes: []Outcome{}}

	complete := make(map[uuid.UUID][]uuid.UUID)
	victimChainLength := b.isolateCompletePushChains(dirOf, complete)

	if len(complete) == 0 {
		return TimelineEvent{}, errPlayerMovesExhausted{}
	}

	if conflicts := b.findPushConflicts(complete, dirOf, victimChainLength); len(conflicts) > 0 {
		for _, outcome := range conflicts {
			for _, pieceID := range outcome.PieceIDs {
				event.Actions = append(event.Actions, actionByPiece[pieceID])
				delete(dirOf, pieceID)
			}
			event.Outcomes = append(event.Outcomes, NewPushConflictOutcome(outcome))
		}
		return event, nil
	}

	pushers := make([]uuid.UUID, 0, len(complete))
	for id := range complete {
		pushers = append(pushers, id)
	}
	sort.Slice(pushers, func(i, j int) bool { return pushers[i].String() < pushers[j].String() })

	targetToPushers := make(map[Position][]uuid.UUID)
	var targetOrder []Position
	for _, pusherID := range pushers {
		chain := complete[pusherID]
		pusher, _ := b.pieceByID(pusherID)
		dir := dirOf[pusherID]
		target := pusher.Position.Offset(dir, len(chain))
		if _, seen := targetToPushers[target]; !seen {
			targetOrder = append(targetOrder, target)
		}
		targetToPushers[target] = append(targetToPushers[target], pusherID)
	}

	for _, target := range targetOrder {
		group := targetToPushers[target]
		if len(group) < 2 {
			continue
		}
		for _, pieceID := range group {
			delete(dirOf, pieceID)
			delete(complete, pieceID)
		}
		for _, pieceID := range group {
			event.Actions = append(event.Actions, actionByPiece[pieceID])
		}
		event.Outcomes = append(event.Outcomes, NewMoveConflictOutcome(MoveConflictOutcomePayload{
			PieceIDs:       group,
			CollisionPoint: target,
		}))
	}

	remainingPushers := make([]uuid.UUID, 0, len(complete))
	for id := range complete {
		remainingPushers = append(remainingPushers, id)
	}
	sort.Slice(remainingPushers, func(i, j int) bool { return remainingPushers[i].String() < remainingPushers[j].String() })

	var pushOutcomes []PushOutcomePayload
	for _, pusherID := range remainingPushers {
		chain := complete[pusherID]
		event.Actions = append(event.Actions, actionByPiece[pusherID])
		outcome := PushOutcomePayload{
			PusherPieceID:  pusherID,
			VictimPieceIDs: append([]uuid.UUID(nil), chain[1:]...),
			Direction:      dirOf[pusherID],
		}
		pushOutcomes = append(pushOutcomes, outcome)
		event.Outcomes = append(event.Outcomes, NewPushOutcome(outcome))
		delete(dirOf, pusherID)
	}

	b.executePushOutcomes(pushOutcomes)

	return event, nil
}

// executePushOutcomes applies every surviving push atomically: new
// positions are staged in a temporary map first, pieces landing off-board
// are dropped, then the staged positions replace the old ones.
func (b *Board) executePushOutcomes(pushes []PushOutcomePayload) {
	if len(pushes) == 0 {
		return
	}

	staged := make(map[Position]*Piece)
	for _, push := range pushes {
		ids := append([]uuid.UUID{push.PusherPieceID}, push.VictimPieceIDs...)
		for _, id := range ids {
			piece, ok := b.pieceByID(id)
			if !ok {
				continue
			}
			oldPos := piece.Position
			newPos := oldPos.Offset(push.Direction, 1)

			delete(b.pieceByPos, oldPos)
			delete(b.posByPiece, id)

			if b.platform.IsOnBoard(newPos) {
				moved := piece
				moved.Position = newPos
				staged[newPos] = &moved
			}
		}
	}

	for pos, piece := range staged {
		b.pieceByPos[pos] = piece
		b.posByPiece[piece.ID] = pos
	}
}

// PerformMoves resolves a round's submitted moves into an ordered timeline
// of events, per spec.md §4.C.
func (b *Board) PerformMoves(moves []PlayerMove) []TimelineEvent {
	actionByPiece := make(map[uuid.UUID]TimelineEventAction, len(moves))
	dirOf := make(map[uuid.UUID]Direction, len(moves))

	for _, move := range moves {
		piece, ok := b.pieceByID(move.PieceID)
		if !ok {
			continue
		}
		actionByPiece[move.PieceID] = TimelineEventAction{
			PlayerID: piece.PlayerID,
			PieceID:  move.PieceID,
			Action:   move.Action,
		}
		if dir, isMove := move.Action.AsDirection(); isMove {
			dirOf[move.PieceID] = dir
		}
	}

	var events []TimelineEvent
	for len(dirOf) > 0 {
		event, err := b.performPlayerMoveEvent(actionByPiece, dirOf)
		if err != nil {
			break
		}
		events = append(events, event)
	}
	return events
}
