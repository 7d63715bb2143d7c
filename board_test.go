package main

import (
	"encoding/json"
	"math/rand/v2"
	"reflect"
	"sort"
	"testing"

	"github.com/google/uuid"
)

func rowPlatform(width int) *RectanglePlatform {
	return &RectanglePlatform{TopLeft: Position{X: 0, Y: 0}, BottomRight: Position{X: width - 1, Y: 0}}
}

func newTestPiece(b *Board, playerID uuid.UUID, x int) uuid.UUID {
	id := uuid.New()
	b.addPiece(Piece{ID: id, PlayerID: playerID, Position: Position{X: x, Y: 0}})
	return id
}

func outcomeTypes(events []TimelineEvent) []string {
	var out []string
	for _, e := range events {
		for _, o := range e.Outcomes {
			out = append(out, o.Type)
		}
	}
	return out
}

func TestTrivialMove(t *testing.T) {
	b := NewBoard(rowPlatform(4))
	player := uuid.New()
	pusher := newTestPiece(b, player, 0)

	events := b.PerformMoves([]PlayerMove{{PieceID: pusher, Action: MoveRight}})

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if len(events[0].Outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(events[0].Outcomes))
	}
	push, ok := events[0].Outcomes[0].Payload.(PushOutcomePayload)
	if !ok {
		t.Fatalf("expected PushOutcomePayload, got %T", events[0].Outcomes[0].Payload)
	}
	if push.PusherPieceID != pusher || len(push.VictimPieceIDs) != 0 || push.Direction != Right {
		t.Fatalf("unexpected push outcome: %+v", push)
	}

	piece, _ := b.pieceByID(pusher)
	if piece.Position != (Position{X: 1, Y: 0}) {
		t.Fatalf("expected pusher at x=1, got %+v", piece.Position)
	}
}

func TestHeadOnCollision(t *testing.T) {
	b := NewBoard(rowPlatform(4))
	player := uuid.New()
	a := newTestPiece(b, player, 0)
	bb := newTestPiece(b, player, 3)

	events := b.PerformMoves([]PlayerMove{
		{PieceID: a, Action: MoveRight},
		{PieceID: bb, Action: MoveLeft},
	})

	if len(events) != 1 || len(events[0].Outcomes) != 1 {
		t.Fatalf("expected 1 event with 1 outcome, got %+v", events)
	}
	conflict, ok := events[0].Outcomes[0].Payload.(PushConflictOutcomePayload)
	if !ok {
		t.Fatalf("expected PushConflictOutcomePayload, got %T", events[0].Outcomes[0].Payload)
	}
	got := append([]uuid.UUID(nil), conflict.PieceIDs...)
	sort.Slice(got, func(i, j int) bool { return got[i].String() < got[j].String() })
	want := []uuid.UUID{a, bb}
	sort.Slice(want, func(i, j int) bool { return want[i].String() < want[j].String() })
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected conflict pieces: %v", got)
	}

	posA, _ := b.pieceByID(a)
	posB, _ := b.pieceByID(bb)
	if posA.Position != (Position{X: 0, Y: 0}) || posB.Position != (Position{X: 3, Y: 0}) {
		t.Fatalf("pieces should not have moved: %+v %+v", posA, posB)
	}
}

func TestChainPush(t *testing.T) {
	b := NewBoard(rowPlatform(5))
	player := uuid.New()
	a := newTestPiece(b, player, 0)
	bb := newTestPiece(b, player, 1)
	c := newTestPiece(b, player, 2)

	events := b.PerformMoves([]PlayerMove{{PieceID: a, Action: MoveRight}})

	if len(events) != 1 || len(events[0].Outcomes) != 1 {
		t.Fatalf("expected 1 event with 1 outcome, got %+v", events)
	}
	push, ok := events[0].Outcomes[0].Payload.(PushOutcomePayload)
	if !ok {
		t.Fatalf("expected PushOutcomePayload, got %T", events[0].Outcomes[0].Payload)
	}
	if push.PusherPieceID != a || !reflect.DeepEqual(push.VictimPieceIDs, []uuid.UUID{bb, c}) {
		t.Fatalf("unexpected push outcome: %+v", push)
	}

	pa, _ := b.pieceByID(a)
	pb, _ := b.pieceByID(bb)
	pc, _ := b.pieceByID(c)
	if pa.Position.X != 1 || pb.Position.X != 2 || pc.Position.X != 3 {
		t.Fatalf("unexpected final positions: a=%d b=%d c=%d", pa.Position.X, pb.Position.X, pc.Position.X)
	}
}

func TestConvergingMoveConflict(t *testing.T) {
	b := NewBoard(rowPlatform(3))
	player := uuid.New()
	a := newTestPiece(b, player, 0)
	bb := newTestPiece(b, player, 2)

	events := b.PerformMoves([]PlayerMove{
		{PieceID: a, Action: MoveRight},
		{PieceID: bb, Action: MoveLeft},
	})

	if len(events) != 1 || len(events[0].Outcomes) != 1 {
		t.Fatalf("expected 1 event with 1 outcome, got %+v", events)
	}
	conflict, ok := events[0].Outcomes[0].Payload.(MoveConflictOutcomePayload)
	if !ok {
		t.Fatalf("expected MoveConflictOutcomePayload, got %T", events[0].Outcomes[0].Payload)
	}
	if conflict.CollisionPoint != (Position{X: 1, Y: 0}) {
		t.Fatalf("unexpected collision point: %+v", conflict.CollisionPoint)
	}

	pa, _ := b.pieceByID(a)
	pb, _ := b.pieceByID(bb)
	if pa.Position.X != 0 || pb.Position.X != 2 {
		t.Fatalf("pieces should not have moved: a=%d b=%d", pa.Position.X, pb.Position.X)
	}
}

func TestPushOffPlatform(t *testing.T) {
	b := NewBoard(rowPlatform(3))
	player := uuid.New()
	a := newTestPiece(b, player, 1)
	bb := newTestPiece(b, player, 2)

	events := b.PerformMoves([]PlayerMove{{PieceID: a, Action: MoveRight}})

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	if _, ok := b.pieceByID(bb); ok {
		t.Fatalf("pushed-off piece should have been deleted")
	}
	pa, ok := b.pieceByID(a)
	if !ok || pa.Position.X != 2 {
		t.Fatalf("expected pusher at x=2, got %+v ok=%v", pa, ok)
	}
}

func TestGameOver(t *testing.T) {
	b := NewBoard(rowPlatform(2))
	winner := uuid.New()
	loser := uuid.New()
	a := newTestPiece(b, winner, 0)
	_ = newTestPiece(b, loser, 1)

	if _, over := b.GameOverStatus(); over {
		t.Fatalf("game should not be over before the push")
	}

	b.PerformMoves([]PlayerMove{{PieceID: a, Action: MoveRight}})

	status, over := b.GameOverStatus()
	if !over {
		t.Fatalf("expected game over after the push")
	}
	if status.Winner == nil || *status.Winner != winner {
		t.Fatalf("expected winner %s, got %+v", winner, status.Winner)
	}
}

func TestAllNoActionIsEmptyTimeline(t *testing.T) {
	b := NewBoard(rowPlatform(4))
	player := uuid.New()
	a := newTestPiece(b, player, 0)

	before, _ := b.pieceByID(a)
	events := b.PerformMoves([]PlayerMove{{PieceID: a, Action: NoAction}})
	after, _ := b.pieceByID(a)

	if len(events) != 0 {
		t.Fatalf("expected empty timeline, got %d events", len(events))
	}
	if before.Position != after.Position {
		t.Fatalf("board should be unchanged: before=%+v after=%+v", before, after)
	}
}

func TestEmptyPlayerSetGameOver(t *testing.T) {
	b := NewBoard(rowPlatform(4))
	status, over := b.GameOverStatus()
	if !over || status.Winner != nil {
		t.Fatalf("expected game over with no winner, got over=%v status=%+v", over, status)
	}
}

func TestNoGhostMovement(t *testing.T) {
	b := NewBoard(rowPlatform(6))
	player := uuid.New()
	mover := newTestPiece(b, player, 0)
	bystander := newTestPiece(b, player, 5)

	before, _ := b.pieceByID(bystander)
	events := b.PerformMoves([]PlayerMove{{PieceID: mover, Action: MoveRight}})
	after, _ := b.pieceByID(bystander)

	pieceInOutcome := false
	for _, e := range events {
		for _, o := range e.Outcomes {
			if push, ok := o.Payload.(PushOutcomePayload); ok {
				if push.PusherPieceID == bystander {
					pieceInOutcome = true
				}
				for _, v := range push.VictimPieceIDs {
					if v == bystander {
						pieceInOutcome = true
					}
				}
			}
		}
	}
	if pieceInOutcome {
		t.Fatalf("bystander unexpectedly appeared in an outcome")
	}
	if before.Position != after.Position {
		t.Fatalf("bystander moved without appearing in any outcome")
	}
}

func TestAtMostOnePerCellAndConservation(t *testing.T) {
	b := NewBoard(rowPlatform(5))
	player := uuid.New()
	a := newTestPiece(b, player, 0)
	bb := newTestPiece(b, player, 1)
	c := newTestPiece(b, player, 2)

	before := len(b.Pieces())
	b.PerformMoves([]PlayerMove{{PieceID: a, Action: MoveRight}})
	after := b.Pieces()

	seen := make(map[Position]struct{})
	for _, p := range after {
		if _, dup := seen[p.Position]; dup {
			t.Fatalf("two pieces share position %+v", p.Position)
		}
		seen[p.Position] = struct{}{}
	}
	if len(after) != before {
		t.Fatalf("expected conservation: before=%d after=%d", before, len(after))
	}
	_ = bb
	_ = c
}

func TestDeterminismUnderPermutation(t *testing.T) {
	build := func() (*Board, uuid.UUID, uuid.UUID, uuid.UUID) {
		b := NewBoard(rowPlatform(6))
		player := uuid.New()
		a := newTestPiece(b, player, 0)
		bb := newTestPiece(b, player, 4)
		c := newTestPiece(b, player, 5)
		return b, a, bb, c
	}

	b1, a1, bb1, c1 := build()
	events1 := b1.PerformMoves([]PlayerMove{
		{PieceID: a1, Action: MoveRight},
		{PieceID: bb1, Action: MoveRight},
		{PieceID: c1, Action: MoveLeft},
	})

	b2, a2, bb2, c2 := build()
	events2 := b2.PerformMoves([]PlayerMove{
		{PieceID: c2, Action: MoveLeft},
		{PieceID: a2, Action: MoveRight},
		{PieceID: bb2, Action: MoveRight},
	})

	byRole1 := map[string]uuid.UUID{"a": a1, "b": bb1, "c": c1}
	byRole2 := map[string]uuid.UUID{"a": a2, "b": bb2, "c": c2}
	for _, role := range []string{"a", "b", "c"} {
		p1, ok1 := b1.pieceByID(byRole1[role])
		p2, ok2 := b2.pieceByID(byRole2[role])
		if ok1 != ok2 {
			t.Fatalf("piece %q survived in one permutation but not the other", role)
		}
		if ok1 && p1.Position != p2.Position {
			t.Fatalf("piece %q ended up in different positions across permutations: %+v vs %+v", role, p1.Position, p2.Position)
		}
	}

	if len(events1) != len(events2) {
		t.Fatalf("event counts differ under permutation: %d vs %d", len(events1), len(events2))
	}
}

func TestPositionRoundTripOpposite(t *testing.T) {
	for _, d := range []Direction{Up, Down, Left, Right} {
		if d.Opposite().Opposite() != d {
			t.Fatalf("opposite() is not self-inverse for %s", d)
		}
		p := Position{X: 3, Y: -2}
		if p.Offset(d, 4).Offset(d.Opposite(), 4) != p {
			t.Fatalf("offset/opposite-offset did not round-trip for %s", d)
		}
	}
}

func TestTimelineEventJSONRoundTrip(t *testing.T) {
	event := TimelineEvent{
		Actions: []TimelineEventAction{
			{PlayerID: uuid.New(), PieceID: uuid.New(), Action: MoveRight},
		},
		Outcomes: []Outcome{
			NewPushOutcome(PushOutcomePayload{PusherPieceID: uuid.New(), VictimPieceIDs: []uuid.UUID{uuid.New()}, Direction: Right}),
			NewMoveConflictOutcome(MoveConflictOutcomePayload{PieceIDs: []uuid.UUID{uuid.New(), uuid.New()}, CollisionPoint: Position{X: 1, Y: 1}}),
			NewPushConflictOutcome(PushConflictOutcomePayload{PieceIDs: []uuid.UUID{uuid.New(), uuid.New()}}),
		},
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var round TimelineEvent
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(event, round) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", event, round)
	}
}

func TestUnknownOutcomeTypeRejected(t *testing.T) {
	var o Outcome
	err := json.Unmarshal([]byte(`{"type":"teleport","payload":{}}`), &o)
	if err == nil {
		t.Fatalf("expected error for unknown outcome type")
	}
}

func TestPlacePiecesFiniteReduction(t *testing.T) {
	b := NewBoard(rowPlatform(4))
	players := []uuid.UUID{uuid.New(), uuid.New()}
	rng := rand.New(rand.NewPCG(1, 2))

	b.PlacePieces(rng, players, 3)

	if len(b.Pieces()) != 4 {
		t.Fatalf("expected platform-reduced 4 pieces (2 per player), got %d", len(b.Pieces()))
	}
}

func TestPlacePiecesSamplesWhenReducedToZero(t *testing.T) {
	b := NewBoard(rowPlatform(2))
	players := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	rng := rand.New(rand.NewPCG(1, 2))

	b.PlacePieces(rng, players, 5)

	if len(b.Pieces()) != 2 {
		t.Fatalf("expected min(P,C)=2 pieces, got %d", len(b.Pieces()))
	}
}
