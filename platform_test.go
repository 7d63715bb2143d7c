package main

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
)

func TestRectanglePlatformBounds(t *testing.T) {
	p := RectanglePlatform{TopLeft: Position{X: 0, Y: 0}, BottomRight: Position{X: 2, Y: 1}}

	if p.OnBoardCount() != 6 {
		t.Fatalf("expected 6 on-board cells, got %d", p.OnBoardCount())
	}
	if !p.IsOnBoard(Position{X: 2, Y: 1}) {
		t.Fatalf("expected bottom-right corner to be on board")
	}
	if p.IsOnBoard(Position{X: 3, Y: 0}) {
		t.Fatalf("expected x=3 to be off board")
	}
	if p.IsOnBoard(Position{X: 0, Y: -1}) {
		t.Fatalf("expected y=-1 to be off board")
	}
}

func TestRectanglePlatformRandomPositionExcludesFull(t *testing.T) {
	p := RectanglePlatform{TopLeft: Position{X: 0, Y: 0}, BottomRight: Position{X: 0, Y: 0}}
	rng := rand.New(rand.NewPCG(1, 1))

	exclude := map[Position]struct{}{{X: 0, Y: 0}: {}}
	if _, ok := p.RandomPosition(rng, exclude); ok {
		t.Fatalf("expected no eligible position on a fully excluded single-cell platform")
	}
}

func TestInfinitePlatformAlwaysOnBoard(t *testing.T) {
	p := InfinitePlatform{}
	if p.OnBoardCount() != -1 {
		t.Fatalf("expected unbounded platform to report -1, got %d", p.OnBoardCount())
	}
	if !p.IsOnBoard(Position{X: 1 << 20, Y: -(1 << 20)}) {
		t.Fatalf("expected every position to be on board")
	}
}

func TestClientDefinedPlatformOnBoardPolarity(t *testing.T) {
	tiles := []PlatformTile{
		{Position: Position{X: 0, Y: 0}, TextureID: "grass", TileType: TileFloor},
		{Position: Position{X: 1, Y: 0}, TextureID: "void", TileType: TileVoid},
	}
	p := NewClientDefinedPlatform(tiles)

	if !p.IsOnBoard(Position{X: 0, Y: 0}) {
		t.Fatalf("FLOOR tile should be on board")
	}
	if p.IsOnBoard(Position{X: 1, Y: 0}) {
		t.Fatalf("VOID tile should be off board")
	}
	if p.OnBoardCount() != 1 {
		t.Fatalf("expected exactly 1 on-board tile, got %d", p.OnBoardCount())
	}
}

func TestClientDefinedPlatformWireRoundTrip(t *testing.T) {
	tiles := []PlatformTile{
		{Position: Position{X: 0, Y: 0}, TextureID: "sand", TileType: TileFloor},
	}
	wire := WirePlatform{Tiles: tiles}

	data, err := json.Marshal(wire)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var round WirePlatform
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	platform := round.toPlatform()
	backToWire := platformToWire(platform)
	if len(backToWire.Tiles) != 1 || backToWire.Tiles[0] != tiles[0] {
		t.Fatalf("unexpected round trip: %+v", backToWire)
	}
}

func TestTileTypeJSONRejectsUnknown(t *testing.T) {
	var tt TileType
	if err := json.Unmarshal([]byte(`"lava"`), &tt); err == nil {
		t.Fatalf("expected error for unknown tile type")
	}
}
