/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "github.com/google/uuid"

// Piece is created only by Board at game start and destroyed only by Board
// when pushed off the platform. At most one piece occupies a Position at
// rest.
type Piece struct {
	ID       uuid.UUID
	PlayerID uuid.UUID
	Position Position
}
