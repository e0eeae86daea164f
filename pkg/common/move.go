package common

import "strings"

// Move packs from, to, moving piece, captured piece and promotion piece
// into one value. Carrying the piece identities in the move keeps SEE,
// MVV-LVA scoring and evaluator updates free of board lookups.
type Move int32

const MoveEmpty = Move(0)

func makeMove(from, to, movingPiece, capturedPiece int) Move {
	return Move(from ^ (to << 6) ^ (movingPiece << 12) ^ (capturedPiece << 15))
}

func makePawnMove(from, to, capturedPiece, promotion int) Move {
	return Move(from ^ (to << 6) ^ (Pawn << 12) ^ (capturedPiece << 15) ^ (promotion << 18))
}

func (m Move) From() int {
	return int(m & 63)
}

func (m Move) To() int {
	return int((m >> 6) & 63)
}

func (m Move) MovingPiece() int {
	return int((m >> 12) & 7)
}

func (m Move) CapturedPiece() int {
	return int((m >> 15) & 7)
}

func (m Move) Promotion() int {
	return int((m >> 18) & 7)
}

// String renders the move in long algebraic notation, e.g. "e7e8q".
func (m Move) String() string {
	if m == MoveEmpty {
		return "0000"
	}
	var sPromotion = ""
	if m.Promotion() != Empty {
		sPromotion = string("nbrq"[m.Promotion()-Knight])
	}
	return SquareName(m.From()) + SquareName(m.To()) + sPromotion
}

// RebuildMove restores a move's full encoding from its from, to and
// promotion fields, reading the piece identities off the board. Useful
// when only a compact from/to/promotion triple survived storage.
func (p *Position) RebuildMove(from, to, promotion int) Move {
	var piece = p.WhatPiece(from)
	if piece == Pawn {
		var captured = p.WhatPiece(to)
		if to == p.EpSquare {
			captured = Pawn
		}
		return makePawnMove(from, to, captured, promotion)
	}
	return makeMove(from, to, piece, p.WhatPiece(to))
}

// MakeMoveLAN applies a move given in long algebraic notation. The second
// result is false when the string does not name a legal move.
func (p *Position) MakeMoveLAN(lan string) (Position, bool) {
	var buffer [MaxMoves]OrderedMove
	var ml = p.GenerateMoves(buffer[:])
	for i := range ml {
		var mv = ml[i].Move
		if strings.EqualFold(mv.String(), lan) {
			var newPosition = Position{}
			if p.MakeMove(mv, &newPosition) {
				return newPosition, true
			}
			return Position{}, false
		}
	}
	return Position{}, false
}
