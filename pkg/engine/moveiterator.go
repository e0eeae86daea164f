package engine

import . "github.com/jorgenhanssen/grail/pkg/common"

// Ordering tiers. The bands are far enough apart that history scores can
// never promote a move across a tier boundary.
const (
	sortKeyTT            = 1 << 29
	sortKeyGoodCapture   = 1 << 27
	sortKeyKiller        = 1 << 26
	sortKeyCounter       = 1 << 20
	sortKeyLosingCapture = -(1 << 27)
)

type moveIteratorQS struct {
	position *Position
	buffer   []OrderedMove
	count    int
	index    int
}

func (mi *moveIteratorQS) Init() {
	if mi.position.IsCheck() {
		mi.count = len(mi.position.GenerateMoves(mi.buffer))
	} else {
		mi.count = len(mi.position.GenerateCaptures(mi.buffer))
	}

	for i := 0; i < mi.count; i++ {
		var m = mi.buffer[i].Move
		var score int
		if isCaptureOrPromotion(m) {
			score = sortKeyGoodCapture + mvvlva(m)
		}
		mi.buffer[i].Key = int32(score)
	}

	sortMoves(mi.buffer[:mi.count])
}

func (mi *moveIteratorQS) Reset() {
	mi.index = 0
}

func (mi *moveIteratorQS) Next() Move {
	if mi.index >= mi.count {
		return MoveEmpty
	}
	var m = mi.buffer[mi.index].Move
	mi.index++
	return m
}

type moveIterator struct {
	position  *Position
	buffer    []OrderedMove
	history   *historyContext
	transMove Move
	killer1   Move
	killer2   Move
	count     int
	index     int
}

func (mi *moveIterator) Init() {
	mi.count = len(mi.position.GenerateMoves(mi.buffer))

	for i := 0; i < mi.count; i++ {
		var m = mi.buffer[i].Move
		var score int
		if m == mi.transMove {
			score = sortKeyTT
		} else if isCaptureOrPromotion(m) {
			if seeGEZero(mi.position, m) {
				score = sortKeyGoodCapture + mvvlva(m) + mi.history.ReadCapture(m)
			} else {
				score = sortKeyLosingCapture + mvvlva(m)
			}
		} else if m == mi.killer1 {
			score = sortKeyKiller + 1
		} else if m == mi.killer2 {
			score = sortKeyKiller
		} else if m == mi.history.counter {
			score = sortKeyCounter + mi.history.ReadQuiet(m)
		} else {
			score = mi.history.ReadQuiet(m)
		}
		mi.buffer[i].Key = int32(score)
	}
}

func (mi *moveIterator) Reset() {
	mi.index = 0
}

// Next is lazy: the best move is selected without sorting, the rest of
// the list is insertion sorted only if a second move is actually needed.
func (mi *moveIterator) Next() Move {
	if mi.index >= mi.count {
		return MoveEmpty
	}
	const SortMovesIndex = 1
	if mi.index <= SortMovesIndex {
		if mi.index == SortMovesIndex {
			sortMoves(mi.buffer[mi.index:mi.count])
		} else {
			moveToTop(mi.buffer[mi.index:mi.count])
		}
	}
	var m = mi.buffer[mi.index].Move
	mi.index++
	return m
}

var sortPieceValues = [...]int{Empty: 0, Pawn: 1, Knight: 2, Bishop: 3, Rook: 4, Queen: 5, King: 6}

func mvvlva(move Move) int {
	return 16*(sortPieceValues[move.CapturedPiece()]+
		sortPieceValues[move.Promotion()]) -
		sortPieceValues[move.MovingPiece()]
}

func sortMoves(moves []OrderedMove) {
	for i := 1; i < len(moves); i++ {
		j, t := i, moves[i]
		for ; j > 0 && moves[j-1].Key < t.Key; j-- {
			moves[j] = moves[j-1]
		}
		moves[j] = t
	}
}

func moveToTop(ml []OrderedMove) {
	var bestIndex = 0
	for i := 1; i < len(ml); i++ {
		if ml[i].Key > ml[bestIndex].Key {
			bestIndex = i
		}
	}
	if bestIndex != 0 {
		ml[0], ml[bestIndex] = ml[bestIndex], ml[0]
	}
}
