package eval

import (
	. "github.com/jorgenhanssen/grail/pkg/common"
)

const darkSquares = uint64(0xAA55AA55AA55AA55)

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func several(bb uint64) bool {
	return bb&(bb-1) != 0
}

func onlyOne(bb uint64) bool {
	return bb != 0 && !several(bb)
}

func relativeRank(colour, sq int) int {
	if colour == SideWhite {
		return Rank(sq)
	}
	return Rank8 - Rank(sq)
}

func murmurMix(k, h uint64) uint64 {
	h ^= k
	h *= uint64(0xc6a4a7935bd1e995)
	return h ^ (h >> 51)
}

var (
	distanceBetween    [64][64]int
	passedPawnMasks    [2][64]uint64
	adjacentFilesMasks [8]uint64
	forwardFileMasks   [2][64]uint64
	forwardSpanMasks   [2][64]uint64
)

func init() {
	for i := 0; i < 64; i++ {
		for j := 0; j < 64; j++ {
			distanceBetween[i][j] = SquareDistance(i, j)
		}
	}

	for f := FileA; f <= FileH; f++ {
		adjacentFilesMasks[f] = Left(FileMask[f]) | Right(FileMask[f])
	}

	for sq := 0; sq < 64; sq++ {
		var x = SquareMask[sq]

		passedPawnMasks[SideWhite][sq] = UpFill(Up(Left(x) | Right(x) | x))
		passedPawnMasks[SideBlack][sq] = DownFill(Down(Left(x) | Right(x) | x))

		forwardFileMasks[SideWhite][sq] = UpFill(x)
		forwardFileMasks[SideBlack][sq] = DownFill(x)

		forwardSpanMasks[SideWhite][sq] = UpFill(Up(Left(x) | Right(x)))
		forwardSpanMasks[SideBlack][sq] = DownFill(Down(Left(x) | Right(x)))
	}
}
