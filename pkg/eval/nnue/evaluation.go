package eval

import (
	. "github.com/jorgenhanssen/grail/pkg/common"
)

// Dual-perspective network: each side has its own 768-feature view of the
// board (own pieces 0-5, enemy 6-11, ranks mirrored for black) feeding a
// shared embedding layer. Both accumulators are kept up to date
// incrementally and concatenated side-to-move first at inference.
const (
	inputSize  = 64 * 12
	hidden1    = 256
	hidden2    = 32
	hidden3    = 32
	quantA     = 255
	quantB     = 64
	evalScale  = 400
	maxHeight  = 128
	maxUpdates = 5
)

const (
	addCoeff    = 1
	removeCoeff = -addCoeff
)

type Weights struct {
	FeatureWeights [inputSize * hidden1]int16
	FeatureBias    [hidden1]int16
	L1Weights      [2 * hidden1 * hidden2]int8
	L1Bias         [hidden2]int32
	L2Weights      [hidden2 * hidden3]int8
	L2Bias         [hidden3]int32
	OutputWeights  [hidden3]int8
	OutputBias     int32
}

type EvaluationService struct {
	*Weights
	updates      updates
	accumulators [maxHeight][2][hidden1]int16
	current      int
}

// updates holds the board diff of one move as (piece, side, square)
// triples. Each perspective maps the same triple to a different feature.
type updates struct {
	piece  [maxUpdates]int8
	white  [maxUpdates]bool
	square [maxUpdates]int8
	coeff  [maxUpdates]int8
	size   int
}

func (u *updates) add(pieceType int, side bool, square, coeff int) {
	u.piece[u.size] = int8(pieceType)
	u.white[u.size] = side
	u.square[u.size] = int8(square)
	u.coeff[u.size] = int8(coeff)
	u.size++
}

func NewEvaluationService(weights *Weights) *EvaluationService {
	return &EvaluationService{Weights: weights}
}

func featureIndex(perspective int, pieceSide bool, pieceType, square int) int {
	if perspective == SideBlack {
		square ^= 0x38
	}
	var piece12 = pieceType - Pawn
	if pieceSide != (perspective == SideWhite) {
		piece12 += 6
	}
	return piece12*64 + square
}

func (e *EvaluationService) Init(p *Position) {
	e.current = 0
	for perspective := SideWhite; perspective <= SideBlack; perspective++ {
		var acc = &e.accumulators[0][perspective]
		copy(acc[:], e.FeatureBias[:])
		for sq := 0; sq < 64; sq++ {
			var piece, side = p.GetPieceTypeAndSide(sq)
			if piece == Empty {
				continue
			}
			var offset = featureIndex(perspective, side, piece, sq) * hidden1
			for j := range acc {
				acc[j] += e.FeatureWeights[offset+j]
			}
		}
	}
}

func (e *EvaluationService) MakeMove(p *Position, m Move) {
	e.updates.size = 0

	if m == MoveEmpty {
		e.applyUpdates()
		return
	}

	var from, to, movingPiece, capturedPiece, epCapSq, promotionPt, isCastling = unpackMove(p, m)

	e.updates.add(movingPiece, p.WhiteMove, from, removeCoeff)

	if capturedPiece != Empty {
		var capSq = to
		if epCapSq != SquareNone {
			capSq = epCapSq
		}
		e.updates.add(capturedPiece, !p.WhiteMove, capSq, removeCoeff)
	}

	var pieceAfterMove = movingPiece
	if promotionPt != Empty {
		pieceAfterMove = promotionPt
	}
	e.updates.add(pieceAfterMove, p.WhiteMove, to, addCoeff)

	if isCastling {
		var rookRemoveSq, rookAddSq int
		if p.WhiteMove {
			if to == SquareG1 {
				rookRemoveSq = SquareH1
				rookAddSq = SquareF1
			} else {
				rookRemoveSq = SquareA1
				rookAddSq = SquareD1
			}
		} else {
			if to == SquareG8 {
				rookRemoveSq = SquareH8
				rookAddSq = SquareF8
			} else {
				rookRemoveSq = SquareA8
				rookAddSq = SquareD8
			}
		}

		e.updates.add(Rook, p.WhiteMove, rookRemoveSq, removeCoeff)
		e.updates.add(Rook, p.WhiteMove, rookAddSq, addCoeff)
	}

	e.applyUpdates()
}

func (e *EvaluationService) UnmakeMove() {
	e.current--
}

func (e *EvaluationService) applyUpdates() {
	e.current++
	for perspective := SideWhite; perspective <= SideBlack; perspective++ {
		var acc = &e.accumulators[e.current][perspective]
		copy(acc[:], e.accumulators[e.current-1][perspective][:])

		for i := 0; i < e.updates.size; i++ {
			var offset = featureIndex(perspective,
				e.updates.white[i],
				int(e.updates.piece[i]),
				int(e.updates.square[i])) * hidden1
			if e.updates.coeff[i] == addCoeff {
				for j := range acc {
					acc[j] += e.FeatureWeights[offset+j]
				}
			} else {
				for j := range acc {
					acc[j] -= e.FeatureWeights[offset+j]
				}
			}
		}
	}
}

func unpackMove(p *Position, m Move) (from, to, movingPiece, capturedPiece, epCapSq, promotionPt int, isCastling bool) {
	from = m.From()
	to = m.To()
	movingPiece = m.MovingPiece()
	capturedPiece = m.CapturedPiece()
	promotionPt = m.Promotion()
	epCapSq = SquareNone
	if movingPiece == King {
		if p.WhiteMove {
			if from == SquareE1 && (to == SquareG1 || to == SquareC1) {
				isCastling = true
			}
		} else {
			if from == SquareE8 && (to == SquareG8 || to == SquareC8) {
				isCastling = true
			}
		}
	} else if movingPiece == Pawn {
		if to == p.EpSquare {
			if p.WhiteMove {
				epCapSq = to - 8
			} else {
				epCapSq = to + 8
			}
		}
	}
	return
}

func (e *EvaluationService) EvaluateQuick(p *Position) int {
	var output = e.forward(p.SideToMove())
	const maxEval = 15_000
	output = Max(-maxEval, Min(maxEval, output))
	output = output * (200 - p.Rule50) / 200
	return output
}

func (e *EvaluationService) Evaluate(p *Position) int {
	e.Init(p)
	return e.EvaluateQuick(p)
}

func clippedReLU(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > quantA {
		return quantA
	}
	return v
}

// forward runs the layers after the embedding: the two accumulators are
// clipped and concatenated with the side to move first, so the same
// weights score the position from the mover's point of view.
func (e *EvaluationService) forward(sideToMove int) int {
	var input [2 * hidden1]int32
	var stm = &e.accumulators[e.current][sideToMove]
	var nstm = &e.accumulators[e.current][sideToMove^1]
	for i := 0; i < hidden1; i++ {
		input[i] = clippedReLU(int32(stm[i]))
		input[hidden1+i] = clippedReLU(int32(nstm[i]))
	}

	var l1Out [hidden2]int32
	for o := 0; o < hidden2; o++ {
		var sum = e.L1Bias[o]
		var row = e.L1Weights[o*2*hidden1 : (o+1)*2*hidden1]
		for i, x := range input {
			sum += x * int32(row[i])
		}
		l1Out[o] = clippedReLU(sum / quantB)
	}

	var l2Out [hidden3]int32
	for o := 0; o < hidden3; o++ {
		var sum = e.L2Bias[o]
		var row = e.L2Weights[o*hidden2 : (o+1)*hidden2]
		for i, x := range l1Out {
			sum += x * int32(row[i])
		}
		l2Out[o] = clippedReLU(sum / quantB)
	}

	var sum = e.OutputBias
	for i, x := range l2Out {
		sum += x * int32(e.OutputWeights[i])
	}

	return int(int64(sum) * evalScale / (quantA * quantB))
}
