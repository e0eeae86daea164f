package eval

import (
	. "github.com/jorgenhanssen/grail/pkg/common"
)

// Hand-crafted evaluation. Pawn and king structure terms are cached in a
// small hash table keyed by the pawn and king bitboards alone, everything
// else is recomputed per call.
type EvaluationService struct {
	Weights
	pawnKingTable      []pawnKingEntry
	occupied           uint64
	passedPawns        uint64
	pawnAttacks        [2]uint64
	pieceCount         [2][King + 1]int
	kingSquare         [2]int
	mobilityAreas      [2]uint64
	kingAreas          [2]uint64
	kingAttackPower    [2]int
	kingAttackersCount [2]int
}

type pawnKingEntry struct {
	pawns       [2]uint64
	kingSquare  [2]int
	eval        Score
	passedPawns uint64
}

func NewEvaluationService() *EvaluationService {
	var es = &EvaluationService{}
	es.pawnKingTable = make([]pawnKingEntry, 1<<16)
	es.Weights.init()
	return es
}

const maxPhase = 24

func (e *EvaluationService) Evaluate(p *Position) int {
	var eval Score

	initEval(e, p)

	var pawnKingKey = murmurMix(p.Pawns&p.White,
		murmurMix(p.Pawns&p.Black,
			murmurMix(p.Kings&p.White,
				p.Kings&p.Black)))
	var pke = &e.pawnKingTable[pawnKingKey%uint64(len(e.pawnKingTable))]
	if !(pke.pawns[SideWhite] == p.Pawns&p.White &&
		pke.pawns[SideBlack] == p.Pawns&p.Black &&
		pke.kingSquare[SideWhite] == e.kingSquare[SideWhite] &&
		pke.kingSquare[SideBlack] == e.kingSquare[SideBlack]) {
		pke.pawns[SideWhite] = p.Pawns & p.White
		pke.pawns[SideBlack] = p.Pawns & p.Black
		pke.kingSquare[SideWhite] = e.kingSquare[SideWhite]
		pke.kingSquare[SideBlack] = e.kingSquare[SideBlack]
		pke.passedPawns = 0
		pke.eval = evaluateKingPawns(pke, &e.Weights, SideWhite) -
			evaluateKingPawns(pke, &e.Weights, SideBlack)
	}
	eval += pke.eval
	e.passedPawns = pke.passedPawns

	eval += e.MinorBehindPawn * Score(
		PopCount((p.Knights|p.Bishops)&p.White&Down(p.Pawns))-
			PopCount((p.Knights|p.Bishops)&p.Black&Up(p.Pawns)))

	eval += evaluatePieces(e, p, SideWhite) - evaluatePieces(e, p, SideBlack)
	eval += evaluateKings(e, p, SideWhite) - evaluateKings(e, p, SideBlack)
	eval += evaluatePassed(e, p, SideWhite) - evaluatePassed(e, p, SideBlack)
	eval += evaluateThreats(e, p, SideWhite) - evaluateThreats(e, p, SideBlack)

	if e.pieceCount[SideWhite][Bishop] >= 2 {
		eval += e.BishopPair
	}
	if e.pieceCount[SideBlack][Bishop] >= 2 {
		eval -= e.BishopPair
	}

	var factor = computeFactor(e, p, eval)

	var phase = 4*(e.pieceCount[SideWhite][Queen]+e.pieceCount[SideBlack][Queen]) +
		2*(e.pieceCount[SideWhite][Rook]+e.pieceCount[SideBlack][Rook]) +
		1*(e.pieceCount[SideWhite][Knight]+e.pieceCount[SideBlack][Knight]+
			e.pieceCount[SideWhite][Bishop]+e.pieceCount[SideBlack][Bishop])
	phase = Min(phase, maxPhase)

	var result = (eval.Middle()*phase +
		eval.End()*(maxPhase-phase)*factor/scaleFactorNormal) / maxPhase

	if !p.WhiteMove {
		result = -result
	}

	return result + e.Tempo
}

const scaleFactorNormal = 128

const (
	queenSideBB = FileAMask | FileBMask | FileCMask | FileDMask
	kingSideBB  = FileEMask | FileFMask | FileGMask | FileHMask
)

// Endgames where the stronger side has few or lopsided pawns, or bishops of
// opposite colours, are harder to win than the raw score suggests.
func computeFactor(e *EvaluationService, p *Position, eval Score) int {
	var strongSide int
	var strong uint64
	if eval.End() > 0 {
		strongSide = SideWhite
		strong = p.White
	} else {
		strongSide = SideBlack
		strong = p.Black
	}

	var strongPawnCount = e.pieceCount[strongSide][Pawn]
	var x = 8 - strongPawnCount
	var pawnScale = scaleFactorNormal - x*x

	if strong&p.Pawns&queenSideBB == 0 ||
		strong&p.Pawns&kingSideBB == 0 {
		pawnScale -= 20
	}

	if e.pieceCount[SideWhite][Bishop] == 1 &&
		e.pieceCount[SideBlack][Bishop] == 1 &&
		onlyOne(p.Bishops&darkSquares) {

		var whiteNonPawnCount = PopCount(p.White &^ (p.Pawns | p.Kings))
		var blackNonPawnCount = PopCount(p.Black &^ (p.Pawns | p.Kings))
		if whiteNonPawnCount == blackNonPawnCount &&
			whiteNonPawnCount <= 2 {
			if whiteNonPawnCount == 1 {
				pawnScale = Min(pawnScale, 64)
			} else {
				pawnScale = Min(pawnScale, 96)
			}
		}
	}

	return pawnScale
}

func initEval(e *EvaluationService, p *Position) {
	e.kingAttackPower[SideWhite] = -30
	e.kingAttackPower[SideBlack] = -30

	e.kingAttackersCount[SideWhite] = 0
	e.kingAttackersCount[SideBlack] = 0

	var occ = p.AllPieces()
	e.occupied = occ
	e.passedPawns = 0

	for pt := Pawn; pt <= King; pt++ {
		e.pieceCount[SideWhite][pt] = 0
		e.pieceCount[SideBlack][pt] = 0
	}

	e.kingSquare[SideWhite] = p.KingSq(true)
	e.kingSquare[SideBlack] = p.KingSq(false)

	e.pawnAttacks[SideWhite] = AllWhitePawnAttacks(p.Pawns & p.White)
	e.pawnAttacks[SideBlack] = AllBlackPawnAttacks(p.Pawns & p.Black)

	e.pieceCount[SideWhite][Pawn] = PopCount(p.Pawns & p.White)
	e.pieceCount[SideBlack][Pawn] = PopCount(p.Pawns & p.Black)

	e.mobilityAreas[SideWhite] = ^(e.pawnAttacks[SideBlack] | p.Pawns&p.White&(Rank2Mask|Down(occ)))
	e.mobilityAreas[SideBlack] = ^(e.pawnAttacks[SideWhite] | p.Pawns&p.Black&(Rank7Mask|Up(occ)))

	e.kingAreas[SideWhite] = KingAttacks[e.kingSquare[SideWhite]]
	e.kingAreas[SideBlack] = KingAttacks[e.kingSquare[SideBlack]]
}

func evaluateKingPawns(e *pawnKingEntry, w *Weights, colour int) Score {
	var US, THEM = colour, colour ^ 1

	var sq int
	var eval Score

	var myPawns = e.pawns[US]
	var enemyPawns = e.pawns[THEM]
	var kingSq = e.kingSquare[US]

	var forward int
	if colour == SideWhite {
		forward = 8
	} else {
		forward = -8
	}

	for temp := myPawns; temp != 0; temp &= temp - 1 {
		sq = FirstOne(temp)
		eval += w.PST[US][Pawn][sq]

		var neighbors = myPawns & adjacentFilesMasks[File(sq)]
		var stoppers = enemyPawns & passedPawnMasks[US][sq]
		var support = myPawns & PawnAttacks(sq, THEM == SideWhite)

		if stoppers == 0 {
			var rank = relativeRank(US, sq)

			eval += w.PassedPawn[rank]
			if support != 0 {
				eval += w.PassedDefended[rank]
			}

			var keySq = sq + forward

			if rank > Rank3 {
				var dist = distanceBetween[keySq][e.kingSquare[US]]
				eval += Score(dist) * w.PassedDistUs[rank]

				dist = distanceBetween[keySq][e.kingSquare[THEM]]
				eval += Score(dist*(rank-Rank3)) * w.PassedDistThem
			}

			e.passedPawns |= SquareMask[sq]
		}

		if neighbors == 0 {
			eval += w.PawnIsolated
		} else if neighbors&^forwardSpanMasks[US][sq] == 0 &&
			PawnAttacks(sq+forward, US == SideWhite)&enemyPawns != 0 {
			// no friendly pawn level or behind on a neighboring file, and
			// the stop square is covered, so the pawn cannot advance safely
			eval += w.PawnBackward
		}

		if support != 0 {
			eval += w.PawnSupported
		}

		if SquareMask[sq+forward]&myPawns != 0 {
			eval += w.PawnDoubled
		}

		if Left(SquareMask[sq])&myPawns != 0 {
			eval += w.PawnPhalanx[relativeRank(US, sq)]
		}
	}

	eval += w.PST[US][King][kingSq]

	var shelter = Min(PopCount(KingAttacks[kingSq]&myPawns), len(w.KingShelter)-1)
	eval += w.KingShelter[shelter]

	if KingAttacks[kingSq]&enemyPawns != 0 {
		eval += w.KingAttackPawn
	}

	return eval
}

func evaluatePieces(e *EvaluationService, p *Position, colour int) Score {
	var US, THEM = colour, colour ^ 1

	var sq int
	var eval Score
	var attacks uint64

	var friendly = p.Colours(US)
	var myPawns = p.Pawns & friendly
	var enemyPawns = p.Pawns & p.Colours(THEM)

	for temp := p.Knights & friendly; temp != 0; temp &= temp - 1 {
		e.pieceCount[US][Knight]++
		sq = FirstOne(temp)
		eval += e.PST[US][Knight][sq]

		attacks = KnightAttacks[sq]

		eval += e.KnightMobility[PopCount(e.mobilityAreas[US]&attacks)]

		var kingAttacks = attacks & e.kingAreas[THEM] & e.mobilityAreas[US]
		var checks = attacks & KnightAttacks[e.kingSquare[THEM]] & e.mobilityAreas[US]
		if kingAttacks|checks != 0 {
			e.kingAttackPower[THEM] += e.SafetyAttackPower[Knight]*PopCount(kingAttacks) +
				e.SafetyCheckPower[Knight]*PopCount(checks)
			e.kingAttackersCount[THEM] += 1
		}
	}

	// sliders look through their own battery pieces when counting mobility
	var xRayOcc = e.occupied &^ (p.Queens | p.Bishops&friendly)

	for temp := p.Bishops & friendly; temp != 0; temp &= temp - 1 {
		e.pieceCount[US][Bishop]++
		sq = FirstOne(temp)
		eval += e.PST[US][Bishop][sq]

		attacks = BishopAttacks(sq, xRayOcc)

		eval += e.BishopMobility[PopCount(e.mobilityAreas[US]&attacks)]

		var kingAttacks = attacks & e.kingAreas[THEM] & e.mobilityAreas[US]
		var checks = attacks & BishopAttacks(e.kingSquare[THEM], e.occupied) & e.mobilityAreas[US]
		if kingAttacks|checks != 0 {
			e.kingAttackPower[THEM] += e.SafetyAttackPower[Bishop]*PopCount(kingAttacks) +
				e.SafetyCheckPower[Bishop]*PopCount(checks)
			e.kingAttackersCount[THEM] += 1
		}
	}

	xRayOcc = e.occupied &^ (p.Queens | p.Rooks&friendly)

	for temp := p.Rooks & friendly; temp != 0; temp &= temp - 1 {
		e.pieceCount[US][Rook]++
		sq = FirstOne(temp)
		eval += e.PST[US][Rook][sq]

		attacks = RookAttacks(sq, xRayOcc)

		if myPawns&forwardFileMasks[US][sq] == 0 {
			if enemyPawns&forwardFileMasks[US][sq] == 0 {
				eval += e.RookOpenFile
			} else {
				eval += e.RookSemiOpen
			}
		}

		eval += e.RookMobility[PopCount(e.mobilityAreas[US]&attacks)]

		var kingAttacks = attacks & e.kingAreas[THEM] & e.mobilityAreas[US]
		var checks = attacks & RookAttacks(e.kingSquare[THEM], e.occupied) & e.mobilityAreas[US]
		if kingAttacks|checks != 0 {
			e.kingAttackPower[THEM] += e.SafetyAttackPower[Rook]*PopCount(kingAttacks) +
				e.SafetyCheckPower[Rook]*PopCount(checks)
			e.kingAttackersCount[THEM] += 1
		}
	}

	xRayOcc = e.occupied &^ (p.Queens | (p.Bishops|p.Rooks)&friendly)

	for temp := p.Queens & friendly; temp != 0; temp &= temp - 1 {
		e.pieceCount[US][Queen]++
		sq = FirstOne(temp)
		eval += e.PST[US][Queen][sq]

		attacks = QueenAttacks(sq, xRayOcc)

		eval += e.QueenMobility[PopCount(e.mobilityAreas[US]&attacks)]

		var kingAttacks = attacks & e.kingAreas[THEM] & e.mobilityAreas[US]
		var checks = attacks & QueenAttacks(e.kingSquare[THEM], e.occupied) & e.mobilityAreas[US]
		if kingAttacks|checks != 0 {
			e.kingAttackPower[THEM] += e.SafetyAttackPower[Queen]*PopCount(kingAttacks) +
				e.SafetyCheckPower[Queen]*PopCount(checks)
			e.kingAttackersCount[THEM] += 1
		}
	}

	return eval
}

var countModifier = [...]int{0, 0, 64, 96, 113, 120, 124, 128}
var safeLine = [2]uint64{Rank1Mask, Rank8Mask}

func evaluateKings(e *EvaluationService, p *Position, colour int) Score {
	var US = colour

	var eval Score

	// open lines toward the king feed the attack power even with no
	// attacker on them yet
	var count = PopCount(QueenAttacks(e.kingSquare[US], p.Colours(US)|p.Pawns) &^ safeLine[US])
	e.kingAttackPower[US] += (count - 3) * 8

	var safety = e.kingAttackPower[US] *
		countModifier[Min(e.kingAttackersCount[US], len(countModifier)-1)] /
		countModifier[len(countModifier)-1]

	eval -= S(Max(0, safety), 0)

	return eval
}

func evaluatePassed(e *EvaluationService, p *Position, colour int) Score {
	var US = colour

	var eval Score
	var sq int

	var myPassers = e.passedPawns & p.Colours(US)

	for temp := myPassers; temp != 0; temp &= temp - 1 {
		sq = FirstOne(temp)

		var keySq int
		if colour == SideWhite {
			keySq = sq + 8
		} else {
			keySq = sq - 8
		}

		if relativeRank(US, sq) > Rank3 &&
			SquareMask[keySq]&e.occupied != 0 {
			eval += e.PassedBlocked[relativeRank(US, sq)]
		}
	}

	return eval
}

func evaluateThreats(e *EvaluationService, p *Position, colour int) Score {
	var US, THEM = colour, colour ^ 1

	var eval Score
	var count int

	var friendly = p.Colours(US)

	count = PopCount(^p.Pawns & friendly & e.pawnAttacks[THEM])
	eval += Score(count) * e.ThreatByPawn

	var pawnPushAttacks uint64
	if colour == SideWhite {
		pawnPushAttacks = AllBlackPawnAttacks(Down(p.Pawns&p.Black) &^ p.AllPieces())
	} else {
		pawnPushAttacks = AllWhitePawnAttacks(Up(p.Pawns&p.White) &^ p.AllPieces())
	}
	count = PopCount(^p.Pawns & friendly & pawnPushAttacks)
	eval += Score(count) * e.ThreatByPawnPush

	return eval
}
