package engine

import (
	. "github.com/jorgenhanssen/grail/pkg/common"
)

const (
	rfpMargin      = 100
	razorMargin    = 200
	futilityMargin = 100
	probcutMargin  = 150
)

func (t *thread) iterateDeepening() {
	defer func() {
		if r := recover(); r != nil && r != errSearchTimeout {
			panic(r)
		}
	}()
	var e = t.engine
	var prevScore = 0
	for depth := 1; depth < stackSize; depth++ {
		t.selDepth = 0
		var score = t.aspirationWindow(depth, prevScore)
		e.onIterationComplete(t, depth, score)
		if e.timeManager.IsDone() {
			break
		}
		prevScore = score
	}
}

// aspirationWindow searches a narrow window around the previous
// iteration's score, widening on the failing side and doubling the
// margin until the window collapses to a full one.
func (t *thread) aspirationWindow(depth, prevScore int) int {
	if depth >= 4 {
		var delta = 15
		var alpha = Max(-valueInfinity, prevScore-delta)
		var beta = Min(valueInfinity, prevScore+delta)
		for {
			var score = t.searchRoot(alpha, beta, depth)
			if score <= alpha {
				alpha = Max(-valueInfinity, score-delta)
			} else if score >= beta {
				beta = Min(valueInfinity, score+delta)
			} else {
				return score
			}
			delta *= 2
			if delta >= 200 {
				alpha = -valueInfinity
				beta = valueInfinity
			}
		}
	}
	return t.searchRoot(-valueInfinity, valueInfinity, depth)
}

func (t *thread) searchRoot(alpha, beta, depth int) int {
	const height = 0
	t.evaluator.Init(&t.stack[height].position)
	return t.alphaBeta(alpha, beta, depth, height, MoveEmpty)
}

func (t *thread) alphaBeta(alpha, beta, depth, height int, skipMove Move) int {
	if depth <= 0 {
		return t.quiescence(alpha, beta, height)
	}
	t.clearPV(height)
	if height > t.selDepth {
		t.selDepth = height
	}

	var rootNode = height == 0
	var pvNode = beta != alpha+1
	var position = &t.stack[height].position
	var isCheck = position.IsCheck()
	var ttMoveIsSingular = false

	if !rootNode {
		if height >= maxHeight {
			return t.evaluator.EvaluateQuick(position)
		}
		if t.isRepeat(height) {
			return valueDraw
		}
		if isDraw(position) {
			return valueDraw
		}
		// mate distance pruning
		alpha = Max(alpha, lossIn(height))
		beta = Min(beta, winIn(height+1))
		if alpha >= beta {
			return alpha
		}
	}

	var (
		ttDepth, ttValue, ttStatic, ttBound int
		ttMove                              Move
		ttHit                               bool
	)
	if skipMove == MoveEmpty {
		var move16 uint16
		ttDepth, ttValue, ttStatic, ttBound, move16, ttHit = t.engine.transTable.Read(position.Key)
		if move16 != 0 {
			ttMove = position.RebuildMove(int(move16&63), int(move16>>6&63), int(move16>>12&7))
		}
	}
	if ttHit {
		ttValue = valueFromTT(ttValue, height)
		if ttDepth >= depth && !pvNode {
			if ttValue >= beta && (ttBound&boundLower) != 0 {
				if ttMove != MoveEmpty && !isCaptureOrPromotion(ttMove) {
					t.updateKiller(ttMove, height)
				}
				return ttValue
			}
			if ttValue <= alpha && (ttBound&boundUpper) != 0 {
				return ttValue
			}
		}
	}

	var staticEval = valueInfinity
	if !isCheck {
		if ttHit && ttStatic != valueInfinity {
			staticEval = ttStatic
		} else {
			staticEval = t.evaluator.EvaluateQuick(position)
		}
	}
	t.stack[height].staticEval = staticEval
	var improving = !isCheck && (height < 2 ||
		t.stack[height-2].staticEval == valueInfinity ||
		staticEval > t.stack[height-2].staticEval)

	if height+2 <= maxHeight {
		t.stack[height+2].killer1 = MoveEmpty
		t.stack[height+2].killer2 = MoveEmpty
	}
	var child = &t.stack[height+1].position

	if !rootNode && !pvNode && !isCheck && skipMove == MoveEmpty {

		// reverse futility pruning
		if depth <= 8 && staticEval-rfpMargin*depth >= beta {
			return staticEval
		}

		// razoring
		if depth <= 3 && staticEval+razorMargin*depth <= alpha {
			var score = t.quiescence(alpha, beta, height)
			if score <= alpha {
				return score
			}
		}

		// null-move pruning
		if depth >= 3 && staticEval >= beta &&
			position.LastMove != MoveEmpty &&
			height != t.nmpMinHeight &&
			beta > valueLoss && beta < valueWin &&
			position.HasNonPawnMaterial(position.WhiteMove) {
			var reduction = 3 + depth/4 + Min((staticEval-beta)/200, 3)
			t.MakeMove(MoveEmpty, height)
			var score = -t.alphaBeta(-beta, -(beta - 1), depth-reduction, height+1, MoveEmpty)
			t.UnmakeMove()
			if score >= beta {
				if score >= valueWin {
					score = beta
				}
				if depth < 12 {
					return score
				}
				// verify at high depth with null move disabled here
				var saved = t.nmpMinHeight
				t.nmpMinHeight = height
				var verified = t.alphaBeta(beta-1, beta, depth-reduction, height, MoveEmpty)
				t.nmpMinHeight = saved
				if verified >= beta {
					return score
				}
			}
		}

		var probcutBeta = Min(valueWin-1, beta+probcutMargin)
		if depth >= 5 && beta > valueLoss && beta < valueWin &&
			!(ttHit && ttDepth >= depth-4 && ttValue < probcutBeta && (ttBound&boundUpper) != 0) {

			var mi = moveIteratorQS{
				position: position,
				buffer:   t.stack[height].moveList[:],
			}
			mi.Init()

			for mi.Reset(); ; {
				var move = mi.Next()
				if move == MoveEmpty {
					break
				}
				if !seeGEZero(position, move) {
					continue
				}
				if !t.MakeMove(move, height) {
					continue
				}
				var score = -t.quiescence(-probcutBeta, -probcutBeta+1, height+1)
				if score >= probcutBeta {
					score = -t.alphaBeta(-probcutBeta, -probcutBeta+1, depth-4, height+1, MoveEmpty)
				}
				t.UnmakeMove()
				if score >= probcutBeta {
					return score
				}
			}
		}
	}

	// internal iterative deepening
	if pvNode && ttMove == MoveEmpty && depth >= 4 && skipMove == MoveEmpty {
		t.alphaBeta(alpha, beta, depth-2, height, MoveEmpty)
		var _, _, _, _, move16, _ = t.engine.transTable.Read(position.Key)
		if move16 != 0 {
			ttMove = position.RebuildMove(int(move16&63), int(move16>>6&63), int(move16>>12&7))
		}
	}

	// singular extension
	if depth >= 8 && skipMove == MoveEmpty && !rootNode &&
		ttHit && ttMove != MoveEmpty &&
		(ttBound&boundLower) != 0 && ttDepth >= depth-3 &&
		ttValue > valueLoss && ttValue < valueWin {
		var singularBeta = Max(-valueInfinity, ttValue-depth)
		var score = t.alphaBeta(singularBeta-1, singularBeta, depth/2, height, ttMove)
		ttMoveIsSingular = score < singularBeta
	}

	var historyContext = t.getHistoryContext(height)
	var killer1 = t.stack[height].killer1
	var killer2 = t.stack[height].killer2

	var mi = moveIterator{
		position:  position,
		buffer:    t.stack[height].moveList[:],
		history:   &historyContext,
		transMove: ttMove,
		killer1:   killer1,
		killer2:   killer2,
	}
	mi.Init()

	var movesSearched = 0
	var hasLegalMove = false
	var quietsSeen = 0

	var quietsSearched = t.stack[height].quietsSearched[:0]
	var capturesSearched = t.stack[height].capturesSearched[:0]
	var bestMove Move

	var lmp = 5 + (depth-1)*depth
	if !improving {
		lmp /= 2
	}

	var best = -valueInfinity
	var oldAlpha = alpha

	for mi.Reset(); ; {
		var move = mi.Next()
		if move == MoveEmpty {
			break
		}
		if move == skipMove {
			continue
		}
		var isNoisy = isCaptureOrPromotion(move)
		if !isNoisy {
			quietsSeen++
		}

		if !rootNode && !pvNode && !isCheck && best > valueLoss && hasLegalMove {
			if !isNoisy && move != killer1 && move != killer2 && move != historyContext.counter {
				// late move pruning
				if depth <= 6 && quietsSeen > lmp {
					continue
				}
				// futility pruning
				if depth <= 6 && staticEval+futilityMargin*depth <= alpha {
					continue
				}
			}

			// SEE pruning
			if depth <= 7 {
				var seeMargin int
				if isNoisy {
					seeMargin = depth
				} else {
					seeMargin = depth * depth / 4
				}
				if !SeeGE(position, move, -seeMargin) {
					continue
				}
			}
		}

		if !t.MakeMove(move, height) {
			continue
		}
		hasLegalMove = true
		movesSearched++

		var extension, reduction int

		if child.IsCheck() {
			extension = 1
		}
		if move == ttMove && ttMoveIsSingular {
			extension = 1
		}

		var newDepth = depth - 1 + extension

		if depth >= 3 && movesSearched > 1 && !isNoisy {
			reduction = t.engine.lateMoveReduction(depth, movesSearched)
			if pvNode {
				reduction--
			}
			if improving {
				reduction--
			}
			if move == killer1 || move == killer2 || move == historyContext.counter {
				reduction--
			}
			if !isCheck {
				reduction -= clamp(historyContext.ReadQuiet(move)/5000, -2, 2)
				if staticEval+128 <= alpha {
					reduction++
				}
			}
			if child.IsCheck() {
				reduction--
			}
			reduction = clamp(reduction, 0, newDepth-1)
		}

		if isNoisy {
			capturesSearched = append(capturesSearched, move)
		} else {
			quietsSearched = append(quietsSearched, move)
		}

		var score int
		if movesSearched == 1 {
			score = -t.alphaBeta(-beta, -alpha, newDepth, height+1, MoveEmpty)
		} else {
			score = -t.alphaBeta(-(alpha + 1), -alpha, newDepth-reduction, height+1, MoveEmpty)
			if score > alpha && reduction > 0 {
				score = -t.alphaBeta(-(alpha + 1), -alpha, newDepth, height+1, MoveEmpty)
			}
			if score > alpha && pvNode {
				score = -t.alphaBeta(-beta, -alpha, newDepth, height+1, MoveEmpty)
			}
		}

		t.UnmakeMove()

		if score > best {
			best = score
			bestMove = move
		}
		if score > alpha {
			alpha = score
			t.assignPV(height, move)
			if alpha >= beta {
				break
			}
		}
	}

	if !hasLegalMove {
		if !isCheck && skipMove == MoveEmpty {
			return valueDraw
		}
		return lossIn(height)
	}

	if best >= beta && bestMove != MoveEmpty {
		if isCaptureOrPromotion(bestMove) {
			historyContext.UpdateCapture(capturesSearched, bestMove, depth)
		} else {
			historyContext.UpdateQuiet(quietsSearched, bestMove, depth)
			t.updateKiller(bestMove, height)
		}
	}

	if skipMove == MoveEmpty {
		ttBound = 0
		if best > oldAlpha {
			ttBound |= boundLower
		}
		if best < beta {
			ttBound |= boundUpper
		}
		if !(rootNode && ttBound == boundUpper) {
			t.engine.transTable.Update(position.Key, depth,
				valueToTT(best, height), staticEval, ttBound, bestMove)
		}
	}

	return best
}

var deltaPieceValues = [...]int{Empty: 0, Pawn: 100, Knight: 325, Bishop: 325, Rook: 500, Queen: 975, King: 0}

const deltaMargin = 150

func (t *thread) quiescence(alpha, beta, height int) int {
	t.clearPV(height)
	if height > t.selDepth {
		t.selDepth = height
	}
	var position = &t.stack[height].position
	if isDraw(position) {
		return valueDraw
	}
	if height >= maxHeight {
		return t.evaluator.EvaluateQuick(position)
	}
	if t.isRepeat(height) {
		return valueDraw
	}

	var _, ttValue, _, ttBound, _, ttHit = t.engine.transTable.Read(position.Key)
	if ttHit {
		ttValue = valueFromTT(ttValue, height)
		if ttBound == boundExact ||
			ttBound == boundLower && ttValue >= beta ||
			ttBound == boundUpper && ttValue <= alpha {
			return ttValue
		}
	}

	var isCheck = position.IsCheck()
	var best = -valueInfinity
	var standPat = 0
	if !isCheck {
		standPat = t.evaluator.EvaluateQuick(position)
		best = Max(best, standPat)
		if standPat > alpha {
			alpha = standPat
			if alpha >= beta {
				return alpha
			}
		}
	}
	var mi = moveIteratorQS{
		position: position,
		buffer:   t.stack[height].moveList[:],
	}
	mi.Init()
	var hasLegalMove = false
	for mi.Reset(); ; {
		var move = mi.Next()
		if move == MoveEmpty {
			break
		}
		if !isCheck {
			// delta pruning
			if move.Promotion() == Empty &&
				standPat+deltaPieceValues[move.CapturedPiece()]+deltaMargin <= alpha {
				continue
			}
			if !seeGEZero(position, move) {
				continue
			}
		}
		if !t.MakeMove(move, height) {
			continue
		}
		hasLegalMove = true
		var score = -t.quiescence(-beta, -alpha, height+1)
		t.UnmakeMove()
		best = Max(best, score)
		if score > alpha {
			alpha = score
			t.assignPV(height, move)
			if alpha >= beta {
				break
			}
		}
	}
	if isCheck && !hasLegalMove {
		return lossIn(height)
	}
	return best
}

func (t *thread) incNodes() {
	t.nodes++
	if t.nodes&2047 == 0 {
		t.engine.timeManager.OnNodesChanged(int(t.nodes))
		if t.engine.timeManager.IsDone() {
			panic(errSearchTimeout)
		}
	}
}

func (t *thread) isRepeat(height int) bool {
	var p = &t.stack[height].position

	if p.Rule50 == 0 || p.LastMove == MoveEmpty {
		return false
	}
	for i := height - 1; i >= 0; i-- {
		var temp = &t.stack[i].position
		if temp.Key == p.Key {
			return true
		}
		if temp.Rule50 == 0 || temp.LastMove == MoveEmpty {
			return false
		}
	}

	return t.engine.historyKeys[p.Key] >= 2
}

func (t *thread) updateKiller(move Move, height int) {
	if t.stack[height].killer1 != move {
		t.stack[height].killer2 = t.stack[height].killer1
		t.stack[height].killer1 = move
	}
}

func (t *thread) MakeMove(move Move, height int) bool {
	var pos = &t.stack[height].position
	var child = &t.stack[height+1].position
	if move == MoveEmpty {
		pos.MakeNullMove(child)
	} else {
		if !pos.MakeMove(move, child) {
			return false
		}
	}
	t.evaluator.MakeMove(pos, move)
	t.incNodes()
	return true
}

func (t *thread) UnmakeMove() {
	t.evaluator.UnmakeMove()
}
