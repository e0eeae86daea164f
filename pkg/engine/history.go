package engine

import . "github.com/jorgenhanssen/grail/pkg/common"

const (
	historyMax      = 1 << 14
	maxHistoryBonus = 1200
)

// historyTable holds the quiet butterfly history, capture history,
// continuation histories and counter moves for one search thread.
type historyTable struct {
	butterfly    [2][64 * 64]int16
	captures     [2][8][64][8]int16
	continuation [1024][1024]int16
	counters     [1024]Move
}

func historyBonus(depth int) int {
	return Min(depth*depth, maxHistoryBonus)
}

// Gravity update. Values drift toward the bonus sign and saturate so that
// |v| never exceeds historyMax.
func applyGravity(v *int16, bonus int) {
	var magnitude = bonus
	if magnitude < 0 {
		magnitude = -magnitude
	}
	*v += int16(bonus - int(*v)*magnitude/historyMax)
}

func sideIdx(side bool) int {
	if side {
		return 0
	}
	return 1
}

func fromToIndex(m Move) int {
	return m.From()<<6 | m.To()
}

func pieceSquareIndex(side bool, m Move) int {
	var result = m.MovingPiece()<<6 | m.To()
	if side {
		result |= 1 << 9
	}
	return result
}

// historyContext snapshots per-node ordering state: the side to move, the
// continuation slots one, two and four plies back, and the counter move
// that refuted the opponent's last move before.
type historyContext struct {
	table      *historyTable
	sideToMove bool
	cont1      int
	cont2      int
	cont4      int
	counter    Move
}

func (t *thread) getHistoryContext(height int) historyContext {
	var sideToMove = t.stack[height].position.WhiteMove
	var cont1, cont2, cont4 = -1, -1, -1
	if prev := t.stack[height].position.LastMove; prev != MoveEmpty {
		cont1 = pieceSquareIndex(!sideToMove, prev)
	}
	if height >= 1 {
		if prev := t.stack[height-1].position.LastMove; prev != MoveEmpty {
			cont2 = pieceSquareIndex(sideToMove, prev)
		}
	}
	if height >= 3 {
		if prev := t.stack[height-3].position.LastMove; prev != MoveEmpty {
			cont4 = pieceSquareIndex(sideToMove, prev)
		}
	}
	var counter = MoveEmpty
	if cont1 != -1 {
		counter = t.history.counters[cont1]
	}
	return historyContext{
		table:      &t.history,
		sideToMove: sideToMove,
		cont1:      cont1,
		cont2:      cont2,
		cont4:      cont4,
		counter:    counter,
	}
}

func (h *historyContext) ReadQuiet(m Move) int {
	var score = int(h.table.butterfly[sideIdx(h.sideToMove)][fromToIndex(m)])
	var pieceTo = pieceSquareIndex(h.sideToMove, m)
	if h.cont1 != -1 {
		score += int(h.table.continuation[h.cont1][pieceTo])
	}
	if h.cont2 != -1 {
		score += int(h.table.continuation[h.cont2][pieceTo])
	}
	if h.cont4 != -1 {
		score += int(h.table.continuation[h.cont4][pieceTo])
	}
	return score
}

func (h *historyContext) ReadCapture(m Move) int {
	return int(h.table.captures[sideIdx(h.sideToMove)][m.MovingPiece()][m.To()][m.CapturedPiece()])
}

func (h *historyContext) updateQuiet(m Move, bonus int) {
	applyGravity(&h.table.butterfly[sideIdx(h.sideToMove)][fromToIndex(m)], bonus)
	var pieceTo = pieceSquareIndex(h.sideToMove, m)
	if h.cont1 != -1 {
		applyGravity(&h.table.continuation[h.cont1][pieceTo], bonus)
	}
	if h.cont2 != -1 {
		applyGravity(&h.table.continuation[h.cont2][pieceTo], bonus)
	}
	if h.cont4 != -1 {
		applyGravity(&h.table.continuation[h.cont4][pieceTo], bonus)
	}
}

// UpdateQuiet rewards the cutoff move and penalizes the quiets tried
// before it. quietsSearched ends with bestMove.
func (h *historyContext) UpdateQuiet(quietsSearched []Move, bestMove Move, depth int) {
	var bonus = historyBonus(depth)
	for _, m := range quietsSearched {
		if m == bestMove {
			h.updateQuiet(m, bonus)
			break
		}
		h.updateQuiet(m, -bonus)
	}
	if h.cont1 != -1 {
		h.table.counters[h.cont1] = bestMove
	}
}

func (h *historyContext) UpdateCapture(capturesSearched []Move, bestMove Move, depth int) {
	var bonus = historyBonus(depth)
	var side = sideIdx(h.sideToMove)
	for _, m := range capturesSearched {
		var entry = &h.table.captures[side][m.MovingPiece()][m.To()][m.CapturedPiece()]
		if m == bestMove {
			applyGravity(entry, bonus)
			break
		}
		applyGravity(entry, -bonus)
	}
}

func (h *historyTable) Clear() {
	*h = historyTable{}
}

// age halves all history magnitudes and forgets counter moves. Called on
// ucinewgame so stale preferences fade instead of vanishing.
func (h *historyTable) age() {
	for i := range h.butterfly {
		for j := range h.butterfly[i] {
			h.butterfly[i][j] /= 2
		}
	}
	for i := range h.captures {
		for j := range h.captures[i] {
			for k := range h.captures[i][j] {
				for l := range h.captures[i][j][k] {
					h.captures[i][j][k][l] /= 2
				}
			}
		}
	}
	for i := range h.continuation {
		for j := range h.continuation[i] {
			h.continuation[i][j] /= 2
		}
	}
	for i := range h.counters {
		h.counters[i] = MoveEmpty
	}
}
