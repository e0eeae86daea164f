package engine

import (
	"context"
	"testing"
	"time"

	. "github.com/jorgenhanssen/grail/pkg/common"
	eval "github.com/jorgenhanssen/grail/pkg/eval/hce"
)

var testFENs = []string{
	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"8/p1P5/P7/3p4/5p1p/3p1P1P/K2p2pp/3R2nk w - - 0 1",
	"8/7p/p5pb/4k3/P1pPn3/8/P5PP/1rB2RK1 b - d3 0 28",
	"1K1k4/8/5n2/3p4/8/1BN2B2/6b1/7b w - - 0 1",
	"6k1/5ppp/3r4/8/3R2b1/8/5PPP/R3qB1K b - - 0 1",
	"2rqkb1r/p1pnpppp/3p3n/3B4/2BPP3/1QP5/PP3PPP/RN2K1NR w KQk - 0 1",
	"1rr3k1/4ppb1/2q1bnp1/1p2B1Q1/6P1/2p2P2/2P1B2R/2K4R w - - 0 1",
	"1k1r4/1pp4p/p7/4p3/8/P5P1/1PP4P/2K1R3 w - - 0 1",
	"1k1r3q/1ppn3p/p4b2/4p3/8/P2N2P1/1PP1R1BP/2K1Q3 w - - 0 1",
	"8/8/3p4/4r3/2RKP3/5k2/8/8 b - - 0 1",
	"r2qk2r/pppb1ppp/2np4/1Bb5/4n3/5N2/PPP2PPP/RNBQR1K1 b kq - 1 1",
	"6k1/Qp1r1pp1/p1rP3p/P3q3/2Bnb1P1/1P3PNP/4p1K1/R1R5 b - - 0 1",
	"3r2k1/2Q2pb1/2n1r3/1p1p4/pB1PP3/n1N2p2/B1q2P1R/6RK b - - 0 1",
	"2r3k1/5p1n/6p1/pp3n2/2BPp2P/4P2P/q1rN1PQb/R1BKR3 b - - 0 1",
	"r3r3/bpp1Nk1p/p1bq1Bp1/5p2/PPP3n1/R7/3QBPPP/5RK1 w - - 0 1",
	"4r1q1/1p4bk/2pp2np/4N2n/2bp2pP/PR3rP1/2QBNPB1/4K2R b K - 0 1",
	"rr2r1k1/ppBb1ppp/8/4p1NQ/8/1qB3B1/PP4PP/R5K1 w - - 0 1",
	"7r/1p2k3/2bpp3/p3np2/P1PR4/2N2PP1/1P4K1/3B4 b - - 0 1",
	"4k3/p1P3p1/2q1np1p/3N4/8/1Q3PP1/6KP/8 w - - 0 1",
	"3q4/pp3pkp/5npN/2bpr1B1/4r3/2P2Q2/PP3PPP/R4RK1 w - - 0 1",
}

func basicMaterial(p *Position) int {
	var score = 0
	score += PopCount(p.Pawns&p.White) - PopCount(p.Pawns&p.Black)
	score += 4 * (PopCount(p.Knights&p.White) - PopCount(p.Knights&p.Black))
	score += 4 * (PopCount(p.Bishops&p.White) - PopCount(p.Bishops&p.Black))
	score += 6 * (PopCount(p.Rooks&p.White) - PopCount(p.Rooks&p.Black))
	score += 12 * (PopCount(p.Queens&p.White) - PopCount(p.Queens&p.Black))
	if !p.WhiteMove {
		score = -score
	}
	return score
}

// searchSEE resolves the exchange on the destination square of the last
// move by always recapturing with the least valuable attacker.
func searchSEE(p *Position, alpha, beta int) int {
	var eval = basicMaterial(p)
	if eval > alpha {
		alpha = eval
		if eval >= beta {
			return eval
		}
	}
	var buffer [MaxMoves]OrderedMove
	var ml = p.GenerateCaptures(buffer[:])
	var child = &Position{}
	var move = lvaRecapture(p, child, ml, p.LastMove.To())
	if move != MoveEmpty &&
		p.MakeMove(move, child) {
		var score = -searchSEE(child, -beta, -alpha)
		if score > alpha {
			alpha = score
			if score >= beta {
				return score
			}
		}
	}
	return alpha
}

func lvaRecapture(p *Position, child *Position, ml []OrderedMove, square int) Move {
	var piece = King + 1
	var bestMove = MoveEmpty
	for i := range ml {
		var move = ml[i].Move
		if move.To() == square &&
			move.MovingPiece() < piece &&
			move.Promotion() == Empty &&
			p.MakeMove(move, child) {
			bestMove = move
			piece = move.MovingPiece()
		}
	}
	return bestMove
}

func TestSEE(t *testing.T) {
	var buffer [MaxMoves]OrderedMove
	var child = &Position{}
	for _, test := range testFENs {
		var p, err = NewPositionFromFEN(test)
		if err != nil {
			t.Fatal(err)
		}
		var eval = basicMaterial(&p)
		for _, om := range p.GenerateCaptures(buffer[:]) {
			var move = om.Move
			if move.Promotion() != Empty {
				continue
			}
			if !p.MakeMove(move, child) {
				continue
			}
			if child.IsDiscoveredCheck() {
				continue
			}
			var directSEE = -searchSEE(child, -eval, -(eval-1)) >= eval
			var see = seeGEZero(&p, move)
			if directSEE != see {
				t.Error(test, move.String(), directSEE, see)
			}
		}
	}
}

func TestTransTable(t *testing.T) {
	var tt = newTransTable(1)
	var p, _ = NewPositionFromFEN(InitialPositionFen)

	tt.Update(p.Key, 5, 33, 12, boundLower, MoveEmpty)
	var depth, score, staticEval, bound, move16, ok = tt.Read(p.Key)
	if !ok || depth != 5 || score != 33 || staticEval != 12 ||
		bound != boundLower || move16 != 0 {
		t.Error(depth, score, staticEval, bound, move16, ok)
	}

	// a much shallower entry for the same key must not evict the old one
	tt.Update(p.Key, 1, -5, 12, boundUpper, MoveEmpty)
	depth, score, _, bound, _, ok = tt.Read(p.Key)
	if !ok || depth != 5 || score != 33 || bound != boundLower {
		t.Error(depth, score, bound, ok)
	}

	// exact entries always replace
	tt.Update(p.Key, 1, 7, 12, boundExact, MoveEmpty)
	depth, score, _, bound, _, ok = tt.Read(p.Key)
	if !ok || depth != 1 || score != 7 || bound != boundExact {
		t.Error(depth, score, bound, ok)
	}

	tt.Clear()
	if _, _, _, _, _, ok = tt.Read(p.Key); ok {
		t.Error("read after clear")
	}
}

func TestMateScoreAdjustment(t *testing.T) {
	// a mate found 7 plies into the search, stored at height 3, must read
	// back at height 5 as a mate 9 plies from that node's root path
	var score = valueMate - 7
	var stored = valueToTT(score, 3)
	if stored != valueMate-4 {
		t.Fatal(stored)
	}
	var loaded = valueFromTT(stored, 5)
	if loaded != valueMate-9 {
		t.Fatal(loaded)
	}
}

func TestHistoryBounds(t *testing.T) {
	var table historyTable
	var h = historyContext{table: &table, sideToMove: true, cont1: 1, cont2: 2, cont4: 4}
	var p, _ = NewPositionFromFEN(InitialPositionFen)
	var moves = p.GenerateLegalMoves()

	for i := 0; i < 10000; i++ {
		h.UpdateQuiet(moves, moves[i%len(moves)], 20)
	}
	for _, m := range moves {
		var v = int(table.butterfly[0][fromToIndex(m)])
		if v > historyMax || v < -historyMax {
			t.Fatalf("butterfly out of range: %v", v)
		}
	}
	if table.counters[1] == MoveEmpty {
		t.Error("counter move not recorded")
	}

	table.age()
	for _, m := range moves {
		var v = int(table.butterfly[0][fromToIndex(m)])
		if v > historyMax/2 || v < -historyMax/2 {
			t.Fatalf("age did not halve: %v", v)
		}
	}
	if table.counters[1] != MoveEmpty {
		t.Error("age kept counter move")
	}
}

func newTestEngine() *Engine {
	var eng = NewEngine(func() interface{} {
		return eval.NewEvaluationService()
	})
	eng.Hash = 16
	eng.ProgressMinNodes = 0
	return eng
}

func searchFen(t *testing.T, eng *Engine, fen string, limits LimitsType) SearchInfo {
	t.Helper()
	var p, err = NewPositionFromFEN(fen)
	if err != nil {
		t.Fatal(err)
	}
	return eng.Search(context.Background(), SearchParams{
		Positions: []Position{p},
		Limits:    limits,
	})
}

func TestSearchMateInOne(t *testing.T) {
	var tests = []struct {
		fen  string
		best string
	}{
		{"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5Q2/PPPP1PPP/RNB1K1NR w kq - 4 4", "f3f7"},
		{"6k1/5ppp/8/8/8/8/5PPP/4R1K1 w - - 0 1", "e1e8"},
	}
	var eng = newTestEngine()
	for _, test := range tests {
		var si = searchFen(t, eng, test.fen, LimitsType{Depth: 5})
		if si.Score.Mate != 1 {
			t.Errorf("%v: expected mate 1, got %+v", test.fen, si.Score)
		}
		if len(si.MainLine) == 0 || si.MainLine[0].String() != test.best {
			t.Errorf("%v: expected %v, got %v", test.fen, test.best, si.MainLine)
		}
	}
}

func TestSearchMatedPosition(t *testing.T) {
	var eng = newTestEngine()
	// fool's mate, black delivered mate, white to move with no legal reply
	var si = searchFen(t, eng, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", LimitsType{Depth: 3})
	if len(si.MainLine) != 0 {
		t.Errorf("expected no moves, got %v", si.MainLine)
	}
}

func TestSearchDepthOneLegal(t *testing.T) {
	var eng = newTestEngine()
	for _, fen := range testFENs {
		var si = searchFen(t, eng, fen, LimitsType{Depth: 1})
		if len(si.MainLine) == 0 {
			t.Fatalf("%v: no move", fen)
		}
		var p, _ = NewPositionFromFEN(fen)
		var legal = false
		for _, m := range p.GenerateLegalMoves() {
			if m == si.MainLine[0] {
				legal = true
				break
			}
		}
		if !legal {
			t.Errorf("%v: illegal best move %v", fen, si.MainLine[0])
		}
	}
}

func TestSearchRookEndgame(t *testing.T) {
	var eng = newTestEngine()
	var si = searchFen(t, eng, "6k1/5ppp/8/8/8/8/5PPP/3R2K1 w - - 0 1", LimitsType{Depth: 8})
	if si.Score.Mate == 0 && si.Score.Centipawns < 400 {
		t.Errorf("expected winning score, got %+v", si.Score)
	}
}

func TestSearchNodeLimit(t *testing.T) {
	var eng = newTestEngine()
	var si = searchFen(t, eng, InitialPositionFen, LimitsType{Nodes: 20000})
	if si.Nodes > 30000 {
		t.Errorf("node limit overshot: %v", si.Nodes)
	}
	if len(si.MainLine) == 0 {
		t.Error("no move under node limit")
	}
}

func TestSearchCancellation(t *testing.T) {
	var eng = newTestEngine()
	var p, _ = NewPositionFromFEN(InitialPositionFen)
	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan SearchInfo, 1)
	go func() {
		done <- eng.Search(ctx, SearchParams{
			Positions: []Position{p},
			Limits:    LimitsType{Infinite: true},
		})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case si := <-done:
		if len(si.MainLine) == 0 {
			t.Error("no move after cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("search did not stop")
	}
}

func TestCalcLimits(t *testing.T) {
	var soft, hard = calcLimits(60*time.Second, time.Second, 30)
	var wantHard = (60*time.Second-moveOverhead)/30 + 3*time.Second
	if hard != wantHard {
		t.Errorf("hard: %v != %v", hard, wantHard)
	}
	if soft != wantHard/3 {
		t.Errorf("soft: %v != %v", soft, wantHard/3)
	}

	// nearly out of time: the cap at half the clock must kick in
	_, hard = calcLimits(100*time.Millisecond, 10*time.Second, 1)
	if hard > 50*time.Millisecond {
		t.Errorf("hard exceeds half the clock: %v", hard)
	}
}

func TestLmrTable(t *testing.T) {
	var lmr = initLmr()
	if r := lmr(2, 2); r < 0 {
		t.Error(r)
	}
	if lmr(20, 20) <= lmr(3, 3) {
		t.Error("reduction should grow with depth and move number")
	}
}
