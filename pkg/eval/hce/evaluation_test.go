package eval

import (
	"testing"

	"github.com/jorgenhanssen/grail/pkg/common"
)

var testFens = []string{
	common.InitialPositionFen,
	"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3",
	"r2q1rk1/ppp2ppp/2np1n2/2b1p1B1/2B1P1b1/2NP1N2/PPP2PPP/R2Q1RK1 w - - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"4k3/8/8/8/8/8/4P3/4K3 w - - 0 1",
	"8/8/1p6/p1p5/P1P5/1P6/8/K6k w - - 0 1",
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"6k1/5ppp/8/8/8/8/5PPP/3R2K1 w - - 0 1",
}

func TestEvalSymmetry(t *testing.T) {
	var e = NewEvaluationService()
	for _, fen := range testFens {
		var p, err = common.NewPositionFromFEN(fen)
		if err != nil {
			t.Fatal(err)
		}
		var mirror = common.MirrorPosition(&p)
		var v1 = e.Evaluate(&p)
		var v2 = e.Evaluate(&mirror)
		if v1 != v2 {
			t.Errorf("%v: %v != %v", fen, v1, v2)
		}
	}
}

func TestEvalMaterialAdvantage(t *testing.T) {
	var e = NewEvaluationService()
	// white is a rook up, to move
	var p, err = common.NewPositionFromFEN("6k1/5ppp/8/8/8/8/5PPP/3R2K1 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if v := e.Evaluate(&p); v < 200 {
		t.Errorf("expected decisive advantage, got %v", v)
	}
}

func TestPawnKingCacheStable(t *testing.T) {
	var e = NewEvaluationService()
	var p, err = common.NewPositionFromFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	var first = e.Evaluate(&p)
	for i := 0; i < 3; i++ {
		if v := e.Evaluate(&p); v != first {
			t.Fatalf("eval not deterministic: %v != %v", v, first)
		}
	}
}

func TestWeights(t *testing.T) {
	var w = &Weights{}
	w.init()

	for piece := common.Pawn; piece <= common.King; piece++ {
		for sq := 0; sq < 64; sq++ {
			var white = w.PST[common.SideWhite][piece][sq]
			var black = w.PST[common.SideBlack][piece][common.FlipSquare(sq)]
			if white != black {
				t.Fatalf("piece %v sq %v: %v != %v", piece, sq, white, black)
			}
		}
	}

	for i := 1; i < len(w.KnightMobility); i++ {
		if w.KnightMobility[i].Middle() <= w.KnightMobility[i-1].Middle() {
			t.Fatalf("knight mobility not increasing at %v", i)
		}
	}
}
