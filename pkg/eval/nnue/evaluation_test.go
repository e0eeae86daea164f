package eval

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jorgenhanssen/grail/pkg/common"
)

func testWeights() *Weights {
	var w = &Weights{}
	var state = uint64(1070372)
	var next = func() uint64 {
		state = state*6364136223846793005 + 1442695040888963407
		return state >> 33
	}
	for i := range w.FeatureWeights {
		w.FeatureWeights[i] = int16(next()%64) - 32
	}
	for i := range w.FeatureBias {
		w.FeatureBias[i] = int16(next()%64) - 32
	}
	for i := range w.L1Weights {
		w.L1Weights[i] = int8(next()%16) - 8
	}
	for i := range w.L1Bias {
		w.L1Bias[i] = int32(next()%128) - 64
	}
	for i := range w.L2Weights {
		w.L2Weights[i] = int8(next()%16) - 8
	}
	for i := range w.L2Bias {
		w.L2Bias[i] = int32(next()%128) - 64
	}
	for i := range w.OutputWeights {
		w.OutputWeights[i] = int8(next()%16) - 8
	}
	w.OutputBias = 100
	return w
}

var updateTestFens = []string{
	common.InitialPositionFen,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R b KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"8/8/8/1Ppp3r/RK3p1k/8/4P1P1/8 w - c6 0 3",
}

// Every legal move from a handful of positions must leave the
// incrementally updated accumulators identical to a full refresh.
func TestIncrementalUpdates(t *testing.T) {
	var w = testWeights()
	var incremental = NewEvaluationService(w)
	var fresh = NewEvaluationService(w)

	for _, fen := range updateTestFens {
		var p, err = common.NewPositionFromFEN(fen)
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range p.GenerateLegalMoves() {
			incremental.Init(&p)
			incremental.MakeMove(&p, m)

			var child common.Position
			p.MakeMove(m, &child)

			var got = incremental.forward(child.SideToMove())
			fresh.Init(&child)
			var want = fresh.forward(child.SideToMove())
			if got != want {
				t.Errorf("%v %v: incremental %v, refresh %v", fen, m, got, want)
			}

			incremental.UnmakeMove()
		}
	}
}

func TestNullMoveUpdate(t *testing.T) {
	var w = testWeights()
	var e = NewEvaluationService(w)
	var p, err = common.NewPositionFromFEN(common.InitialPositionFen)
	if err != nil {
		t.Fatal(err)
	}
	e.Init(&p)
	var before = e.forward(common.SideWhite)
	e.MakeMove(&p, common.MoveEmpty)
	if after := e.forward(common.SideWhite); after != before {
		t.Errorf("null move changed accumulator: %v != %v", after, before)
	}
	e.UnmakeMove()
}

func TestPerspectiveMirror(t *testing.T) {
	var w = testWeights()
	var e = NewEvaluationService(w)
	for _, fen := range updateTestFens {
		var p, err = common.NewPositionFromFEN(fen)
		if err != nil {
			t.Fatal(err)
		}
		var mirror = common.MirrorPosition(&p)
		e.Init(&p)
		var v1 = e.EvaluateQuick(&p)
		e.Init(&mirror)
		var v2 = e.EvaluateQuick(&mirror)
		if v1 != v2 {
			t.Errorf("%v: %v != %v", fen, v1, v2)
		}
	}
}

func writeTensor(buf *bytes.Buffer, spec tensorSpec, data interface{}) {
	buf.WriteByte(uint8(len(spec.name)))
	buf.WriteString(spec.name)
	buf.WriteByte(spec.dtype)
	buf.WriteByte(uint8(len(spec.shape)))
	for _, dim := range spec.shape {
		binary.Write(buf, binary.LittleEndian, uint32(dim))
	}
	binary.Write(buf, binary.LittleEndian, data)
}

func encodeWeights(w *Weights) []byte {
	var buf bytes.Buffer
	buf.WriteString(weightsMagic)
	binary.Write(&buf, binary.LittleEndian, uint32(weightsVersion))
	binary.Write(&buf, binary.LittleEndian, uint32(len(tensorSpecs)))
	var data = []interface{}{
		w.FeatureWeights[:], w.FeatureBias[:],
		w.L1Weights[:], w.L1Bias[:],
		w.L2Weights[:], w.L2Bias[:],
		w.OutputWeights[:], w.OutputBias,
	}
	for i, spec := range tensorSpecs {
		writeTensor(&buf, spec, data[i])
	}
	return buf.Bytes()
}

func TestLoadWeights(t *testing.T) {
	var w = testWeights()
	var loaded, err = LoadWeights(bytes.NewReader(encodeWeights(w)))
	if err != nil {
		t.Fatal(err)
	}
	if *loaded != *w {
		t.Fatal("loaded weights differ")
	}
}

func TestLoadWeightsRejectsBadShape(t *testing.T) {
	var w = testWeights()
	var data = encodeWeights(w)

	data[0] = 'X'
	if _, err := LoadWeights(bytes.NewReader(data)); err == nil {
		t.Error("bad magic accepted")
	}

	data = encodeWeights(w)
	// corrupt the first dimension of feature_weights
	var dimOffset = len(weightsMagic) + 8 + 1 + len("feature_weights") + 2
	data[dimOffset] = 1
	if _, err := LoadWeights(bytes.NewReader(data)); err == nil {
		t.Error("bad shape accepted")
	}
}
